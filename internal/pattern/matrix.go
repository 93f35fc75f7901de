// Package pattern implements a beat-clocked step sequencer that routes named
// note patterns onto synth channels.
package pattern

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

var (
	ErrUnknownPattern = errors.New("unknown pattern")
	ErrChannelRange   = errors.New("channel out of range")
)

// Assignment routes a pattern onto a channel with a velocity scale and a
// semitone offset.
type Assignment struct {
	Channel   int
	Pattern   string
	Volume    float64
	Transpose int
	Muted     bool
}

type Option func(*matrixConfig)

type matrixConfig struct {
	clock    func() time.Time
	defaults bool
}

// WithClock replaces time.Now as the beat clock.
func WithClock(clock func() time.Time) Option {
	return func(cfg *matrixConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// WithoutDefaultPatterns starts the matrix with an empty pattern library.
func WithoutDefaultPatterns() Option {
	return func(cfg *matrixConfig) {
		cfg.defaults = false
	}
}

// Matrix polls a wall clock and emits the notes due on each new beat.
// Timing is not sample accurate: drift against the audio stream is bounded
// only by how often Update is called.
type Matrix struct {
	mu              sync.Mutex
	clock           func() time.Time
	maxChannels     int
	bpm             int
	beatsPerPattern int
	beatInterval    time.Duration

	patterns    map[string]*Pattern
	assignments [][]Assignment

	currentBeat int
	beats       uint64
	playing     bool
	lastBeat    time.Time
}

func NewMatrix(maxChannels, bpm, beatsPerPattern int, opts ...Option) *Matrix {
	cfg := matrixConfig{clock: time.Now, defaults: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if bpm <= 0 {
		bpm = 120
	}
	if beatsPerPattern <= 0 {
		beatsPerPattern = 16
	}
	m := &Matrix{
		clock:           cfg.clock,
		maxChannels:     maxChannels,
		bpm:             bpm,
		beatsPerPattern: beatsPerPattern,
		beatInterval:    time.Minute / time.Duration(bpm),
		patterns:        make(map[string]*Pattern),
		assignments:     make([][]Assignment, maxChannels),
	}
	if cfg.defaults {
		for _, p := range defaultPatterns() {
			m.patterns[p.Name()] = p
		}
	}
	return m
}

// Update advances the beat when a beat interval has elapsed since the last
// one and returns the notes due on the new beat, keyed by channel, with
// transpose and velocity scaling applied. It returns nil when stopped or
// between beats.
func (m *Matrix) Update() map[int][]Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.playing {
		return nil
	}
	now := m.clock()
	if now.Sub(m.lastBeat) < m.beatInterval {
		return nil
	}
	m.lastBeat = now
	m.currentBeat = (m.currentBeat + 1) % m.beatsPerPattern
	m.beats++

	var out map[int][]Note
	var scratch []Note
	for ch, list := range m.assignments {
		var due []Note
		for _, a := range list {
			if a.Muted {
				continue
			}
			p := m.patterns[a.Pattern]
			if p == nil {
				continue
			}
			scratch = p.notesAt(scratch[:0], m.currentBeat)
			for _, n := range scratch {
				due = append(due, a.apply(n))
			}
		}
		if len(due) > 0 {
			if out == nil {
				out = make(map[int][]Note)
			}
			out[ch] = due
		}
	}
	return out
}

// apply transposes n and scales its velocity into [1, 127].
func (a Assignment) apply(n Note) Note {
	n.MidiNote += a.Transpose
	n.Velocity = clampInt(int(float64(n.Velocity)*a.Volume), 1, 127)
	return n
}

// Score returns every note one pattern cycle plays on channel, after
// transpose and velocity scaling, ordered by beat. Muted assignments and
// notes beyond the cycle length are left out.
func (m *Matrix) Score(channel int) []Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkChannel(channel) != nil {
		return nil
	}
	var out []Note
	for _, a := range m.assignments[channel] {
		p := m.patterns[a.Pattern]
		if a.Muted || p == nil {
			continue
		}
		for _, n := range p.Notes() {
			if n.Beat < 0 || n.Beat >= m.beatsPerPattern {
				continue
			}
			out = append(out, a.apply(n))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Beat < out[j].Beat })
	return out
}

// Play starts the transport; the first beat fires one interval from now.
func (m *Matrix) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = true
	m.lastBeat = m.clock()
}

// Stop halts the transport and rewinds to beat 0.
func (m *Matrix) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
	m.currentBeat = 0
}

// SetPaused pauses or resumes without rewinding.
func (m *Matrix) SetPaused(paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case paused && m.playing:
		m.playing = false
	case !paused && !m.playing:
		m.playing = true
		m.lastBeat = m.clock()
	}
}

// AssignPattern replaces every assignment on channel with one pattern.
func (m *Matrix) AssignPattern(channel int, name string, volume float64, transpose int) error {
	return m.assign(channel, name, volume, transpose, true)
}

// AddPattern layers another pattern onto channel.
func (m *Matrix) AddPattern(channel int, name string, volume float64, transpose int) error {
	return m.assign(channel, name, volume, transpose, false)
}

func (m *Matrix) assign(channel int, name string, volume float64, transpose int, replace bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkChannel(channel); err != nil {
		return err
	}
	if _, ok := m.patterns[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPattern, name)
	}
	a := Assignment{Channel: channel, Pattern: name, Volume: volume, Transpose: transpose}
	if replace {
		m.assignments[channel] = []Assignment{a}
	} else {
		m.assignments[channel] = append(m.assignments[channel], a)
	}
	return nil
}

func (m *Matrix) ClearChannel(channel int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkChannel(channel); err != nil {
		return err
	}
	m.assignments[channel] = nil
	return nil
}

// MuteChannel mutes or unmutes every assignment on channel.
func (m *Matrix) MuteChannel(channel int, muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkChannel(channel); err != nil {
		return err
	}
	for i := range m.assignments[channel] {
		m.assignments[channel][i].Muted = muted
	}
	return nil
}

// Assignments returns a copy of channel's assignments; nil when out of range.
func (m *Matrix) Assignments(channel int) []Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkChannel(channel) != nil {
		return nil
	}
	return append([]Assignment(nil), m.assignments[channel]...)
}

// CreatePattern adds an empty pattern, replacing any pattern of that name.
func (m *Matrix) CreatePattern(name string, lengthInBeats int) *Pattern {
	p := NewPattern(name, lengthInBeats)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns[name] = p
	return p
}

// Pattern returns the named pattern or nil.
func (m *Matrix) Pattern(name string) *Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.patterns[name]
}

// PatternNames returns the library's pattern names, sorted.
func (m *Matrix) PatternNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.patterns))
	for name := range m.patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GenerateFromData builds a pattern with one candidate note per beat from
// data values in roughly [-1, 1]: note 60+v*24, velocity 64+|v|*63,
// duration 1+|v|*3 beats. Values with |v| <= 0.1 leave the beat empty.
func (m *Matrix) GenerateFromData(name string, data []float64, lengthInBeats int) *Pattern {
	p := NewPattern(name, lengthInBeats)
	for i := 0; i < len(data) && i < lengthInBeats; i++ {
		v := data[i]
		if math.Abs(v) <= 0.1 {
			continue
		}
		p.AddNote(i, 60+int(v*24), 64+int(math.Abs(v)*63), 1+int(math.Abs(v)*3))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns[name] = p
	return p
}

func (m *Matrix) CurrentBeat() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentBeat
}

// Beats returns the number of beats advanced since construction.
func (m *Matrix) Beats() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beats
}

func (m *Matrix) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *Matrix) BPM() int                    { return m.bpm }
func (m *Matrix) BeatsPerPattern() int        { return m.beatsPerPattern }
func (m *Matrix) MaxChannels() int            { return m.maxChannels }
func (m *Matrix) BeatInterval() time.Duration { return m.beatInterval }

func (m *Matrix) checkChannel(channel int) error {
	if channel < 0 || channel >= m.maxChannels {
		return fmt.Errorf("%w: %d", ErrChannelRange, channel)
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
