package channel

import (
	"sync"
	"time"

	"github.com/viterin/vek/vek32"

	"github.com/cbegin/polysynth-go/internal/envelope"
	"github.com/cbegin/polysynth-go/internal/filter"
	"github.com/cbegin/polysynth-go/internal/lfo"
	"github.com/cbegin/polysynth-go/internal/osc"
	"github.com/cbegin/polysynth-go/internal/voice"
)

const DefaultMaxVoices = 8

type Option func(*config)

type config struct {
	maxVoices int
	clock     func() time.Time
}

func defaultConfig() config {
	return config{maxVoices: DefaultMaxVoices, clock: time.Now}
}

// WithMaxVoices sets the pool size. Values below 1 are ignored.
func WithMaxVoices(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.maxVoices = n
		}
	}
}

// WithClock replaces time.Now for note-on timestamps.
func WithClock(clock func() time.Time) Option {
	return func(cfg *config) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// VoiceInfo is a read-only snapshot of one sounding voice.
type VoiceInfo struct {
	ID        int
	MidiNote  int
	Velocity  int
	Frequency float64
	State     voice.State
}

// Channel owns a fixed pool of voices sharing one waveform, volume and pan.
// All methods are safe for concurrent use; Process holds the channel lock
// for the whole buffer so parameter changes land between buffers.
type Channel struct {
	mu         sync.Mutex
	id         int
	sampleRate int
	clock      func() time.Time
	maxVoices  int

	enabled  bool
	volume   float64
	pan      float64
	settings voice.Settings

	pitchBend  float64
	modWheel   float64
	aftertouch float64
	sustain    bool

	active []*voice.Voice
	free   []*voice.Voice
}

func New(id, sampleRate int, opts ...Option) *Channel {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	settings := voice.DefaultSettings()
	settings.Waveform = osc.Sine
	c := &Channel{
		id:         id,
		sampleRate: sampleRate,
		clock:      cfg.clock,
		maxVoices:  cfg.maxVoices,
		enabled:    true,
		volume:     0.8,
		settings:   settings,
		active:     make([]*voice.Voice, 0, cfg.maxVoices),
		free:       make([]*voice.Voice, 0, cfg.maxVoices),
	}
	for i := cfg.maxVoices - 1; i >= 0; i-- {
		c.free = append(c.free, voice.New(i, sampleRate))
	}
	return c
}

// NoteOn starts the MIDI note nearest to freq. velocity is 0-1. A voice
// already on that note is cut and replaced; when every voice is busy the
// note is dropped. Non-positive frequencies are ignored.
func (c *Channel) NoteOn(freq, velocity float64) {
	if freq <= 0 {
		return
	}
	note := voice.FrequencyToMidi(freq)
	vel := int(velocity * 127)
	if vel < 0 {
		vel = 0
	} else if vel > 127 {
		vel = 127
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeNoteLocked(note)
	if len(c.active) >= c.maxVoices || len(c.free) == 0 {
		return
	}
	v := c.free[len(c.free)-1]
	c.free = c.free[:len(c.free)-1]
	v.Reset()
	v.Apply(c.settings)
	v.SetPitchBend(c.pitchBend)
	v.SetModWheel(c.modWheel)
	v.SetAftertouch(c.aftertouch)
	v.SetSustain(c.sustain)
	v.NoteOn(note, vel, c.clock())
	c.active = append(c.active, v)
}

// NoteOff releases every voice on the MIDI note nearest to freq.
func (c *Channel) NoteOff(freq float64) {
	if freq <= 0 {
		return
	}
	note := voice.FrequencyToMidi(freq)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range c.active {
		if v.MidiNote() == note {
			v.NoteOff()
		}
	}
}

// AllNotesOff releases every sounding voice.
func (c *Channel) AllNotesOff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allNotesOffLocked()
}

// Kill silences every voice immediately and returns it to the pool.
func (c *Channel) Kill() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range c.active {
		v.Kill()
		c.free = append(c.free, v)
	}
	c.active = c.active[:0]
}

// Process renders len(dst) samples, overwriting dst. Voices that went idle
// during the buffer are returned to the pool.
func (c *Channel) Process(dst []float32) {
	vek32.Zeros_Into(dst, len(dst))
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	for i := len(c.active) - 1; i >= 0; i-- {
		v := c.active[i]
		v.Mix(dst)
		if v.State() == voice.Idle {
			c.releaseSlotLocked(i)
		}
	}
	vek32.MulNumber_Inplace(dst, float32(c.volume))
}

func (c *Channel) removeNoteLocked(note int) {
	for i := len(c.active) - 1; i >= 0; i-- {
		if c.active[i].MidiNote() == note {
			c.active[i].Kill()
			c.releaseSlotLocked(i)
		}
	}
}

func (c *Channel) releaseSlotLocked(i int) {
	v := c.active[i]
	c.active = append(c.active[:i], c.active[i+1:]...)
	c.free = append(c.free, v)
}

func (c *Channel) allNotesOffLocked() {
	for _, v := range c.active {
		v.NoteOff()
	}
}

// applyLocked pushes the current template onto every sounding voice.
func (c *Channel) applyLocked() {
	for _, v := range c.active {
		v.Apply(c.settings)
	}
}

func (c *Channel) ID() int { return c.id }

func (c *Channel) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetEnabled toggles the channel. Disabling releases all notes.
func (c *Channel) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	if !enabled {
		c.allNotesOffLocked()
	}
}

func (c *Channel) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

func (c *Channel) SetVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = clamp(v, 0, 1)
}

func (c *Channel) Pan() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pan
}

func (c *Channel) SetPan(p float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pan = clamp(p, -1, 1)
}

func (c *Channel) Waveform() osc.Waveform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.Waveform
}

func (c *Channel) SetWaveform(w osc.Waveform) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.Waveform = w
	for _, v := range c.active {
		v.SetWaveform(w)
	}
}

// Settings returns the voice template.
func (c *Channel) Settings() voice.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// SetSettings replaces the whole voice template.
func (c *Channel) SetSettings(s voice.Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.Envelope = s.Envelope.Clamped()
	s.Cutoff = clamp(s.Cutoff, filter.MinCutoff, filter.MaxCutoff)
	s.Resonance = clamp(s.Resonance, filter.MinResonance, filter.MaxResonance)
	s.PitchLFO = s.PitchLFO.Clamped()
	s.AmpLFO = s.AmpLFO.Clamped()
	c.settings = s
	c.applyLocked()
}

func (c *Channel) SetEnvelope(p envelope.Params) {
	c.updateSettings(func(s *voice.Settings) { s.Envelope = p.Clamped() })
}

func (c *Channel) SetAttack(sec float64) {
	c.updateSettings(func(s *voice.Settings) {
		s.Envelope.AttackSec = sec
		s.Envelope = s.Envelope.Clamped()
	})
}

func (c *Channel) SetDecay(sec float64) {
	c.updateSettings(func(s *voice.Settings) {
		s.Envelope.DecaySec = sec
		s.Envelope = s.Envelope.Clamped()
	})
}

func (c *Channel) SetSustainLevel(level float64) {
	c.updateSettings(func(s *voice.Settings) {
		s.Envelope.SustainLvl = level
		s.Envelope = s.Envelope.Clamped()
	})
}

func (c *Channel) SetRelease(sec float64) {
	c.updateSettings(func(s *voice.Settings) {
		s.Envelope.ReleaseSec = sec
		s.Envelope = s.Envelope.Clamped()
	})
}

func (c *Channel) SetFilter(t filter.Type, cutoff, q float64) {
	c.updateSettings(func(s *voice.Settings) {
		s.Filter = t
		s.Cutoff = clamp(cutoff, filter.MinCutoff, filter.MaxCutoff)
		s.Resonance = clamp(q, filter.MinResonance, filter.MaxResonance)
	})
}

func (c *Channel) SetFilterType(t filter.Type) {
	c.updateSettings(func(s *voice.Settings) { s.Filter = t })
}

func (c *Channel) SetCutoff(hz float64) {
	c.updateSettings(func(s *voice.Settings) {
		s.Cutoff = clamp(hz, filter.MinCutoff, filter.MaxCutoff)
	})
}

func (c *Channel) SetResonance(q float64) {
	c.updateSettings(func(s *voice.Settings) {
		s.Resonance = clamp(q, filter.MinResonance, filter.MaxResonance)
	})
}

func (c *Channel) SetPitchLFO(p lfo.Params) {
	c.updateSettings(func(s *voice.Settings) { s.PitchLFO = p.Clamped() })
}

func (c *Channel) SetAmpLFO(p lfo.Params) {
	c.updateSettings(func(s *voice.Settings) { s.AmpLFO = p.Clamped() })
}

func (c *Channel) updateSettings(fn func(*voice.Settings)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.settings)
	c.applyLocked()
}

// SetPitchBend sets the bend in semitones (±2) for current and future notes.
func (c *Channel) SetPitchBend(semitones float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pitchBend = clamp(semitones, -voice.MaxPitchBend, voice.MaxPitchBend)
	for _, v := range c.active {
		v.SetPitchBend(c.pitchBend)
	}
}

func (c *Channel) SetModWheel(amount float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modWheel = clamp(amount, 0, 1)
	for _, v := range c.active {
		v.SetModWheel(c.modWheel)
	}
}

func (c *Channel) SetAftertouch(amount float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aftertouch = clamp(amount, 0, 1)
	for _, v := range c.active {
		v.SetAftertouch(c.aftertouch)
	}
}

// SetSustain sets the sustain pedal. Lifting it releases notes whose
// NoteOff arrived while it was down.
func (c *Channel) SetSustain(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sustain = on
	for _, v := range c.active {
		v.SetSustain(on)
	}
}

func (c *Channel) PitchBend() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pitchBend
}

func (c *Channel) ModWheel() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modWheel
}

func (c *Channel) Aftertouch() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aftertouch
}

func (c *Channel) Sustain() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sustain
}

func (c *Channel) MaxVoices() int { return c.maxVoices }

// ActiveVoices returns the number of voices currently allocated.
func (c *Channel) ActiveVoices() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// Voices returns a snapshot of the allocated voices in allocation order.
func (c *Channel) Voices() []VoiceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]VoiceInfo, len(c.active))
	for i, v := range c.active {
		out[i] = VoiceInfo{
			ID:        v.ID(),
			MidiNote:  v.MidiNote(),
			Velocity:  v.Velocity(),
			Frequency: v.Frequency(),
			State:     v.State(),
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
