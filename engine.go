// Package polysynth is a real-time polyphonic synthesizer: eight channels of
// subtractive voices, a master effects chain and a beat-clocked pattern
// matrix, streamed as 16-bit stereo PCM to a blocking audio sink.
package polysynth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/viterin/vek/vek32"

	"github.com/cbegin/polysynth-go/internal/audio"
	"github.com/cbegin/polysynth-go/internal/channel"
	"github.com/cbegin/polysynth-go/internal/effects"
	"github.com/cbegin/polysynth-go/internal/meter"
	"github.com/cbegin/polysynth-go/internal/pattern"
	"github.com/cbegin/polysynth-go/internal/voice"
)

var (
	ErrNoSink      = errors.New("no audio sink configured")
	ErrStopTimeout = errors.New("audio goroutine did not stop in time")
)

// scopeSize is the per-channel oscilloscope history in samples.
const scopeSize = 4096

// activeNoteTolerance is how close (Hz) a NoteOff must be to a tracked note.
const activeNoteTolerance = 0.1

type Option func(*engineConfig)

type engineConfig struct {
	sink      audio.Sink
	opener    func(EngineConfig) (audio.Sink, error)
	logger    *slog.Logger
	clock     func() time.Time
	sampleTap func(left, right []float32)
}

// WithSink streams into s. The engine closes s on Stop.
func WithSink(s audio.Sink) Option {
	return func(cfg *engineConfig) {
		cfg.sink = s
	}
}

// WithSinkOpener opens a fresh sink on every Start. Without WithSink or
// WithSinkOpener the engine opens the backend named in EngineConfig.
func WithSinkOpener(open func(EngineConfig) (audio.Sink, error)) Option {
	return func(cfg *engineConfig) {
		cfg.opener = open
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *engineConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithClock replaces time.Now for the pattern transport and voice ages.
func WithClock(clock func() time.Time) Option {
	return func(cfg *engineConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// WithSampleTap installs a callback invoked with each rendered stereo buffer
// after effects. The callback runs on the audio goroutine; keep work brief
// and non-blocking.
func WithSampleTap(tap func(left, right []float32)) Option {
	return func(cfg *engineConfig) {
		cfg.sampleTap = tap
	}
}

func openConfiguredSink(e EngineConfig) (audio.Sink, error) {
	return audio.Open(audio.Config{
		Backend:    e.Backend,
		SampleRate: e.SampleRate,
		Path:       e.Output,
		Realtime:   e.Realtime,
	})
}

type scheduledOff struct {
	beat    uint64
	channel int
	freq    float64
}

// Engine owns the channels, the master effects chain and the pattern
// matrix, and runs the producer goroutine that feeds the sink. Every
// exported method is safe for concurrent use.
type Engine struct {
	cfg       EngineConfig
	logger    *slog.Logger
	clock     func() time.Time
	opener    func(EngineConfig) (audio.Sink, error)
	sampleTap func(left, right []float32)

	channels []*channel.Channel
	effects  *effects.Chain
	patterns *pattern.Matrix

	scopes      []*meter.Scope
	levels      []*meter.Meter
	masterLeft  *meter.Meter
	masterRight *meter.Meter

	// lifecycle
	mu      sync.Mutex
	sink    audio.Sink
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	// render scratch, shared by the producer and RenderBuffer
	renderMu sync.Mutex
	mono     []float32
	panned   []float32

	noteMu      sync.Mutex
	pendingOffs []scheduledOff
	activeNotes [][]float64
}

// New builds an engine from cfg. Zero engine fields take their defaults.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Engine.SampleRate < 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ec := engineConfig{logger: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		opt(&ec)
	}
	e := &Engine{
		cfg:       cfg.Engine.withDefaults(),
		logger:    ec.logger,
		clock:     ec.clock,
		sink:      ec.sink,
		opener:    ec.opener,
		sampleTap: ec.sampleTap,
	}
	if e.sink == nil && e.opener == nil {
		e.opener = openConfiguredSink
	}
	sr, n := e.cfg.SampleRate, e.cfg.Channels

	e.effects = effects.NewChain(sr)
	fx := cfg.Effects
	if fx == (effects.Params{}) {
		fx = effects.DefaultParams()
	}
	e.effects.SetParams(fx)
	e.patterns = pattern.NewMatrix(n, e.cfg.BPM, e.cfg.BeatsPerPattern, pattern.WithClock(e.clock))
	e.masterLeft = meter.NewMeter()
	e.masterRight = meter.NewMeter()
	e.activeNotes = make([][]float64, n)
	for i := 0; i < n; i++ {
		e.channels = append(e.channels, channel.New(i, sr,
			channel.WithMaxVoices(e.cfg.VoicesPerChannel),
			channel.WithClock(e.clock)))
		e.scopes = append(e.scopes, meter.NewScope(scopeSize))
		e.levels = append(e.levels, meter.NewMeter())
	}
	for _, cc := range cfg.Channels {
		if err := e.applyChannelConfig(cc); err != nil {
			return nil, err
		}
	}
	for _, pc := range cfg.Patterns {
		p := e.patterns.CreatePattern(pc.Name, pc.Length)
		for _, note := range pc.Notes {
			p.AddNote(note.Beat, note.MidiNote, note.Velocity, note.Duration)
		}
	}
	for _, a := range cfg.Assignments {
		var err error
		if a.Layer {
			err = e.patterns.AddPattern(a.Channel, a.Pattern, a.Volume, a.Transpose)
		} else {
			err = e.patterns.AssignPattern(a.Channel, a.Pattern, a.Volume, a.Transpose)
		}
		if err != nil {
			return nil, fmt.Errorf("assignment on channel %d: %w", a.Channel, err)
		}
		if a.Muted {
			_ = e.patterns.MuteChannel(a.Channel, true)
		}
	}
	e.mono = make([]float32, e.cfg.BufferFrames)
	e.panned = make([]float32, e.cfg.BufferFrames)
	return e, nil
}

func (e *Engine) applyChannelConfig(cc ChannelConfig) error {
	c := e.channels[cc.Index]
	s, err := cc.settings(c.Settings())
	if err != nil {
		return fmt.Errorf("channel %d: %w", cc.Index, err)
	}
	c.SetSettings(s)
	if cc.Enabled != nil {
		c.SetEnabled(*cc.Enabled)
	}
	if cc.Volume != nil {
		c.SetVolume(*cc.Volume)
	}
	if cc.Pan != nil {
		c.SetPan(*cc.Pan)
	}
	return nil
}

// Start launches the producer goroutine. Calling Start on a running engine
// does nothing.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	if e.sink == nil {
		if e.opener == nil {
			return ErrNoSink
		}
		s, err := e.opener(e.cfg)
		if err != nil {
			return fmt.Errorf("open audio sink: %w", err)
		}
		e.sink = s
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true
	go e.run(ctx, e.sink, e.done)
	e.logger.Info("synth engine started",
		"sample_rate", e.cfg.SampleRate,
		"buffer_frames", e.cfg.BufferFrames,
		"channels", len(e.channels))
	return nil
}

// Stop cancels the producer, waits up to StopTimeout for it to exit and
// closes the sink whether or not it did. A sink given with WithSink is
// consumed; restarting needs a sink opener.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	cancel, done, sink := e.cancel, e.done, e.sink
	e.running = false
	e.cancel, e.done, e.sink = nil, nil, nil
	e.mu.Unlock()

	cancel()
	var err error
	select {
	case <-done:
	case <-time.After(e.cfg.StopTimeout):
		e.logger.Warn("audio goroutine did not stop in time", "timeout", e.cfg.StopTimeout)
		err = ErrStopTimeout
	}
	if cerr := sink.Close(); cerr != nil && !errors.Is(cerr, audio.ErrSinkClosed) {
		e.logger.Error("close audio sink", "err", cerr)
		err = errors.Join(err, fmt.Errorf("close audio sink: %w", cerr))
	}
	e.logger.Info("synth engine stopped")
	return err
}

// Running reports whether the producer goroutine is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) run(ctx context.Context, sink audio.Sink, done chan struct{}) {
	defer close(done)
	frames := e.cfg.BufferFrames
	left := make([]float32, frames)
	right := make([]float32, frames)
	pcm := make([]byte, 0, frames*audio.BytesPerFrame)
	for {
		if ctx.Err() != nil {
			return
		}
		var err error
		pcm, err = e.iterate(sink, left, right, pcm)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		e.logger.Error("audio iteration failed", "err", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.cfg.ErrorBackoff):
		}
	}
}

// iterate renders one buffer and writes it. A panic while rendering is
// converted into an error so the loop survives it.
func (e *Engine) iterate(sink audio.Sink, left, right []float32, pcm []byte) (out []byte, err error) {
	out = pcm
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in audio iteration: %v", r)
		}
	}()
	e.RenderBuffer(left, right)
	out = audio.EncodePCM16(pcm[:0], left, right)
	if _, err := sink.Write(out); err != nil {
		return out, fmt.Errorf("write audio: %w", err)
	}
	return out, nil
}

// RenderBuffer renders one stereo buffer: it polls the pattern matrix,
// mixes every enabled channel with its pan gains and runs the master
// effects. left and right must have the same length.
func (e *Engine) RenderBuffer(left, right []float32) {
	n := min(len(left), len(right))
	left, right = left[:n], right[:n]

	e.renderMu.Lock()
	defer e.renderMu.Unlock()
	e.dispatchPatterns()

	if cap(e.mono) < n {
		e.mono = make([]float32, n)
		e.panned = make([]float32, n)
	}
	mono, panned := e.mono[:n], e.panned[:n]
	vek32.Zeros_Into(left, n)
	vek32.Zeros_Into(right, n)
	for i, c := range e.channels {
		if !c.Enabled() {
			continue
		}
		c.Process(mono)
		e.scopes[i].Tap(mono)
		e.levels[i].Tap(mono)
		pan, vol := c.Pan(), c.Volume()
		vek32.Add_Inplace(left, vek32.MulNumber_Into(panned, mono, float32((1-pan)*vol)))
		vek32.Add_Inplace(right, vek32.MulNumber_Into(panned, mono, float32((1+pan)*vol)))
	}
	e.effects.ProcessStereo(left, right)
	e.masterLeft.Tap(left)
	e.masterRight.Tap(right)
	if e.sampleTap != nil {
		e.sampleTap(left, right)
	}
}

// dispatchPatterns fires scheduled note-offs and then the notes due on a
// new beat. A pattern note lasts Duration beats (at least one).
func (e *Engine) dispatchPatterns() {
	due := e.patterns.Update()
	beat := e.patterns.Beats()

	e.noteMu.Lock()
	var offs []scheduledOff
	kept := e.pendingOffs[:0]
	for _, off := range e.pendingOffs {
		if off.beat <= beat {
			offs = append(offs, off)
		} else {
			kept = append(kept, off)
		}
	}
	e.pendingOffs = kept
	e.noteMu.Unlock()

	for _, off := range offs {
		e.NoteOff(off.channel, off.freq)
	}
	for ch := 0; ch < len(e.channels) && due != nil; ch++ {
		for _, n := range due[ch] {
			freq := voice.MidiToFrequency(n.MidiNote)
			e.NoteOn(ch, freq, float64(n.Velocity)/127)
			dur := max(n.Duration, 1)
			e.noteMu.Lock()
			e.pendingOffs = append(e.pendingOffs, scheduledOff{beat: beat + uint64(dur), channel: ch, freq: freq})
			e.noteMu.Unlock()
		}
	}
}

// NoteOn starts a note on channel ch. Out-of-range channels and
// non-positive frequencies are ignored.
func (e *Engine) NoteOn(ch int, freq, velocity float64) {
	if ch < 0 || ch >= len(e.channels) || freq <= 0 {
		return
	}
	e.channels[ch].NoteOn(freq, velocity)
	e.noteMu.Lock()
	defer e.noteMu.Unlock()
	for _, f := range e.activeNotes[ch] {
		if math.Abs(f-freq) < activeNoteTolerance {
			return
		}
	}
	e.activeNotes[ch] = append(e.activeNotes[ch], freq)
}

// NoteOff releases every voice on ch playing the note nearest freq.
func (e *Engine) NoteOff(ch int, freq float64) {
	if ch < 0 || ch >= len(e.channels) || freq <= 0 {
		return
	}
	e.channels[ch].NoteOff(freq)
	e.noteMu.Lock()
	notes := e.activeNotes[ch][:0]
	for _, f := range e.activeNotes[ch] {
		if math.Abs(f-freq) >= activeNoteTolerance {
			notes = append(notes, f)
		}
	}
	e.activeNotes[ch] = notes
	e.noteMu.Unlock()
}

// AllNotesOff releases every note on every channel.
func (e *Engine) AllNotesOff() {
	for _, c := range e.channels {
		c.AllNotesOff()
	}
	e.noteMu.Lock()
	for i := range e.activeNotes {
		e.activeNotes[i] = nil
	}
	e.pendingOffs = nil
	e.noteMu.Unlock()
}

// ActiveNotes returns the frequencies started on ch and not yet released.
func (e *Engine) ActiveNotes(ch int) []float64 {
	if ch < 0 || ch >= len(e.channels) {
		return nil
	}
	e.noteMu.Lock()
	defer e.noteMu.Unlock()
	return append([]float64(nil), e.activeNotes[ch]...)
}

// Channel returns channel i, or nil when out of range.
func (e *Engine) Channel(i int) *channel.Channel {
	if i < 0 || i >= len(e.channels) {
		return nil
	}
	return e.channels[i]
}

func (e *Engine) NumChannels() int          { return len(e.channels) }
func (e *Engine) Effects() *effects.Chain   { return e.effects }
func (e *Engine) Patterns() *pattern.Matrix { return e.patterns }
func (e *Engine) Config() EngineConfig      { return e.cfg }
func (e *Engine) SampleRate() int           { return e.cfg.SampleRate }

// PlayPatterns starts the pattern transport.
func (e *Engine) PlayPatterns() {
	e.patterns.Play()
	e.logger.Debug("pattern transport playing", "bpm", e.patterns.BPM())
}

// StopTransport stops and rewinds the patterns, releases every note and
// clears the effect tails.
func (e *Engine) StopTransport() {
	e.patterns.Stop()
	e.AllNotesOff()
	e.effects.ClearBuffers()
	e.logger.Debug("pattern transport stopped")
}

func (e *Engine) SetPaused(paused bool) {
	e.patterns.SetPaused(paused)
}

// ChannelScope returns the latest n mono samples of channel i.
func (e *Engine) ChannelScope(i, n int) []float32 {
	if i < 0 || i >= len(e.scopes) {
		return nil
	}
	return e.scopes[i].Snapshot(n)
}

// ChannelLevel returns the VU reading of channel i before panning.
func (e *Engine) ChannelLevel(i int) meter.Level {
	if i < 0 || i >= len(e.levels) {
		return meter.Level{}
	}
	return e.levels[i].Level()
}

// MasterLevel returns the VU readings of the master bus after effects.
func (e *Engine) MasterLevel() (left, right meter.Level) {
	return e.masterLeft.Level(), e.masterRight.Level()
}
