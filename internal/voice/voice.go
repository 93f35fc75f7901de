// Package voice implements a single-note synthesis pipeline: oscillator,
// ADSR envelope, pitch and amplitude LFOs and a resonant filter.
package voice

import (
	"math"
	"time"

	"github.com/cbegin/polysynth-go/internal/envelope"
	"github.com/cbegin/polysynth-go/internal/filter"
	"github.com/cbegin/polysynth-go/internal/lfo"
	"github.com/cbegin/polysynth-go/internal/osc"
)

type State int

const (
	Idle State = iota
	Active
	Release
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Release:
		return "release"
	default:
		return "idle"
	}
}

const MaxPitchBend = 2.0 // semitones

// Settings is the part of a voice that a channel configures ahead of notes.
type Settings struct {
	Waveform  osc.Waveform
	Envelope  envelope.Params
	Filter    filter.Type
	Cutoff    float64
	Resonance float64
	PitchLFO  lfo.Params
	AmpLFO    lfo.Params
}

func DefaultSettings() Settings {
	return Settings{
		Waveform:  osc.Sawtooth,
		Envelope:  envelope.DefaultParams(),
		Filter:    filter.LowPass,
		Cutoff:    8000,
		Resonance: 1,
		PitchLFO:  lfo.Params{Waveform: lfo.WaveSine, Frequency: 5, Depth: 0.1},
		AmpLFO:    lfo.Params{Waveform: lfo.WaveTriangle, Frequency: 3, Depth: 0.2},
	}
}

// Voice plays one note at a time. It is not safe for concurrent use; the
// owning channel serializes access.
type Voice struct {
	id         int
	sampleRate float64

	state     State
	midiNote  int
	velocity  int
	frequency float64
	amplitude float64
	phase     float64
	waveform  osc.Waveform
	noteOnAt  time.Time

	env      *envelope.Envelope
	pitchLFO *lfo.LFO
	ampLFO   *lfo.LFO
	filter   *filter.Biquad

	pitchBend  float64
	modWheel   float64
	aftertouch float64
	sustain    bool
	pendingOff bool // NoteOff arrived while the sustain pedal was down
}

func New(id, sampleRate int) *Voice {
	v := &Voice{
		id:         id,
		sampleRate: float64(sampleRate),
		env:        envelope.New(sampleRate),
		pitchLFO:   lfo.New(sampleRate),
		ampLFO:     lfo.New(sampleRate),
		filter:     filter.New(sampleRate),
	}
	v.Apply(DefaultSettings())
	return v
}

// Apply copies channel-level settings into the voice. It does not touch
// note state, so it is safe on a sounding voice.
func (v *Voice) Apply(s Settings) {
	v.waveform = s.Waveform
	v.env.Set(s.Envelope)
	v.filter.Set(s.Filter, s.Cutoff, s.Resonance)
	v.pitchLFO.Set(s.PitchLFO)
	v.ampLFO.Set(s.AmpLFO)
}

// NoteOn starts midiNote at velocity (0-127). now stamps the note for
// steal-priority aging.
func (v *Voice) NoteOn(midiNote, velocity int, now time.Time) {
	v.midiNote = midiNote
	v.velocity = clampInt(velocity, 0, 127)
	v.frequency = MidiToFrequency(midiNote)
	v.amplitude = float64(v.velocity) / 127.0
	v.state = Active
	v.noteOnAt = now
	v.pendingOff = false
	v.phase = 0
	v.filter.Reset()
	v.env.NoteOn()
}

// NoteOff moves an active voice into release. With the sustain pedal down
// the release is deferred until the pedal is lifted.
func (v *Voice) NoteOff() {
	if v.state != Active {
		return
	}
	if v.sustain {
		v.pendingOff = true
		return
	}
	v.env.NoteOff()
	v.state = Release
}

// Kill silences the voice immediately.
func (v *Voice) Kill() {
	v.state = Idle
	v.pendingOff = false
	v.phase = 0
	v.env.Reset()
}

// Reset returns the voice to its freshly constructed note state.
func (v *Voice) Reset() {
	v.Kill()
	v.midiNote = 0
	v.velocity = 0
	v.frequency = 0
	v.amplitude = 0
	v.pitchBend = 0
	v.modWheel = 0
	v.aftertouch = 0
	v.sustain = false
	v.pitchLFO.Reset()
	v.ampLFO.Reset()
	v.filter.Reset()
}

// Next renders one sample.
func (v *Voice) Next() float64 {
	if v.state == Idle {
		return 0
	}
	level := v.env.Next()
	if v.state == Release && v.env.Finished() {
		v.state = Idle
		return 0
	}

	freq := v.frequency
	if v.pitchBend != 0 {
		freq *= math.Pow(2, v.pitchBend/12)
	}
	// Both LFOs run every sample so their phase keeps moving while gated off.
	pitchMod := v.pitchLFO.Next()
	if v.modWheel > 0 && v.pitchLFO.Active() {
		freq *= math.Pow(2, pitchMod*v.pitchLFO.Depth()*v.modWheel/12)
	}

	s := osc.Sample(v.waveform, v.phase) * level * v.amplitude

	ampMod := v.ampLFO.Next()
	if v.aftertouch > 0 && v.ampLFO.Active() {
		s *= math.Max(0, 1+ampMod*v.ampLFO.Depth()*v.aftertouch)
	}

	s = v.filter.Process(s)

	v.phase += freq / v.sampleRate
	for v.phase >= 1 {
		v.phase -= 1
	}
	return s
}

// Mix adds len(dst) samples into dst.
func (v *Voice) Mix(dst []float32) {
	for i := range dst {
		if v.state == Idle {
			return
		}
		dst[i] += float32(v.Next())
	}
}

// StealPriority ranks voices for reuse; lower means better to steal.
func (v *Voice) StealPriority(now time.Time) int {
	switch v.state {
	case Idle:
		return 0
	case Release:
		return 1
	}
	ageMs := now.Sub(v.noteOnAt).Milliseconds()
	if ageMs < 0 {
		ageMs = 0
	}
	return 100 + int(min(900, ageMs/10))
}

func (v *Voice) Available() bool { return v.state == Idle }

// Playing reports whether the voice is sounding midiNote.
func (v *Voice) Playing(midiNote int) bool {
	return v.state != Idle && v.midiNote == midiNote
}

func (v *Voice) SetWaveform(w osc.Waveform) { v.waveform = w }

func (v *Voice) SetPitchBend(semitones float64) {
	v.pitchBend = clamp(semitones, -MaxPitchBend, MaxPitchBend)
}

func (v *Voice) SetModWheel(amount float64)   { v.modWheel = clamp(amount, 0, 1) }
func (v *Voice) SetAftertouch(amount float64) { v.aftertouch = clamp(amount, 0, 1) }

// SetSustain sets the pedal. Lifting it releases any note whose NoteOff
// arrived while it was held.
func (v *Voice) SetSustain(on bool) {
	v.sustain = on
	if !on && v.pendingOff {
		v.pendingOff = false
		v.NoteOff()
	}
}

func (v *Voice) ID() int                      { return v.id }
func (v *Voice) State() State                 { return v.state }
func (v *Voice) MidiNote() int                { return v.midiNote }
func (v *Voice) Velocity() int                { return v.velocity }
func (v *Voice) Frequency() float64           { return v.frequency }
func (v *Voice) Amplitude() float64           { return v.amplitude }
func (v *Voice) Phase() float64               { return v.phase }
func (v *Voice) Waveform() osc.Waveform       { return v.waveform }
func (v *Voice) PitchBend() float64           { return v.pitchBend }
func (v *Voice) ModWheel() float64            { return v.modWheel }
func (v *Voice) Aftertouch() float64          { return v.aftertouch }
func (v *Voice) Sustain() bool                { return v.sustain }
func (v *Voice) Envelope() *envelope.Envelope { return v.env }
func (v *Voice) PitchLFO() *lfo.LFO           { return v.pitchLFO }
func (v *Voice) AmpLFO() *lfo.LFO             { return v.ampLFO }
func (v *Voice) Filter() *filter.Biquad       { return v.filter }

// MidiToFrequency converts a MIDI note number to Hz (A4 = 69 = 440 Hz).
func MidiToFrequency(note int) float64 {
	return 440.0 * math.Pow(2, float64(note-69)/12.0)
}

// FrequencyToMidi returns the nearest MIDI note. f must be positive.
func FrequencyToMidi(f float64) int {
	return int(math.Round(12*math.Log2(f/440.0))) + 69
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

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
