package lfo

import (
	"errors"
	"math"
	"math/rand"
	"strings"
)

// Waveform selects the LFO shape.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveTriangle
	WaveSquare
	WaveSaw
	WaveSampleHold
)

const (
	MinFrequency = 0.01
	MaxFrequency = 20.0
)

var ErrUnknownWaveform = errors.New("unknown lfo waveform")

func (w Waveform) String() string {
	switch w {
	case WaveSine:
		return "sine"
	case WaveTriangle:
		return "triangle"
	case WaveSquare:
		return "square"
	case WaveSaw:
		return "sawtooth"
	case WaveSampleHold:
		return "sample-hold"
	}
	return "unknown"
}

func ParseWaveform(name string) (Waveform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sine", "sin":
		return WaveSine, nil
	case "triangle", "tri":
		return WaveTriangle, nil
	case "square", "sqr":
		return WaveSquare, nil
	case "sawtooth", "saw":
		return WaveSaw, nil
	case "sample-hold", "samplehold", "random", "s&h":
		return WaveSampleHold, nil
	}
	return WaveSine, ErrUnknownWaveform
}

// Params describes an LFO setting as stored in voice templates and config.
type Params struct {
	Waveform  Waveform
	Frequency float64 // Hz
	Depth     float64 // 0-1
}

// Clamped returns p with frequency and depth forced into range.
func (p Params) Clamped() Params {
	p.Frequency = clamp(p.Frequency, MinFrequency, MaxFrequency)
	p.Depth = clamp(p.Depth, 0, 1)
	return p
}

// LFO is a low-frequency oscillator that produces one modulation value per sample.
type LFO struct {
	sampleRate float64
	frequency  float64
	depth      float64
	waveform   Waveform
	phase      float64 // [0, 1)
	held       float64 // current sample-and-hold value
	holdLeft   int     // samples until the next S&H draw
	holdPeriod int
}

func New(sampleRate int) *LFO {
	l := &LFO{sampleRate: float64(sampleRate), frequency: 1, depth: 0.5}
	l.updateHold()
	return l
}

// Set configures all parameters at once.
func (l *LFO) Set(p Params) {
	p = p.Clamped()
	l.waveform = p.Waveform
	l.frequency = p.Frequency
	l.depth = p.Depth
	l.updateHold()
}

func (l *LFO) SetFrequency(hz float64) {
	l.frequency = clamp(hz, MinFrequency, MaxFrequency)
	l.updateHold()
}

func (l *LFO) SetDepth(depth float64) {
	l.depth = clamp(depth, 0, 1)
}

func (l *LFO) SetWaveform(w Waveform) {
	l.waveform = w
	l.updateHold()
}

func (l *LFO) Params() Params {
	return Params{Waveform: l.waveform, Frequency: l.frequency, Depth: l.depth}
}

func (l *LFO) Depth() float64 { return l.depth }

// Next returns the current value scaled by depth and advances one sample.
// Sample-and-hold does not move the phase; it redraws a value in [-1, 1]
// every sampleRate/(frequency*10) samples.
func (l *LFO) Next() float64 {
	if l.waveform == WaveSampleHold {
		if l.holdLeft <= 0 {
			l.held = rand.Float64()*2.0 - 1.0
			l.holdLeft = l.holdPeriod
		}
		l.holdLeft--
		return l.held * l.depth
	}

	var v float64
	switch l.waveform {
	case WaveTriangle:
		t := l.phase * 4.0
		switch {
		case t < 1.0:
			v = t
		case t < 3.0:
			v = 2.0 - t
		default:
			v = t - 4.0
		}
	case WaveSquare:
		if l.phase < 0.5 {
			v = 1.0
		} else {
			v = -1.0
		}
	case WaveSaw:
		v = 2.0 * (l.phase - math.Floor(l.phase+0.5))
	default: // WaveSine
		v = math.Sin(l.phase * 2.0 * math.Pi)
	}

	l.phase += l.frequency / l.sampleRate
	for l.phase >= 1.0 {
		l.phase -= 1.0
	}
	return v * l.depth
}

// Active returns true if the LFO has non-zero depth.
func (l *LFO) Active() bool {
	return l.depth != 0
}

// Reset zeros the phase and forces a fresh S&H draw on the next call.
func (l *LFO) Reset() {
	l.phase = 0
	l.holdLeft = 0
}

func (l *LFO) updateHold() {
	n := int(l.sampleRate / (l.frequency * 10))
	if n < 1 {
		n = 1
	}
	l.holdPeriod = n
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
