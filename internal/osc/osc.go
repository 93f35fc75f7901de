package osc

import (
	"errors"
	"math"
	"math/rand"
	"strings"
)

const twoPi = math.Pi * 2

// Waveform selects the oscillator shape.
type Waveform int

const (
	Sine Waveform = iota
	Sawtooth
	Square
	Triangle
	Noise
)

var ErrUnknownWaveform = errors.New("unknown waveform")

var waveformNames = [...]string{"sine", "sawtooth", "square", "triangle", "noise"}

func (w Waveform) String() string {
	if w < 0 || int(w) >= len(waveformNames) {
		return "unknown"
	}
	return waveformNames[w]
}

// ParseWaveform accepts the names returned by String plus a few short forms.
func ParseWaveform(name string) (Waveform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sine", "sin":
		return Sine, nil
	case "sawtooth", "saw":
		return Sawtooth, nil
	case "square", "sqr", "pulse":
		return Square, nil
	case "triangle", "tri":
		return Triangle, nil
	case "noise":
		return Noise, nil
	}
	return Sine, ErrUnknownWaveform
}

// Sample evaluates waveform w at phase p in [0, 1) and returns a value in [-1, 1].
// Noise ignores the phase and draws a fresh uniform value on every call.
func Sample(w Waveform, p float64) float64 {
	switch w {
	case Sawtooth:
		return 2.0 * (p - math.Floor(p+0.5))
	case Square:
		if p < 0.5 {
			return 1.0
		}
		return -1.0
	case Triangle:
		t := p * 4.0
		switch {
		case t < 1.0:
			return t
		case t < 3.0:
			return 2.0 - t
		default:
			return t - 4.0
		}
	case Noise:
		return rand.Float64()*2.0 - 1.0
	default: // Sine
		return math.Sin(p * twoPi)
	}
}
