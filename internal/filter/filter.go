package filter

import (
	"errors"
	"math"
	"strings"
)

// Type selects the biquad topology.
type Type int

const (
	LowPass Type = iota
	HighPass
	BandPass
	Notch
)

const (
	MinCutoff    = 20.0
	MaxCutoff    = 20000.0
	MinResonance = 0.1
	MaxResonance = 10.0
)

var ErrUnknownType = errors.New("unknown filter type")

func (t Type) String() string {
	switch t {
	case LowPass:
		return "lowpass"
	case HighPass:
		return "highpass"
	case BandPass:
		return "bandpass"
	case Notch:
		return "notch"
	}
	return "unknown"
}

func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lowpass", "lp", "low":
		return LowPass, nil
	case "highpass", "hp", "high":
		return HighPass, nil
	case "bandpass", "bp", "band":
		return BandPass, nil
	case "notch":
		return Notch, nil
	}
	return LowPass, ErrUnknownType
}

// Coefficients are the normalized biquad coefficients (b0 == 1).
type Coefficients struct {
	A0, A1, A2 float64
	B1, B2     float64
}

// Biquad is a direct-form I resonant filter with two samples of history.
type Biquad struct {
	sampleRate float64
	typ        Type
	cutoff     float64
	q          float64
	c          Coefficients
	x1, x2     float64
	y1, y2     float64
}

// New returns a low-pass filter at 1 kHz, Q 1.
func New(sampleRate int) *Biquad {
	f := &Biquad{sampleRate: float64(sampleRate), typ: LowPass, cutoff: 1000, q: 1}
	f.recalc()
	return f
}

// Set changes type, cutoff and resonance with a single coefficient update.
func (f *Biquad) Set(t Type, cutoff, q float64) {
	f.typ = t
	f.cutoff = clamp(cutoff, MinCutoff, MaxCutoff)
	f.q = clamp(q, MinResonance, MaxResonance)
	f.recalc()
}

func (f *Biquad) SetType(t Type) {
	f.typ = t
	f.recalc()
}

func (f *Biquad) SetCutoff(hz float64) {
	f.cutoff = clamp(hz, MinCutoff, MaxCutoff)
	f.recalc()
}

func (f *Biquad) SetResonance(q float64) {
	f.q = clamp(q, MinResonance, MaxResonance)
	f.recalc()
}

func (f *Biquad) Type() Type                 { return f.typ }
func (f *Biquad) Cutoff() float64            { return f.cutoff }
func (f *Biquad) Resonance() float64         { return f.q }
func (f *Biquad) Coefficients() Coefficients { return f.c }

// Process filters one sample.
func (f *Biquad) Process(x float64) float64 {
	c := &f.c
	y := c.A0*x + c.A1*f.x1 + c.A2*f.x2 - c.B1*f.y1 - c.B2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// ProcessBuffer filters buf in place.
func (f *Biquad) ProcessBuffer(buf []float32) {
	for i, v := range buf {
		buf[i] = float32(f.Process(float64(v)))
	}
}

// Reset clears the history. Call it before reusing the filter for a new note.
func (f *Biquad) Reset() {
	f.x1, f.x2 = 0, 0
	f.y1, f.y2 = 0, 0
}

// recalc derives all five coefficients from scratch for the current type.
func (f *Biquad) recalc() {
	norm := clamp(f.cutoff/(0.5*f.sampleRate), 0.001, 0.99)
	w := math.Pi * norm
	sin, cos := math.Sin(w), math.Cos(w)
	alpha := sin / (2 * f.q)
	n := 1 + alpha

	var c Coefficients
	switch f.typ {
	case HighPass:
		c.A0 = (1 + cos) / 2 / n
		c.A1 = -(1 + cos) / n
		c.A2 = (1 + cos) / 2 / n
	case BandPass:
		c.A0 = alpha / n
		c.A1 = 0
		c.A2 = -alpha / n
	case Notch:
		c.A0 = 1 / n
		c.A1 = -2 * cos / n
		c.A2 = 1 / n
	default: // LowPass
		c.A0 = (1 - cos) / 2 / n
		c.A1 = (1 - cos) / n
		c.A2 = (1 - cos) / 2 / n
	}
	c.B1 = -2 * cos / n
	c.B2 = (1 - alpha) / n
	f.c = c
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
