package filter

import (
	"math"
	"testing"
)

const eps = 1e-9

// gainAt evaluates |H(e^jw)| for normalized coefficients.
func gainAt(c Coefficients, w float64) float64 {
	num := complexPoly(c.A0, c.A1, c.A2, w)
	den := complexPoly(1, c.B1, c.B2, w)
	return cmplxAbs(num) / cmplxAbs(den)
}

func complexPoly(k0, k1, k2, w float64) complex128 {
	z1 := complex(math.Cos(w), -math.Sin(w))
	return complex(k0, 0) + complex(k1, 0)*z1 + complex(k2, 0)*z1*z1
}

func cmplxAbs(z complex128) float64 { return math.Hypot(real(z), imag(z)) }

func TestTopologyEquations(t *testing.T) {
	for _, sr := range []int{22050, 44100, 96000} {
		for _, cutoff := range []float64{20, 200, 1000, 8000, 20000} {
			for _, q := range []float64{0.1, 0.707, 1, 4, 10} {
				f := New(sr)
				f.Set(LowPass, cutoff, q)
				c := f.Coefficients()
				if d := (c.A0 + c.A1 + c.A2) - (1 + c.B1 + c.B2); math.Abs(d) > eps {
					t.Fatalf("lowpass sr=%d fc=%v q=%v: DC gain mismatch %v", sr, cutoff, q, d)
				}

				f.SetType(HighPass)
				c = f.Coefficients()
				if s := c.A0 + c.A1 + c.A2; math.Abs(s) > eps {
					t.Fatalf("highpass sr=%d fc=%v q=%v: DC gain %v, want 0", sr, cutoff, q, s)
				}
				if d := (c.A0 - c.A1 + c.A2) - (1 - c.B1 + c.B2); math.Abs(d) > eps {
					t.Fatalf("highpass sr=%d fc=%v q=%v: Nyquist gain mismatch %v", sr, cutoff, q, d)
				}

				f.SetType(BandPass)
				c = f.Coefficients()
				if s := c.A0 + c.A1 + c.A2; math.Abs(s) > eps {
					t.Fatalf("bandpass: DC gain %v, want 0", s)
				}
				if s := c.A0 - c.A1 + c.A2; math.Abs(s) > eps {
					t.Fatalf("bandpass: Nyquist gain %v, want 0", s)
				}

				f.SetType(Notch)
				c = f.Coefficients()
				if d := (c.A0 + c.A1 + c.A2) - (1 + c.B1 + c.B2); math.Abs(d) > eps {
					t.Fatalf("notch: DC gain mismatch %v", d)
				}
			}
		}
	}
}

func TestTypeChangeRederivesAllCoefficients(t *testing.T) {
	direct := New(44100)
	direct.Set(HighPass, 2500, 3)

	switched := New(44100)
	switched.Set(LowPass, 2500, 3)
	switched.SetType(BandPass)
	switched.SetType(HighPass)

	if direct.Coefficients() != switched.Coefficients() {
		t.Fatalf("coefficients depend on history: %+v vs %+v", direct.Coefficients(), switched.Coefficients())
	}
}

func TestNotchRejectsCenter(t *testing.T) {
	sr := 44100
	f := New(sr)
	f.Set(Notch, 1000, 2)
	w := math.Pi * 1000 / (0.5 * float64(sr))
	if g := gainAt(f.Coefficients(), w); g > 1e-6 {
		t.Fatalf("notch gain at center = %v", g)
	}
}

func TestLowPassAttenuatesHighFrequency(t *testing.T) {
	sr := 44100
	f := New(sr)
	f.Set(LowPass, 500, 0.707)
	var peak float64
	for i := 0; i < sr/10; i++ {
		x := math.Sin(2 * math.Pi * 10000 * float64(i) / float64(sr))
		y := f.Process(x)
		if i > 1000 && math.Abs(y) > peak {
			peak = math.Abs(y)
		}
	}
	if peak > 0.05 {
		t.Fatalf("10 kHz through 500 Hz lowpass peaked at %v", peak)
	}
}

func TestSettersClamp(t *testing.T) {
	f := New(44100)
	f.SetCutoff(5)
	f.SetResonance(50)
	if f.Cutoff() != MinCutoff || f.Resonance() != MaxResonance {
		t.Fatalf("cutoff=%v resonance=%v", f.Cutoff(), f.Resonance())
	}
	f.SetCutoff(1e6)
	f.SetResonance(0)
	if f.Cutoff() != MaxCutoff || f.Resonance() != MinResonance {
		t.Fatalf("cutoff=%v resonance=%v", f.Cutoff(), f.Resonance())
	}
}

func TestResetClearsHistory(t *testing.T) {
	f := New(44100)
	buf := []float32{1, 0.5, -0.25, 0.75}
	f.ProcessBuffer(buf)
	f.Reset()
	if y := f.Process(0); y != 0 {
		t.Fatalf("reset filter produced %v from silence", y)
	}
}

func TestParseType(t *testing.T) {
	for typ := LowPass; typ <= Notch; typ++ {
		got, err := ParseType(typ.String())
		if err != nil || got != typ {
			t.Fatalf("ParseType(%q) = %v, %v", typ.String(), got, err)
		}
	}
	if _, err := ParseType("comb"); err != ErrUnknownType {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}
