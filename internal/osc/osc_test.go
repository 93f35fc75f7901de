package osc

import (
	"math"
	"testing"
)

func TestSampleKnownPoints(t *testing.T) {
	for _, tc := range []struct {
		name  string
		wave  Waveform
		phase float64
		want  float64
	}{
		{"sine zero", Sine, 0, 0},
		{"sine quarter", Sine, 0.25, 1},
		{"sine three quarters", Sine, 0.75, -1},
		{"saw zero", Sawtooth, 0, 0},
		{"saw quarter", Sawtooth, 0.25, 0.5},
		{"saw just past half", Sawtooth, 0.5, -1},
		{"square first half", Square, 0.1, 1},
		{"square second half", Square, 0.6, -1},
		{"triangle zero", Triangle, 0, 0},
		{"triangle quarter", Triangle, 0.25, 1},
		{"triangle half", Triangle, 0.5, 0},
		{"triangle three quarters", Triangle, 0.75, -1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := Sample(tc.wave, tc.phase)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Sample(%v, %v) = %v, want %v", tc.wave, tc.phase, got, tc.want)
			}
		})
	}
}

func TestSampleStaysInRange(t *testing.T) {
	for w := Sine; w <= Noise; w++ {
		for i := 0; i < 1000; i++ {
			v := Sample(w, float64(i)/1000)
			if v < -1 || v > 1 {
				t.Fatalf("%v at phase %v out of range: %v", w, float64(i)/1000, v)
			}
		}
	}
}

func TestNoiseIgnoresPhase(t *testing.T) {
	first := Sample(Noise, 0.3)
	for i := 0; i < 16; i++ {
		if Sample(Noise, 0.3) != first {
			return
		}
	}
	t.Fatal("noise returned the same value for every call")
}

func TestParseWaveform(t *testing.T) {
	for w := Sine; w <= Noise; w++ {
		got, err := ParseWaveform(w.String())
		if err != nil || got != w {
			t.Fatalf("ParseWaveform(%q) = %v, %v", w.String(), got, err)
		}
	}
	if _, err := ParseWaveform("organ"); err != ErrUnknownWaveform {
		t.Fatalf("expected ErrUnknownWaveform, got %v", err)
	}
}
