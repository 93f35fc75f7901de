package main

import (
	"testing"

	"github.com/cbegin/polysynth-go"
	"github.com/cbegin/polysynth-go/internal/osc"
)

func newTestGame(t *testing.T) *game {
	t.Helper()
	e, err := polysynth.New(polysynth.DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return newGame(e)
}

func TestMeterFraction(t *testing.T) {
	tests := []struct {
		db   float64
		want float64
	}{
		{db: -120, want: 0},
		{db: meterFloorDB, want: 0},
		{db: -24, want: 0.5},
		{db: 0, want: 1},
		{db: 6, want: 1},
	}
	for _, tc := range tests {
		if got := meterFraction(tc.db); got != tc.want {
			t.Fatalf("meterFraction(%v)=%v want %v", tc.db, got, tc.want)
		}
	}
}

func TestFindZeroCrossing(t *testing.T) {
	if got := findZeroCrossing([]float32{0.5, -0.2, -0.1, 0.3, 0.6, 0.2, -0.4, 0.1}, 6); got != 3 {
		t.Fatalf("crossing=%d want 3", got)
	}
	if got := findZeroCrossing([]float32{0.1, 0.2, 0.3}, 10); got != 0 {
		t.Fatalf("no crossing=%d want 0", got)
	}
}

func TestLayoutHasAStripPerChannel(t *testing.T) {
	g := newTestGame(t)
	l := g.layoutRects()
	if len(l.strips) != g.engine.NumChannels() {
		t.Fatalf("strips=%d want %d", len(l.strips), g.engine.NumChannels())
	}
	for i, s := range l.strips {
		header, scope, vu, volume := stripParts(s)
		if !header.In(s) || !scope.In(s) || !vu.In(s) || !volume.In(s) {
			t.Fatalf("strip %d parts escape %v", i, s)
		}
		if scope.Overlaps(vu) {
			t.Fatalf("strip %d scope overlaps meter", i)
		}
		if l.status.Overlaps(s) {
			t.Fatalf("strip %d overlaps the status row", i)
		}
	}
}

func TestCycleWaveformWraps(t *testing.T) {
	g := newTestGame(t)
	ch := g.engine.Channel(5)
	ch.SetWaveform(osc.Noise)
	g.cycleWaveform(5)
	if got := ch.Waveform(); got != osc.Sine {
		t.Fatalf("after noise got %v want sine", got)
	}
	g.cycleWaveformBy(5, -1)
	if got := ch.Waveform(); got != osc.Noise {
		t.Fatalf("backwards from sine got %v want noise", got)
	}
	g.cycleWaveformBy(99, 1)
}

func TestToggleTransport(t *testing.T) {
	g := newTestGame(t)
	g.toggleTransport()
	if !g.engine.Patterns().Playing() {
		t.Fatal("transport not playing after toggle")
	}
	g.toggleTransport()
	if g.engine.Patterns().Playing() {
		t.Fatal("transport still playing after second toggle")
	}
}
