package pattern

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestMatrix(opts ...Option) (*Matrix, *fakeClock) {
	clk := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMatrix(8, 120, 16, append([]Option{WithClock(clk.Now)}, opts...)...)
	return m, clk
}

func TestBeatCounterWraps(t *testing.T) {
	m, clk := newTestMatrix()
	m.Play()
	for n := 1; n <= 40; n++ {
		clk.Advance(m.BeatInterval())
		m.Update()
		if got := m.CurrentBeat(); got != n%16 {
			t.Fatalf("after %d updates beat = %d, want %d", n, got, n%16)
		}
	}
	if m.Beats() != 40 {
		t.Fatalf("Beats() = %d", m.Beats())
	}
}

func TestUpdateWaitsForInterval(t *testing.T) {
	m, clk := newTestMatrix()
	m.Play()
	clk.Advance(m.BeatInterval() - time.Millisecond)
	if notes := m.Update(); notes != nil || m.CurrentBeat() != 0 {
		t.Fatalf("beat advanced early: %v beat=%d", notes, m.CurrentBeat())
	}
	clk.Advance(time.Millisecond)
	m.Update()
	if m.CurrentBeat() != 1 {
		t.Fatalf("beat = %d, want 1", m.CurrentBeat())
	}
}

func TestStoppedMatrixEmitsNothing(t *testing.T) {
	m, clk := newTestMatrix()
	if err := m.AssignPattern(0, "Hi-Hat", 1, 0); err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Hour)
	if notes := m.Update(); notes != nil {
		t.Fatalf("stopped matrix emitted %v", notes)
	}
}

func TestNotesAtNewBeatWithTransposeAndVolume(t *testing.T) {
	m, clk := newTestMatrix()
	p := m.CreatePattern("Test", 16)
	p.AddNote(1, 60, 100, 2)
	p.AddNote(2, 62, 100, 1)
	if err := m.AssignPattern(3, "Test", 0.5, 7); err != nil {
		t.Fatal(err)
	}
	m.Play()
	clk.Advance(m.BeatInterval())
	got := m.Update()
	want := map[int][]Note{3: {{Beat: 1, MidiNote: 67, Velocity: 50, Duration: 2}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Update() = %v, want %v", got, want)
	}
}

func TestVelocityClamped(t *testing.T) {
	m, clk := newTestMatrix(WithoutDefaultPatterns())
	p := m.CreatePattern("Accent", 4)
	p.AddNote(1, 60, 100, 1)
	p.AddNote(2, 60, 1, 1)
	_ = m.AssignPattern(0, "Accent", 3, 0)
	_ = m.AssignPattern(1, "Accent", 0.1, 0)
	m.Play()
	clk.Advance(m.BeatInterval())
	if v := m.Update()[0][0].Velocity; v != 127 {
		t.Fatalf("velocity = %d, want 127", v)
	}
	clk.Advance(m.BeatInterval())
	if v := m.Update()[1][0].Velocity; v != 1 {
		t.Fatalf("velocity = %d, want 1", v)
	}
}

func TestMuteAndLayering(t *testing.T) {
	m, clk := newTestMatrix()
	_ = m.AssignPattern(0, "Kick", 1, 0)
	_ = m.AddPattern(0, "Snare", 1, 0)
	_ = m.AssignPattern(1, "Snare", 1, 0)
	if err := m.MuteChannel(1, true); err != nil {
		t.Fatal(err)
	}
	m.Play()
	var beat4 map[int][]Note
	for i := 0; i < 4; i++ {
		clk.Advance(m.BeatInterval())
		beat4 = m.Update()
	}
	if len(beat4[0]) != 2 {
		t.Fatalf("layered channel 0 at beat 4: %v", beat4[0])
	}
	if _, ok := beat4[1]; ok {
		t.Fatalf("muted channel emitted %v", beat4[1])
	}
	if a := m.Assignments(1); len(a) != 1 || !a[0].Muted {
		t.Fatalf("assignments = %+v", a)
	}
}

func TestAssignReplacesAndClear(t *testing.T) {
	m, _ := newTestMatrix()
	_ = m.AssignPattern(2, "Kick", 1, 0)
	_ = m.AddPattern(2, "Snare", 1, 0)
	_ = m.AssignPattern(2, "Bass", 0.8, -12)
	a := m.Assignments(2)
	if len(a) != 1 || a[0].Pattern != "Bass" || a[0].Transpose != -12 {
		t.Fatalf("assignments = %+v", a)
	}
	if err := m.ClearChannel(2); err != nil {
		t.Fatal(err)
	}
	if len(m.Assignments(2)) != 0 {
		t.Fatal("ClearChannel left assignments")
	}
}

func TestAssignErrors(t *testing.T) {
	m, _ := newTestMatrix()
	if err := m.AssignPattern(0, "Nope", 1, 0); !errors.Is(err, ErrUnknownPattern) {
		t.Fatalf("err = %v", err)
	}
	if err := m.AssignPattern(8, "Kick", 1, 0); !errors.Is(err, ErrChannelRange) {
		t.Fatalf("err = %v", err)
	}
	if err := m.MuteChannel(-1, true); !errors.Is(err, ErrChannelRange) {
		t.Fatalf("err = %v", err)
	}
}

func TestStopRewindsPauseDoesNot(t *testing.T) {
	m, clk := newTestMatrix()
	m.Play()
	for i := 0; i < 3; i++ {
		clk.Advance(m.BeatInterval())
		m.Update()
	}
	m.SetPaused(true)
	if m.Playing() || m.CurrentBeat() != 3 {
		t.Fatalf("pause: playing=%v beat=%d", m.Playing(), m.CurrentBeat())
	}
	clk.Advance(time.Hour)
	m.SetPaused(false)
	if m.Update() != nil || m.CurrentBeat() != 3 {
		t.Fatal("resume fired a beat immediately")
	}
	m.Stop()
	if m.Playing() || m.CurrentBeat() != 0 {
		t.Fatalf("stop: playing=%v beat=%d", m.Playing(), m.CurrentBeat())
	}
}

func TestDefaultPatterns(t *testing.T) {
	m, _ := newTestMatrix()
	want := []string{"Bass", "Hi-Hat", "Kick", "Melody", "Snare"}
	if got := m.PatternNames(); !reflect.DeepEqual(got, want) {
		t.Fatalf("PatternNames() = %v", got)
	}
	hh := m.Pattern("Hi-Hat").Notes()
	if len(hh) != 8 || hh[1].Velocity != 100 || hh[2].Velocity != 80 {
		t.Fatalf("hi-hat = %+v", hh)
	}
	empty, _ := newTestMatrix(WithoutDefaultPatterns())
	if len(empty.PatternNames()) != 0 {
		t.Fatal("WithoutDefaultPatterns kept the library")
	}
}

func TestGenerateFromData(t *testing.T) {
	m, _ := newTestMatrix()
	p := m.GenerateFromData("Data", []float64{0.5, 0.05, -0.5, 1, 0.9}, 4)
	want := []Note{
		{Beat: 0, MidiNote: 72, Velocity: 95, Duration: 2},
		{Beat: 2, MidiNote: 48, Velocity: 95, Duration: 2},
		{Beat: 3, MidiNote: 84, Velocity: 127, Duration: 4},
	}
	if got := p.Notes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("notes = %+v, want %+v", got, want)
	}
	if m.Pattern("Data") != p || p.Length() != 4 {
		t.Fatal("generated pattern not stored")
	}
}

func TestScoreOrdersCycleNotes(t *testing.T) {
	m, _ := newTestMatrix(WithoutDefaultPatterns())
	a := m.CreatePattern("a", 16)
	a.AddNote(8, 60, 100, 1)
	a.AddNote(20, 61, 100, 1) // beyond the cycle, never played
	b := m.CreatePattern("b", 16)
	b.AddNote(2, 40, 100, 2)
	if err := m.AssignPattern(1, "a", 0.5, 12); err != nil {
		t.Fatal(err)
	}
	if err := m.AddPattern(1, "b", 1, 0); err != nil {
		t.Fatal(err)
	}
	want := []Note{
		{Beat: 2, MidiNote: 40, Velocity: 100, Duration: 2},
		{Beat: 8, MidiNote: 72, Velocity: 50, Duration: 1},
	}
	if got := m.Score(1); !reflect.DeepEqual(got, want) {
		t.Fatalf("Score = %+v, want %+v", got, want)
	}
	if err := m.MuteChannel(1, true); err != nil {
		t.Fatal(err)
	}
	if got := m.Score(1); len(got) != 0 {
		t.Fatalf("muted channel scored %+v", got)
	}
	if m.Score(99) != nil {
		t.Fatal("out-of-range channel should score nil")
	}
}
