package midi

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/polysynth-go/internal/channel"
	"github.com/cbegin/polysynth-go/internal/effects"
	"github.com/cbegin/polysynth-go/internal/pattern"
)

type noteCall struct {
	on   bool
	ch   int
	freq float64
	vel  float64
}

type fakeSynth struct {
	calls    []noteCall
	channels []*channel.Channel
	fx       *effects.Chain
}

func newFakeSynth(n int) *fakeSynth {
	s := &fakeSynth{fx: effects.NewChain(44100)}
	for i := 0; i < n; i++ {
		s.channels = append(s.channels, channel.New(i, 44100))
	}
	return s
}

func (s *fakeSynth) NoteOn(ch int, freq, vel float64) {
	s.calls = append(s.calls, noteCall{on: true, ch: ch, freq: freq, vel: vel})
}

func (s *fakeSynth) NoteOff(ch int, freq float64) {
	s.calls = append(s.calls, noteCall{ch: ch, freq: freq})
}

func (s *fakeSynth) NumChannels() int               { return len(s.channels) }
func (s *fakeSynth) Channel(i int) *channel.Channel { return s.channels[i] }
func (s *fakeSynth) Effects() *effects.Chain        { return s.fx }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchNotes(t *testing.T) {
	s := newFakeSynth(8)
	d := NewDispatcher(s, quietLogger())

	if !d.Dispatch(gomidi.NoteOn(2, 69, 127)) {
		t.Fatal("note on not handled")
	}
	if !d.Dispatch(gomidi.NoteOff(2, 69)) {
		t.Fatal("note off not handled")
	}
	// Note-on with zero velocity is a note end.
	if !d.Dispatch(gomidi.NoteOn(3, 60, 0)) {
		t.Fatal("zero-velocity note on not handled")
	}
	if d.Dispatch(gomidi.NoteOn(12, 60, 100)) {
		t.Fatal("channel beyond the synth should be ignored")
	}
	if len(s.calls) != 3 {
		t.Fatalf("calls = %+v", s.calls)
	}
	on := s.calls[0]
	if !on.on || on.ch != 2 || math.Abs(on.freq-440) > 1e-9 || on.vel != 1 {
		t.Fatalf("unexpected note on %+v", on)
	}
	if s.calls[1].on || s.calls[1].ch != 2 || math.Abs(s.calls[1].freq-440) > 1e-9 {
		t.Fatalf("unexpected note off %+v", s.calls[1])
	}
	if s.calls[2].on || math.Abs(s.calls[2].freq-261.6255653) > 1e-6 {
		t.Fatalf("unexpected note end %+v", s.calls[2])
	}
}

func TestDispatchControlChanges(t *testing.T) {
	s := newFakeSynth(4)
	d := NewDispatcher(s, quietLogger())
	c := s.Channel(1)

	for _, tc := range []struct {
		name  string
		cc    uint8
		value uint8
		check func() bool
	}{
		{"mod wheel", 1, 127, func() bool { return c.ModWheel() == 1 }},
		{"volume", 7, 0, func() bool { return c.Volume() == 0 }},
		{"pan centre", 10, 64, func() bool { return c.Pan() == 0 }},
		{"pan hard left", 10, 0, func() bool { return c.Pan() == -1 }},
		{"pan hard right", 10, 127, func() bool { return c.Pan() == 1 }},
		{"sustain", 64, 127, func() bool { return c.Sustain() }},
		{"cutoff max", 74, 127, func() bool { return math.Abs(c.Settings().Cutoff-20000) < 1e-6 }},
		{"cutoff min", 74, 0, func() bool { return math.Abs(c.Settings().Cutoff-20) < 1e-9 }},
		{"resonance", 71, 127, func() bool { return math.Abs(c.Settings().Resonance-10) < 1e-9 }},
		{"attack", 73, 0, func() bool { return c.Settings().Envelope.AttackSec == envTimeMin }},
		{"reverb send", 91, 64, func() bool {
			return s.fx.Enabled(effects.KindReverb) && math.Abs(s.fx.Params().Reverb.Mix-64.0/127) < 1e-9
		}},
		{"reverb send off", 91, 0, func() bool { return !s.fx.Enabled(effects.KindReverb) }},
		{"delay send", 94, 127, func() bool { return s.fx.Enabled(effects.KindDelay) }},
		{"chorus send", 93, 127, func() bool { return s.fx.Enabled(effects.KindChorus) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if !d.Dispatch(gomidi.ControlChange(1, tc.cc, tc.value)) {
				t.Fatalf("CC%d not handled", tc.cc)
			}
			if !tc.check() {
				t.Fatalf("CC%d=%d did not take effect", tc.cc, tc.value)
			}
		})
	}
	if d.Dispatch(gomidi.ControlChange(1, 3, 10)) {
		t.Fatal("unmapped controller reported as handled")
	}
}

func TestVolumeAndExpressionCombine(t *testing.T) {
	s := newFakeSynth(1)
	d := NewDispatcher(s, quietLogger())
	d.Dispatch(gomidi.ControlChange(0, 7, 127))
	d.Dispatch(gomidi.ControlChange(0, 11, 0))
	if v := s.Channel(0).Volume(); v != 0 {
		t.Fatalf("volume with zero expression = %v", v)
	}
	d.Dispatch(gomidi.ControlChange(0, 11, 127))
	if v := s.Channel(0).Volume(); v != 1 {
		t.Fatalf("volume = %v, want 1", v)
	}
}

func TestExpressionFollowsOutsideVolumeChanges(t *testing.T) {
	s := newFakeSynth(1)
	d := NewDispatcher(s, quietLogger())
	d.Dispatch(gomidi.ControlChange(0, 7, 127))
	s.Channel(0).SetVolume(0.3)
	d.Dispatch(gomidi.ControlChange(0, 11, 64))
	want := 0.3 * CCToValue(64)
	if v := s.Channel(0).Volume(); math.Abs(v-want) > 1e-9 {
		t.Fatalf("volume = %v, want %v", v, want)
	}
	d.Dispatch(gomidi.ControlChange(0, 11, 127))
	if v := s.Channel(0).Volume(); math.Abs(v-0.3) > 1e-9 {
		t.Fatalf("volume back at full expression = %v, want 0.3", v)
	}
}

func TestDispatchPitchBendAndAftertouch(t *testing.T) {
	s := newFakeSynth(1)
	d := NewDispatcher(s, quietLogger())
	if !d.Dispatch(gomidi.Pitchbend(0, 8191)) {
		t.Fatal("pitch bend not handled")
	}
	if b := s.Channel(0).PitchBend(); math.Abs(b-2) > 1e-3 {
		t.Fatalf("bend = %v, want ~2", b)
	}
	d.Dispatch(gomidi.Pitchbend(0, -8192))
	if b := s.Channel(0).PitchBend(); b != -2 {
		t.Fatalf("bend = %v, want -2", b)
	}
	if !d.Dispatch(gomidi.AfterTouch(0, 127)) {
		t.Fatal("aftertouch not handled")
	}
	if a := s.Channel(0).Aftertouch(); a != 1 {
		t.Fatalf("aftertouch = %v", a)
	}
}

func TestValueConversions(t *testing.T) {
	for _, tc := range []struct {
		in   float64
		want uint8
	}{
		{-1, 0}, {0, 0}, {0.5, 64}, {1, 127}, {3, 127},
	} {
		if got := ValueToCC(tc.in); got != tc.want {
			t.Errorf("ValueToCC(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if ClampChannel(-3) != 0 || ClampChannel(40) != 15 || ClampChannel(9) != 9 {
		t.Fatal("ClampChannel out of range")
	}
	var ch, key, vel uint8
	if !NoteOn(20, 440, 2).GetNoteStart(&ch, &key, &vel) || ch != 15 || key != 69 || vel != 127 {
		t.Fatalf("NoteOn = ch %d key %d vel %d", ch, key, vel)
	}
	var cc, val uint8
	msg, ok := ControlChange(0, ParamCutoff, 0.5)
	if !ok || !msg.GetControlChange(&ch, &cc, &val) || cc != 74 || val != 64 {
		t.Fatalf("ControlChange = cc %d val %d ok %v", cc, val, ok)
	}
	if p, ok := ParamForCC(94); !ok || p != ParamDelaySend {
		t.Fatalf("ParamForCC(94) = %v, %v", p, ok)
	}
	if len(CCMap()) != 13 {
		t.Fatalf("CCMap has %d entries", len(CCMap()))
	}
}

func TestExportPatterns(t *testing.T) {
	m := pattern.NewMatrix(4, 100, 16, pattern.WithoutDefaultPatterns())
	p := m.CreatePattern("riff", 16)
	p.AddNote(0, 60, 100, 2)
	p.AddNote(4, 62, 80, 1)
	if err := m.AssignPattern(2, "riff", 1, 0); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := ExportPatterns(&buf, m, 2); err != nil {
		t.Fatal(err)
	}
	sm, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(sm.Tracks) != 2 {
		t.Fatalf("tracks = %d, want tempo + 1", len(sm.Tracks))
	}
	if tc := sm.TempoChanges(); len(tc) == 0 || math.Abs(tc[0].BPM-100) > 1e-6 {
		t.Fatalf("tempo changes = %+v", tc)
	}

	type hit struct {
		tick uint32
		on   bool
		key  uint8
	}
	var got []hit
	var tick uint32
	for _, ev := range sm.Tracks[1] {
		tick += ev.Delta
		var ch, key, vel uint8
		msg := gomidi.Message(ev.Message)
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			if ch != 2 {
				t.Fatalf("note on channel %d", ch)
			}
			got = append(got, hit{tick, true, key})
		case msg.GetNoteEnd(&ch, &key):
			got = append(got, hit{tick, false, key})
		}
	}
	want := []hit{
		{0, true, 60},
		{1920, false, 60},
		{3840, true, 62},
		{4800, false, 62},
		{15360, true, 60},
		{17280, false, 60},
		{19200, true, 62},
		{20160, false, 62},
	}
	if len(got) != len(want) {
		t.Fatalf("events = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestExportWithoutAssignments(t *testing.T) {
	m := pattern.NewMatrix(4, 120, 16)
	if err := ExportPatterns(io.Discard, m, 1); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport, got %v", err)
	}
}
