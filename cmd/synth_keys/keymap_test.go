package main

import (
	"testing"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/polysynth-go/internal/osc"
)

type recorder struct {
	msgs     []gomidi.Message
	pending  []func()
	waveform osc.Waveform
}

func newTestKeyboard(r *recorder) *keyboard {
	return &keyboard{
		dispatch: func(m gomidi.Message) bool { r.msgs = append(r.msgs, m); return true },
		waveform: func(w osc.Waveform) { r.waveform = w },
		after:    func(_ time.Duration, fn func()) { r.pending = append(r.pending, fn) },
		channel:  2,
		octave:   4,
		velocity: 100,
		gate:     time.Millisecond,
	}
}

func TestPianoKeysPlayGatedNotes(t *testing.T) {
	for _, tc := range []struct {
		key  byte
		note uint8
	}{
		{'a', 60}, {'w', 61}, {'h', 69}, {'k', 72},
	} {
		r := &recorder{}
		kb := newTestKeyboard(r)
		if !kb.press(tc.key) {
			t.Fatalf("%q quit", tc.key)
		}
		var ch, key, vel uint8
		if len(r.msgs) != 1 || !r.msgs[0].GetNoteStart(&ch, &key, &vel) || ch != 2 || key != tc.note {
			t.Fatalf("%q: messages %v", tc.key, r.msgs)
		}
		if len(r.pending) != 1 {
			t.Fatalf("%q: no gate scheduled", tc.key)
		}
		r.pending[0]()
		if len(r.msgs) != 2 || !r.msgs[1].GetNoteEnd(&ch, &key) || key != tc.note {
			t.Fatalf("%q: missing note off %v", tc.key, r.msgs)
		}
	}
}

func TestOctaveAndWaveformKeys(t *testing.T) {
	r := &recorder{}
	kb := newTestKeyboard(r)
	for i := 0; i < 10; i++ {
		kb.press('x')
	}
	if kb.octave != maxOctave {
		t.Fatalf("octave = %d", kb.octave)
	}
	for i := 0; i < 10; i++ {
		kb.press('z')
	}
	if kb.octave != minOctave {
		t.Fatalf("octave = %d", kb.octave)
	}
	kb.press('4')
	if r.waveform != osc.Triangle {
		t.Fatalf("waveform = %v", r.waveform)
	}
	if kb.press('q') {
		t.Fatal("q should quit")
	}
	if len(r.msgs) != 0 {
		t.Fatalf("control keys sent notes: %v", r.msgs)
	}
}
