package main

import (
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/polysynth-go/internal/midi"
	"github.com/cbegin/polysynth-go/internal/osc"
)

// pianoKeys maps the home and upper letter rows to one chromatic octave,
// laid out like a piano: white keys on asdf..., black keys on we ty u.
var pianoKeys = map[byte]int{
	'a': 0, 'w': 1, 's': 2, 'e': 3, 'd': 4, 'f': 5, 't': 6,
	'g': 7, 'y': 8, 'h': 9, 'u': 10, 'j': 11, 'k': 12,
}

const (
	minOctave = 1
	maxOctave = 7
)

// keyboard turns key presses into MIDI messages for a dispatcher. Terminals
// report no key releases, so every note is ended after gate.
type keyboard struct {
	dispatch func(gomidi.Message) bool
	waveform func(osc.Waveform)
	after    func(time.Duration, func())
	channel  uint8
	octave   int
	velocity uint8
	gate     time.Duration
}

func newKeyboard(d *midi.Dispatcher, setWaveform func(osc.Waveform), channel int, gate time.Duration) *keyboard {
	return &keyboard{
		dispatch: d.Dispatch,
		waveform: setWaveform,
		after:    func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
		channel:  midi.ClampChannel(channel),
		octave:   4,
		velocity: 100,
		gate:     gate,
	}
}

// press handles one key and reports false when the user asked to quit.
func (k *keyboard) press(b byte) bool {
	if semitone, ok := pianoKeys[b]; ok {
		note := uint8(min(127, (k.octave+1)*12+semitone))
		k.dispatch(gomidi.NoteOn(k.channel, note, k.velocity))
		k.after(k.gate, func() { k.dispatch(gomidi.NoteOff(k.channel, note)) })
		return true
	}
	switch {
	case b == 'z':
		k.octave = max(minOctave, k.octave-1)
	case b == 'x':
		k.octave = min(maxOctave, k.octave+1)
	case b >= '1' && b <= '5':
		k.waveform(osc.Waveform(b - '1'))
	case b == 'q' || b == 3: // q or ctrl-c
		return false
	}
	return true
}
