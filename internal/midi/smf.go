package midi

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/polysynth-go/internal/pattern"
)

// TicksPerBeat is the SMF resolution used for exported patterns.
const TicksPerBeat = 960

var ErrNothingToExport = errors.New("no pattern assignments to export")

type event struct {
	tick uint32
	off  bool
	msg  gomidi.Message
}

// ExportPatterns writes the matrix's channel assignments as a format 1 SMF:
// a tempo track followed by one track per channel that has notes. The
// pattern cycle is repeated cycles times.
func ExportPatterns(w io.Writer, m *pattern.Matrix, cycles int) error {
	sm, err := buildSMF(m, cycles)
	if err != nil {
		return err
	}
	if _, err := sm.WriteTo(w); err != nil {
		return fmt.Errorf("write smf: %w", err)
	}
	return nil
}

// ExportPatternsFile is ExportPatterns into a file at path.
func ExportPatternsFile(path string, m *pattern.Matrix, cycles int) error {
	sm, err := buildSMF(m, cycles)
	if err != nil {
		return err
	}
	if err := sm.WriteFile(path); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write smf %s: %w", path, err)
	}
	return nil
}

func buildSMF(m *pattern.Matrix, cycles int) (*smf.SMF, error) {
	if cycles < 1 {
		cycles = 1
	}
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(TicksPerBeat)

	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(4, 4))
	tempo.Add(0, smf.MetaTempo(float64(m.BPM())))
	tempo.Close(0)
	if err := sm.Add(tempo); err != nil {
		return nil, fmt.Errorf("add tempo track: %w", err)
	}

	cycleTicks := uint32(m.BeatsPerPattern()) * TicksPerBeat
	tracks := 0
	for ch := 0; ch < m.MaxChannels(); ch++ {
		score := m.Score(ch)
		if len(score) == 0 {
			continue
		}
		events := channelEvents(ch, score, cycles, cycleTicks)
		var track smf.Track
		track.Add(0, smf.MetaTrackSequenceName(fmt.Sprintf("Channel %d", ch+1)))
		var last uint32
		for _, ev := range events {
			track.Add(ev.tick-last, ev.msg)
			last = ev.tick
		}
		end := uint32(cycles) * cycleTicks
		var tail uint32
		if end > last {
			tail = end - last
		}
		track.Close(tail)
		if err := sm.Add(track); err != nil {
			return nil, fmt.Errorf("add track %d: %w", ch, err)
		}
		tracks++
	}
	if tracks == 0 {
		return nil, ErrNothingToExport
	}
	return sm, nil
}

// channelEvents expands a score into absolute-tick note on/off pairs,
// ordered by tick with note-offs ahead of note-ons on the same tick so a
// repeated note is not cut by its own predecessor.
func channelEvents(ch int, score []pattern.Note, cycles int, cycleTicks uint32) []event {
	mch := ClampChannel(ch)
	events := make([]event, 0, 2*len(score)*cycles)
	for c := 0; c < cycles; c++ {
		base := uint32(c) * cycleTicks
		for _, n := range score {
			key := uint8(clampInt(n.MidiNote, 0, 127))
			dur := n.Duration
			if dur < 1 {
				dur = 1
			}
			on := base + uint32(n.Beat)*TicksPerBeat
			off := on + uint32(dur)*TicksPerBeat
			events = append(events,
				event{tick: on, msg: gomidi.NoteOn(mch, key, uint8(clampInt(n.Velocity, 1, 127)))},
				event{tick: off, off: true, msg: gomidi.NoteOff(mch, key)},
			)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})
	return events
}
