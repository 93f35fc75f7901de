package pattern

import "sync"

// Note is one event in a pattern. Beat and Duration are in beats.
type Note struct {
	Beat     int `yaml:"beat"`
	MidiNote int `yaml:"note"`
	Velocity int `yaml:"velocity"`
	Duration int `yaml:"duration"`
}

// Pattern is a named list of notes. It is safe for concurrent use.
type Pattern struct {
	mu     sync.RWMutex
	name   string
	length int
	notes  []Note
}

func NewPattern(name string, lengthInBeats int) *Pattern {
	return &Pattern{name: name, length: lengthInBeats}
}

func (p *Pattern) AddNote(beat, midiNote, velocity, duration int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, Note{Beat: beat, MidiNote: midiNote, Velocity: velocity, Duration: duration})
}

// Notes returns a copy of the notes in insertion order.
func (p *Pattern) Notes() []Note {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Note(nil), p.notes...)
}

func (p *Pattern) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = nil
}

func (p *Pattern) Name() string { return p.name }
func (p *Pattern) Length() int  { return p.length }

// notesAt appends the notes scheduled on beat to dst.
func (p *Pattern) notesAt(dst []Note, beat int) []Note {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, n := range p.notes {
		if n.Beat == beat {
			dst = append(dst, n)
		}
	}
	return dst
}

func defaultPatterns() []*Pattern {
	kick := NewPattern("Kick", 16)
	kick.AddNote(0, 36, 127, 1)
	kick.AddNote(4, 36, 100, 1)
	kick.AddNote(8, 36, 127, 1)
	kick.AddNote(12, 36, 110, 1)

	snare := NewPattern("Snare", 16)
	snare.AddNote(4, 38, 120, 1)
	snare.AddNote(12, 38, 115, 1)

	hihat := NewPattern("Hi-Hat", 16)
	for i := 0; i < 16; i += 2 {
		hihat.AddNote(i, 42, 80+(i%4)*10, 1)
	}

	bass := NewPattern("Bass", 16)
	bass.AddNote(0, 48, 100, 4)
	bass.AddNote(4, 55, 90, 2)
	bass.AddNote(8, 48, 100, 4)
	bass.AddNote(12, 52, 95, 2)

	melody := NewPattern("Melody", 16)
	melody.AddNote(0, 72, 90, 2)
	melody.AddNote(2, 74, 85, 2)
	melody.AddNote(4, 76, 90, 2)
	melody.AddNote(6, 74, 85, 2)
	melody.AddNote(8, 72, 90, 4)
	melody.AddNote(12, 69, 80, 4)

	return []*Pattern{kick, snare, hihat, bass, melody}
}
