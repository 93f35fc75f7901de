package envelope

// Stage is the current segment of an ADSR envelope.
type Stage int

const (
	Attack Stage = iota
	Decay
	Sustain
	Release
	Finished
)

func (s Stage) String() string {
	switch s {
	case Attack:
		return "attack"
	case Decay:
		return "decay"
	case Sustain:
		return "sustain"
	case Release:
		return "release"
	default:
		return "finished"
	}
}

const (
	MinTime = 0.001
	MaxTime = 10.0

	// attackTolerance absorbs the rounding left after summing many
	// 1/(a*sr) increments so the peak is reached on the expected sample.
	attackTolerance = 1e-9
)

// Params holds envelope times in seconds and the sustain level (0-1).
type Params struct {
	AttackSec  float64 `yaml:"attack"`
	DecaySec   float64 `yaml:"decay"`
	SustainLvl float64 `yaml:"sustain"`
	ReleaseSec float64 `yaml:"release"`
}

func DefaultParams() Params {
	return Params{
		AttackSec:  0.01,
		DecaySec:   0.2,
		SustainLvl: 0.7,
		ReleaseSec: 0.5,
	}
}

// Clamped returns p with every field forced into its valid range.
func (p Params) Clamped() Params {
	return Params{
		AttackSec:  clamp(p.AttackSec, MinTime, MaxTime),
		DecaySec:   clamp(p.DecaySec, MinTime, MaxTime),
		SustainLvl: clamp(p.SustainLvl, 0, 1),
		ReleaseSec: clamp(p.ReleaseSec, MinTime, MaxTime),
	}
}

// Envelope is a linear ADSR generator advanced one sample at a time.
type Envelope struct {
	sampleRate float64
	params     Params
	stage      Stage
	level      float64
	released   bool

	attackInc  float64
	decayInc   float64
	releaseInc float64
}

func New(sampleRate int) *Envelope {
	e := &Envelope{sampleRate: float64(sampleRate)}
	e.params = DefaultParams()
	e.Reset()
	e.recalc()
	return e
}

// NoteOn restarts the envelope from silence.
func (e *Envelope) NoteOn() {
	e.stage = Attack
	e.level = 0
	e.released = false
	e.recalc()
}

// NoteOff enters the release stage from whatever level the envelope is at.
// Release runs at a fixed slope of 1/(release*sr) per sample, so a note
// released at level L fades out in L*release seconds.
func (e *Envelope) NoteOff() {
	if e.released {
		return
	}
	e.released = true
	e.stage = Release
}

// Reset silences the envelope immediately.
func (e *Envelope) Reset() {
	e.stage = Finished
	e.level = 0
	e.released = false
}

// Next advances one sample and returns the level in [0, 1].
func (e *Envelope) Next() float64 {
	switch e.stage {
	case Attack:
		e.level += e.attackInc
		if e.level >= 1-attackTolerance {
			e.level = 1
			e.stage = Decay
		}
	case Decay:
		e.level -= e.decayInc
		if e.level <= e.params.SustainLvl {
			e.level = e.params.SustainLvl
			e.stage = Sustain
		}
	case Sustain:
		e.level = e.params.SustainLvl
	case Release:
		e.level -= e.releaseInc
		if e.level <= 0 {
			e.level = 0
			e.stage = Finished
		}
	case Finished:
		e.level = 0
		return 0
	}
	return clamp(e.level, 0, 1)
}

func (e *Envelope) Finished() bool  { return e.stage == Finished }
func (e *Envelope) Releasing() bool { return e.stage == Release }
func (e *Envelope) Stage() Stage    { return e.stage }
func (e *Envelope) Level() float64  { return e.level }
func (e *Envelope) Params() Params  { return e.params }

// Set replaces all four parameters at once.
func (e *Envelope) Set(p Params) {
	e.params = p.Clamped()
	e.recalc()
}

func (e *Envelope) SetAttack(sec float64) {
	e.params.AttackSec = clamp(sec, MinTime, MaxTime)
	e.recalc()
}

func (e *Envelope) SetDecay(sec float64) {
	e.params.DecaySec = clamp(sec, MinTime, MaxTime)
	e.recalc()
}

func (e *Envelope) SetSustain(level float64) {
	e.params.SustainLvl = clamp(level, 0, 1)
	e.recalc()
}

func (e *Envelope) SetRelease(sec float64) {
	e.params.ReleaseSec = clamp(sec, MinTime, MaxTime)
	e.recalc()
}

func (e *Envelope) recalc() {
	e.attackInc = 1.0 / (e.params.AttackSec * e.sampleRate)
	e.decayInc = (1.0 - e.params.SustainLvl) / (e.params.DecaySec * e.sampleRate)
	e.releaseInc = 1.0 / (e.params.ReleaseSec * e.sampleRate)
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
