// Package midi bridges MIDI messages onto the synth engine and exports the
// pattern matrix as a Standard MIDI File.
package midi

import (
	"log/slog"
	"math"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/polysynth-go/internal/channel"
	"github.com/cbegin/polysynth-go/internal/effects"
	"github.com/cbegin/polysynth-go/internal/voice"
)

// Param is a synth parameter reachable through a control change.
type Param int

const (
	ParamModWheel Param = iota
	ParamVolume
	ParamPan
	ParamExpression
	ParamSustain
	ParamResonance
	ParamRelease
	ParamAttack
	ParamCutoff
	ParamDecay
	ParamReverbSend
	ParamChorusSend
	ParamDelaySend
)

func (p Param) String() string {
	switch p {
	case ParamModWheel:
		return "ModWheel"
	case ParamVolume:
		return "Volume"
	case ParamPan:
		return "Pan"
	case ParamExpression:
		return "Expression"
	case ParamSustain:
		return "Sustain"
	case ParamResonance:
		return "FilterResonance"
	case ParamRelease:
		return "ReleaseTime"
	case ParamAttack:
		return "AttackTime"
	case ParamCutoff:
		return "FilterCutoff"
	case ParamDecay:
		return "DecayTime"
	case ParamReverbSend:
		return "ReverbSend"
	case ParamChorusSend:
		return "ChorusSend"
	case ParamDelaySend:
		return "DelaySend"
	}
	return "unknown"
}

var ccToParam = map[uint8]Param{
	1:  ParamModWheel,
	7:  ParamVolume,
	10: ParamPan,
	11: ParamExpression,
	64: ParamSustain,
	71: ParamResonance,
	72: ParamRelease,
	73: ParamAttack,
	74: ParamCutoff,
	75: ParamDecay,
	91: ParamReverbSend,
	93: ParamChorusSend,
	94: ParamDelaySend,
}

// ParamForCC returns the parameter bound to a controller number.
func ParamForCC(cc uint8) (Param, bool) {
	p, ok := ccToParam[cc]
	return p, ok
}

// CCForParam returns the controller number bound to p.
func CCForParam(p Param) (uint8, bool) {
	for cc, q := range ccToParam {
		if q == p {
			return cc, true
		}
	}
	return 0, false
}

// CCMap returns a copy of the controller bindings.
func CCMap() map[uint8]Param {
	out := make(map[uint8]Param, len(ccToParam))
	for cc, p := range ccToParam {
		out[cc] = p
	}
	return out
}

// ValueToCC converts a normalized 0-1 value to a 7-bit controller value.
func ValueToCC(v float64) uint8 {
	return uint8(clampInt(int(math.Round(v*127)), 0, 127))
}

// CCToValue converts a 7-bit controller value to 0-1.
func CCToValue(v uint8) float64 {
	return float64(clampInt(int(v), 0, 127)) / 127
}

// ClampChannel forces a channel index into the MIDI range 0-15.
func ClampChannel(ch int) uint8 {
	return uint8(clampInt(ch, 0, 15))
}

// NoteOn builds a note-on message for a frequency and a 0-1 velocity.
func NoteOn(ch int, freq, velocity float64) gomidi.Message {
	return gomidi.NoteOn(ClampChannel(ch), noteForFrequency(freq), ValueToCC(velocity))
}

// NoteOff builds a note-off message for a frequency.
func NoteOff(ch int, freq float64) gomidi.Message {
	return gomidi.NoteOff(ClampChannel(ch), noteForFrequency(freq))
}

// ControlChange builds a control change for a normalized parameter value.
// It reports false when p has no controller binding.
func ControlChange(ch int, p Param, v float64) (gomidi.Message, bool) {
	cc, ok := CCForParam(p)
	if !ok {
		return nil, false
	}
	return gomidi.ControlChange(ClampChannel(ch), cc, ValueToCC(v)), true
}

func noteForFrequency(freq float64) uint8 {
	if freq <= 0 {
		return 0
	}
	return uint8(clampInt(voice.FrequencyToMidi(freq), 0, 127))
}

// Synth is the part of the engine a Dispatcher drives.
type Synth interface {
	NoteOn(ch int, freq, velocity float64)
	NoteOff(ch int, freq float64)
	NumChannels() int
	Channel(i int) *channel.Channel
	Effects() *effects.Chain
}

// Parameter ranges reached by the 0-127 controller sweep.
const (
	cutoffMin  = 20.0
	cutoffMax  = 20000.0
	qMin       = 0.1
	qMax       = 10.0
	envTimeMin = 0.001
	envTimeMax = 5.0
)

// Dispatcher routes incoming MIDI messages to a Synth. MIDI channels above
// the synth's channel count are ignored. Dispatch is safe to call from a
// driver's listener goroutine.
type Dispatcher struct {
	synth  Synth
	logger *slog.Logger

	mu         sync.Mutex
	volume     []float64
	expression []float64
	applied    []float64 // last gain written, to spot outside SetVolume calls
}

func NewDispatcher(s Synth, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	n := s.NumChannels()
	d := &Dispatcher{
		synth:      s,
		logger:     logger,
		volume:     make([]float64, n),
		expression: make([]float64, n),
		applied:    make([]float64, n),
	}
	for i := 0; i < n; i++ {
		d.volume[i] = s.Channel(i).Volume()
		d.expression[i] = 1
		d.applied[i] = d.volume[i]
	}
	return d
}

// Dispatch applies msg and reports whether it was handled.
func (d *Dispatcher) Dispatch(msg gomidi.Message) bool {
	var ch, key, vel, cc, val uint8
	var rel int16
	var abs uint16
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if !d.inRange(ch) {
			return false
		}
		d.logger.Debug("midi note start", "ch", ch, "key", key, "vel", vel)
		d.synth.NoteOn(int(ch), voice.MidiToFrequency(int(key)), CCToValue(vel))
	case msg.GetNoteEnd(&ch, &key):
		if !d.inRange(ch) {
			return false
		}
		d.logger.Debug("midi note end", "ch", ch, "key", key)
		d.synth.NoteOff(int(ch), voice.MidiToFrequency(int(key)))
	case msg.GetControlChange(&ch, &cc, &val):
		if !d.inRange(ch) {
			return false
		}
		return d.controlChange(int(ch), cc, val)
	case msg.GetPitchBend(&ch, &rel, &abs):
		if !d.inRange(ch) {
			return false
		}
		d.synth.Channel(int(ch)).SetPitchBend(float64(rel) / 8192 * voice.MaxPitchBend)
	case msg.GetAfterTouch(&ch, &val):
		if !d.inRange(ch) {
			return false
		}
		d.synth.Channel(int(ch)).SetAftertouch(CCToValue(val))
	default:
		d.logger.Debug("unhandled midi message", "msg", msg.String())
		return false
	}
	return true
}

// syncVolumeLocked adopts a channel volume set outside the dispatcher as the
// new CC7 level, keeping the current expression.
func (d *Dispatcher) syncVolumeLocked(ch int, cur float64) {
	if math.Abs(cur-d.applied[ch]) < 1e-9 {
		return
	}
	if e := d.expression[ch]; e > 0 {
		cur = math.Min(1, cur/e)
	}
	d.volume[ch] = cur
	d.applied[ch] = cur * d.expression[ch]
}

func (d *Dispatcher) controlChange(ch int, cc, val uint8) bool {
	p, ok := ParamForCC(cc)
	if !ok {
		d.logger.Debug("unmapped controller", "ch", ch, "cc", cc, "value", val)
		return false
	}
	v := CCToValue(val)
	c := d.synth.Channel(ch)
	fx := d.synth.Effects()
	switch p {
	case ParamModWheel:
		c.SetModWheel(v)
	case ParamVolume, ParamExpression:
		d.mu.Lock()
		d.syncVolumeLocked(ch, c.Volume())
		if p == ParamVolume {
			d.volume[ch] = v
		} else {
			d.expression[ch] = v
		}
		gain := d.volume[ch] * d.expression[ch]
		d.applied[ch] = gain
		d.mu.Unlock()
		c.SetVolume(gain)
	case ParamPan:
		c.SetPan(math.Max(-1, (float64(val)-64)/63))
	case ParamSustain:
		c.SetSustain(val >= 64)
	case ParamResonance:
		c.SetResonance(qMin + v*(qMax-qMin))
	case ParamCutoff:
		// Exponential sweep so the lower half of the knob covers the bass range.
		c.SetCutoff(cutoffMin * math.Pow(cutoffMax/cutoffMin, v))
	case ParamAttack:
		c.SetAttack(envTime(v))
	case ParamDecay:
		c.SetDecay(envTime(v))
	case ParamRelease:
		c.SetRelease(envTime(v))
	case ParamReverbSend:
		fx.SetReverbMix(v)
		fx.SetEnabled(effects.KindReverb, val > 0)
	case ParamChorusSend:
		fx.SetChorusMix(v)
		fx.SetEnabled(effects.KindChorus, val > 0)
	case ParamDelaySend:
		fx.SetDelayMix(v)
		fx.SetEnabled(effects.KindDelay, val > 0)
	}
	d.logger.Debug("midi control change", "ch", ch, "param", p.String(), "value", val)
	return true
}

func (d *Dispatcher) inRange(ch uint8) bool {
	return int(ch) < d.synth.NumChannels()
}

func envTime(v float64) float64 {
	return envTimeMin + v*v*(envTimeMax-envTimeMin)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
