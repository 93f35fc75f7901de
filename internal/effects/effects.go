package effects

import (
	"errors"
	"strings"
	"sync"
)

// Effector processes a mono buffer in place.
type Effector interface {
	Process(buf []float32)
	Reset()
}

// Kind names an effect slot. Slots always run in Kind order.
type Kind int

const (
	KindDistortion Kind = iota
	KindCompressor
	KindEQ
	KindChorus
	KindDelay
	KindReverb
	numKinds
)

var ErrUnknownKind = errors.New("unknown effect")

func (k Kind) String() string {
	switch k {
	case KindDistortion:
		return "distortion"
	case KindCompressor:
		return "compressor"
	case KindEQ:
		return "eq"
	case KindChorus:
		return "chorus"
	case KindDelay:
		return "delay"
	case KindReverb:
		return "reverb"
	}
	return "unknown"
}

func ParseKind(name string) (Kind, error) {
	for k := KindDistortion; k < numKinds; k++ {
		if strings.EqualFold(strings.TrimSpace(name), k.String()) {
			return k, nil
		}
	}
	return 0, ErrUnknownKind
}

// Kinds lists the effect slots in processing order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for k := range out {
		out[k] = Kind(k)
	}
	return out
}

// Chain is the master bus: distortion, compressor, EQ, chorus, delay and
// reverb, each applied only when enabled. One parameter set drives two
// independent lanes so the left and right buffers never share ring buffers.
// Chain is safe for concurrent use; a parameter change takes effect at the
// next buffer boundary.
type Chain struct {
	mu     sync.Mutex
	params Params
	lanes  [2]lane
}

type lane [numKinds]Effector

func newLane(sampleRate int) lane {
	return lane{
		KindDistortion: &Distortion{},
		KindCompressor: NewCompressor(sampleRate),
		KindEQ:         NewEQ3Band(sampleRate),
		KindChorus:     NewChorus(sampleRate),
		KindDelay:      NewDelay(sampleRate),
		KindReverb:     NewReverb(sampleRate),
	}
}

func (l *lane) process(buf []float32, p *Params) {
	for k := KindDistortion; k < numKinds; k++ {
		if p.enabled(k) {
			l[k].Process(buf)
		}
	}
}

func (l *lane) reset() {
	for _, e := range l {
		e.Reset()
	}
}

func (l *lane) apply(p Params) {
	l[KindDistortion].(*Distortion).Set(p.Distortion)
	l[KindCompressor].(*Compressor).Set(p.Compressor)
	l[KindChorus].(*Chorus).Set(p.Chorus)
	l[KindDelay].(*Delay).Set(p.Delay)
	l[KindReverb].(*Reverb).Set(p.Reverb)
}

// NewChain returns a chain with every effect disabled and default settings.
func NewChain(sampleRate int) *Chain {
	c := &Chain{params: DefaultParams()}
	for i := range c.lanes {
		c.lanes[i] = newLane(sampleRate)
		c.lanes[i].apply(c.params)
	}
	return c
}

// Process runs the chain over a mono buffer using the left lane.
func (c *Chain) Process(buf []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lanes[0].process(buf, &c.params)
}

// ProcessStereo runs the chain independently over left and right.
func (c *Chain) ProcessStereo(left, right []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lanes[0].process(left, &c.params)
	c.lanes[1].process(right, &c.params)
}

// ClearBuffers zeroes every ring buffer, resets the compressor gain to unity
// and clears EQ history.
func (c *Chain) ClearBuffers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lanes {
		c.lanes[i].reset()
	}
}

func (c *Chain) Params() Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// SetParams replaces every setting at once. Values are clamped.
func (c *Chain) SetParams(p Params) {
	c.update(func(cur *Params) { *cur = p })
}

func (c *Chain) Enabled(k Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.enabled(k)
}

func (c *Chain) SetEnabled(k Kind, on bool) {
	c.update(func(p *Params) { p.setEnabled(k, on) })
}

func (c *Chain) SetDistortionDrive(v float64) {
	c.update(func(p *Params) { p.Distortion.Drive = v })
}

func (c *Chain) SetDistortionMix(v float64) {
	c.update(func(p *Params) { p.Distortion.Mix = v })
}

func (c *Chain) SetCompressorThreshold(db float64) {
	c.update(func(p *Params) { p.Compressor.ThresholdDB = db })
}

func (c *Chain) SetCompressorRatio(v float64) {
	c.update(func(p *Params) { p.Compressor.Ratio = v })
}

func (c *Chain) SetCompressorAttack(sec float64) {
	c.update(func(p *Params) { p.Compressor.Attack = sec })
}

func (c *Chain) SetCompressorRelease(sec float64) {
	c.update(func(p *Params) { p.Compressor.Release = sec })
}

func (c *Chain) SetChorusRate(hz float64) {
	c.update(func(p *Params) { p.Chorus.Rate = hz })
}

func (c *Chain) SetChorusDepth(v float64) {
	c.update(func(p *Params) { p.Chorus.Depth = v })
}

func (c *Chain) SetChorusMix(v float64) {
	c.update(func(p *Params) { p.Chorus.Mix = v })
}

func (c *Chain) SetDelayTime(sec float64) {
	c.update(func(p *Params) { p.Delay.Time = sec })
}

func (c *Chain) SetDelayFeedback(v float64) {
	c.update(func(p *Params) { p.Delay.Feedback = v })
}

func (c *Chain) SetDelayMix(v float64) {
	c.update(func(p *Params) { p.Delay.Mix = v })
}

func (c *Chain) SetReverbMix(v float64) {
	c.update(func(p *Params) { p.Reverb.Mix = v })
}

func (c *Chain) SetReverbDecay(v float64) {
	c.update(func(p *Params) { p.Reverb.Decay = v })
}

func (c *Chain) update(fn func(*Params)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.params)
	c.params = c.params.Clamped()
	for i := range c.lanes {
		c.lanes[i].apply(c.params)
	}
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
