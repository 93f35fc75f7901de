package effects

import "github.com/cbegin/polysynth-go/internal/lfo"

const (
	chorusBufferSec = 0.05
	chorusBaseDelay = 0.02
)

// Chorus is a single modulated delay tap blended with the dry signal.
// The tap sits at 20 ms plus depth*10 ms of sine modulation.
type Chorus struct {
	sampleRate float64
	buf        []float32
	pos        int
	depth      float64
	mix        float64
	lfo        *lfo.LFO
}

func NewChorus(sampleRate int) *Chorus {
	c := &Chorus{
		sampleRate: float64(sampleRate),
		buf:        make([]float32, max(1, int(float64(sampleRate)*chorusBufferSec))),
		lfo:        lfo.New(sampleRate),
	}
	c.lfo.SetWaveform(lfo.WaveSine)
	c.Set(DefaultParams().Chorus)
	return c
}

func (c *Chorus) Set(p ChorusParams) {
	c.lfo.SetFrequency(p.Rate)
	c.depth = p.Depth
	c.mix = p.Mix
}

func (c *Chorus) Process(buf []float32) {
	size := len(c.buf)
	for i, v := range buf {
		delay := chorusBaseDelay + c.depth*0.01*c.lfo.Next()
		d := int(delay * c.sampleRate)
		read := ((c.pos-d)%size + size) % size
		delayed := c.buf[read]
		c.buf[c.pos] = v
		c.pos = (c.pos + 1) % size
		buf[i] = float32(float64(v)*(1-c.mix) + float64(delayed)*c.mix)
	}
}

func (c *Chorus) Reset() {
	clear(c.buf)
	c.pos = 0
}
