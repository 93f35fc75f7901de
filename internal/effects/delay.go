package effects

const maxDelaySec = 2.0

// Delay is a single feedback tap over a 2 second ring buffer.
type Delay struct {
	sampleRate float64
	buf        []float32
	pos        int
	samples    int
	feedback   float64
	mix        float64
}

func NewDelay(sampleRate int) *Delay {
	d := &Delay{
		sampleRate: float64(sampleRate),
		buf:        make([]float32, max(1, int(float64(sampleRate)*maxDelaySec))),
	}
	d.Set(DefaultParams().Delay)
	return d
}

func (d *Delay) Set(p DelayParams) {
	d.samples = int(p.Time * d.sampleRate)
	d.feedback = p.Feedback
	d.mix = p.Mix
}

func (d *Delay) Process(buf []float32) {
	size := len(d.buf)
	for i, v := range buf {
		read := ((d.pos-d.samples)%size + size) % size
		delayed := float64(d.buf[read])
		x := float64(v)
		d.buf[d.pos] = float32(x + delayed*d.feedback)
		d.pos = (d.pos + 1) % size
		buf[i] = float32(x*(1-d.mix) + delayed*d.mix)
	}
}

func (d *Delay) Reset() {
	clear(d.buf)
	d.pos = 0
}
