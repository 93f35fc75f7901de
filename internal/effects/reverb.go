package effects

// reverbTaps are the tap offsets in seconds, all read from one shared ring.
var reverbTaps = [4]float64{0.03, 0.07, 0.15, 0.31}

// Reverb sums four equally weighted taps from a single ring buffer and
// writes input + sum*decay back into it. This is a comb-sum approximation,
// not a multi-line reverb.
type Reverb struct {
	buf   []float32
	pos   int
	taps  [4]int
	mix   float64
	decay float64
}

func NewReverb(sampleRate int) *Reverb {
	r := &Reverb{buf: make([]float32, max(1, int(float64(sampleRate)*maxDelaySec)))}
	for i, sec := range reverbTaps {
		r.taps[i] = int(sec * float64(sampleRate))
	}
	r.Set(DefaultParams().Reverb)
	return r
}

func (r *Reverb) Set(p ReverbParams) {
	r.mix = p.Mix
	r.decay = p.Decay
}

func (r *Reverb) Process(buf []float32) {
	size := len(r.buf)
	for i, v := range buf {
		var sum float64
		for _, tap := range r.taps {
			read := ((r.pos-tap)%size + size) % size
			sum += float64(r.buf[read]) * 0.25
		}
		x := float64(v)
		r.buf[r.pos] = float32(x + sum*r.decay)
		r.pos = (r.pos + 1) % size
		buf[i] = float32(x*(1-r.mix) + sum*r.mix)
	}
}

func (r *Reverb) Reset() {
	clear(r.buf)
	r.pos = 0
}
