package effects

import "math"

// Distortion is tanh waveshaping blended with the dry signal.
type Distortion struct {
	drive float64
	mix   float64
}

func (d *Distortion) Set(p DistortionParams) {
	d.drive = p.Drive
	d.mix = p.Mix
}

func (d *Distortion) Process(buf []float32) {
	for i, v := range buf {
		x := float64(v)
		wet := math.Tanh(x * d.drive)
		buf[i] = float32(x*(1-d.mix) + wet*d.mix)
	}
}

func (d *Distortion) Reset() {}
