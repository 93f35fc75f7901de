package effects

import "math"

// Compressor is a feed-forward peak compressor. The gain moves toward its
// target with separate attack and release time constants.
type Compressor struct {
	sampleRate  float64
	threshold   float64 // linear
	ratio       float64
	attackCoef  float64
	releaseCoef float64
	gain        float64
}

func NewCompressor(sampleRate int) *Compressor {
	c := &Compressor{sampleRate: float64(sampleRate), gain: 1}
	c.Set(DefaultParams().Compressor)
	return c
}

func (c *Compressor) Set(p CompressorParams) {
	c.threshold = math.Pow(10, p.ThresholdDB/20)
	c.ratio = p.Ratio
	c.attackCoef = math.Exp(-1 / (p.Attack * c.sampleRate))
	c.releaseCoef = math.Exp(-1 / (p.Release * c.sampleRate))
}

func (c *Compressor) Process(buf []float32) {
	for i, v := range buf {
		x := float64(v)
		level := math.Abs(x)
		if level > c.threshold {
			over := level / c.threshold
			target := 1 / (1 + (over-1)*(c.ratio-1)/c.ratio)
			coef := c.releaseCoef
			if target < c.gain {
				coef = c.attackCoef
			}
			c.gain = target + (c.gain-target)*coef
		} else {
			c.gain = 1 + (c.gain-1)*c.releaseCoef
		}
		buf[i] = float32(x * c.gain)
	}
}

// Gain returns the current gain factor (1 = no reduction).
func (c *Compressor) Gain() float64 { return c.gain }

func (c *Compressor) Reset() {
	c.gain = 1
}
