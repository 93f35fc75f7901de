package effects

import "github.com/cbegin/polysynth-go/internal/filter"

// EQ3Band runs three cascaded biquads: low-pass at 200 Hz, band-pass at
// 1 kHz and high-pass at 5 kHz.
type EQ3Band struct {
	low  *filter.Biquad
	mid  *filter.Biquad
	high *filter.Biquad
}

func NewEQ3Band(sampleRate int) *EQ3Band {
	eq := &EQ3Band{
		low:  filter.New(sampleRate),
		mid:  filter.New(sampleRate),
		high: filter.New(sampleRate),
	}
	eq.low.Set(filter.LowPass, 200, 1)
	eq.mid.Set(filter.BandPass, 1000, 1)
	eq.high.Set(filter.HighPass, 5000, 1)
	return eq
}

func (eq *EQ3Band) Process(buf []float32) {
	eq.low.ProcessBuffer(buf)
	eq.mid.ProcessBuffer(buf)
	eq.high.ProcessBuffer(buf)
}

func (eq *EQ3Band) Reset() {
	eq.low.Reset()
	eq.mid.Reset()
	eq.high.Reset()
}
