// Package meter keeps the live telemetry a UI polls: oscilloscope rings and
// VU levels. Taps run on the audio goroutine; readers copy under a lock.
package meter

import (
	"math"
	"sync"

	"github.com/viterin/vek/vek32"
)

// Scope is a mono ring buffer holding the most recent samples.
type Scope struct {
	mu       sync.Mutex
	ring     []float32
	writePos int
	total    int64
}

func NewScope(size int) *Scope {
	if size < 1 {
		size = 1
	}
	return &Scope{ring: make([]float32, size)}
}

// Tap copies samples into the ring.
func (s *Scope) Tap(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size := len(s.ring)
	if len(samples) >= size {
		copy(s.ring, samples[len(samples)-size:])
		s.writePos = 0
	} else {
		n := copy(s.ring[s.writePos:], samples)
		copy(s.ring, samples[n:])
		s.writePos = (s.writePos + len(samples)) % size
	}
	s.total += int64(len(samples))
}

// Snapshot returns the latest n samples, oldest first. Slots never written
// read as zero.
func (s *Scope) Snapshot(n int) []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	size := len(s.ring)
	if n > size {
		n = size
	}
	if n < 0 {
		n = 0
	}
	out := make([]float32, n)
	start := (s.writePos - n + size) % size
	for i := range out {
		out[i] = s.ring[(start+i)%size]
	}
	return out
}

// Total returns the number of samples tapped since the last Reset.
func (s *Scope) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Scope) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.ring)
	s.writePos = 0
	s.total = 0
}

// Level is a VU reading in linear amplitude.
type Level struct {
	Peak float32
	RMS  float32
}

// PeakDB returns the peak in dBFS, floored at -120.
func (l Level) PeakDB() float64 { return ToDB(l.Peak) }

// RMSDB returns the RMS in dBFS, floored at -120.
func (l Level) RMSDB() float64 { return ToDB(l.RMS) }

func ToDB(v float32) float64 {
	if v <= 1e-6 {
		return -120
	}
	return 20 * math.Log10(float64(v))
}

// Meter follows block peak and RMS with a fast attack and slow release,
// the way a VU needle moves.
type Meter struct {
	mu      sync.Mutex
	level   Level
	attack  float32
	release float32
	tmp     []float32
}

func NewMeter() *Meter {
	return &Meter{attack: 0.7, release: 0.1}
}

// Tap folds one buffer into the meter.
func (m *Meter) Tap(samples []float32) {
	if len(samples) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cap(m.tmp) < len(samples) {
		m.tmp = make([]float32, len(samples))
	}
	peak, rms := measure(samples, m.tmp[:len(samples)])
	m.level.Peak = m.follow(m.level.Peak, peak)
	m.level.RMS = m.follow(m.level.RMS, rms)
}

func (m *Meter) follow(cur, target float32) float32 {
	if target > cur {
		return cur + (target-cur)*m.attack
	}
	return cur + (target-cur)*m.release
}

func (m *Meter) Level() Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = Level{}
}

// Measure returns the absolute peak and RMS of samples.
func Measure(samples []float32) (peak, rms float32) {
	if len(samples) == 0 {
		return 0, 0
	}
	return measure(samples, make([]float32, len(samples)))
}

// measure uses tmp (len(samples)) as scratch.
func measure(samples, tmp []float32) (peak, rms float32) {
	sq := vek32.Mul_Into(tmp, samples, samples)
	rms = float32(math.Sqrt(float64(vek32.Mean(sq))))
	copy(tmp, samples)
	vek32.Abs_Inplace(tmp)
	peak = vek32.Max(tmp)
	return peak, rms
}
