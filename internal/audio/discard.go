package audio

import (
	"sync"
	"time"
)

// DiscardSink drops audio. With realtime set, Write sleeps so the producer
// runs at the rate a device would consume, which keeps headless runs and
// pattern timing realistic.
type DiscardSink struct {
	mu         sync.Mutex
	sampleRate int
	realtime   bool
	start      time.Time
	written    int64
	closed     bool
	sleep      func(time.Duration)
	now        func() time.Time
}

func NewDiscardSink(sampleRate int, realtime bool) *DiscardSink {
	return &DiscardSink{sampleRate: sampleRate, realtime: realtime, sleep: time.Sleep, now: time.Now}
}

func (s *DiscardSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrSinkClosed
	}
	if s.start.IsZero() {
		s.start = s.now()
	}
	s.written += int64(len(p))
	due := s.start.Add(s.durationLocked())
	realtime := s.realtime
	s.mu.Unlock()

	if realtime {
		if d := due.Sub(s.now()); d > 0 {
			s.sleep(d)
		}
	}
	return len(p), nil
}

// Duration returns the playback time of the bytes written so far.
func (s *DiscardSink) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.durationLocked()
}

func (s *DiscardSink) durationLocked() time.Duration {
	frames := s.written / BytesPerFrame
	return time.Duration(frames) * time.Second / time.Duration(s.sampleRate)
}

// BytesWritten returns the total bytes accepted.
func (s *DiscardSink) BytesWritten() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

func (s *DiscardSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
