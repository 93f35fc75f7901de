package audio

import (
	"io"
	"sync"
)

// pipeSink turns a pull-based player (one that reads from an io.Reader)
// into a blocking Sink: Write returns once the player has read the bytes.
type pipeSink struct {
	pr        *io.PipeReader
	pw        *io.PipeWriter
	stop      func()
	closeOnce sync.Once
}

func newPipeSink() *pipeSink {
	pr, pw := io.Pipe()
	return &pipeSink{pr: pr, pw: pw, stop: func() {}}
}

func (s *pipeSink) Write(p []byte) (int, error) {
	return s.pw.Write(p)
}

// Close unblocks any pending Write with ErrSinkClosed and stops the player.
func (s *pipeSink) Close() error {
	s.closeOnce.Do(func() {
		s.pw.CloseWithError(ErrSinkClosed)
		s.stop()
		s.pr.Close()
	})
	return nil
}
