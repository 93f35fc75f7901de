package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

const wavHeaderSize = 44

// WAVHeader returns a 44-byte header for stereo 16-bit PCM carrying
// dataBytes of sample data.
func WAVHeader(sampleRate, dataBytes int) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataBytes))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(Channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*BytesPerFrame)) // avgBytesPerSec
	binary.Write(buf, binary.LittleEndian, uint16(BytesPerFrame))            // blockAlign
	binary.Write(buf, binary.LittleEndian, uint16(8*BytesPerSample))         // bits per sample
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataBytes))
	return buf.Bytes()
}

// WriteWAV writes a complete WAV file holding pcm.
func WriteWAV(w io.Writer, sampleRate int, pcm []byte) error {
	if _, err := w.Write(WAVHeader(sampleRate, len(pcm))); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}

// WAVSink streams PCM into a file and fixes up the header sizes on Close.
type WAVSink struct {
	mu         sync.Mutex
	f          *os.File
	sampleRate int
	dataBytes  int
	closed     bool
}

func CreateWAV(path string, sampleRate int) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}
	if _, err := f.Write(WAVHeader(sampleRate, 0)); err != nil {
		f.Close()
		return nil, fmt.Errorf("write wav header: %w", err)
	}
	return &WAVSink{f: f, sampleRate: sampleRate}, nil
}

func (s *WAVSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSinkClosed
	}
	n, err := s.f.Write(p)
	s.dataBytes += n
	return n, err
}

func (s *WAVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, err := s.f.WriteAt(WAVHeader(s.sampleRate, s.dataBytes), 0)
	return errors.Join(err, s.f.Close())
}
