package audio

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Sink receives interleaved stereo s16le PCM. Write blocks until the device
// (or file) has accepted the bytes; that blocking paces the producer.
type Sink interface {
	io.WriteCloser
}

const (
	BackendEbiten  = "ebiten"
	BackendOto     = "oto"
	BackendWAV     = "wav"
	BackendDiscard = "discard"
)

var (
	ErrUnknownBackend = errors.New("unknown audio backend")
	ErrSinkClosed     = errors.New("audio sink closed")
)

const (
	Channels       = 2
	BytesPerSample = 2
	BytesPerFrame  = Channels * BytesPerSample
)

// Config selects and parameterizes a sink.
type Config struct {
	Backend    string
	SampleRate int
	Path       string // output file for the wav backend
	Realtime   bool   // discard backend sleeps to match real time
}

// Open creates the sink named by cfg.Backend.
func Open(cfg Config) (Sink, error) {
	if cfg.SampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendEbiten, "":
		return NewEbitenSink(cfg.SampleRate)
	case BackendOto:
		return NewOtoSink(cfg.SampleRate)
	case BackendWAV:
		if cfg.Path == "" {
			return nil, errors.New("wav backend needs an output path")
		}
		return CreateWAV(cfg.Path, cfg.SampleRate)
	case BackendDiscard:
		return NewDiscardSink(cfg.SampleRate, cfg.Realtime), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}
