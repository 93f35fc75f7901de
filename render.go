package polysynth

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cbegin/polysynth-go/internal/audio"
)

// sampleClock is a transport clock driven by rendered frames instead of wall
// time, so offline renders play patterns at tempo.
type sampleClock struct {
	start      time.Time
	frames     int64
	sampleRate int
}

func (c *sampleClock) Now() time.Time {
	return c.start.Add(time.Duration(c.frames) * time.Second / time.Duration(c.sampleRate))
}

func (c *sampleClock) advance(frames int) { c.frames += int64(frames) }

// RenderSamples renders seconds of audio without a sink. The pattern
// transport runs from the first frame. play, when non-nil, is called once
// before rendering to add notes or tweak the engine.
func RenderSamples(cfg Config, seconds float64, play func(*Engine)) (left, right []float32, err error) {
	if seconds < 0 {
		return nil, nil, errors.New("seconds must not be negative")
	}
	ec := cfg.Engine.withDefaults()
	clk := &sampleClock{start: time.Unix(0, 0), sampleRate: ec.SampleRate}
	e, err := New(cfg, WithClock(clk.Now), WithSink(audio.NewDiscardSink(ec.SampleRate, false)))
	if err != nil {
		return nil, nil, err
	}
	e.PlayPatterns()
	if play != nil {
		play(e)
	}
	frames := int(float64(ec.SampleRate) * seconds)
	left = make([]float32, frames)
	right = make([]float32, frames)
	for pos := 0; pos < frames; pos += ec.BufferFrames {
		end := min(pos+ec.BufferFrames, frames)
		e.RenderBuffer(left[pos:end], right[pos:end])
		clk.advance(end - pos)
	}
	return left, right, nil
}

// RenderWAV renders seconds of audio as a 16-bit stereo WAV stream.
func RenderWAV(w io.Writer, cfg Config, seconds float64, play func(*Engine)) error {
	left, right, err := RenderSamples(cfg, seconds, play)
	if err != nil {
		return err
	}
	pcm := audio.EncodePCM16(make([]byte, 0, len(left)*audio.BytesPerFrame), left, right)
	return audio.WriteWAV(w, cfg.Engine.withDefaults().SampleRate, pcm)
}

// RenderWAVFile is RenderWAV into a new file at path.
func RenderWAVFile(path string, cfg Config, seconds float64, play func(*Engine)) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := RenderWAV(f, cfg, seconds, play); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
