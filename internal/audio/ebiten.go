package audio

import (
	"fmt"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// ebiten allows a single audio context per process.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// EbitenSink plays PCM through an ebiten audio player.
type EbitenSink struct {
	*pipeSink
	player *ebitaudio.Player
}

func NewEbitenSink(sampleRate int) (*EbitenSink, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	ps := newPipeSink()
	pl, err := ctx.NewPlayer(ps.pr)
	if err != nil {
		return nil, fmt.Errorf("ebiten player: %w", err)
	}
	s := &EbitenSink{pipeSink: ps, player: pl}
	ps.stop = func() {
		pl.Pause()
		pl.Close()
	}
	pl.Play()
	return s, nil
}
