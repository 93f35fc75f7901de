package audio

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

var (
	otoContextOnce sync.Once
	otoContext     *oto.Context
	otoContextErr  error
	otoSampleRate  int
)

func sharedOtoContext(sampleRate int) (*oto.Context, error) {
	otoContextOnce.Do(func() {
		otoSampleRate = sampleRate
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoContextErr = fmt.Errorf("oto context: %w", err)
			return
		}
		<-ready
		otoContext = ctx
	})
	if otoContextErr != nil {
		return nil, otoContextErr
	}
	if otoSampleRate != sampleRate {
		return nil, fmt.Errorf("oto context already initialized at %d Hz (requested %d Hz)", otoSampleRate, sampleRate)
	}
	return otoContext, nil
}

// OtoSink plays PCM through an oto player directly, without ebiten.
type OtoSink struct {
	*pipeSink
	player *oto.Player
}

func NewOtoSink(sampleRate int) (*OtoSink, error) {
	ctx, err := sharedOtoContext(sampleRate)
	if err != nil {
		return nil, err
	}
	ps := newPipeSink()
	pl := ctx.NewPlayer(ps.pr)
	ps.stop = func() {
		pl.Pause()
		pl.Close()
	}
	pl.Play()
	return &OtoSink{pipeSink: ps, player: pl}, nil
}
