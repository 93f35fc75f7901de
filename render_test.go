package polysynth

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestRenderSamplesFollowsPatternTempo(t *testing.T) {
	cfg := DefaultConfig()
	left, right, err := RenderSamples(cfg, 1.5, nil)
	if err != nil {
		t.Fatal(err)
	}
	sr := DefaultSampleRate
	if len(left) != sr*3/2 || len(right) != len(left) {
		t.Fatalf("rendered %d/%d frames", len(left), len(right))
	}
	// Beat 1 (0.5 s) carries no notes in the stock patterns; beat 2 (1.0 s)
	// starts the hi-hat and the melody.
	if p := peak(left[:sr*9/10]); p != 0 {
		t.Fatalf("expected silence before the second beat, peak %v", p)
	}
	if p := peak(left[sr*11/10:]); p == 0 {
		t.Fatal("expected sound after the second beat")
	}
}

func TestRenderSamplesWithLiveNotes(t *testing.T) {
	cfg := emptyConfig()
	left, _, err := RenderSamples(cfg, 0.1, func(e *Engine) {
		e.NoteOn(0, 440, 1)
	})
	if err != nil {
		t.Fatal(err)
	}
	if peak(left) == 0 {
		t.Fatal("expected the live note in the render")
	}
	if _, _, err := RenderSamples(cfg, -1, nil); err == nil {
		t.Fatal("expected an error for negative duration")
	}
}

func TestRenderWAV(t *testing.T) {
	cfg := emptyConfig()
	cfg.Engine.SampleRate = 8000
	var buf bytes.Buffer
	if err := RenderWAV(&buf, cfg, 0.25, func(e *Engine) { e.NoteOn(2, 220, 0.8) }); err != nil {
		t.Fatal(err)
	}
	out := buf.Bytes()
	if len(out) != 44+2000*4 {
		t.Fatalf("wav is %d bytes", len(out))
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
		t.Fatalf("bad header %q", out[:12])
	}
	if sr := binary.LittleEndian.Uint32(out[24:]); sr != 8000 {
		t.Fatalf("sample rate = %d", sr)
	}
	if n := binary.LittleEndian.Uint32(out[40:]); n != 2000*4 {
		t.Fatalf("data size = %d", n)
	}
}
