package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEncodePCM16InterleavesAndClamps(t *testing.T) {
	left := []float32{0, 1, -1, 2, -2, 0.5}
	right := []float32{0.25, -0.25, 0, 0, 0, -0.5}
	got := EncodePCM16(nil, left, right)
	if len(got) != len(left)*BytesPerFrame {
		t.Fatalf("len = %d", len(got))
	}
	want := []int16{0, 8191, 32767, -8191, -32767, 0, 32767, 0, -32768, 0, 16383, -16383}
	for i, w := range want {
		v := int16(binary.LittleEndian.Uint16(got[i*2:]))
		if v != w {
			t.Errorf("sample %d = %d, want %d", i, v, w)
		}
	}
}

func TestPCM16RoundTrip(t *testing.T) {
	left := []float32{0.1, -0.3, 0.9}
	right := []float32{-0.7, 0.2, 0}
	l, r := DecodePCM16(EncodePCM16(nil, left, right))
	for i := range left {
		if math.Abs(float64(l[i]-left[i])) > 1e-4 || math.Abs(float64(r[i]-right[i])) > 1e-4 {
			t.Fatalf("frame %d: got (%v,%v) want (%v,%v)", i, l[i], r[i], left[i], right[i])
		}
	}
}

func TestWAVSinkPatchesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	s, err := Open(Config{Backend: BackendWAV, SampleRate: 22050, Path: path})
	if err != nil {
		t.Fatal(err)
	}
	pcm := EncodePCM16(nil, make([]float32, 100), make([]float32, 100))
	for i := 0; i < 3; i++ {
		if _, err := s.Write(pcm); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write(pcm); !errors.Is(err, ErrSinkClosed) {
		t.Fatalf("write after close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := WAVHeader(22050, 3*len(pcm))
	if !bytes.Equal(data[:wavHeaderSize], want) {
		t.Fatalf("header = %x, want %x", data[:wavHeaderSize], want)
	}
	if len(data) != wavHeaderSize+3*len(pcm) {
		t.Fatalf("file size = %d", len(data))
	}
}

func TestWAVHeaderFields(t *testing.T) {
	h := WAVHeader(44100, 4096)
	if string(h[0:4]) != "RIFF" || string(h[8:12]) != "WAVE" || string(h[36:40]) != "data" {
		t.Fatalf("bad chunk ids: %q", h)
	}
	if got := binary.LittleEndian.Uint32(h[4:]); got != 36+4096 {
		t.Errorf("riff size = %d", got)
	}
	if got := binary.LittleEndian.Uint32(h[28:]); got != 44100*4 {
		t.Errorf("byte rate = %d", got)
	}
	if got := binary.LittleEndian.Uint16(h[34:]); got != 16 {
		t.Errorf("bits = %d", got)
	}
}

func TestDiscardSinkPacesRealtime(t *testing.T) {
	s := NewDiscardSink(1000, true)
	now := time.Unix(0, 0)
	var slept time.Duration
	s.now = func() time.Time { return now }
	s.sleep = func(d time.Duration) {
		slept += d
		now = now.Add(d)
	}
	frame := make([]byte, 250*BytesPerFrame) // 250 ms at 1 kHz
	for i := 0; i < 4; i++ {
		if _, err := s.Write(frame); err != nil {
			t.Fatal(err)
		}
	}
	if slept != time.Second {
		t.Fatalf("slept %v, want 1s", slept)
	}
	if s.Duration() != time.Second || s.BytesWritten() != int64(4*len(frame)) {
		t.Fatalf("duration=%v bytes=%d", s.Duration(), s.BytesWritten())
	}
}

func TestPipeSinkCloseUnblocksWrite(t *testing.T) {
	ps := newPipeSink()
	done := make(chan error, 1)
	go func() {
		_, err := ps.Write(make([]byte, 16))
		done <- err
	}()
	ps.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrSinkClosed) {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("write still blocked after close")
	}
}

func TestPipeSinkDeliversBytes(t *testing.T) {
	ps := newPipeSink()
	go func() {
		ps.Write([]byte{1, 2, 3, 4})
	}()
	buf := make([]byte, 4)
	if _, err := ps.pr.Read(buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte{1, 2, 3, 4}) {
		t.Fatalf("read %v", buf)
	}
	ps.Close()
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(Config{Backend: "alsa", SampleRate: 44100}); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("err = %v", err)
	}
	if _, err := Open(Config{Backend: BackendWAV, SampleRate: 44100}); err == nil {
		t.Fatal("wav without path should fail")
	}
	if _, err := Open(Config{Backend: BackendDiscard}); err == nil {
		t.Fatal("zero sample rate should fail")
	}
}
