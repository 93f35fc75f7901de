package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/cbegin/polysynth-go"
	"github.com/cbegin/polysynth-go/internal/midi"
	"github.com/cbegin/polysynth-go/internal/osc"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config")
		backend    = flag.String("backend", "", "audio backend: ebiten|oto|discard (overrides config)")
		channel    = flag.Int("channel", 0, "synth channel the keys play")
		gateMS     = flag.Int("gate", 300, "note length in milliseconds")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := polysynth.Config{Engine: polysynth.DefaultEngineConfig()}
	if *configPath != "" {
		var err error
		if cfg, err = polysynth.LoadConfig(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	if *backend != "" {
		cfg.Engine.Backend = *backend
	}
	e, err := polysynth.New(cfg, polysynth.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	if *channel < 0 || *channel >= e.NumChannels() {
		log.Fatalf("-channel must be in 0..%d", e.NumChannels()-1)
	}
	if err := e.Start(); err != nil {
		log.Fatal(err)
	}
	defer e.Stop()

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		log.Fatal("stdin is not a terminal")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		log.Fatalf("set raw mode: %v", err)
	}
	defer term.Restore(fd, oldState)

	c := e.Channel(*channel)
	kb := newKeyboard(midi.NewDispatcher(e, logger), c.SetWaveform, *channel, time.Duration(*gateMS)*time.Millisecond)
	// Raw mode disables output post-processing, so lines need an explicit CR.
	fmt.Print("keys: a w s e d f t g y h u j k | z/x octave | 1-5 waveform | q quit\r\n")

	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		if !kb.press(buf[0]) {
			return
		}
		if buf[0] >= '1' && buf[0] <= '5' {
			fmt.Printf("waveform %s\r\n", osc.Waveform(buf[0]-'1'))
		}
	}
}
