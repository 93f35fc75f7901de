package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/cbegin/polysynth-go"
	"github.com/cbegin/polysynth-go/internal/midi"
)

var logger = slog.Default()

// initLogger installs a text handler as the default so stdlib log output
// shares it.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level, AddSource: debug})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config (default: built-in demo)")
		seconds    = flag.Float64("seconds", 0, "stop after N seconds (0 = until interrupted)")
		renderPath = flag.String("render", "", "render -seconds of audio to this WAV file instead of playing")
		exportPath = flag.String("export-midi", "", "write the pattern assignments to this MIDI file and exit")
		cycles     = flag.Int("cycles", 4, "pattern cycles written by -export-midi")
		backend    = flag.String("backend", "", "audio backend: ebiten|oto|wav|discard (overrides config)")
		output     = flag.String("out", "", "output path for the wav backend")
		sampleRate = flag.Int("sample-rate", 0, "output sample rate (overrides config)")
		bpm        = flag.Int("bpm", 0, "pattern tempo (overrides config)")
		noPatterns = flag.Bool("no-patterns", false, "do not start the pattern transport")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()
	initLogger(*debug)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *backend != "" {
		cfg.Engine.Backend = strings.ToLower(*backend)
	}
	if *output != "" {
		cfg.Engine.Output = *output
	}
	if *sampleRate > 0 {
		cfg.Engine.SampleRate = *sampleRate
	}
	if *bpm > 0 {
		cfg.Engine.BPM = *bpm
	}

	switch {
	case *exportPath != "":
		if err := exportMIDI(cfg, *exportPath, *cycles); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("wrote %s\n", *exportPath)
		return
	case *renderPath != "":
		if *seconds <= 0 {
			log.Fatal("-render needs -seconds")
		}
		if err := polysynth.RenderWAVFile(*renderPath, cfg, *seconds, nil); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("rendered %.1fs to %s\n", *seconds, *renderPath)
		return
	}

	e, err := polysynth.New(cfg, polysynth.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	if !*noPatterns {
		e.PlayPatterns()
	}
	if err := e.Start(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *seconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(*seconds*float64(time.Second)))
		defer cancel()
	}
	meterTicker := time.NewTicker(time.Second)
	defer meterTicker.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-meterTicker.C:
			l, r := e.MasterLevel()
			logger.Debug("master level",
				"beat", e.Patterns().CurrentBeat(),
				"left_db", fmt.Sprintf("%.1f", l.PeakDB()),
				"right_db", fmt.Sprintf("%.1f", r.PeakDB()))
		}
	}

	e.StopTransport()
	if err := e.Stop(); err != nil {
		logger.Error("stop engine", "err", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (polysynth.Config, error) {
	if strings.TrimSpace(path) == "" {
		return polysynth.DefaultConfig(), nil
	}
	return polysynth.LoadConfig(path)
}

func exportMIDI(cfg polysynth.Config, path string, cycles int) error {
	e, err := polysynth.New(cfg, polysynth.WithLogger(logger))
	if err != nil {
		return err
	}
	return midi.ExportPatternsFile(path, e.Patterns(), cycles)
}
