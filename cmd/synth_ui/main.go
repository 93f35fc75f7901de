package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/cbegin/polysynth-go"
	"github.com/cbegin/polysynth-go/internal/audio"
	"github.com/cbegin/polysynth-go/internal/osc"
	"github.com/cbegin/polysynth-go/internal/voice"
)

const (
	windowW    = 1100
	windowH    = 720
	minWindowW = 980
	minWindowH = 680

	scopeSamples = 1024
	stripCols    = 4
	noteVelocity = 100.0 / 127
)

// pianoKeys is the two-row layout used by most trackers: the home row plays
// the white keys of one octave and the row above plays the black keys.
var pianoKeys = map[ebiten.Key]int{
	ebiten.KeyA: 0, ebiten.KeyW: 1, ebiten.KeyS: 2, ebiten.KeyE: 3,
	ebiten.KeyD: 4, ebiten.KeyF: 5, ebiten.KeyT: 6, ebiten.KeyG: 7,
	ebiten.KeyY: 8, ebiten.KeyH: 9, ebiten.KeyU: 10, ebiten.KeyJ: 11,
	ebiten.KeyK: 12,
}

var channelKeys = []ebiten.Key{
	ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3, ebiten.KeyDigit4,
	ebiten.KeyDigit5, ebiten.KeyDigit6, ebiten.KeyDigit7, ebiten.KeyDigit8,
	ebiten.KeyDigit9,
}

var waveforms = []osc.Waveform{osc.Sine, osc.Sawtooth, osc.Square, osc.Triangle, osc.Noise}

// heldNote remembers where a key's note went so the release reaches the same
// channel after the selection changes.
type heldNote struct {
	channel int
	freq    float64
}

type game struct {
	engine   *polysynth.Engine
	selected int
	octave   int
	held     map[ebiten.Key]heldNote
	gains    []float64

	draggingVolume int // channel index + 1, 0 when idle

	textCache map[string]*ebiten.Image
	viewW     int
	viewH     int
}

func newGame(e *polysynth.Engine) *game {
	gains := make([]float64, e.NumChannels())
	for i := range gains {
		gains[i] = 0.01
	}
	return &game{
		engine:    e,
		octave:    4,
		held:      make(map[ebiten.Key]heldNote),
		gains:     gains,
		textCache: make(map[string]*ebiten.Image, 1024),
		viewW:     windowW,
		viewH:     windowH,
	}
}

type uiLayout struct {
	play, info, beats, master, status image.Rectangle
	strips                            []image.Rectangle
}

func (g *game) layoutRects() uiLayout {
	w := max(g.viewW, minWindowW)
	h := max(g.viewH, minWindowH)
	pad := 20
	rowH := 44
	statusH := 40

	l := uiLayout{
		play:   image.Rect(pad, pad, pad+130, pad+rowH),
		info:   image.Rect(pad+142, pad, pad+420, pad+rowH),
		master: image.Rect(w-pad-120, pad, w-pad, pad+rowH),
		status: image.Rect(pad, h-pad-statusH, w-pad, h-pad),
	}
	l.beats = image.Rect(l.info.Max.X+12, pad, l.master.Min.X-12, pad+rowH)

	n := g.engine.NumChannels()
	rows := max((n+stripCols-1)/stripCols, 1)
	top := l.play.Max.Y + 12
	bottom := l.status.Min.Y - 12
	stripW := (w - 2*pad - (stripCols-1)*12) / stripCols
	stripH := (bottom - top - (rows-1)*12) / rows
	for i := 0; i < n; i++ {
		x := pad + (i%stripCols)*(stripW+12)
		y := top + (i/stripCols)*(stripH+12)
		l.strips = append(l.strips, image.Rect(x, y, x+stripW, y+stripH))
	}
	return l
}

// stripParts splits a channel strip into its header, scope, meter and volume
// slider.
func stripParts(strip image.Rectangle) (header, scope, vu, volume image.Rectangle) {
	header = image.Rect(strip.Min.X+4, strip.Min.Y+4, strip.Max.X-4, strip.Min.Y+4+lineH)
	volume = image.Rect(strip.Min.X+12, strip.Max.Y-28, strip.Max.X-12, strip.Max.Y-8)
	vu = image.Rect(strip.Max.X-28, header.Max.Y+4, strip.Max.X-8, volume.Min.Y-6)
	scope = image.Rect(strip.Min.X+8, header.Max.Y+4, vu.Min.X-6, volume.Min.Y-6)
	return header, scope, vu, volume
}

func (g *game) Update() error {
	g.handleKeys()
	g.handleMouse()
	return nil
}

func (g *game) handleKeys() {
	e := g.engine
	for k, semitone := range pianoKeys {
		if inpututil.IsKeyJustPressed(k) {
			note := (g.octave+1)*12 + semitone
			h := heldNote{channel: g.selected, freq: voice.MidiToFrequency(note)}
			g.held[k] = h
			e.NoteOn(h.channel, h.freq, noteVelocity)
		}
		if inpututil.IsKeyJustReleased(k) {
			if h, ok := g.held[k]; ok {
				e.NoteOff(h.channel, h.freq)
				delete(g.held, k)
			}
		}
	}
	for i, k := range channelKeys {
		if i < e.NumChannels() && inpututil.IsKeyJustPressed(k) {
			g.selected = i
		}
	}
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyZ):
		g.octave = max(g.octave-1, 1)
	case inpututil.IsKeyJustPressed(ebiten.KeyX):
		g.octave = min(g.octave+1, 7)
	case inpututil.IsKeyJustPressed(ebiten.KeyTab):
		g.cycleWaveform(g.selected)
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.toggleTransport()
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		e.AllNotesOff()
		clear(g.held)
	}
}

func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	l := g.layoutRects()
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		if pointInRect(mx, my, l.play) {
			g.toggleTransport()
			return
		}
		for i, strip := range l.strips {
			if !pointInRect(mx, my, strip) {
				continue
			}
			header, _, _, volume := stripParts(strip)
			g.selected = i
			switch {
			case pointInRect(mx, my, header):
				ch := g.engine.Channel(i)
				ch.SetEnabled(!ch.Enabled())
			case pointInRect(mx, my, volume):
				g.draggingVolume = i + 1
			}
			break
		}
	}
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		g.draggingVolume = 0
	}
	if i := g.draggingVolume - 1; i >= 0 && i < len(l.strips) {
		_, _, _, volume := stripParts(l.strips[i])
		v := float64(mx-volume.Min.X) / float64(max(volume.Dx(), 1))
		g.engine.Channel(i).SetVolume(clamp(v, 0, 1))
	}
	_, wy := ebiten.Wheel()
	if wy != 0 {
		g.cycleWaveformBy(g.selected, int(wy))
	}
}

func (g *game) toggleTransport() {
	if g.engine.Patterns().Playing() {
		g.engine.StopTransport()
		return
	}
	g.engine.PlayPatterns()
}

func (g *game) cycleWaveform(ch int) { g.cycleWaveformBy(ch, 1) }

func (g *game) cycleWaveformBy(ch, step int) {
	c := g.engine.Channel(ch)
	if c == nil {
		return
	}
	cur := 0
	for i, w := range waveforms {
		if w == c.Waveform() {
			cur = i
		}
	}
	next := ((cur+step)%len(waveforms) + len(waveforms)) % len(waveforms)
	c.SetWaveform(waveforms[next])
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	l := g.layoutRects()
	e := g.engine
	m := e.Patterns()

	label := "Play"
	if m.Playing() {
		label = "Stop"
	}
	g.drawButton(screen, l.play, label)

	g.drawPanel(screen, l.info)
	g.drawText(screen, fmt.Sprintf("%d BPM  Oct %d", m.BPM(), g.octave), l.info.Min.X+8, l.info.Min.Y+8)

	g.drawBeats(screen, l.beats)

	g.drawPanel(screen, l.master)
	left, right := e.MasterLevel()
	inner := l.master.Inset(6)
	midY := inner.Min.Y + inner.Dy()/2
	drawMeterH(screen, image.Rect(inner.Min.X, inner.Min.Y, inner.Max.X, midY-1), left)
	drawMeterH(screen, image.Rect(inner.Min.X, midY+1, inner.Max.X, inner.Max.Y), right)

	for i, strip := range l.strips {
		g.drawStrip(screen, i, strip)
	}

	g.drawSunkenPanel(screen, l.status)
	g.drawText(screen, "A-K play  Z/X oct  1-8 ch  Tab wave  Space run", l.status.Min.X+8, l.status.Min.Y+6)
}

func (g *game) drawBeats(screen *ebiten.Image, rect image.Rectangle) {
	g.drawSunkenPanel(screen, rect)
	m := g.engine.Patterns()
	n := m.BeatsPerPattern()
	inner := rect.Inset(6)
	cellW := inner.Dx() / max(n, 1)
	if cellW < 2 {
		return
	}
	cur := m.CurrentBeat()
	for b := 0; b < n; b++ {
		c := beatOffColor
		if m.Playing() && b == cur {
			c = beatOnColor
		}
		x := inner.Min.X + b*cellW
		fillRect(screen, image.Rect(x+1, inner.Min.Y, x+cellW-1, inner.Max.Y), c)
	}
}

func (g *game) drawStrip(screen *ebiten.Image, i int, strip image.Rectangle) {
	ch := g.engine.Channel(i)
	g.drawPanel(screen, strip)
	if i == g.selected {
		drawOutline(screen, strip, selectedColor)
	}
	header, scope, vu, volume := stripParts(strip)
	state := ""
	if !ch.Enabled() {
		state = " off"
	}
	g.drawText(screen, fmt.Sprintf("%d %s %d/%d%s", i+1, ch.Waveform(), ch.ActiveVoices(), ch.MaxVoices(), state), header.Min.X+4, header.Min.Y)

	g.drawSunkenPanel(screen, scope)
	c := waveColor
	if !ch.Enabled() {
		c = mutedColor
	}
	drawScope(screen, scope.Inset(3), g.engine.ChannelScope(i, scopeSamples), &g.gains[i], c)
	drawMeter(screen, vu, g.engine.ChannelLevel(i))
	drawSlider(screen, volume, ch.Volume())
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	g.viewW = max(outsideW, minWindowW)
	g.viewH = max(outsideH, minWindowH)
	return g.viewW, g.viewH
}

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config (default: built-in demo)")
		autoplay   = flag.Bool("play", false, "start the pattern transport immediately")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := polysynth.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = polysynth.LoadConfig(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	// The window owns the ebiten audio context.
	cfg.Engine.Backend = audio.BackendEbiten

	e, err := polysynth.New(cfg, polysynth.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	if err := e.Start(); err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := e.Stop(); err != nil {
			logger.Error("stop engine", "err", err)
		}
	}()
	if *autoplay {
		e.PlayPatterns()
	}

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSizeLimits(minWindowW, minWindowH, -1, -1)
	ebiten.SetWindowTitle("polysynth")
	if err := ebiten.RunGame(newGame(e)); err != nil {
		logger.Error("ui", "err", err)
	}
}
