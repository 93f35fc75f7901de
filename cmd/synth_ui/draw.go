package main

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/cbegin/polysynth-go/internal/meter"
)

const (
	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale
)

var (
	bgColor       = color.RGBA{192, 192, 192, 255}
	panelColor    = color.RGBA{192, 192, 192, 255}
	borderColor   = color.RGBA{128, 128, 128, 255}
	bevelLight    = color.RGBA{255, 255, 255, 255}
	bevelDarker   = color.RGBA{64, 64, 64, 255}
	sunkenBgColor = color.RGBA{24, 24, 32, 255}
	selectedColor = color.RGBA{0, 0, 128, 255}
	waveColor     = color.RGBA{80, 200, 255, 220}
	mutedColor    = color.RGBA{90, 90, 90, 220}
	meterGreen    = color.RGBA{40, 200, 80, 255}
	meterYellow   = color.RGBA{230, 200, 40, 255}
	meterRed      = color.RGBA{230, 50, 40, 255}
	beatOnColor   = color.RGBA{255, 160, 0, 255}
	beatOffColor  = color.RGBA{60, 60, 72, 255}
)

// meterFloorDB is the bottom of the VU scale.
const meterFloorDB = -48.0

// meterFraction maps a level in dBFS onto 0..1 of the bar length.
func meterFraction(db float64) float64 {
	if db <= meterFloorDB {
		return 0
	}
	if db >= 0 {
		return 1
	}
	return 1 - db/meterFloorDB
}

func (g *game) drawPanel(screen *ebiten.Image, rect image.Rectangle) {
	fillRect(screen, rect, panelColor)
	drawBorder(screen, rect)
}

func (g *game) drawSunkenPanel(screen *ebiten.Image, rect image.Rectangle) {
	fillRect(screen, rect, sunkenBgColor)
	drawSunkenBorder(screen, rect)
}

func (g *game) drawButton(screen *ebiten.Image, rect image.Rectangle, label string) {
	g.drawPanel(screen, rect)
	labelW := len([]rune(label)) * charW
	g.drawText(screen, label, rect.Min.X+(rect.Dx()-labelW)/2, rect.Min.Y+(rect.Dy()-lineH)/2)
}

func fillRect(dst *ebiten.Image, rect image.Rectangle, c color.Color) {
	ebitenutil.DrawRect(dst, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), c)
}

// drawBorder draws a raised bevel.
func drawBorder(screen *ebiten.Image, rect image.Rectangle) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, bevelLight)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, bevelLight)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+h-2, w-3, 1, borderColor)
	ebitenutil.DrawRect(screen, x+w-2, y+1, 1, h-3, borderColor)
}

// drawSunkenBorder draws the inverse of drawBorder.
func drawSunkenBorder(screen *ebiten.Image, rect image.Rectangle) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, borderColor)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelLight)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelLight)
	ebitenutil.DrawRect(screen, x+1, y+1, w-3, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+2, 1, h-4, bevelDarker)
}

// drawOutline frames rect with a 2px line in c.
func drawOutline(screen *ebiten.Image, rect image.Rectangle, c color.Color) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w, 2, c)
	ebitenutil.DrawRect(screen, x, y+h-2, w, 2, c)
	ebitenutil.DrawRect(screen, x, y, 2, h, c)
	ebitenutil.DrawRect(screen, x+w-2, y, 2, h, c)
}

func (g *game) drawText(screen *ebiten.Image, msg string, x, y int) {
	if msg == "" {
		return
	}
	img := g.textCache[msg]
	if img == nil {
		img = ebiten.NewImage(max(1, len([]rune(msg))*7), 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(g.textCache) > 3000 {
			g.textCache = make(map[string]*ebiten.Image, 1024)
		}
		g.textCache[msg] = img
	}
	shadow := &ebiten.DrawImageOptions{}
	shadow.GeoM.Scale(textScale, textScale)
	shadow.GeoM.Translate(float64(x+2), float64(y+2))
	shadow.ColorScale.Scale(0, 0, 0, 1)
	screen.DrawImage(img, shadow)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	screen.DrawImage(img, op)
}

// drawScope draws samples into rect, triggered on a rising zero crossing and
// scaled by the strip's auto gain.
func drawScope(dst *ebiten.Image, rect image.Rectangle, samples []float32, gain *float64, c color.Color) {
	width, height := rect.Dx(), rect.Dy()
	if len(samples) < 2 || width < 2 || height < 4 {
		return
	}
	midY := rect.Min.Y + height/2
	ebitenutil.DrawRect(dst, float64(rect.Min.X), float64(midY), float64(width), 1, color.RGBA{40, 44, 58, 100})

	peak, _ := meter.Measure(samples)
	target := max(float64(peak), 0.01)
	if target > *gain {
		*gain = *gain*0.3 + target*0.7
	} else {
		*gain = *gain*0.995 + target*0.005
	}
	*gain = max(*gain, 0.01)
	scale := float64(height/2-2) / *gain

	trigger := findZeroCrossing(samples, len(samples)/4)
	visible := max(len(samples)-trigger, 2)
	prevX := rect.Min.X
	prevY := midY - int(float64(samples[trigger])*scale)
	for px := 1; px < width; px++ {
		si := min(trigger+px*visible/width, len(samples)-1)
		x := rect.Min.X + px
		y := midY - int(float64(samples[si])*scale)
		ebitenutil.DrawLine(dst, float64(prevX), float64(prevY), float64(x), float64(y), c)
		prevX, prevY = x, y
	}
}

// findZeroCrossing returns the first rising zero crossing within searchLen,
// or 0.
func findZeroCrossing(samples []float32, searchLen int) int {
	searchLen = min(searchLen, len(samples)-2)
	for i := 1; i < searchLen; i++ {
		if samples[i-1] <= 0 && samples[i] > 0 {
			return i
		}
	}
	return 0
}

// drawMeter draws a vertical VU bar with a peak tick.
func drawMeter(dst *ebiten.Image, rect image.Rectangle, level meter.Level) {
	fillRect(dst, rect, color.RGBA{0, 0, 0, 255})
	drawSunkenBorder(dst, rect)
	inner := rect.Inset(2)
	rms := meterFraction(level.RMSDB())
	barH := int(float64(inner.Dy()) * rms)
	if barH > 0 {
		c := meterGreen
		switch {
		case rms > 0.95:
			c = meterRed
		case rms > 0.8:
			c = meterYellow
		}
		fillRect(dst, image.Rect(inner.Min.X, inner.Max.Y-barH, inner.Max.X, inner.Max.Y), c)
	}
	if pk := int(float64(inner.Dy()) * meterFraction(level.PeakDB())); pk > 0 {
		y := inner.Max.Y - pk
		fillRect(dst, image.Rect(inner.Min.X, y, inner.Max.X, y+2), bevelLight)
	}
}

// drawMeterH is drawMeter laid on its side, for the narrow master strip.
func drawMeterH(dst *ebiten.Image, rect image.Rectangle, level meter.Level) {
	fillRect(dst, rect, color.RGBA{0, 0, 0, 255})
	barW := int(float64(rect.Dx()) * meterFraction(level.RMSDB()))
	if barW > 0 {
		fillRect(dst, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+barW, rect.Max.Y), meterGreen)
	}
	if pk := int(float64(rect.Dx()) * meterFraction(level.PeakDB())); pk > 0 {
		x := rect.Min.X + pk
		fillRect(dst, image.Rect(x-2, rect.Min.Y, x, rect.Max.Y), bevelLight)
	}
}

// drawSlider draws a horizontal track filled to v in 0..1.
func drawSlider(dst *ebiten.Image, rect image.Rectangle, v float64) {
	trackY := rect.Min.Y + rect.Dy()/2 - 4
	track := image.Rect(rect.Min.X, trackY, rect.Max.X, trackY+8)
	fillRect(dst, track, bevelDarker)
	fillW := int(float64(track.Dx()) * clamp(v, 0, 1))
	if fillW > 2 {
		fillRect(dst, image.Rect(track.Min.X+1, track.Min.Y+1, track.Min.X+fillW, track.Max.Y-1), selectedColor)
	}
	knobX := min(max(track.Min.X+fillW-5, track.Min.X-5), track.Max.X-5)
	knob := image.Rect(knobX, trackY-4, knobX+10, trackY+12)
	fillRect(dst, knob, panelColor)
	drawBorder(dst, knob)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return image.Pt(x, y).In(rect)
}
