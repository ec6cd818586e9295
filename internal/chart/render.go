package chart

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mrcode/fpu-scheduler/internal/models"
	"github.com/mrcode/fpu-scheduler/internal/regime"
)

// Layout constants in pixels
const (
	marginTop    = 16
	marginBottom = 36 // Time axis labels + legend
	marginSide   = 12
	barGap       = 1
	slotGap      = 3
	fontSize     = 11
	splitMarker  = 6 // Height of the zigzag drawn across split bars
)

// RenderPNG draws the regime as grouped bars (sugars, carbs, e-carbs) per grid time
func RenderPNG(r *regime.Regime, f Fitting, cfg models.ChartConfig) ([]byte, error) {
	if len(r.Slots) == 0 {
		return nil, fmt.Errorf("regime has no slots to render")
	}

	barWidth := cfg.BarWidth
	if barWidth <= 0 {
		barWidth = 8
	}
	slotWidth := 3*barWidth + 2*barGap + slotGap
	width := int(2*marginSide + float64(len(r.Slots))*slotWidth)
	height := int(marginTop + f.PreviewHeight + marginBottom)

	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()

	baseline := marginTop + f.PreviewHeight
	colors := map[models.CarbsEntryType]string{
		models.Sugars:        cfg.ColorSugars,
		models.RegularCarbs:  cfg.ColorRegularCarbs,
		models.ExtendedCarbs: cfg.ColorExtendedCarbs,
	}

	for i, slot := range r.Slots {
		x := marginSide + float64(i)*slotWidth
		for j, entryType := range models.CarbsEntryTypes {
			value := slot.Entry(entryType).ValueGrams
			h := f.BarHeight(value)
			if h <= 0 {
				continue
			}
			bx := x + float64(j)*(barWidth+barGap)
			cr, cg, cb := parseHexColor(colors[entryType])
			dc.SetRGB255(int(cr), int(cg), int(cb))
			dc.DrawRectangle(bx, baseline-h, barWidth, h)
			dc.Fill()

			if f.IsSplit(value) {
				drawSplitMarker(dc, bx, baseline-h/2, barWidth)
			}
		}
	}

	// Baseline
	dc.SetRGB255(107, 114, 128)
	dc.SetLineWidth(1)
	dc.DrawLine(marginSide, baseline, float64(width-marginSide), baseline)
	dc.Stroke()

	if err := loadFont(dc, fontSize); err == nil {
		drawTimeAxis(dc, r, slotWidth, baseline)
		drawLegend(dc, colors, float64(height)-6)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encoding chart: %w", err)
	}
	return buf.Bytes(), nil
}

// drawSplitMarker draws a white zigzag across a bar to show it is not to scale
func drawSplitMarker(dc *gg.Context, x, y, w float64) {
	dc.Push()
	defer dc.Pop()

	dc.SetColor(color.White)
	dc.SetLineWidth(2)
	dc.MoveTo(x, y)
	dc.LineTo(x+w/2, y-splitMarker/2)
	dc.LineTo(x+w, y)
	dc.MoveTo(x, y+splitMarker/2)
	dc.LineTo(x+w/2, y)
	dc.LineTo(x+w, y+splitMarker/2)
	dc.Stroke()
}

// drawTimeAxis labels every full hour after the regime start
func drawTimeAxis(dc *gg.Context, r *regime.Regime, slotWidth, baseline float64) {
	dc.SetRGB255(55, 65, 81)
	slotsPerHour := 60 / r.IntervalMinutes
	if slotsPerHour < 1 {
		slotsPerHour = 1
	}
	for i := 0; i < len(r.Slots); i += slotsPerHour {
		x := marginSide + float64(i)*slotWidth
		dc.DrawStringAnchored(r.Slots[i].Time.Format("15:04"), x, baseline+4, 0, 1)
	}
}

func drawLegend(dc *gg.Context, colors map[models.CarbsEntryType]string, y float64) {
	x := float64(marginSide)
	for _, entryType := range models.CarbsEntryTypes {
		r, g, b := parseHexColor(colors[entryType])
		dc.SetRGB255(int(r), int(g), int(b))
		dc.DrawRectangle(x, y-8, 8, 8)
		dc.Fill()

		dc.SetRGB255(55, 65, 81)
		label := entryType.Label()
		dc.DrawString(label, x+11, y)
		w, _ := dc.MeasureString(label)
		x += w + 24
	}
}

// loadFont helper to load font safely
func loadFont(dc *gg.Context, size float64) error {
	font, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return err
	}
	face := truetype.NewFace(font, &truetype.Options{Size: size})
	dc.SetFontFace(face)
	return nil
}

// parseHexColor parses a hex color string to RGB values
func parseHexColor(hex string) (r, g, b byte) {
	if len(hex) == 7 && hex[0] == '#' {
		_, _ = fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	}
	return
}
