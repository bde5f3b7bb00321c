package spectrogram

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
)

// RenderOptions sizes the comparison image.
type RenderOptions struct {
	PanelWidth  int
	PanelHeight int
	Gap         int
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.PanelWidth <= 0 {
		o.PanelWidth = 600
	}
	if o.PanelHeight <= 0 {
		o.PanelHeight = 300
	}
	if o.Gap <= 0 {
		o.Gap = 8
	}
	return o
}

// RenderComparison draws the original and cleaned spectrograms side by side,
// original on the left. Time runs left to right and low bands sit at the
// bottom of each panel.
func RenderComparison(original, cleaned *Mel, opts RenderOptions) *image.RGBA {
	opts = opts.withDefaults()
	width := opts.PanelWidth*2 + opts.Gap
	img := image.NewRGBA(image.Rect(0, 0, width, opts.PanelHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	drawPanel(img, original, 0, opts)
	drawPanel(img, cleaned, opts.PanelWidth+opts.Gap, opts)
	return img
}

// RenderSingle draws one spectrogram panel.
func RenderSingle(m *Mel, opts RenderOptions) *image.RGBA {
	opts = opts.withDefaults()
	img := image.NewRGBA(image.Rect(0, 0, opts.PanelWidth, opts.PanelHeight))
	drawPanel(img, m, 0, opts)
	return img
}

func drawPanel(img *image.RGBA, m *Mel, x0 int, opts RenderOptions) {
	w, h := opts.PanelWidth, opts.PanelHeight
	if m == nil || m.Frames == 0 || m.Bands == 0 {
		bg := Colormap(0)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetRGBA(x0+x, y, bg)
			}
		}
		return
	}

	for y := 0; y < h; y++ {
		band := (h - 1 - y) * m.Bands / h
		row := m.DB[band]
		for x := 0; x < w; x++ {
			frame := x * m.Frames / w
			v := 1 + float64(row[frame])/m.TopDB
			img.SetRGBA(x0+x, y, Colormap(v))
		}
	}
}

// magma-like anchors from dark (quiet) to bright (loud).
var anchors = []color.RGBA{
	{0, 0, 4, 255},
	{40, 11, 84, 255},
	{101, 21, 110, 255},
	{159, 42, 99, 255},
	{212, 72, 66, 255},
	{245, 125, 21, 255},
	{250, 193, 39, 255},
	{252, 255, 164, 255},
}

// Colormap maps v in [0, 1] onto the palette. Values outside are clamped.
func Colormap(v float64) color.RGBA {
	if v <= 0 {
		return anchors[0]
	}
	if v >= 1 {
		return anchors[len(anchors)-1]
	}
	pos := v * float64(len(anchors)-1)
	i := int(pos)
	frac := pos - float64(i)
	a, b := anchors[i], anchors[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*frac + 0.5)
	}
	return color.RGBA{lerp(a.R, b.R), lerp(a.G, b.G), lerp(a.B, b.B), 255}
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, img)
}
