package processing

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/label-analyzer/pkg/types"
)

// NamedColor is a palette entry
type NamedColor struct {
	Name  string
	Color color.NRGBA
}

// Palette is cycled per label that has at least one instance
var Palette = []NamedColor{
	{"red", color.NRGBA{255, 0, 0, 255}},
	{"blue", color.NRGBA{0, 0, 255, 255}},
	{"green", color.NRGBA{0, 128, 0, 255}},
	{"yellow", color.NRGBA{255, 255, 0, 255}},
	{"purple", color.NRGBA{128, 0, 128, 255}},
	{"orange", color.NRGBA{255, 165, 0, 255}},
	{"cyan", color.NRGBA{0, 255, 255, 255}},
	{"magenta", color.NRGBA{255, 0, 255, 255}},
	{"lime", color.NRGBA{0, 255, 0, 255}},
	{"pink", color.NRGBA{255, 192, 203, 255}},
	{"teal", color.NRGBA{0, 128, 128, 255}},
	{"brown", color.NRGBA{165, 42, 42, 255}},
	{"navy", color.NRGBA{0, 0, 128, 255}},
	{"olive", color.NRGBA{128, 128, 0, 255}},
}

var captionBackground = color.NRGBA{0, 0, 0, 255}

// DrawnBox records one rectangle drawn on the image
type DrawnBox struct {
	Label      string
	Confidence float64
	Rect       image.Rectangle
	Color      string
}

// PixelRect scales a normalized box by the image dimensions. Width and height
// are scaled independently, without aspect correction.
func PixelRect(box types.BoundingBox, w, h int) image.Rectangle {
	x0 := int(math.Round(box.Left * float64(w)))
	y0 := int(math.Round(box.Top * float64(h)))
	bw := int(math.Round(box.Width * float64(w)))
	bh := int(math.Round(box.Height * float64(h)))
	return image.Rect(x0, y0, x0+bw, y0+bh)
}

// Annotate draws an outline and a caption for every instance of every label,
// in label order. Labels without instances leave the image untouched.
func (p *Processor) Annotate(buf *ImageBuffer, labels []types.Label) []DrawnBox {
	img := buf.Image
	w, h := buf.Width(), buf.Height()

	var drawn []DrawnBox
	colorIndex := 0
	for _, label := range labels {
		if len(label.Instances) == 0 {
			continue
		}
		c := Palette[colorIndex%len(Palette)]
		colorIndex++

		for _, inst := range label.Instances {
			rect := PixelRect(inst.Box, w, h)
			drawBox(img, rect, c.Color, p.stroke)
			drawCaption(img, rect, fmt.Sprintf("%s (%.1f%%)", label.Name, inst.Confidence), c.Color)
			drawn = append(drawn, DrawnBox{
				Label:      label.Name,
				Confidence: inst.Confidence,
				Rect:       rect,
				Color:      c.Name,
			})
		}
	}
	return drawn
}

// drawBox draws an unfilled outline of the given stroke inside rect
func drawBox(img *image.NRGBA, rect image.Rectangle, c color.NRGBA, stroke int) {
	x0, y0, x1, y1 := rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

// drawCaption writes text on a black background near the top-left corner of rect
func drawCaption(img *image.NRGBA, rect image.Rectangle, text string, c color.NRGBA) {
	face := basicfont.Face7x13
	imgH := img.Bounds().Dy()

	top, height := rect.Min.Y, rect.Dy()
	y := top + 5
	if top < 15 {
		// too close to the top edge, put the caption below the box
		y = top + height + 5
	} else if top+height+20 > imgH && top > 15 {
		y = top - 15
	}
	x := rect.Min.X + 5

	textW := font.MeasureString(face, text).Ceil()
	textH := face.Metrics().Height.Ceil()
	bg := image.Rect(x-2, y-2, x+textW+2, y+textH+2).Intersect(img.Bounds())
	if bg.Empty() {
		return
	}
	draw.Draw(img, bg, image.NewUniform(captionBackground), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
