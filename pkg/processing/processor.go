package processing

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"strings"

	// decoders for image.Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/label-analyzer/pkg/fault"
)

// ImageBuffer holds the fetched bytes and the decoded, drawable pixels
type ImageBuffer struct {
	Data   []byte
	Format string
	Image  *image.NRGBA
}

// Width returns the decoded pixel width
func (b *ImageBuffer) Width() int {
	return b.Image.Bounds().Dx()
}

// Height returns the decoded pixel height
func (b *ImageBuffer) Height() int {
	return b.Image.Bounds().Dy()
}

// Processor handles image processing operations
type Processor struct {
	stroke int
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{stroke: 3}
}

// NewProcessorWithStroke creates a processor drawing outlines of the given width
func NewProcessorWithStroke(stroke int) *Processor {
	if stroke < 1 {
		stroke = 1
	}
	return &Processor{stroke: stroke}
}

// Decode decodes fetched bytes into a drawable buffer with WebP support
func (p *Processor) Decode(data []byte) (*ImageBuffer, error) {
	img, format, err := decodeImageFromBytes(data)
	if err != nil {
		return nil, fault.New(fault.Decode, "decode image", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fault.New(fault.Decode, "decode image", fmt.Errorf("invalid image dimensions %dx%d", b.Dx(), b.Dy()))
	}

	// Clone rebases the bounds at (0,0) and gives a mutable NRGBA
	return &ImageBuffer{Data: data, Format: format, Image: imaging.Clone(img)}, nil
}

// decodeImageFromBytes decodes an image from byte data with WebP support
func decodeImageFromBytes(data []byte) (image.Image, string, error) {
	// Try standard image.Decode first
	img, format, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, format, nil
	}

	// Try WebP decode
	if img, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return img, "webp", nil
	}

	return nil, "", fmt.Errorf("unknown or unsupported format: %w", err)
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		if err := webp.Encode(f, img, opts); err != nil {
			return err
		}
		return f.Close()
	case "png":
		return imaging.Save(img, path)
	case "jpg", "jpeg":
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
