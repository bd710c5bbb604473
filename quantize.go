package imagetopim

import (
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"

	"github.com/ericpauley/go-quantize/quantize"
	"github.com/esimov/colorquant"
)

// Names accepted by NewQuantizer
const (
	MedianCutQuantizer  = "median"
	ColorQuantQuantizer = "colorquant"

	DefaultQuantizer = MedianCutQuantizer
)

// Quantizer reduces an image to at most n colors.
type Quantizer interface {
	Quantize(m image.Image, n int) image.Image
}

// NewQuantizer returns the quantizer with the given name.
func NewQuantizer(name string) (Quantizer, error) {
	switch name {
	case MedianCutQuantizer:
		return medianCut{}, nil
	case ColorQuantQuantizer:
		return colorQuant{}, nil
	default:
		return nil, fmt.Errorf("unknown quantizer %q", name)
	}
}

type medianCut struct{}

// Quantize maps every pixel to the nearest color of a median cut palette
// without dithering.
func (medianCut) Quantize(m image.Image, n int) image.Image {
	q := quantize.MedianCutQuantizer{}
	b := m.Bounds()
	pm := image.NewPaletted(b, q.Quantize(make(color.Palette, 0, n), m))
	draw.Draw(pm, b, m, b.Min, draw.Src)
	return pm
}

type colorQuant struct{}

func (colorQuant) Quantize(m image.Image, n int) image.Image {
	dst := image.NewPaletted(m.Bounds(), palette.WebSafe)
	return colorquant.NoDither.Quantize(m, dst, n, false, true)
}
