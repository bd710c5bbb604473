package pim

import (
	"fmt"
	"image"
	"image/color"
)

// Bitmap is a row-major grid of non-premultiplied RGBA pixels, top to bottom
// and left to right.
type Bitmap struct {
	Width  int
	Height int
	Pix    []color.NRGBA
}

// NewBitmap returns a transparent black bitmap of the given size.
func NewBitmap(width, height int) *Bitmap {
	return &Bitmap{
		Width:  width,
		Height: height,
		Pix:    make([]color.NRGBA, width*height),
	}
}

// FromImage copies the pixels of m into a new Bitmap. The bitmap always
// starts at (0, 0) regardless of the bounds of m.
func FromImage(m image.Image) *Bitmap {
	b := m.Bounds()
	bm := NewBitmap(b.Dx(), b.Dy())

	if nm, ok := m.(*image.NRGBA); ok {
		for y := 0; y < bm.Height; y++ {
			o := nm.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < bm.Width; x++ {
				bm.Pix[y*bm.Width+x] = color.NRGBA{nm.Pix[o], nm.Pix[o+1], nm.Pix[o+2], nm.Pix[o+3]}
				o += 4
			}
		}
		return bm
	}

	for y := 0; y < bm.Height; y++ {
		for x := 0; x < bm.Width; x++ {
			bm.Pix[y*bm.Width+x] = color.NRGBAModel.Convert(m.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
		}
	}
	return bm
}

// At returns the pixel at (x, y).
func (b *Bitmap) At(x, y int) color.NRGBA {
	return b.Pix[y*b.Width+x]
}

// Set sets the pixel at (x, y).
func (b *Bitmap) Set(x, y int, c color.NRGBA) {
	b.Pix[y*b.Width+x] = c
}

// Validate checks the dimensions fit in the header and agree with the number
// of pixels.
func (b *Bitmap) Validate() error {
	if err := checkDimensions(b.Width, b.Height); err != nil {
		return err
	}
	if len(b.Pix) != b.Width*b.Height {
		return fmt.Errorf("%w: %d pixels for %dx%d", ErrInvalidDimensions, len(b.Pix), b.Width, b.Height)
	}
	return nil
}
