package pim

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"runtime"

	"github.com/remeh/sizedwaitgroup"
)

const (
	// Bitmaps with at least this many pixels are packed concurrently
	parallelPixels = 1 << 16
	// Must be even so both nibbles of a 4-bit byte land in the same chunk
	chunkPixels = 1 << 14
)

type encoder struct {
	b     *Bitmap
	bits  int
	index map[color.NRGBA]int

	// Pixel data region of the output
	buf []byte
}

func (e *encoder) lookup(i int) (byte, error) {
	c := e.b.Pix[i]
	idx, ok := e.index[c]
	if !ok {
		return 0, fmt.Errorf("%w: %v at (%d, %d)", ErrColorNotInPalette, c, i%e.b.Width, i/e.b.Width)
	}
	return byte(idx), nil
}

// Even pixels take the low nibble, the following odd pixel the high nibble
// of the same byte
func (e *encoder) pack4(lo, hi int) error {
	for i := lo; i < hi; i++ {
		idx, err := e.lookup(i)
		if err != nil {
			return err
		}
		if i&1 == 0 {
			e.buf[i>>1] |= idx
		} else {
			e.buf[i>>1] |= idx << 4
		}
	}
	return nil
}

func (e *encoder) pack8(lo, hi int) error {
	for i := lo; i < hi; i++ {
		idx, err := e.lookup(i)
		if err != nil {
			return err
		}
		e.buf[i] = idx
	}
	return nil
}

func (e *encoder) pack32(lo, hi int) {
	for i := lo; i < hi; i++ {
		c := e.b.Pix[i]
		o := i * bytesPerColor
		e.buf[o+0] = c.R
		e.buf[o+1] = c.G
		e.buf[o+2] = c.B
		e.buf[o+3] = NormalizeAlpha(c.A)
	}
}

func (e *encoder) packRange(lo, hi int) error {
	switch e.bits {
	case 4:
		return e.pack4(lo, hi)
	case 8:
		return e.pack8(lo, hi)
	default:
		e.pack32(lo, hi)
		return nil
	}
}

// pack fills the pixel data. Large bitmaps are split into chunks that write
// to disjoint parts of the buffer.
func (e *encoder) pack() error {
	n := len(e.b.Pix)
	if n < parallelPixels {
		return e.packRange(0, n)
	}

	errs := make([]error, (n+chunkPixels-1)/chunkPixels)
	wg := sizedwaitgroup.New(runtime.NumCPU())
	for i := range errs {
		lo := i * chunkPixels
		hi := lo + chunkPixels
		if hi > n {
			hi = n
		}
		wg.Add()
		go func(i, lo, hi int) {
			defer wg.Done()
			errs[i] = e.packRange(lo, hi)
		}(i, lo, hi)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Marshal encodes b at depth d and returns the complete PIM file.
//
// For the indexed depths the palette is built from b itself, so an image
// with more distinct colors than the palette holds returns
// ErrPaletteOverflow rather than being reduced. Quantize such images first.
func Marshal(b *Bitmap, d Depth) ([]byte, error) {
	f, err := d.format()
	if err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	out := make([]byte, HeaderSize+f.paletteSize()+f.payloadSize(len(b.Pix)))
	f.putHeader(out, b.Width, b.Height)

	e := encoder{
		b:    b,
		bits: f.bits,
		buf:  out[HeaderSize+f.paletteSize():],
	}

	if f.colors > 0 {
		p := BuildPalette(b)
		if len(p) > f.colors {
			return nil, fmt.Errorf("%w: %d colors, %s holds %d", ErrPaletteOverflow, len(p), d, f.colors)
		}
		p.put(out[HeaderSize : HeaderSize+f.paletteSize()])
		e.index = p.Index()
	}

	if err := e.pack(); err != nil {
		return nil, err
	}

	return out, nil
}

// Encode writes the Image m to w in PIM format at depth d.
func Encode(w io.Writer, m image.Image, d Depth) error {
	b, err := Marshal(FromImage(m), d)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
