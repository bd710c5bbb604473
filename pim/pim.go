/*
Package pim implements a PIM image encoder.

A PIM file is a 16 byte header followed by an optional palette block and the
pixel data. There is no magic number or version field.

The header stores the width and height as little-endian 16-bit values at
offsets 0 and 2, a bit depth tag at offset 4 and a handful of per-format flag
bytes. Every other header byte is zero.

Three pixel encodings exist:

	 4-bit  64 byte palette of 16 colors, two pixels per byte, the even pixel
	        in the low nibble
	 8-bit  1024 byte palette of 256 colors, one byte per pixel
	32-bit  no palette, four bytes per pixel

Palette entries and direct pixels are stored in R, G, B, A order with the
alpha channel scaled from 0-255 down to 0-128.
*/
package pim

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	// HeaderSize is the length in bytes of the fixed header
	HeaderSize = 0x10

	bytesPerColor = 4
	maxDimension  = 1<<16 - 1
)

var (
	// ErrUnsupportedDepth is returned for any bit depth other than 4, 8 or 32
	ErrUnsupportedDepth = errors.New("pim: unsupported bit depth")
	// ErrPaletteOverflow is returned when an image has more distinct colors
	// than the palette can hold
	ErrPaletteOverflow = errors.New("pim: too many colors for palette")
	// ErrColorNotInPalette is returned when a pixel has no exact match in
	// the palette
	ErrColorNotInPalette = errors.New("pim: color not in palette")
	// ErrInvalidDimensions is returned for negative or oversized dimensions
	// or when the pixel count does not match them
	ErrInvalidDimensions = errors.New("pim: invalid dimensions")
)

// Depth is the pixel encoding of a PIM file.
type Depth int

// Supported bit depths
const (
	Depth4  Depth = 4
	Depth8  Depth = 8
	Depth32 Depth = 32
)

// ParseDepth parses a bit depth such as "8".
func ParseDepth(s string) (Depth, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedDepth, s)
	}
	d := Depth(n)
	if err := d.Validate(); err != nil {
		return 0, err
	}
	return d, nil
}

func (d Depth) String() string {
	return strconv.Itoa(int(d)) + "-bit"
}

// Indexed reports whether pixels reference a palette.
func (d Depth) Indexed() bool {
	return d.MaxColors() > 0
}

// MaxColors returns the palette capacity, or 0 for the direct color depth
// and unsupported depths.
func (d Depth) MaxColors() int {
	f, err := d.format()
	if err != nil {
		return 0
	}
	return f.colors
}

// Validate returns ErrUnsupportedDepth unless d is 4, 8 or 32.
func (d Depth) Validate() error {
	_, err := d.format()
	return err
}

func (d Depth) format() (*format, error) {
	f, ok := formats[d]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDepth, int(d))
	}
	return f, nil
}

// Header byte offsets
const (
	offWidth  = 0
	offHeight = 2
	offDepth  = 4
	offFlagA  = 6
	offFlagB  = 7
	offFlagC  = 8
	offFlagD  = 12
	offFlagE  = 13
)

type format struct {
	bits   int
	tag    byte
	flags  map[int]byte
	colors int
}

// paletteSize returns the length of the palette block, which is always
// allocated at full capacity.
func (f *format) paletteSize() int {
	return f.colors * bytesPerColor
}

// payloadSize rounds up so an odd pixel count at 4-bit still gets a whole
// byte for the last pixel.
func (f *format) payloadSize(pixels int) int {
	return (pixels*f.bits + 7) >> 3
}

var formats = map[Depth]*format{
	Depth4: {
		bits: 4,
		tag:  0x04,
		flags: map[int]byte{
			offFlagA: 0x10,
			offFlagC: 0x10,
			offFlagD: 0x50,
		},
		colors: 16,
	},
	Depth8: {
		bits: 8,
		tag:  0x08,
		flags: map[int]byte{
			offFlagB: 0x01,
			offFlagC: 0x10,
			offFlagD: 0x10,
			offFlagE: 0x04,
		},
		colors: 256,
	},
	Depth32: {
		bits: 32,
		tag:  0x20,
		flags: map[int]byte{
			offFlagD: 0x10,
		},
	},
}

// putHeader writes the header for a width by height image into b which must
// be at least HeaderSize bytes and zeroed.
func (f *format) putHeader(b []byte, width, height int) {
	b[offWidth+0] = byte(width & 0xff)
	b[offWidth+1] = byte(width >> 8)
	b[offHeight+0] = byte(height & 0xff)
	b[offHeight+1] = byte(height >> 8)
	b[offDepth] = f.tag
	for off, v := range f.flags {
		b[off] = v
	}
}

// Size returns the length in bytes of a PIM file holding a width by height
// image at depth d.
func Size(width, height int, d Depth) (int, error) {
	f, err := d.format()
	if err != nil {
		return 0, err
	}
	if err := checkDimensions(width, height); err != nil {
		return 0, err
	}
	return HeaderSize + f.paletteSize() + f.payloadSize(width*height), nil
}

func checkDimensions(width, height int) error {
	if width < 0 || height < 0 || width > maxDimension || height > maxDimension {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	return nil
}
