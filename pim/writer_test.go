package pim

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(width, height int, c color.NRGBA) *Bitmap {
	b := NewBitmap(width, height)
	for i := range b.Pix {
		b.Pix[i] = c
	}
	return b
}

// pattern returns a bitmap using exactly n distinct colors.
func pattern(width, height, n int) *Bitmap {
	b := NewBitmap(width, height)
	for i := range b.Pix {
		k := (i*7 + i/width) % n
		b.Pix[i] = color.NRGBA{uint8(k * 13), uint8(255 - k), uint8(k % 5), uint8(k * 31)}
	}
	// Make sure every color is used at least once
	for k := 0; k < n && k < len(b.Pix); k++ {
		b.Pix[k] = color.NRGBA{uint8(k * 13), uint8(255 - k), uint8(k % 5), uint8(k * 31)}
	}
	return b
}

func normalized(c color.NRGBA) color.NRGBA {
	c.A = NormalizeAlpha(c.A)
	return c
}

// decodeIndexed reads back the color of every pixel from an indexed PIM file.
func decodeIndexed(t *testing.T, out []byte, d Depth) (int, int, []color.NRGBA) {
	t.Helper()

	f := formats[d]
	require.True(t, len(out) >= HeaderSize+f.paletteSize())

	width := int(out[0]) | int(out[1])<<8
	height := int(out[2]) | int(out[3])<<8
	pal := out[HeaderSize : HeaderSize+f.paletteSize()]
	payload := out[HeaderSize+f.paletteSize():]
	require.Len(t, payload, f.payloadSize(width*height))

	pix := make([]color.NRGBA, width*height)
	for i := range pix {
		var idx int
		switch d {
		case Depth4:
			if i&1 == 0 {
				idx = int(payload[i>>1] & 0x0f)
			} else {
				idx = int(payload[i>>1] >> 4)
			}
		case Depth8:
			idx = int(payload[i])
		}
		o := idx * bytesPerColor
		pix[i] = color.NRGBA{pal[o], pal[o+1], pal[o+2], pal[o+3]}
	}
	return width, height, pix
}

func TestMarshalDirect(t *testing.T) {
	out, err := Marshal(solid(2, 2, color.NRGBA{255, 0, 0, 255}), Depth32)
	require.NoError(t, err)

	expected := []byte{2, 0, 2, 0, 0x20, 0, 0, 0, 0, 0, 0, 0, 0x10, 0, 0, 0}
	for i := 0; i < 4; i++ {
		expected = append(expected, 255, 0, 0, 128)
	}
	assert.Equal(t, expected, out)
}

func TestMarshalDirectChannelOrder(t *testing.T) {
	b := NewBitmap(2, 1)
	b.Pix[0] = color.NRGBA{1, 2, 3, 4}
	b.Pix[1] = color.NRGBA{5, 6, 7, 255}

	out, err := Marshal(b, Depth32)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 2, 5, 6, 7, 128}, out[HeaderSize:])
}

func TestMarshal4BitOddPixels(t *testing.T) {
	a := color.NRGBA{200, 10, 10, 255}
	b := color.NRGBA{20, 10, 10, 255}

	bm := NewBitmap(3, 1)
	bm.Pix = []color.NRGBA{a, b, a}

	out, err := Marshal(bm, Depth4)
	require.NoError(t, err)
	require.Len(t, out, HeaderSize+0x40+2)

	// Palette is [b, a]
	assert.Equal(t, []byte{20, 10, 10, 128, 200, 10, 10, 128}, out[HeaderSize:HeaderSize+8])
	assert.Equal(t, make([]byte, 0x40-8), out[HeaderSize+8:HeaderSize+0x40])

	payload := out[HeaderSize+0x40:]
	assert.Equal(t, byte(1|0<<4), payload[0])
	assert.Equal(t, byte(1), payload[1])
	assert.Zero(t, payload[1]>>4)
}

func TestMarshal4BitOddLastByte(t *testing.T) {
	bm := pattern(5, 3, 16)

	out, err := Marshal(bm, Depth4)
	require.NoError(t, err)

	payload := out[HeaderSize+0x40:]
	require.Len(t, payload, (5*3+1)/2)
	assert.Zero(t, payload[len(payload)-1]&0xf0)
}

func TestMarshal8Bit(t *testing.T) {
	bm := pattern(10, 20, 200)

	out, err := Marshal(bm, Depth8)
	require.NoError(t, err)
	require.Len(t, out, HeaderSize+0x400+200)
	assert.Equal(t, []byte{10, 0, 20, 0, 0x08, 0, 0, 0x01, 0x10, 0, 0, 0, 0x10, 0x04, 0, 0}, out[:HeaderSize])

	// Unused palette slots stay zero
	assert.Equal(t, make([]byte, (256-200)*4), out[HeaderSize+200*4:HeaderSize+0x400])
}

func TestMarshalRoundTrip(t *testing.T) {
	tables := []struct {
		width, height, colors int
		depth                 Depth
	}{
		{1, 1, 1, Depth4},
		{7, 3, 16, Depth4},
		{8, 8, 9, Depth4},
		{13, 11, 256, Depth8},
		{64, 40, 100, Depth8},
		// Large enough to be packed concurrently, with an odd pixel count
		{301, 219, 16, Depth4},
		{300, 300, 256, Depth8},
	}

	for _, table := range tables {
		bm := pattern(table.width, table.height, table.colors)

		out, err := Marshal(bm, table.depth)
		require.NoError(t, err)

		width, height, pix := decodeIndexed(t, out, table.depth)
		assert.Equal(t, table.width, width)
		assert.Equal(t, table.height, height)
		for i, c := range bm.Pix {
			if !assert.Equal(t, normalized(c), pix[i], "%s pixel %d", table.depth, i) {
				break
			}
		}
	}
}

func TestMarshalDirectLarge(t *testing.T) {
	bm := pattern(257, 300, 1000)

	out, err := Marshal(bm, Depth32)
	require.NoError(t, err)
	require.Len(t, out, HeaderSize+257*300*4)

	for i, c := range bm.Pix {
		o := HeaderSize + i*4
		if !assert.Equal(t, normalized(c), color.NRGBA{out[o], out[o+1], out[o+2], out[o+3]}, "pixel %d", i) {
			break
		}
	}
}

func TestMarshalDeterministic(t *testing.T) {
	for _, d := range []Depth{Depth4, Depth8, Depth32} {
		n := 500
		if d.Indexed() {
			n = d.MaxColors()
		}
		bm := pattern(33, 17, n)

		first, err := Marshal(bm, d)
		require.NoError(t, err)
		second, err := Marshal(bm, d)
		require.NoError(t, err)
		assert.Equal(t, first, second, d.String())
	}
}

func TestMarshalPaletteOverflow(t *testing.T) {
	_, err := Marshal(pattern(17, 1, 17), Depth4)
	assert.ErrorIs(t, err, ErrPaletteOverflow)

	_, err = Marshal(pattern(20, 20, 257), Depth8)
	assert.ErrorIs(t, err, ErrPaletteOverflow)

	// Direct color has no palette to overflow
	_, err = Marshal(pattern(20, 20, 257), Depth32)
	assert.NoError(t, err)
}

func TestMarshalUnsupportedDepth(t *testing.T) {
	for _, d := range []Depth{0, 1, 2, 16, 24, 64} {
		_, err := Marshal(solid(1, 1, color.NRGBA{}), d)
		assert.ErrorIs(t, err, ErrUnsupportedDepth, "depth %d", int(d))
	}
}

func TestMarshalZeroArea(t *testing.T) {
	out, err := Marshal(NewBitmap(0, 5), Depth8)
	require.NoError(t, err)
	require.Len(t, out, HeaderSize+0x400)
	assert.Equal(t, []byte{0, 0, 5, 0, 0x08}, out[:5])
	assert.Equal(t, make([]byte, 0x400), out[HeaderSize:])

	out, err = Marshal(NewBitmap(4, 0), Depth32)
	require.NoError(t, err)
	assert.Len(t, out, HeaderSize)

	out, err = Marshal(NewBitmap(0, 0), Depth4)
	require.NoError(t, err)
	assert.Len(t, out, HeaderSize+0x40)
}

func TestMarshalInvalidDimensions(t *testing.T) {
	tables := []*Bitmap{
		{Width: -1, Height: 1},
		{Width: 65536, Height: 1},
		{Width: 1, Height: 70000},
		{Width: 2, Height: 2, Pix: make([]color.NRGBA, 3)},
	}

	for _, b := range tables {
		_, err := Marshal(b, Depth32)
		assert.ErrorIs(t, err, ErrInvalidDimensions, "%dx%d", b.Width, b.Height)
	}
}

func TestColorNotInPalette(t *testing.T) {
	bm := NewBitmap(2, 2)
	bm.Pix = []color.NRGBA{{1, 1, 1, 255}, {2, 2, 2, 255}, {3, 3, 3, 255}, {1, 1, 1, 255}}

	// Palette built from a different bitmap
	p := Palette{{1, 1, 1, 255}, {2, 2, 2, 255}}

	for _, bits := range []int{4, 8} {
		e := encoder{
			b:     bm,
			bits:  bits,
			index: p.Index(),
			buf:   make([]byte, 4),
		}
		err := e.pack()
		assert.ErrorIs(t, err, ErrColorNotInPalette)
		assert.Contains(t, err.Error(), "(0, 1)")
	}
}

func TestEncode(t *testing.T) {
	m := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			m.SetNRGBA(x, y, color.NRGBA{uint8(x * 100), uint8(y * 100), 0, 255})
		}
	}

	for _, d := range []Depth{Depth4, Depth8, Depth32} {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, m, d))

		expected, err := Marshal(FromImage(m), d)
		require.NoError(t, err)
		assert.Equal(t, expected, buf.Bytes())
	}

	var buf bytes.Buffer
	assert.ErrorIs(t, Encode(&buf, m, Depth(12)), ErrUnsupportedDepth)
	assert.Zero(t, buf.Len())
}
