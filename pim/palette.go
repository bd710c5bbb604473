package pim

import (
	"image/color"
	"sort"
)

// Palette is a list of unique colors sorted by red, then green, then blue,
// then alpha. A pixel's index is its color's position in the list.
type Palette []color.NRGBA

func less(a, b color.NRGBA) bool {
	switch {
	case a.R != b.R:
		return a.R < b.R
	case a.G != b.G:
		return a.G < b.G
	case a.B != b.B:
		return a.B < b.B
	default:
		return a.A < b.A
	}
}

// BuildPalette returns the distinct colors of b in palette order. Colors are
// compared exactly, a zero area bitmap gives an empty palette.
func BuildPalette(b *Bitmap) Palette {
	seen := make(map[color.NRGBA]struct{})
	for _, c := range b.Pix {
		seen[c] = struct{}{}
	}

	p := make(Palette, 0, len(seen))
	for c := range seen {
		p = append(p, c)
	}
	sort.Slice(p, func(i, j int) bool { return less(p[i], p[j]) })

	return p
}

// Index maps each color to its position in p.
func (p Palette) Index() map[color.NRGBA]int {
	m := make(map[color.NRGBA]int, len(p))
	for i, c := range p {
		m[c] = i
	}
	return m
}

// NormalizeAlpha scales an 8-bit alpha value to the 0-128 range used by PIM.
func NormalizeAlpha(a uint8) uint8 {
	return uint8((int(a) + 1) / 2)
}

// put writes the palette entries into b, leaving any unused slots zero.
func (p Palette) put(b []byte) {
	for i, c := range p {
		o := i * bytesPerColor
		b[o+0] = c.R
		b[o+1] = c.G
		b[o+2] = c.B
		b[o+3] = NormalizeAlpha(c.A)
	}
}
