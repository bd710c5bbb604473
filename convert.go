package imagetopim

import (
	"context"
	"crypto/sha1"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KononK/resize"
	"github.com/dustin/go-humanize"
	"github.com/imagetopim/imagetopim/pim"
	_ "golang.org/x/image/bmp"
)

// Extension is appended to the base name of each converted image.
const Extension = ".PIM"

// OutputPath returns the path of the PIM file for the image file. The
// extension of file is replaced and, if dir is not empty, the file is placed
// in dir instead of alongside the image.
func OutputPath(file, dir string) string {
	base := strings.TrimSuffix(file, filepath.Ext(file)) + Extension
	if dir == "" {
		return base
	}
	return filepath.Join(dir, filepath.Base(base))
}

// hashFile returns the SHA-1 of the contents of file.
func hashFile(file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%X", h.Sum(nil)), nil
}

func decodeFile(file string) (image.Image, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	return m, nil
}

func (c *Converter) resize(m image.Image) image.Image {
	if c.cfg.Width == 0 && c.cfg.Height == 0 {
		return m
	}
	return resize.Resize(c.cfg.Width, c.cfg.Height, m, resize.Lanczos3)
}

// encode produces the PIM file for m, quantizing it first if it has more
// colors than the palette of depth d holds.
func (c *Converter) encode(file string, m image.Image, d pim.Depth) ([]byte, error) {
	m = c.resize(m)
	b := pim.FromImage(m)

	if d.Indexed() {
		if n := len(pim.BuildPalette(b)); n > d.MaxColors() {
			c.logger.Printf("Reducing \"%s\" from %d to %d colors\n", file, n, d.MaxColors())
			b = pim.FromImage(c.quantizer.Quantize(m, d.MaxColors()))
		}
	}

	return pim.Marshal(b, d)
}

// Convert converts the image in file to a PIM file at depth d and returns the
// path written to.
func (c *Converter) Convert(ctx context.Context, file string, d pim.Depth) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := d.Validate(); err != nil {
		return "", err
	}

	var (
		b   []byte
		sha string
		err error
	)

	// Only a cache miss pays for decoding the image
	if c.cache != nil {
		if sha, err = hashFile(file); err != nil {
			return "", err
		}
		if b, err = c.cache.Find(ctx, sha, d, c.cfg.options()); err != nil {
			return "", err
		}
		if b != nil {
			c.logger.Printf("Using cached %s conversion of \"%s\"\n", d, file)
		}
	}

	if b == nil {
		m, err := decodeFile(file)
		if err != nil {
			return "", err
		}
		if b, err = c.encode(file, m, d); err != nil {
			return "", fmt.Errorf("%s: %w", file, err)
		}
		if c.cache != nil {
			if err := c.cache.Store(ctx, sha, d, c.cfg.options(), b); err != nil {
				return "", err
			}
		}
	}

	out := OutputPath(file, c.cfg.OutputDir)
	if err := os.WriteFile(out, b, 0644); err != nil {
		return "", err
	}

	c.logger.Printf("Wrote \"%s\" (%s, %s)\n", out, d, humanize.Bytes(uint64(len(b))))

	return out, nil
}
