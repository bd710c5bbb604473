/*
Package imagetopim is a library for converting images into PIM files.

A conversion decodes the source image, optionally resizes it, reduces it to
16 or 256 colors when the requested bit depth uses a palette and the image has
too many colors, and then writes the result next to the source with a .PIM
extension. Encoded files can be cached in a SQLite database keyed by the
SHA-1 of the source image.
*/
package imagetopim

import (
	"fmt"
	"log"
)

// Config controls how images are converted.
type Config struct {
	// DB is the path of the conversion cache, caching is disabled if empty
	DB string
	// Quantizer names the color reducer, see NewQuantizer
	Quantizer string
	// Width and Height resize the image before it is quantized. If one is
	// zero the aspect ratio is kept, if both are zero the image is left
	// alone.
	Width  uint
	Height uint
	// OutputDir receives the .PIM files, defaulting to the directory of
	// each source image
	OutputDir string
	// Workers is the number of concurrent conversions used by Scan,
	// defaulting to the number of CPUs
	Workers int
}

// options returns a cache key component covering everything in the config
// that changes the encoded output.
func (c Config) options() string {
	return fmt.Sprintf("quantizer=%s width=%d height=%d", c.Quantizer, c.Width, c.Height)
}

// Converter converts images into PIM files.
type Converter struct {
	cfg       Config
	cache     *Cache
	quantizer Quantizer
	logger    *log.Logger
}

// New returns a Converter using cfg, opening the cache if one is configured.
func New(cfg Config, logger *log.Logger) (*Converter, error) {
	if cfg.Quantizer == "" {
		cfg.Quantizer = DefaultQuantizer
	}

	q, err := NewQuantizer(cfg.Quantizer)
	if err != nil {
		return nil, err
	}

	c := &Converter{
		cfg:       cfg,
		quantizer: q,
		logger:    logger,
	}

	if cfg.DB != "" {
		if c.cache, err = NewCache(cfg.DB); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Close releases the cache, if any.
func (c *Converter) Close() error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Close()
}
