package imagetopim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hako/durafmt"
	"github.com/imagetopim/imagetopim/pim"
)

// ErrOutputClash is returned by Scan when two images would be written to the
// same PIM file, such as x.png and x.jpg or, with an output directory, two
// images sharing a base name.
var ErrOutputClash = errors.New("imagetopim: output path clash")

// outputs records which image each PIM file is being written from.
type outputs struct {
	mu    sync.Mutex
	paths map[string]string
}

func (o *outputs) claim(out, file string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	out = filepath.Clean(out)
	if prev, ok := o.paths[out]; ok {
		return fmt.Errorf("%w: \"%s\" and \"%s\" both write \"%s\"", ErrOutputClash, prev, file, out)
	}
	o.paths[out] = file
	return nil
}

var imageExtensions = map[string]struct{}{
	".bmp":  {},
	".gif":  {},
	".jpeg": {},
	".jpg":  {},
	".png":  {},
}

func isImage(file string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(file))]
	return ok
}

func (c *Converter) findImages(ctx context.Context, base string) (<-chan string, <-chan error, error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		errc <- filepath.Walk(base, func(file string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			// Ignore any hidden files or directories, otherwise we end up fighting with things like Spotlight, etc.
			if info.Name()[0] == '.' && file != base {
				if info.Mode().IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if !info.Mode().IsRegular() || !isImage(file) {
				return nil
			}

			select {
			case out <- file:
			case <-ctx.Done():
				return errors.New("walk cancelled")
			}

			return nil
		})
	}()
	return out, errc, nil
}

func (c *Converter) convertWorker(ctx context.Context, in <-chan string, d pim.Depth, outs *outputs, count *int64) (<-chan error, error) {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for file := range in {
			if err := outs.claim(OutputPath(file, c.cfg.OutputDir), file); err != nil {
				errc <- err
				return
			}
			if _, err := c.Convert(ctx, file, d); err != nil {
				errc <- err
				return
			}
			atomic.AddInt64(count, 1)
		}
	}()
	return errc, nil
}

func waitForPipeline(errs ...<-chan error) error {
	errc := mergeErrors(errs...)
	for err := range errc {
		if err != nil {
			return err
		}
	}
	return nil
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Scan converts every image found under path to depth d, stopping at the
// first error. Images that would overwrite each other's PIM file make Scan
// fail with ErrOutputClash.
func (c *Converter) Scan(ctx context.Context, path string, d pim.Depth) error {
	if err := d.Validate(); err != nil {
		return err
	}

	dir, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	start := time.Now()

	var errcList []<-chan error

	files, errc, err := c.findImages(ctx, dir)
	if err != nil {
		return err
	}
	errcList = append(errcList, errc)

	workers := c.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	outs := &outputs{paths: make(map[string]string)}

	var count int64
	for i := 0; i < workers; i++ {
		errc, err := c.convertWorker(ctx, files, d, outs, &count)
		if err != nil {
			return err
		}
		errcList = append(errcList, errc)
	}

	if err := waitForPipeline(errcList...); err != nil {
		return err
	}

	c.logger.Printf("Converted %d images in %s\n", atomic.LoadInt64(&count), durafmt.Parse(time.Since(start)).LimitFirstN(2))

	return nil
}
