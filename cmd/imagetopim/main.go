package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/imagetopim/imagetopim"
	"github.com/imagetopim/imagetopim/pim"
	"github.com/urfave/cli/v2"
)

const (
	filePrompt  = "Input the path of an image file: "
	depthPrompt = "Enter the bit depth of the PIM file (4, 8, or 32; input 8 when you are unsure): "
)

var (
	errNoFile  = errors.New("no image file given")
	errNoDepth = errors.New("no bit depth given")
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

// promptFile asks for the path of an existing image file until one is
// entered. Surrounding quotes, as left by dragging a file into a terminal,
// are removed.
func promptFile(s *bufio.Scanner, w io.Writer) (string, error) {
	for {
		fmt.Fprint(w, filePrompt)
		if !s.Scan() {
			if err := s.Err(); err != nil {
				return "", err
			}
			return "", errNoFile
		}
		file := strings.Trim(strings.TrimSpace(s.Text()), "\"")
		if info, err := os.Stat(file); err == nil && info.Mode().IsRegular() {
			return file, nil
		}
		fmt.Fprintln(w, "Invalid Filename")
	}
}

// promptDepth asks for a bit depth until a valid one is entered.
func promptDepth(s *bufio.Scanner, w io.Writer) (pim.Depth, error) {
	for {
		fmt.Fprint(w, depthPrompt)
		if !s.Scan() {
			if err := s.Err(); err != nil {
				return 0, err
			}
			return 0, errNoDepth
		}
		d, err := pim.ParseDepth(strings.TrimSpace(s.Text()))
		if err == nil {
			return d, nil
		}
		fmt.Fprintln(w, "Invalid bit depth")
	}
}

func depth(c *cli.Context, s *bufio.Scanner) (pim.Depth, error) {
	if c.IsSet("depth") {
		return pim.ParseDepth(c.String("depth"))
	}
	return promptDepth(s, c.App.Writer)
}

func newConverter(c *cli.Context) (*imagetopim.Converter, error) {
	logger := log.New(io.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}

	return imagetopim.New(imagetopim.Config{
		DB:        c.String("db"),
		Quantizer: c.String("quantizer"),
		Width:     c.Uint("width"),
		Height:    c.Uint("height"),
		OutputDir: c.String("output"),
		Workers:   c.Int("workers"),
	}, logger)
}

var depthFlag = &cli.StringFlag{
	Name:    "depth",
	Aliases: []string{"d"},
	Usage:   "bit depth of the PIM file; 4, 8, or 32",
}

func main() {
	app := cli.NewApp()

	app.Name = "imagetopim"
	app.Usage = "Image to PIM conversion utility"
	app.Version = "1.0.0"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"IMAGETOPIM_DB"},
			Usage:   "path to conversion cache database",
		},
		&cli.StringFlag{
			Name:    "quantizer",
			Aliases: []string{"q"},
			EnvVars: []string{"IMAGETOPIM_QUANTIZER"},
			Value:   imagetopim.DefaultQuantizer,
			Usage:   "color reduction algorithm; median or colorquant",
		},
		&cli.UintFlag{
			Name:    "width",
			EnvVars: []string{"IMAGETOPIM_WIDTH"},
			Usage:   "resize to width before converting",
		},
		&cli.UintFlag{
			Name:    "height",
			EnvVars: []string{"IMAGETOPIM_HEIGHT"},
			Usage:   "resize to height before converting",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			EnvVars: []string{"IMAGETOPIM_OUTPUT"},
			Usage:   "directory to write PIM files to",
		},
		&cli.IntFlag{
			Name:    "workers",
			EnvVars: []string{"IMAGETOPIM_WORKERS"},
			Usage:   "number of concurrent conversions when scanning",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "convert",
			Usage:     "Convert images to PIM files",
			ArgsUsage: "[FILE...]",
			Flags:     []cli.Flag{depthFlag},
			Action: func(c *cli.Context) error {
				s := bufio.NewScanner(c.App.Reader)

				files := c.Args().Slice()
				if len(files) == 0 {
					file, err := promptFile(s, c.App.Writer)
					if err != nil {
						return cli.Exit(err, 1)
					}
					files = append(files, file)
				}

				d, err := depth(c, s)
				if err != nil {
					return cli.Exit(err, 1)
				}

				m, err := newConverter(c)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer m.Close()

				for _, file := range files {
					if _, err := m.Convert(c.Context, file, d); err != nil {
						return cli.Exit(err, 1)
					}
				}

				return nil
			},
		},
		{
			Name:      "scan",
			Usage:     "Convert every image under a directory",
			ArgsUsage: "DIRECTORY",
			Flags:     []cli.Flag{depthFlag},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				d, err := depth(c, bufio.NewScanner(c.App.Reader))
				if err != nil {
					return cli.Exit(err, 1)
				}

				m, err := newConverter(c)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer m.Close()

				if err := m.Scan(c.Context, c.Args().First(), d); err != nil {
					return cli.Exit(err, 1)
				}

				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
