package convert

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"runtime"
)

// commandConverter shells out to an external rasterizer and blocks until it
// terminates, capturing both output streams for error reporting.
type commandConverter struct {
	argv func(src string, dst string) []string
}

func (c *commandConverter) Convert(ctx context.Context, src string, dst string) error {
	args := c.argv(src, dst)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	_, statErr := os.Stat(dst)
	if runErr != nil || statErr != nil {
		return &ToolError{
			Args:   args,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Err:    runErr,
		}
	}

	return nil
}

func ghostscriptBinary() string {
	if runtime.GOOS == "windows" {
		return "gswin32c"
	}
	return "gs"
}

// NewGhostscript converts PDF and EPS files through ghostscript's png16m
// device.
func NewGhostscript() Converter {
	gs := ghostscriptBinary()
	return &commandConverter{
		argv: func(src string, dst string) []string {
			return []string{gs, "-q", "-sDEVICE=png16m", "-dNOPAUSE", "-dBATCH", "-sOutputFile=" + dst, src}
		},
	}
}

// NewInkscape converts SVG files through inkscape's PNG export.
func NewInkscape() Converter {
	return &commandConverter{
		argv: func(src string, dst string) []string {
			return []string{"inkscape", "-z", src, "--export-png", dst}
		},
	}
}

// Detect probes the system for installed rasterizers and returns the
// resulting immutable registry. The comparable formats are exactly png plus
// the extensions whose tools were found.
func Detect(opts Options) *Tools {
	converters := map[string]Converter{}

	if _, err := exec.LookPath(ghostscriptBinary()); err == nil {
		gs := NewGhostscript()
		converters["pdf"] = gs
		converters["eps"] = gs
	}

	if _, err := exec.LookPath("inkscape"); err == nil {
		converters["svg"] = NewInkscape()
	} else if opts.ChromiumFallback {
		converters["svg"] = NewChromium(DefaultChromiumConfig())
	}

	return NewTools(converters, opts)
}
