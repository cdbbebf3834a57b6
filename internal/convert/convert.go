package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"
)

// Converter renders a vector source file to a PNG at dst.
type Converter interface {
	Convert(ctx context.Context, src string, dst string) error
}

type Options struct {
	// Timeout bounds a single conversion. Zero disables the bound.
	Timeout time.Duration
	// ChromiumFallback registers a headless Chromium rasterizer for SVG
	// when inkscape is not installed.
	ChromiumFallback bool
}

// Tools maps file extensions to converters. It is built once at startup
// and read-only afterwards, so it is safe to share across comparisons.
type Tools struct {
	converters map[string]Converter
	timeout    time.Duration
}

func NewTools(converters map[string]Converter, opts Options) *Tools {
	copied := make(map[string]Converter, len(converters))
	for ext, c := range converters {
		copied[ext] = c
	}
	return &Tools{
		converters: copied,
		timeout:    opts.Timeout,
	}
}

// UnsupportedFormatError reports an extension with no registered converter.
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("don't know how to convert %q files to png", e.Extension)
}

// MissingFileError reports a referenced path that does not exist.
type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("%q does not exist", e.Path)
}

// ToolError reports an external command that exited non-zero or did not
// produce its expected output. The captured output streams are part of the
// message so failures are diagnosable from logs alone.
type ToolError struct {
	Args   []string
	Stdout string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "conversion command failed: %s", strings.Join(e.Args, " "))
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	if e.Stdout != "" {
		fmt.Fprintf(&sb, "\nstandard output:\n%s", e.Stdout)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&sb, "\nstandard error:\n%s", e.Stderr)
	}
	return sb.String()
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Comparable returns the file formats that can be compared with the tools
// registered here: png plus every extension with a converter.
func (t *Tools) Comparable() []string {
	formats := []string{"png"}
	for ext := range t.converters {
		formats = append(formats, ext)
	}
	sort.Strings(formats)
	return formats
}

// Convert renders the named file to PNG and returns the output path. PNG
// inputs pass through untouched. The output lives next to the source as
// <base>_<ext>.png and is reused when it is not older than the source.
func (t *Tools) Convert(ctx context.Context, path string) (string, error) {
	ext := extension(path)
	if ext == "png" {
		return path, nil
	}

	converter, ok := t.converters[ext]
	if !ok {
		return "", &UnsupportedFormatError{Extension: ext}
	}

	dst := strings.TrimSuffix(path, "."+ext) + "_" + ext + ".png"

	srcInfo, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", &MissingFileError{Path: path}
	} else if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if dstInfo, err := os.Stat(dst); err == nil && !dstInfo.ModTime().Before(srcInfo.ModTime()) {
		return dst, nil
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	if err := converter.Convert(ctx, path, dst); err != nil {
		return "", err
	}

	if _, err := os.Stat(dst); err != nil {
		return "", &ToolError{
			Args: []string{fmt.Sprintf("<%s converter>", ext)},
			Err:  fmt.Errorf("no output file was produced: %w", err),
		}
	}

	return dst, nil
}

func extension(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return path[i+1:]
}
