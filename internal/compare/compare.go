package compare

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"

	"visual-compare/internal/convert"
	diffimage "visual-compare/internal/diff/image"
	"visual-compare/internal/raster"
	"visual-compare/internal/verify"
)

// Comparator compares produced images against baselines. It is constructed
// once with the tool registries and threaded through explicitly; there is
// no process-wide state.
type Comparator struct {
	Tools     *convert.Tools
	Verifiers *verify.Verifiers

	// InHarness marks invocations coming from an automated comparison
	// harness. Failures then keep a copy of the expected image next to
	// the produced one for later inspection; ad hoc invocations only get
	// the failure message.
	InHarness bool
}

func New(tools *convert.Tools, verifiers *verify.Verifiers) *Comparator {
	return &Comparator{
		Tools:     tools,
		Verifiers: verifiers,
	}
}

// Result describes a failed comparison. A nil Result means the images
// matched within tolerance.
type Result struct {
	RMS       float64
	Tolerance float64
	Expected  string
	Actual    string
	Diff      string
}

// Message renders the failure the way ad hoc callers expect to read it.
func (r *Result) Message() string {
	return "  Error: Image files did not match.\n" +
		"  RMS Value: " + formatFloat(r.RMS/10000.0) + "\n" +
		"  Expected:\n    " + r.Expected + "\n" +
		"  Actual:\n    " + r.Actual + "\n" +
		"  Difference:\n    " + r.Diff + "\n" +
		"  Tolerance: " + formatFloat(r.Tolerance) + "\n"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Compare scores the actual image against the expected baseline. It
// returns (nil, nil) on a match; on a mismatch it writes the amplified
// diff artifact and returns a Result describing the failure. Errors are
// never retried and never degrade to a best-effort score.
func (c *Comparator) Compare(ctx context.Context, expected string, actual string, tolerance float64) (*Result, error) {
	if err := c.Verifiers.Verify(ctx, actual); err != nil {
		return nil, err
	}

	// The expected file's extension decides whether normalization runs,
	// and then both sides are normalized. The two conversions write
	// disjoint outputs, so they may run concurrently.
	if extension(expected) != "png" {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			converted, err := c.Tools.Convert(gctx, actual)
			if err != nil {
				return err
			}
			actual = converted
			return nil
		})
		g.Go(func() error {
			converted, err := c.Tools.Convert(gctx, expected)
			if err != nil {
				return err
			}
			expected = converted
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	expectedBuffer, err := raster.ReadPNG(expected)
	if err != nil {
		return nil, err
	}
	actualBuffer, err := raster.ReadPNG(actual)
	if err != nil {
		return nil, err
	}

	actualBuffer = cropToSame(actual, actualBuffer, expected, expectedBuffer)

	expectedBuffer = raster.Autocontrast(expectedBuffer, 2)
	actualBuffer = raster.Autocontrast(actualBuffer, 2)

	score, err := diffimage.NewHistogramDiff().Calculate(expectedBuffer, actualBuffer)
	if err != nil {
		return nil, err
	}

	diffPath := filepath.Join(filepath.Dir(actual), "failed-diff-"+filepath.Base(actual))
	expectedCopy := "expected-" + filepath.Base(actual)

	if score.RMS/10000.0 <= tolerance {
		removeIfExists(diffPath)
		removeIfExists(expectedCopy)
		return nil, nil
	}

	if err := RenderDiff(expected, actual, diffPath); err != nil {
		return nil, err
	}

	if c.InHarness {
		if err := copyFile(expected, expectedCopy); err != nil {
			return nil, err
		}
	} else {
		// The expected copy is a harness-only artifact.
		removeIfExists(expectedCopy)
	}

	return &Result{
		RMS:       score.RMS,
		Tolerance: tolerance,
		Expected:  expected,
		Actual:    actual,
		Diff:      diffPath,
	}, nil
}

// RenderDiff writes the amplified per-pixel difference of the two images
// to outputPath as a PNG with a solid alpha channel.
func RenderDiff(expectedPath string, actualPath string, outputPath string) error {
	expectedBuffer, err := raster.ReadPNG(expectedPath)
	if err != nil {
		return err
	}
	actualBuffer, err := raster.ReadPNG(actualPath)
	if err != nil {
		return err
	}

	actualBuffer = cropToSame(actualPath, actualBuffer, expectedPath, expectedBuffer)

	result, err := diffimage.NewAmplifiedDiff().Calculate(expectedBuffer, actualBuffer)
	if err != nil {
		return err
	}

	return raster.WritePNG(outputPath, result.Image)
}

// cropToSame clips the actual image to the expected image's dimensions,
// centered. It only applies when comparing an eps rendering against a pdf
// one, where the rasterizer pads the page differently. The trigger matches
// the normalizer's output names (plot_eps.png vs plot_pdf.png) by the
// three bytes before the .png suffix; deliberately left that narrow.
func cropToSame(actualPath string, actualBuffer *raster.Buffer, expectedPath string, expectedBuffer *raster.Buffer) *raster.Buffer {
	if pathTag(actualPath) == "eps" && pathTag(expectedPath) == "pdf" {
		return raster.CenterCrop(actualBuffer, expectedBuffer.Width, expectedBuffer.Height)
	}
	return actualBuffer
}

func pathTag(path string) string {
	if len(path) < 7 {
		return ""
	}
	return path[len(path)-7 : len(path)-4]
}

func extension(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	return ext[1:]
}

func removeIfExists(path string) {
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
}

func copyFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
