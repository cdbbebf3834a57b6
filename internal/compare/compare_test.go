package compare

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"visual-compare/internal/convert"
	diffimage "visual-compare/internal/diff/image"
	"visual-compare/internal/raster"
	"visual-compare/internal/verify"
)

func newTestComparator() *Comparator {
	return New(convert.NewTools(nil, convert.Options{}), verify.NewVerifiers(nil, verify.Options{}))
}

func writeSolidPNG(t *testing.T, path string, width int, height int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	writeImagePNG(t, path, img)
}

func writeImagePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestComparator_Compare(t *testing.T) {
	ctx := context.Background()
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}

	t.Run("IdenticalImagesMatch", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		expected := filepath.Join(dir, "baseline.png")
		actual := filepath.Join(dir, "output.png")
		writeSolidPNG(t, expected, 8, 8, white)
		writeSolidPNG(t, actual, 8, 8, white)

		result, err := newTestComparator().Compare(ctx, expected, actual, 0)
		if err != nil {
			t.Fatalf("Compare failed: %v", err)
		}
		if result != nil {
			t.Errorf("Expected a match, got RMS %f", result.RMS)
		}
	})

	t.Run("SelfComparisonMatchesAtZeroTolerance", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		path := filepath.Join(dir, "output.png")
		writeSolidPNG(t, path, 8, 8, white)

		result, err := newTestComparator().Compare(ctx, path, path, 0)
		if err != nil {
			t.Fatalf("Compare failed: %v", err)
		}
		if result != nil {
			t.Errorf("Expected a match, got RMS %f", result.RMS)
		}
	})

	t.Run("MatchRemovesStaleArtifacts", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		expected := filepath.Join(dir, "baseline.png")
		actual := filepath.Join(dir, "output.png")
		writeSolidPNG(t, expected, 8, 8, white)
		writeSolidPNG(t, actual, 8, 8, white)

		diffPath := filepath.Join(dir, "failed-diff-output.png")
		expectedCopy := "expected-output.png"
		if err := os.WriteFile(diffPath, []byte("stale"), 0644); err != nil {
			t.Fatalf("Failed to plant stale artifact: %v", err)
		}
		if err := os.WriteFile(expectedCopy, []byte("stale"), 0644); err != nil {
			t.Fatalf("Failed to plant stale artifact: %v", err)
		}

		if _, err := newTestComparator().Compare(ctx, expected, actual, 0); err != nil {
			t.Fatalf("Compare failed: %v", err)
		}
		if fileExists(diffPath) {
			t.Error("Expected the stale diff artifact to be removed")
		}
		if fileExists(expectedCopy) {
			t.Error("Expected the stale expected copy to be removed")
		}
	})

	t.Run("SinglePixelMismatchInHarness", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		expected := filepath.Join(dir, "baseline.png")
		actual := filepath.Join(dir, "output.png")
		writeSolidPNG(t, expected, 10, 10, white)

		img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
		for y := 0; y < 10; y++ {
			for x := 0; x < 10; x++ {
				img.SetNRGBA(x, y, white)
			}
		}
		img.SetNRGBA(4, 6, color.NRGBA{A: 255})
		writeImagePNG(t, actual, img)

		comparator := newTestComparator()
		comparator.InHarness = true

		result, err := comparator.Compare(ctx, expected, actual, 0)
		if err != nil {
			t.Fatalf("Compare failed: %v", err)
		}
		if result == nil {
			t.Fatal("Expected a failure result")
		}
		if result.RMS <= 0 {
			t.Errorf("Expected RMS > 0, got %f", result.RMS)
		}
		if result.Diff != filepath.Join(dir, "failed-diff-output.png") {
			t.Errorf("Unexpected diff path %q", result.Diff)
		}
		if !fileExists("expected-output.png") {
			t.Error("Expected the expected copy to be written in harness mode")
		}

		diff, err := raster.ReadPNG(result.Diff)
		if err != nil {
			t.Fatalf("Failed to read diff artifact: %v", err)
		}
		if diff.Channels != 4 {
			t.Fatalf("Expected a 4-channel diff artifact, got %d channels", diff.Channels)
		}
		for y := 0; y < 10; y++ {
			for x := 0; x < 10; x++ {
				i := diff.PixOffset(x, y)
				if diff.Pix[i+3] != 255 {
					t.Fatalf("Expected solid alpha at (%d,%d), got %d", x, y, diff.Pix[i+3])
				}
				want := uint8(0)
				if x == 4 && y == 6 {
					want = 255
				}
				for c := 0; c < 3; c++ {
					if diff.Pix[i+c] != want {
						t.Fatalf("Expected %d at (%d,%d) channel %d, got %d", want, x, y, c, diff.Pix[i+c])
					}
				}
			}
		}
	})

	t.Run("ManualModeReturnsMessage", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		expected := filepath.Join(dir, "baseline.png")
		actual := filepath.Join(dir, "output.png")
		writeSolidPNG(t, expected, 8, 8, white)
		writeSolidPNG(t, actual, 8, 8, color.NRGBA{R: 255, A: 255})

		result, err := newTestComparator().Compare(ctx, expected, actual, 0)
		if err != nil {
			t.Fatalf("Compare failed: %v", err)
		}
		if result == nil {
			t.Fatal("Expected a failure result")
		}
		if fileExists("expected-output.png") {
			t.Error("Expected no expected copy outside harness mode")
		}

		message := result.Message()
		for _, fragment := range []string{"Image files did not match", expected, actual, result.Diff, "Tolerance: 0"} {
			if !strings.Contains(message, fragment) {
				t.Errorf("Expected message to contain %q:\n%s", fragment, message)
			}
		}
	})

	t.Run("MissingActualFile", func(t *testing.T) {
		dir := t.TempDir()
		expected := filepath.Join(dir, "baseline.png")
		writeSolidPNG(t, expected, 8, 8, white)

		_, err := newTestComparator().Compare(ctx, expected, filepath.Join(dir, "nope.png"), 0)
		var missing *convert.MissingFileError
		if !errors.As(err, &missing) {
			t.Fatalf("Expected a MissingFileError, got %v", err)
		}
	})

	t.Run("UnsupportedExpectedFormat", func(t *testing.T) {
		dir := t.TempDir()
		expected := filepath.Join(dir, "baseline.pdf")
		actual := filepath.Join(dir, "output.png")
		if err := os.WriteFile(expected, []byte("%PDF"), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		writeSolidPNG(t, actual, 8, 8, white)

		_, err := newTestComparator().Compare(ctx, expected, actual, 0)
		var unsupported *convert.UnsupportedFormatError
		if !errors.As(err, &unsupported) {
			t.Fatalf("Expected an UnsupportedFormatError, got %v", err)
		}
	})

	t.Run("EpsAgainstPdfCropsToCenter", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		// Names as produced by the normalizer for eps and pdf sources.
		expected := filepath.Join(dir, "plot_pdf.png")
		actual := filepath.Join(dir, "plot_eps.png")
		writeSolidPNG(t, expected, 4, 4, white)
		writeSolidPNG(t, actual, 8, 8, white)

		result, err := newTestComparator().Compare(ctx, expected, actual, 0)
		if err != nil {
			t.Fatalf("Compare failed: %v", err)
		}
		if result != nil {
			t.Errorf("Expected the cropped comparison to match, got RMS %f", result.RMS)
		}
	})

	t.Run("SizeMismatchWithoutHeuristicFailsLoudly", func(t *testing.T) {
		dir := t.TempDir()
		expected := filepath.Join(dir, "baseline.png")
		actual := filepath.Join(dir, "output.png")
		writeSolidPNG(t, expected, 4, 4, white)
		writeSolidPNG(t, actual, 8, 8, white)

		_, err := newTestComparator().Compare(ctx, expected, actual, 0)
		var mismatch *diffimage.ShapeMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("Expected a ShapeMismatchError, got %v", err)
		}
	})
}

func TestRenderDiff_IdenticalInputs(t *testing.T) {
	dir := t.TempDir()
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	expected := filepath.Join(dir, "baseline.png")
	actual := filepath.Join(dir, "output.png")
	writeSolidPNG(t, expected, 6, 6, white)
	writeSolidPNG(t, actual, 6, 6, white)

	out := filepath.Join(dir, "diff.png")
	if err := RenderDiff(expected, actual, out); err != nil {
		t.Fatalf("RenderDiff failed: %v", err)
	}

	diff, err := raster.ReadPNG(out)
	if err != nil {
		t.Fatalf("Failed to read diff: %v", err)
	}
	if diff.Channels != 4 {
		t.Fatalf("Expected 4 channels, got %d", diff.Channels)
	}
	for i := 0; i < len(diff.Pix); i += 4 {
		if diff.Pix[i] != 0 || diff.Pix[i+1] != 0 || diff.Pix[i+2] != 0 || diff.Pix[i+3] != 255 {
			t.Fatalf("Unexpected samples %v at offset %d", diff.Pix[i:i+4], i)
		}
	}
}
