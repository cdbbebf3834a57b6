package image

import (
	"errors"
	"testing"

	"visual-compare/internal/raster"
)

func createTestBuffer(width int, height int, channels int, value uint8) *raster.Buffer {
	b := raster.NewBuffer(width, height, channels)
	for i := range b.Pix {
		b.Pix[i] = value
	}
	return b
}

func TestHistogramDiff_Calculate(t *testing.T) {
	hd := NewHistogramDiff()

	t.Run("IdenticalBuffers", func(t *testing.T) {
		expected := createTestBuffer(16, 16, 3, 200)
		actual := createTestBuffer(16, 16, 3, 200)

		result, err := hd.Calculate(expected, actual)
		if err != nil {
			t.Fatalf("Calculate failed: %v", err)
		}
		if result.RMS != 0 {
			t.Errorf("Expected RMS to be 0, got %f", result.RMS)
		}
	})

	t.Run("SameBufferInstance", func(t *testing.T) {
		b := createTestBuffer(16, 16, 4, 128)

		result, err := hd.Calculate(b, b)
		if err != nil {
			t.Fatalf("Calculate failed: %v", err)
		}
		if result.RMS != 0 {
			t.Errorf("Expected RMS to be 0 for the same instance, got %f", result.RMS)
		}
	})

	t.Run("SinglePixelDifference", func(t *testing.T) {
		expected := createTestBuffer(10, 10, 3, 255)
		actual := createTestBuffer(10, 10, 3, 255)
		i := actual.PixOffset(4, 4)
		actual.Pix[i] = 0
		actual.Pix[i+1] = 0
		actual.Pix[i+2] = 0

		result, err := hd.Calculate(expected, actual)
		if err != nil {
			t.Fatalf("Calculate failed: %v", err)
		}
		if result.RMS <= 0 {
			t.Errorf("Expected RMS > 0, got %f", result.RMS)
		}
	})

	t.Run("AlphaExcluded", func(t *testing.T) {
		expected := createTestBuffer(8, 8, 4, 100)
		actual := createTestBuffer(8, 8, 4, 100)
		for i := 3; i < len(actual.Pix); i += 4 {
			actual.Pix[i] = 0
		}

		result, err := hd.Calculate(expected, actual)
		if err != nil {
			t.Fatalf("Calculate failed: %v", err)
		}
		if result.RMS != 0 {
			t.Errorf("Expected alpha-only differences to score 0, got %f", result.RMS)
		}
	})

	t.Run("ShapeMismatch", func(t *testing.T) {
		expected := createTestBuffer(10, 10, 3, 0)
		actual := createTestBuffer(12, 10, 3, 0)

		_, err := hd.Calculate(expected, actual)
		var mismatch *ShapeMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("Expected a ShapeMismatchError, got %v", err)
		}
		if mismatch.ActualWidth != 12 {
			t.Errorf("Expected actual width 12 in the error, got %d", mismatch.ActualWidth)
		}
	})

	t.Run("ChannelDepthMismatch", func(t *testing.T) {
		expected := createTestBuffer(10, 10, 3, 0)
		actual := createTestBuffer(10, 10, 4, 0)

		var mismatch *ShapeMismatchError
		if _, err := hd.Calculate(expected, actual); !errors.As(err, &mismatch) {
			t.Fatalf("Expected a ShapeMismatchError, got %v", err)
		}
	})
}
