package image

import (
	"fmt"

	"golang.org/x/exp/constraints"

	"visual-compare/internal/raster"
)

type DiffResult struct {
	Image *raster.Buffer
	RMS   float64
}

type Differ interface {
	Calculate(expected *raster.Buffer, actual *raster.Buffer) (*DiffResult, error)
}

// ShapeMismatchError reports two buffers whose dimensions or channel depth
// differ. Comparisons never truncate to a common region on their own; the
// only sanctioned cropping happens before scoring.
type ShapeMismatchError struct {
	ExpectedWidth    int
	ExpectedHeight   int
	ExpectedChannels int
	ActualWidth      int
	ActualHeight     int
	ActualChannels   int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("image shape mismatch: expected %dx%dx%d, actual %dx%dx%d",
		e.ExpectedWidth, e.ExpectedHeight, e.ExpectedChannels,
		e.ActualWidth, e.ActualHeight, e.ActualChannels)
}

func newShapeMismatchError(expected *raster.Buffer, actual *raster.Buffer) *ShapeMismatchError {
	return &ShapeMismatchError{
		ExpectedWidth:    expected.Width,
		ExpectedHeight:   expected.Height,
		ExpectedChannels: expected.Channels,
		ActualWidth:      actual.Width,
		ActualHeight:     actual.Height,
		ActualChannels:   actual.Channels,
	}
}

func clamp[T constraints.Ordered](v T, lo T, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
