package image

import (
	"math"

	"visual-compare/internal/raster"
)

// scoredChannels is the number of leading channels the metric considers.
// Alpha never contributes to the score.
const scoredChannels = 3

type HistogramDiff struct{}

func NewHistogramDiff() *HistogramDiff {
	return &HistogramDiff{}
}

// Calculate scores two buffers by the distance between their per-channel
// value distributions: for each of the first three channels it takes the
// element-wise squared difference of the two 256-bin histograms, sums it
// across channels, divides by 256*3 and takes the square root.
func (h *HistogramDiff) Calculate(expected *raster.Buffer, actual *raster.Buffer) (*DiffResult, error) {
	if !expected.SameShape(actual) {
		return nil, newShapeMismatchError(expected, actual)
	}

	var total float64
	for channel := 0; channel < scoredChannels; channel++ {
		expectedBins := raster.Histogram(expected, channel)
		actualBins := raster.Histogram(actual, channel)
		for i := range expectedBins {
			d := float64(expectedBins[i] - actualBins[i])
			total += d * d
		}
	}

	return &DiffResult{
		RMS: math.Sqrt(total / (256 * scoredChannels)),
	}, nil
}
