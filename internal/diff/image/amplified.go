package image

import (
	"visual-compare/internal/raster"
)

// Amplification applied to absolute sample differences before clipping.
const defaultAmplification = 255 * 10

type AmplifiedDiff struct {
	amplification float64
}

func NewAmplifiedDiff() *AmplifiedDiff {
	return &AmplifiedDiff{
		amplification: defaultAmplification,
	}
}

// Calculate renders the per-pixel absolute difference of two buffers,
// amplified and clipped to the 8-bit range. The result always has four
// channels with a solid alpha: the PNG writer used for artifacts mandates
// an alpha channel, and some renderers (PDF among them) produce none.
func (a *AmplifiedDiff) Calculate(expected *raster.Buffer, actual *raster.Buffer) (*DiffResult, error) {
	if !expected.SameShape(actual) {
		return nil, newShapeMismatchError(expected, actual)
	}

	diff := raster.NewBuffer(expected.Width, expected.Height, expected.Channels)
	for i := range expected.Pix {
		d := float64(expected.Pix[i]) - float64(actual.Pix[i])
		if d < 0 {
			d = -d
		}
		diff.Pix[i] = uint8(clamp(d*a.amplification, 0, 255))
	}

	if diff.Channels == 3 {
		expanded := raster.NewBuffer(diff.Width, diff.Height, 4)
		for p := 0; p < diff.Width*diff.Height; p++ {
			copy(expanded.Pix[p*4:p*4+3], diff.Pix[p*3:p*3+3])
		}
		diff = expanded
	}

	for i := 3; i < len(diff.Pix); i += 4 {
		diff.Pix[i] = 255
	}

	return &DiffResult{Image: diff}, nil
}
