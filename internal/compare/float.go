package compare

import (
	"math"
	"strings"
)

// ConfigurationError reports ambiguous or missing tolerance arguments.
type ConfigurationError string

func (e ConfigurationError) Error() string {
	return string(e)
}

// FloatTolerance carries the optional tolerances for CompareFloat. At
// least one must be set.
type FloatTolerance struct {
	Rel *float64
	Abs *float64
}

// CompareFloat checks that actual is close enough to expected. It returns
// an empty message on a pass and a human-readable description of every
// violated tolerance otherwise. Both checks are independent: when both
// tolerances are set and both are violated, both contribute to the
// message.
func CompareFloat(expected float64, actual float64, tolerance FloatTolerance) (string, error) {
	if tolerance.Rel == nil && tolerance.Abs == nil {
		return "", ConfigurationError("neither a relative nor an absolute tolerance was specified; you must specify at least one")
	}

	var sb strings.Builder

	if tolerance.Abs != nil {
		absDiff := math.Abs(expected - actual)
		if *tolerance.Abs < absDiff {
			sb.WriteString("\n")
			sb.WriteString("  Expected: " + formatFloat(expected) + "\n")
			sb.WriteString("  Actual:   " + formatFloat(actual) + "\n")
			sb.WriteString("  Abs Diff: " + formatFloat(absDiff) + "\n")
			sb.WriteString("  Abs Tol:  " + formatFloat(*tolerance.Abs) + "\n")
		}
	}

	if tolerance.Rel != nil {
		// The relative difference is a unitless ratio; when the expected
		// value is zero it falls back to the absolute difference.
		relDiff := math.Abs(expected - actual)
		if expected != 0 {
			relDiff /= math.Abs(expected)
		}
		if *tolerance.Rel < relDiff {
			sb.WriteString("\n")
			sb.WriteString("  Expected: " + formatFloat(expected) + "\n")
			sb.WriteString("  Actual:   " + formatFloat(actual) + "\n")
			sb.WriteString("  Rel Diff: " + formatFloat(relDiff) + "\n")
			sb.WriteString("  Rel Tol:  " + formatFloat(*tolerance.Rel) + "\n")
		}
	}

	return sb.String(), nil
}
