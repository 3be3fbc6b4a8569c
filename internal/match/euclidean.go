package match

import (
	"math"

	"github.com/kozaktomas/face-attendance/internal/faceprint"
)

// EuclideanDistance computes the Euclidean distance between two encodings.
// Lower distance means more similar faces. Mismatched or empty vectors get
// maximum distance rather than an error.
func EuclideanDistance(a, b faceprint.Encoding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
