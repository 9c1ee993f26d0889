package processing

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"slicestack/pkg/volume"
)

// FilterMetrics compares a filtered volume with the volume it was computed from.
type FilterMetrics struct {
	// MI approximates mutual information under a Gaussian assumption.
	// Higher values mean the filter kept more of the original signal.
	// Perfectly correlated grids report 0.
	MI float64 `json:"mi"`

	// EntropyDiff is the absolute difference in Shannon entropy (bits).
	// Smoothing lowers entropy, so this grows with filter strength.
	EntropyDiff float64 `json:"entropyDiff"`

	// RMSE is the root mean square error on samples scaled to [0,1]
	RMSE float64 `json:"rmse"`

	// SSIM is the global structural similarity index on samples scaled to [0,1]
	SSIM float64 `json:"ssim"`
}

// CompareGrids computes FilterMetrics between two grids of the same geometry.
// Grids with different geometry yield zero metrics.
func CompareGrids(original, filtered *volume.Grid) FilterMetrics {
	if original == nil || filtered == nil || !original.SameGeometry(filtered) {
		return FilterMetrics{}
	}
	a := toUnit(original.Raw())
	b := toUnit(filtered.Raw())

	return FilterMetrics{
		MI:          mutualInformation(a, b),
		EntropyDiff: math.Abs(entropy(original.Raw()) - entropy(filtered.Raw())),
		RMSE:        rmse(a, b),
		SSIM:        ssim(a, b),
	}
}

func toUnit(data []byte) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v) / 255
	}
	return out
}

// mutualInformation uses MI ≈ 0.5 * log(var(X)var(Y) / (var(X)var(Y) - cov(X,Y)²))
func mutualInformation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}
	varX := stat.Variance(x, nil)
	varY := stat.Variance(y, nil)
	cov := stat.Covariance(x, y, nil)

	if varX > 0 && varY > 0 {
		det := varX*varY - cov*cov
		if det > 0 {
			return 0.5 * math.Log(varX*varY/det)
		}
	}
	return 0
}

func rmse(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}
	mse := 0.0
	for i := range x {
		d := x[i] - y[i]
		mse += d * d
	}
	return math.Sqrt(mse / float64(len(x)))
}

func ssim(x, y []float64) float64 {
	const (
		L  = 1.0 // dynamic range
		k1 = 0.01
		k2 = 0.03
	)
	c1 := (k1 * L) * (k1 * L)
	c2 := (k2 * L) * (k2 * L)

	if len(x) != len(y) || len(x) == 0 {
		return 0
	}
	muX, sigmaX := stat.MeanVariance(x, nil)
	muY, sigmaY := stat.MeanVariance(y, nil)
	sigmaXY := stat.Covariance(x, y, nil)
	if len(x) == 1 {
		sigmaX, sigmaY, sigmaXY = 0, 0, 0
	}

	num := (2*muX*muY + c1) * (2*sigmaXY + c2)
	den := (muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2)
	if den > 0 {
		return num / den
	}
	return 0
}

// entropy is the Shannon entropy in bits of the 256-bin intensity histogram
func entropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var hist [256]int
	for _, v := range data {
		hist[v]++
	}
	n := float64(len(data))
	e := 0.0
	for _, count := range hist {
		if count > 0 {
			p := float64(count) / n
			e -= p * math.Log2(p)
		}
	}
	return e
}
