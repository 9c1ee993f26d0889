// Package filter smooths volumes with 3-D neighborhood kernels.
//
// Every filter reads its input grid and returns a new grid of identical
// geometry. Neighbors that fall outside the volume are clamped onto the
// nearest boundary voxel (edge replication), independently per axis.
package filter

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"slicestack/pkg/volume"
)

var (
	// ErrInvalidKernelSize is returned for kernel sizes below 1 or larger than the volume
	ErrInvalidKernelSize = errors.New("invalid kernel size")

	// ErrInvalidSigma is returned for non-positive or non-finite Gaussian sigma
	ErrInvalidSigma = errors.New("invalid sigma")
)

// Kernel is a cubic weight tensor with Side = 2*Half+1 taps per axis.
// Weight (dx, dy, dz) is stored at ((dz+Half)*Side+(dy+Half))*Side+(dx+Half).
type Kernel struct {
	Half    int
	Side    int
	Weights []float64
}

// At returns the weight for offset (dx, dy, dz), each in [-Half, Half]
func (k *Kernel) At(dx, dy, dz int) float64 {
	return k.Weights[((dz+k.Half)*k.Side+(dy+k.Half))*k.Side+(dx+k.Half)]
}

// gaussian3D is the unnormalized weight used for each kernel tap
func gaussian3D(dx, dy, dz int, sigma float64) float64 {
	r2 := float64(dx*dx + dy*dy + dz*dz)
	return math.Exp(-r2/(2*sigma*sigma)) / (math.Sqrt(2*math.Pi) * sigma)
}

// GaussianKernel builds a normalized Gaussian kernel. Offsets run from
// -kernelSize/2 to +kernelSize/2 inclusive, so an even size yields
// kernelSize+1 taps per axis.
func GaussianKernel(kernelSize int, sigma float64) (*Kernel, error) {
	if kernelSize < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKernelSize, kernelSize)
	}
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSigma, sigma)
	}

	half := kernelSize / 2
	side := 2*half + 1
	k := &Kernel{Half: half, Side: side, Weights: make([]float64, side*side*side)}

	i := 0
	for dz := -half; dz <= half; dz++ {
		for dy := -half; dy <= half; dy++ {
			for dx := -half; dx <= half; dx++ {
				k.Weights[i] = gaussian3D(dx, dy, dz, sigma)
				i++
			}
		}
	}

	floats.Scale(1/floats.Sum(k.Weights), k.Weights)
	return k, nil
}

// checkKernel validates kernelSize against the grid it will be applied to
func checkKernel(g *volume.Grid, kernelSize int) error {
	if g == nil || g.Len() == 0 {
		return volume.ErrEmptyGrid
	}
	if kernelSize < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidKernelSize, kernelSize)
	}
	largest := max(g.Width(), g.Height(), g.Depth())
	if kernelSize > largest {
		return fmt.Errorf("%w: %d exceeds largest grid dimension %d", ErrInvalidKernelSize, kernelSize, largest)
	}
	return nil
}

// clamp limits v to [0, hi]
func clamp(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}

// toByte rounds to the nearest integer and saturates to [0, 255]
func toByte(v float64) byte {
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > 255 {
		return 255
	}
	return byte(r)
}
