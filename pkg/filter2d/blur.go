package filter2d

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"slicestack/internal/models"
)

func checkSize(kernelSize int) error {
	if kernelSize < 1 {
		return fmt.Errorf("%w: kernel size %d", ErrInvalidArgument, kernelSize)
	}
	return nil
}

// BoxBlur replaces every sample with the rounded mean of the in-bounds taps
// of its kernelSize x kernelSize neighborhood
func BoxBlur(img *models.Image, kernelSize int) (*models.Image, error) {
	if err := checkSize(kernelSize); err != nil {
		return nil, err
	}
	half := kernelSize / 2
	out := models.NewImage(img.Width, img.Height, img.Channels)

	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			for c := 0; c < img.Channels; c++ {
				sum, count := 0, 0
				for dy := -half; dy <= half; dy++ {
					ny := y + dy
					if ny < 0 || ny >= img.Height {
						continue
					}
					for dx := -half; dx <= half; dx++ {
						nx := x + dx
						if nx < 0 || nx >= img.Width {
							continue
						}
						sum += int(img.Pix[img.Offset(nx, ny, c)])
						count++
					}
				}
				out.Pix[out.Offset(x, y, c)] = byte((sum + count/2) / count)
			}
		}
	}
	return out, nil
}

// gaussianWeights returns the normalized (2*half+1)^2 Gaussian weights
func gaussianWeights(half int, sigma float64) []float64 {
	side := 2*half + 1
	w := make([]float64, 0, side*side)
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			w = append(w, math.Exp(-float64(dx*dx+dy*dy)/(2*sigma*sigma)))
		}
	}
	floats.Scale(1/floats.Sum(w), w)
	return w
}

// GaussianBlur convolves every channel with a 2-D Gaussian. Near the border
// the in-bounds weights are renormalized so flat regions stay flat.
func GaussianBlur(img *models.Image, kernelSize int, sigma float64) (*models.Image, error) {
	if err := checkSize(kernelSize); err != nil {
		return nil, err
	}
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma <= 0 {
		return nil, fmt.Errorf("%w: sigma %v", ErrInvalidArgument, sigma)
	}
	half := kernelSize / 2
	weights := gaussianWeights(half, sigma)
	out := models.NewImage(img.Width, img.Height, img.Channels)

	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			for c := 0; c < img.Channels; c++ {
				sum, norm := 0.0, 0.0
				k := 0
				for dy := -half; dy <= half; dy++ {
					ny := y + dy
					for dx := -half; dx <= half; dx++ {
						nx := x + dx
						if ny >= 0 && ny < img.Height && nx >= 0 && nx < img.Width {
							sum += float64(img.Pix[img.Offset(nx, ny, c)]) * weights[k]
							norm += weights[k]
						}
						k++
					}
				}
				out.Pix[out.Offset(x, y, c)] = toByte(sum / norm)
			}
		}
	}
	return out, nil
}

// MedianBlur replaces every sample with the median of the in-bounds taps of
// its neighborhood, found by sorting. An even tap count takes the upper median.
func MedianBlur(img *models.Image, kernelSize int) (*models.Image, error) {
	if err := checkSize(kernelSize); err != nil {
		return nil, err
	}
	half := kernelSize / 2
	side := 2*half + 1
	out := models.NewImage(img.Width, img.Height, img.Channels)
	values := make([]byte, 0, side*side)

	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			for c := 0; c < img.Channels; c++ {
				values = values[:0]
				for dy := -half; dy <= half; dy++ {
					ny := y + dy
					if ny < 0 || ny >= img.Height {
						continue
					}
					for dx := -half; dx <= half; dx++ {
						nx := x + dx
						if nx < 0 || nx >= img.Width {
							continue
						}
						values = append(values, img.Pix[img.Offset(nx, ny, c)])
					}
				}
				slices.Sort(values)
				out.Pix[out.Offset(x, y, c)] = values[len(values)/2]
			}
		}
	}
	return out, nil
}
