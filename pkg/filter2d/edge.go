package filter2d

import (
	"fmt"
	"math"

	"slicestack/internal/models"
)

// EdgeOperator names a gradient kernel pair
type EdgeOperator string

const (
	Sobel   EdgeOperator = "sobel"
	Prewitt EdgeOperator = "prewitt"
	Scharr  EdgeOperator = "scharr"
	Roberts EdgeOperator = "roberts"
)

// gradient holds the horizontal and vertical kernels of an operator,
// row-major with side*side weights each
type gradient struct {
	side int
	gx   []int
	gy   []int
}

var gradients = map[EdgeOperator]gradient{
	Sobel: {3,
		[]int{-1, 0, 1, -2, 0, 2, -1, 0, 1},
		[]int{-1, -2, -1, 0, 0, 0, 1, 2, 1}},
	Prewitt: {3,
		[]int{-1, 0, 1, -1, 0, 1, -1, 0, 1},
		[]int{-1, -1, -1, 0, 0, 0, 1, 1, 1}},
	Scharr: {3,
		[]int{-3, 0, 3, -10, 0, 10, -3, 0, 3},
		[]int{-3, -10, -3, 0, 0, 0, 3, 10, 3}},
	Roberts: {2,
		[]int{1, 0, 0, -1},
		[]int{0, 1, -1, 0}},
}

// Grayscale converts to one channel using Rec. 709 luma, truncated.
// Alpha is dropped; single-channel input is copied.
func Grayscale(img *models.Image) *models.Image {
	out := models.NewImage(img.Width, img.Height, 1)
	if img.Channels < 3 {
		for i := range out.Pix {
			out.Pix[i] = img.Pix[i*img.Channels]
		}
		return out
	}
	for i := range out.Pix {
		p := img.Pix[i*img.Channels:]
		out.Pix[i] = byte(0.2126*float64(p[0]) + 0.7152*float64(p[1]) + 0.0722*float64(p[2]))
	}
	return out
}

// EdgeDetect returns the single-channel gradient magnitude of img.
// The image is reduced to grayscale and, except for Roberts, smoothed with a
// 5x5 Gaussian (sigma 1) first. Taps outside the image contribute zero.
func EdgeDetect(img *models.Image, op EdgeOperator) (*models.Image, error) {
	g, ok := gradients[op]
	if !ok {
		return nil, fmt.Errorf("%w: edge operator %q", ErrUnknownOp, op)
	}

	gray := Grayscale(img)
	if op != Roberts {
		var err error
		if gray, err = GaussianBlur(gray, 5, 1); err != nil {
			return nil, err
		}
	}

	half := g.side / 2
	out := models.NewImage(gray.Width, gray.Height, 1)
	for y := 0; y < gray.Height; y++ {
		for x := 0; x < gray.Width; x++ {
			sx, sy := 0, 0
			for i := 0; i < g.side; i++ {
				ny := y + i - half
				if ny < 0 || ny >= gray.Height {
					continue
				}
				for j := 0; j < g.side; j++ {
					nx := x + j - half
					if nx < 0 || nx >= gray.Width {
						continue
					}
					v := int(gray.Pix[ny*gray.Width+nx])
					sx += v * g.gx[i*g.side+j]
					sy += v * g.gy[i*g.side+j]
				}
			}
			mag := int(math.Sqrt(float64(sx*sx + sy*sy)))
			out.Pix[y*gray.Width+x] = byte(min(mag, 255))
		}
	}
	return out, nil
}
