package filter

import (
	"slicestack/pkg/volume"
)

// geometry caches grid dimensions for the inner loops
type geometry struct {
	width, height, depth, channels int
}

func geometryOf(g *volume.Grid) geometry {
	return geometry{g.Width(), g.Height(), g.Depth(), g.Channels()}
}

// GaussianBlur convolves every channel of g with a normalized 3-D Gaussian
// kernel and returns the result as a new grid.
func GaussianBlur(g *volume.Grid, kernelSize int, sigma float64, opts ...Option) (*volume.Grid, error) {
	if err := checkKernel(g, kernelSize); err != nil {
		return nil, err
	}
	kernel, err := GaussianKernel(kernelSize, sigma)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	geo := geometryOf(g)
	src := g.Raw()
	dst := make([]byte, len(src))
	half, weights := kernel.Half, kernel.Weights

	forEachPlane(geo.depth, o.Workers, func(z int) {
		for y := 0; y < geo.height; y++ {
			for x := 0; x < geo.width; x++ {
				base := ((z*geo.height+y)*geo.width + x) * geo.channels
				for c := 0; c < geo.channels; c++ {
					sum := 0.0
					k := 0
					for dz := -half; dz <= half; dz++ {
						plane := clamp(z+dz, geo.depth-1) * geo.height
						for dy := -half; dy <= half; dy++ {
							row := (plane + clamp(y+dy, geo.height-1)) * geo.width
							for dx := -half; dx <= half; dx++ {
								sum += float64(src[(row+clamp(x+dx, geo.width-1))*geo.channels+c]) * weights[k]
								k++
							}
						}
					}
					dst[base+c] = toByte(sum)
				}
			}
		}
	})

	return volume.FromData(geo.width, geo.height, geo.depth, geo.channels, dst)
}

// MedianBlur is the cheap median approximation: each output sample is the
// midpoint (min+max)/2 of its clamped kernelSize^3 neighborhood. It reacts
// only to the two extremes and is not a true median; see TrueMedianBlur.
func MedianBlur(g *volume.Grid, kernelSize int, opts ...Option) (*volume.Grid, error) {
	if err := checkKernel(g, kernelSize); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	geo := geometryOf(g)
	src := g.Raw()
	dst := make([]byte, len(src))
	half := kernelSize / 2

	forEachPlane(geo.depth, o.Workers, func(z int) {
		for y := 0; y < geo.height; y++ {
			for x := 0; x < geo.width; x++ {
				base := ((z*geo.height+y)*geo.width + x) * geo.channels
				for c := 0; c < geo.channels; c++ {
					lo, hi := byte(255), byte(0)
					for dz := -half; dz <= half; dz++ {
						plane := clamp(z+dz, geo.depth-1) * geo.height
						for dy := -half; dy <= half; dy++ {
							row := (plane + clamp(y+dy, geo.height-1)) * geo.width
							for dx := -half; dx <= half; dx++ {
								v := src[(row+clamp(x+dx, geo.width-1))*geo.channels+c]
								if v < lo {
									lo = v
								}
								if v > hi {
									hi = v
								}
							}
						}
					}
					dst[base+c] = byte((int(lo) + int(hi)) / 2)
				}
			}
		}
	})

	return volume.FromData(geo.width, geo.height, geo.depth, geo.channels, dst)
}

// TrueMedianBlur replaces each sample with the median of its clamped
// kernelSize^3 neighborhood, found by histogram selection. For an even tap
// count the lower median is used.
func TrueMedianBlur(g *volume.Grid, kernelSize int, opts ...Option) (*volume.Grid, error) {
	if err := checkKernel(g, kernelSize); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	geo := geometryOf(g)
	src := g.Raw()
	dst := make([]byte, len(src))
	half := kernelSize / 2
	side := 2*half + 1
	target := (side*side*side + 1) / 2

	forEachPlane(geo.depth, o.Workers, func(z int) {
		var hist [256]int
		for y := 0; y < geo.height; y++ {
			for x := 0; x < geo.width; x++ {
				base := ((z*geo.height+y)*geo.width + x) * geo.channels
				for c := 0; c < geo.channels; c++ {
					lo, hi := 255, 0
					for dz := -half; dz <= half; dz++ {
						plane := clamp(z+dz, geo.depth-1) * geo.height
						for dy := -half; dy <= half; dy++ {
							row := (plane + clamp(y+dy, geo.height-1)) * geo.width
							for dx := -half; dx <= half; dx++ {
								v := int(src[(row+clamp(x+dx, geo.width-1))*geo.channels+c])
								hist[v]++
								lo = min(lo, v)
								hi = max(hi, v)
							}
						}
					}

					count, median := 0, hi
					for v := lo; v <= hi; v++ {
						count += hist[v]
						if count >= target {
							median = v
							break
						}
					}
					dst[base+c] = byte(median)

					// only [lo, hi] was touched
					clear(hist[lo : hi+1])
				}
			}
		}
	})

	return volume.FromData(geo.width, geo.height, geo.depth, geo.channels, dst)
}
