// Package projection reduces a depth range of a volume to a single 2-D image.
package projection

import (
	"errors"
	"fmt"
	"strings"

	"slicestack/internal/models"
	"slicestack/pkg/volume"
)

var (
	// ErrInvalidRange is returned when the depth range is empty after clamping
	ErrInvalidRange = errors.New("invalid projection range")

	// ErrUnknownRule is returned by ParseRule for unrecognized names
	ErrUnknownRule = errors.New("unknown projection rule")
)

// Rule selects how samples along z are combined
type Rule int

const (
	// Max is the maximum intensity projection (MIP)
	Max Rule = iota
	// Min is the minimum intensity projection (MinIP)
	Min
	// Mean is the average intensity projection (AIP), truncated toward zero
	Mean
)

// Rules lists every rule in canonical order
var Rules = []Rule{Max, Min, Mean}

func (r Rule) String() string {
	switch r {
	case Max:
		return "mip"
	case Min:
		return "minip"
	case Mean:
		return "aip"
	}
	return fmt.Sprintf("Rule(%d)", int(r))
}

// ParseRule accepts the short names (mip, minip, aip) and max, min, mean, avg
func ParseRule(s string) (Rule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mip", "max":
		return Max, nil
	case "minip", "min":
		return Min, nil
	case "aip", "mean", "avg", "average":
		return Mean, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRule, s)
}

// Options configures a projection. The zero value projects the whole volume
// and reduces every channel.
type Options struct {
	// MinZ and MaxZ bound the depth range, 1-based and inclusive. Zero means
	// "from the first slice" and "to the last slice" respectively. Values
	// outside [1, depth] are clamped.
	MinZ int
	MaxZ int

	// FirstChannelOnly reduces only channel 0 and leaves the remaining
	// channels of each output pixel at zero.
	FirstChannelOnly bool
}

// Range converts the 1-based inclusive request into a clamped 0-based
// inclusive range [lo, hi] for a volume of the given depth.
func Range(minZ, maxZ, depth int) (lo, hi int, err error) {
	if maxZ == 0 {
		maxZ = depth
	}
	lo = max(minZ-1, 0)
	hi = min(maxZ-1, depth-1)
	if lo > hi {
		return 0, 0, fmt.Errorf("%w: [%d,%d] is empty within [1,%d]", ErrInvalidRange, minZ, maxZ, depth)
	}
	return lo, hi, nil
}

// Project reduces g along z with rule and returns a width x height image
// with the grid's channel count.
func Project(g *volume.Grid, rule Rule, opts Options) (*models.Image, error) {
	if g == nil || g.Len() == 0 {
		return nil, volume.ErrEmptyGrid
	}
	lo, hi, err := Range(opts.MinZ, opts.MaxZ, g.Depth())
	if err != nil {
		return nil, err
	}

	width, height, channels := g.Width(), g.Height(), g.Channels()
	out := models.NewImage(width, height, channels)
	reduced := channels
	if opts.FirstChannelOnly {
		reduced = 1
	}

	src := g.Raw()
	sliceLen := g.SliceLen()
	count := hi - lo + 1

	for p := 0; p < width*height; p++ {
		base := p * channels
		for c := 0; c < reduced; c++ {
			var acc int
			switch rule {
			case Max:
				acc = 0
				for z := lo; z <= hi; z++ {
					acc = max(acc, int(src[z*sliceLen+base+c]))
				}
			case Min:
				acc = 255
				for z := lo; z <= hi; z++ {
					acc = min(acc, int(src[z*sliceLen+base+c]))
				}
			case Mean:
				for z := lo; z <= hi; z++ {
					acc += int(src[z*sliceLen+base+c])
				}
				acc /= count
			default:
				return nil, fmt.Errorf("%w: %v", ErrUnknownRule, rule)
			}
			out.Pix[base+c] = byte(acc)
		}
	}
	return out, nil
}

// Slab projects the thin slab [start, end] (1-based, inclusive)
func Slab(g *volume.Grid, rule Rule, start, end int, firstChannelOnly bool) (*models.Image, error) {
	if end < start {
		return nil, fmt.Errorf("%w: slab end %d before start %d", ErrInvalidRange, end, start)
	}
	return Project(g, rule, Options{MinZ: start, MaxZ: end, FirstChannelOnly: firstChannelOnly})
}

// All runs the given rules, or every rule when none is given, over the same
// range and returns the images keyed by rule
func All(g *volume.Grid, opts Options, rules ...Rule) (map[Rule]*models.Image, error) {
	if len(rules) == 0 {
		rules = Rules
	}
	out := make(map[Rule]*models.Image, len(rules))
	for _, r := range rules {
		img, err := Project(g, r, opts)
		if err != nil {
			return nil, fmt.Errorf("%s projection: %w", r, err)
		}
		out[r] = img
	}
	return out, nil
}
