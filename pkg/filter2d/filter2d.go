// Package filter2d post-processes rendered 2-D images: projections, thin
// slabs and cross-sections. It offers neighborhood blurs, gradient edge
// detectors and colour corrections, addressable by name so a list of them
// can be read from configuration or a query string.
//
// Unlike pkg/filter, neighborhoods here only use taps that fall inside the
// image; nothing is clamped or replicated.
package filter2d

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"slicestack/internal/models"
)

var (
	// ErrUnknownOp is returned by ParseOp for names it does not know
	ErrUnknownOp = errors.New("unknown 2-D operator")

	// ErrInvalidArgument is returned for out-of-range or malformed operator arguments
	ErrInvalidArgument = errors.New("invalid operator argument")
)

// Op is a named image operator with its arguments bound
type Op struct {
	spec  string
	apply func(*models.Image) (*models.Image, error)
}

// String returns the text the operator was parsed from
func (o Op) String() string {
	return o.spec
}

// Apply runs the operator on img and returns a new image
func (o Op) Apply(img *models.Image) (*models.Image, error) {
	if img == nil || len(img.Pix) == 0 {
		return nil, fmt.Errorf("%s: empty image", o.spec)
	}
	return o.apply(img)
}

// Chain is a sequence of operators applied in order
type Chain []Op

// Apply runs every operator in turn. An empty chain returns img unchanged.
func (c Chain) Apply(img *models.Image) (*models.Image, error) {
	var err error
	for _, op := range c {
		if img, err = op.Apply(img); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// ParseChain parses each entry with ParseOp
func ParseChain(specs []string) (Chain, error) {
	var c Chain
	for _, s := range specs {
		if strings.TrimSpace(s) == "" {
			continue
		}
		op, err := ParseOp(s)
		if err != nil {
			return nil, err
		}
		c = append(c, op)
	}
	return c, nil
}

// ParseOp parses "name" or "name:arg[:arg]". Known operators:
//
//	box[:k]                 box blur, k defaults to 3
//	gaussian[:k[:sigma]]    Gaussian blur, defaults 3 and 1
//	median[:k]              sorted median, k defaults to 3
//	sobel, prewitt, scharr, roberts
//	grayscale
//	brightness:delta        delta in [-255, 255] or "auto"
//	equalize
//	threshold[:t]           t in [0, 255], defaults to 128
//	saltpepper[:pct[:seed]] noise on pct percent of pixels, defaults 5 and 1
func ParseOp(spec string) (Op, error) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	parts := strings.Split(spec, ":")
	name, args := parts[0], parts[1:]

	op := Op{spec: spec}
	var err error
	switch name {
	case "box":
		var k int
		if k, err = intArg(args, 0, 3); err == nil {
			op.apply = func(img *models.Image) (*models.Image, error) { return BoxBlur(img, k) }
		}
	case "gaussian":
		var k int
		var sigma float64
		if k, err = intArg(args, 0, 3); err == nil {
			if sigma, err = floatArg(args, 1, 1); err == nil {
				op.apply = func(img *models.Image) (*models.Image, error) { return GaussianBlur(img, k, sigma) }
			}
		}
	case "median":
		var k int
		if k, err = intArg(args, 0, 3); err == nil {
			op.apply = func(img *models.Image) (*models.Image, error) { return MedianBlur(img, k) }
		}
	case "sobel", "prewitt", "scharr", "roberts":
		e := EdgeOperator(name)
		op.apply = func(img *models.Image) (*models.Image, error) { return EdgeDetect(img, e) }
	case "grayscale":
		op.apply = func(img *models.Image) (*models.Image, error) { return Grayscale(img), nil }
	case "brightness":
		if len(args) > 0 && args[0] == "auto" {
			op.apply = func(img *models.Image) (*models.Image, error) { return AutoBrightness(img), nil }
			break
		}
		var d int
		if d, err = intArg(args, 0, 0); err == nil {
			if d < -255 || d > 255 {
				err = fmt.Errorf("%w: brightness %d outside [-255,255]", ErrInvalidArgument, d)
				break
			}
			op.apply = func(img *models.Image) (*models.Image, error) { return Brightness(img, d), nil }
		}
	case "equalize":
		op.apply = func(img *models.Image) (*models.Image, error) { return Equalize(img), nil }
	case "threshold":
		var t int
		if t, err = intArg(args, 0, 128); err == nil {
			if t < 0 || t > 255 {
				err = fmt.Errorf("%w: threshold %d outside [0,255]", ErrInvalidArgument, t)
				break
			}
			op.apply = func(img *models.Image) (*models.Image, error) { return Threshold(img, byte(t)), nil }
		}
	case "saltpepper":
		var pct float64
		var seed int
		if pct, err = floatArg(args, 0, 5); err == nil {
			if seed, err = intArg(args, 1, 1); err == nil {
				op.apply = func(img *models.Image) (*models.Image, error) {
					return SaltAndPepper(img, pct, uint32(seed))
				}
			}
		}
	default:
		return Op{}, fmt.Errorf("%w: %q", ErrUnknownOp, name)
	}
	if err != nil {
		return Op{}, fmt.Errorf("%s: %w", name, err)
	}
	return op, nil
}

func intArg(args []string, i, def int) (int, error) {
	if i >= len(args) || args[i] == "" {
		return def, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidArgument, args[i])
	}
	return n, nil
}

func floatArg(args []string, i int, def float64) (float64, error) {
	if i >= len(args) || args[i] == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(args[i], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidArgument, args[i])
	}
	return f, nil
}

// colorChannels is the number of leading samples per pixel that carry
// intensity; a fourth sample is alpha and is left alone
func colorChannels(img *models.Image) int {
	return min(img.Channels, 3)
}

func toByte(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v + 0.5)
}
