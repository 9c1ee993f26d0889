package filter2d

import (
	"fmt"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/valyala/fastrand"

	"slicestack/internal/models"
)

func clone(img *models.Image) *models.Image {
	out := models.NewImage(img.Width, img.Height, img.Channels)
	copy(out.Pix, img.Pix)
	return out
}

// Brightness adds delta to every colour sample, saturating at 0 and 255
func Brightness(img *models.Image, delta int) *models.Image {
	out := clone(img)
	cc := colorChannels(img)
	for p := 0; p < len(out.Pix); p += img.Channels {
		for c := 0; c < cc; c++ {
			out.Pix[p+c] = byte(max(0, min(255, int(out.Pix[p+c])+delta)))
		}
	}
	return out
}

// AutoBrightness shifts the image so its mean luma lands on 128
func AutoBrightness(img *models.Image) *models.Image {
	gray := Grayscale(img)
	sum := 0
	for _, v := range gray.Pix {
		sum += int(v)
	}
	mean := float64(sum) / float64(len(gray.Pix))
	return Brightness(img, 128-int(math.Round(mean)))
}

// value returns the HSV value (the largest colour sample) of pixel p
func value(pix []byte, cc int) byte {
	v := pix[0]
	for c := 1; c < cc; c++ {
		v = max(v, pix[c])
	}
	return v
}

// Equalize spreads the intensity histogram over [0, 255]. Single-channel
// images are equalized directly; colour images equalize the HSV value and
// keep hue, saturation and alpha.
func Equalize(img *models.Image) *models.Image {
	cc := colorChannels(img)
	var hist [256]int
	for p := 0; p < len(img.Pix); p += img.Channels {
		hist[value(img.Pix[p:], cc)]++
	}

	n := len(img.Pix) / img.Channels
	var lut [256]byte
	cdf, cdfMin := 0, 0
	for v, count := range hist {
		cdf += count
		if cdfMin == 0 {
			cdfMin = cdf
		}
		if n == cdfMin {
			lut[v] = byte(v)
			continue
		}
		lut[v] = toByte(float64(cdf-cdfMin) / float64(n-cdfMin) * 255)
	}

	out := clone(img)
	for p := 0; p < len(out.Pix); p += img.Channels {
		if cc == 1 {
			out.Pix[p] = lut[out.Pix[p]]
			continue
		}
		px := out.Pix[p:]
		col := colorful.Color{R: float64(px[0]) / 255, G: float64(px[1]) / 255, B: float64(px[2]) / 255}
		h, s, v := col.Hsv()
		nv := float64(lut[toByte(v*255)]) / 255
		px[0], px[1], px[2] = colorful.Hsv(h, s, nv).Clamped().RGB255()
	}
	return out
}

// Threshold maps each pixel to black or white by comparing its value
// (gray level or HSV value) against t. Alpha is kept.
func Threshold(img *models.Image, t byte) *models.Image {
	cc := colorChannels(img)
	out := clone(img)
	for p := 0; p < len(out.Pix); p += img.Channels {
		level := byte(255)
		if value(out.Pix[p:], cc) < t {
			level = 0
		}
		for c := 0; c < cc; c++ {
			out.Pix[p+c] = level
		}
	}
	return out
}

// SaltAndPepper sets about percent% of the pixels to black or white with
// equal odds. The same seed always yields the same noise.
func SaltAndPepper(img *models.Image, percent float64, seed uint32) (*models.Image, error) {
	if math.IsNaN(percent) || percent < 0 || percent > 100 {
		return nil, fmt.Errorf("%w: noise percentage %v outside [0,100]", ErrInvalidArgument, percent)
	}
	var rng fastrand.RNG
	rng.Seed(seed)
	hit := uint32(math.Round(percent * 100))

	cc := colorChannels(img)
	out := clone(img)
	for p := 0; p < len(out.Pix); p += img.Channels {
		if rng.Uint32n(10000) >= hit {
			continue
		}
		level := byte(0)
		if rng.Uint32n(2) == 1 {
			level = 255
		}
		for c := 0; c < cc; c++ {
			out.Pix[p+c] = level
		}
	}
	return out, nil
}
