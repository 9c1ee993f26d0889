// Package imageio decodes raster files into 8-bit interleaved images and
// encodes them back. It is the only place that knows about file formats.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"slicestack/internal/models"
)

// ErrUnsupportedFormat is returned for file extensions no codec handles
var ErrUnsupportedFormat = errors.New("unsupported image format")

// JPEGQuality is used for every JPEG written by Encode
const JPEGQuality = 90

// IsImageFile reports whether name carries an extension Decode understands
func IsImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp":
		return true
	}
	return false
}

// DecodeFile reads and decodes one raster file
func DecodeFile(path string) (*models.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Decode(file, filepath.Ext(path))
}

// Decode decodes a raster stream. ext selects the codec (".png", ".tif", ...).
func Decode(r io.Reader, ext string) (*models.Image, error) {
	var (
		img image.Image
		err error
	)
	switch strings.ToLower(ext) {
	case ".png":
		img, err = png.Decode(r)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(r)
	case ".tif", ".tiff":
		img, err = tiff.Decode(r)
	case ".bmp":
		img, err = bmp.Decode(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}

// FromImage converts a decoded image.Image into interleaved 8-bit samples.
// The channel count follows the stored pixel format, not the pixel values:
// grayscale types yield one channel, types carrying an alpha sample four,
// everything else three.
func FromImage(src image.Image) *models.Image {
	b := src.Bounds()
	channels := channelsOf(src)
	out := models.NewImage(b.Dx(), b.Dy(), channels)

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			switch channels {
			case 1:
				out.Pix[i] = color.GrayModel.Convert(src.At(x, y)).(color.Gray).Y
			case 3:
				c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
				out.Pix[i], out.Pix[i+1], out.Pix[i+2] = c.R, c.G, c.B
			default:
				c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
				out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = c.R, c.G, c.B, c.A
			}
			i += channels
		}
	}
	return out
}

func channelsOf(src image.Image) int {
	switch m := src.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.NRGBA, *image.NRGBA64:
		return 4
	case *image.RGBA, *image.RGBA64, *image.YCbCr, *image.CMYK:
		return 3
	case *image.Paletted:
		// a palette with any translucent entry was stored with a tRNS chunk
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return 4
			}
		}
		return 3
	}
	switch src.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model:
		return 4
	}
	return 3
}

// ToImage converts interleaved samples into a standard library image
func ToImage(img *models.Image) (image.Image, error) {
	rect := image.Rect(0, 0, img.Width, img.Height)
	switch img.Channels {
	case 1:
		g := image.NewGray(rect)
		copy(g.Pix, img.Pix)
		return g, nil
	case 3:
		// RGBA with full alpha is written without an alpha sample by png and bmp
		n := image.NewRGBA(rect)
		for i, j := 0, 0; i < len(img.Pix); i, j = i+3, j+4 {
			n.Pix[j], n.Pix[j+1], n.Pix[j+2], n.Pix[j+3] = img.Pix[i], img.Pix[i+1], img.Pix[i+2], 0xff
		}
		return n, nil
	case 4:
		n := image.NewNRGBA(rect)
		copy(n.Pix, img.Pix)
		return n, nil
	}
	return nil, fmt.Errorf("cannot encode image with %d channels", img.Channels)
}

// EncodeFile writes img to path, choosing the codec from the extension
func EncodeFile(path string, img *models.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(file, filepath.Ext(path), img); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return file.Close()
}

// Encode writes img to w using the codec for ext
func Encode(w io.Writer, ext string, img *models.Image) error {
	std, err := ToImage(img)
	if err != nil {
		return err
	}
	switch strings.ToLower(ext) {
	case ".png":
		if n, ok := std.(*image.NRGBA); ok {
			std = alphaNRGBA{n}
		}
		return png.Encode(w, std)
	case ".jpg", ".jpeg":
		return jpeg.Encode(w, std, &jpeg.Options{Quality: JPEGQuality})
	case ".tif", ".tiff":
		return tiff.Encode(w, std, &tiff.Options{Compression: tiff.Deflate})
	case ".bmp":
		return bmp.Encode(w, std)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// alphaNRGBA makes the png encoder keep the alpha sample of a 4-channel
// image even when every pixel happens to be opaque.
type alphaNRGBA struct{ *image.NRGBA }

func (alphaNRGBA) Opaque() bool { return false }
