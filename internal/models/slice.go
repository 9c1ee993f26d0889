package models

// Image is a 2-D raster with interleaved 8-bit samples.
// Sample (x, y, c) lives at Pix[(y*Width+x)*Channels+c].
type Image struct {
	// Width is the number of pixels per row
	Width int

	// Height is the number of rows
	Height int

	// Channels is the number of samples per pixel (1, 3 or 4)
	Channels int

	// Pix holds Width*Height*Channels samples in row-major order
	Pix []byte
}

// NewImage allocates a zeroed image of the given geometry
func NewImage(width, height, channels int) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

// Stride returns the number of bytes per row
func (img *Image) Stride() int {
	return img.Width * img.Channels
}

// Offset returns the index of sample (x, y, c) in Pix
func (img *Image) Offset(x, y, c int) int {
	return (y*img.Width+x)*img.Channels + c
}

// SliceFile is one decoded input slice together with where it came from
type SliceFile struct {
	// Image is the decoded slice
	Image *Image

	// Index is the depth position of this slice after sorting
	Index int

	// Filename is the base name of the source file
	Filename string
}

// Axis names one of the three volume axes
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
	AxisZ Axis = "z"
)
