// Package volume holds 3-D scalar volumes assembled from stacks of 2-D slices.
//
// A Grid stores all voxels in one contiguous arena. Voxel (z, y, x, c) lives at
// offset z*width*height*channels + (y*width+x)*channels + c, so each depth
// slice is a contiguous run of width*height*channels samples.
package volume

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDirectory is returned by Load when no image files were found
	ErrEmptyDirectory = errors.New("no image files in directory")

	// ErrEmptyGrid is returned when an operation needs voxels but the grid has none
	ErrEmptyGrid = errors.New("grid is empty")

	// ErrGeometryMismatch is returned when a slice disagrees with the grid geometry
	ErrGeometryMismatch = errors.New("slice geometry mismatch")

	// ErrIndexOutOfBounds is returned for coordinates outside the grid
	ErrIndexOutOfBounds = errors.New("index out of bounds")

	// ErrUnsupportedChannels is returned for channel counts other than 1, 3 or 4
	ErrUnsupportedChannels = errors.New("unsupported channel count")
)

// ReadError reports a slice file that could not be read or decoded
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read slice %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Grid is a volume of width x height x depth voxels with channels samples each
type Grid struct {
	width    int
	height   int
	depth    int
	channels int

	// data is the voxel arena, depth*height*width*channels samples
	data []byte
}

// ValidChannels reports whether c is a supported per-voxel sample count
func ValidChannels(c int) bool {
	return c == 1 || c == 3 || c == 4
}

// New allocates a zero-filled grid
func New(width, height, depth, channels int) (*Grid, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrEmptyGrid, width, height, depth)
	}
	if !ValidChannels(channels) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChannels, channels)
	}
	return &Grid{
		width:    width,
		height:   height,
		depth:    depth,
		channels: channels,
		data:     make([]byte, width*height*depth*channels),
	}, nil
}

// FromData wraps an existing arena without copying. The grid takes ownership
// of data; callers must not retain it.
func FromData(width, height, depth, channels int, data []byte) (*Grid, error) {
	if !ValidChannels(channels) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChannels, channels)
	}
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrEmptyGrid, width, height, depth)
	}
	if len(data) != width*height*depth*channels {
		return nil, fmt.Errorf("%w: arena has %d samples, want %d",
			ErrGeometryMismatch, len(data), width*height*depth*channels)
	}
	return &Grid{width: width, height: height, depth: depth, channels: channels, data: data}, nil
}

// Width returns the number of voxels along x
func (g *Grid) Width() int { return g.width }

// Height returns the number of voxels along y
func (g *Grid) Height() int { return g.height }

// Depth returns the number of slices
func (g *Grid) Depth() int { return g.depth }

// Channels returns the number of samples per voxel
func (g *Grid) Channels() int { return g.channels }

// SliceLen returns the number of samples in one depth slice
func (g *Grid) SliceLen() int { return g.width * g.height * g.channels }

// Len returns the total number of samples
func (g *Grid) Len() int { return len(g.data) }

// Raw exposes the voxel arena for read-mostly hot loops. Callers must not
// resize it; writes go straight into the grid.
func (g *Grid) Raw() []byte { return g.data }

// Offset computes the arena index of voxel (z, y, x, c) without bounds checks
func (g *Grid) Offset(z, y, x, c int) int {
	return ((z*g.height+y)*g.width+x)*g.channels + c
}

// Contains reports whether (z, y, x, c) is a valid voxel coordinate
func (g *Grid) Contains(z, y, x, c int) bool {
	return z >= 0 && z < g.depth &&
		y >= 0 && y < g.height &&
		x >= 0 && x < g.width &&
		c >= 0 && c < g.channels
}

// VoxelAt returns the sample at (z, y, x, c)
func (g *Grid) VoxelAt(z, y, x, c int) (byte, error) {
	if !g.Contains(z, y, x, c) {
		return 0, fmt.Errorf("%w: voxel (z=%d, y=%d, x=%d, c=%d) outside %dx%dx%dx%d",
			ErrIndexOutOfBounds, z, y, x, c, g.depth, g.height, g.width, g.channels)
	}
	return g.data[g.Offset(z, y, x, c)], nil
}

// SetVoxelAt stores value at (z, y, x, c)
func (g *Grid) SetVoxelAt(z, y, x, c int, value byte) error {
	if !g.Contains(z, y, x, c) {
		return fmt.Errorf("%w: voxel (z=%d, y=%d, x=%d, c=%d) outside %dx%dx%dx%d",
			ErrIndexOutOfBounds, z, y, x, c, g.depth, g.height, g.width, g.channels)
	}
	g.data[g.Offset(z, y, x, c)] = value
	return nil
}

// SliceBuffer returns a copy of the flat buffer of slice z
func (g *Grid) SliceBuffer(z int) ([]byte, error) {
	if z < 0 || z >= g.depth {
		return nil, fmt.Errorf("%w: slice %d outside [0,%d)", ErrIndexOutOfBounds, z, g.depth)
	}
	n := g.SliceLen()
	out := make([]byte, n)
	copy(out, g.data[z*n:(z+1)*n])
	return out, nil
}

// ReplaceData swaps in a new slice sequence, recomputing depth. Every slice
// must hold exactly width*height*channels samples; on error the grid is left
// untouched. The slices are copied, so the caller keeps ownership of them.
func (g *Grid) ReplaceData(slices [][]byte) error {
	if len(slices) == 0 {
		return ErrEmptyGrid
	}
	n := g.SliceLen()
	for i, s := range slices {
		if len(s) != n {
			return fmt.Errorf("%w: slice %d has %d samples, want %d", ErrGeometryMismatch, i, len(s), n)
		}
	}

	data := make([]byte, n*len(slices))
	for i, s := range slices {
		copy(data[i*n:], s)
	}
	g.data = data
	g.depth = len(slices)
	return nil
}

// SameGeometry reports whether g and o have identical dimensions and channel count
func (g *Grid) SameGeometry(o *Grid) bool {
	return g.width == o.width && g.height == o.height && g.depth == o.depth && g.channels == o.channels
}

// String describes the grid geometry
func (g *Grid) String() string {
	return fmt.Sprintf("%dx%dx%d (W x H x D), %d channel(s)", g.width, g.height, g.depth, g.channels)
}
