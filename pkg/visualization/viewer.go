package visualization

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"slicestack/internal/models"
	"slicestack/pkg/imageio"
	"slicestack/pkg/volume"
)

// ErrInvalidAxis is returned for axis names other than x, y and z
var ErrInvalidAxis = errors.New("invalid axis")

// ParseAxis accepts x, y or z in either case
func ParseAxis(name string) (models.Axis, error) {
	switch a := models.Axis(strings.ToLower(strings.TrimSpace(name))); a {
	case models.AxisX, models.AxisY, models.AxisZ:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q (must be x, y, or z)", ErrInvalidAxis, name)
}

// Viewer extracts 2-D cross-sections and sub-regions from a volume.
// Plane indices are 1-based and must lie in [1, dimension].
type Viewer struct {
	grid *volume.Grid
}

// NewViewer creates a viewer over grid. The grid is read, never modified.
func NewViewer(grid *volume.Grid) *Viewer {
	return &Viewer{grid: grid}
}

func checkPlane(name string, index, limit int) error {
	if index < 1 || index > limit {
		return fmt.Errorf("%w: %s=%d outside [1,%d]", volume.ErrIndexOutOfBounds, name, index, limit)
	}
	return nil
}

// SliceXZ returns the plane at fixed y (1-based) as a width x depth image:
// output pixel (x, z) is voxel (z, y-1, x).
func SliceXZ(g *volume.Grid, y int) (*models.Image, error) {
	if err := checkPlane("y", y, g.Height()); err != nil {
		return nil, err
	}
	width, depth, channels := g.Width(), g.Depth(), g.Channels()
	out := models.NewImage(width, depth, channels)
	src := g.Raw()
	row := width * channels

	for z := 0; z < depth; z++ {
		start := g.Offset(z, y-1, 0, 0)
		copy(out.Pix[z*row:(z+1)*row], src[start:start+row])
	}
	return out, nil
}

// SliceYZ returns the plane at fixed x (1-based) as a height x depth image:
// output pixel (y, z) is voxel (z, y, x-1).
func SliceYZ(g *volume.Grid, x int) (*models.Image, error) {
	if err := checkPlane("x", x, g.Width()); err != nil {
		return nil, err
	}
	height, depth, channels := g.Height(), g.Depth(), g.Channels()
	out := models.NewImage(height, depth, channels)
	src := g.Raw()

	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			s := g.Offset(z, y, x-1, 0)
			d := (z*height + y) * channels
			copy(out.Pix[d:d+channels], src[s:s+channels])
		}
	}
	return out, nil
}

// SliceXY returns depth slice z (1-based) as a width x height image
func SliceXY(g *volume.Grid, z int) (*models.Image, error) {
	if err := checkPlane("z", z, g.Depth()); err != nil {
		return nil, err
	}
	return g.SliceImage(z - 1)
}

// ExtractSlice extracts the plane perpendicular to axis at a 1-based position
func (v *Viewer) ExtractSlice(axis models.Axis, position int) (*models.Image, error) {
	switch axis {
	case models.AxisX, "X":
		return SliceYZ(v.grid, position)
	case models.AxisY, "Y":
		return SliceXZ(v.grid, position)
	case models.AxisZ, "Z":
		return SliceXY(v.grid, position)
	}
	return nil, fmt.Errorf("%w: %s (must be x, y, or z)", ErrInvalidAxis, axis)
}

// AxisLength returns the number of planes perpendicular to axis
func (v *Viewer) AxisLength(axis models.Axis) (int, error) {
	switch axis {
	case models.AxisX, "X":
		return v.grid.Width(), nil
	case models.AxisY, "Y":
		return v.grid.Height(), nil
	case models.AxisZ, "Z":
		return v.grid.Depth(), nil
	}
	return 0, fmt.Errorf("%w: %s (must be x, y, or z)", ErrInvalidAxis, axis)
}

// ExtractRegion copies the box starting at 0-based (startX, startY, startZ)
// with the given size into a new grid
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) (*volume.Grid, error) {
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("%w: start coordinates must be non-negative", volume.ErrIndexOutOfBounds)
	}
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("%w: size dimensions must be positive", volume.ErrEmptyGrid)
	}
	g := v.grid
	if startX+sizeX > g.Width() || startY+sizeY > g.Height() || startZ+sizeZ > g.Depth() {
		return nil, fmt.Errorf("%w: region extends beyond volume boundaries", volume.ErrIndexOutOfBounds)
	}

	channels := g.Channels()
	region := make([]byte, sizeX*sizeY*sizeZ*channels)
	src := g.Raw()
	row := sizeX * channels
	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			s := g.Offset(startZ+z, startY+y, startX, 0)
			d := (z*sizeY + y) * row
			copy(region[d:d+row], src[s:s+row])
		}
	}
	return volume.FromData(sizeX, sizeY, sizeZ, channels, region)
}

// SaveSlice writes an extracted slice; the extension picks the format
func (v *Viewer) SaveSlice(img *models.Image, filename string) error {
	return imageio.EncodeFile(filename, img)
}

// SaveSliceSequence extracts and saves every plane along axis into outputDir
// as slice_<axis>_<position>.png with 1-based positions
func (v *Viewer) SaveSliceSequence(axis models.Axis, outputDir string) error {
	maxPos, err := v.AxisLength(axis)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 1; pos <= maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%04d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}
	return nil
}
