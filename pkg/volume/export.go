package volume

import (
	"fmt"
	"os"
	"path/filepath"

	"slicestack/internal/models"
	"slicestack/pkg/imageio"
)

// SliceImage returns depth slice z (0-based) as a standalone image
func (g *Grid) SliceImage(z int) (*models.Image, error) {
	buf, err := g.SliceBuffer(z)
	if err != nil {
		return nil, err
	}
	return &models.Image{Width: g.width, Height: g.height, Channels: g.channels, Pix: buf}, nil
}

// SaveSliceAsImage writes depth slice z (0-based) to path
func (g *Grid) SaveSliceAsImage(z int, path string) error {
	img, err := g.SliceImage(z)
	if err != nil {
		return err
	}
	return imageio.EncodeFile(path, img)
}

// SaveAsImages writes every depth slice into dir as slice_0000.png, slice_0001.png, ...
// The names sort lexicographically in depth order, so Load reads them back unchanged.
func (g *Grid) SaveAsImages(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for z := 0; z < g.depth; z++ {
		path := filepath.Join(dir, fmt.Sprintf("slice_%04d.png", z))
		if err := g.SaveSliceAsImage(z, path); err != nil {
			return err
		}
	}
	return nil
}
