package volume

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"slicestack/internal/models"
	"slicestack/pkg/imageio"
)

// Decoder turns one slice file into an image. imageio.DecodeFile is the default.
type Decoder func(path string) (*models.Image, error)

// LoadOptions tunes Load
type LoadOptions struct {
	// Decoder decodes one file; nil means imageio.DecodeFile
	Decoder Decoder

	// Workers bounds concurrent decoding; values below 1 decode sequentially
	Workers int
}

// ListSlices returns the image files in dir sorted lexicographically by name.
// This order defines the z axis.
func ListSlices(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ReadError{Path: dir, Err: err}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !imageio.IsImageFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDirectory, dir)
	}
	sort.Strings(names)
	return names, nil
}

// Load builds a grid from the image files in dir using default options
func Load(dir string) (*Grid, error) {
	return LoadWithOptions(dir, LoadOptions{})
}

// LoadWithOptions builds a grid from the image files in dir. The first slice
// fixes width, height and channels; any slice that disagrees fails the whole
// load and no grid is returned. Once a file fails to decode, files not yet
// started are skipped.
func LoadWithOptions(dir string, opts LoadOptions) (*Grid, error) {
	names, err := ListSlices(dir)
	if err != nil {
		return nil, err
	}
	decode := opts.Decoder
	if decode == nil {
		decode = imageio.DecodeFile
	}

	slices := make([]models.SliceFile, len(names))
	eg, ctx := errgroup.WithContext(context.Background())
	if opts.Workers > 0 {
		eg.SetLimit(opts.Workers)
	} else {
		eg.SetLimit(1)
	}
	for i, name := range names {
		i := i       // per-iteration copy (go 1.21 loop semantics)
		name := name // per-iteration copy (go 1.21 loop semantics)
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, name)
			img, err := decode(path)
			if err != nil {
				return &ReadError{Path: path, Err: err}
			}
			slices[i] = models.SliceFile{Image: img, Index: i, Filename: name}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return FromSlices(slices)
}

// FromSlices copies decoded slices into a new grid, in the given order
func FromSlices(slices []models.SliceFile) (*Grid, error) {
	if len(slices) == 0 {
		return nil, ErrEmptyGrid
	}

	first := slices[0].Image
	if !ValidChannels(first.Channels) {
		return nil, fmt.Errorf("%w: %s has %d channels", ErrUnsupportedChannels, slices[0].Filename, first.Channels)
	}
	g, err := New(first.Width, first.Height, len(slices), first.Channels)
	if err != nil {
		return nil, err
	}

	n := g.SliceLen()
	for z, s := range slices {
		img := s.Image
		if img.Width != g.width || img.Height != g.height || img.Channels != g.channels {
			return nil, fmt.Errorf("%w: %s is %dx%d with %d channel(s), expected %dx%d with %d",
				ErrGeometryMismatch, s.Filename, img.Width, img.Height, img.Channels,
				g.width, g.height, g.channels)
		}
		if len(img.Pix) != n {
			return nil, fmt.Errorf("%w: %s has %d samples, want %d", ErrGeometryMismatch, s.Filename, len(img.Pix), n)
		}
		copy(g.data[z*n:], img.Pix)
	}
	return g, nil
}
