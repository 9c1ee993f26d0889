package volume

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slicestack/internal/models"
	"slicestack/pkg/imageio"
)

// writeGraySlice writes a grayscale PNG whose pixel (x, y) is value(x, y)
func writeGraySlice(t *testing.T, path string, width, height int, value func(x, y int) uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: value(x, y)})
		}
	}
	writePNG(t, path, img)
}

// writeRGBSlice writes an opaque color PNG filled with c
func writeRGBSlice(t *testing.T, path string, width, height int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	writePNG(t, path, img)
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// TestLoadGeometry verifies that N equal slices load into a grid of depth N
func TestLoadGeometry(t *testing.T) {
	dir := t.TempDir()
	width, height, n := 6, 4, 5
	for z := 0; z < n; z++ {
		z := z // per-iteration copy (go 1.21 loop semantics)
		name := filepath.Join(dir, fmt.Sprintf("scan_%03d.png", z))
		writeGraySlice(t, name, width, height, func(x, y int) uint8 { return uint8(10*z + x + y) })
	}
	// non-image files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644))

	g, err := LoadWithOptions(dir, LoadOptions{Workers: 3})
	require.NoError(t, err)

	assert.Equal(t, n, g.Depth())
	assert.Equal(t, width, g.Width())
	assert.Equal(t, height, g.Height())
	assert.Equal(t, 1, g.Channels())

	for z := 0; z < n; z++ {
		v, err := g.VoxelAt(z, 2, 3, 0)
		require.NoError(t, err)
		assert.Equal(t, uint8(10*z+5), v, "slice %d", z)
	}
}

// TestLoadLexicographicOrder verifies that filename order defines the z axis
func TestLoadLexicographicOrder(t *testing.T) {
	dir := t.TempDir()
	for _, tc := range []struct {
		name  string
		value uint8
	}{
		{"b.png", 2},
		{"c.png", 3},
		{"a.png", 1},
	} {
		v := tc.value
		writeGraySlice(t, filepath.Join(dir, tc.name), 2, 2, func(int, int) uint8 { return v })
	}

	g, err := Load(dir)
	require.NoError(t, err)
	for z, want := range []uint8{1, 2, 3} {
		v, err := g.VoxelAt(z, 0, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
}

// TestLoadRGB verifies that opaque color slices load with three channels
func TestLoadRGB(t *testing.T) {
	dir := t.TempDir()
	writeRGBSlice(t, filepath.Join(dir, "0.png"), 3, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	writeRGBSlice(t, filepath.Join(dir, "1.png"), 3, 2, color.NRGBA{R: 40, G: 50, B: 60, A: 255})

	g, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Channels())

	buf, err := g.SliceBuffer(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{40, 50, 60}, buf[:3])
}

// TestLoadAlphaFromHeader verifies that slices stored with an alpha sample
// load as four channels whether or not any pixel is translucent
func TestLoadAlphaFromHeader(t *testing.T) {
	dir := t.TempDir()
	opaque := models.NewImage(3, 2, 4)
	for i := range opaque.Pix {
		opaque.Pix[i] = 255
	}
	translucent := models.NewImage(3, 2, 4)
	copy(translucent.Pix, opaque.Pix)
	translucent.Pix[3] = 100
	require.NoError(t, imageio.EncodeFile(filepath.Join(dir, "0.png"), opaque))
	require.NoError(t, imageio.EncodeFile(filepath.Join(dir, "1.png"), translucent))

	g, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Channels())
	v, err := g.VoxelAt(1, 0, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, uint8(100), v)

	// an all-opaque 4-channel grid keeps its alpha through export
	all, err := FromData(3, 2, 2, 4, append(append([]byte(nil), opaque.Pix...), opaque.Pix...))
	require.NoError(t, err)
	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, all.SaveAsImages(out))
	back, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, 4, back.Channels())
	assert.Equal(t, all.Raw(), back.Raw())
}

// TestLoadGeometryMismatch verifies that a differing slice fails the whole load
func TestLoadGeometryMismatch(t *testing.T) {
	t.Run("channels", func(t *testing.T) {
		dir := t.TempDir()
		writeGraySlice(t, filepath.Join(dir, "0.png"), 4, 4, func(int, int) uint8 { return 1 })
		writeRGBSlice(t, filepath.Join(dir, "1.png"), 4, 4, color.NRGBA{R: 1, A: 255})

		g, err := Load(dir)
		assert.Nil(t, g)
		assert.ErrorIs(t, err, ErrGeometryMismatch)
	})

	t.Run("size", func(t *testing.T) {
		dir := t.TempDir()
		writeGraySlice(t, filepath.Join(dir, "0.png"), 4, 4, func(int, int) uint8 { return 1 })
		writeGraySlice(t, filepath.Join(dir, "1.png"), 4, 5, func(int, int) uint8 { return 1 })

		g, err := Load(dir)
		assert.Nil(t, g)
		assert.ErrorIs(t, err, ErrGeometryMismatch)
	})
}

// TestLoadErrors covers the empty-directory and unreadable-file paths
func TestLoadErrors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), nil, 0644))
		_, err := Load(dir)
		assert.ErrorIs(t, err, ErrEmptyDirectory)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope"))
		var re *ReadError
		assert.True(t, errors.As(err, &re))
	})

	t.Run("corrupt file", func(t *testing.T) {
		dir := t.TempDir()
		writeGraySlice(t, filepath.Join(dir, "0.png"), 2, 2, func(int, int) uint8 { return 1 })
		require.NoError(t, os.WriteFile(filepath.Join(dir, "1.png"), []byte("not a png"), 0644))

		g, err := Load(dir)
		assert.Nil(t, g)
		var re *ReadError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, filepath.Join(dir, "1.png"), re.Path)
	})

	t.Run("custom decoder failure", func(t *testing.T) {
		dir := t.TempDir()
		writeGraySlice(t, filepath.Join(dir, "0.png"), 2, 2, func(int, int) uint8 { return 1 })
		boom := errors.New("boom")
		_, err := LoadWithOptions(dir, LoadOptions{Decoder: func(string) (*models.Image, error) { return nil, boom }})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("stops after first failure", func(t *testing.T) {
		dir := t.TempDir()
		for z := 0; z < 4; z++ {
			writeGraySlice(t, filepath.Join(dir, fmt.Sprintf("%d.png", z)), 2, 2, func(int, int) uint8 { return 1 })
		}
		boom := errors.New("boom")
		calls := 0
		decoder := func(string) (*models.Image, error) {
			calls++
			return nil, boom
		}
		_, err := LoadWithOptions(dir, LoadOptions{Decoder: decoder, Workers: 1})
		var re *ReadError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, filepath.Join(dir, "0.png"), re.Path)
		assert.Equal(t, 1, calls)
	})
}

// TestVoxelAccessors verifies addressing and bounds checks
func TestVoxelAccessors(t *testing.T) {
	g, err := New(3, 2, 4, 3)
	require.NoError(t, err)

	require.NoError(t, g.SetVoxelAt(2, 1, 2, 1, 99))
	v, err := g.VoxelAt(2, 1, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, uint8(99), v)

	// slice z=2, flat offset (y*width+x)*channels+c
	buf, err := g.SliceBuffer(2)
	require.NoError(t, err)
	assert.Equal(t, uint8(99), buf[(1*3+2)*3+1])

	for _, c := range [][4]int{
		{-1, 0, 0, 0}, {4, 0, 0, 0}, {0, 2, 0, 0}, {0, 0, 3, 0}, {0, 0, 0, 3},
	} {
		_, err := g.VoxelAt(c[0], c[1], c[2], c[3])
		assert.ErrorIs(t, err, ErrIndexOutOfBounds, "%v", c)
		assert.ErrorIs(t, g.SetVoxelAt(c[0], c[1], c[2], c[3], 1), ErrIndexOutOfBounds, "%v", c)
	}

	_, err = g.SliceBuffer(4)
	assert.ErrorIs(t, err, ErrIndexOutOfBounds)
	_, err = g.SliceBuffer(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfBounds)
}

// TestSliceBufferIsCopy verifies that returned buffers do not alias the grid
func TestSliceBufferIsCopy(t *testing.T) {
	g, err := New(2, 2, 1, 1)
	require.NoError(t, err)
	buf, err := g.SliceBuffer(0)
	require.NoError(t, err)
	buf[0] = 200

	v, _ := g.VoxelAt(0, 0, 0, 0)
	assert.Equal(t, uint8(0), v)
}

// TestReplaceData verifies depth recomputation and rejection of bad slices
func TestReplaceData(t *testing.T) {
	g, err := New(2, 1, 3, 1)
	require.NoError(t, err)

	src := [][]byte{{1, 2}, {3, 4}}
	require.NoError(t, g.ReplaceData(src))
	assert.Equal(t, 2, g.Depth())
	if diff := cmp.Diff([]byte{1, 2, 3, 4}, g.Raw()); diff != "" {
		t.Errorf("arena mismatch (-want +got):\n%s", diff)
	}

	// caller keeps ownership of its slices
	src[0][0] = 100
	v, _ := g.VoxelAt(0, 0, 0, 0)
	assert.Equal(t, uint8(1), v)

	assert.ErrorIs(t, g.ReplaceData([][]byte{{1, 2}, {3}}), ErrGeometryMismatch)
	assert.ErrorIs(t, g.ReplaceData(nil), ErrEmptyGrid)
	assert.Equal(t, 2, g.Depth(), "failed replace must leave the grid untouched")
}

// TestNewRejectsBadGeometry verifies constructor validation
func TestNewRejectsBadGeometry(t *testing.T) {
	_, err := New(0, 1, 1, 1)
	assert.ErrorIs(t, err, ErrEmptyGrid)
	_, err = New(1, 1, 1, 2)
	assert.ErrorIs(t, err, ErrUnsupportedChannels)
	_, err = FromData(2, 2, 1, 1, make([]byte, 3))
	assert.ErrorIs(t, err, ErrGeometryMismatch)
}

// TestStats verifies mean and standard deviation over all samples
func TestStats(t *testing.T) {
	g, err := FromData(2, 2, 1, 1, []byte{0, 0, 10, 10})
	require.NoError(t, err)

	s := g.Stats()
	assert.InDelta(t, 5.0, s.Mean, 1e-9)
	assert.InDelta(t, 5.0, s.StdDev, 1e-9)
	assert.Equal(t, uint8(0), s.Min)
	assert.Equal(t, uint8(10), s.Max)
}

// TestSaveAsImagesRoundTrip verifies that exported slices load back identically
func TestSaveAsImagesRoundTrip(t *testing.T) {
	data := make([]byte, 4*3*12*1)
	for i := range data {
		data[i] = uint8(i * 7)
	}
	g, err := FromData(4, 3, 12, 1, data)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, g.SaveAsImages(dir))

	back, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, g.SameGeometry(back))
	if diff := cmp.Diff(g.Raw(), back.Raw()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
