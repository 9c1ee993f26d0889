package projection

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slicestack/pkg/volume"
)

// depthStack builds a 2x2 single-channel grid with one slice per entry of
// values; every pixel of slice z gets values[z] plus its pixel index.
func depthStack(t *testing.T, values []byte) *volume.Grid {
	t.Helper()
	data := make([]byte, 0, 4*len(values))
	for _, v := range values {
		data = append(data, v, v+1, v+2, v+3)
	}
	g, err := volume.FromData(2, 2, len(values), 1, data)
	require.NoError(t, err)
	return g
}

// TestProjectExact verifies MIP, MinIP and AIP against literal values
func TestProjectExact(t *testing.T) {
	g := depthStack(t, []byte{10, 50, 90})

	tests := []struct {
		rule Rule
		want []byte
	}{
		{Max, []byte{90, 91, 92, 93}},
		{Min, []byte{10, 11, 12, 13}},
		{Mean, []byte{50, 51, 52, 53}},
	}
	for _, tc := range tests {
		tc := tc // per-iteration copy (go 1.21 loop semantics)
		t.Run(tc.rule.String(), func(t *testing.T) {
			img, err := Project(g, tc.rule, Options{})
			require.NoError(t, err)
			assert.Equal(t, 2, img.Width)
			assert.Equal(t, 2, img.Height)
			assert.Equal(t, 1, img.Channels)
			assert.Equal(t, tc.want, img.Pix)
		})
	}
}

// TestProjectMeanTruncates verifies integer division for the average
func TestProjectMeanTruncates(t *testing.T) {
	g := depthStack(t, []byte{1, 2})
	img, err := Project(g, Mean, Options{})
	require.NoError(t, err)
	// (1+2)/2 = 1, (2+3)/2 = 2, ...
	assert.Equal(t, []byte{1, 2, 3, 4}, img.Pix)
}

// TestProjectRangeClamping verifies that out-of-range bounds equal the full range
func TestProjectRangeClamping(t *testing.T) {
	g := depthStack(t, []byte{10, 200, 30, 40, 5})

	for _, rule := range Rules {
		full, err := Project(g, rule, Options{MinZ: 1, MaxZ: g.Depth()})
		require.NoError(t, err)
		clamped, err := Project(g, rule, Options{MinZ: 0, MaxZ: g.Depth() + 10})
		require.NoError(t, err)
		def, err := Project(g, rule, Options{})
		require.NoError(t, err)

		if diff := cmp.Diff(full, clamped); diff != "" {
			t.Errorf("%s: clamped range differs (-full +clamped):\n%s", rule, diff)
		}
		if diff := cmp.Diff(full, def); diff != "" {
			t.Errorf("%s: default range differs (-full +default):\n%s", rule, diff)
		}
	}
}

// TestProjectSubRange verifies that only slices inside [MinZ, MaxZ] contribute
func TestProjectSubRange(t *testing.T) {
	g := depthStack(t, []byte{10, 200, 30, 40, 5})

	img, err := Project(g, Max, Options{MinZ: 3, MaxZ: 4})
	require.NoError(t, err)
	assert.Equal(t, []byte{40, 41, 42, 43}, img.Pix)

	img, err = Slab(g, Min, 2, 4, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{30, 31, 32, 33}, img.Pix)

	img, err = Project(g, Mean, Options{MinZ: 5, MaxZ: 5})
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6, 7, 8}, img.Pix)
}

// TestProjectEmptyRange verifies that an empty range is an error, not a fallback
func TestProjectEmptyRange(t *testing.T) {
	g := depthStack(t, []byte{1, 2, 3})

	for _, opts := range []Options{
		{MinZ: 3, MaxZ: 2},
		{MinZ: 4, MaxZ: 10},
		{MinZ: -5, MaxZ: -1},
	} {
		_, err := Project(g, Max, opts)
		assert.ErrorIs(t, err, ErrInvalidRange, "%+v", opts)
	}
	_, err := Slab(g, Max, 3, 1, false)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

// TestProjectChannels verifies per-channel reduction and the first-channel-only mode
func TestProjectChannels(t *testing.T) {
	g, err := volume.FromData(1, 1, 2, 3, []byte{
		10, 20, 30,
		40, 5, 60,
	})
	require.NoError(t, err)

	img, err := Project(g, Max, Options{})
	require.NoError(t, err)
	assert.Equal(t, []byte{40, 20, 60}, img.Pix)

	img, err = Project(g, Max, Options{FirstChannelOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []byte{40, 0, 0}, img.Pix)
}

// TestAll verifies that every rule is produced
func TestAll(t *testing.T) {
	g := depthStack(t, []byte{10, 50, 90})
	images, err := All(g, Options{})
	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, byte(90), images[Max].Pix[0])
	assert.Equal(t, byte(10), images[Min].Pix[0])
	assert.Equal(t, byte(50), images[Mean].Pix[0])

	images, err = All(g, Options{MinZ: 2}, Min)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, byte(50), images[Min].Pix[0])

	_, err = All(g, Options{MinZ: 3, MaxZ: 2}, Max, Mean)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

// TestParseRule covers the accepted spellings
func TestParseRule(t *testing.T) {
	for in, want := range map[string]Rule{
		"mip": Max, "MAX": Max, "minip": Min, "min": Min, "aip": Mean, " mean ": Mean, "avg": Mean,
	} {
		got, err := ParseRule(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseRule("median")
	assert.ErrorIs(t, err, ErrUnknownRule)

	for _, r := range Rules {
		back, err := ParseRule(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, back)
	}
}

// TestProjectEmptyGrid verifies the nil-grid guard
func TestProjectEmptyGrid(t *testing.T) {
	_, err := Project(nil, Max, Options{})
	assert.ErrorIs(t, err, volume.ErrEmptyGrid)
}
