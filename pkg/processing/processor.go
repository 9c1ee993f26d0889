// Package processing runs the one-shot batch job over a slice stack: load the
// volume, apply at most one filter, then write projections, thin slabs and
// orthogonal cross-sections as images.
package processing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pbnjay/memory"

	"slicestack/internal/logging"
	"slicestack/internal/models"
	"slicestack/pkg/config"
	"slicestack/pkg/filter"
	"slicestack/pkg/filter2d"
	"slicestack/pkg/imageio"
	"slicestack/pkg/projection"
	"slicestack/pkg/visualization"
	"slicestack/pkg/volume"
)

// ErrUnknownFilter is returned for filter types other than those in pkg/config
var ErrUnknownFilter = errors.New("unknown filter type")

// FilterParams selects the single filter applied before rendering
type FilterParams struct {
	// Type is config.FilterNone, FilterGaussian, FilterMedian or FilterTrueMedian
	Type string

	// KernelSize is the cube side of the neighborhood
	KernelSize int

	// Sigma is only used by the Gaussian filter
	Sigma float64
}

// Enabled reports whether a filter other than none is selected
func (f FilterParams) Enabled() bool {
	return f.Type != "" && f.Type != config.FilterNone
}

// Tag names the filter in output files: "nofilter" or "<type>_<k>x<k>x<k>"
func (f FilterParams) Tag() string {
	if !f.Enabled() {
		return "nofilter"
	}
	k := f.KernelSize
	return fmt.Sprintf("%s_%dx%dx%d", f.Type, k, k, k)
}

// Params holds the batch job parameters
type Params struct {
	// InputDir contains the 2-D slice images, ordered by file name
	InputDir string

	// OutputDir receives every generated image
	OutputDir string

	// Workers bounds concurrent decoding and filter planes
	Workers int

	// MemoryWarnFraction triggers a warning when filtering needs more than
	// this share of physical memory; 0 disables the check
	MemoryWarnFraction float64

	Filter FilterParams

	// Rules to render over [MinZ, MaxZ]; MaxZ 0 means the whole depth
	Rules            []projection.Rule
	MinZ, MaxZ       int
	FirstChannelOnly bool

	// Slabs are extra thin-slab projections, rendered with every rule
	Slabs []config.SlabRange

	// SlicesXZ and SlicesYZ are 1-based y and x plane indices
	SlicesXZ []int
	SlicesYZ []int

	// Sequences lists axes along which every plane is saved
	Sequences []models.Axis

	// Postprocess runs on every projection, slab and cross-section before saving
	Postprocess filter2d.Chain

	// Format is the output file extension, ".png" when empty
	Format string

	// SaveVolume writes the processed volume as one image per depth slice
	SaveVolume bool

	// Colormap, when set, adds a false-color copy of single-channel projections
	Colormap *imageio.Colormap
}

// ParamsFromConfig builds job parameters from a validated configuration
func ParamsFromConfig(cfg *config.Config, inputDir string) (*Params, error) {
	p := &Params{
		InputDir:           inputDir,
		OutputDir:          cfg.Output.Dir,
		Workers:            cfg.Processing.NumWorkers,
		MemoryWarnFraction: cfg.Processing.MemoryWarnFraction,
		Filter: FilterParams{
			Type:       strings.ToLower(cfg.Filter.Type),
			KernelSize: cfg.Filter.KernelSize,
			Sigma:      cfg.Filter.Sigma,
		},
		MinZ:             cfg.Projection.MinZ,
		MaxZ:             cfg.Projection.MaxZ,
		FirstChannelOnly: cfg.Projection.FirstChannelOnly,
		Slabs:            cfg.Projection.Slabs,
		SlicesXZ:         cfg.Slices.XZ,
		SlicesYZ:         cfg.Slices.YZ,
		Format:           cfg.Output.Format,
		SaveVolume:       cfg.Output.SaveVolume,
	}
	for _, name := range cfg.Slices.Sequence {
		axis, err := visualization.ParseAxis(name)
		if err != nil {
			return nil, err
		}
		p.Sequences = append(p.Sequences, axis)
	}
	chain, err := filter2d.ParseChain(cfg.Output.Postprocess)
	if err != nil {
		return nil, err
	}
	p.Postprocess = chain
	for _, name := range cfg.Projection.Rules {
		rule, err := projection.ParseRule(name)
		if err != nil {
			return nil, err
		}
		p.Rules = append(p.Rules, rule)
	}
	if cfg.Output.Colormap.From != "" && cfg.Output.Colormap.To != "" {
		cm, err := imageio.ParseColormap(cfg.Output.Colormap.From, cfg.Output.Colormap.To)
		if err != nil {
			return nil, err
		}
		p.Colormap = &cm
	}
	return p, nil
}

// Result summarizes a finished batch job
type Result struct {
	// Grid is the processed (possibly filtered) volume
	Grid *volume.Grid

	// Stats of the volume as loaded
	Stats volume.Stats

	// Metrics compares the filtered with the loaded volume; nil without a filter
	Metrics *FilterMetrics

	// FilterDuration is the wall time of the filter step
	FilterDuration time.Duration

	// Outputs lists every written file in order
	Outputs []string
}

// Processor runs the batch pipeline:
// 1. Loading the slice stack into a volume
// 2. Applying the configured filter, if any
// 3. Rendering projections over the configured depth range
// 4. Rendering thin-slab projections
// 5. Extracting XZ and YZ cross-sections and full slice sequences
// 6. Optionally exporting the processed volume slice by slice
type Processor struct {
	params *Params
	result Result
}

// NewProcessor creates a processor for params
func NewProcessor(params *Params) *Processor {
	return &Processor{params: params}
}

// Result returns the outcome of the last Process call
func (p *Processor) Result() Result {
	return p.result
}

// Process runs the complete pipeline
func (p *Processor) Process() error {
	p.result = Result{}
	if err := os.MkdirAll(p.params.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Step 1: Load the volume
	logging.Logf("Step 1: Loading slices from %s...", p.params.InputDir)
	grid, err := volume.LoadWithOptions(p.params.InputDir, volume.LoadOptions{Workers: p.params.Workers})
	if err != nil {
		return fmt.Errorf("failed to load volume: %w", err)
	}
	p.result.Stats = grid.Stats()
	logging.Logf("Loaded volume %s (mean %.2f, stddev %.2f, range %d..%d)",
		grid, p.result.Stats.Mean, p.result.Stats.StdDev, p.result.Stats.Min, p.result.Stats.Max)

	// Step 2: Filter
	if p.params.Filter.Enabled() {
		logging.Logf("Step 2: Applying %s filter...", p.params.Filter.Tag())
		p.checkMemory(grid)

		start := time.Now()
		filtered, err := ApplyFilter(grid, p.params.Filter, p.params.Workers)
		if err != nil {
			return fmt.Errorf("failed to filter volume: %w", err)
		}
		p.result.FilterDuration = time.Since(start)
		logging.Logf("Filter %s took %v", p.params.Filter.Tag(), p.result.FilterDuration)

		m := CompareGrids(grid, filtered)
		p.result.Metrics = &m
		logging.Logf("Filter metrics: MI %.3f, entropy diff %.3f, RMSE %.4f, SSIM %.3f",
			m.MI, m.EntropyDiff, m.RMSE, m.SSIM)
		grid = filtered
	}
	p.result.Grid = grid

	// Step 3: Projections
	logging.Logf("Step 3: Rendering projections...")
	opts := projection.Options{MinZ: p.params.MinZ, MaxZ: p.params.MaxZ, FirstChannelOnly: p.params.FirstChannelOnly}
	if len(p.params.Rules) > 0 {
		images, err := projection.All(grid, opts, p.params.Rules...)
		if err != nil {
			return fmt.Errorf("failed to render projections: %w", err)
		}
		for _, rule := range p.params.Rules {
			if err := p.save(images[rule], fmt.Sprintf("%s_%s", rule, p.params.Filter.Tag())); err != nil {
				return err
			}
		}
	}

	// Step 4: Thin slabs
	if len(p.params.Slabs) > 0 {
		logging.Logf("Step 4: Rendering %d slab(s)...", len(p.params.Slabs))
	}
	for _, slab := range p.params.Slabs {
		for _, rule := range p.params.Rules {
			img, err := projection.Slab(grid, rule, slab.Start, slab.End, p.params.FirstChannelOnly)
			if err != nil {
				return fmt.Errorf("failed to render %s slab %d..%d: %w", rule, slab.Start, slab.End, err)
			}
			if err := p.save(img, fmt.Sprintf("%s_slab_%d_%d", rule, slab.Start, slab.End)); err != nil {
				return err
			}
		}
	}

	// Step 5: Cross-sections
	if len(p.params.SlicesXZ)+len(p.params.SlicesYZ)+len(p.params.Sequences) > 0 {
		logging.Logf("Step 5: Extracting cross-sections...")
	}
	viewer := visualization.NewViewer(grid)
	for _, y := range p.params.SlicesXZ {
		img, err := viewer.ExtractSlice(models.AxisY, y)
		if err != nil {
			return fmt.Errorf("failed to extract XZ slice: %w", err)
		}
		if err := p.save(img, fmt.Sprintf("slice_xz_y%d", y)); err != nil {
			return err
		}
	}
	for _, x := range p.params.SlicesYZ {
		img, err := viewer.ExtractSlice(models.AxisX, x)
		if err != nil {
			return fmt.Errorf("failed to extract YZ slice: %w", err)
		}
		if err := p.save(img, fmt.Sprintf("slice_yz_x%d", x)); err != nil {
			return err
		}
	}

	for _, axis := range p.params.Sequences {
		dir := filepath.Join(p.params.OutputDir, "sequence_"+string(axis))
		n, _ := viewer.AxisLength(axis)
		logging.Logf("Saving %d %s planes to %s...", n, axis, dir)
		if err := viewer.SaveSliceSequence(axis, dir); err != nil {
			return fmt.Errorf("failed to save %s sequence: %w", axis, err)
		}
		p.result.Outputs = append(p.result.Outputs, dir)
	}

	// Step 6: Volume export
	if p.params.SaveVolume {
		dir := filepath.Join(p.params.OutputDir, "volume")
		logging.Logf("Step 6: Saving %d volume slices to %s...", grid.Depth(), dir)
		if err := grid.SaveAsImages(dir); err != nil {
			return fmt.Errorf("failed to save volume: %w", err)
		}
		p.result.Outputs = append(p.result.Outputs, dir)
	}

	return nil
}

// save post-processes img, writes it as <name><format> and, with a colormap,
// adds a false-color copy
func (p *Processor) save(img *models.Image, name string) error {
	img, err := p.params.Postprocess.Apply(img)
	if err != nil {
		return fmt.Errorf("failed to post-process %s: %w", name, err)
	}
	ext := p.params.Format
	if ext == "" {
		ext = ".png"
	}
	path := filepath.Join(p.params.OutputDir, name+ext)
	if err := imageio.EncodeFile(path, img); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	p.result.Outputs = append(p.result.Outputs, path)
	logging.Logf("Saved %s", path)

	if p.params.Colormap != nil && img.Channels == 1 {
		path = filepath.Join(p.params.OutputDir, name+"_color"+ext)
		if err := imageio.EncodeFile(path, imageio.Colorize(img, *p.params.Colormap)); err != nil {
			return fmt.Errorf("failed to save %s: %w", path, err)
		}
		p.result.Outputs = append(p.result.Outputs, path)
	}
	return nil
}

// checkMemory warns when a filter run, which holds input and output at
// once, needs more than the configured share of physical memory
func (p *Processor) checkMemory(g *volume.Grid) {
	if p.params.MemoryWarnFraction <= 0 {
		return
	}
	total := memory.TotalMemory()
	if total == 0 {
		return
	}
	need := 2 * uint64(g.Len())
	if float64(need) > p.params.MemoryWarnFraction*float64(total) {
		logging.Logf("Warning: filtering needs about %d MB, more than %.0f%% of %d MB physical memory",
			need>>20, 100*p.params.MemoryWarnFraction, total>>20)
	}
}

// ApplyFilter runs the filter named by f on g and returns a new grid.
// With no filter selected it returns g itself.
func ApplyFilter(g *volume.Grid, f FilterParams, workers int) (*volume.Grid, error) {
	opt := filter.WithWorkers(workers)
	switch f.Type {
	case "", config.FilterNone:
		return g, nil
	case config.FilterGaussian:
		return filter.GaussianBlur(g, f.KernelSize, f.Sigma, opt)
	case config.FilterMedian:
		return filter.MedianBlur(g, f.KernelSize, opt)
	case config.FilterTrueMedian:
		return filter.TrueMedianBlur(g, f.KernelSize, opt)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, f.Type)
}
