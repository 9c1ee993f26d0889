package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"slicestack/internal/logging"
	"slicestack/pkg/config"
	"slicestack/pkg/processing"
	"slicestack/pkg/rest"
	"slicestack/pkg/volume"
)

// intList parses a comma-separated list of integers such as "138,275"
func intList(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid index %q: %w", part, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "YAML configuration file (flags override its values)")
	initConfig := flag.String("init-config", "", "Write a default configuration file to this path and exit")
	inputDir := flag.String("input", "", "Directory containing the 2D slice images")
	outputDir := flag.String("output", "", "Directory for generated images")
	filterType := flag.String("filter", "", "Filter to apply: none, gaussian, median, truemedian")
	kernelSize := flag.Int("kernel", 0, "Filter kernel size")
	sigma := flag.Float64("sigma", 0, "Gaussian sigma in voxels")
	rules := flag.String("rules", "", "Comma-separated projection rules: mip, minip, aip")
	minZ := flag.Int("minz", 0, "First slice of the projection range, 1-based")
	maxZ := flag.Int("maxz", 0, "Last slice of the projection range, 1-based (0 = last slice)")
	xz := flag.String("xz", "", "Comma-separated 1-based y indices of XZ slices to extract")
	yz := flag.String("yz", "", "Comma-separated 1-based x indices of YZ slices to extract")
	sequence := flag.String("sequence", "", "Comma-separated axes (x, y, z) along which every plane is saved")
	post := flag.String("post", "", "Comma-separated 2-D operators applied to every output image, e.g. gaussian:5,sobel")
	workers := flag.Int("workers", 0, "Number of workers (default: physical cores)")
	saveVolume := flag.Bool("save-volume", false, "Save every slice of the processed volume")
	serve := flag.Bool("serve", false, "Serve projections and slices over HTTP instead of writing files")
	addr := flag.String("addr", "", "Listen address for -serve")
	logFile := flag.String("log", "", "Also write log output to this file")
	quiet := flag.Bool("quiet", false, "Suppress progress output")
	flag.Parse()

	if *initConfig != "" {
		if err := config.CreateDefaultConfigFile(*initConfig); err != nil {
			logging.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *initConfig)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if *logFile != "" {
		if err := logging.AlsoToFile(*logFile); err != nil {
			logging.Fatalf("%v", err)
		}
		defer logging.Close()
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			logging.Fatalf("Failed to load configuration: %v", err)
		}
	}

	// Command line flags win over the configuration file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			cfg.Output.Dir = *outputDir
		case "filter":
			cfg.Filter.Type = *filterType
		case "kernel":
			cfg.Filter.KernelSize = *kernelSize
		case "sigma":
			cfg.Filter.Sigma = *sigma
		case "rules":
			cfg.Projection.Rules = strings.Split(*rules, ",")
		case "minz":
			cfg.Projection.MinZ = *minZ
		case "maxz":
			cfg.Projection.MaxZ = *maxZ
		case "sequence":
			cfg.Slices.Sequence = strings.Split(*sequence, ",")
		case "post":
			cfg.Output.Postprocess = strings.Split(*post, ",")
		case "workers":
			cfg.Processing.NumWorkers = *workers
		case "save-volume":
			cfg.Output.SaveVolume = *saveVolume
		case "addr":
			cfg.Server.Addr = *addr
		case "quiet":
			cfg.Output.Verbose = !*quiet
		}
	})
	var err error
	if *xz != "" {
		if cfg.Slices.XZ, err = intList(*xz); err != nil {
			logging.Fatalf("%v", err)
		}
	}
	if *yz != "" {
		if cfg.Slices.YZ, err = intList(*yz); err != nil {
			logging.Fatalf("%v", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("%v", err)
	}
	if !cfg.Output.Verbose {
		logging.SetLogger(nil)
	}

	if *serve {
		grid, err := volume.LoadWithOptions(*inputDir, volume.LoadOptions{Workers: cfg.Processing.NumWorkers})
		if err != nil {
			logging.Fatalf("Failed to load volume: %v", err)
		}
		if err := rest.NewServer(grid, cfg.Processing.NumWorkers).Serve(cfg.Server.Addr); err != nil {
			logging.Fatalf("Server failed: %v", err)
		}
		return
	}

	params, err := processing.ParamsFromConfig(cfg, *inputDir)
	if err != nil {
		logging.Fatalf("%v", err)
	}

	processor := processing.NewProcessor(params)

	logging.Logf("Processing %s with %d workers...", *inputDir, cfg.Processing.NumWorkers)
	startTime := time.Now()
	if err := processor.Process(); err != nil {
		logging.Fatalf("Processing failed: %v", err)
	}
	processingTime := time.Since(startTime)

	res := processor.Result()
	logging.Logf("Completed in %.2f seconds, %d output(s) in %s",
		processingTime.Seconds(), len(res.Outputs), params.OutputDir)
}
