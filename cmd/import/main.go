package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"city_router/pkg/config"
	"city_router/pkg/graph"
	"city_router/pkg/hclnet"
	"city_router/pkg/logging"
	osmparser "city_router/pkg/osm"
)

func main() {
	input := flag.String("input", "", "Path to .osm.pbf file")
	output := flag.String("output", "network.bin", "Output file: snapshot, or .hcl for a network document")
	bbox := flag.String("bbox", "", "Bounding box filter: minLat,minLng,maxLat,maxLng (e.g. 51.8,4.3,52.5,5.2)")
	keepAll := flag.Bool("keep-all", false, "Keep every component instead of only the largest")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging, os.Stderr)

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: import --input <file.osm.pbf> [--output network.bin|network.hcl] [--bbox minLat,minLng,maxLat,maxLng] [--keep-all]")
		os.Exit(1)
	}

	opts := osmparser.ParseOptions{Logger: logger}
	if *bbox != "" {
		var minLat, minLng, maxLat, maxLng float64
		if _, err := fmt.Sscanf(*bbox, "%f,%f,%f,%f", &minLat, &minLng, &maxLat, &maxLng); err != nil {
			logger.Error("invalid bbox format (expected minLat,minLng,maxLat,maxLng)", "error", err)
			os.Exit(1)
		}
		opts.BBox = osmparser.BBox{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
		logger.Info("using bounding box filter", "lat", [2]float64{minLat, maxLat}, "lng", [2]float64{minLng, maxLng})
	}

	start := time.Now()

	// Step 1: Parse OSM data.
	f, err := os.Open(*input)
	if err != nil {
		logger.Error("failed to open input file", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	res, err := osmparser.Parse(context.Background(), f, opts)
	if err != nil {
		logger.Error("failed to parse OSM data", "error", err)
		os.Exit(1)
	}
	records := res.Records
	if len(records) == 0 {
		logger.Error("no drivable roads found")
		os.Exit(1)
	}

	// Step 2: Build graph to validate and measure connectivity.
	g, err := graph.Build(records)
	if err != nil {
		logger.Error("failed to build graph", "error", err)
		os.Exit(1)
	}
	stats := graph.Components(g)
	logger.Info("graph built", "cities", g.NumNodes, "roads", g.NumEdges, "components", stats.Count)

	// Step 3: Extract largest connected component.
	if !*keepAll && stats.Count > 1 {
		keep := graph.LargestComponent(g)
		records = graph.FilterRecords(records, keep)
		logger.Info("kept largest component",
			"cities", len(keep),
			"percent", fmt.Sprintf("%.1f", float64(len(keep))/float64(g.NumNodes)*100),
		)
	}

	// Step 4: Write output.
	if filepath.Ext(*output) == hclnet.Ext {
		err = os.WriteFile(*output, hclnet.Encode(records), 0o644)
	} else {
		err = graph.WriteSnapshot(*output, records)
	}
	if err != nil {
		logger.Error("failed to write output", "path", *output, "error", err)
		os.Exit(1)
	}

	info, _ := os.Stat(*output)
	logger.Info("done",
		"elapsed", time.Since(start).Round(time.Millisecond),
		"output", *output,
		"mb", fmt.Sprintf("%.1f", float64(info.Size())/(1024*1024)),
	)
}
