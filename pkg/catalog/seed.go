package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"city_router/pkg/graph"
	"city_router/pkg/hclnet"
)

// LoadNetwork reads a city network from a snapshot file, an .hcl file, or a
// directory of .hcl files.
func LoadNetwork(path string) ([]graph.CityRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load network: %w", err)
	}
	if info.IsDir() || filepath.Ext(path) == hclnet.Ext {
		return hclnet.Load(path)
	}
	return graph.ReadSnapshot(path)
}

// Seed replaces the contents of store with the network found at path and
// returns the number of cities imported.
func Seed(ctx context.Context, store Store, path string) (int, error) {
	records, err := LoadNetwork(path)
	if err != nil {
		return 0, err
	}
	if err := store.Import(ctx, records); err != nil {
		return 0, fmt.Errorf("seed %s: %w", path, err)
	}
	return len(records), nil
}
