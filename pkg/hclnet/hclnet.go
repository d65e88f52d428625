// Package hclnet reads and writes city networks declared in HCL:
//
//	city "Amsterdam" {
//	  id  = 1
//	  lat = 52.3676
//	  lon = 4.9041
//
//	  road {
//	    to       = 2
//	    distance = 57
//	  }
//	}
package hclnet

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"city_router/pkg/graph"
)

// Ext is the file extension Load looks for inside directories.
const Ext = ".hcl"

type hclNetworkFile struct {
	Cities []*hclCity `hcl:"city,block"`
}

type hclCity struct {
	Name  string     `hcl:"name,label"`
	ID    int64      `hcl:"id"`
	Lat   *float64   `hcl:"lat,optional"`
	Lon   *float64   `hcl:"lon,optional"`
	Roads []*hclRoad `hcl:"road,block"`
}

type hclRoad struct {
	To       int64 `hcl:"to"`
	Distance int64 `hcl:"distance"`
}

// Load parses every given file, and every .hcl file below every given
// directory, into city records in file order. It does not validate that
// the network builds.
func Load(paths ...string) ([]graph.CityRecord, error) {
	files, err := findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}

	parser := hclparse.NewParser()
	var records []graph.CityRecord
	for _, file := range files {
		f, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		recs, err := decode(f.Body, file)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

// Parse decodes a single in-memory network document.
func Parse(src []byte, filename string) ([]graph.CityRecord, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL %s: %w", filename, diags)
	}
	return decode(f.Body, filename)
}

func decode(body hcl.Body, filename string) ([]graph.CityRecord, error) {
	var parsed hclNetworkFile
	if diags := gohcl.DecodeBody(body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	records := make([]graph.CityRecord, 0, len(parsed.Cities))
	for _, c := range parsed.Cities {
		rec := graph.CityRecord{ID: c.ID, Name: c.Name}
		if c.Lat != nil {
			rec.Lat = *c.Lat
		}
		if c.Lon != nil {
			rec.Lon = *c.Lon
		}
		for _, r := range c.Roads {
			rec.Edges = append(rec.Edges, graph.CityEdge{ToID: r.To, Weight: r.Distance})
		}
		records = append(records, rec)
	}
	return records, nil
}

// Encode renders records as an HCL network document that Parse reads back.
func Encode(records []graph.CityRecord) []byte {
	f := hclwrite.NewEmptyFile()
	root := f.Body()
	for i, rec := range records {
		if i > 0 {
			root.AppendNewline()
		}
		block := root.AppendNewBlock("city", []string{rec.Name})
		body := block.Body()
		body.SetAttributeValue("id", cty.NumberIntVal(rec.ID))
		if rec.Lat != 0 || rec.Lon != 0 {
			body.SetAttributeValue("lat", cty.NumberFloatVal(rec.Lat))
			body.SetAttributeValue("lon", cty.NumberFloatVal(rec.Lon))
		}
		for _, e := range rec.Edges {
			body.AppendNewline()
			road := body.AppendNewBlock("road", nil).Body()
			road.SetAttributeValue("to", cty.NumberIntVal(e.ToID))
			road.SetAttributeValue("distance", cty.NumberIntVal(e.Weight))
		}
	}
	return f.Bytes()
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl files found.
func findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	add := func(p string) {
		if _, ok := seen[p]; !ok {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			add(path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(p) == Ext {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return allFiles, nil
}
