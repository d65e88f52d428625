package osm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"city_router/pkg/geo"
	"city_router/pkg/graph"
)

// ParseResult holds the network extracted from an OSM PBF file.
// Records are sorted by OSM node id.
type ParseResult struct {
	Records      []graph.CityRecord
	Ways         int
	SkippedNodes int // way nodes lacking coordinates
	BBoxFiltered int // way nodes outside the bounding box
}

// carHighways lists highway tag values accessible by car.
var carHighways = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"living_street":  true,
	"service":        true,
}

// isCarAccessible returns true if the way is drivable by car.
func isCarAccessible(tags osm.Tags) bool {
	if !carHighways[tags.Find("highway")] {
		return false
	}
	if tags.Find("area") == "yes" {
		return false
	}
	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	return tags.Find("motor_vehicle") != "no"
}

// directionFlags returns (forward, backward) based on highway type and oneway tags.
func directionFlags(tags osm.Tags) (forward, backward bool) {
	forward, backward = true, true

	hw := tags.Find("highway")
	if hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout" {
		backward = false
	}

	switch tags.Find("oneway") {
	case "yes", "true", "1":
		forward, backward = true, false
	case "-1", "reverse":
		forward, backward = false, true
	case "no":
		forward, backward = true, true
	case "reversible":
		// Time-dependent, skip entirely.
		forward, backward = false, false
	}
	return forward, backward
}

// wayInfo holds parsed way data collected during Pass 1.
type wayInfo struct {
	NodeIDs  []osm.NodeID
	Forward  bool
	Backward bool
}

// nodeInfo holds what Pass 2 keeps of a referenced node.
type nodeInfo struct {
	Lat, Lon float64
	Name     string
}

// BBox defines a geographic bounding box for filtering.
// If non-zero, only road stretches inside the box are kept.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// IsZero returns true if the bbox is unset.
func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

// Contains returns true if the point is inside the bounding box.
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// ParseOptions configures the OSM parser.
type ParseOptions struct {
	BBox   BBox // if non-zero, filter roads to this bounding box
	Logger *slog.Logger
}

// Parse reads an OSM PBF file and returns the drivable road network as city
// records. Every junction (a way endpoint or a node shared by several ways)
// becomes a city; the road between two consecutive junctions of a way
// becomes an edge weighted by its length in meters.
//
// The reader is consumed twice (seeks back to start for the second pass),
// so it must implement io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, opts ...ParseOptions) (*ParseResult, error) {
	var opt ParseOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Pass 1: Scan ways to collect referenced node IDs and way info.
	refs := make(map[osm.NodeID]int)
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok || !isCarAccessible(w.Tags) || len(w.Nodes) < 2 {
			continue
		}

		fwd, bwd := directionFlags(w.Tags)
		if !fwd && !bwd {
			continue
		}

		nodeIDs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			nodeIDs[i] = wn.ID
			refs[wn.ID]++
		}
		ways = append(ways, wayInfo{NodeIDs: nodeIDs, Forward: fwd, Backward: bwd})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()

	logger.Info("pass 1 complete", "ways", len(ways), "referenced_nodes", len(refs))

	// Pass 2: Scan nodes to collect coordinates for referenced nodes only.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}

	nodes := make(map[osm.NodeID]nodeInfo, len(refs))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := refs[n.ID]; !needed {
			continue
		}
		nodes[n.ID] = nodeInfo{Lat: n.Lat, Lon: n.Lon, Name: n.Tags.Find("name")}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()

	logger.Info("pass 2 complete", "coordinates", len(nodes))

	res := buildRecords(ways, refs, nodes, opt.BBox)

	if res.SkippedNodes > 0 {
		logger.Warn("skipped way nodes without coordinates", "nodes", res.SkippedNodes)
	}
	if res.BBoxFiltered > 0 {
		logger.Info("filtered way nodes outside bounding box", "nodes", res.BBoxFiltered)
	}
	logger.Info("built road network", "cities", len(res.Records))
	return res, nil
}

// buildRecords collapses every way into junction-to-junction roads.
func buildRecords(ways []wayInfo, refs map[osm.NodeID]int, nodes map[osm.NodeID]nodeInfo, bbox BBox) *ParseResult {
	useBBox := !bbox.IsZero()
	res := &ParseResult{Ways: len(ways)}

	inside := func(id osm.NodeID) (nodeInfo, bool) {
		n, ok := nodes[id]
		if !ok {
			return n, false
		}
		return n, !useBBox || bbox.Contains(n.Lat, n.Lon)
	}

	// Junctions: way endpoints, shared nodes, and nodes next to a gap.
	junction := make(map[osm.NodeID]bool)
	for _, w := range ways {
		last := len(w.NodeIDs) - 1
		for i, id := range w.NodeIDs {
			if i == 0 || i == last || refs[id] > 1 {
				junction[id] = true
				continue
			}
			if _, ok := inside(w.NodeIDs[i-1]); !ok {
				junction[id] = true
			} else if _, ok := inside(w.NodeIDs[i+1]); !ok {
				junction[id] = true
			}
		}
	}

	edges := make(map[osm.NodeID][]graph.CityEdge)
	used := make(map[osm.NodeID]bool)
	emit := func(from, to osm.NodeID, meters float64) {
		weight := int64(math.Round(meters))
		if weight < 1 {
			weight = 1
		}
		edges[from] = append(edges[from], graph.CityEdge{ToID: int64(to), Weight: weight})
		used[from], used[to] = true, true
	}

	for _, w := range ways {
		start := -1
		var meters float64
		for i, id := range w.NodeIDs {
			n, ok := inside(id)
			if !ok {
				if _, has := nodes[id]; !has {
					res.SkippedNodes++
				} else {
					res.BBoxFiltered++
				}
				start = -1
				continue
			}
			if start >= 0 {
				prev := nodes[w.NodeIDs[i-1]]
				meters += geo.Haversine(prev.Lat, prev.Lon, n.Lat, n.Lon)
			}
			if !junction[id] {
				continue
			}
			if start >= 0 && w.NodeIDs[start] != id {
				from := w.NodeIDs[start]
				if w.Forward {
					emit(from, id, meters)
				}
				if w.Backward {
					emit(id, from, meters)
				}
			}
			start, meters = i, 0
		}
	}

	ids := make([]osm.NodeID, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	res.Records = make([]graph.CityRecord, len(ids))
	for i, id := range ids {
		n := nodes[id]
		name := n.Name
		if name == "" {
			name = fmt.Sprintf("node/%d", id)
		}
		res.Records[i] = graph.CityRecord{
			ID:    int64(id),
			Name:  name,
			Lat:   n.Lat,
			Lon:   n.Lon,
			Edges: edges[id],
		}
	}
	return res
}
