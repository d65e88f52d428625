package osm

import (
	"testing"

	"github.com/paulmach/osm"

	"city_router/pkg/graph"
)

func TestIsCarAccessible(t *testing.T) {
	tests := []struct {
		name string
		tags osm.Tags
		want bool
	}{
		{
			name: "residential road",
			tags: osm.Tags{{Key: "highway", Value: "residential"}},
			want: true,
		},
		{
			name: "motorway",
			tags: osm.Tags{{Key: "highway", Value: "motorway"}},
			want: true,
		},
		{
			name: "footway (not car accessible)",
			tags: osm.Tags{{Key: "highway", Value: "footway"}},
			want: false,
		},
		{
			name: "cycleway",
			tags: osm.Tags{{Key: "highway", Value: "cycleway"}},
			want: false,
		},
		{
			name: "private access",
			tags: osm.Tags{
				{Key: "highway", Value: "residential"},
				{Key: "access", Value: "private"},
			},
			want: false,
		},
		{
			name: "no access",
			tags: osm.Tags{
				{Key: "highway", Value: "residential"},
				{Key: "access", Value: "no"},
			},
			want: false,
		},
		{
			name: "motor_vehicle=no",
			tags: osm.Tags{
				{Key: "highway", Value: "residential"},
				{Key: "motor_vehicle", Value: "no"},
			},
			want: false,
		},
		{
			name: "area=yes (pedestrian plaza)",
			tags: osm.Tags{
				{Key: "highway", Value: "service"},
				{Key: "area", Value: "yes"},
			},
			want: false,
		},
		{
			name: "service road",
			tags: osm.Tags{{Key: "highway", Value: "service"}},
			want: true,
		},
		{
			name: "living_street",
			tags: osm.Tags{{Key: "highway", Value: "living_street"}},
			want: true,
		},
		{
			name: "no highway tag",
			tags: osm.Tags{{Key: "name", Value: "Some Street"}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isCarAccessible(tt.tags)
			if got != tt.want {
				t.Errorf("isCarAccessible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDirectionFlags(t *testing.T) {
	tests := []struct {
		name        string
		tags        osm.Tags
		wantForward bool
		wantBackward bool
	}{
		{
			name:        "default bidirectional",
			tags:        osm.Tags{{Key: "highway", Value: "residential"}},
			wantForward: true,
			wantBackward: true,
		},
		{
			name:        "motorway implied oneway",
			tags:        osm.Tags{{Key: "highway", Value: "motorway"}},
			wantForward: true,
			wantBackward: false,
		},
		{
			name:        "motorway_link implied oneway",
			tags:        osm.Tags{{Key: "highway", Value: "motorway_link"}},
			wantForward: true,
			wantBackward: false,
		},
		{
			name:        "roundabout implied oneway",
			tags:        osm.Tags{
				{Key: "highway", Value: "residential"},
				{Key: "junction", Value: "roundabout"},
			},
			wantForward: true,
			wantBackward: false,
		},
		{
			name:        "explicit oneway=yes",
			tags:        osm.Tags{
				{Key: "highway", Value: "primary"},
				{Key: "oneway", Value: "yes"},
			},
			wantForward: true,
			wantBackward: false,
		},
		{
			name:        "explicit oneway=true",
			tags:        osm.Tags{
				{Key: "highway", Value: "primary"},
				{Key: "oneway", Value: "true"},
			},
			wantForward: true,
			wantBackward: false,
		},
		{
			name:        "explicit oneway=1",
			tags:        osm.Tags{
				{Key: "highway", Value: "primary"},
				{Key: "oneway", Value: "1"},
			},
			wantForward: true,
			wantBackward: false,
		},
		{
			name:        "explicit oneway=-1 (reverse)",
			tags:        osm.Tags{
				{Key: "highway", Value: "primary"},
				{Key: "oneway", Value: "-1"},
			},
			wantForward: false,
			wantBackward: true,
		},
		{
			name:        "explicit oneway=reverse",
			tags:        osm.Tags{
				{Key: "highway", Value: "primary"},
				{Key: "oneway", Value: "reverse"},
			},
			wantForward: false,
			wantBackward: true,
		},
		{
			name:        "explicit oneway=no overrides implied",
			tags:        osm.Tags{
				{Key: "highway", Value: "motorway"},
				{Key: "oneway", Value: "no"},
			},
			wantForward: true,
			wantBackward: true,
		},
		{
			name:        "oneway=reversible skips entirely",
			tags:        osm.Tags{
				{Key: "highway", Value: "primary"},
				{Key: "oneway", Value: "reversible"},
			},
			wantForward: false,
			wantBackward: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fwd, bwd := directionFlags(tt.tags)
			if fwd != tt.wantForward || bwd != tt.wantBackward {
				t.Errorf("directionFlags() = (%v, %v), want (%v, %v)", fwd, bwd, tt.wantForward, tt.wantBackward)
			}
		})
	}
}

// line returns five nodes ~111 m apart heading north; node 3 is named.
func line() map[osm.NodeID]nodeInfo {
	nodes := make(map[osm.NodeID]nodeInfo)
	for i := osm.NodeID(1); i <= 5; i++ {
		nodes[i] = nodeInfo{Lat: 1.299 + float64(i)*0.001, Lon: 103.8}
	}
	n := nodes[3]
	n.Name = "Main Square"
	nodes[3] = n
	return nodes
}

func testWays() ([]wayInfo, map[osm.NodeID]int) {
	ways := []wayInfo{
		{NodeIDs: []osm.NodeID{1, 2, 3}, Forward: true, Backward: true},
		{NodeIDs: []osm.NodeID{3, 4, 5}, Forward: true},
	}
	refs := map[osm.NodeID]int{1: 1, 2: 1, 3: 2, 4: 1, 5: 1}
	return ways, refs
}

func edgeTargets(rec graph.CityRecord) []int64 {
	var out []int64
	for _, e := range rec.Edges {
		out = append(out, e.ToID)
	}
	return out
}

func TestBuildRecordsCollapsesToJunctions(t *testing.T) {
	ways, refs := testWays()
	res := buildRecords(ways, refs, line(), BBox{})

	if len(res.Records) != 3 {
		t.Fatalf("got %d records, want 3 (nodes 1, 3, 5)", len(res.Records))
	}
	wantIDs := []int64{1, 3, 5}
	for i, rec := range res.Records {
		if rec.ID != wantIDs[i] {
			t.Errorf("record %d id = %d, want %d", i, rec.ID, wantIDs[i])
		}
	}

	if res.Records[0].Name != "node/1" || res.Records[1].Name != "Main Square" {
		t.Errorf("names = %q, %q", res.Records[0].Name, res.Records[1].Name)
	}

	from1 := res.Records[0]
	if len(from1.Edges) != 1 || from1.Edges[0].ToID != 3 {
		t.Fatalf("edges from 1 = %+v, want one edge to 3", from1.Edges)
	}
	if w := from1.Edges[0].Weight; w < 220 || w > 225 {
		t.Errorf("1->3 weight = %d m, want ~222", w)
	}

	// Two-way road back to 1, one-way road on to 5.
	got := edgeTargets(res.Records[1])
	if len(got) != 2 || got[0] != 1 || got[1] != 5 {
		t.Errorf("edges from 3 go to %v, want [1 5]", got)
	}
	if len(res.Records[2].Edges) != 0 {
		t.Errorf("one-way road must not lead back from 5: %+v", res.Records[2].Edges)
	}

	if _, err := graph.Build(res.Records); err != nil {
		t.Errorf("parsed network does not build: %v", err)
	}
}

func TestBuildRecordsBBox(t *testing.T) {
	ways, refs := testWays()
	nodes := line()
	bbox := BBox{MinLat: 1.2995, MaxLat: 1.3025, MinLng: 103.7, MaxLng: 103.9}
	n := nodes[5]
	n.Lat = 1.3025 - 0.0001 // pull 5 back inside; 4 stays outside
	nodes[5] = n

	res := buildRecords(ways, refs, nodes, bbox)

	if res.BBoxFiltered != 1 {
		t.Errorf("BBoxFiltered = %d, want 1", res.BBoxFiltered)
	}
	if len(res.Records) != 2 || res.Records[0].ID != 1 || res.Records[1].ID != 3 {
		t.Fatalf("records = %+v, want nodes 1 and 3", res.Records)
	}
	if got := edgeTargets(res.Records[1]); len(got) != 1 || got[0] != 1 {
		t.Errorf("edges from 3 go to %v, want [1]", got)
	}
}

func TestBuildRecordsMissingCoordinates(t *testing.T) {
	ways, refs := testWays()
	nodes := line()
	delete(nodes, 2)

	res := buildRecords(ways, refs, nodes, BBox{})

	if res.SkippedNodes != 1 {
		t.Errorf("SkippedNodes = %d, want 1", res.SkippedNodes)
	}
	if len(res.Records) != 2 || res.Records[0].ID != 3 || res.Records[1].ID != 5 {
		t.Fatalf("records = %+v, want nodes 3 and 5", res.Records)
	}
}

func TestBBox(t *testing.T) {
	if !(BBox{}).IsZero() {
		t.Error("zero BBox should report IsZero")
	}
	b := BBox{MinLat: 1, MaxLat: 2, MinLng: 3, MaxLng: 4}
	if b.IsZero() || !b.Contains(1.5, 3.5) || b.Contains(0.5, 3.5) || b.Contains(1.5, 4.5) {
		t.Error("BBox.Contains gave wrong answer")
	}
}
