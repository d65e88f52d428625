package graph

import (
	"errors"
	"testing"
)

// abcd is A(0) -5-> B(1) -3-> C(2), A -10-> C, plus isolated D(3).
func abcd() []CityRecord {
	return []CityRecord{
		{ID: 0, Name: "A", Edges: []CityEdge{{ToID: 1, Weight: 5}, {ToID: 2, Weight: 10}}},
		{ID: 1, Name: "B", Edges: []CityEdge{{ToID: 2, Weight: 3}}},
		{ID: 2, Name: "C"},
		{ID: 3, Name: "D"},
	}
}

func TestBuildSimpleGraph(t *testing.T) {
	g, err := Build(abcd())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if g.NumNodes != 4 {
		t.Fatalf("NumNodes = %d, want 4", g.NumNodes)
	}
	if g.NumEdges != 3 {
		t.Fatalf("NumEdges = %d, want 3", g.NumEdges)
	}

	wantOut := map[int64]uint32{0: 2, 1: 1, 2: 0, 3: 0}
	for id, want := range wantOut {
		idx, ok := g.IndexOf(id)
		if !ok {
			t.Fatalf("city %d missing", id)
		}
		start, end := g.EdgesFrom(idx)
		if end-start != want {
			t.Errorf("city %d has %d edges, want %d", id, end-start, want)
		}
	}

	var totalWeight int64
	for _, w := range g.Weight {
		totalWeight += w
	}
	if totalWeight != 18 {
		t.Errorf("total weight = %d, want 18", totalWeight)
	}
}

func TestBuildInitialState(t *testing.T) {
	g, err := Build(abcd())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, n := range g.Nodes {
		if n.Distance != Infinity {
			t.Errorf("city %d distance = %d, want Infinity", n.ID, n.Distance)
		}
		if len(n.ShortestPath) != 0 {
			t.Errorf("city %d path = %v, want empty", n.ID, n.ShortestPath)
		}
	}
	if g.Node(3) == nil {
		t.Error("isolated city 3 should still be a node")
	}
	if g.Node(42) != nil {
		t.Error("Node(42) should be nil")
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		records []CityRecord
		want    error
	}{
		{
			name:    "empty input",
			records: nil,
			want:    ErrEmptyNetwork,
		},
		{
			name: "duplicate id",
			records: []CityRecord{
				{ID: 1, Name: "A"},
				{ID: 1, Name: "A again"},
			},
			want: ErrDuplicateNode,
		},
		{
			name: "unknown destination",
			records: []CityRecord{
				{ID: 1, Name: "A", Edges: []CityEdge{{ToID: 9, Weight: 1}}},
			},
			want: ErrUnresolvedDestination,
		},
		{
			name: "negative weight",
			records: []CityRecord{
				{ID: 1, Name: "A", Edges: []CityEdge{{ToID: 2, Weight: -4}}},
				{ID: 2, Name: "B"},
			},
			want: ErrDataIntegrity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Build(tt.records)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if g != nil {
				t.Errorf("expected no graph on error, got %d nodes", g.NumNodes)
			}
		})
	}
}

func TestBuildForwardReference(t *testing.T) {
	// Destinations may appear later in the batch than their source.
	g, err := Build([]CityRecord{
		{ID: 7, Name: "X", Edges: []CityEdge{{ToID: 8, Weight: 0}}},
		{ID: 8, Name: "Y"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.NumEdges != 1 {
		t.Errorf("NumEdges = %d, want 1", g.NumEdges)
	}
}

func TestBuildCSRInvariants(t *testing.T) {
	// Star graph: center -> A, center -> B, center -> C, A -> center.
	g, err := Build([]CityRecord{
		{ID: 10, Edges: []CityEdge{{ToID: 40, Weight: 300}, {ToID: 20, Weight: 100}, {ToID: 30, Weight: 200}}},
		{ID: 20, Edges: []CityEdge{{ToID: 10, Weight: 100}}},
		{ID: 30},
		{ID: 40},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for i := uint32(1); i <= g.NumNodes; i++ {
		if g.FirstOut[i] < g.FirstOut[i-1] {
			t.Errorf("FirstOut[%d]=%d < FirstOut[%d]=%d, not monotonic", i, g.FirstOut[i], i-1, g.FirstOut[i-1])
		}
	}
	if g.FirstOut[g.NumNodes] != g.NumEdges {
		t.Errorf("FirstOut[%d]=%d != NumEdges=%d", g.NumNodes, g.FirstOut[g.NumNodes], g.NumEdges)
	}
	for i, h := range g.Head {
		if h >= g.NumNodes {
			t.Errorf("Head[%d]=%d >= NumNodes=%d", i, h, g.NumNodes)
		}
	}

	// Edges of a node are sorted by target index.
	start, end := g.EdgesFrom(0)
	for e := start + 1; e < end; e++ {
		if g.Head[e] < g.Head[e-1] {
			t.Errorf("edges from node 0 not sorted: %v", g.Head[start:end])
		}
	}
}

func TestReset(t *testing.T) {
	g, err := Build(abcd())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	g.Nodes[1].Distance = 5
	g.Nodes[1].ShortestPath = []int64{0}

	g.Reset()

	if g.Nodes[1].Distance != Infinity || g.Nodes[1].ShortestPath != nil {
		t.Errorf("node not reset: %+v", g.Nodes[1])
	}
	if g.Nodes[1].Reachable() {
		t.Error("reset node should not be reachable")
	}
}
