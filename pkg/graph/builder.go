package graph

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEmptyNetwork is returned when Build receives no records.
	ErrEmptyNetwork = errors.New("graph: no city records")
	// ErrDuplicateNode is returned when two records share an id.
	ErrDuplicateNode = errors.New("graph: duplicate node")
	// ErrUnresolvedDestination is returned when an edge points at an id
	// missing from the input batch.
	ErrUnresolvedDestination = errors.New("graph: unresolved destination")
	// ErrDataIntegrity is returned for negative edge weights.
	ErrDataIntegrity = errors.New("graph: data integrity violation")
)

// Build creates a CSR Graph from city records. Every record becomes exactly
// one node; every edge must point at a record of the same batch and carry a
// non-negative weight. No graph is returned on error.
func Build(records []CityRecord) (*Graph, error) {
	if len(records) == 0 {
		return nil, ErrEmptyNetwork
	}

	// Step 1: Assign dense indices in input order.
	index := make(map[int64]uint32, len(records))
	for i, rec := range records {
		if _, dup := index[rec.ID]; dup {
			return nil, fmt.Errorf("%w: city %d", ErrDuplicateNode, rec.ID)
		}
		index[rec.ID] = uint32(i)
	}

	numNodes := uint32(len(records))

	// Step 2: Resolve edges against the batch.
	type compactEdge struct {
		from   uint32
		to     uint32
		weight int64
	}

	var compact []compactEdge
	for i, rec := range records {
		for _, e := range rec.Edges {
			to, ok := index[e.ToID]
			if !ok {
				return nil, fmt.Errorf("%w: city %d -> %d", ErrUnresolvedDestination, rec.ID, e.ToID)
			}
			if e.Weight < 0 {
				return nil, fmt.Errorf("%w: negative weight %d on %d -> %d", ErrDataIntegrity, e.Weight, rec.ID, e.ToID)
			}
			compact = append(compact, compactEdge{from: uint32(i), to: to, weight: e.Weight})
		}
	}

	// Step 3: Sort edges by source node. Stable keeps parallel edges in input order.
	sort.SliceStable(compact, func(i, j int) bool {
		if compact[i].from != compact[j].from {
			return compact[i].from < compact[j].from
		}
		return compact[i].to < compact[j].to
	})

	// Step 4: Build CSR arrays.
	numEdges := uint32(len(compact))
	firstOut := make([]uint32, numNodes+1)
	head := make([]uint32, numEdges)
	weight := make([]int64, numEdges)

	for i, e := range compact {
		head[i] = e.to
		weight[i] = e.weight
		firstOut[e.from+1]++
	}
	for i := uint32(1); i <= numNodes; i++ {
		firstOut[i] += firstOut[i-1]
	}

	// Step 5: Nodes start unsolved.
	nodes := make([]Node, numNodes)
	for i, rec := range records {
		nodes[i] = Node{ID: rec.ID, Distance: Infinity}
	}

	return &Graph{
		NumNodes: numNodes,
		NumEdges: numEdges,
		Nodes:    nodes,
		FirstOut: firstOut,
		Head:     head,
		Weight:   weight,
		index:    index,
	}, nil
}
