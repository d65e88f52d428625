package routing

import (
	"errors"
	"fmt"

	"city_router/pkg/graph"
)

var (
	// ErrSourceNotFound is returned when the source id has no node in the graph.
	ErrSourceNotFound = errors.New("routing: source city not found")
	// ErrNilGraph is returned when Solve is called without a graph.
	ErrNilGraph = errors.New("routing: nil graph")
)

// Solve runs single-source Dijkstra from sourceID over g. It resets and then
// fills every node's Distance and ShortestPath in place, returning g.
// Nodes not reachable from the source keep graph.Infinity and an empty path.
//
// The unsettled set is a binary heap with lazy deletion: a node may be pushed
// several times and stale entries are skipped when popped.
func Solve(g *graph.Graph, sourceID int64) (*graph.Graph, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	source, ok := g.IndexOf(sourceID)
	if !ok {
		return nil, fmt.Errorf("%w: city %d", ErrSourceNotFound, sourceID)
	}

	g.Reset()
	g.Nodes[source].Distance = 0

	settled := make([]bool, g.NumNodes)
	var unsettled MinHeap
	unsettled.Push(source, 0)

	for unsettled.Len() > 0 {
		item := unsettled.Pop()
		u := item.Node
		if settled[u] || item.Dist > g.Nodes[u].Distance {
			continue // stale entry
		}
		current := &g.Nodes[u]

		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Head[e]
			if settled[v] {
				continue
			}
			newDist := addDistance(current.Distance, g.Weight[e])
			adjacent := &g.Nodes[v]
			if newDist < adjacent.Distance {
				adjacent.Distance = newDist
				adjacent.ShortestPath = extendPath(current.ShortestPath, current.ID)
				unsettled.Push(v, newDist)
			}
		}
		settled[u] = true
	}

	return g, nil
}

// addDistance adds an edge weight to a finite distance, saturating at Infinity.
func addDistance(d, w int64) int64 {
	if w > graph.Infinity-d {
		return graph.Infinity
	}
	return d + w
}

// extendPath returns a fresh copy of path with id appended.
func extendPath(path []int64, id int64) []int64 {
	out := make([]int64, len(path)+1)
	copy(out, path)
	out[len(path)] = id
	return out
}
