package graph

import "math"

// Infinity is the distance of a node not (yet) reached from the source.
const Infinity = int64(math.MaxInt64)

// CityEdge is a directed connection to another city.
type CityEdge struct {
	ToID   int64
	Weight int64
}

// CityRecord is one city as supplied by the catalog: its identifier, display
// name, optional coordinates and outgoing connections.
type CityRecord struct {
	ID    int64
	Name  string
	Lat   float64
	Lon   float64
	Edges []CityEdge
}

// Node is a graph vertex holding the per-source solver state.
// ShortestPath lists the ids of the predecessor chain from the source,
// excluding the node itself.
type Node struct {
	ID           int64
	Distance     int64
	ShortestPath []int64
}

// Reachable reports whether the solver found a path to n.
func (n *Node) Reachable() bool {
	return n.Distance != Infinity
}

// Graph is a directed weighted graph in CSR (Compressed Sparse Row) format.
// Nodes are stored in an arena and referenced by their dense index.
type Graph struct {
	NumNodes uint32
	NumEdges uint32
	Nodes    []Node   // len: NumNodes
	FirstOut []uint32 // len: NumNodes + 1; FirstOut[i]..FirstOut[i+1] are edges from node i
	Head     []uint32 // len: NumEdges; target node index for each edge
	Weight   []int64  // len: NumEdges

	index map[int64]uint32
}

// EdgesFrom returns the range of edge indices for edges originating from node u.
func (g *Graph) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// IndexOf returns the arena index of the node with the given city id.
func (g *Graph) IndexOf(id int64) (uint32, bool) {
	idx, ok := g.index[id]
	return idx, ok
}

// Node returns the node with the given city id, or nil.
func (g *Graph) Node(id int64) *Node {
	idx, ok := g.index[id]
	if !ok {
		return nil
	}
	return &g.Nodes[idx]
}

// Reset puts every node back into the unsolved state.
func (g *Graph) Reset() {
	for i := range g.Nodes {
		g.Nodes[i].Distance = Infinity
		g.Nodes[i].ShortestPath = nil
	}
}
