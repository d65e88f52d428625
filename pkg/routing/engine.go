package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"city_router/pkg/graph"
)

var (
	// ErrNoRoute is returned when no route exists between the two cities.
	ErrNoRoute = errors.New("no route found")
	// ErrDestinationNotFound is returned when the target city is unknown.
	ErrDestinationNotFound = errors.New("routing: destination city not found")
)

// CityLister supplies the full city network for one computation.
type CityLister interface {
	ListCities(ctx context.Context) ([]graph.CityRecord, error)
}

// Destination is the solved state of one city relative to a source.
// Path holds the ids from the source up to, but excluding, the city.
type Destination struct {
	ID        int64
	Name      string
	Distance  int64
	Reachable bool
	Path      []int64
}

// RouteTable is the result of a single-source computation.
type RouteTable struct {
	SourceID     int64
	Destinations []Destination // sorted by city id
}

// Stats describes the current city network.
type Stats struct {
	Cities           uint32
	Roads            uint32
	Components       int
	LargestComponent uint32
}

// Router is the interface for route queries.
type Router interface {
	Route(ctx context.Context, fromID, toID int64) (*Destination, error)
	RoutesFrom(ctx context.Context, sourceID int64) (*RouteTable, error)
	Stats(ctx context.Context) (Stats, error)
}

// Engine implements Router by building a fresh graph from the catalog for
// every query. It holds no per-query state and is safe for concurrent use.
type Engine struct {
	cities CityLister
	logger *slog.Logger
}

// NewEngine creates a routing engine reading cities from the given lister.
func NewEngine(cities CityLister, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cities: cities, logger: logger}
}

// Route computes the shortest route between two cities.
func (e *Engine) Route(ctx context.Context, fromID, toID int64) (*Destination, error) {
	g, records, err := e.solve(ctx, fromID)
	if err != nil {
		return nil, err
	}

	idx, ok := g.IndexOf(toID)
	if !ok {
		return nil, fmt.Errorf("%w: city %d", ErrDestinationNotFound, toID)
	}
	dest := destination(g, records, idx)
	if !dest.Reachable {
		return nil, ErrNoRoute
	}
	return &dest, nil
}

// RoutesFrom computes the distance and path from sourceID to every city.
// Unreachable cities are reported with Reachable=false.
func (e *Engine) RoutesFrom(ctx context.Context, sourceID int64) (*RouteTable, error) {
	g, records, err := e.solve(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	table := &RouteTable{
		SourceID:     sourceID,
		Destinations: make([]Destination, g.NumNodes),
	}
	for i := uint32(0); i < g.NumNodes; i++ {
		table.Destinations[i] = destination(g, records, i)
	}
	sort.Slice(table.Destinations, func(i, j int) bool {
		return table.Destinations[i].ID < table.Destinations[j].ID
	})
	return table, nil
}

// Stats reports the size and connectivity of the current network.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	records, err := e.cities.ListCities(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list cities: %w", err)
	}
	if len(records) == 0 {
		return Stats{}, nil
	}
	g, err := graph.Build(records)
	if err != nil {
		return Stats{}, fmt.Errorf("build graph: %w", err)
	}
	comp := graph.Components(g)
	return Stats{
		Cities:           g.NumNodes,
		Roads:            g.NumEdges,
		Components:       comp.Count,
		LargestComponent: comp.Largest,
	}, nil
}

// solve lists the network, builds a private graph and runs Solve on it.
// Graph arena order matches records order.
func (e *Engine) solve(ctx context.Context, sourceID int64) (*graph.Graph, []graph.CityRecord, error) {
	start := time.Now()

	records, err := e.cities.ListCities(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list cities: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	g, err := graph.Build(records)
	if err != nil {
		return nil, nil, fmt.Errorf("build graph: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	if _, err := Solve(g, sourceID); err != nil {
		return nil, nil, err
	}

	e.logger.Debug("shortest paths computed",
		"source", sourceID,
		"cities", g.NumNodes,
		"roads", g.NumEdges,
		"duration", time.Since(start),
	)
	return g, records, nil
}

func destination(g *graph.Graph, records []graph.CityRecord, idx uint32) Destination {
	n := &g.Nodes[idx]
	return Destination{
		ID:        n.ID,
		Name:      records[idx].Name,
		Distance:  n.Distance,
		Reachable: n.Reachable(),
		Path:      n.ShortestPath,
	}
}
