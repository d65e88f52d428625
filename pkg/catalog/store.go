// Package catalog manages the set of cities and the roads between them.
// Every Store backend also serves as the network source for routing.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"city_router/pkg/graph"
)

var (
	ErrCityNotFound       = errors.New("catalog: city not found")
	ErrDuplicateCity      = errors.New("catalog: city already exists")
	ErrMandatoryAttribute = errors.New("catalog: id and name are mandatory")
	ErrNonExistingCity    = errors.New("catalog: destination city does not exist")
	ErrInvalidDistance    = errors.New("catalog: distance must not be negative")
)

// CityInput carries a create or update request. ID and Name are required.
// Distance and ToID are optional and only take effect together.
type CityInput struct {
	ID       *int64
	Name     string
	Lat      *float64
	Lon      *float64
	Distance *int64
	ToID     *int64
}

// Validate checks mandatory attributes and the optional distance.
func (in CityInput) Validate() error {
	if in.ID == nil || in.Name == "" {
		return ErrMandatoryAttribute
	}
	if in.HasDistance() && *in.Distance < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDistance, *in.Distance)
	}
	return nil
}

// HasDistance reports whether the input also declares a road.
func (in CityInput) HasDistance() bool {
	return in.Distance != nil && in.ToID != nil
}

// Store persists the city network.
type Store interface {
	AddCity(ctx context.Context, in CityInput) (graph.CityRecord, error)
	GetCity(ctx context.Context, id int64) (graph.CityRecord, error)
	// ListCities returns every city sorted by id, roads sorted by destination.
	ListCities(ctx context.Context) ([]graph.CityRecord, error)
	CountCities(ctx context.Context) (int, error)
	UpdateCity(ctx context.Context, in CityInput) (graph.CityRecord, error)
	// AddDistance creates or overwrites the road fromID -> toID.
	AddDistance(ctx context.Context, fromID, toID, distance int64) error
	// RemoveCity deletes the city along with every road into or out of it.
	RemoveCity(ctx context.Context, id int64) error
	// Import replaces the whole network.
	Import(ctx context.Context, records []graph.CityRecord) error
}

// Normalize validates a network for Import and returns a copy sorted by id
// in which parallel roads are collapsed to the shortest one.
func Normalize(records []graph.CityRecord) ([]graph.CityRecord, error) {
	if len(records) == 0 {
		return []graph.CityRecord{}, nil
	}
	if _, err := graph.Build(records); err != nil {
		return nil, err
	}

	out := make([]graph.CityRecord, len(records))
	for i, r := range records {
		best := make(map[int64]int64, len(r.Edges))
		for _, e := range r.Edges {
			if w, ok := best[e.ToID]; !ok || e.Weight < w {
				best[e.ToID] = e.Weight
			}
		}
		edges := make([]graph.CityEdge, 0, len(best))
		for to, w := range best {
			edges = append(edges, graph.CityEdge{ToID: to, Weight: w})
		}
		sortEdges(edges)
		r.Edges = edges
		out[i] = r
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func sortEdges(edges []graph.CityEdge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].ToID < edges[j].ToID })
}
