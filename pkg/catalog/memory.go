package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"city_router/pkg/graph"
)

// Memory is a mutex-guarded in-process Store.
type Memory struct {
	mu     sync.RWMutex
	cities map[int64]*graph.CityRecord
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{cities: make(map[int64]*graph.CityRecord)}
}

func (m *Memory) AddCity(_ context.Context, in CityInput) (graph.CityRecord, error) {
	if err := in.Validate(); err != nil {
		return graph.CityRecord{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cities[*in.ID]; ok {
		return graph.CityRecord{}, fmt.Errorf("%w: %d", ErrDuplicateCity, *in.ID)
	}
	if in.HasDistance() {
		if _, ok := m.cities[*in.ToID]; !ok && *in.ToID != *in.ID {
			return graph.CityRecord{}, fmt.Errorf("%w: %d", ErrNonExistingCity, *in.ToID)
		}
	}

	c := &graph.CityRecord{ID: *in.ID, Name: in.Name}
	applyCoordinates(c, in)
	m.cities[c.ID] = c
	if in.HasDistance() {
		upsertEdge(c, *in.ToID, *in.Distance)
	}
	return clone(c), nil
}

func (m *Memory) GetCity(_ context.Context, id int64) (graph.CityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.cities[id]
	if !ok {
		return graph.CityRecord{}, fmt.Errorf("%w: %d", ErrCityNotFound, id)
	}
	return clone(c), nil
}

func (m *Memory) ListCities(_ context.Context) ([]graph.CityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]graph.CityRecord, 0, len(m.cities))
	for _, c := range m.cities {
		out = append(out, clone(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CountCities(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cities), nil
}

func (m *Memory) UpdateCity(_ context.Context, in CityInput) (graph.CityRecord, error) {
	if err := in.Validate(); err != nil {
		return graph.CityRecord{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cities[*in.ID]
	if !ok {
		return graph.CityRecord{}, fmt.Errorf("%w: %d", ErrCityNotFound, *in.ID)
	}
	if in.HasDistance() {
		if _, ok := m.cities[*in.ToID]; !ok {
			return graph.CityRecord{}, fmt.Errorf("%w: %d", ErrNonExistingCity, *in.ToID)
		}
	}

	c.Name = in.Name
	applyCoordinates(c, in)
	if in.HasDistance() {
		upsertEdge(c, *in.ToID, *in.Distance)
	}
	return clone(c), nil
}

func (m *Memory) AddDistance(_ context.Context, fromID, toID, distance int64) error {
	if distance < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDistance, distance)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	from, ok := m.cities[fromID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrCityNotFound, fromID)
	}
	if _, ok := m.cities[toID]; !ok {
		return fmt.Errorf("%w: %d", ErrNonExistingCity, toID)
	}
	upsertEdge(from, toID, distance)
	return nil
}

func (m *Memory) RemoveCity(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cities[id]; !ok {
		return fmt.Errorf("%w: %d", ErrCityNotFound, id)
	}
	delete(m.cities, id)

	for _, c := range m.cities {
		kept := c.Edges[:0]
		for _, e := range c.Edges {
			if e.ToID != id {
				kept = append(kept, e)
			}
		}
		c.Edges = kept
	}
	return nil
}

func (m *Memory) Import(_ context.Context, records []graph.CityRecord) error {
	normalized, err := Normalize(records)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	cities := make(map[int64]*graph.CityRecord, len(normalized))
	for i := range normalized {
		cities[normalized[i].ID] = &normalized[i]
	}

	m.mu.Lock()
	m.cities = cities
	m.mu.Unlock()
	return nil
}

func applyCoordinates(c *graph.CityRecord, in CityInput) {
	if in.Lat != nil {
		c.Lat = *in.Lat
	}
	if in.Lon != nil {
		c.Lon = *in.Lon
	}
}

// upsertEdge keeps edges sorted by destination.
func upsertEdge(c *graph.CityRecord, toID, distance int64) {
	i := sort.Search(len(c.Edges), func(i int) bool { return c.Edges[i].ToID >= toID })
	if i < len(c.Edges) && c.Edges[i].ToID == toID {
		c.Edges[i].Weight = distance
		return
	}
	c.Edges = append(c.Edges, graph.CityEdge{})
	copy(c.Edges[i+1:], c.Edges[i:])
	c.Edges[i] = graph.CityEdge{ToID: toID, Weight: distance}
}

func clone(c *graph.CityRecord) graph.CityRecord {
	out := *c
	out.Edges = append([]graph.CityEdge(nil), c.Edges...)
	return out
}
