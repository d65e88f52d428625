// Package neo4j stores the city network as (:City)-[:ROAD]->(:City) in Neo4j.
package neo4j

import (
	"context"
	"fmt"
	"sort"

	"city_router/pkg/catalog"
	"city_router/pkg/graph"
)

const (
	cypherConstraint = `CREATE CONSTRAINT city_id IF NOT EXISTS FOR (c:City) REQUIRE c.id IS UNIQUE`

	cypherCount = `MATCH (c:City {id: $id}) RETURN count(c) AS count`

	cypherCountAll = `MATCH (c:City) RETURN count(c) AS count`

	cypherCreate = `CREATE (c:City {id: $id, name: $name, lat: $lat, lon: $lon})`

	cypherUpdate = `MATCH (c:City {id: $id})
SET c.name = $name, c.lat = coalesce($lat, c.lat), c.lon = coalesce($lon, c.lon)
RETURN c.id AS id`

	cypherUpsertRoad = `MATCH (a:City {id: $from}), (b:City {id: $to})
MERGE (a)-[r:ROAD]->(b)
SET r.distance = $distance
RETURN r.distance AS distance`

	cypherDelete = `MATCH (c:City {id: $id}) DETACH DELETE c RETURN count(*) AS count`

	cypherDeleteAll = `MATCH (c:City) DETACH DELETE c`

	cypherSelect = `MATCH (c:City)%s
OPTIONAL MATCH (c)-[r:ROAD]->(d:City)
WITH c, collect(CASE WHEN d IS NULL THEN NULL ELSE {to: d.id, distance: r.distance} END) AS roads
RETURN c.id AS id, c.name AS name, c.lat AS lat, c.lon AS lon, roads
ORDER BY id`

	cypherImportCities = `UNWIND $cities AS city
CREATE (:City {id: city.id, name: city.name, lat: city.lat, lon: city.lon})`

	cypherImportRoads = `UNWIND $roads AS road
MATCH (a:City {id: road.from}), (b:City {id: road.to})
CREATE (a)-[:ROAD {distance: road.distance}]->(b)`
)

// Store implements catalog.Store over a graph Client.
type Store struct {
	client Client
}

var _ catalog.Store = (*Store)(nil)

// New creates a Store using the given client.
func New(client Client) *Store {
	return &Store{client: client}
}

// CreateConstraints ensures city ids are unique.
func (s *Store) CreateConstraints(ctx context.Context) error {
	if _, err := s.client.ExecuteWrite(ctx, cypherConstraint, nil); err != nil {
		return fmt.Errorf("neo4j: create constraint: %w", err)
	}
	return nil
}

// AddCity creates the city and its optional first road in one transaction.
func (s *Store) AddCity(ctx context.Context, in catalog.CityInput) (graph.CityRecord, error) {
	if err := in.Validate(); err != nil {
		return graph.CityRecord{}, err
	}

	c := graph.CityRecord{ID: *in.ID, Name: in.Name}
	if in.Lat != nil {
		c.Lat = *in.Lat
	}
	if in.Lon != nil {
		c.Lon = *in.Lon
	}

	err := s.client.ExecuteWriteTx(ctx, func(tx Tx) error {
		dup, err := exists(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("%w: %d", catalog.ErrDuplicateCity, c.ID)
		}
		if in.HasDistance() && *in.ToID != c.ID {
			ok, err := exists(ctx, tx, *in.ToID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %d", catalog.ErrNonExistingCity, *in.ToID)
			}
		}

		params := map[string]any{"id": c.ID, "name": c.Name, "lat": c.Lat, "lon": c.Lon}
		if _, err := tx.Run(ctx, cypherCreate, params); err != nil {
			if isConstraintViolation(err) {
				return fmt.Errorf("%w: %d", catalog.ErrDuplicateCity, c.ID)
			}
			return fmt.Errorf("neo4j: create city: %w", err)
		}
		if in.HasDistance() {
			return upsertRoad(ctx, tx, c.ID, *in.ToID, *in.Distance)
		}
		return nil
	})
	if err != nil {
		return graph.CityRecord{}, err
	}

	if in.HasDistance() {
		c.Edges = []graph.CityEdge{{ToID: *in.ToID, Weight: *in.Distance}}
	}
	return c, nil
}

func (s *Store) GetCity(ctx context.Context, id int64) (graph.CityRecord, error) {
	cities, err := s.selectCities(ctx, " WHERE c.id = $id", map[string]any{"id": id})
	if err != nil {
		return graph.CityRecord{}, err
	}
	if len(cities) == 0 {
		return graph.CityRecord{}, fmt.Errorf("%w: %d", catalog.ErrCityNotFound, id)
	}
	return cities[0], nil
}

func (s *Store) ListCities(ctx context.Context) ([]graph.CityRecord, error) {
	return s.selectCities(ctx, "", nil)
}

func (s *Store) CountCities(ctx context.Context) (int, error) {
	res, err := s.client.ExecuteRead(ctx, cypherCountAll, nil)
	if err != nil {
		return 0, fmt.Errorf("neo4j: count cities: %w", err)
	}
	n, err := countOf(res)
	if err != nil {
		return 0, fmt.Errorf("neo4j: count cities: %w", err)
	}
	return int(n), nil
}

func (s *Store) UpdateCity(ctx context.Context, in catalog.CityInput) (graph.CityRecord, error) {
	if err := in.Validate(); err != nil {
		return graph.CityRecord{}, err
	}

	params := map[string]any{"id": *in.ID, "name": in.Name, "lat": nil, "lon": nil}
	if in.Lat != nil {
		params["lat"] = *in.Lat
	}
	if in.Lon != nil {
		params["lon"] = *in.Lon
	}

	err := s.client.ExecuteWriteTx(ctx, func(tx Tx) error {
		if in.HasDistance() {
			ok, err := exists(ctx, tx, *in.ToID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %d", catalog.ErrNonExistingCity, *in.ToID)
			}
		}

		res, err := tx.Run(ctx, cypherUpdate, params)
		if err != nil {
			return fmt.Errorf("neo4j: update city: %w", err)
		}
		if len(res.Records) == 0 {
			return fmt.Errorf("%w: %d", catalog.ErrCityNotFound, *in.ID)
		}
		if in.HasDistance() {
			return upsertRoad(ctx, tx, *in.ID, *in.ToID, *in.Distance)
		}
		return nil
	})
	if err != nil {
		return graph.CityRecord{}, err
	}
	return s.GetCity(ctx, *in.ID)
}

func (s *Store) AddDistance(ctx context.Context, fromID, toID, distance int64) error {
	if distance < 0 {
		return fmt.Errorf("%w: %d", catalog.ErrInvalidDistance, distance)
	}

	return s.client.ExecuteWriteTx(ctx, func(tx Tx) error {
		ok, err := exists(ctx, tx, fromID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %d", catalog.ErrCityNotFound, fromID)
		}
		if ok, err = exists(ctx, tx, toID); err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %d", catalog.ErrNonExistingCity, toID)
		}
		return upsertRoad(ctx, tx, fromID, toID, distance)
	})
}

// RemoveCity deletes the city together with every road touching it.
func (s *Store) RemoveCity(ctx context.Context, id int64) error {
	return s.client.ExecuteWriteTx(ctx, func(tx Tx) error {
		res, err := tx.Run(ctx, cypherDelete, map[string]any{"id": id})
		if err != nil {
			return fmt.Errorf("neo4j: delete city: %w", err)
		}
		if n, _ := countOf(res); n == 0 {
			return fmt.Errorf("%w: %d", catalog.ErrCityNotFound, id)
		}
		return nil
	})
}

// Import replaces the whole network in one transaction.
func (s *Store) Import(ctx context.Context, records []graph.CityRecord) error {
	normalized, err := catalog.Normalize(records)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	cities := make([]map[string]any, 0, len(normalized))
	var roads []map[string]any
	for _, c := range normalized {
		cities = append(cities, map[string]any{"id": c.ID, "name": c.Name, "lat": c.Lat, "lon": c.Lon})
		for _, e := range c.Edges {
			roads = append(roads, map[string]any{"from": c.ID, "to": e.ToID, "distance": e.Weight})
		}
	}

	return s.client.ExecuteWriteTx(ctx, func(tx Tx) error {
		if _, err := tx.Run(ctx, cypherDeleteAll, nil); err != nil {
			return fmt.Errorf("neo4j: clear cities: %w", err)
		}
		if len(cities) == 0 {
			return nil
		}
		if _, err := tx.Run(ctx, cypherImportCities, map[string]any{"cities": cities}); err != nil {
			return fmt.Errorf("neo4j: import cities: %w", err)
		}
		if len(roads) > 0 {
			if _, err := tx.Run(ctx, cypherImportRoads, map[string]any{"roads": roads}); err != nil {
				return fmt.Errorf("neo4j: import roads: %w", err)
			}
		}
		return nil
	})
}

func exists(ctx context.Context, tx Tx, id int64) (bool, error) {
	res, err := tx.Run(ctx, cypherCount, map[string]any{"id": id})
	if err != nil {
		return false, fmt.Errorf("neo4j: lookup city %d: %w", id, err)
	}
	n, err := countOf(res)
	if err != nil {
		return false, fmt.Errorf("neo4j: lookup city %d: %w", id, err)
	}
	return n > 0, nil
}

// upsertRoad fails with ErrNonExistingCity when either endpoint is gone.
func upsertRoad(ctx context.Context, tx Tx, fromID, toID, distance int64) error {
	params := map[string]any{"from": fromID, "to": toID, "distance": distance}
	res, err := tx.Run(ctx, cypherUpsertRoad, params)
	if err != nil {
		return fmt.Errorf("neo4j: upsert road %d -> %d: %w", fromID, toID, err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("%w: %d -> %d", catalog.ErrNonExistingCity, fromID, toID)
	}
	return nil
}

func countOf(res Result) (int64, error) {
	if len(res.Records) == 0 {
		return 0, nil
	}
	return toInt64(res.Records[0]["count"])
}

func (s *Store) selectCities(ctx context.Context, where string, params map[string]any) ([]graph.CityRecord, error) {
	res, err := s.client.ExecuteRead(ctx, fmt.Sprintf(cypherSelect, where), params)
	if err != nil {
		return nil, fmt.Errorf("neo4j: select cities: %w", err)
	}

	cities := make([]graph.CityRecord, 0, len(res.Records))
	for _, rec := range res.Records {
		c, err := decodeCity(rec)
		if err != nil {
			return nil, fmt.Errorf("neo4j: decode city: %w", err)
		}
		cities = append(cities, c)
	}
	sort.Slice(cities, func(i, j int) bool { return cities[i].ID < cities[j].ID })
	return cities, nil
}

func decodeCity(rec Record) (graph.CityRecord, error) {
	var c graph.CityRecord
	var err error
	if c.ID, err = toInt64(rec["id"]); err != nil {
		return c, fmt.Errorf("id: %w", err)
	}
	c.Name, _ = rec["name"].(string)
	c.Lat, _ = rec["lat"].(float64)
	c.Lon, _ = rec["lon"].(float64)

	roads, _ := rec["roads"].([]any)
	for _, raw := range roads {
		road, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		to, err := toInt64(road["to"])
		if err != nil {
			return c, fmt.Errorf("road to: %w", err)
		}
		dist, err := toInt64(road["distance"])
		if err != nil {
			return c, fmt.Errorf("road distance: %w", err)
		}
		c.Edges = append(c.Edges, graph.CityEdge{ToID: to, Weight: dist})
	}
	sort.Slice(c.Edges, func(i, j int) bool { return c.Edges[i].ToID < c.Edges[j].ToID })
	return c, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected value %v (%T)", v, v)
	}
}
