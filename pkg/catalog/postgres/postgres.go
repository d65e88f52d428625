// Package postgres implements catalog.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"city_router/pkg/catalog"
	"city_router/pkg/graph"
)

const uniqueViolation = "23505"

// Store implements catalog.Store using a pgx connection pool.
type Store struct {
	db *pgxpool.Pool
}

var _ catalog.Store = (*Store)(nil)

// New creates a Store backed by the given pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Open connects to databaseURL and pings it.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("catalog: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	return pool, nil
}

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

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return graph.CityRecord{}, fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO cities (id, name, lat, lon) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.Lat, c.Lon,
	); err != nil {
		if isUniqueViolation(err) {
			return graph.CityRecord{}, fmt.Errorf("%w: %d", catalog.ErrDuplicateCity, c.ID)
		}
		return graph.CityRecord{}, fmt.Errorf("catalog: insert city: %w", err)
	}

	if in.HasDistance() {
		ok, err := cityExists(ctx, tx, *in.ToID)
		if err != nil {
			return graph.CityRecord{}, err
		}
		if !ok {
			return graph.CityRecord{}, fmt.Errorf("%w: %d", catalog.ErrNonExistingCity, *in.ToID)
		}
		if err := upsertRoad(ctx, tx, c.ID, *in.ToID, *in.Distance); err != nil {
			return graph.CityRecord{}, err
		}
		c.Edges = []graph.CityEdge{{ToID: *in.ToID, Weight: *in.Distance}}
	}

	if err := tx.Commit(ctx); err != nil {
		return graph.CityRecord{}, fmt.Errorf("catalog: commit: %w", err)
	}
	return c, nil
}

func (s *Store) GetCity(ctx context.Context, id int64) (graph.CityRecord, error) {
	var c graph.CityRecord
	err := s.db.QueryRow(ctx,
		`SELECT id, name, lat, lon FROM cities WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Lat, &c.Lon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return graph.CityRecord{}, fmt.Errorf("%w: %d", catalog.ErrCityNotFound, id)
		}
		return graph.CityRecord{}, fmt.Errorf("catalog: get city: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT to_id, distance FROM roads WHERE from_id = $1 ORDER BY to_id`, id)
	if err != nil {
		return graph.CityRecord{}, fmt.Errorf("catalog: list roads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e graph.CityEdge
		if err := rows.Scan(&e.ToID, &e.Weight); err != nil {
			return graph.CityRecord{}, fmt.Errorf("catalog: scan road: %w", err)
		}
		c.Edges = append(c.Edges, e)
	}
	if err := rows.Err(); err != nil {
		return graph.CityRecord{}, fmt.Errorf("catalog: rows roads: %w", err)
	}
	return c, nil
}

// ListCities reads cities and roads from one read-only snapshot, so every
// listed road points at a listed city.
func (s *Store) ListCities(ctx context.Context) ([]graph.CityRecord, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT id, name, lat, lon FROM cities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list cities: %w", err)
	}
	cities, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (graph.CityRecord, error) {
		var c graph.CityRecord
		err := row.Scan(&c.ID, &c.Name, &c.Lat, &c.Lon)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: scan city: %w", err)
	}

	index := make(map[int64]int, len(cities))
	for i, c := range cities {
		index[c.ID] = i
	}

	rows, err = tx.Query(ctx, `SELECT from_id, to_id, distance FROM roads ORDER BY from_id, to_id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list roads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var from int64
		var e graph.CityEdge
		if err := rows.Scan(&from, &e.ToID, &e.Weight); err != nil {
			return nil, fmt.Errorf("catalog: scan road: %w", err)
		}
		if i, ok := index[from]; ok {
			cities[i].Edges = append(cities[i].Edges, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: rows roads: %w", err)
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("catalog: commit: %w", err)
	}
	return cities, nil
}

func (s *Store) CountCities(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM cities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog: count cities: %w", err)
	}
	return n, nil
}

func (s *Store) UpdateCity(ctx context.Context, in catalog.CityInput) (graph.CityRecord, error) {
	if err := in.Validate(); err != nil {
		return graph.CityRecord{}, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return graph.CityRecord{}, fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`UPDATE cities SET name = $2, lat = COALESCE($3, lat), lon = COALESCE($4, lon) WHERE id = $1`,
		*in.ID, in.Name, in.Lat, in.Lon,
	)
	if err != nil {
		return graph.CityRecord{}, fmt.Errorf("catalog: update city: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return graph.CityRecord{}, fmt.Errorf("%w: %d", catalog.ErrCityNotFound, *in.ID)
	}

	if in.HasDistance() {
		ok, err := cityExists(ctx, tx, *in.ToID)
		if err != nil {
			return graph.CityRecord{}, err
		}
		if !ok {
			return graph.CityRecord{}, fmt.Errorf("%w: %d", catalog.ErrNonExistingCity, *in.ToID)
		}
		if err := upsertRoad(ctx, tx, *in.ID, *in.ToID, *in.Distance); err != nil {
			return graph.CityRecord{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return graph.CityRecord{}, fmt.Errorf("catalog: commit: %w", err)
	}
	return s.GetCity(ctx, *in.ID)
}

func (s *Store) AddDistance(ctx context.Context, fromID, toID, distance int64) error {
	if distance < 0 {
		return fmt.Errorf("%w: %d", catalog.ErrInvalidDistance, distance)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ok, err := cityExists(ctx, tx, fromID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", catalog.ErrCityNotFound, fromID)
	}
	if ok, err = cityExists(ctx, tx, toID); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", catalog.ErrNonExistingCity, toID)
	}
	if err := upsertRoad(ctx, tx, fromID, toID, distance); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RemoveCity deletes a city. Its roads are cascade-deleted by the DB.
func (s *Store) RemoveCity(ctx context.Context, id int64) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM cities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete city: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", catalog.ErrCityNotFound, id)
	}
	return nil
}

// Import replaces every city and road in one transaction using COPY.
func (s *Store) Import(ctx context.Context, records []graph.CityRecord) error {
	normalized, err := catalog.Normalize(records)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM roads`); err != nil {
		return fmt.Errorf("catalog: delete roads: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cities`); err != nil {
		return fmt.Errorf("catalog: delete cities: %w", err)
	}

	cityRows := make([][]any, 0, len(normalized))
	var roadRows [][]any
	for _, c := range normalized {
		cityRows = append(cityRows, []any{c.ID, c.Name, c.Lat, c.Lon})
		for _, e := range c.Edges {
			roadRows = append(roadRows, []any{c.ID, e.ToID, e.Weight})
		}
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"cities"},
		[]string{"id", "name", "lat", "lon"}, pgx.CopyFromRows(cityRows)); err != nil {
		return fmt.Errorf("catalog: copy cities: %w", err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"roads"},
		[]string{"from_id", "to_id", "distance"}, pgx.CopyFromRows(roadRows)); err != nil {
		return fmt.Errorf("catalog: copy roads: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("catalog: commit: %w", err)
	}
	return nil
}

func cityExists(ctx context.Context, tx pgx.Tx, id int64) (bool, error) {
	var ok bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cities WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("catalog: lookup city %d: %w", id, err)
	}
	return ok, nil
}

func upsertRoad(ctx context.Context, tx pgx.Tx, fromID, toID, distance int64) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO roads (from_id, to_id, distance) VALUES ($1, $2, $3)
		 ON CONFLICT (from_id, to_id) DO UPDATE SET distance = EXCLUDED.distance`,
		fromID, toID, distance,
	)
	if err != nil {
		return fmt.Errorf("catalog: upsert road %d -> %d: %w", fromID, toID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
