package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cities (
    id         BIGINT PRIMARY KEY,
    name       TEXT NOT NULL,
    lat        DOUBLE PRECISION NOT NULL DEFAULT 0,
    lon        DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS roads (
    from_id  BIGINT NOT NULL REFERENCES cities(id) ON DELETE CASCADE,
    to_id    BIGINT NOT NULL REFERENCES cities(id) ON DELETE CASCADE,
    distance BIGINT NOT NULL CHECK (distance >= 0),
    PRIMARY KEY (from_id, to_id)
);

CREATE INDEX IF NOT EXISTS idx_roads_to ON roads(to_id);
`

// CreateSchema creates the cities and roads tables if they don't exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the roads and cities tables.
func (s *Store) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS roads, cities CASCADE;`)
	return err
}
