package watermark

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nucleus/sync-core/internal/engine"
)

var _ engine.WatermarkStore = (*PostgresStore)(nil)

// PostgresStore keeps named watermarks in a control table, for deployments
// where runners have no durable local filesystem. Writes are atomic by
// virtue of single-statement upserts.
type PostgresStore struct {
	pool *pgxpool.Pool

	// Name distinguishes multiple replication streams sharing one table.
	Name string

	// Default is returned when no row exists or the store is unreachable.
	Default string
}

// NewPostgresStore connects and ensures the control table exists.
func NewPostgresStore(ctx context.Context, dsn, name, defaultWatermark string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect watermark store: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sync_watermarks (
			name       text PRIMARY KEY,
			last       text NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure watermark table: %w", err)
	}

	return &PostgresStore{pool: pool, Name: name, Default: defaultWatermark}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Load returns the last committed watermark for this stream, or the default
// when no row exists. Read failures are logged and fall back to the default
// rather than aborting the run.
func (s *PostgresStore) Load() string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var last string
	err := s.pool.QueryRow(ctx,
		"SELECT last FROM sync_watermarks WHERE name = $1", s.Name).Scan(&last)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("Failed to read watermark %q, using default %s: %v", s.Name, s.Default, err)
		}
		return s.Default
	}
	if last == "" {
		return s.Default
	}
	return last
}

// Save upserts the watermark row.
func (s *PostgresStore) Save(wm string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_watermarks (name, last, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET last = EXCLUDED.last, updated_at = now()`,
		s.Name, wm)
	if err != nil {
		return fmt.Errorf("save watermark %q: %w", s.Name, err)
	}
	return nil
}
