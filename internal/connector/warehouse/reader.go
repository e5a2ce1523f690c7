// Package warehouse implements the change reader over the analytical SQL
// warehouse.
//
// The reader is read-only and idempotent: the same cursor and limit return
// the same page assuming no intervening source mutation. Retry policy lives
// in the target transport layer only; a query failure here is surfaced as
// E_SOURCE_UNAVAILABLE and is fatal for the run.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nucleus/sync-core/internal/engine"
)

var _ engine.ChangeReader = (*Reader)(nil)

// Config holds warehouse connection configuration.
type Config struct {
	// Driver is the database/sql driver name ("postgres" or "pgx").
	Driver string

	// DSN is the driver connection string.
	DSN string

	// Table is the fully qualified change table, e.g. "crm_ds.customers".
	Table string
}

// Reader fetches change records ordered by change time.
type Reader struct {
	cfg *Config
	db  *sql.DB
}

// NewReader opens a warehouse connection for the given configuration.
func NewReader(cfg *Config) (*Reader, error) {
	if cfg == nil || cfg.DSN == "" {
		return nil, fmt.Errorf("warehouse DSN is required")
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("warehouse table is required")
	}
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}

	// Configure pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Reader{cfg: cfg, db: db}, nil
}

// Close releases database resources.
func (r *Reader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping tests the warehouse connection.
func (r *Reader) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.db.PingContext(ctx); err != nil {
		return engine.NewError(engine.CodeSourceUnavailable, err)
	}
	return nil
}

// FetchChangedSince returns at most limit records with change time strictly
// greater than cursor, ordered ascending by change time. The cursor is bound
// as a typed timestamp parameter.
func (r *Reader) FetchChangedSince(ctx context.Context, cursor time.Time, limit int) ([]engine.ChangeRecord, error) {
	query := fmt.Sprintf(`
		SELECT externalid, name, email, phone, changed_at
		FROM %s
		WHERE changed_at > $1
		ORDER BY changed_at
		LIMIT $2
	`, r.cfg.Table)

	rows, err := r.db.QueryContext(ctx, query, cursor, limit)
	if err != nil {
		return nil, engine.NewError(engine.CodeSourceUnavailable, fmt.Errorf("change query failed: %w", err))
	}
	defer rows.Close()

	var records []engine.ChangeRecord
	for rows.Next() {
		var rec engine.ChangeRecord
		var externalID, name, email, phone sql.NullString
		if err := rows.Scan(&externalID, &name, &email, &phone, &rec.ChangedAt); err != nil {
			return nil, engine.NewError(engine.CodeSourceUnavailable, fmt.Errorf("scan failed: %w", err))
		}
		rec.ExternalID = externalID.String
		rec.Name = name.String
		rec.Email = email.String
		rec.Phone = phone.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, engine.NewError(engine.CodeSourceUnavailable, err)
	}

	return records, nil
}
