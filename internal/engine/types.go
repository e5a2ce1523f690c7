package engine

import (
	"context"
	"time"
)

// ChangeRecord is one source-side entity snapshot. It is constructed once at
// the read boundary and is immutable afterwards.
type ChangeRecord struct {
	ExternalID string
	Name       string
	Email      string
	Phone      string
	ChangedAt  time.Time
}

// UpsertOperation addresses one target resource by alternate key and carries
// the field-value payload to PATCH onto it.
type UpsertOperation struct {
	// Path is the resource path relative to the service root,
	// e.g. new_customers(externalid='CUST001').
	Path string

	// Body is the JSON field-value payload.
	Body map[string]any
}

// ChangeReader fetches records changed strictly after cursor, ordered by
// change time ascending, at most limit records.
type ChangeReader interface {
	FetchChangedSince(ctx context.Context, cursor time.Time, limit int) ([]ChangeRecord, error)
}

// RowMapper converts one change record into an upsert operation.
type RowMapper interface {
	Map(record ChangeRecord) (UpsertOperation, error)
}

// BatchSender posts one atomic batch of upsert operations to the target.
// The batch either fully succeeds or the sender returns an error.
type BatchSender interface {
	SendBatch(ctx context.Context, ops []UpsertOperation) error
}

// WatermarkStore persists the replication cursor between runs.
type WatermarkStore interface {
	// Load returns the last committed watermark, or a configured default if
	// none exists. Corrupt state must not be fatal.
	Load() string

	// Save durably replaces the watermark. The write must be atomic: a crash
	// mid-save never leaves a truncated value visible to the next Load.
	Save(watermark string) error
}
