package warehouse

// The pgx stdlib adapter registers itself under the driver name "pgx",
// selectable via SYNC_SOURCE_DRIVER for warehouses that need pgx-specific
// wire behavior (e.g. prepared statement caching).
import (
	_ "github.com/jackc/pgx/v5/stdlib"
)
