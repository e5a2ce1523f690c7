package warehouse

import (
	"context"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresVersion returns the server version string, best effort. Useful for
// connection validation diagnostics.
func (r *Reader) PostgresVersion(ctx context.Context) string {
	var version string
	r.db.QueryRowContext(ctx, "SELECT version()").Scan(&version)
	return version
}
