package warehouse

import "database/sql"

// ExportDB exposes the underlying handle to integration tests for fixtures.
func ExportDB(r *Reader) *sql.DB { return r.db }
