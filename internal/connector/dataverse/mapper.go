package dataverse

import (
	"fmt"
	"strings"

	"github.com/nucleus/sync-core/internal/engine"
)

var _ engine.RowMapper = (*Mapper)(nil)

// Mapper converts change records into upsert operations addressed by
// alternate key. Mapping is pure and deterministic; the only validation at
// this layer is a non-empty external identifier, which alternate-key
// addressing requires. Everything else is left for the target to reject.
type Mapper struct {
	// Entity is the target table's logical name, e.g. "new_customers".
	Entity string

	// AlternateKey is the key attribute's logical name, e.g. "externalid".
	AlternateKey string
}

// Map derives the upsert operation for one record.
func (m *Mapper) Map(rec engine.ChangeRecord) (engine.UpsertOperation, error) {
	if rec.ExternalID == "" {
		return engine.UpsertOperation{}, engine.NewError(engine.CodeMappingInvalid,
			fmt.Errorf("record changed at %s has no external id", rec.ChangedAt))
	}

	// Single quotes in the key are doubled per the OData quoting rule.
	escaped := strings.ReplaceAll(rec.ExternalID, "'", "''")

	return engine.UpsertOperation{
		Path: fmt.Sprintf("%s(%s='%s')", m.Entity, m.AlternateKey, escaped),
		Body: map[string]any{
			"new_externalid": rec.ExternalID,
			"name":           rec.Name,
			"emailaddress1":  rec.Email,
			"telephone1":     rec.Phone,
		},
	}, nil
}
