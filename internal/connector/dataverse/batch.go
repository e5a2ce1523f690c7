package dataverse

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nucleus/sync-core/internal/engine"
)

// apiPath is the Dataverse Web API root under the environment base URL.
const apiPath = "/api/data/v9.2"

// EncodeBatch serializes operations into one atomic $batch envelope: an
// outer batch part wrapping a single changeset, one application/http PATCH
// part per operation, in input order. Boundary tokens are freshly generated
// per call so they cannot collide with payload content.
func EncodeBatch(serviceRoot string, ops []engine.UpsertOperation) (boundary string, payload []byte, err error) {
	batchBoundary := "batch_" + uuid.NewString()
	csBoundary := "changeset_" + uuid.NewString()

	var buf bytes.Buffer
	buf.WriteString("--" + batchBoundary + "\r\n")
	buf.WriteString("Content-Type: multipart/mixed;boundary=" + csBoundary + "\r\n\r\n")

	for _, op := range ops {
		body, merr := json.Marshal(op.Body)
		if merr != nil {
			return "", nil, fmt.Errorf("marshal operation body for %s: %w", op.Path, merr)
		}

		buf.WriteString("--" + csBoundary + "\r\n")
		buf.WriteString("Content-Type: application/http\r\n")
		buf.WriteString("Content-Transfer-Encoding: binary\r\n\r\n")
		// Absolute resource URL is required inside batch parts.
		buf.WriteString(fmt.Sprintf("PATCH %s%s/%s HTTP/1.1\r\n", serviceRoot, apiPath, op.Path))
		buf.WriteString("Content-Type: application/json; charset=utf-8\r\n")
		buf.WriteString("Prefer: odata.include-annotations=*\r\n\r\n")
		buf.Write(body)
		buf.WriteString("\r\n")
	}

	buf.WriteString("--" + csBoundary + "--\r\n")
	buf.WriteString("--" + batchBoundary + "--\r\n")

	return batchBoundary, buf.Bytes(), nil
}
