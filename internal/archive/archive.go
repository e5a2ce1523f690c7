package archive

import (
	"context"
	"fmt"
	"strings"
)

// Store writes sent batch envelopes under <prefix>/<runID>/.
type Store struct {
	store  ObjectStore
	bucket string
	prefix string
	runID  string
}

// NewStore creates an envelope archive for one run.
func NewStore(store ObjectStore, bucket, prefix, runID string) *Store {
	return &Store{store: store, bucket: bucket, prefix: prefix, runID: runID}
}

// ArchiveEnvelope persists one raw envelope keyed by its boundary token,
// which is already unique per envelope. Returns the object reference.
func (s *Store) ArchiveEnvelope(ctx context.Context, boundary string, payload []byte) (string, error) {
	if err := s.store.EnsureBucket(ctx, s.bucket); err != nil {
		return "", err
	}
	key := s.path(fmt.Sprintf("%s.mime", boundary))
	if err := s.store.PutObject(ctx, s.bucket, key, payload); err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func (s *Store) path(file string) string {
	return strings.Trim(strings.Join([]string{s.prefix, s.runID, file}, "/"), "/")
}
