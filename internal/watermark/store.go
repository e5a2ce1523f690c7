// Package watermark persists the replication cursor between runs.
//
// A watermark is an ISO-8601 UTC timestamp string. Loading never fails the
// run: missing or corrupt state falls back to the configured default with a
// logged warning. Saving is atomic so a crash mid-write cannot leave a
// truncated cursor behind.
package watermark

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/nucleus/sync-core/internal/engine"
)

var _ engine.WatermarkStore = (*FileStore)(nil)

// fileState is the persisted JSON shape: {"last": "<ISO-8601 UTC>"}.
type fileState struct {
	Last string `json:"last"`
}

// FileStore keeps the watermark in a small JSON file.
type FileStore struct {
	// Path is the canonical watermark file location.
	Path string

	// Default is returned when no prior state exists or it is unreadable.
	Default string
}

// NewFileStore creates a file-backed watermark store.
func NewFileStore(path, defaultWatermark string) *FileStore {
	return &FileStore{Path: path, Default: defaultWatermark}
}

// Load returns the last committed watermark, or the default when the file
// is missing or corrupt. Corruption is logged, never fatal.
func (s *FileStore) Load() string {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Failed to read watermark file %s: %v", s.Path, err)
		}
		return s.Default
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Printf("Watermark file %s is corrupt, using default %s: %v", s.Path, s.Default, err)
		return s.Default
	}
	if state.Last == "" {
		log.Printf("Watermark file %s has no value, using default %s", s.Path, s.Default)
		return s.Default
	}
	return state.Last
}

// Save atomically replaces the watermark: write to a temporary file, then
// rename over the canonical location.
func (s *FileStore) Save(wm string) error {
	data, err := json.Marshal(fileState{Last: wm})
	if err != nil {
		return fmt.Errorf("marshal watermark: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write watermark temp file: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("replace watermark file: %w", err)
	}
	return nil
}
