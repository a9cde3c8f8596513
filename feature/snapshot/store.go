package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"portfolio-sync/core/utils"
)

// Store persists the comparison baseline between runs. Implementations must
// return (nil, nil) when no baseline exists yet so the detector can fall
// back to full-fetch mode.
type Store interface {
	Load(table string) (*Snapshot, error)
	Save(snap *Snapshot) error
}

type fileStore struct {
	dir string
}

// NewFileStore returns a Store keeping one snapshot-{table}.json per table
// under dir.
func NewFileStore(dir string) Store {
	return &fileStore{dir: dir}
}

func (s *fileStore) path(table string) string {
	return filepath.Join(s.dir, fmt.Sprintf("snapshot-%s.json", table))
}

func (s *fileStore) Load(table string) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(table))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot for %s: %w", table, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", table, err)
	}
	return &snap, nil
}

func (s *fileStore) Save(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot for %s: %w", snap.Table, err)
	}
	return utils.WriteFileAtomic(s.path(snap.Table), data, 0o644)
}
