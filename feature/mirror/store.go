package mirror

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"portfolio-sync/core/utils"
)

const mappingFileName = "mapping-store.json"

// Store persists the mapping ledger between runs. It must be loaded before
// any upload decision and saved after every run that added or changed an
// entry.
type Store interface {
	Load() (*MappingStore, error)
	Save(m *MappingStore) error
}

type fileStore struct {
	dir string
}

// NewFileStore returns a Store keeping mapping-store.json under dir.
func NewFileStore(dir string) Store {
	return &fileStore{dir: dir}
}

func (s *fileStore) Load() (*MappingStore, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, mappingFileName))
	if os.IsNotExist(err) {
		return NewMappingStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping store: %w", err)
	}

	var m MappingStore
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode mapping store: %w", err)
	}
	if m.BySourceRecord == nil {
		m.BySourceRecord = map[string][]MirroredAsset{}
	}
	return &m, nil
}

func (s *fileStore) Save(m *MappingStore) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode mapping store: %w", err)
	}
	return utils.WriteFileAtomic(filepath.Join(s.dir, mappingFileName), data, 0o644)
}
