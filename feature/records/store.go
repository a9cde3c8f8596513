package records

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"portfolio-sync/core/upstream"
	"portfolio-sync/core/utils"
)

// Store persists the merged full record set of a table between runs.
type Store interface {
	Load(table string) (map[string]upstream.Record, error)
	Save(table string, set map[string]upstream.Record) error
}

type fileStore struct {
	dir string
}

// NewFileStore returns a Store keeping one records-{table}.json per table
// under dir. Records are serialized as a list sorted by id so the file is
// stable across runs with identical content.
func NewFileStore(dir string) Store {
	return &fileStore{dir: dir}
}

func (s *fileStore) path(table string) string {
	return filepath.Join(s.dir, fmt.Sprintf("records-%s.json", table))
}

func (s *fileStore) Load(table string) (map[string]upstream.Record, error) {
	data, err := os.ReadFile(s.path(table))
	if os.IsNotExist(err) {
		return map[string]upstream.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read records cache for %s: %w", table, err)
	}

	var list []upstream.Record
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode records cache for %s: %w", table, err)
	}

	set := make(map[string]upstream.Record, len(list))
	for _, rec := range list {
		set[rec.ID] = rec
	}
	return set, nil
}

func (s *fileStore) Save(table string, set map[string]upstream.Record) error {
	list := make([]upstream.Record, 0, len(set))
	for _, rec := range set {
		list = append(list, rec)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records cache for %s: %w", table, err)
	}
	return utils.WriteFileAtomic(s.path(table), data, 0o644)
}
