package snapshot

import (
	"sort"
	"time"
)

// Snapshot is the cheap id -> lastModified projection of one upstream table.
// It deliberately never carries field payloads; that is what makes it cheap
// enough to fetch on every run.
type Snapshot struct {
	Table      string            `json:"table"`
	Entries    map[string]string `json:"entries"`
	CapturedAt time.Time         `json:"captured_at"`
}

// New builds a snapshot from the upstream projection.
func New(table string, entries map[string]string, capturedAt time.Time) *Snapshot {
	if entries == nil {
		entries = map[string]string{}
	}
	return &Snapshot{Table: table, Entries: entries, CapturedAt: capturedAt}
}

// ChangeSet classifies every record id of a table after comparing two
// snapshots. Slices are sorted so logs and tests are deterministic. A
// ChangeSet is ephemeral: it is recomputed every run and never persisted.
type ChangeSet struct {
	Table     string
	Added     []string
	Changed   []string
	Deleted   []string
	Unchanged []string
}

// FetchIDs returns the ids classified added or changed, the exact set the
// selective fetcher must retrieve.
func (c *ChangeSet) FetchIDs() []string {
	ids := make([]string, 0, len(c.Added)+len(c.Changed))
	ids = append(ids, c.Added...)
	ids = append(ids, c.Changed...)
	sort.Strings(ids)
	return ids
}

// Empty reports whether nothing changed since the previous snapshot.
func (c *ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Changed) == 0 && len(c.Deleted) == 0
}
