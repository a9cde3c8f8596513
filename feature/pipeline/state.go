package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"portfolio-sync/core/utils"
)

const stateFileName = "sync-state.json"

// State records the outcome of sync runs across executions: when the
// pipeline last tried, when it last succeeded, and how many consecutive runs
// were served from cache. It is diagnostic metadata only and never feeds
// back into sync decisions.
type State struct {
	RunID         string                `json:"run_id"`
	LastAttemptAt time.Time             `json:"last_attempt_at"`
	LastSuccessAt time.Time             `json:"last_success_at,omitzero"`
	DegradedRuns  int                   `json:"degraded_runs"`
	Tables        map[string]TableState `json:"tables,omitempty"`
}

// TableState summarizes one table after its last successful merge.
type TableState struct {
	Records    int       `json:"records"`
	SnapshotAt time.Time `json:"snapshot_at"`
}

// LoadState reads the persisted sync state from dir. Missing file returns a
// zero state.
func LoadState(dir string) (*State, error) {
	data, err := os.ReadFile(filepath.Join(dir, stateFileName))
	if os.IsNotExist(err) {
		return &State{Tables: map[string]TableState{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode sync state: %w", err)
	}
	if st.Tables == nil {
		st.Tables = map[string]TableState{}
	}
	return &st, nil
}

// SaveState persists the sync state into dir.
func SaveState(dir string, st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sync state: %w", err)
	}
	return utils.WriteFileAtomic(filepath.Join(dir, stateFileName), data, 0o644)
}
