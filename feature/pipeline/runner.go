package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"portfolio-sync/core/logger"
	"portfolio-sync/core/upstream"
	"portfolio-sync/feature/mirror"
	"portfolio-sync/feature/output"
	"portfolio-sync/feature/records"
	"portfolio-sync/feature/snapshot"
	"portfolio-sync/feature/variant"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunState is the terminal state of one pipeline run.
type RunState string

const (
	// StateLive means the run synced fresh data from the upstream.
	StateLive RunState = "live"
	// StateDegraded means a quota rejection (or missing credentials) forced
	// the run to serve the last good cached datasets unchanged.
	StateDegraded RunState = "degraded"
	// StateFatal means neither live data nor a complete cache was available.
	// It is the only state that aborts with a non-zero exit.
	StateFatal RunState = "fatal"
)

// ErrNoUsableData is returned when the upstream is unreachable and at least
// one variant has no cached dataset to fall back to.
var ErrNoUsableData = errors.New("no live data and no cached dataset available")

// Options are the per-run flags.
type Options struct {
	// FullSync bypasses change detection and refetches every record.
	FullSync bool
	// DryRun computes and logs the change sets but performs no selective
	// fetches, no uploads and no output writes.
	DryRun bool
	// Offline skips the live fetch entirely (set when upstream credentials
	// are missing) and goes straight to the cached datasets.
	Offline bool
}

// Runner wires the pipeline stages together and executes one sync run.
// Runs are strictly sequential: tables in configured order, and within a
// table change detection precedes selective fetch precedes merge. The run
// assumes single-writer access to the state and output directories; that is
// enforced by the scheduler, not here.
type Runner struct {
	cfg       Config
	upstream  upstream.Client
	uploader  *mirror.Uploader
	snapshots snapshot.Store
	records   records.Store
	mappings  mirror.Store
	writer    *output.Writer
	variants  []variant.Definition
	log       *zap.Logger

	// now is the run clock, injectable for deterministic tests.
	now func() time.Time
}

// NewRunner assembles a Runner from its collaborators.
func NewRunner(
	cfg Config,
	client upstream.Client,
	uploader *mirror.Uploader,
	snapshots snapshot.Store,
	recordStore records.Store,
	mappings mirror.Store,
	writer *output.Writer,
	variants []variant.Definition,
	log *zap.Logger,
) *Runner {
	return &Runner{
		cfg:       cfg,
		upstream:  client,
		uploader:  uploader,
		snapshots: snapshots,
		records:   recordStore,
		mappings:  mappings,
		writer:    writer,
		variants:  variants,
		log:       log,
		now:       time.Now,
	}
}

// Run executes one sync run and returns its terminal state. Only StateFatal
// is accompanied by a non-nil error; a degraded run served from cache is a
// success from the caller's point of view.
func (r *Runner) Run(ctx context.Context, opts Options) (RunState, error) {
	runID := uuid.NewString()
	log := logger.WithRun(r.log, runID)
	startedAt := r.now()

	if opts.Offline {
		log.Warn("upstream credentials missing, serving cached datasets")
		return r.fallback(runID, startedAt, log)
	}

	mapping, err := r.mappings.Load()
	if err != nil {
		// The ledger is a cache: a corrupt file costs redundant re-uploads,
		// not a failed run.
		log.Warn("mapping store unreadable, starting from an empty ledger", zap.Error(err))
		mapping = mirror.NewMappingStore()
	}
	mappingChanged := false

	sets := make(map[string]map[string]upstream.Record)
	tableStates := make(map[string]TableState)

	for _, table := range r.cfg.TableList() {
		tlog := log.With(zap.String("table", table))

		merged, ts, changed, err := r.syncTable(ctx, table, mapping, opts, tlog)
		if upstream.IsQuota(err) {
			tlog.Warn("upstream quota exceeded, abandoning live fetch", zap.Error(err))
			return r.fallback(runID, startedAt, log)
		}
		if err != nil {
			// Table-level independence: this table stays at its cached
			// state, the remaining tables still sync.
			tlog.Error("table sync failed, keeping cached state", zap.Error(err))
			cached, cacheErr := r.records.Load(table)
			if cacheErr != nil {
				tlog.Error("records cache unreadable", zap.Error(cacheErr))
				cached = map[string]upstream.Record{}
			}
			sets[table] = cached
			continue
		}

		sets[table] = merged
		tableStates[table] = ts
		mappingChanged = mappingChanged || changed
	}

	if opts.DryRun {
		log.Info("dry run complete, no outputs written")
		return StateLive, nil
	}

	if mappingChanged {
		mapping.GeneratedAt = startedAt
		if err := r.mappings.Save(mapping); err != nil {
			return StateFatal, fmt.Errorf("failed to persist mapping store: %w", err)
		}
	}

	primary := r.primaryTable()
	for _, def := range r.variants {
		ds := variant.Build(sets, primary, mapping, def, startedAt)
		if err := r.writer.WriteAll(def, ds); err != nil {
			return StateFatal, fmt.Errorf("failed to write variant %s: %w", def.ID, err)
		}
	}

	st := &State{
		RunID:         runID,
		LastAttemptAt: startedAt,
		LastSuccessAt: startedAt,
		Tables:        tableStates,
	}
	if err := SaveState(r.cfg.StateDir, st); err != nil {
		log.Warn("failed to persist sync state", zap.Error(err))
	}

	log.Info("sync complete",
		zap.Int("tables", len(sets)),
		zap.Int("variants", len(r.variants)))
	return StateLive, nil
}

// syncTable runs snapshot fetch, change detection, selective fetch, merge
// and asset mirroring for one table, persisting the new snapshot and records
// cache only after a fully successful merge.
func (r *Runner) syncTable(ctx context.Context, table string, mapping *mirror.MappingStore, opts Options, log *zap.Logger) (map[string]upstream.Record, TableState, bool, error) {
	prev, err := r.snapshots.Load(table)
	if err != nil {
		log.Warn("snapshot baseline unreadable, falling back to full fetch", zap.Error(err))
		prev = nil
	}
	if opts.FullSync {
		prev = nil
	}

	entries, err := r.upstream.ListSnapshot(ctx, table)
	if err != nil {
		return nil, TableState{}, false, err
	}
	capturedAt := r.now()
	fresh := snapshot.New(table, entries, capturedAt)

	cs := snapshot.Detect(prev, fresh)
	log.Info("change detection",
		zap.Int("added", len(cs.Added)),
		zap.Int("changed", len(cs.Changed)),
		zap.Int("deleted", len(cs.Deleted)),
		zap.Int("unchanged", len(cs.Unchanged)))

	if opts.DryRun {
		return nil, TableState{}, false, nil
	}

	cached, err := r.records.Load(table)
	if err != nil {
		return nil, TableState{}, false, err
	}

	fetched, err := r.upstream.FetchRecords(ctx, table, cs.FetchIDs())
	if err != nil {
		return nil, TableState{}, false, err
	}

	merged := records.Merge(cached, cs, fetched)

	// Ids the fetcher did not return (skipped as malformed) stay at their
	// cached version; their baseline entry must not advance either, or the
	// next run would classify them unchanged and never retry the fetch.
	if missing := revertUnfetched(fresh, prev, cs.FetchIDs(), fetched); missing > 0 {
		log.Warn("keeping stale baseline for unfetched records so the next run retries",
			zap.Int("records", missing))
	}

	mappingChanged := r.mirrorAssets(ctx, table, merged, cs.Deleted, mapping, log)

	// Persist only after the merge succeeded; a crash before this point
	// leaves the previous baseline intact and a retry starts from scratch.
	if err := r.records.Save(table, merged); err != nil {
		return nil, TableState{}, false, err
	}
	if err := r.snapshots.Save(fresh); err != nil {
		return nil, TableState{}, false, err
	}

	ts := TableState{Records: len(merged), SnapshotAt: capturedAt}
	return merged, ts, mappingChanged, nil
}

// revertUnfetched rewinds the fresh snapshot's entries for every id the
// selective fetch was asked for but did not return: back to the previous
// stamp when one exists, removed entirely for new ids. The next run then
// reclassifies them as changed (or added) and fetches again. It returns how
// many entries were rewound.
func revertUnfetched(fresh, prev *snapshot.Snapshot, fetchIDs []string, fetched []upstream.Record) int {
	returned := make(map[string]struct{}, len(fetched))
	for _, rec := range fetched {
		returned[rec.ID] = struct{}{}
	}

	missing := 0
	for _, id := range fetchIDs {
		if _, ok := returned[id]; ok {
			continue
		}
		missing++
		if prev != nil {
			if stamp, ok := prev.Entries[id]; ok {
				fresh.Entries[id] = stamp
				continue
			}
		}
		delete(fresh.Entries, id)
	}
	return missing
}

// mirrorAssets reconciles every merged record's attachments against the
// mapping ledger and prunes the entries of deleted records. It reports
// whether the ledger changed.
func (r *Runner) mirrorAssets(ctx context.Context, table string, merged map[string]upstream.Record, deleted []string, mapping *mirror.MappingStore, log *zap.Logger) bool {
	changed := false

	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		atts := merged[id].Attachments()
		prior := mapping.Assets(id)
		if len(atts) == 0 && len(prior) == 0 {
			continue
		}
		entry, entryChanged := r.uploader.Mirror(ctx, table, id, atts, prior)
		if entryChanged {
			mapping.Set(id, entry)
			changed = true
		}
	}

	for _, id := range deleted {
		pruned := mapping.Prune(id)
		if len(pruned) == 0 {
			continue
		}
		r.uploader.Remove(ctx, table, id, pruned)
		changed = true
	}

	return changed
}

// fallback serves the last good cached dataset per variant without touching
// any output file, re-stamping only the sync state. It is the
// LIVE -> DEGRADED transition; DEGRADED becomes FATAL only when a variant
// has no cached dataset at all.
func (r *Runner) fallback(runID string, startedAt time.Time, log *zap.Logger) (RunState, error) {
	for _, def := range r.variants {
		ds, err := r.writer.LoadDataset(def.ID)
		if err != nil {
			return StateFatal, fmt.Errorf("variant %s: %w", def.ID, err)
		}
		if ds == nil {
			return StateFatal, fmt.Errorf("variant %s: %w", def.ID, ErrNoUsableData)
		}
		log.Info("serving cached dataset",
			zap.String("variant", def.ID),
			zap.Time("generated_at", ds.GeneratedAt),
			zap.Int("records", len(ds.Records)))
	}

	st, err := LoadState(r.cfg.StateDir)
	if err != nil {
		st = &State{Tables: map[string]TableState{}}
	}
	st.RunID = runID
	st.LastAttemptAt = startedAt
	st.DegradedRuns++
	if err := SaveState(r.cfg.StateDir, st); err != nil {
		log.Warn("failed to persist sync state", zap.Error(err))
	}

	return StateDegraded, nil
}

func (r *Runner) primaryTable() string {
	tables := r.cfg.TableList()
	if len(tables) == 0 {
		return ""
	}
	return tables[0]
}
