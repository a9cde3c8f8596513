package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"portfolio-sync/core/storage"
	"portfolio-sync/core/storage/mocks"
	"portfolio-sync/core/upstream"
	"portfolio-sync/feature/mirror"
	"portfolio-sync/feature/output"
	"portfolio-sync/feature/records"
	"portfolio-sync/feature/snapshot"
	"portfolio-sync/feature/variant"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var runClock = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

// fakeUpstream is an in-memory upstream.Client with call accounting.
type fakeUpstream struct {
	snapshots map[string]map[string]string
	records   map[string]map[string]upstream.Record

	snapshotCalls int
	fetchCalls    int
	fetchedIDs    [][]string
	quotaTables   map[string]bool
	snapshotErrs  map[string]error
	// withheld ids are advertised in the snapshot but dropped from fetch
	// responses, like a record whose payload fails to decode.
	withheld map[string]bool
}

func (f *fakeUpstream) ListSnapshot(_ context.Context, table string) (map[string]string, error) {
	if f.quotaTables[table] {
		return nil, fmt.Errorf("snapshot %s: %w", table, upstream.ErrQuotaExceeded)
	}
	if err := f.snapshotErrs[table]; err != nil {
		return nil, err
	}
	f.snapshotCalls++
	out := map[string]string{}
	for id, stamp := range f.snapshots[table] {
		out[id] = stamp
	}
	return out, nil
}

func (f *fakeUpstream) FetchRecords(_ context.Context, table string, ids []string) ([]upstream.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	f.fetchCalls++
	f.fetchedIDs = append(f.fetchedIDs, ids)

	var out []upstream.Record
	for _, id := range ids {
		if f.withheld[id] {
			continue
		}
		if rec, ok := f.records[table][id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeUpstream) setRecord(table string, rec upstream.Record) {
	if f.snapshots[table] == nil {
		f.snapshots[table] = map[string]string{}
	}
	if f.records[table] == nil {
		f.records[table] = map[string]upstream.Record{}
	}
	f.snapshots[table][rec.ID] = rec.LastModified
	f.records[table][rec.ID] = rec
}

func (f *fakeUpstream) deleteRecord(table, id string) {
	delete(f.snapshots[table], id)
	delete(f.records[table], id)
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		snapshots:    map[string]map[string]string{"projects": {}, "posts": {}},
		records:      map[string]map[string]upstream.Record{"projects": {}, "posts": {}},
		quotaTables:  map[string]bool{},
		snapshotErrs: map[string]error{},
		withheld:     map[string]bool{},
	}
}

func published(id, title, date, stamp string, fields map[string]any) upstream.Record {
	f := map[string]any{
		"Title":    title,
		"Date":     date,
		"Status":   "published",
		"Audience": []any{"general"},
	}
	for k, v := range fields {
		f[k] = v
	}
	return upstream.Record{ID: id, Fields: f, LastModified: stamp}
}

func testVariants() []variant.Definition {
	return []variant.Definition{
		{ID: "public", Namespace: "work", Include: variant.Include{Statuses: []string{"published"}, Audiences: []string{"general"}}},
		{ID: "client", Namespace: "client-work", Include: variant.Include{Statuses: []string{"published"}, Audiences: []string{"client"}}},
	}
}

type testEnv struct {
	runner   *Runner
	fake     *fakeUpstream
	store    *mocks.Client
	outDir   string
	stateDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	outDir := t.TempDir()
	stateDir := t.TempDir()
	fake := newFakeUpstream()
	store := new(mocks.Client)

	cfg := Config{
		Tables:      "projects,posts",
		OutputDir:   outDir,
		StateDir:    stateDir,
		SiteBaseURL: "https://site.example.com",
	}

	uploader := mirror.NewUploader(store, storage.Config{
		Bucket:        "portfolio",
		PublicBaseURL: "https://cdn.example.com/portfolio",
	}, zap.NewNop())

	runner := NewRunner(
		cfg,
		fake,
		uploader,
		snapshot.NewFileStore(stateDir),
		records.NewFileStore(stateDir),
		mirror.NewFileStore(stateDir),
		output.NewWriter(outDir, cfg.SiteBaseURL, zap.NewNop()),
		testVariants(),
		zap.NewNop(),
	)
	runner.now = func() time.Time { return runClock }

	return &testEnv{runner: runner, fake: fake, store: store, outDir: outDir, stateDir: stateDir}
}

func (e *testEnv) readOutputs(t *testing.T) map[string][]byte {
	t.Helper()
	out := map[string][]byte{}
	entries, err := os.ReadDir(e.outDir)
	require.NoError(t, err)
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(e.outDir, entry.Name()))
		require.NoError(t, err)
		out[entry.Name()] = data
	}
	return out
}

func TestRun_Idempotence(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "image-bytes")
	}))
	defer origin.Close()

	env := newTestEnv(t)
	env.store.On("PutObject", mock.Anything, "portfolio", "mirror/projects/rec1/0.png",
		mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, nil)

	env.fake.setRecord("projects", published("rec1", "Hello", "2026-01-05", "2026-01-05T10:00:00.000Z", map[string]any{
		"Images": []any{
			map[string]any{"id": "att1", "url": origin.URL + "/hero.png?sig=1", "filename": "hero.png", "size": float64(11), "mimeType": "image/png"},
		},
	}))
	env.fake.setRecord("posts", published("recP", "A note", "2026-01-06", "2026-01-06T10:00:00.000Z", nil))

	state, err := env.runner.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, StateLive, state)
	assert.Equal(t, 2, env.fake.snapshotCalls)
	assert.Equal(t, 2, env.fake.fetchCalls, "first run full-fetches both tables")
	env.store.AssertNumberOfCalls(t, "PutObject", 1)

	first := env.readOutputs(t)
	require.Contains(t, first, "dataset-public.json")

	// Second run with no upstream changes: zero selective fetches, zero
	// uploads (the rotated signed URL must not trigger one), identical bytes.
	env.fake.records["projects"]["rec1"].Fields["Images"].([]any)[0].(map[string]any)["url"] = origin.URL + "/hero.png?sig=rotated"

	state, err = env.runner.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, StateLive, state)
	assert.Equal(t, 4, env.fake.snapshotCalls)
	assert.Equal(t, 2, env.fake.fetchCalls, "nothing changed, so no selective fetch")
	env.store.AssertNumberOfCalls(t, "PutObject", 1)

	assert.Equal(t, first, env.readOutputs(t), "outputs must be byte-identical")
}

func TestRun_SingleFieldChangePrecision(t *testing.T) {
	env := newTestEnv(t)
	env.fake.setRecord("projects", published("rec1", "One", "2026-01-01", "2026-01-01T00:00:00.000Z", nil))
	env.fake.setRecord("projects", published("rec2", "Two", "2026-01-02", "2026-01-02T00:00:00.000Z", nil))
	env.fake.setRecord("posts", published("recP", "Note", "2026-01-03", "2026-01-03T00:00:00.000Z", nil))

	_, err := env.runner.Run(context.Background(), Options{})
	require.NoError(t, err)

	// One record's title changes upstream.
	env.fake.setRecord("projects", published("rec2", "Two renamed", "2026-01-02", "2026-01-09T00:00:00.000Z", nil))
	env.fake.fetchedIDs = nil
	env.fake.fetchCalls = 0

	_, err = env.runner.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, env.fake.fetchCalls, "exactly one batched fetch")
	require.Len(t, env.fake.fetchedIDs, 1)
	assert.Equal(t, []string{"rec2"}, env.fake.fetchedIDs[0], "covering exactly the changed id")

	outputs := env.readOutputs(t)
	assert.Contains(t, string(outputs["dataset-public.json"]), "2026-01-02-two-renamed",
		"new slug reflects the changed title")
}

func TestRun_DeletionPropagation(t *testing.T) {
	env := newTestEnv(t)
	env.fake.setRecord("projects", published("rec1", "Keep", "2026-01-01", "2026-01-01T00:00:00.000Z", nil))
	env.fake.setRecord("projects", published("rec2", "Drop", "2026-01-02", "2026-01-02T00:00:00.000Z", nil))
	env.fake.setRecord("posts", published("recP", "Note", "2026-01-03", "2026-01-03T00:00:00.000Z", nil))

	_, err := env.runner.Run(context.Background(), Options{})
	require.NoError(t, err)

	env.fake.deleteRecord("projects", "rec2")

	_, err = env.runner.Run(context.Background(), Options{})
	require.NoError(t, err)

	for name, data := range env.readOutputs(t) {
		assert.NotContains(t, string(data), "rec2", "deleted record leaked into %s", name)
		assert.NotContains(t, string(data), "2026-01-02-drop", "deleted slug leaked into %s", name)
	}

	cached, err := records.NewFileStore(env.stateDir).Load("projects")
	require.NoError(t, err)
	assert.NotContains(t, cached, "rec2")
}

func TestRun_QuotaFallbackServesCache(t *testing.T) {
	env := newTestEnv(t)
	env.fake.setRecord("projects", published("rec1", "One", "2026-01-01", "2026-01-01T00:00:00.000Z", nil))
	env.fake.setRecord("posts", published("recP", "Note", "2026-01-03", "2026-01-03T00:00:00.000Z", nil))

	_, err := env.runner.Run(context.Background(), Options{})
	require.NoError(t, err)
	before := env.readOutputs(t)

	// A change lands upstream, but the quota trips on the second table.
	env.fake.setRecord("projects", published("rec1", "One renamed", "2026-01-01", "2026-01-09T00:00:00.000Z", nil))
	env.fake.quotaTables["posts"] = true

	state, err := env.runner.Run(context.Background(), Options{})
	require.NoError(t, err, "degraded-but-served-from-cache is a success")
	assert.Equal(t, StateDegraded, state)
	assert.Equal(t, before, env.readOutputs(t), "every output file must match the previous run exactly")

	st, err := LoadState(env.stateDir)
	require.NoError(t, err)
	assert.Equal(t, 1, st.DegradedRuns)
}

func TestRun_FatalWithoutCache(t *testing.T) {
	env := newTestEnv(t)
	env.fake.quotaTables["projects"] = true

	state, err := env.runner.Run(context.Background(), Options{})
	assert.Equal(t, StateFatal, state)
	assert.ErrorIs(t, err, ErrNoUsableData)
}

func TestRun_OfflineWithCache(t *testing.T) {
	env := newTestEnv(t)
	env.fake.setRecord("projects", published("rec1", "One", "2026-01-01", "2026-01-01T00:00:00.000Z", nil))
	env.fake.setRecord("posts", published("recP", "Note", "2026-01-03", "2026-01-03T00:00:00.000Z", nil))

	_, err := env.runner.Run(context.Background(), Options{})
	require.NoError(t, err)
	before := env.readOutputs(t)

	state, err := env.runner.Run(context.Background(), Options{Offline: true})
	require.NoError(t, err)
	assert.Equal(t, StateDegraded, state)
	assert.Equal(t, before, env.readOutputs(t))
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.fake.setRecord("projects", published("rec1", "One", "2026-01-01", "2026-01-01T00:00:00.000Z", nil))

	state, err := env.runner.Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, StateLive, state)
	assert.Equal(t, 0, env.fake.fetchCalls, "dry run performs no selective fetch")
	assert.Empty(t, env.readOutputs(t))

	stateEntries, err := os.ReadDir(env.stateDir)
	require.NoError(t, err)
	assert.Empty(t, stateEntries, "dry run persists no state")
}

func TestRun_FullSyncRefetchesEverything(t *testing.T) {
	env := newTestEnv(t)
	env.fake.setRecord("projects", published("rec1", "One", "2026-01-01", "2026-01-01T00:00:00.000Z", nil))
	env.fake.setRecord("posts", published("recP", "Note", "2026-01-03", "2026-01-03T00:00:00.000Z", nil))

	_, err := env.runner.Run(context.Background(), Options{})
	require.NoError(t, err)
	env.fake.fetchCalls = 0

	_, err = env.runner.Run(context.Background(), Options{FullSync: true})
	require.NoError(t, err)
	assert.Equal(t, 2, env.fake.fetchCalls, "full sync bypasses change detection")
}

// A record whose changed payload the fetcher could not return must stay at
// its cached version AND keep its stale baseline entry, so the run after the
// glitch refetches it without waiting for another upstream change.
func TestRun_UnfetchedRecordRetriedNextRun(t *testing.T) {
	env := newTestEnv(t)
	env.fake.setRecord("projects", published("rec1", "One", "2026-01-01", "2026-01-01T00:00:00.000Z", nil))
	env.fake.setRecord("posts", published("recP", "Note", "2026-01-03", "2026-01-03T00:00:00.000Z", nil))

	_, err := env.runner.Run(context.Background(), Options{})
	require.NoError(t, err)

	// The record changes upstream, but its payload is dropped from the
	// fetch response for one run.
	env.fake.setRecord("projects", published("rec1", "One renamed", "2026-01-01", "2026-01-09T00:00:00.000Z", nil))
	env.fake.withheld["rec1"] = true

	_, err = env.runner.Run(context.Background(), Options{})
	require.NoError(t, err)
	data := string(env.readOutputs(t)["dataset-public.json"])
	assert.Contains(t, data, "2026-01-01-one\"", "cached version survives the failed fetch")
	assert.NotContains(t, data, "One renamed")

	// Payload decodes again: the next run must retry the fetch on its own.
	env.fake.withheld["rec1"] = false
	env.fake.fetchCalls = 0
	env.fake.fetchedIDs = nil

	_, err = env.runner.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, env.fake.fetchCalls, "stale baseline forces a refetch")
	require.Len(t, env.fake.fetchedIDs, 1)
	assert.Equal(t, []string{"rec1"}, env.fake.fetchedIDs[0])
	assert.Contains(t, string(env.readOutputs(t)["dataset-public.json"]), "One renamed")
}

// A snapshot fetch failure (including an undecodable projection entry) keeps
// the whole table at its cached state: no record may read as deleted, no
// cache purge, no mirror removal.
func TestRun_SnapshotFailureKeepsTableCached(t *testing.T) {
	env := newTestEnv(t)
	env.fake.setRecord("projects", published("rec1", "One", "2026-01-01", "2026-01-01T00:00:00.000Z", nil))
	env.fake.setRecord("posts", published("recP", "Note", "2026-01-03", "2026-01-03T00:00:00.000Z", nil))

	_, err := env.runner.Run(context.Background(), Options{})
	require.NoError(t, err)
	before := env.readOutputs(t)

	env.fake.snapshotErrs["projects"] = fmt.Errorf("snapshot projects: malformed entry")

	state, err := env.runner.Run(context.Background(), Options{})
	require.NoError(t, err, "one failed table must not abort the run")
	assert.Equal(t, StateLive, state)
	assert.Equal(t, before, env.readOutputs(t), "cached table content still published")

	cached, err := records.NewFileStore(env.stateDir).Load("projects")
	require.NoError(t, err)
	assert.Contains(t, cached, "rec1", "records cache must not be purged")
	env.store.AssertNotCalled(t, "RemoveObject",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// A title change on one record in a populated baseline: two snapshot calls,
// one selective fetch for one id, zero uploads, and the new slug in every
// regenerated variant.
func TestRun_TitleChangeOnPopulatedBaseline(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "image-bytes")
	}))
	defer origin.Close()

	env := newTestEnv(t)
	env.store.On("PutObject", mock.Anything, "portfolio", mock.Anything,
		mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, nil)

	withImage := func(rec upstream.Record, attID string) upstream.Record {
		rec.Fields["Images"] = []any{
			map[string]any{"id": attID, "url": origin.URL + "/" + attID + ".png?sig=1",
				"filename": attID + ".png", "size": float64(11), "mimeType": "image/png"},
		}
		return rec
	}

	for i := 0; i < 20; i++ {
		rec := published(fmt.Sprintf("p%02d", i), fmt.Sprintf("Project %02d", i),
			fmt.Sprintf("2026-01-%02d", i+1), fmt.Sprintf("2026-01-%02dT00:00:00.000Z", i+1), nil)
		if i < 3 {
			rec = withImage(rec, fmt.Sprintf("att%02d", i))
		}
		env.fake.setRecord("projects", rec)
	}
	for i := 0; i < 20; i++ {
		env.fake.setRecord("posts", published(fmt.Sprintf("b%02d", i), fmt.Sprintf("Post %02d", i),
			fmt.Sprintf("2026-02-%02d", i+1), fmt.Sprintf("2026-02-%02dT00:00:00.000Z", i+1), nil))
	}

	_, err := env.runner.Run(context.Background(), Options{})
	require.NoError(t, err)
	env.store.AssertNumberOfCalls(t, "PutObject", 3)

	// One title changes; its attachment is untouched.
	changed := published("p02", "Retitled Piece", "2026-01-03", "2026-03-01T00:00:00.000Z", nil)
	changed.Fields["Images"] = env.fake.records["projects"]["p02"].Fields["Images"]
	env.fake.setRecord("projects", changed)
	env.fake.snapshotCalls = 0
	env.fake.fetchCalls = 0
	env.fake.fetchedIDs = nil

	_, err = env.runner.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, env.fake.snapshotCalls, "one cheap snapshot call per table")
	assert.Equal(t, 1, env.fake.fetchCalls, "one selective fetch")
	require.Len(t, env.fake.fetchedIDs, 1)
	assert.Equal(t, []string{"p02"}, env.fake.fetchedIDs[0])
	env.store.AssertNumberOfCalls(t, "PutObject", 3)

	data := string(env.readOutputs(t)["dataset-public.json"])
	assert.Contains(t, data, "2026-01-03-retitled-piece")
	assert.NotContains(t, data, "2026-01-03-project-02")
}

func TestSyncState_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	st, err := LoadState(dir)
	require.NoError(t, err)
	assert.Zero(t, st.DegradedRuns)

	st.RunID = "run-1"
	st.LastAttemptAt = runClock
	st.LastSuccessAt = runClock
	st.Tables = map[string]TableState{"projects": {Records: 12, SnapshotAt: runClock}}
	require.NoError(t, SaveState(dir, st))

	loaded, err := LoadState(dir)
	require.NoError(t, err)
	assert.Equal(t, st, loaded)
}
