package records

import (
	"portfolio-sync/core/upstream"
	"portfolio-sync/feature/snapshot"
)

// Merge combines the previous run's cached full set with the freshly fetched
// deltas into a complete, up-to-date record set.
//
// Rules: deleted ids are dropped; added and changed ids are replaced
// wholesale by their fetched counterpart (never patched field-by-field, to
// avoid partial-update drift); unchanged ids are carried over from the cache
// verbatim. A fetched record the fetcher failed to return (skipped as
// malformed) simply stays at its cached version until a later run succeeds.
//
// Merge is pure and deterministic; it touches no network and no disk.
func Merge(cached map[string]upstream.Record, cs *snapshot.ChangeSet, fetched []upstream.Record) map[string]upstream.Record {
	merged := make(map[string]upstream.Record, len(cached)+len(cs.Added))

	deleted := make(map[string]struct{}, len(cs.Deleted))
	for _, id := range cs.Deleted {
		deleted[id] = struct{}{}
	}

	for id, rec := range cached {
		if _, gone := deleted[id]; gone {
			continue
		}
		merged[id] = rec
	}

	for _, rec := range fetched {
		merged[rec.ID] = rec
	}

	return merged
}
