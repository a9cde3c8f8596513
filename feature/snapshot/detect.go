package snapshot

import "sort"

// Detect diffs a fresh snapshot against the previous one and classifies
// every record id. Timestamp comparison is strict equality on the upstream's
// own modification clock; no skew tolerance is applied because that clock is
// authoritative.
//
// A nil previous snapshot (first run, or state loss) classifies the entire
// fresh snapshot as added, which puts the table into full-fetch mode.
func Detect(prev, fresh *Snapshot) *ChangeSet {
	cs := &ChangeSet{Table: fresh.Table}

	if prev == nil {
		for id := range fresh.Entries {
			cs.Added = append(cs.Added, id)
		}
		sortChangeSet(cs)
		return cs
	}

	for id, stamp := range fresh.Entries {
		prevStamp, ok := prev.Entries[id]
		switch {
		case !ok:
			cs.Added = append(cs.Added, id)
		case prevStamp != stamp:
			cs.Changed = append(cs.Changed, id)
		default:
			cs.Unchanged = append(cs.Unchanged, id)
		}
	}

	for id := range prev.Entries {
		if _, ok := fresh.Entries[id]; !ok {
			cs.Deleted = append(cs.Deleted, id)
		}
	}

	sortChangeSet(cs)
	return cs
}

func sortChangeSet(cs *ChangeSet) {
	sort.Strings(cs.Added)
	sort.Strings(cs.Changed)
	sort.Strings(cs.Deleted)
	sort.Strings(cs.Unchanged)
}
