package mirror

import "time"

// MirroredAsset is one entry of the dedup ledger: the identity of an
// upstream attachment and where its mirrored copy lives. Created once per
// unique identity and immutable thereafter, except for OriginURL which is
// refreshed whenever the upstream rotates its signed URL.
//
// An entry with an empty MirrorURL is a placeholder for an attachment whose
// upload failed; it keeps the index positions of its siblings stable and is
// treated as absent by lookups, so the next run retries the upload.
type MirroredAsset struct {
	Identity  string `json:"identity"`
	OriginURL string `json:"origin_url"`
	MirrorURL string `json:"mirror_url"`
	Format    string `json:"format"`
	Bytes     int64  `json:"bytes"`
}

// Valid reports whether the entry represents a completed upload.
func (a MirroredAsset) Valid() bool {
	return a.Identity != "" && a.MirrorURL != ""
}

// MappingStore is the persisted source-record -> mirrored-assets ledger.
// It is a cache, not a source of truth: losing it costs redundant re-uploads
// but never correctness.
type MappingStore struct {
	GeneratedAt    time.Time                  `json:"generated_at"`
	BySourceRecord map[string][]MirroredAsset `json:"by_source_record"`
}

// NewMappingStore returns an empty ledger.
func NewMappingStore() *MappingStore {
	return &MappingStore{BySourceRecord: map[string][]MirroredAsset{}}
}

// Assets returns the ordered entry list for a source record, or nil.
func (m *MappingStore) Assets(recordID string) []MirroredAsset {
	return m.BySourceRecord[recordID]
}

// Set replaces the ordered entry list for a source record.
func (m *MappingStore) Set(recordID string, assets []MirroredAsset) {
	m.BySourceRecord[recordID] = assets
}

// Prune drops the entry list of a deleted source record and returns what was
// stored, so the caller can remove the mirrored objects.
func (m *MappingStore) Prune(recordID string) []MirroredAsset {
	assets := m.BySourceRecord[recordID]
	delete(m.BySourceRecord, recordID)
	return assets
}

// ResolveURL returns the mirror URL for attachment index of a record,
// falling back to the given origin URL when no valid entry exists at that
// index.
func (m *MappingStore) ResolveURL(recordID string, index int, originURL string) string {
	assets := m.BySourceRecord[recordID]
	if index < len(assets) && assets[index].Valid() {
		return assets[index].MirrorURL
	}
	return originURL
}
