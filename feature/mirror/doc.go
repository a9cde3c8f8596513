// Package mirror implements asset deduplication and mirroring into the CDN
// bucket.
//
// The upstream store serves attachments through time-limited signed URLs
// that rotate between fetches even when the file itself is unchanged, so the
// dedup ledger is keyed by a content-stable identity computed from intrinsic
// attachment metadata (see Identity). The persisted MappingStore maps each
// source record to the ordered list of its mirrored assets; an attachment is
// only uploaded when its identity is absent from that ledger or differs from
// what is stored.
//
// The ledger is a cache: losing mapping-store.json causes redundant
// re-uploads on the next run but never corrupts the produced datasets.
package mirror
