// Package snapshot implements change detection for the sync pipeline.
//
// A Snapshot is the id + last-modified projection of one upstream table,
// captured once per run. Detect compares the fresh snapshot against the
// persisted baseline of the previous run and classifies every record id as
// added, changed, deleted or unchanged. Only added and changed ids are worth
// a full fetch, which is the pipeline's main upstream cost saving.
package snapshot
