// Package records maintains the cached full record set per table and merges
// freshly fetched deltas into it. The merge is the step that turns a partial
// fetch (only added and changed records) back into a complete snapshot of
// the upstream table.
package records
