// Package pipeline orchestrates one sync run end to end: per table it
// fetches the cheap snapshot, detects changes against the persisted
// baseline, selectively fetches only new and changed records, merges them
// into the cached full set and mirrors their assets; then it builds and
// writes every configured variant from that single fetch.
//
// The package also owns the rate-limit fallback: a quota rejection anywhere
// in the live fetch degrades the run to the last good cached datasets
// instead of failing the build. Only the complete absence of usable data
// (no live fetch possible and no cache on disk) is fatal.
package pipeline
