// Package upstream implements the client for the rate-limited, paginated
// tabular content store the pipeline syncs from.
//
// # Operations
//
// Two read paths exist, matching the two costs the pipeline tries to
// minimize:
//
//   - ListSnapshot: the cheap path. Requests only the id and last-modified
//     projection of a table across all pages, never full field payloads.
//   - FetchRecords: the expensive path. Retrieves full records for an
//     explicit id set, batched into small id-filter queries. An empty id set
//     costs zero network calls.
//
// # Error taxonomy
//
// Transient failures (timeouts, resets, 5xx) are retried at the call site
// with bounded exponential backoff. Quota rejections (HTTP 429 or an
// explicit QUOTA_EXCEEDED marker) surface as ErrQuotaExceeded and are never
// retried; the pipeline's fallback handler reacts to them. Malformed record
// payloads on the fetch path are skipped with a warning so one bad record
// cannot abort the rest of its table. A malformed snapshot entry is the
// opposite: it fails the whole table, because an id missing from the
// projection would otherwise read as a deletion.
package upstream
