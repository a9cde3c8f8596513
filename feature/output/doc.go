// Package output serializes the per-variant artifacts: the dataset itself,
// a URL sitemap, a social-sharing manifest and a crawler policy file. All
// file names carry the variant id and every write is atomic
// (temp-then-rename), so a crash mid-write never leaves a half-written
// artifact visible to consumers.
package output
