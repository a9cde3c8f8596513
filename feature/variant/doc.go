// Package variant builds the per-variant output datasets.
//
// A variant is a named, filtered projection of the merged record set:
// typically one public portfolio and one or more audience-scoped ones, all
// produced from the same single upstream fetch. Build filters records
// through the variant's inclusion rule and normalizes survivors into the
// typed NormalizedRecord shape, confining the upstream's loosely-typed field
// maps to this one translation boundary.
package variant
