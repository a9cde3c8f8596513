// Package utils provides common utility functions for the portfolio-sync pipeline.
// It includes helper functions for type conversion of loosely-typed upstream field
// values and atomic file writing shared by the persisted stores and output writers.
package utils
