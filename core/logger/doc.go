// Package logger provides a structured logging facility based on Zap.
//
// It offers a configured logger instance that supports different environments
// (development vs production) for the sync pipeline.
//
// # Run Correlation
//
// Every sync run is assigned a run identifier at startup. The WithRun helper
// attaches that identifier to the logger so all log entries belonging to the
// same run can be correlated across tables and variants.
//
// # Configuration
//
// The package supports configuration for:
//   - Level: debug, info, warn, error
//   - Encoding: json (production) or console (development)
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info"})
//	log = logger.WithRun(log, runID)
//	log.Info("sync started")
package logger
