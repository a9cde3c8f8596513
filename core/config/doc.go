// Package config provides configuration management for the sync pipeline.
//
// It utilizes Viper for loading configuration from environment variables and
// an optional .env file.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings,
// divided into subsections:
//   - Upstream: tabular store endpoint, bearer token, batch sizing, timeouts
//   - Storage: S3/MinIO mirror credentials, bucket, public CDN base URL
//   - Pipeline: table list, output/state directories, variants file
//   - Log: logging level and format
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Pipeline.OutputDir)
package config
