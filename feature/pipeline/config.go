package pipeline

import "strings"

// Config holds configuration for the sync pipeline.
type Config struct {
	// Tables is the comma-separated list of upstream tables to sync,
	// processed in this exact order.
	Tables string `mapstructure:"tables" default:"projects,posts"`
	// OutputDir is where per-variant datasets and derived artifacts are written.
	OutputDir string `mapstructure:"output_dir" default:"dist"`
	// StateDir holds the persisted snapshots, records cache, mapping store
	// and sync state used as next-run inputs.
	StateDir string `mapstructure:"state_dir" default:"state"`
	// VariantsFile is the YAML file defining the portfolio variants.
	VariantsFile string `mapstructure:"variants_file" default:"variants.yaml"`
	// SiteBaseURL is the public base URL of the rendered site, used for
	// sitemap and share metadata links.
	SiteBaseURL string `mapstructure:"site_base_url" default:"http://localhost:8080"`
}

// TableList returns the configured tables in processing order.
func (c Config) TableList() []string {
	var tables []string
	for _, t := range strings.Split(c.Tables, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tables = append(tables, t)
		}
	}
	return tables
}
