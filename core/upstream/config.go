package upstream

// Config holds configuration for the upstream tabular content store.
type Config struct {
	// BaseURL is the root endpoint of the upstream API, including the base
	// identifier (e.g. https://api.example.com/v0/appXXXX).
	BaseURL string `mapstructure:"base_url" default:""`
	// Token is the bearer credential for the upstream API.
	Token string `mapstructure:"token" default:""`
	// BatchSize is the maximum number of record ids per selective-fetch
	// request. Id filters are encoded into the query string, so this stays
	// conservative to keep URLs short.
	BatchSize int `mapstructure:"batch_size" default:"50"`
	// TimeoutSeconds is the per-request timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// MaxRetries is the number of retries for transient network errors.
	// Quota errors are never retried.
	MaxRetries int `mapstructure:"max_retries" default:"3"`
}

// HasCredentials reports whether the upstream can be reached at all.
func (c Config) HasCredentials() bool {
	return c.BaseURL != "" && c.Token != ""
}
