package storage

// Config holds configuration for the mirror storage provider.
type Config struct {
	// Endpoint is the URL of the storage service.
	Endpoint string `mapstructure:"endpoint" default:"localhost:9000"`
	// AccessKey is the access key ID for authentication.
	AccessKey string `mapstructure:"access_key" default:"minioadmin"`
	// SecretKey is the secret access key for authentication.
	SecretKey string `mapstructure:"secret_key" default:"minioadmin"`
	// UseSSL indicates whether to use SSL/TLS for connections.
	UseSSL bool `mapstructure:"use_ssl" default:"false"`
	// Bucket is the name of the bucket mirrored assets are uploaded to.
	Bucket string `mapstructure:"bucket" default:"portfolio"`
	// Region is the location of the bucket (e.g., us-east-1).
	Region string `mapstructure:"region" default:""`
	// PublicBaseURL is the public CDN base under which uploaded objects are
	// reachable. Mirror URLs recorded in the mapping store are derived from it.
	PublicBaseURL string `mapstructure:"public_base_url" default:"http://localhost:9000/portfolio"`
	// TimeoutSeconds is the connection timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
