package config

// ServerConfig contains HTTP server settings for the report API.
type ServerConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Reproducer limits archive generation, which fetches artifacts from the
	// source backend on every request.
	Reproducer RateLimitTier `yaml:"reproducer,omitempty" mapstructure:"reproducer"`
	Public     RateLimitTier `yaml:"public,omitempty" mapstructure:"public"`
}

// RateLimitTier defines request limits for a specific tier.
type RateLimitTier struct {
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// SourceConfig describes where a published run lives. Only one backend
// (local or S3) may be enabled at a time.
type SourceConfig struct {
	SnapshotFile   string            `yaml:"snapshot_file" mapstructure:"snapshot_file"`
	DescriptorFile string            `yaml:"descriptor_file" mapstructure:"descriptor_file"`
	Local          LocalSourceConfig `yaml:"local,omitempty" mapstructure:"local"`
	S3             S3SourceConfig    `yaml:"s3,omitempty" mapstructure:"s3"`
}

// LocalSourceConfig reads a run from a directory on the local filesystem.
type LocalSourceConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// S3SourceConfig reads a run from a prefix in an S3-compatible bucket.
type S3SourceConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
	// PresignExpiry is the validity of presigned artifact download URLs.
	PresignExpiry string `yaml:"presign_expiry,omitempty" mapstructure:"presign_expiry"`
}

// HandoffConfig tunes the trace handoff to an external viewer.
type HandoffConfig struct {
	Interval string `yaml:"interval,omitempty" mapstructure:"interval"`
	// Timeout bounds the wait for the viewer acknowledgment. Empty or zero
	// waits until the acknowledgment arrives or the request is cancelled.
	Timeout string `yaml:"timeout,omitempty" mapstructure:"timeout"`
}
