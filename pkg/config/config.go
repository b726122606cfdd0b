package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix of environment variables overriding config keys.
	EnvPrefix = "REPORTOOR"

	// DefaultListen is the default API listen address.
	DefaultListen = ":8080"

	// DefaultSnapshotFile is the default name of the dataset snapshot.
	DefaultSnapshotFile = "main.db"

	// DefaultDescriptorFile is the default name of the report descriptor.
	DefaultDescriptorFile = "meta.yml"

	// DefaultHandoffInterval is the default probe interval of the trace
	// handoff.
	DefaultHandoffInterval = "100ms"

	// DefaultPresignExpiry is the default validity of presigned S3 URLs.
	DefaultPresignExpiry = "1h"

	// DefaultReproducerRequestsPerMinute limits reproducer generation per IP.
	DefaultReproducerRequestsPerMinute = 30

	// DefaultPublicRequestsPerMinute limits every other endpoint per IP.
	DefaultPublicRequestsPerMinute = 600
)

// Config is the root configuration for reportoor.
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Source  SourceConfig  `yaml:"source" mapstructure:"source"`
	Handoff HandoffConfig `yaml:"handoff,omitempty" mapstructure:"handoff"`
}

// Load reads the given configuration files in order, each one merged on top
// of the previous, and applies REPORTOOR_* environment overrides. A .env file
// in the working directory is loaded first when present. With no paths the
// configuration comes from defaults and the environment only.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	for i, path := range paths {
		v.SetConfigFile(path)

		var err error
		if i == 0 {
			err = v.ReadInConfig()
		} else {
			err = v.MergeInConfig()
		}

		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so that environment overrides apply even
// when the key is absent from the config files.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.rate_limit.enabled", false)
	v.SetDefault("server.rate_limit.reproducer.requests_per_minute",
		DefaultReproducerRequestsPerMinute)
	v.SetDefault("server.rate_limit.public.requests_per_minute",
		DefaultPublicRequestsPerMinute)

	v.SetDefault("source.snapshot_file", DefaultSnapshotFile)
	v.SetDefault("source.descriptor_file", DefaultDescriptorFile)
	v.SetDefault("source.local.enabled", false)
	v.SetDefault("source.local.path", "")
	v.SetDefault("source.s3.enabled", false)
	v.SetDefault("source.s3.endpoint_url", "")
	v.SetDefault("source.s3.region", "")
	v.SetDefault("source.s3.bucket", "")
	v.SetDefault("source.s3.prefix", "")
	v.SetDefault("source.s3.access_key_id", "")
	v.SetDefault("source.s3.secret_access_key", "")
	v.SetDefault("source.s3.force_path_style", false)
	v.SetDefault("source.s3.presign_expiry", DefaultPresignExpiry)

	v.SetDefault("handoff.interval", DefaultHandoffInterval)
	v.SetDefault("handoff.timeout", "")
}

// UseLocalDir switches the source to the given local directory, disabling S3.
func (c *Config) UseLocalDir(dir string) {
	c.Source.Local = LocalSourceConfig{Enabled: true, Path: dir}
	c.Source.S3.Enabled = false
}

// ValidateSource checks that exactly one source backend is configured.
func (c *Config) ValidateSource() error {
	local := c.Source.Local.Enabled
	s3 := c.Source.S3.Enabled

	switch {
	case local && s3:
		return fmt.Errorf("source: only one of local or s3 may be enabled")
	case !local && !s3:
		return fmt.Errorf("source: one of local or s3 must be enabled")
	case local && c.Source.Local.Path == "":
		return fmt.Errorf("source.local.path is required")
	case s3 && c.Source.S3.Bucket == "":
		return fmt.Errorf("source.s3.bucket is required")
	}

	if s3 {
		if _, err := c.Source.S3.PresignDuration(); err != nil {
			return err
		}
	}

	if c.Source.SnapshotFile == "" {
		return fmt.Errorf("source.snapshot_file is required")
	}

	if c.Source.DescriptorFile == "" {
		return fmt.Errorf("source.descriptor_file is required")
	}

	return nil
}

// ValidateServe checks the configuration needed by the API server.
func (c *Config) ValidateServe() error {
	if err := c.ValidateSource(); err != nil {
		return err
	}

	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}

	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.Reproducer.RequestsPerMinute <= 0 {
			return fmt.Errorf(
				"server.rate_limit.reproducer.requests_per_minute must be positive",
			)
		}

		if c.Server.RateLimit.Public.RequestsPerMinute <= 0 {
			return fmt.Errorf(
				"server.rate_limit.public.requests_per_minute must be positive",
			)
		}
	}

	if _, _, err := c.HandoffTimings(); err != nil {
		return err
	}

	return nil
}

// HandoffTimings returns the parsed handoff probe interval and timeout.
// A zero timeout means the handoff waits without bound.
func (c *Config) HandoffTimings() (time.Duration, time.Duration, error) {
	interval, err := parseDuration(c.Handoff.Interval, DefaultHandoffInterval)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing handoff.interval: %w", err)
	}

	if interval <= 0 {
		return 0, 0, fmt.Errorf("handoff.interval must be positive")
	}

	timeout, err := parseDuration(c.Handoff.Timeout, "0s")
	if err != nil {
		return 0, 0, fmt.Errorf("parsing handoff.timeout: %w", err)
	}

	return interval, timeout, nil
}

// PresignDuration returns the parsed presigned URL validity.
func (c *S3SourceConfig) PresignDuration() (time.Duration, error) {
	d, err := parseDuration(c.PresignExpiry, DefaultPresignExpiry)
	if err != nil {
		return 0, fmt.Errorf("parsing source.s3.presign_expiry: %w", err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("source.s3.presign_expiry must be positive")
	}

	return d, nil
}

func parseDuration(value, fallback string) (time.Duration, error) {
	if value == "" {
		value = fallback
	}

	return time.ParseDuration(value)
}
