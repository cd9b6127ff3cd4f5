// Package config holds the release configuration: explicit fields with named
// defaults, loaded from a config file and SLIPWAY_ environment variables and
// validated before any pipeline stage runs.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/slipway-ci/slipway/internal/adapters/probe"
	"github.com/slipway-ci/slipway/internal/core/domain"
	"github.com/slipway-ci/slipway/internal/core/verify"
)

// Config describes one application release end to end: what to build, how to
// run it, what the verifier must observe, and where to publish.
type Config struct {
	// Identity of the application and its container.
	Name  string `mapstructure:"name"`
	Image string `mapstructure:"image"`

	// Build inputs. Source is a git URL or a local build-context directory.
	// SourceTag is the local, not-yet-pushed tag applied to fresh builds.
	Source    string `mapstructure:"source"`
	SourceTag string `mapstructure:"source_tag"`

	// Deployment: where the container's port is published.
	Host          string `mapstructure:"host"`
	HostPort      int    `mapstructure:"host_port"`
	ContainerPort int    `mapstructure:"container_port"`

	// Verification.
	HealthPath          string `mapstructure:"health_path"`
	ExpectedVersion     string `mapstructure:"expected_version"`
	MaxAttempts         int    `mapstructure:"max_attempts"`
	DelaySeconds        int    `mapstructure:"delay_seconds"`
	FailFastOnMismatch  bool   `mapstructure:"fail_fast_on_mismatch"`
	ProbeTimeoutSeconds int    `mapstructure:"probe_timeout_seconds"`

	// Publishing. ReleaseTag defaults to ExpectedVersion when empty.
	Registry         string `mapstructure:"registry"`
	ReleaseTag       string `mapstructure:"release_tag"`
	RegistryUsername string `mapstructure:"registry_username"`
	RegistryPassword string `mapstructure:"registry_password"`

	// HTTP API listen address (serve command).
	ListenAddr string `mapstructure:"listen_addr"`
}

// Default returns the configuration with every named default applied.
func Default() Config {
	return Config{
		Source:              ".",
		SourceTag:           "source",
		Host:                "localhost",
		HealthPath:          "/health",
		MaxAttempts:         verify.DefaultMaxAttempts,
		DelaySeconds:        int(verify.DefaultDelay / time.Second),
		ProbeTimeoutSeconds: int(probe.DefaultTimeout / time.Second),
		ListenAddr:          ":3000",
	}
}

// Load reads configuration from an optional file plus SLIPWAY_ environment
// variables, layered over the defaults. An explicit path that cannot be read
// is an error; a missing implicit slipway.yaml is not.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, value := range map[string]any{
		"name":                  "",
		"image":                 "",
		"source":                ".",
		"source_tag":            "source",
		"host":                  "localhost",
		"host_port":             0,
		"container_port":        0,
		"health_path":           "/health",
		"expected_version":      "",
		"max_attempts":          verify.DefaultMaxAttempts,
		"delay_seconds":         int(verify.DefaultDelay / time.Second),
		"fail_fast_on_mismatch": false,
		"probe_timeout_seconds": int(probe.DefaultTimeout / time.Second),
		"registry":              "",
		"release_tag":           "",
		"registry_username":     "",
		"registry_password":     "",
		"listen_addr":           ":3000",
	} {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("SLIPWAY")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("slipway")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.ReleaseTag == "" {
		cfg.ReleaseTag = cfg.ExpectedVersion
	}
	return cfg, nil
}

// Validate rejects configurations that cannot drive a release.
func (c Config) Validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("config: name is required")
	case c.Image == "":
		return fmt.Errorf("config: image is required")
	case c.ExpectedVersion == "":
		return fmt.Errorf("config: expected_version is required")
	case c.HostPort < 1 || c.HostPort > 65535:
		return fmt.Errorf("config: host_port %d out of range", c.HostPort)
	case c.ContainerPort < 1 || c.ContainerPort > 65535:
		return fmt.Errorf("config: container_port %d out of range", c.ContainerPort)
	case c.MaxAttempts < 1:
		return fmt.Errorf("config: max_attempts must be at least 1")
	case c.DelaySeconds < 0:
		return fmt.Errorf("config: delay_seconds must not be negative")
	}
	return nil
}

// SourceRef is the local tag applied by the build stage.
func (c Config) SourceRef() string {
	return c.Image + ":" + c.SourceTag
}

// ReleaseRef is the registry reference the push stage publishes.
func (c Config) ReleaseRef() string {
	tag := c.ReleaseTag
	if tag == "" {
		tag = c.ExpectedVersion
	}
	if c.Registry == "" {
		return c.Image + ":" + tag
	}
	return c.Registry + "/" + c.Image + ":" + tag
}

// Delay is the inter-attempt verifier delay.
func (c Config) Delay() time.Duration {
	return time.Duration(c.DelaySeconds) * time.Second
}

// ProbeTimeout bounds each individual health fetch.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// DeploySpec is the container the deploy stage starts.
func (c Config) DeploySpec() domain.DeploySpec {
	return domain.DeploySpec{
		Name:          c.Name,
		Image:         c.SourceRef(),
		ContainerPort: c.ContainerPort,
		HostPort:      c.HostPort,
	}
}

// VerifyRequest is the verifier call the deploy is gated on.
func (c Config) VerifyRequest() verify.Request {
	return verify.Request{
		Name:               c.Name,
		Host:               c.Host,
		Port:               c.HostPort,
		HealthPath:         c.HealthPath,
		ExpectedVersion:    c.ExpectedVersion,
		MaxAttempts:        c.MaxAttempts,
		Delay:              c.Delay(),
		FailFastOnMismatch: c.FailFastOnMismatch,
	}
}
