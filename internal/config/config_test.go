package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "source", cfg.SourceTag)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, "/health", cfg.HealthPath)
	assert.Equal(t, 10, cfg.MaxAttempts)
	assert.Equal(t, 5, cfg.DelaySeconds)
	assert.Equal(t, ":3000", cfg.ListenAddr)
	assert.False(t, cfg.FailFastOnMismatch)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slipway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: myapp
image: registry-team/myapp
expected_version: "2.1.0"
host_port: 8080
container_port: 80
max_attempts: 3
delay_seconds: 1
registry: registry.example.com
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "myapp", cfg.Name)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Delay())
	// ReleaseTag falls back to the expected version.
	assert.Equal(t, "registry.example.com/registry-team/myapp:2.1.0", cfg.ReleaseRef())
	assert.Equal(t, "registry-team/myapp:source", cfg.SourceRef())
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("SLIPWAY_MAX_ATTEMPTS", "7")
	t.Setenv("SLIPWAY_SOURCE_TAG", "candidate")
	t.Setenv("SLIPWAY_REGISTRY_PASSWORD", "hunter2")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, "candidate", cfg.SourceTag)
	assert.Equal(t, "hunter2", cfg.RegistryPassword)
}

func TestLoadRejectsMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Name = "myapp"
		cfg.Image = "myapp"
		cfg.ExpectedVersion = "1.0.0"
		cfg.HostPort = 8080
		cfg.ContainerPort = 80
		return cfg
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"missing name":       func(c *Config) { c.Name = "" },
		"missing image":      func(c *Config) { c.Image = "" },
		"missing version":    func(c *Config) { c.ExpectedVersion = "" },
		"bad host port":      func(c *Config) { c.HostPort = 0 },
		"bad container port": func(c *Config) { c.ContainerPort = -1 },
		"zero attempts":      func(c *Config) { c.MaxAttempts = 0 },
		"negative delay":     func(c *Config) { c.DelaySeconds = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestReleaseRefWithoutRegistry(t *testing.T) {
	cfg := Default()
	cfg.Image = "myapp"
	cfg.ExpectedVersion = "1.0.0"
	assert.Equal(t, "myapp:1.0.0", cfg.ReleaseRef())
}

func TestVerifyRequestMirrorsConfig(t *testing.T) {
	cfg := Default()
	cfg.Name = "myapp"
	cfg.ExpectedVersion = "1.0.0"
	cfg.HostPort = 8080

	req := cfg.VerifyRequest()
	assert.Equal(t, "myapp", req.Name)
	assert.Equal(t, 8080, req.Port)
	assert.Equal(t, 10, req.MaxAttempts)
	assert.Equal(t, 5*time.Second, req.Delay)
	require.NoError(t, req.Validate())
}
