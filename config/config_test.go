package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: "http",
			HTTPPort:  8080,
		},
		Builder: BuilderConfig{
			Backend:         "docker",
			BuildTimeoutSec: 600,
			BuildRetries:    0,
			DefaultTag:      "boxbuild/sandbox:latest",
		},
		Image: ImageConfig{
			BaseImage:      "python",
			BaseTag:        "3.11-slim",
			ExtraPackages:  []string{"curl"},
			PackageManager: "uv",
			UserName:       "sandbox",
			GroupName:      "sandbox",
			HomeDir:        "/home/sandbox",
			ResultsDir:     "/app/results",
			VenvDir:        "/home/sandbox/.venv",
			IdleCommand:    []string{"sleep", "infinity"},
		},
		Logging: LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.validate())
	})

	t.Run("InvalidServerTransport", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Transport = "invalid"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server.transport")
	})

	t.Run("UnsupportedBackend", func(t *testing.T) {
		cfg := validConfig()
		cfg.Builder.Backend = "kubernetes"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported builder.backend")
	})

	t.Run("InvalidBuildTimeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Builder.BuildTimeoutSec = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "builder.build_timeout_sec must be positive")
	})

	t.Run("NegativeBuildRetries", func(t *testing.T) {
		cfg := validConfig()
		cfg.Builder.BuildRetries = -1

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "builder.build_retries must not be negative")
	})

	t.Run("InvalidLoggingMode", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Mode = "invalid_mode"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging.mode")
	})

	t.Run("InvalidLogLevel", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Level = "invalid_level"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging.level")
	})

	t.Run("InvalidImageSection", func(t *testing.T) {
		cfg := validConfig()
		cfg.Image.UserName = "root"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid image section")
	})

	t.Run("DryRunBackendAllowed", func(t *testing.T) {
		cfg := validConfig()
		cfg.Builder.Backend = "dryrun"
		require.NoError(t, cfg.validate())
	})
}

func TestToImageSpec(t *testing.T) {
	cfg := validConfig()
	cfg.Image.Labels = map[string]string{"flavor": "python"}

	spec := cfg.ToImageSpec()
	assert.Equal(t, "python", spec.BaseImage)
	assert.Equal(t, "3.11-slim", spec.BaseTag)
	assert.Equal(t, []string{"curl"}, spec.ExtraPackages)
	assert.Equal(t, "sandbox", spec.UserName)
	assert.Equal(t, "/app/results", spec.ResultsDir)
	assert.Equal(t, []string{"sleep", "infinity"}, spec.IdleCommand)
	assert.Equal(t, map[string]string{"flavor": "python"}, spec.Labels)
	require.NoError(t, spec.Validate())
}

func TestGetBuildTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Builder.BuildTimeoutSec = 90
	assert.Equal(t, "1m30s", cfg.GetBuildTimeout().String())
}

func TestNewFromFile(t *testing.T) {
	t.Run("ExplicitFileOverridesDefaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "builder:\n  backend: podman\n  build_retries: 2\nimage:\n  base_tag: \"3.12-slim\"\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := NewFromFile(path)
		require.NoError(t, err)

		assert.Equal(t, "podman", cfg.Builder.Backend)
		assert.Equal(t, 2, cfg.Builder.BuildRetries)
		assert.Equal(t, "3.12-slim", cfg.Image.BaseTag)
		// Untouched sections keep their defaults
		assert.Equal(t, "stdio", cfg.Server.Transport)
		assert.Equal(t, "sandbox", cfg.Image.UserName)
	})

	t.Run("MissingExplicitFileIsAnError", func(t *testing.T) {
		_, err := NewFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})

	t.Run("InvalidExplicitConfigRejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("builder:\n  backend: kubernetes\n"), 0o600))

		_, err := NewFromFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported builder.backend")
	})
}
