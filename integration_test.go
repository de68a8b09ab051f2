package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/boxbuild/config"
	"github.com/isdmx/boxbuild/logger"
	"github.com/isdmx/boxbuild/mcpserver"
	"github.com/isdmx/boxbuild/provision"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Transport: "stdio",
			HTTPPort:  8080,
		},
		Builder: config.BuilderConfig{
			Backend:         "dryrun", // No container engine needed for tests
			BuildTimeoutSec: 60,
			BuildRetries:    0,
			DefaultTag:      "boxbuild/sandbox:test",
		},
		Image: config.ImageConfig{
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
		Logging: config.LoggingConfig{
			Mode:  "development",
			Level: "info",
		},
	}
}

// TestIntegrationConfigLoggerEngine tests the integration between config,
// logger and provision packages
func TestIntegrationConfigLoggerEngine(t *testing.T) {
	t.Run("ConfigAndLoggerIntegration", func(t *testing.T) {
		cfg := testConfig()

		testLogger, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
		require.NoError(t, err)
		require.NotNil(t, testLogger)

		testLogger.Info("Integration test started")
		_ = testLogger.Sync()
	})

	t.Run("ConfigLoggerEngineFactoryIntegration", func(t *testing.T) {
		cfg := testConfig()

		testLogger, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
		require.NoError(t, err)

		engineConfig := &provision.Config{
			BuildTimeout: cfg.GetBuildTimeout(),
			BuildRetries: cfg.Builder.BuildRetries,
		}
		engine, err := provision.NewEngine(testLogger, engineConfig, cfg.Builder.Backend)
		require.NoError(t, err)
		require.NotNil(t, engine)
	})

	t.Run("FullMCPIntegration", func(t *testing.T) {
		cfg := testConfig()

		mcpLogger, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
		require.NoError(t, err)

		engineConfig := &provision.Config{
			BuildTimeout: cfg.GetBuildTimeout(),
			BuildRetries: cfg.Builder.BuildRetries,
		}
		engine, err := provision.NewEngine(mcpLogger, engineConfig, cfg.Builder.Backend)
		require.NoError(t, err)

		server, err := mcpserver.New(cfg, mcpLogger, engine)
		require.NoError(t, err)
		require.NotNil(t, server)
		require.NotNil(t, server.GetMCPServer())
	})
}

// TestIntegrationDryRunBuild exercises the whole definition pipeline
// through the dry-run engine
func TestIntegrationDryRunBuild(t *testing.T) {
	testLogger := zaptest.NewLogger(t)
	cfg := testConfig()

	engine := provision.NewDryRunEngine(testLogger)
	result, err := engine.Build(context.Background(), provision.BuildRequest{
		Spec: cfg.ToImageSpec(),
		Tag:  cfg.Builder.DefaultTag,
	})
	require.NoError(t, err)

	assert.Equal(t, "boxbuild/sandbox:test", result.ImageRef)
	// The contract the image must satisfy: pinned base, unprivileged
	// identity, owned results dir, venv path precedence, idle entry point.
	assert.Contains(t, result.Dockerfile, "FROM python:3.11-slim")
	assert.Contains(t, result.Dockerfile, "USER sandbox")
	assert.Contains(t, result.Dockerfile, "chown -R sandbox:sandbox /app/results")
	assert.Contains(t, result.Dockerfile, "ENV PATH=/home/sandbox/.venv/bin:$PATH")
	assert.Contains(t, result.Dockerfile, "WORKDIR /app/results")
	assert.Contains(t, result.Dockerfile, `CMD ["sleep", "infinity"]`)
}
