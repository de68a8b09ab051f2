// Package main is the entry point for the boxbuild MCP server.
//
// The server exposes sandbox image building and provisioning over the
// Model Context Protocol: rendering the image definition, building the
// image with Docker or Podman, starting/stopping a single idle sandbox
// container, installing packages into it, and moving files in and out of
// its results directory. It supports both stdio and HTTP transports.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/boxbuild/config"
	"github.com/isdmx/boxbuild/logger"
	"github.com/isdmx/boxbuild/mcpserver"
	"github.com/isdmx/boxbuild/provision"
)

// newEngine builds the provisioning engine from the application config.
func newEngine(log *zap.Logger, cfg *config.Config) (provision.Engine, error) {
	engineConfig := &provision.Config{
		BuildTimeout: cfg.GetBuildTimeout(),
		BuildRetries: cfg.Builder.BuildRetries,
	}
	return provision.NewEngine(log, engineConfig, cfg.Builder.Backend)
}

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Provisioning engine based on config
			newEngine,

			// MCP Server
			mcpserver.New,
		),

		// Start the appropriate transport based on config
		fx.Invoke(
			func(cfg *config.Config, server *mcpserver.MCPServer) {
				switch cfg.Server.Transport {
				case "stdio":
					go func() {
						if err := server.ServeStdio(); err != nil {
							panic(err)
						}
					}()
				case "http":
					go func() {
						if err := server.ServeHTTP(); err != nil {
							panic(err)
						}
					}()
				default:
					panic("unsupported transport: " + cfg.Server.Transport)
				}
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}
