// Package provision drives container engines to materialize sandbox images.
//
// The DockerEngine builds images and provisions idle sandbox containers
// through the docker CLI.
package provision

import (
	"go.uber.org/zap"
)

// DockerEngine implements Engine using Docker
type DockerEngine struct {
	cliEngine
}

// NewDockerEngine creates a new DockerEngine with default implementations and optional interfaces
func NewDockerEngine(logger *zap.Logger, config *Config, opts ...EngineOption) *DockerEngine {
	return &DockerEngine{cliEngine: newCLIEngine("docker", logger, config, opts...)}
}
