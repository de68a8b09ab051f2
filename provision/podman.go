// Package provision drives container engines to materialize sandbox images.
//
// The PodmanEngine builds images and provisions idle sandbox containers
// through the podman CLI, which shares the build/run/stop dialect with
// Docker.
package provision

import (
	"go.uber.org/zap"
)

// PodmanEngine implements Engine using Podman
type PodmanEngine struct {
	cliEngine
}

// NewPodmanEngine creates a new PodmanEngine with default implementations and optional interfaces
func NewPodmanEngine(logger *zap.Logger, config *Config, opts ...EngineOption) *PodmanEngine {
	return &PodmanEngine{cliEngine: newCLIEngine("podman", logger, config, opts...)}
}
