package provision

import (
	"fmt"

	"go.uber.org/zap"
)

// NewEngine creates an appropriate engine based on the configured backend
func NewEngine(logger *zap.Logger, config *Config, backend string) (Engine, error) {
	switch backend {
	case "docker":
		return NewDockerEngine(logger, config), nil
	case "podman":
		return NewPodmanEngine(logger, config), nil
	case "dryrun":
		return NewDryRunEngine(logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}
