// Package provision drives container engines to materialize sandbox images.
//
// The DryRunEngine renders the image definition without talking to any
// container engine. It is used for inspection and in tests; it refuses to
// start containers.
package provision

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/boxbuild/image"
)

// DryRunEngine implements Engine without a container daemon
type DryRunEngine struct {
	logger *zap.Logger
}

// NewDryRunEngine creates a new DryRunEngine
func NewDryRunEngine(logger *zap.Logger) *DryRunEngine {
	return &DryRunEngine{logger: logger}
}

// Build renders the definition and reports it as the build result. Nothing
// is tagged in any image store.
func (e *DryRunEngine) Build(_ context.Context, req BuildRequest) (BuildResult, error) {
	tag := req.Tag
	if tag == "" {
		tag = DefaultTag
	}

	dockerfile, err := image.Render(req.Spec)
	if err != nil {
		return BuildResult{}, fmt.Errorf("failed to render image definition: %w", err)
	}

	e.logger.Info("dry-run render completed", zap.String("image", tag))
	return BuildResult{ImageRef: tag, Dockerfile: dockerfile}, nil
}

// StartSandbox always fails: there is no engine to run the image.
func (*DryRunEngine) StartSandbox(_ context.Context, _ StartRequest) (Sandbox, error) {
	return Sandbox{}, fmt.Errorf("dry-run engine cannot start containers")
}

// StopSandbox always fails: there is nothing to stop.
func (*DryRunEngine) StopSandbox(_ context.Context, _ string) error {
	return fmt.Errorf("dry-run engine has no containers to stop")
}

// InstallPackage always fails: there is no container to install into.
func (*DryRunEngine) InstallPackage(_ context.Context, _ InstallRequest) (InstallResult, error) {
	return InstallResult{}, fmt.Errorf("dry-run engine has no containers to install into")
}

// PackageStatus always fails: there is no container to inspect.
func (*DryRunEngine) PackageStatus(_ context.Context, _ InstallRequest) (InstallResult, error) {
	return InstallResult{}, fmt.Errorf("dry-run engine has no containers to inspect")
}

// PutFile always fails: there is no container to copy into.
func (*DryRunEngine) PutFile(_ context.Context, _ CopyRequest) error {
	return fmt.Errorf("dry-run engine has no containers to copy into")
}

// FetchFile always fails: there is no container to copy from.
func (*DryRunEngine) FetchFile(_ context.Context, _ CopyRequest) error {
	return fmt.Errorf("dry-run engine has no containers to copy from")
}
