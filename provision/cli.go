package provision

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/boxbuild/image"
)

// cliEngine is the shared implementation behind the Docker and Podman
// engines. Both speak the same build/run/stop CLI dialect; only the binary
// differs.
type cliEngine struct {
	binary    string
	logger    *zap.Logger
	config    *Config
	cmdRunner CommandRunner
	fs        FileSystem
}

// EngineOption defines a functional option for the CLI-backed engines
type EngineOption func(*cliEngine)

// WithCommandRunner sets the CommandRunner for an engine
func WithCommandRunner(cmdRunner CommandRunner) EngineOption {
	return func(e *cliEngine) {
		e.cmdRunner = cmdRunner
	}
}

// WithFileSystem sets the FileSystem for an engine
func WithFileSystem(fs FileSystem) EngineOption {
	return func(e *cliEngine) {
		e.fs = fs
	}
}

func newCLIEngine(binary string, logger *zap.Logger, config *Config, opts ...EngineOption) cliEngine {
	engine := cliEngine{
		binary:    binary,
		logger:    logger,
		config:    config,
		cmdRunner: &RealCommandRunner{}, // Default implementation
		fs:        &RealFileSystem{},    // Default implementation
	}

	for _, opt := range opts {
		opt(&engine)
	}

	return engine
}

// Build renders the image definition into a temporary build context and
// drives `<binary> build`. A failed build aborts with the tool's stderr
// attached; there is no partial-success mode. Retries, when configured,
// repeat the whole build command for flaky package sources.
func (e *cliEngine) Build(ctx context.Context, req BuildRequest) (BuildResult, error) {
	tag := req.Tag
	if tag == "" {
		tag = DefaultTag
	}

	dockerfile, err := image.Render(req.Spec)
	if err != nil {
		return BuildResult{}, fmt.Errorf("failed to render image definition: %w", err)
	}

	ctxDir, err := e.fs.MkdirTemp("", "boxbuild-ctx-*")
	if err != nil {
		return BuildResult{}, fmt.Errorf("failed to create build context: %w", err)
	}
	defer func() {
		if rmErr := e.fs.RemoveAll(ctxDir); rmErr != nil {
			e.logger.Error("failed to remove build context", zap.String("path", ctxDir), zap.Error(rmErr))
		}
	}()

	dockerfilePath := filepath.Join(ctxDir, "Dockerfile")
	if writeErr := e.fs.WriteFile(dockerfilePath, []byte(dockerfile), FilePermission); writeErr != nil {
		return BuildResult{}, fmt.Errorf("failed to write Dockerfile: %w", writeErr)
	}

	cmdArgs := []string{
		e.binary, "build",
		"--tag", tag,
		"--file", dockerfilePath,
		ctxDir,
	}

	attempts := e.config.BuildRetries + 1
	var stdout, stderr string
	var exitCode int
	for attempt := 1; attempt <= attempts; attempt++ {
		buildCtx, cancel := context.WithTimeout(ctx, e.config.BuildTimeout)
		stdout, stderr, exitCode, err = e.cmdRunner.RunCommand(buildCtx, cmdArgs)
		timedOut := buildCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
		cancel()

		// A dead parent context ends the build outright; retrying against
		// it would only burn attempts.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return BuildResult{}, fmt.Errorf("%s build aborted: %w", e.binary, ctxErr)
		}
		if timedOut {
			return BuildResult{}, fmt.Errorf("%s build timed out after %s", e.binary, e.config.BuildTimeout)
		}
		if err != nil {
			return BuildResult{}, fmt.Errorf("failed to run %s build: %w", e.binary, err)
		}
		if exitCode == 0 {
			e.logger.Info("image built",
				zap.String("engine", e.binary),
				zap.String("image", tag),
				zap.Int("attempt", attempt))
			return BuildResult{ImageRef: tag, Dockerfile: dockerfile, Log: stdout + stderr}, nil
		}

		e.logger.Warn("image build attempt failed",
			zap.String("engine", e.binary),
			zap.String("image", tag),
			zap.Int("attempt", attempt),
			zap.Int("exit_code", exitCode))
	}

	return BuildResult{}, fmt.Errorf("%s build failed with exit code %d: %s",
		e.binary, exitCode, strings.TrimSpace(stderr))
}

// StartSandbox runs the image detached. The image's idle entry point keeps
// the container alive without consuming CPU until it is stopped; all real
// work is injected by an external controller via exec-style attach.
func (e *cliEngine) StartSandbox(ctx context.Context, req StartRequest) (Sandbox, error) {
	if req.ImageRef == "" {
		return Sandbox{}, fmt.Errorf("image reference is required")
	}

	name := req.Name
	if name == "" {
		name = "sandbox-" + uuid.NewString()
	}

	cmdArgs := []string{
		e.binary, "run",
		"--detach",
		"--rm", // Remove container once stopped
		"--name", name,
	}
	if req.ResultsVolume != "" && req.ResultsDir != "" {
		cmdArgs = append(cmdArgs, "--volume", fmt.Sprintf("%s:%s", req.ResultsVolume, req.ResultsDir))
	}
	cmdArgs = append(cmdArgs, req.ImageRef)

	stdout, stderr, exitCode, err := e.cmdRunner.RunCommand(ctx, cmdArgs)
	if err != nil {
		return Sandbox{}, fmt.Errorf("failed to run %s: %w", e.binary, err)
	}
	if exitCode != 0 {
		return Sandbox{}, fmt.Errorf("%s run failed with exit code %d: %s",
			e.binary, exitCode, strings.TrimSpace(stderr))
	}

	id := strings.TrimSpace(stdout)
	if id == "" {
		return Sandbox{}, fmt.Errorf("%s returned no container id", e.binary)
	}

	e.logger.Info("sandbox started",
		zap.String("engine", e.binary),
		zap.String("container", name),
		zap.String("image", req.ImageRef))

	return Sandbox{ID: id, Name: name, ImageRef: req.ImageRef}, nil
}

// StopSandbox stops a provisioned container. Because containers are started
// with --rm, stopping also removes them.
func (e *cliEngine) StopSandbox(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("container id is required")
	}

	_, stderr, exitCode, err := e.cmdRunner.RunCommand(ctx, []string{e.binary, "stop", id})
	if err != nil {
		return fmt.Errorf("failed to run %s stop: %w", e.binary, err)
	}
	if exitCode != 0 {
		return fmt.Errorf("%s stop failed with exit code %d: %s",
			e.binary, exitCode, strings.TrimSpace(stderr))
	}

	e.logger.Info("sandbox stopped", zap.String("engine", e.binary), zap.String("container", id))
	return nil
}

// installerCommand maps the in-container installer to its command prefix.
func installerCommand(installer string) ([]string, error) {
	switch installer {
	case "", "uv":
		return []string{"uv", "pip"}, nil
	case "pip":
		return []string{"pip"}, nil
	default:
		return nil, fmt.Errorf("unsupported installer: %s", installer)
	}
}

// validatePackageName rejects names that would be parsed as installer
// flags or extra arguments.
func validatePackageName(pkg string) error {
	if pkg == "" {
		return fmt.Errorf("package name is required")
	}
	if strings.HasPrefix(pkg, "-") {
		return fmt.Errorf("invalid package name: %s", pkg)
	}
	if strings.ContainsAny(pkg, " \t\n") {
		return fmt.Errorf("invalid package name: %q", pkg)
	}
	return nil
}

// InstallPackage installs one package into the sandbox's dependency
// environment via `<binary> exec`. The install runs as the container's
// unprivileged user and targets the venv on its PATH.
func (e *cliEngine) InstallPackage(ctx context.Context, req InstallRequest) (InstallResult, error) {
	if req.ContainerID == "" {
		return InstallResult{}, fmt.Errorf("container id is required")
	}
	if err := validatePackageName(req.Package); err != nil {
		return InstallResult{}, err
	}
	tool, err := installerCommand(req.Installer)
	if err != nil {
		return InstallResult{}, err
	}

	cmdArgs := append([]string{e.binary, "exec", req.ContainerID}, tool...)
	cmdArgs = append(cmdArgs, "install", req.Package)

	stdout, stderr, exitCode, err := e.cmdRunner.RunCommand(ctx, cmdArgs)
	if err != nil {
		return InstallResult{}, fmt.Errorf("failed to run %s exec: %w", e.binary, err)
	}
	if exitCode != 0 {
		return InstallResult{}, fmt.Errorf("package install failed with exit code %d: %s",
			exitCode, strings.TrimSpace(stderr))
	}

	e.logger.Info("package installed",
		zap.String("engine", e.binary),
		zap.String("container", req.ContainerID),
		zap.String("package", req.Package))

	return InstallResult{Package: req.Package, Installed: true, Log: stdout + stderr}, nil
}

// PackageStatus reports whether a package is present in the sandbox's
// dependency environment. A missing package is a result, not an error.
func (e *cliEngine) PackageStatus(ctx context.Context, req InstallRequest) (InstallResult, error) {
	if req.ContainerID == "" {
		return InstallResult{}, fmt.Errorf("container id is required")
	}
	if err := validatePackageName(req.Package); err != nil {
		return InstallResult{}, err
	}
	tool, err := installerCommand(req.Installer)
	if err != nil {
		return InstallResult{}, err
	}

	cmdArgs := append([]string{e.binary, "exec", req.ContainerID}, tool...)
	cmdArgs = append(cmdArgs, "show", req.Package)

	stdout, stderr, exitCode, err := e.cmdRunner.RunCommand(ctx, cmdArgs)
	if err != nil {
		return InstallResult{}, fmt.Errorf("failed to run %s exec: %w", e.binary, err)
	}

	return InstallResult{
		Package:   req.Package,
		Installed: exitCode == 0,
		Log:       stdout + stderr,
	}, nil
}

// PutFile copies a host file into the running sandbox via `<binary> cp`.
// Copying into the results directory keeps the file writable by the
// sandbox user.
func (e *cliEngine) PutFile(ctx context.Context, req CopyRequest) error {
	if req.ContainerID == "" {
		return fmt.Errorf("container id is required")
	}
	if req.LocalPath == "" {
		return fmt.Errorf("local path is required")
	}
	if req.RemotePath == "" {
		return fmt.Errorf("remote path is required")
	}

	cmdArgs := []string{e.binary, "cp", req.LocalPath, req.ContainerID + ":" + req.RemotePath}
	_, stderr, exitCode, err := e.cmdRunner.RunCommand(ctx, cmdArgs)
	if err != nil {
		return fmt.Errorf("failed to run %s cp: %w", e.binary, err)
	}
	if exitCode != 0 {
		return fmt.Errorf("%s cp failed with exit code %d: %s",
			e.binary, exitCode, strings.TrimSpace(stderr))
	}

	e.logger.Info("file uploaded",
		zap.String("engine", e.binary),
		zap.String("container", req.ContainerID),
		zap.String("dest", req.RemotePath))
	return nil
}

// FetchFile copies a result file out of the running sandbox via
// `<binary> cp`. An empty LocalPath fetches into the current directory.
func (e *cliEngine) FetchFile(ctx context.Context, req CopyRequest) error {
	if req.ContainerID == "" {
		return fmt.Errorf("container id is required")
	}
	if req.RemotePath == "" {
		return fmt.Errorf("remote path is required")
	}

	local := req.LocalPath
	if local == "" {
		local = "."
	}

	cmdArgs := []string{e.binary, "cp", req.ContainerID + ":" + req.RemotePath, local}
	_, stderr, exitCode, err := e.cmdRunner.RunCommand(ctx, cmdArgs)
	if err != nil {
		return fmt.Errorf("failed to run %s cp: %w", e.binary, err)
	}
	if exitCode != 0 {
		return fmt.Errorf("%s cp failed with exit code %d: %s",
			e.binary, exitCode, strings.TrimSpace(stderr))
	}

	e.logger.Info("file fetched",
		zap.String("engine", e.binary),
		zap.String("container", req.ContainerID),
		zap.String("source", req.RemotePath))
	return nil
}
