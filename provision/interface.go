package provision

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/isdmx/boxbuild/image"
)

// BuildRequest carries the image definition and the tag to build it under.
type BuildRequest struct {
	Spec image.Spec
	Tag  string
}

// BuildResult describes a completed build.
type BuildResult struct {
	// ImageRef is the reference the built image was tagged with.
	ImageRef string
	// Dockerfile is the rendered definition the engine built from.
	Dockerfile string
	// Log is the build tool's combined diagnostic output.
	Log string
}

// StartRequest describes one idle sandbox container to provision.
type StartRequest struct {
	// ImageRef is the image to run. Required.
	ImageRef string
	// Name is the container name; an engine picks a unique one when empty.
	Name string
	// ResultsDir is the in-container results path; when ResultsVolume is
	// set it is mounted there so output artifacts outlive the container.
	ResultsDir    string
	ResultsVolume string
}

// Sandbox identifies a provisioned idle container.
type Sandbox struct {
	ID       string
	Name     string
	ImageRef string
}

// InstallRequest names one package to install into a running sandbox.
// Package installation is the only sanctioned mutation of the isolated
// dependency environment after provisioning.
type InstallRequest struct {
	ContainerID string
	Package     string
	// Installer is the in-container tool driving the operation; uv when
	// empty.
	Installer string
}

// InstallResult reports the outcome of a package operation.
type InstallResult struct {
	Package   string
	Installed bool
	// Log is the installer's combined diagnostic output.
	Log string
}

// CopyRequest moves one file between the host and a running sandbox.
type CopyRequest struct {
	ContainerID string
	// LocalPath is the host-side file or directory.
	LocalPath string
	// RemotePath is the in-container path, typically under the results
	// directory.
	RemotePath string
}

// Engine builds sandbox images and provisions idle containers from them.
type Engine interface {
	Build(ctx context.Context, req BuildRequest) (BuildResult, error)
	StartSandbox(ctx context.Context, req StartRequest) (Sandbox, error)
	StopSandbox(ctx context.Context, id string) error
	InstallPackage(ctx context.Context, req InstallRequest) (InstallResult, error)
	PackageStatus(ctx context.Context, req InstallRequest) (InstallResult, error)
	PutFile(ctx context.Context, req CopyRequest) error
	FetchFile(ctx context.Context, req CopyRequest) error
}

// Config holds engine tunables.
type Config struct {
	// BuildTimeout bounds one build attempt.
	BuildTimeout time.Duration
	// BuildRetries is the number of additional attempts after a failed
	// build, for flaky package sources. Zero keeps the strict
	// fail-on-first-error behavior.
	BuildRetries int
}

// DefaultTag is used when a build request does not name one.
const DefaultTag = "boxbuild/sandbox:latest"

// FilePermission is used for files written into build contexts.
const FilePermission = 0o600

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, args []string) (stdout, stderr string, exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using actual exec commands
type RealCommandRunner struct{}

// RunCommand executes the given command with arguments
func (RealCommandRunner) RunCommand(ctx context.Context, args []string) (stdout, stderr string, exitCode int, err error) {
	if len(args) < 1 {
		return "", "", 0, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // Safe as this is controlled input

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()

	exitCode = 0
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			exitCode = exitError.ExitCode()
		} else {
			return "", "", 0, err
		}
	}

	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// FileSystem defines an interface for file system operations
type FileSystem interface {
	MkdirTemp(dir, pattern string) (string, error)
	WriteFile(filename string, data []byte, perm os.FileMode) error
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}
