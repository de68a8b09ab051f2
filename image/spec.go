package image

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Spec is the full configuration of a sandbox image. Every value the
// original image hardcodes is a field here so that multiple sandbox
// flavors can share the same build procedure.
type Spec struct {
	// BaseImage and BaseTag pin the runtime foundation, e.g. python:3.11-slim.
	BaseImage string `yaml:"base_image"`
	BaseTag   string `yaml:"base_tag"`

	// ExtraPackages are system-level tools installed for the benefit of
	// whatever an external controller later runs inside the container.
	ExtraPackages []string `yaml:"extra_packages"`

	// PackageManager is the fast installer made available to the running
	// container. PackageManagerVersion pins it; empty means unpinned.
	PackageManager        string `yaml:"package_manager"`
	PackageManagerVersion string `yaml:"package_manager_version"`

	// UserName and GroupName form the unprivileged execution identity.
	UserName  string `yaml:"user_name"`
	GroupName string `yaml:"group_name"`

	// HomeDir is the identity's home, ResultsDir the writable output
	// directory (and runtime workdir), VenvDir the isolated dependency
	// environment root.
	HomeDir    string `yaml:"home_dir"`
	ResultsDir string `yaml:"results_dir"`
	VenvDir    string `yaml:"venv_dir"`

	// InteractiveShellInit additionally activates the venv from the
	// identity's shell rc file. Only observable in interactive sessions;
	// the PATH/VIRTUAL_ENV contract covers everything else.
	InteractiveShellInit bool `yaml:"interactive_shell_init"`

	// IdleCommand is the entry point. It must block indefinitely without
	// consuming CPU so an external controller can attach and exec.
	IdleCommand []string `yaml:"idle_command"`

	// Labels are attached to the image as-is.
	Labels map[string]string `yaml:"labels"`
}

// DefaultSpec mirrors the original sandbox image: slim Python base, uv as
// the installer, a sandbox/sandbox identity and /app/results for output.
func DefaultSpec() Spec {
	return Spec{
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
	}
}

// VenvBinDir returns the executable directory of the isolated environment,
// the path that must take search-path precedence.
func (s Spec) VenvBinDir() string {
	return path.Join(s.VenvDir, "bin")
}

// Reference returns the pinned base image reference.
func (s Spec) Reference() string {
	if s.BaseTag == "" {
		return s.BaseImage
	}
	return s.BaseImage + ":" + s.BaseTag
}

// Validate ensures the spec describes a buildable image.
func (s Spec) Validate() error {
	if s.BaseImage == "" {
		return fmt.Errorf("base_image must not be empty")
	}
	if s.BaseTag == "" {
		return fmt.Errorf("base_tag must pin a version, got empty tag")
	}
	if s.UserName == "" || s.GroupName == "" {
		return fmt.Errorf("user_name and group_name must not be empty")
	}
	if s.UserName == "root" {
		return fmt.Errorf("user_name must be unprivileged, got root")
	}
	if s.PackageManager == "" {
		return fmt.Errorf("package_manager must not be empty")
	}
	for _, p := range []struct{ name, val string }{
		{"home_dir", s.HomeDir},
		{"results_dir", s.ResultsDir},
		{"venv_dir", s.VenvDir},
	} {
		if !path.IsAbs(p.val) {
			return fmt.Errorf("%s must be an absolute path, got: %q", p.name, p.val)
		}
	}
	if len(s.IdleCommand) == 0 {
		return fmt.Errorf("idle_command must not be empty")
	}
	for _, pkg := range s.ExtraPackages {
		if strings.TrimSpace(pkg) == "" {
			return fmt.Errorf("extra_packages must not contain empty entries")
		}
	}
	return nil
}

// LoadSpecFile reads a YAML overlay and merges it over the defaults.
// Fields absent from the file keep their default values.
func LoadSpecFile(filename string) (Spec, error) {
	data, err := os.ReadFile(filename) //nolint:gosec // Operator-supplied spec path
	if err != nil {
		return Spec{}, fmt.Errorf("failed to read spec file: %w", err)
	}

	spec := DefaultSpec()
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return Spec{}, fmt.Errorf("failed to parse spec file %s: %w", filename, err)
	}

	if err := spec.Validate(); err != nil {
		return Spec{}, fmt.Errorf("invalid spec in %s: %w", filename, err)
	}
	return spec, nil
}
