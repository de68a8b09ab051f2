package image

import (
	"fmt"
	"sort"
	"strings"
)

// Step is a single build operation: a pure function from the current build
// state and the spec to a new state plus the directives it emits. Apply
// checks the step's preconditions before touching the state, so steps can
// be unit tested in isolation and a failing step aborts the whole build.
type Step struct {
	Name  string
	Apply func(st State, spec Spec) (State, []string, error)
}

// DefaultSteps returns the mandatory build sequence. Order matters:
// ownership assignment needs the identity, the privilege drop needs the
// ownership, and the entry point must be declared unprivileged.
func DefaultSteps() []Step {
	return []Step{
		BaseImageStep(),
		SystemPackagesStep(),
		PackageManagerStep(),
		CreateUserStep(),
		ResultsDirStep(),
		DropPrivilegesStep(),
		VenvStep(),
		EnvStep(),
		WorkdirStep(),
		EntrypointStep(),
	}
}

// BaseImageStep pins the runtime foundation and attaches labels.
func BaseImageStep() Step {
	return Step{
		Name: "base-image",
		Apply: func(st State, spec Spec) (State, []string, error) {
			if st.Base != "" {
				return st, nil, fmt.Errorf("base image already set to %s", st.Base)
			}

			out := st.clone()
			out.Base = spec.Reference()

			directives := []string{fmt.Sprintf("FROM %s", out.Base)}
			if len(spec.Labels) > 0 {
				keys := make([]string, 0, len(spec.Labels))
				for k := range spec.Labels {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					directives = append(directives, fmt.Sprintf("LABEL %s=%q", k, spec.Labels[k]))
				}
			}
			return out, directives, nil
		},
	}
}

// SystemPackagesStep installs the extra system tools and cleans the package
// index cache in the same layer to keep the image small. An unreachable
// package source fails this layer and with it the whole build.
func SystemPackagesStep() Step {
	return Step{
		Name: "system-packages",
		Apply: func(st State, spec Spec) (State, []string, error) {
			if st.Base == "" {
				return st, nil, fmt.Errorf("no base image selected")
			}
			if st.CurrentUser != "" {
				return st, nil, fmt.Errorf("system packages must be installed before dropping privileges, current user is %s", st.CurrentUser)
			}
			if len(spec.ExtraPackages) == 0 {
				return st, nil, nil
			}

			out := st.clone()
			out.Packages = append(out.Packages, spec.ExtraPackages...)

			directive := fmt.Sprintf(
				"RUN apt-get update && apt-get install -y --no-install-recommends %s && rm -rf /var/lib/apt/lists/*",
				strings.Join(spec.ExtraPackages, " "))
			return out, []string{directive}, nil
		},
	}
}

// PackageManagerStep installs the fast package installer so it is available
// to later build steps and to the running container.
func PackageManagerStep() Step {
	return Step{
		Name: "package-manager",
		Apply: func(st State, spec Spec) (State, []string, error) {
			if st.Base == "" {
				return st, nil, fmt.Errorf("no base image selected")
			}
			if st.CurrentUser != "" {
				return st, nil, fmt.Errorf("package manager must be installed before dropping privileges, current user is %s", st.CurrentUser)
			}

			out := st.clone()
			out.PackageManager = spec.PackageManager

			target := spec.PackageManager
			if spec.PackageManagerVersion != "" {
				target = fmt.Sprintf("%s==%s", spec.PackageManager, spec.PackageManagerVersion)
			}
			directive := fmt.Sprintf("RUN pip install --no-cache-dir %s", target)
			return out, []string{directive}, nil
		},
	}
}

// CreateUserStep creates the unprivileged execution identity. Creating an
// identity that already exists is an error, never a silent success; the
// emitted groupadd/useradd fail the image build the same way.
func CreateUserStep() Step {
	return Step{
		Name: "create-user",
		Apply: func(st State, spec Spec) (State, []string, error) {
			if st.Base == "" {
				return st, nil, fmt.Errorf("no base image selected")
			}
			if st.CurrentUser != "" {
				return st, nil, fmt.Errorf("identity creation requires build-time privileges, current user is %s", st.CurrentUser)
			}
			if st.Users[spec.UserName] {
				return st, nil, fmt.Errorf("user %s already exists", spec.UserName)
			}
			if st.Groups[spec.GroupName] {
				return st, nil, fmt.Errorf("group %s already exists", spec.GroupName)
			}

			out := st.clone()
			out.Users[spec.UserName] = true
			out.Groups[spec.GroupName] = true
			out.Dirs[spec.HomeDir] = true
			out.Owned[spec.HomeDir] = spec.UserName

			directive := fmt.Sprintf(
				"RUN groupadd --system %s && useradd --system --gid %s --create-home --home-dir %s %s",
				spec.GroupName, spec.GroupName, spec.HomeDir, spec.UserName)
			return out, []string{directive}, nil
		},
	}
}

// ResultsDirStep provisions the writable output directory and hands it to
// the execution identity recursively.
func ResultsDirStep() Step {
	return Step{
		Name: "results-dir",
		Apply: func(st State, spec Spec) (State, []string, error) {
			if !st.Users[spec.UserName] {
				return st, nil, fmt.Errorf("cannot assign ownership: user %s does not exist", spec.UserName)
			}
			if st.CurrentUser != "" {
				return st, nil, fmt.Errorf("ownership assignment requires build-time privileges, current user is %s", st.CurrentUser)
			}

			out := st.clone()
			out.Dirs[spec.ResultsDir] = true
			out.Owned[spec.ResultsDir] = spec.UserName

			directive := fmt.Sprintf(
				"RUN mkdir -p %s && chown -R %s:%s %s",
				spec.ResultsDir, spec.UserName, spec.GroupName, spec.ResultsDir)
			return out, []string{directive}, nil
		},
	}
}

// DropPrivilegesStep switches to the unprivileged identity. Every later
// step and the eventual runtime process execute as this user.
func DropPrivilegesStep() Step {
	return Step{
		Name: "drop-privileges",
		Apply: func(st State, spec Spec) (State, []string, error) {
			if !st.Users[spec.UserName] {
				return st, nil, fmt.Errorf("cannot drop privileges: user %s does not exist", spec.UserName)
			}
			if st.Owned[spec.ResultsDir] != spec.UserName {
				return st, nil, fmt.Errorf("cannot drop privileges: results dir %s is not owned by %s", spec.ResultsDir, spec.UserName)
			}

			out := st.clone()
			out.CurrentUser = spec.UserName
			return out, []string{fmt.Sprintf("USER %s", spec.UserName)}, nil
		},
	}
}

// VenvStep provisions the isolated dependency environment as the
// unprivileged user. The optional shell-rc activation only fires for
// interactive sessions; the PATH contract set by EnvStep is what governs
// the non-interactive entry point.
func VenvStep() Step {
	return Step{
		Name: "venv",
		Apply: func(st State, spec Spec) (State, []string, error) {
			if st.CurrentUser != spec.UserName {
				return st, nil, fmt.Errorf("venv must be provisioned as %s, current user is %q", spec.UserName, st.CurrentUser)
			}
			if st.PackageManager == "" {
				return st, nil, fmt.Errorf("package manager not installed")
			}

			out := st.clone()
			out.Venv = spec.VenvDir

			var directives []string
			if spec.PackageManager == "uv" {
				directives = append(directives, fmt.Sprintf("RUN uv venv %s", spec.VenvDir))
			} else {
				directives = append(directives, fmt.Sprintf("RUN python -m venv %s", spec.VenvDir))
			}
			if spec.InteractiveShellInit {
				directives = append(directives, fmt.Sprintf(
					"RUN echo 'source %s/activate' >> %s/.bashrc",
					spec.VenvBinDir(), spec.HomeDir))
			}
			return out, directives, nil
		},
	}
}

// EnvStep publishes the environment contract: VIRTUAL_ENV names the
// environment root and PATH is prepended with its bin dir so it takes
// precedence for any process started in the container.
func EnvStep() Step {
	return Step{
		Name: "environment",
		Apply: func(st State, spec Spec) (State, []string, error) {
			if st.Venv == "" {
				return st, nil, fmt.Errorf("dependency environment not provisioned")
			}

			out := st.clone()
			out.Env["VIRTUAL_ENV"] = spec.VenvDir
			out.Env["PATH"] = spec.VenvBinDir() + ":$PATH"

			directives := []string{
				fmt.Sprintf("ENV VIRTUAL_ENV=%s", spec.VenvDir),
				fmt.Sprintf("ENV PATH=%s:$PATH", spec.VenvBinDir()),
			}
			return out, directives, nil
		},
	}
}

// WorkdirStep points all subsequently started processes at the results
// directory.
func WorkdirStep() Step {
	return Step{
		Name: "workdir",
		Apply: func(st State, spec Spec) (State, []string, error) {
			if !st.Dirs[spec.ResultsDir] {
				return st, nil, fmt.Errorf("results dir %s not provisioned", spec.ResultsDir)
			}

			out := st.clone()
			out.Workdir = spec.ResultsDir
			return out, []string{fmt.Sprintf("WORKDIR %s", spec.ResultsDir)}, nil
		},
	}
}

// EntrypointStep declares the idle command. It must be declared after the
// privilege drop so the default process never runs privileged.
func EntrypointStep() Step {
	return Step{
		Name: "entrypoint",
		Apply: func(st State, spec Spec) (State, []string, error) {
			if st.CurrentUser == "" {
				return st, nil, fmt.Errorf("entry point must run unprivileged, privileges were never dropped")
			}

			out := st.clone()
			out.Entrypoint = append([]string(nil), spec.IdleCommand...)

			quoted := make([]string, len(spec.IdleCommand))
			for i, arg := range spec.IdleCommand {
				quoted[i] = fmt.Sprintf("%q", arg)
			}
			return out, []string{fmt.Sprintf("CMD [%s]", strings.Join(quoted, ", "))}, nil
		},
	}
}
