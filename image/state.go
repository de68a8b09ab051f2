package image

// State is the build-time image state a step operates on. Steps never
// mutate their input; they work on a clone and return it.
type State struct {
	// Base is the pinned foundation reference, empty until the base step ran.
	Base string

	// Users and Groups are the identities created so far.
	Users  map[string]bool
	Groups map[string]bool

	// Dirs are directories known to exist; Owned maps a directory to the
	// user owning it.
	Dirs  map[string]bool
	Owned map[string]string

	// Packages are the system packages installed so far.
	Packages []string

	// PackageManager is set once the installer is available to later steps.
	PackageManager string

	// CurrentUser is the identity subsequent steps and the runtime process
	// execute as. Empty means the build-time privileged identity (root).
	CurrentUser string

	// Venv is the isolated dependency environment root, empty until
	// provisioned.
	Venv string

	// Env, Workdir and Entrypoint are the runtime process contract.
	Env        map[string]string
	Workdir    string
	Entrypoint []string
}

// NewState returns the empty pre-build state.
func NewState() State {
	return State{
		Users:  map[string]bool{},
		Groups: map[string]bool{},
		Dirs:   map[string]bool{},
		Owned:  map[string]string{},
		Env:    map[string]string{},
	}
}

// clone deep-copies the state so a failing step leaves its input untouched.
func (st State) clone() State {
	out := st
	out.Users = make(map[string]bool, len(st.Users))
	for k, v := range st.Users {
		out.Users[k] = v
	}
	out.Groups = make(map[string]bool, len(st.Groups))
	for k, v := range st.Groups {
		out.Groups[k] = v
	}
	out.Dirs = make(map[string]bool, len(st.Dirs))
	for k, v := range st.Dirs {
		out.Dirs[k] = v
	}
	out.Owned = make(map[string]string, len(st.Owned))
	for k, v := range st.Owned {
		out.Owned[k] = v
	}
	out.Env = make(map[string]string, len(st.Env))
	for k, v := range st.Env {
		out.Env[k] = v
	}
	out.Packages = append([]string(nil), st.Packages...)
	out.Entrypoint = append([]string(nil), st.Entrypoint...)
	return out
}
