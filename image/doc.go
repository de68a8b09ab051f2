// Package image models the sandbox image definition.
//
// The image package describes the sandbox container image as an explicit
// Spec plus an ordered Plan of build steps. Each step is a pure function
// from the current build State to a new State and the container-file
// directives it emits, with its preconditions checked up front. Executing
// the default plan and rendering it yields a deterministic Dockerfile that
// a provisioning engine feeds to docker or podman.
//
// Usage:
//
//	spec := image.DefaultSpec()
//	dockerfile, err := image.Render(spec)
package image
