// Package provision drives container engines to materialize sandbox images.
//
// The provision package turns a rendered image definition into a built
// image and, on request, a single idle sandbox container an external
// controller can attach into. It supports Docker and Podman through their
// CLIs plus a dry-run engine that only renders.
//
// The package defines the Engine interface and concrete implementations
// per backend. Engines shell out through the CommandRunner seam and touch
// the filesystem through the FileSystem seam so they are testable without
// a live daemon.
//
// Usage:
//
//	engine, err := provision.NewEngine(logger, cfg, "docker")
//	result, err := engine.Build(ctx, provision.BuildRequest{
//	    Spec: image.DefaultSpec(),
//	    Tag:  "sandbox-base:dev",
//	})
package provision
