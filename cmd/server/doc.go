// Package main is the entry point for the boxbuild MCP server.
//
// The server exposes sandbox image building and provisioning over the
// Model Context Protocol: rendering the image definition, building the
// image with Docker or Podman, starting/stopping a single idle sandbox
// container, installing packages into it, and moving files in and out of
// its results directory. It supports both stdio and HTTP transports.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main
