// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the image builder and sandbox provisioner
// as MCP tools over stdio or streamable HTTP transports:
//
//   - render_dockerfile: render the configured image definition
//   - build_sandbox_image: build and tag the image
//   - start_sandbox: provision one idle container from a built image
//   - stop_sandbox: stop (and thereby remove) a provisioned container
//   - install_package: install a package into a sandbox's environment
//   - check_package: report whether a package is installed
//   - put_file: upload a host file into the sandbox's results directory
//   - fetch_file: download a result file from the sandbox
//
// Workload execution inside a started sandbox is left to the external
// controller that attaches into it.
package mcpserver
