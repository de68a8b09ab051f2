// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the sandbox image builder over MCP using
// the mark3labs/mcp-go library. It registers tools to render the image
// definition, build the image, start or stop a single idle sandbox
// container, install packages into its dependency environment, and move
// files in and out of its results directory.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/boxbuild/config"
	"github.com/isdmx/boxbuild/image"
	"github.com/isdmx/boxbuild/provision"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	engine    provision.Engine
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, engine provision.Engine) (*MCPServer, error) {
	s := &MCPServer{
		config: cfg,
		logger: logger,
		engine: engine,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.String("builder.backend", s.config.Builder.Backend),
		zap.Int("builder.build_timeout_sec", s.config.Builder.BuildTimeoutSec),
		zap.Int("builder.build_retries", s.config.Builder.BuildRetries),
		zap.String("builder.default_tag", s.config.Builder.DefaultTag),
		zap.String("image.base", s.config.ToImageSpec().Reference()),
		zap.String("image.user", s.config.Image.UserName),
		zap.String("image.results_dir", s.config.Image.ResultsDir),
	)

	s.mcpServer = server.NewMCPServer("boxbuild", "A sandbox image builder and provisioner")

	s.registerTools()

	return s, nil
}

// registerTools registers the provisioning tools
func (s *MCPServer) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "render_dockerfile",
		Description: "Render the configured sandbox image definition as a Dockerfile without building it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"base_tag": map[string]any{
					"type":        "string",
					"description": "Override the pinned base image tag (optional)",
				},
				"user_name": map[string]any{
					"type":        "string",
					"description": "Override the unprivileged user and group name (optional)",
				},
			},
		},
	}, s.handleRenderDockerfile)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "build_sandbox_image",
		Description: "Build the sandbox image with the configured engine and return its reference",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"tag": map[string]any{
					"type":        "string",
					"description": "Tag for the built image (optional, defaults to the configured tag)",
				},
			},
		},
	}, s.handleBuildSandboxImage)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "start_sandbox",
		Description: "Start one idle sandbox container from a built image; attach with exec to run commands",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"image": map[string]any{
					"type":        "string",
					"description": "Image reference to run (optional, defaults to the configured tag)",
				},
				"name": map[string]any{
					"type":        "string",
					"description": "Container name (optional, generated when omitted)",
				},
			},
		},
	}, s.handleStartSandbox)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "stop_sandbox",
		Description: "Stop a started sandbox container. Parameters: container_id (string)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"container_id": map[string]any{
					"type":        "string",
					"description": "Container id or name returned by start_sandbox",
				},
			},
			Required: []string{"container_id"},
		},
	}, s.handleStopSandbox)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "install_package",
		Description: "Install a Python package into a started sandbox's dependency environment",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"container_id": map[string]any{
					"type":        "string",
					"description": "Container id or name returned by start_sandbox",
				},
				"package_name": map[string]any{
					"type":        "string",
					"description": "Package to install, e.g. numpy or numpy==2.1.0",
				},
			},
			Required: []string{"container_id", "package_name"},
		},
	}, s.handleInstallPackage)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "check_package",
		Description: "Check whether a Python package is installed in a started sandbox",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"container_id": map[string]any{
					"type":        "string",
					"description": "Container id or name returned by start_sandbox",
				},
				"package_name": map[string]any{
					"type":        "string",
					"description": "Package to look up",
				},
			},
			Required: []string{"container_id", "package_name"},
		},
	}, s.handleCheckPackage)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "put_file",
		Description: "Upload a local file into a started sandbox, by default into its results directory",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"container_id": map[string]any{
					"type":        "string",
					"description": "Container id or name returned by start_sandbox",
				},
				"local_path": map[string]any{
					"type":        "string",
					"description": "Path of the file on this host",
				},
				"dest_path": map[string]any{
					"type":        "string",
					"description": "Target path inside the sandbox (optional, defaults to the results directory)",
				},
			},
			Required: []string{"container_id", "local_path"},
		},
	}, s.handlePutFile)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "fetch_file",
		Description: "Download a result file from a started sandbox to this host",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"container_id": map[string]any{
					"type":        "string",
					"description": "Container id or name returned by start_sandbox",
				},
				"file_path": map[string]any{
					"type":        "string",
					"description": "Absolute path of the file inside the sandbox, e.g. /app/results/plot.png",
				},
				"local_path": map[string]any{
					"type":        "string",
					"description": "Host path to copy to (optional, defaults to the current directory)",
				},
			},
			Required: []string{"container_id", "file_path"},
		},
	}, s.handleFetchFile)
}

// handleRenderDockerfile handles the render_dockerfile tool
func (s *MCPServer) handleRenderDockerfile(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	spec := s.config.ToImageSpec()
	if tag := request.GetString("base_tag", ""); tag != "" {
		spec.BaseTag = tag
	}
	if user := request.GetString("user_name", ""); user != "" {
		spec.UserName = user
		spec.GroupName = user
	}

	dockerfile, err := image.Render(spec)
	if err != nil {
		s.logger.Error("render failed", zap.Error(err))
		return errorResult(fmt.Sprintf("Render failed: %v", err)), nil
	}

	return textResult(dockerfile), nil
}

// handleBuildSandboxImage handles the build_sandbox_image tool
func (s *MCPServer) handleBuildSandboxImage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag := request.GetString("tag", s.config.Builder.DefaultTag)

	s.logger.Info("image build requested", zap.String("tag", tag))

	result, err := s.engine.Build(ctx, provision.BuildRequest{
		Spec: s.config.ToImageSpec(),
		Tag:  tag,
	})
	if err != nil {
		s.logger.Error("image build failed", zap.Error(err), zap.String("tag", tag))
		return errorResult(fmt.Sprintf("Build failed: %v", err)), nil
	}

	s.logger.Info("image build completed", zap.String("image", result.ImageRef))

	return textResult(fmt.Sprintf(`{"image":%q}`, result.ImageRef)), nil
}

// handleStartSandbox handles the start_sandbox tool
func (s *MCPServer) handleStartSandbox(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	imageRef := request.GetString("image", s.config.Builder.DefaultTag)
	name := request.GetString("name", "")

	box, err := s.engine.StartSandbox(ctx, provision.StartRequest{
		ImageRef:      imageRef,
		Name:          name,
		ResultsDir:    s.config.Image.ResultsDir,
		ResultsVolume: s.config.Builder.ResultsVolume,
	})
	if err != nil {
		s.logger.Error("sandbox start failed", zap.Error(err), zap.String("image", imageRef))
		return errorResult(fmt.Sprintf("Start failed: %v", err)), nil
	}

	s.logger.Info("sandbox provisioned",
		zap.String("container", box.Name),
		zap.String("image", box.ImageRef))

	return textResult(fmt.Sprintf(`{"container_id":%q,"name":%q,"image":%q}`,
		box.ID, box.Name, box.ImageRef)), nil
}

// handleStopSandbox handles the stop_sandbox tool
func (s *MCPServer) handleStopSandbox(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("container_id")
	if err != nil {
		return nil, fmt.Errorf("container_id parameter is required: %w", err)
	}

	if err := s.engine.StopSandbox(ctx, id); err != nil {
		s.logger.Error("sandbox stop failed", zap.Error(err), zap.String("container", id))
		return errorResult(fmt.Sprintf("Stop failed: %v", err)), nil
	}

	return textResult(fmt.Sprintf(`{"stopped":%q}`, id)), nil
}

// handleInstallPackage handles the install_package tool
func (s *MCPServer) handleInstallPackage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("container_id")
	if err != nil {
		return nil, fmt.Errorf("container_id parameter is required: %w", err)
	}
	pkg, err := request.RequireString("package_name")
	if err != nil {
		return nil, fmt.Errorf("package_name parameter is required: %w", err)
	}

	result, err := s.engine.InstallPackage(ctx, provision.InstallRequest{
		ContainerID: id,
		Package:     pkg,
		Installer:   s.config.Image.PackageManager,
	})
	if err != nil {
		s.logger.Error("package install failed", zap.Error(err),
			zap.String("container", id), zap.String("package", pkg))
		return errorResult(fmt.Sprintf("Install failed: %v", err)), nil
	}

	return textResult(fmt.Sprintf(`{"package":%q,"installed":%t}`, result.Package, result.Installed)), nil
}

// handleCheckPackage handles the check_package tool
func (s *MCPServer) handleCheckPackage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("container_id")
	if err != nil {
		return nil, fmt.Errorf("container_id parameter is required: %w", err)
	}
	pkg, err := request.RequireString("package_name")
	if err != nil {
		return nil, fmt.Errorf("package_name parameter is required: %w", err)
	}

	result, err := s.engine.PackageStatus(ctx, provision.InstallRequest{
		ContainerID: id,
		Package:     pkg,
		Installer:   s.config.Image.PackageManager,
	})
	if err != nil {
		s.logger.Error("package status check failed", zap.Error(err),
			zap.String("container", id), zap.String("package", pkg))
		return errorResult(fmt.Sprintf("Check failed: %v", err)), nil
	}

	return textResult(fmt.Sprintf(`{"package":%q,"installed":%t}`, result.Package, result.Installed)), nil
}

// handlePutFile handles the put_file tool
func (s *MCPServer) handlePutFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("container_id")
	if err != nil {
		return nil, fmt.Errorf("container_id parameter is required: %w", err)
	}
	local, err := request.RequireString("local_path")
	if err != nil {
		return nil, fmt.Errorf("local_path parameter is required: %w", err)
	}
	dest := request.GetString("dest_path", s.config.Image.ResultsDir)

	if err := s.engine.PutFile(ctx, provision.CopyRequest{
		ContainerID: id,
		LocalPath:   local,
		RemotePath:  dest,
	}); err != nil {
		s.logger.Error("file upload failed", zap.Error(err),
			zap.String("container", id), zap.String("local", local))
		return errorResult(fmt.Sprintf("Upload failed: %v", err)), nil
	}

	return textResult(fmt.Sprintf(`{"uploaded":%q,"dest":%q}`, local, dest)), nil
}

// handleFetchFile handles the fetch_file tool
func (s *MCPServer) handleFetchFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("container_id")
	if err != nil {
		return nil, fmt.Errorf("container_id parameter is required: %w", err)
	}
	remote, err := request.RequireString("file_path")
	if err != nil {
		return nil, fmt.Errorf("file_path parameter is required: %w", err)
	}
	local := request.GetString("local_path", ".")

	if err := s.engine.FetchFile(ctx, provision.CopyRequest{
		ContainerID: id,
		LocalPath:   local,
		RemotePath:  remote,
	}); err != nil {
		s.logger.Error("file fetch failed", zap.Error(err),
			zap.String("container", id), zap.String("file", remote))
		return errorResult(fmt.Sprintf("Fetch failed: %v", err)), nil
	}

	return textResult(fmt.Sprintf(`{"fetched":%q,"to":%q}`, remote, local)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
		IsError: true,
	}
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
