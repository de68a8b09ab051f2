package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/isdmx/boxbuild/image"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Builder BuilderConfig `mapstructure:"builder"`
	Image   ImageConfig   `mapstructure:"image"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds MCP server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// BuilderConfig holds engine configuration
type BuilderConfig struct {
	Backend         string `mapstructure:"backend"`
	BuildTimeoutSec int    `mapstructure:"build_timeout_sec"`
	BuildRetries    int    `mapstructure:"build_retries"`
	DefaultTag      string `mapstructure:"default_tag"`
	ResultsVolume   string `mapstructure:"results_volume"`
}

// ImageConfig holds the sandbox image definition
type ImageConfig struct {
	BaseImage             string            `mapstructure:"base_image"`
	BaseTag               string            `mapstructure:"base_tag"`
	ExtraPackages         []string          `mapstructure:"extra_packages"`
	PackageManager        string            `mapstructure:"package_manager"`
	PackageManagerVersion string            `mapstructure:"package_manager_version"`
	UserName              string            `mapstructure:"user_name"`
	GroupName             string            `mapstructure:"group_name"`
	HomeDir               string            `mapstructure:"home_dir"`
	ResultsDir            string            `mapstructure:"results_dir"`
	VenvDir               string            `mapstructure:"venv_dir"`
	InteractiveShellInit  bool              `mapstructure:"interactive_shell_init"`
	IdleCommand           []string          `mapstructure:"idle_command"`
	Labels                map[string]string `mapstructure:"labels"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration from the default
// search paths
func New() (*Config, error) {
	return load("")
}

// NewFromFile loads and validates the application configuration from an
// explicit file. A missing file is an error here, unlike the default
// search paths.
func NewFromFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Set default values
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("builder.backend", "docker")
	v.SetDefault("builder.build_timeout_sec", 600)
	v.SetDefault("builder.build_retries", 0)
	v.SetDefault("builder.default_tag", "boxbuild/sandbox:latest")
	v.SetDefault("builder.results_volume", "")
	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")

	// Image defaults mirror the original sandbox image
	defaults := image.DefaultSpec()
	v.SetDefault("image.base_image", defaults.BaseImage)
	v.SetDefault("image.base_tag", defaults.BaseTag)
	v.SetDefault("image.extra_packages", defaults.ExtraPackages)
	v.SetDefault("image.package_manager", defaults.PackageManager)
	v.SetDefault("image.package_manager_version", defaults.PackageManagerVersion)
	v.SetDefault("image.user_name", defaults.UserName)
	v.SetDefault("image.group_name", defaults.GroupName)
	v.SetDefault("image.home_dir", defaults.HomeDir)
	v.SetDefault("image.results_dir", defaults.ResultsDir)
	v.SetDefault("image.venv_dir", defaults.VenvDir)
	v.SetDefault("image.interactive_shell_init", defaults.InteractiveShellInit)
	v.SetDefault("image.idle_command", defaults.IdleCommand)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found on the search paths, continue with
		// defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	supportedBackends := map[string]bool{
		"docker": true,
		"podman": true,
		"dryrun": true,
	}
	if !supportedBackends[c.Builder.Backend] {
		return fmt.Errorf("unsupported builder.backend: %s", c.Builder.Backend)
	}

	if c.Builder.BuildTimeoutSec <= 0 {
		return fmt.Errorf("builder.build_timeout_sec must be positive, got: %d", c.Builder.BuildTimeoutSec)
	}

	if c.Builder.BuildRetries < 0 {
		return fmt.Errorf("builder.build_retries must not be negative, got: %d", c.Builder.BuildRetries)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
		"dpanic": true, "panic": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	if err := c.ToImageSpec().Validate(); err != nil {
		return fmt.Errorf("invalid image section: %w", err)
	}

	return nil
}

// ToImageSpec converts the image section into the builder's spec type.
func (c *Config) ToImageSpec() image.Spec {
	return image.Spec{
		BaseImage:             c.Image.BaseImage,
		BaseTag:               c.Image.BaseTag,
		ExtraPackages:         c.Image.ExtraPackages,
		PackageManager:        c.Image.PackageManager,
		PackageManagerVersion: c.Image.PackageManagerVersion,
		UserName:              c.Image.UserName,
		GroupName:             c.Image.GroupName,
		HomeDir:               c.Image.HomeDir,
		ResultsDir:            c.Image.ResultsDir,
		VenvDir:               c.Image.VenvDir,
		InteractiveShellInit:  c.Image.InteractiveShellInit,
		IdleCommand:           c.Image.IdleCommand,
		Labels:                c.Image.Labels,
	}
}

// GetBuildTimeout returns the build timeout as a duration
func (c *Config) GetBuildTimeout() time.Duration {
	return time.Duration(c.Builder.BuildTimeoutSec) * time.Second
}
