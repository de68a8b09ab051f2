// Package main is the boxbuild command line interface.
//
// The CLI drives the same builder as the MCP server without a protocol in
// front: render the sandbox image definition, build the image, start or
// stop an idle sandbox container, and install packages into a started
// one.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/isdmx/boxbuild/config"
	"github.com/isdmx/boxbuild/image"
	"github.com/isdmx/boxbuild/logger"
	"github.com/isdmx/boxbuild/provision"
)

var (
	configFile string
	specFile   string
	backend    string
)

func main() {
	root := &cobra.Command{
		Use:           "boxbuild",
		Short:         "Build and provision sandbox container images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to an explicit config file")
	root.PersistentFlags().StringVar(&specFile, "spec", "", "YAML image spec overlay (defaults come from config)")
	root.PersistentFlags().StringVar(&backend, "backend", "", "engine backend: docker, podman or dryrun (overrides config)")

	root.AddCommand(renderCmd(), buildCmd(), upCmd(), downCmd(), installCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads config and constructs the logger and engine shared by the
// subcommands.
func setup() (*config.Config, *zap.Logger, provision.Engine, error) {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.NewFromFile(configFile)
	} else {
		cfg, err = config.New()
	}
	if err != nil {
		return nil, nil, nil, err
	}
	if backend != "" {
		cfg.Builder.Backend = backend
	}

	log, err := logger.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	engineConfig := &provision.Config{
		BuildTimeout: cfg.GetBuildTimeout(),
		BuildRetries: cfg.Builder.BuildRetries,
	}
	engine, err := provision.NewEngine(log, engineConfig, cfg.Builder.Backend)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, engine, nil
}

// resolveSpec returns the image spec: the config's image section, or the
// --spec YAML overlay when given.
func resolveSpec(cfg *config.Config) (image.Spec, error) {
	if specFile != "" {
		return image.LoadSpecFile(specFile)
	}
	return cfg.ToImageSpec(), nil
}

func renderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Print the rendered Dockerfile for the configured sandbox image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, _, err := setup()
			if err != nil {
				return err
			}
			spec, err := resolveSpec(cfg)
			if err != nil {
				return err
			}

			dockerfile, err := image.Render(spec)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), dockerfile)
			return nil
		},
	}
}

func buildCmd() *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the sandbox image with the configured engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, engine, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			spec, err := resolveSpec(cfg)
			if err != nil {
				return err
			}
			if tag == "" {
				tag = cfg.Builder.DefaultTag
			}

			result, err := engine.Build(cmd.Context(), provision.BuildRequest{Spec: spec, Tag: tag})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.ImageRef)
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "tag for the built image (defaults to the configured tag)")
	return cmd
}

func upCmd() *cobra.Command {
	var imageRef, name string
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start one idle sandbox container from a built image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, engine, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if imageRef == "" {
				imageRef = cfg.Builder.DefaultTag
			}

			box, err := engine.StartSandbox(cmd.Context(), provision.StartRequest{
				ImageRef:      imageRef,
				Name:          name,
				ResultsDir:    cfg.Image.ResultsDir,
				ResultsVolume: cfg.Builder.ResultsVolume,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), box.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&imageRef, "image", "", "image reference to run (defaults to the configured tag)")
	cmd.Flags().StringVar(&name, "name", "", "container name (generated when omitted)")
	return cmd
}

func downCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down <container-id>",
		Short: "Stop a started sandbox container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, engine, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return engine.StopSandbox(cmd.Context(), args[0])
		},
	}
}

func installCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install <container-id> <package>",
		Short: "Install a package into a started sandbox's dependency environment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, engine, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			result, err := engine.InstallPackage(cmd.Context(), provision.InstallRequest{
				ContainerID: args[0],
				Package:     args[1],
				Installer:   cfg.Image.PackageManager,
			})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), result.Log)
			return nil
		},
	}
}
