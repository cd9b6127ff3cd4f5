package cli

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	httpadapter "github.com/slipway-ci/slipway/internal/adapters/http"
	"github.com/slipway-ci/slipway/internal/config"
)

func newBuildCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the source-tagged image from the configured source",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Image == "" {
				return fmt.Errorf("config: image is required")
			}

			p, _, err := opts.newPipeline(cfg)
			if err != nil {
				return err
			}

			ref, err := p.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ref)
			return nil
		},
	}
}

func newDeployCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Start the source-tagged image as the configured container",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if err := validateDeploy(cfg); err != nil {
				return err
			}

			p, _, err := opts.newPipeline(cfg)
			if err != nil {
				return err
			}

			id, err := p.Deploy(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func validateDeploy(cfg config.Config) error {
	switch {
	case cfg.Name == "":
		return fmt.Errorf("config: name is required")
	case cfg.Image == "":
		return fmt.Errorf("config: image is required")
	case cfg.HostPort < 1 || cfg.HostPort > 65535:
		return fmt.Errorf("config: host_port %d out of range", cfg.HostPort)
	case cfg.ContainerPort < 1 || cfg.ContainerPort > 65535:
		return fmt.Errorf("config: container_port %d out of range", cfg.ContainerPort)
	}
	return nil
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Poll the deployed container until it serves the expected version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}

			p, _, err := opts.newPipeline(cfg)
			if err != nil {
				return err
			}

			result, err := p.Verify(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "verified %s=%s after %d attempt(s)\n",
				cfg.Name, cfg.ExpectedVersion, result.Attempts)
			return nil
		},
	}
}

func newPushCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Tag the source image with the release reference and push it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Image == "" {
				return fmt.Errorf("config: image is required")
			}
			if cfg.ReleaseTag == "" {
				return fmt.Errorf("config: release_tag or expected_version is required")
			}

			p, _, err := opts.newPipeline(cfg)
			if err != nil {
				return err
			}

			ref, err := p.Push(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ref)
			return nil
		},
	}
}

func newCleanupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Best-effort removal of the release container and source image",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Name == "" {
				return fmt.Errorf("config: name is required")
			}

			p, _, err := opts.newPipeline(cfg)
			if err != nil {
				return err
			}

			report := p.Cleanup(cmd.Context(), cfg)
			for _, step := range report.Steps {
				if step.OK {
					fmt.Fprintf(cmd.OutOrStdout(), "ok   %s\n", step.Name)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "skip %s: %s\n", step.Name, step.Error)
				}
			}
			// Cleanup never fails the invocation; failures were reported above.
			return nil
		},
	}
}

func newReleaseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "release",
		Short: "Run the full build, deploy, verify, push, cleanup lifecycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}

			p, _, err := opts.newPipeline(cfg)
			if err != nil {
				return err
			}

			if err := p.Release(cmd.Context(), cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released %s\n", cfg.ReleaseRef())
			return nil
		},
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Expose the release pipeline over an HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}

			p, service, err := opts.newPipeline(cfg)
			if err != nil {
				return err
			}

			app := fiber.New()
			httpadapter.NewHandler(service, p, cfg).Register(app)

			opts.log.WithField("addr", cfg.ListenAddr).Info("API listening")
			return app.Listen(cfg.ListenAddr)
		},
	}
}
