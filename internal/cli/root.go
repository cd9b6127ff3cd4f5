// Package cli wires the release pipeline into cobra commands. Flags override
// values loaded from the config file and SLIPWAY_ environment variables.
package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/slipway-ci/slipway/internal/adapters/builder"
	"github.com/slipway-ci/slipway/internal/adapters/docker"
	"github.com/slipway-ci/slipway/internal/adapters/probe"
	"github.com/slipway-ci/slipway/internal/config"
	"github.com/slipway-ci/slipway/internal/core/pipeline"
	"github.com/slipway-ci/slipway/internal/core/ports"
	"github.com/slipway-ci/slipway/internal/core/verify"
)

type rootOptions struct {
	cfgPath string
	verbose bool

	name            string
	image           string
	source          string
	expectedVersion string
	host            string
	hostPort        int
	containerPort   int
	healthPath      string
	maxAttempts     int
	delaySeconds    int
	failFast        bool
	registry        string
	releaseTag      string
	listenAddr      string

	log *logrus.Logger
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	root, _ := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{log: logrus.New()}

	root := &cobra.Command{
		Use:          "slipway",
		Short:        "Build, deploy, verify, and publish container releases",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				opts.log.SetLevel(logrus.DebugLevel)
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.cfgPath, "config", "c", "", "path to config file (default ./slipway.yaml)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&opts.name, "name", "", "container name")
	pf.StringVar(&opts.image, "image", "", "image repository name")
	pf.StringVar(&opts.source, "source", "", "build source: git URL or local directory")
	pf.StringVar(&opts.expectedVersion, "expected-version", "", "version the health endpoint must report")
	pf.StringVar(&opts.host, "host", "", "host the deployed container is reachable on")
	pf.IntVar(&opts.hostPort, "host-port", 0, "host port the container port is published on")
	pf.IntVar(&opts.containerPort, "container-port", 0, "port the application listens on inside the container")
	pf.StringVar(&opts.healthPath, "health-path", "", "health endpoint path")
	pf.IntVar(&opts.maxAttempts, "max-attempts", 0, "verification attempt budget")
	pf.IntVar(&opts.delaySeconds, "delay", 0, "seconds between verification attempts")
	pf.BoolVar(&opts.failFast, "fail-fast-on-mismatch", false, "abort verification on the first version mismatch")
	pf.StringVar(&opts.registry, "registry", "", "registry prefix to push to")
	pf.StringVar(&opts.releaseTag, "release-tag", "", "tag to publish (defaults to the expected version)")
	pf.StringVar(&opts.listenAddr, "listen", "", "HTTP API listen address")

	root.AddCommand(
		newBuildCmd(opts),
		newDeployCmd(opts),
		newVerifyCmd(opts),
		newPushCmd(opts),
		newCleanupCmd(opts),
		newReleaseCmd(opts),
		newServeCmd(opts),
	)
	return root, opts
}

// load layers explicitly set flags over the file/env configuration.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.cfgPath)
	if err != nil {
		return config.Config{}, err
	}

	pf := cmd.Root().PersistentFlags()
	if pf.Changed("name") {
		cfg.Name = o.name
	}
	if pf.Changed("image") {
		cfg.Image = o.image
	}
	if pf.Changed("source") {
		cfg.Source = o.source
	}
	if pf.Changed("expected-version") {
		cfg.ExpectedVersion = o.expectedVersion
	}
	if pf.Changed("host") {
		cfg.Host = o.host
	}
	if pf.Changed("host-port") {
		cfg.HostPort = o.hostPort
	}
	if pf.Changed("container-port") {
		cfg.ContainerPort = o.containerPort
	}
	if pf.Changed("health-path") {
		cfg.HealthPath = o.healthPath
	}
	if pf.Changed("max-attempts") {
		cfg.MaxAttempts = o.maxAttempts
	}
	if pf.Changed("delay") {
		cfg.DelaySeconds = o.delaySeconds
	}
	if pf.Changed("fail-fast-on-mismatch") {
		cfg.FailFastOnMismatch = o.failFast
	}
	if pf.Changed("registry") {
		cfg.Registry = o.registry
	}
	if pf.Changed("release-tag") {
		cfg.ReleaseTag = o.releaseTag
	}
	if pf.Changed("listen") {
		cfg.ListenAddr = o.listenAddr
	}
	if cfg.ReleaseTag == "" {
		cfg.ReleaseTag = cfg.ExpectedVersion
	}
	return cfg, nil
}

// newPipeline assembles the adapters behind the pipeline for one invocation.
func (o *rootOptions) newPipeline(cfg config.Config) (*pipeline.Pipeline, ports.ContainerService, error) {
	dockerAdapter, err := docker.NewAdapter(docker.RegistryAuth{
		Username:      cfg.RegistryUsername,
		Password:      cfg.RegistryPassword,
		ServerAddress: cfg.Registry,
	})
	if err != nil {
		return nil, nil, err
	}

	builderAdapter, err := builder.NewBuilderAdapter(o.log)
	if err != nil {
		return nil, nil, err
	}

	verifier := verify.New(dockerAdapter, probe.NewClient(cfg.ProbeTimeout()), o.log)
	p := pipeline.New(builderAdapter, dockerAdapter, dockerAdapter, verifier, o.log)
	return p, dockerAdapter, nil
}
