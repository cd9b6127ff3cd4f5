// Package pipeline orchestrates the release lifecycle:
// build -> deploy -> verify -> push -> cleanup. Verification gates the
// stages after it; cleanup is best-effort and never aborts a release.
package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/slipway-ci/slipway/internal/config"
	"github.com/slipway-ci/slipway/internal/core/ports"
	"github.com/slipway-ci/slipway/internal/core/verify"
)

// Verifier is the slice of the deployment verifier the pipeline needs.
type Verifier interface {
	Verify(ctx context.Context, req verify.Request) (verify.Result, error)
}

// Pipeline drives a release against a container runtime and registry.
type Pipeline struct {
	builder  ports.BuilderService
	runtime  ports.ContainerService
	registry ports.RegistryService
	verifier Verifier
	log      logrus.FieldLogger
}

func New(builder ports.BuilderService, runtime ports.ContainerService, registry ports.RegistryService, verifier Verifier, log logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		builder:  builder,
		runtime:  runtime,
		registry: registry,
		verifier: verifier,
		log:      log,
	}
}

// Build produces the source-tagged image from the configured source tree.
func (p *Pipeline) Build(ctx context.Context, cfg config.Config) (string, error) {
	ref, err := p.builder.BuildImage(ctx, cfg.Source, cfg.SourceRef())
	if err != nil {
		return "", fmt.Errorf("build stage failed: %w", err)
	}
	p.log.WithField("image", ref).Info("image built")
	return ref, nil
}

// Deploy starts the source-tagged image as the configured container. A stale
// container with the same name from a previous release is removed first;
// its absence is not an error.
func (p *Pipeline) Deploy(ctx context.Context, cfg config.Config) (string, error) {
	if err := p.runtime.RemoveContainer(ctx, cfg.Name); err != nil {
		p.log.WithError(err).WithField("container", cfg.Name).Debug("no stale container removed")
	}

	id, err := p.runtime.DeployContainer(ctx, cfg.DeploySpec())
	if err != nil {
		return "", fmt.Errorf("deploy stage failed: %w", err)
	}
	p.log.WithFields(logrus.Fields{"container": cfg.Name, "id": id}).Info("container deployed")
	return id, nil
}

// Verify polls the deployed container until it serves the expected version
// or the attempt budget runs out.
func (p *Pipeline) Verify(ctx context.Context, cfg config.Config) (verify.Result, error) {
	return p.verifier.Verify(ctx, cfg.VerifyRequest())
}

// Push tags the verified source image with the release reference and uploads
// it. It returns the pushed reference.
func (p *Pipeline) Push(ctx context.Context, cfg config.Config) (string, error) {
	source, target := cfg.SourceRef(), cfg.ReleaseRef()
	if err := p.registry.TagImage(ctx, source, target); err != nil {
		return "", fmt.Errorf("push stage failed: %w", err)
	}
	if err := p.registry.PushImage(ctx, target); err != nil {
		return "", fmt.Errorf("push stage failed: %w", err)
	}
	p.log.WithField("image", target).Info("image pushed")
	return target, nil
}

// CleanupStep records one best-effort removal.
type CleanupStep struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// CleanupReport aggregates the cleanup sequence. Individual failures are
// recorded but never abort the sequence.
type CleanupReport struct {
	Steps []CleanupStep `json:"steps"`
}

// Clean reports whether every step succeeded.
func (r CleanupReport) Clean() bool {
	for _, s := range r.Steps {
		if !s.OK {
			return false
		}
	}
	return true
}

// Cleanup tears down the release's local leftovers: the container and the
// source-tagged image. Every step runs regardless of earlier failures.
func (p *Pipeline) Cleanup(ctx context.Context, cfg config.Config) CleanupReport {
	var report CleanupReport
	steps := []struct {
		name string
		run  func() error
	}{
		{"stop container", func() error { return p.runtime.StopContainer(ctx, cfg.Name) }},
		{"remove container", func() error { return p.runtime.RemoveContainer(ctx, cfg.Name) }},
		{"remove source image", func() error { return p.registry.RemoveImage(ctx, cfg.SourceRef()) }},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			p.log.WithError(err).WithField("step", step.name).Warn("cleanup step failed")
			report.Steps = append(report.Steps, CleanupStep{Name: step.name, Error: err.Error()})
			continue
		}
		report.Steps = append(report.Steps, CleanupStep{Name: step.name, OK: true})
	}
	return report
}

// Release runs the full lifecycle. A failed verification aborts the release
// before push and cleanup, leaving the container in place for inspection.
func (p *Pipeline) Release(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if _, err := p.Build(ctx, cfg); err != nil {
		return err
	}
	if _, err := p.Deploy(ctx, cfg); err != nil {
		return err
	}

	result, err := p.Verify(ctx, cfg)
	if err != nil {
		return fmt.Errorf("verify stage failed: %w", err)
	}
	p.log.WithFields(logrus.Fields{
		"container": cfg.Name,
		"version":   cfg.ExpectedVersion,
		"attempts":  result.Attempts,
	}).Info("deployment verified")

	if _, err := p.Push(ctx, cfg); err != nil {
		return err
	}

	if report := p.Cleanup(ctx, cfg); !report.Clean() {
		p.log.Warn("release finished with incomplete cleanup")
	}
	return nil
}
