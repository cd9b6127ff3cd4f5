package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-ci/slipway/internal/config"
	"github.com/slipway-ci/slipway/internal/core/domain"
	"github.com/slipway-ci/slipway/internal/core/verify"
)

type fakeBuilder struct {
	sources []string
	refs    []string
	err     error
}

func (f *fakeBuilder) BuildImage(_ context.Context, source, ref string) (string, error) {
	f.sources = append(f.sources, source)
	f.refs = append(f.refs, ref)
	return ref, f.err
}

type fakeRuntime struct {
	deployed  []domain.DeploySpec
	stopped   []string
	removed   []string
	deployErr error
	stopErr   error
	removeErr error
}

func (f *fakeRuntime) ListContainers(context.Context) ([]domain.Container, error) { return nil, nil }

func (f *fakeRuntime) DeployContainer(_ context.Context, spec domain.DeploySpec) (string, error) {
	f.deployed = append(f.deployed, spec)
	return "cid123", f.deployErr
}

func (f *fakeRuntime) StopContainer(_ context.Context, name string) error {
	f.stopped = append(f.stopped, name)
	return f.stopErr
}

func (f *fakeRuntime) RemoveContainer(_ context.Context, name string) error {
	f.removed = append(f.removed, name)
	return f.removeErr
}

func (f *fakeRuntime) IsRunning(context.Context, string) (bool, error) { return true, nil }

func (f *fakeRuntime) GetContainerLogs(context.Context, string) (io.ReadCloser, error) {
	return nil, nil
}

type fakeRegistry struct {
	tagged        [][2]string
	pushed        []string
	removedImages []string
	tagErr        error
	pushErr       error
	removeErr     error
}

func (f *fakeRegistry) TagImage(_ context.Context, src, dst string) error {
	f.tagged = append(f.tagged, [2]string{src, dst})
	return f.tagErr
}

func (f *fakeRegistry) PushImage(_ context.Context, ref string) error {
	f.pushed = append(f.pushed, ref)
	return f.pushErr
}

func (f *fakeRegistry) RemoveImage(_ context.Context, ref string) error {
	f.removedImages = append(f.removedImages, ref)
	return f.removeErr
}

type fakeVerifier struct {
	requests []verify.Request
	result   verify.Result
	err      error
}

func (f *fakeVerifier) Verify(_ context.Context, req verify.Request) (verify.Result, error) {
	f.requests = append(f.requests, req)
	return f.result, f.err
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Name = "myapp"
	cfg.Image = "team/myapp"
	cfg.ExpectedVersion = "1.2.3"
	cfg.HostPort = 8080
	cfg.ContainerPort = 80
	cfg.Registry = "registry.example.com"
	cfg.DelaySeconds = 0
	return cfg
}

func quietLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestReleaseHappyPath(t *testing.T) {
	builder := &fakeBuilder{}
	runtime := &fakeRuntime{}
	registry := &fakeRegistry{}
	verifier := &fakeVerifier{result: verify.Result{Verified: true, Attempts: 1}}
	p := New(builder, runtime, registry, verifier, quietLog())

	cfg := testConfig()
	require.NoError(t, p.Release(context.Background(), cfg))

	assert.Equal(t, []string{"team/myapp:source"}, builder.refs)
	require.Len(t, runtime.deployed, 1)
	assert.Equal(t, "myapp", runtime.deployed[0].Name)
	assert.Equal(t, "team/myapp:source", runtime.deployed[0].Image)

	require.Len(t, verifier.requests, 1)
	assert.Equal(t, "1.2.3", verifier.requests[0].ExpectedVersion)

	assert.Equal(t, [][2]string{{"team/myapp:source", "registry.example.com/team/myapp:1.2.3"}}, registry.tagged)
	assert.Equal(t, []string{"registry.example.com/team/myapp:1.2.3"}, registry.pushed)

	// Cleanup ran: stop, remove, and the source image is gone.
	assert.Contains(t, runtime.stopped, "myapp")
	assert.Equal(t, []string{"team/myapp:source"}, registry.removedImages)
}

func TestReleaseGatedOnVerification(t *testing.T) {
	builder := &fakeBuilder{}
	runtime := &fakeRuntime{}
	registry := &fakeRegistry{}
	verifier := &fakeVerifier{err: &verify.Error{Name: "myapp", Attempts: 10}}
	p := New(builder, runtime, registry, verifier, quietLog())

	err := p.Release(context.Background(), testConfig())
	require.Error(t, err)

	var vErr *verify.Error
	assert.ErrorAs(t, err, &vErr)

	// Nothing is pushed, and the failed container is left for inspection.
	assert.Empty(t, registry.pushed)
	assert.Empty(t, registry.tagged)
	assert.Empty(t, runtime.stopped)
	assert.Empty(t, registry.removedImages)
}

func TestReleaseAbortsOnBuildFailure(t *testing.T) {
	builder := &fakeBuilder{err: errors.New("no Dockerfile")}
	runtime := &fakeRuntime{}
	verifier := &fakeVerifier{}
	p := New(builder, runtime, &fakeRegistry{}, verifier, quietLog())

	require.Error(t, p.Release(context.Background(), testConfig()))
	assert.Empty(t, runtime.deployed)
	assert.Empty(t, verifier.requests)
}

func TestReleaseRejectsInvalidConfig(t *testing.T) {
	builder := &fakeBuilder{}
	p := New(builder, &fakeRuntime{}, &fakeRegistry{}, &fakeVerifier{}, quietLog())

	cfg := testConfig()
	cfg.ExpectedVersion = ""

	require.Error(t, p.Release(context.Background(), cfg))
	assert.Empty(t, builder.refs)
}

func TestDeployReplacesStaleContainer(t *testing.T) {
	runtime := &fakeRuntime{removeErr: errors.New("no such container")}
	p := New(&fakeBuilder{}, runtime, &fakeRegistry{}, &fakeVerifier{}, quietLog())

	_, err := p.Deploy(context.Background(), testConfig())
	require.NoError(t, err)
	// Stale removal is attempted first and its failure is ignored.
	assert.Equal(t, []string{"myapp"}, runtime.removed)
	assert.Len(t, runtime.deployed, 1)
}

func TestCleanupIsBestEffort(t *testing.T) {
	runtime := &fakeRuntime{stopErr: errors.New("already stopped")}
	registry := &fakeRegistry{removeErr: errors.New("image in use")}
	p := New(&fakeBuilder{}, runtime, registry, &fakeVerifier{}, quietLog())

	report := p.Cleanup(context.Background(), testConfig())

	// Every step ran despite the failures.
	assert.Equal(t, []string{"myapp"}, runtime.stopped)
	assert.Equal(t, []string{"myapp"}, runtime.removed)
	assert.Equal(t, []string{"team/myapp:source"}, registry.removedImages)

	assert.False(t, report.Clean())
	require.Len(t, report.Steps, 3)
	assert.False(t, report.Steps[0].OK)
	assert.True(t, report.Steps[1].OK)
	assert.False(t, report.Steps[2].OK)
	assert.Contains(t, report.Steps[2].Error, "image in use")
}
