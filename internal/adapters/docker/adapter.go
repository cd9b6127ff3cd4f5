package docker

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/slipway-ci/slipway/internal/core/domain"
)

// RegistryAuth carries the credentials used for image pushes. A zero value
// means unauthenticated access (local or anonymous registries).
type RegistryAuth struct {
	Username      string
	Password      string
	ServerAddress string
}

// Adapter implements ports.ContainerService and ports.RegistryService
// using the Docker SDK.
type Adapter struct {
	cli  *client.Client
	auth string // pre-encoded X-Registry-Auth header
}

// NewAdapter creates a new Docker adapter instance.
func NewAdapter(auth RegistryAuth) (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	encoded, err := registry.EncodeAuthConfig(registry.AuthConfig{
		Username:      auth.Username,
		Password:      auth.Password,
		ServerAddress: auth.ServerAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode registry auth: %w", err)
	}

	return &Adapter{cli: cli, auth: encoded}, nil
}

// ListContainers returns all containers known to the daemon, running or not.
func (a *Adapter) ListContainers(ctx context.Context) ([]domain.Container, error) {
	containers, err := a.cli.ContainerList(ctx, types.ContainerListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var result []domain.Container
	for _, c := range containers {
		// Use the first name if available, remove slash
		name := ""
		if len(c.Names) > 0 {
			name = c.Names[0][1:]
		}

		result = append(result, domain.Container{
			ID:     c.ID[:12], // Short ID
			Name:   name,
			Image:  c.Image,
			Status: c.Status,
			State:  c.State,
		})
	}
	return result, nil
}

// DeployContainer creates and starts a named container from the given image,
// publishing its container port on the requested host port.
func (a *Adapter) DeployContainer(ctx context.Context, spec domain.DeploySpec) (string, error) {
	if err := a.ensureImage(ctx, spec.Image); err != nil {
		return "", err
	}

	port, err := nat.NewPort("tcp", strconv.Itoa(spec.ContainerPort))
	if err != nil {
		return "", fmt.Errorf("invalid container port %d: %w", spec.ContainerPort, err)
	}

	resp, err := a.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        spec.Image,
			ExposedPorts: nat.PortSet{port: struct{}{}},
		},
		&container.HostConfig{
			PortBindings: nat.PortMap{
				port: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(spec.HostPort)}},
			},
		},
		nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	if err := a.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	return resp.ID, nil
}

// ensureImage pulls the image only when the daemon does not already have it.
// Freshly built source tags exist only locally and must not be pulled.
func (a *Adapter) ensureImage(ctx context.Context, image string) error {
	if _, _, err := a.cli.ImageInspectWithRaw(ctx, image); err == nil {
		return nil
	}

	reader, err := a.cli.ImagePull(ctx, image, types.ImagePullOptions{RegistryAuth: a.auth})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// The pull completes only once its progress stream is drained.
	_, err = io.Copy(io.Discard, reader)
	return err
}

// StopContainer stops a running container by name or ID.
func (a *Adapter) StopContainer(ctx context.Context, name string) error {
	// Timeout can be configurable, but keeping it simple for now
	timeout := 10 * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return a.cli.ContainerStop(ctx, name, container.StopOptions{})
}

// RemoveContainer deletes a container by name or ID, stopping it if needed.
func (a *Adapter) RemoveContainer(ctx context.Context, name string) error {
	return a.cli.ContainerRemove(ctx, name, types.ContainerRemoveOptions{Force: true})
}

// IsRunning reports whether the named container exists and is running.
// A missing container is not an error; it is simply not running.
func (a *Adapter) IsRunning(ctx context.Context, name string) (bool, error) {
	inspect, err := a.cli.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect container: %w", err)
	}
	return inspect.State != nil && inspect.State.Running, nil
}

// GetContainerLogs returns a stream of container logs.
func (a *Adapter) GetContainerLogs(ctx context.Context, name string) (io.ReadCloser, error) {
	options := types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     false, // Can be true for streaming
		Timestamps: true,
	}
	return a.cli.ContainerLogs(ctx, name, options)
}
