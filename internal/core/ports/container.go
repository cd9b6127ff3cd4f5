package ports

import (
	"context"
	"io"

	"github.com/slipway-ci/slipway/internal/core/domain"
)

// ContainerService defines the core operations for managing containers.
// This interface allows us to switch between Docker, Podman, or Kubernetes
// without changing the release logic.
type ContainerService interface {
	ListContainers(ctx context.Context) ([]domain.Container, error)
	DeployContainer(ctx context.Context, spec domain.DeploySpec) (string, error)
	StopContainer(ctx context.Context, name string) error
	RemoveContainer(ctx context.Context, name string) error
	IsRunning(ctx context.Context, name string) (bool, error)
	GetContainerLogs(ctx context.Context, name string) (io.ReadCloser, error)
}
