package domain

// Container represents a container in the runtime (Docker, Podman, etc.)
type Container struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	Status string `json:"status"`
	State  string `json:"state"` // running, exited, etc.
}

// Running reports whether the runtime considers the container alive.
func (c Container) Running() bool {
	return c.State == "running"
}

// DeploySpec describes how a built image should be started.
type DeploySpec struct {
	Name          string `json:"name"`
	Image         string `json:"image"`
	ContainerPort int    `json:"container_port"`
	HostPort      int    `json:"host_port"`
}
