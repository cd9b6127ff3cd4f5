package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/slipway-ci/slipway/internal/config"
	"github.com/slipway-ci/slipway/internal/core/pipeline"
	"github.com/slipway-ci/slipway/internal/core/ports"
	"github.com/slipway-ci/slipway/internal/core/verify"
)

// ReleaseRunner is the slice of the pipeline the HTTP layer drives.
type ReleaseRunner interface {
	Release(ctx context.Context, cfg config.Config) error
	Verify(ctx context.Context, cfg config.Config) (verify.Result, error)
	Cleanup(ctx context.Context, cfg config.Config) pipeline.CleanupReport
}

type Handler struct {
	service ports.ContainerService
	runner  ReleaseRunner
	base    config.Config
}

// NewHandler creates the API handler. base supplies defaults that request
// bodies may override per call.
func NewHandler(service ports.ContainerService, runner ReleaseRunner, base config.Config) *Handler {
	return &Handler{service: service, runner: runner, base: base}
}

// Register mounts the API routes on the fiber app.
func (h *Handler) Register(app *fiber.App) {
	api := app.Group("/api")
	v1 := api.Group("/v1")

	containers := v1.Group("/containers")
	containers.Get("/", h.ListContainers)
	containers.Get("/:name/logs", h.GetContainerLogs)
	containers.Delete("/:name", h.CleanupContainer)

	v1.Post("/releases", h.RunRelease)
	v1.Post("/verifications", h.RunVerification)
}

func (h *Handler) ListContainers(c *fiber.Ctx) error {
	containers, err := h.service.ListContainers(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(containers)
}

// ReleaseRequest overrides the server's base configuration for one release.
// Zero-valued fields keep the configured value.
type ReleaseRequest struct {
	Name            string `json:"name"`
	Image           string `json:"image"`
	Source          string `json:"source"`
	ExpectedVersion string `json:"expected_version"`
	HostPort        int    `json:"host_port"`
	ContainerPort   int    `json:"container_port"`
	Registry        string `json:"registry"`
	ReleaseTag      string `json:"release_tag"`
}

func (r ReleaseRequest) apply(cfg config.Config) config.Config {
	if r.Name != "" {
		cfg.Name = r.Name
	}
	if r.Image != "" {
		cfg.Image = r.Image
	}
	if r.Source != "" {
		cfg.Source = r.Source
	}
	if r.ExpectedVersion != "" {
		cfg.ExpectedVersion = r.ExpectedVersion
	}
	if r.HostPort != 0 {
		cfg.HostPort = r.HostPort
	}
	if r.ContainerPort != 0 {
		cfg.ContainerPort = r.ContainerPort
	}
	if r.Registry != "" {
		cfg.Registry = r.Registry
	}
	if r.ReleaseTag != "" {
		cfg.ReleaseTag = r.ReleaseTag
	}
	return cfg
}

func (h *Handler) RunRelease(c *fiber.Ctx) error {
	var req ReleaseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	cfg := req.apply(h.base)
	if err := cfg.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.runner.Release(c.Context(), cfg); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"container": cfg.Name,
		"image":     cfg.ReleaseRef(),
	})
}

// VerificationRequest overrides the verifier parameters for one call.
type VerificationRequest struct {
	Name               string `json:"name"`
	Host               string `json:"host"`
	Port               int    `json:"port"`
	HealthPath         string `json:"health_path"`
	ExpectedVersion    string `json:"expected_version"`
	MaxAttempts        int    `json:"max_attempts"`
	DelaySeconds       int    `json:"delay_seconds"`
	FailFastOnMismatch bool   `json:"fail_fast_on_mismatch"`
}

func (r VerificationRequest) apply(cfg config.Config) config.Config {
	if r.Name != "" {
		cfg.Name = r.Name
	}
	if r.Host != "" {
		cfg.Host = r.Host
	}
	if r.Port != 0 {
		cfg.HostPort = r.Port
	}
	if r.HealthPath != "" {
		cfg.HealthPath = r.HealthPath
	}
	if r.ExpectedVersion != "" {
		cfg.ExpectedVersion = r.ExpectedVersion
	}
	if r.MaxAttempts != 0 {
		cfg.MaxAttempts = r.MaxAttempts
	}
	if r.DelaySeconds != 0 {
		cfg.DelaySeconds = r.DelaySeconds
	}
	if r.FailFastOnMismatch {
		cfg.FailFastOnMismatch = true
	}
	return cfg
}

func (h *Handler) RunVerification(c *fiber.Ctx) error {
	var req VerificationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	cfg := req.apply(h.base)
	verifyReq := cfg.VerifyRequest()
	if err := verifyReq.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	result, err := h.runner.Verify(c.Context(), cfg)
	if err != nil {
		// A completed-but-failed verification is an answer, not a server
		// error; the caller gates on the verified flag.
		return c.JSON(fiber.Map{
			"verified":     false,
			"attempts":     result.Attempts,
			"last_outcome": result.LastOutcome,
			"error":        err.Error(),
		})
	}

	return c.JSON(result)
}

func (h *Handler) CleanupContainer(c *fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Container name is required",
		})
	}

	cfg := h.base
	cfg.Name = name
	report := h.runner.Cleanup(c.Context(), cfg)
	return c.JSON(report)
}

func (h *Handler) GetContainerLogs(c *fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Container name is required",
		})
	}

	logs, err := h.service.GetContainerLogs(c.Context(), name)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set("Content-Type", "text/plain")
	return c.SendStream(logs)
}
