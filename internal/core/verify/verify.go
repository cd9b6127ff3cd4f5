// Package verify implements the deployment verifier: a bounded polling loop
// that confirms a freshly deployed container is alive and serving the
// expected version from its health endpoint before a release proceeds.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/slipway-ci/slipway/internal/core/ports"
)

// Named defaults for the attempt budget, applied by the config layer.
const (
	DefaultMaxAttempts = 10
	DefaultDelay       = 5 * time.Second
)

// OutcomeKind classifies what a single verification attempt observed.
type OutcomeKind string

const (
	// ProcessNotRunning means the runtime does not report the container as running.
	ProcessNotRunning OutcomeKind = "process-not-running"
	// UnreachableEndpoint means the health endpoint could not be fetched.
	UnreachableEndpoint OutcomeKind = "unreachable-endpoint"
	// MalformedResponse means the body was not JSON or carried no version field.
	MalformedResponse OutcomeKind = "malformed-response"
	// VersionMismatch means a version was served but it was not the expected one.
	VersionMismatch OutcomeKind = "version-mismatch"
	// Match means the served version equals the expected version exactly.
	Match OutcomeKind = "match"
)

// Outcome is the result of one attempt. Observed carries the version seen on
// the wire when Kind is VersionMismatch or Match.
type Outcome struct {
	Kind     OutcomeKind `json:"kind"`
	Observed string      `json:"observed,omitempty"`
}

func (o Outcome) String() string {
	if o.Kind == VersionMismatch {
		return fmt.Sprintf("%s (observed %q)", o.Kind, o.Observed)
	}
	return string(o.Kind)
}

// Request carries the parameters of one verification call. It is not
// modified once the loop starts.
type Request struct {
	Name            string        `json:"name"`
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	HealthPath      string        `json:"health_path"`
	ExpectedVersion string        `json:"expected_version"`
	MaxAttempts     int           `json:"max_attempts"`
	Delay           time.Duration `json:"delay"`

	// FailFastOnMismatch aborts on the first version mismatch instead of
	// retrying it like the transient failures. Off by default: a service
	// still starting up may briefly serve a stale version, and treating
	// mismatch as retryable tolerates that race.
	FailFastOnMismatch bool `json:"fail_fast_on_mismatch"`
}

// Validate rejects malformed parameters before the polling loop starts.
func (r Request) Validate() error {
	switch {
	case r.Name == "":
		return fmt.Errorf("verify: container name is required")
	case r.Host == "":
		return fmt.Errorf("verify: host is required")
	case r.Port < 1 || r.Port > 65535:
		return fmt.Errorf("verify: port %d out of range", r.Port)
	case r.HealthPath == "":
		return fmt.Errorf("verify: health path is required")
	case r.ExpectedVersion == "":
		return fmt.Errorf("verify: expected version is required")
	case r.MaxAttempts < 1:
		return fmt.Errorf("verify: max attempts must be at least 1, got %d", r.MaxAttempts)
	case r.Delay < 0:
		return fmt.Errorf("verify: delay must not be negative, got %s", r.Delay)
	}
	return nil
}

// URL is the health endpoint the verifier polls.
func (r Request) URL() string {
	return fmt.Sprintf("http://%s:%d%s", r.Host, r.Port, r.HealthPath)
}

// Result reports how a verification call ended.
type Result struct {
	Verified    bool    `json:"verified"`
	Attempts    int     `json:"attempts"`
	LastOutcome Outcome `json:"last_outcome"`
}

// Error is returned when the attempt budget is exhausted (or, with
// FailFastOnMismatch, on the first mismatch) without a matching version.
type Error struct {
	Name     string
	Last     Outcome
	Attempts int
	Budget   time.Duration // MaxAttempts * Delay, the configured upper bound
}

func (e *Error) Error() string {
	return fmt.Sprintf("container %q failed verification after %d attempts (budget ~%s): %s",
		e.Name, e.Attempts, e.Budget, e.Last)
}

// RuntimeProber is the slice of the container runtime the verifier needs.
type RuntimeProber interface {
	IsRunning(ctx context.Context, name string) (bool, error)
}

// Verifier polls a deployed container until its health endpoint serves the
// expected version or the attempt budget runs out. Attempts run strictly
// sequentially; every failure category is retried the same way.
type Verifier struct {
	runtime RuntimeProber
	health  ports.HealthClient
	sleep   func(time.Duration)
	log     logrus.FieldLogger
}

// New creates a Verifier on top of a container runtime and an HTTP health client.
func New(runtime RuntimeProber, health ports.HealthClient, log logrus.FieldLogger) *Verifier {
	return &Verifier{
		runtime: runtime,
		health:  health,
		sleep:   time.Sleep,
		log:     log,
	}
}

// Verify runs the polling loop. It returns a nil error with a Verified
// Result on the first matching attempt, and an *Error once the budget is
// exhausted. Validation failures are reported before any attempt is made.
func (v *Verifier) Verify(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	url := req.URL()
	var last Outcome
	for attempt := 1; attempt <= req.MaxAttempts; attempt++ {
		last = v.attempt(ctx, req, url)

		v.log.WithFields(logrus.Fields{
			"container": req.Name,
			"attempt":   attempt,
			"budget":    req.MaxAttempts,
			"outcome":   last.String(),
		}).Info("verification attempt")

		if last.Kind == Match {
			return Result{Verified: true, Attempts: attempt, LastOutcome: last}, nil
		}

		if req.FailFastOnMismatch && last.Kind == VersionMismatch {
			return Result{Attempts: attempt, LastOutcome: last}, &Error{
				Name:     req.Name,
				Last:     last,
				Attempts: attempt,
				Budget:   time.Duration(req.MaxAttempts) * req.Delay,
			}
		}

		// Suspend between attempts only; the final attempt is never followed
		// by a delay.
		if attempt < req.MaxAttempts {
			v.sleep(req.Delay)
		}
	}

	return Result{Attempts: req.MaxAttempts, LastOutcome: last}, &Error{
		Name:     req.Name,
		Last:     last,
		Attempts: req.MaxAttempts,
		Budget:   time.Duration(req.MaxAttempts) * req.Delay,
	}
}

// attempt performs one probe: runtime state, then HTTP fetch, then version
// extraction. No HTTP call is made when the container is not running.
func (v *Verifier) attempt(ctx context.Context, req Request, url string) Outcome {
	running, err := v.runtime.IsRunning(ctx, req.Name)
	if err != nil || !running {
		return Outcome{Kind: ProcessNotRunning}
	}

	body, err := v.health.Get(ctx, url)
	if err != nil {
		return Outcome{Kind: UnreachableEndpoint}
	}

	var doc struct {
		Version *string `json:"version"`
	}
	if err := json.Unmarshal(body, &doc); err != nil || doc.Version == nil {
		return Outcome{Kind: MalformedResponse}
	}

	// Exact string equality: no semver normalization, no trimming. The
	// version is an identity check, not a compatibility check.
	if *doc.Version != req.ExpectedVersion {
		return Outcome{Kind: VersionMismatch, Observed: *doc.Version}
	}
	return Outcome{Kind: Match, Observed: *doc.Version}
}
