package federation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/absmach/dronefl/coordinator"
	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/netsim"
)

var (
	// ErrInsufficientWorkers is fatal: too few drones registered before the
	// first round, or the fleet shrank below the minimum during the run.
	ErrInsufficientWorkers = errors.New("insufficient workers")
	ErrInvalidConfig       = errors.New("invalid federation configuration")
	ErrTooManyDegraded     = errors.New("too many consecutive degraded rounds")
	ErrRunInProgress       = errors.New("federation run already in progress")
	ErrNoRun               = errors.New("no federation run yet")
)

type Config struct {
	NumRounds int
	Round     coordinator.Config
	// RegistrationTimeout bounds the wait for MinAvailableWorkers before the
	// first round. Zero checks the registry once without waiting.
	RegistrationTimeout time.Duration
	// MaxConsecutiveDegraded stops the run after that many degraded rounds in
	// a row. Zero disables the ceiling.
	MaxConsecutiveDegraded int
	// Resume starts from the latest stored blob version instead of the
	// initial blob.
	Resume bool
}

// Validate checks the configuration before any drone is contacted.
func (c Config) Validate() error {
	switch {
	case c.NumRounds < 1:
		return fmt.Errorf("%w: num_rounds must be at least 1", ErrInvalidConfig)
	case c.Round.FractionFit <= 0 || c.Round.FractionFit > 1:
		return fmt.Errorf("%w: fraction_fit %v outside (0,1]", ErrInvalidConfig, c.Round.FractionFit)
	case c.Round.FractionEvaluate < 0 || c.Round.FractionEvaluate > 1:
		return fmt.Errorf("%w: fraction_evaluate %v outside [0,1]", ErrInvalidConfig, c.Round.FractionEvaluate)
	case c.Round.MinFitClients < 1:
		return fmt.Errorf("%w: min_fit_clients must be at least 1", ErrInvalidConfig)
	case c.Round.MinEvaluateClients < 1:
		return fmt.Errorf("%w: min_evaluate_clients must be at least 1", ErrInvalidConfig)
	case c.Round.MinAvailableWorkers < 1:
		return fmt.Errorf("%w: min_available_workers must be at least 1", ErrInvalidConfig)
	case c.RegistrationTimeout < 0:
		return fmt.Errorf("%w: negative registration timeout", ErrInvalidConfig)
	case c.MaxConsecutiveDegraded < 0:
		return fmt.Errorf("%w: negative degraded ceiling", ErrInvalidConfig)
	}

	return nil
}

// validateFleet checks the participation thresholds against the number of
// registered drones.
func (c Config) validateFleet(registered int) error {
	if c.Round.MinFitClients > registered {
		return fmt.Errorf("%w: min_fit_clients %d exceeds %d registered drones", ErrInvalidConfig, c.Round.MinFitClients, registered)
	}
	if c.Round.MinEvaluateClients > registered {
		return fmt.Errorf("%w: min_evaluate_clients %d exceeds %d registered drones", ErrInvalidConfig, c.Round.MinEvaluateClients, registered)
	}

	return nil
}

type DronePage struct {
	Offset uint64           `json:"offset"`
	Limit  uint64           `json:"limit"`
	Total  uint64           `json:"total"`
	Drones []netsim.Profile `json:"drones"`
}

// Summary describes a finished federation run.
type Summary struct {
	RunID       string    `json:"run_id"`
	Rounds      int       `json:"rounds"`
	Degraded    int       `json:"degraded"`
	BlobVersion uint64    `json:"blob_version"`
	BlobDigest  string    `json:"blob_digest"`
	Accuracy    *float64  `json:"accuracy"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Service drives federated rounds over the registered drone fleet.
type Service interface {
	// Register adds a drone. Registering the same profile twice is a no-op;
	// a different profile under a known id fails with ErrEntityExists.
	Register(ctx context.Context, p netsim.Profile) error
	Deregister(ctx context.Context, droneID string) error
	Drone(ctx context.Context, droneID string) (netsim.Profile, error)
	Drones(ctx context.Context, offset, limit uint64) (DronePage, error)

	// Run executes rounds 1..N and returns once the run terminates.
	Run(ctx context.Context) (Summary, error)

	// Report and Reports read the history of the current or last run.
	Report(ctx context.Context, round uint64) (fl.Report, error)
	Reports(ctx context.Context, offset, limit uint64) (fl.ReportPage, error)
	// Blob returns the currently committed blob version.
	Blob(ctx context.Context) (fl.BlobVersion, error)
}
