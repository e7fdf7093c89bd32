package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/absmach/dronefl/pkg/fl"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotEnoughWorkers aborts a round before any drone is dispatched.
	ErrNotEnoughWorkers = errors.New("not enough reachable workers")
	ErrRoundInProgress  = errors.New("round already in progress")
)

// Sessions runs the per-drone side of a round.
type Sessions interface {
	Fit(ctx context.Context, droneID string, round uint64, blob fl.Blob) fl.Outcome
	Evaluate(ctx context.Context, droneID string, round uint64, blob fl.Blob) fl.Outcome
	CanEvaluate() bool
}

type Config struct {
	FractionFit         float64
	FractionEvaluate    float64
	MinFitClients       int
	MinEvaluateClients  int
	MinAvailableWorkers int
}

// Coordinator drives a single round at a time through
// IDLE → AWAITING_RESULTS → AGGREGATING → COMPLETE, or ABORTED.
type Coordinator struct {
	cfg      Config
	sessions Sessions
	strategy fl.Strategy
	selector *selector
	logger   *slog.Logger

	mu    sync.Mutex
	state State
	busy  bool
}

func New(cfg Config, sessions Sessions, strategy fl.Strategy, src rand.Source, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if strategy == nil {
		strategy = fl.NewPriorityAggregator(nil)
	}

	return &Coordinator{
		cfg:      cfg,
		sessions: sessions,
		strategy: strategy,
		selector: newSelector(src),
		logger:   logger,
	}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run executes one round over the available drones starting from blob. It
// returns the round report and the blob to carry into the next round, which
// is blob itself when nothing usable was aggregated. A report is returned
// whenever drones were dispatched, even alongside an error.
func (c *Coordinator) Run(ctx context.Context, round uint64, blob fl.Blob, available []string) (fl.Report, fl.Blob, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()

		return fl.Report{}, blob, ErrRoundInProgress
	}
	c.busy = true
	c.state = Idle
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	report := fl.Report{
		Round:     round,
		StartedAt: time.Now(),
	}

	if len(available) < c.cfg.MinAvailableWorkers {
		c.setState(Aborted)

		return report, blob, fmt.Errorf("%w: %d available, %d required", ErrNotEnoughWorkers, len(available), c.cfg.MinAvailableWorkers)
	}

	selected := c.selector.sample(available, SampleSize(len(available), c.cfg.FractionFit, c.cfg.MinFitClients))
	report.Dispatched = len(selected)

	c.setState(AwaitingResults)
	c.logger.InfoContext(ctx, "dispatching round",
		slog.Uint64("round", round),
		slog.Int("available", len(available)),
		slog.Int("selected", len(selected)),
		slog.String("blob_digest", blob.Digest()),
	)

	outcomes, err := c.fanOut(ctx, selected, func(ctx context.Context, id string) fl.Outcome {
		return c.sessions.Fit(ctx, id, round, blob)
	})
	report.Outcomes = outcomes
	if err != nil {
		c.setState(Aborted)
		report.FinishedAt = time.Now()

		return report, blob, err
	}
	for _, o := range outcomes {
		if o.Tag == fl.Success {
			report.Successes++
		}
	}
	report.Failures = report.Dispatched - report.Successes

	c.setState(Aggregating)
	res, err := c.strategy.Aggregate(outcomes, blob)
	if err != nil {
		c.setState(Aborted)
		report.FinishedAt = time.Now()

		return report, blob, fmt.Errorf("round %d aggregation: %w", round, err)
	}
	report.Accuracy = res.Accuracy
	report.Contributors = res.Contributors
	report.Excluded = res.Excluded

	next := blob
	if res.Blob != nil {
		next = *res.Blob
		report.Aggregated = true
	}

	evaluated := c.cfg.FractionEvaluate > 0 && c.sessions.CanEvaluate()
	if evaluated {
		ids := c.selector.sample(available, SampleSize(len(available), c.cfg.FractionEvaluate, c.cfg.MinEvaluateClients))
		evals, err := c.fanOut(ctx, ids, func(ctx context.Context, id string) fl.Outcome {
			return c.sessions.Evaluate(ctx, id, round, next)
		})
		report.Evaluations = evals
		if err != nil {
			c.setState(Aborted)
			report.FinishedAt = time.Now()

			return report, blob, err
		}
		report.EvalAccuracy = fl.EvalAccuracy(evals)
	}

	report.Degraded = c.degraded(report, evaluated)
	report.FinishedAt = time.Now()
	c.setState(Complete)

	return report, next, nil
}

func (c *Coordinator) fanOut(ctx context.Context, ids []string, run func(ctx context.Context, id string) fl.Outcome) ([]fl.Outcome, error) {
	outcomes := make([]fl.Outcome, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			outcomes[i] = run(gctx, id)

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	return outcomes, ctx.Err()
}

func (c *Coordinator) degraded(r fl.Report, evaluated bool) bool {
	if r.Successes < c.cfg.MinFitClients {
		return true
	}
	evalSuccesses := r.Successes
	if evaluated {
		evalSuccesses = 0
		for _, o := range r.Evaluations {
			if o.Tag == fl.Success {
				evalSuccesses++
			}
		}
	}

	return evalSuccesses < c.cfg.MinEvaluateClients
}
