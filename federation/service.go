package federation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/dronefl/coordinator"
	pkgerrors "github.com/absmach/dronefl/pkg/errors"
	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/netsim"
	"github.com/absmach/dronefl/pkg/storage"
	"github.com/google/uuid"
)

// RoundRunner executes a single round.
type RoundRunner interface {
	Run(ctx context.Context, round uint64, blob fl.Blob, available []string) (fl.Report, fl.Blob, error)
}

type service struct {
	cfg      Config
	registry *Registry
	rounds   RoundRunner
	repos    *storage.Repositories
	initial  fl.Blob
	sinks    []Sink
	logger   *slog.Logger

	mu      sync.RWMutex
	running bool
	runID   string
	current fl.BlobVersion
	hasBlob bool
}

func NewService(cfg Config, registry *Registry, rounds RoundRunner, repos *storage.Repositories, initial fl.Blob, sinks []Sink, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &service{
		cfg:      cfg,
		registry: registry,
		rounds:   rounds,
		repos:    repos,
		initial:  initial,
		sinks:    sinks,
		logger:   logger,
	}
}

func (svc *service) Register(_ context.Context, p netsim.Profile) error {
	return svc.registry.Register(p)
}

func (svc *service) Deregister(_ context.Context, droneID string) error {
	return svc.registry.Deregister(droneID)
}

func (svc *service) Drone(_ context.Context, droneID string) (netsim.Profile, error) {
	if droneID == "" {
		return netsim.Profile{}, pkgerrors.ErrEmptyKey
	}
	p, ok := svc.registry.Profile(droneID)
	if !ok {
		return netsim.Profile{}, pkgerrors.ErrNotFound
	}

	return p, nil
}

func (svc *service) Drones(_ context.Context, offset, limit uint64) (DronePage, error) {
	ids := svc.registry.IDs()
	total := uint64(len(ids))

	page := DronePage{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Drones: []netsim.Profile{},
	}
	if offset >= total {
		return page, nil
	}
	for _, id := range ids[offset:min(offset+limit, total)] {
		if p, ok := svc.registry.Profile(id); ok {
			page.Drones = append(page.Drones, p)
		}
	}

	return page, nil
}

func (svc *service) Run(ctx context.Context) (Summary, error) {
	svc.mu.Lock()
	if svc.running {
		svc.mu.Unlock()

		return Summary{}, ErrRunInProgress
	}
	svc.running = true
	svc.mu.Unlock()
	defer func() {
		svc.mu.Lock()
		svc.running = false
		svc.mu.Unlock()
	}()

	summary := Summary{StartedAt: time.Now()}

	if err := svc.cfg.Validate(); err != nil {
		return summary, err
	}
	if err := svc.awaitWorkers(ctx); err != nil {
		return summary, err
	}
	if err := svc.cfg.validateFleet(svc.registry.Len()); err != nil {
		return summary, err
	}

	summary.RunID = uuid.NewString()
	start, resumed, err := svc.startingBlob(ctx, summary.RunID)
	if err != nil {
		return summary, err
	}
	svc.setCurrent(summary.RunID, start)
	summary.BlobVersion, summary.BlobDigest = start.Version, start.Digest

	svc.logger.InfoContext(ctx, "federation started",
		slog.String("run_id", summary.RunID),
		slog.Int("num_rounds", svc.cfg.NumRounds),
		slog.Int("registered", svc.registry.Len()),
		slog.Uint64("blob_version", start.Version),
		slog.Bool("resumed", resumed),
	)

	consecutive := 0
	for round := uint64(1); round <= uint64(svc.cfg.NumRounds); round++ {
		report, err := svc.runRound(ctx, summary.RunID, round)
		if report.Dispatched > 0 || err == nil {
			summary.Rounds++
			summary.Accuracy = report.Accuracy
			summary.BlobVersion, summary.BlobDigest = report.BlobVersion, report.BlobDigest
		}
		if err != nil {
			summary.FinishedAt = time.Now()

			return summary, err
		}

		if report.Degraded {
			summary.Degraded++
			consecutive++
		} else {
			consecutive = 0
		}
		if svc.cfg.MaxConsecutiveDegraded > 0 && consecutive >= svc.cfg.MaxConsecutiveDegraded {
			summary.FinishedAt = time.Now()

			return summary, fmt.Errorf("%w: %d in a row ending at round %d", ErrTooManyDegraded, consecutive, round)
		}
	}

	summary.FinishedAt = time.Now()
	svc.logger.InfoContext(ctx, "federation completed",
		slog.String("run_id", summary.RunID),
		slog.Int("rounds", summary.Rounds),
		slog.Int("degraded", summary.Degraded),
		slog.Uint64("blob_version", summary.BlobVersion),
	)

	return summary, nil
}

func (svc *service) awaitWorkers(ctx context.Context) error {
	want := svc.cfg.Round.MinAvailableWorkers

	waitCtx, cancel := context.WithTimeout(ctx, svc.cfg.RegistrationTimeout)
	defer cancel()

	if err := svc.registry.WaitFor(waitCtx, want); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return fmt.Errorf("%w: %d of %d required drones registered within %s", ErrInsufficientWorkers, svc.registry.Len(), want, svc.cfg.RegistrationTimeout)
	}

	return nil
}

// startingBlob returns the blob of round 1. A fresh start commits the initial
// blob as a new version so every report refers to a stored version.
func (svc *service) startingBlob(ctx context.Context, runID string) (fl.BlobVersion, bool, error) {
	latest, err := svc.repos.Blobs.Latest(ctx)
	switch {
	case err == nil:
		if svc.cfg.Resume {
			return latest, true, nil
		}
	case errors.Is(err, pkgerrors.ErrNotFound):
	default:
		return fl.BlobVersion{}, false, fmt.Errorf("failed to load latest blob: %w", err)
	}

	if svc.initial.IsEmpty() {
		return fl.BlobVersion{}, false, fmt.Errorf("%w: initial blob is empty", ErrInvalidConfig)
	}
	version := uint64(0)
	if err == nil {
		version = latest.Version + 1
	}
	v, err := svc.commit(ctx, runID, 0, version, svc.initial)

	return v, false, err
}

func (svc *service) commit(ctx context.Context, runID string, round, version uint64, blob fl.Blob) (fl.BlobVersion, error) {
	v := fl.BlobVersion{
		Version:   version,
		RunID:     runID,
		Round:     round,
		Digest:    blob.Digest(),
		Size:      blob.Len(),
		Blob:      blob,
		CreatedAt: time.Now(),
	}
	if err := svc.repos.Blobs.Save(ctx, v); err != nil {
		return fl.BlobVersion{}, fmt.Errorf("failed to commit blob version %d: %w", version, err)
	}

	return v, nil
}

func (svc *service) runRound(ctx context.Context, runID string, round uint64) (fl.Report, error) {
	current := svc.currentBlob()

	available := svc.registry.IDs()
	if len(available) < svc.cfg.Round.MinAvailableWorkers {
		return fl.Report{}, fmt.Errorf("%w: %d of %d required drones available at round %d", ErrInsufficientWorkers, len(available), svc.cfg.Round.MinAvailableWorkers, round)
	}

	report, next, runErr := svc.rounds.Run(ctx, round, current.Blob, available)
	if errors.Is(runErr, coordinator.ErrNotEnoughWorkers) {
		runErr = errors.Join(ErrInsufficientWorkers, runErr)
	}
	report.RunID = runID
	report.Round = round
	report.BlobVersion, report.BlobDigest = current.Version, current.Digest

	if runErr == nil && report.Aggregated {
		committed, err := svc.commit(ctx, runID, round, current.Version+1, next)
		if err != nil {
			return report, err
		}
		svc.setCurrent(runID, committed)
		report.BlobVersion, report.BlobDigest = committed.Version, committed.Digest
	}

	if report.Dispatched > 0 || runErr == nil {
		if err := svc.record(ctx, report); err != nil {
			return report, errors.Join(runErr, err)
		}
	}

	return report, runErr
}

func (svc *service) record(ctx context.Context, report fl.Report) error {
	if err := svc.repos.Reports.Create(ctx, report); err != nil {
		return fmt.Errorf("failed to record round %d report: %w", report.Round, err)
	}

	args := []any{
		slog.String("run_id", report.RunID),
		slog.Uint64("round", report.Round),
		slog.Int("dispatched", report.Dispatched),
		slog.Int("successes", report.Successes),
		slog.Int("failures", report.Failures),
		slog.Bool("aggregated", report.Aggregated),
		slog.Bool("degraded", report.Degraded),
		slog.Uint64("blob_version", report.BlobVersion),
	}
	if report.Accuracy != nil {
		args = append(args, slog.Float64("accuracy", *report.Accuracy))
	}
	if report.EvalAccuracy != nil {
		args = append(args, slog.Float64("eval_accuracy", *report.EvalAccuracy))
	}
	if report.Degraded {
		svc.logger.WarnContext(ctx, "round completed degraded", args...)
	} else {
		svc.logger.InfoContext(ctx, "round completed", args...)
	}

	for _, sink := range svc.sinks {
		if err := sink.Emit(ctx, report); err != nil {
			svc.logger.WarnContext(ctx, "failed to emit round report", slog.Uint64("round", report.Round), slog.Any("error", err))
		}
	}

	return nil
}

func (svc *service) setCurrent(runID string, v fl.BlobVersion) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.runID = runID
	svc.current = v
	svc.hasBlob = true
}

func (svc *service) currentBlob() fl.BlobVersion {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	return svc.current
}

func (svc *service) currentRun() (string, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	if svc.runID == "" {
		return "", ErrNoRun
	}

	return svc.runID, nil
}

func (svc *service) Report(ctx context.Context, round uint64) (fl.Report, error) {
	runID, err := svc.currentRun()
	if err != nil {
		return fl.Report{}, err
	}

	return svc.repos.Reports.Get(ctx, runID, round)
}

func (svc *service) Reports(ctx context.Context, offset, limit uint64) (fl.ReportPage, error) {
	page := fl.ReportPage{
		Offset:  offset,
		Limit:   limit,
		Reports: []fl.Report{},
	}

	runID, err := svc.currentRun()
	if err != nil {
		if errors.Is(err, ErrNoRun) {
			return page, nil
		}

		return fl.ReportPage{}, err
	}

	reports, total, err := svc.repos.Reports.List(ctx, runID, offset, limit)
	if err != nil {
		return fl.ReportPage{}, err
	}
	page.Total = total
	if reports != nil {
		page.Reports = reports
	}

	return page, nil
}

func (svc *service) Blob(ctx context.Context) (fl.BlobVersion, error) {
	svc.mu.RLock()
	current, ok := svc.current, svc.hasBlob
	svc.mu.RUnlock()
	if ok {
		return current, nil
	}

	return svc.repos.Blobs.Latest(ctx)
}
