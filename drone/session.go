package drone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/netsim"
	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 500 * time.Millisecond
	DefaultBaseEpochs   = 1
)

// NoRetries disables upload retries. A zero MaxRetries takes DefaultMaxRetries.
const NoRetries = -1

var errPacketLost = errors.New("packet lost")

// Profiles resolves the network profile of a registered drone.
type Profiles interface {
	Profile(droneID string) (netsim.Profile, bool)
}

type SessionConfig struct {
	BaseEpochs   int
	MaxRetries   int
	RetryBackoff time.Duration
	MaxBlobSize  int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.BaseEpochs < 1 {
		c.BaseEpochs = DefaultBaseEpochs
	}
	switch {
	case c.MaxRetries == 0:
		c.MaxRetries = DefaultMaxRetries
	case c.MaxRetries < 0:
		c.MaxRetries = 0
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	}
	if c.MaxBlobSize <= 0 {
		c.MaxBlobSize = fl.DefaultMaxBlobSize
	}

	return c
}

// Session runs the per-round protocol of each drone: profile lookup,
// disconnection check, local update and upload over the simulated link. It
// also tracks the recovery deadline of drones that disconnected.
type Session struct {
	profiles Profiles
	network  netsim.Network
	trainer  Trainer
	clock    netsim.Clock
	cfg      SessionConfig
	logger   *slog.Logger

	mu        sync.Mutex
	notBefore map[string]time.Time
}

func NewSession(profiles Profiles, network netsim.Network, trainer Trainer, clock netsim.Clock, cfg SessionConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		profiles:  profiles,
		network:   network,
		trainer:   trainer,
		clock:     clock,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		notBefore: make(map[string]time.Time),
	}
}

// CanEvaluate reports whether the configured trainer supports evaluation.
func (s *Session) CanEvaluate() bool {
	_, ok := s.trainer.(Evaluator)

	return ok
}

// Fit runs one drone's participation in the fit phase of a round.
func (s *Session) Fit(ctx context.Context, droneID string, round uint64, blob fl.Blob) fl.Outcome {
	start := time.Now()
	o := s.fit(ctx, droneID, round, blob)
	o.Duration = time.Since(start)
	s.log(ctx, "fit", o)

	return o
}

func (s *Session) fit(ctx context.Context, droneID string, round uint64, blob fl.Blob) fl.Outcome {
	p, o, ok := s.connect(ctx, droneID, round)
	if !ok {
		return o
	}
	metrics := fl.Metrics{Priority: p.Priority, NetworkQuality: p.NetworkQuality()}

	req := TrainRequest{
		Round:  round,
		Epochs: fl.Epochs(s.cfg.BaseEpochs, p.Priority),
		Blob:   blob,
	}
	upd, err := s.trainer.Train(ctx, droneID, req)
	if err != nil {
		return withMetrics(fl.Skipped(droneID, round, fl.SkippedEmptyParams, fmt.Sprintf("local update failed: %s", err)), metrics)
	}
	if err := upd.Blob.Validate(s.cfg.MaxBlobSize); err != nil {
		return withMetrics(fl.Skipped(droneID, round, fl.SkippedEmptyParams, err.Error()), metrics)
	}

	attempts, err := s.upload(ctx, p)
	if err != nil {
		o := withMetrics(fl.Skipped(droneID, round, fl.SkippedEmptyParams, fmt.Sprintf("upload failed: %s", err)), metrics)
		o.Attempts = attempts

		return o
	}

	metrics.Accuracy = upd.Accuracy
	o = fl.Succeeded(droneID, round, upd.Blob, upd.Samples, metrics)
	o.Metrics = metrics
	o.Attempts = attempts

	return o
}

// Evaluate runs one drone's participation in the evaluation phase. The
// trainer must implement Evaluator.
func (s *Session) Evaluate(ctx context.Context, droneID string, round uint64, blob fl.Blob) fl.Outcome {
	start := time.Now()
	o := s.evaluate(ctx, droneID, round, blob)
	o.Duration = time.Since(start)
	s.log(ctx, "evaluate", o)

	return o
}

func (s *Session) evaluate(ctx context.Context, droneID string, round uint64, blob fl.Blob) fl.Outcome {
	ev, ok := s.trainer.(Evaluator)
	if !ok {
		return fl.Skipped(droneID, round, fl.SkippedEmptyParams, "trainer does not support evaluation")
	}
	p, o, ok := s.connect(ctx, droneID, round)
	if !ok {
		return o
	}
	metrics := fl.Metrics{Priority: p.Priority, NetworkQuality: p.NetworkQuality()}

	res, err := ev.Evaluate(ctx, droneID, round, blob)
	if err != nil {
		return withMetrics(fl.Skipped(droneID, round, fl.SkippedEmptyParams, fmt.Sprintf("evaluation failed: %s", err)), metrics)
	}

	attempts, err := s.upload(ctx, p)
	if err != nil {
		o := withMetrics(fl.Skipped(droneID, round, fl.SkippedEmptyParams, fmt.Sprintf("upload failed: %s", err)), metrics)
		o.Attempts = attempts

		return o
	}

	metrics.Accuracy = res.Accuracy
	o = fl.Evaluated(droneID, round, res.Samples, metrics)
	o.Metrics = metrics
	o.Attempts = attempts

	return o
}

// connect resolves the profile, waits out any pending recovery and runs the
// disconnection check. It returns false with the terminal outcome when the
// drone cannot take part in the round.
func (s *Session) connect(ctx context.Context, droneID string, round uint64) (netsim.Profile, fl.Outcome, bool) {
	p, ok := s.profiles.Profile(droneID)
	if !ok {
		return netsim.Profile{}, fl.Skipped(droneID, round, fl.SkippedUnregistered, "no network profile registered"), false
	}
	metrics := fl.Metrics{Priority: p.Priority, NetworkQuality: p.NetworkQuality()}

	if err := s.recover(ctx, droneID); err != nil {
		return p, withMetrics(fl.Skipped(droneID, round, fl.SkippedDisconnected, fmt.Sprintf("recovery interrupted: %s", err)), metrics), false
	}

	if s.network.CheckDisconnection(p) {
		delay := s.network.RecoveryDelay()
		s.mu.Lock()
		s.notBefore[droneID] = s.clock.Now().Add(s.clock.Scale(delay))
		s.mu.Unlock()

		o := withMetrics(fl.Skipped(droneID, round, fl.SkippedDisconnected, "link disconnected"), metrics)
		o.Recovery = delay

		return p, o, false
	}

	return p, fl.Outcome{}, true
}

func (s *Session) recover(ctx context.Context, droneID string) error {
	s.mu.Lock()
	deadline, ok := s.notBefore[droneID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if err := s.clock.SleepUntil(ctx, deadline); err != nil {
		return err
	}

	s.mu.Lock()
	if s.notBefore[droneID].Equal(deadline) {
		delete(s.notBefore, droneID)
	}
	s.mu.Unlock()

	return nil
}

// upload transmits the result over the link, retrying lost packets with a
// constant backoff. It returns the number of transmissions made.
func (s *Session) upload(ctx context.Context, p netsim.Profile) (int, error) {
	attempts := 0
	op := func() (struct{}, error) {
		attempts++
		tx := s.network.Transmit(p)
		if err := s.clock.Sleep(ctx, tx.Delay); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if !tx.Delivered {
			return struct{}{}, errPacketLost
		}

		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(s.clock.Scale(s.cfg.RetryBackoff))),
		backoff.WithMaxTries(uint(s.cfg.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Debug("retrying upload",
				slog.String("drone_id", p.DroneID),
				slog.Int("attempt", attempts),
				slog.Duration("backoff", next),
				slog.Any("error", err),
			)
		}),
	)
	if err != nil {
		return attempts, fmt.Errorf("%d transmissions: %w", attempts, err)
	}

	return attempts, nil
}

func (s *Session) log(ctx context.Context, phase string, o fl.Outcome) {
	args := []any{
		slog.String("phase", phase),
		slog.Uint64("round", o.Round),
		slog.String("drone_id", o.DroneID),
		slog.String("tag", o.Tag.String()),
		slog.Int("attempts", o.Attempts),
		slog.Duration("duration", o.Duration),
	}
	if o.Reason != "" {
		args = append(args, slog.String("reason", o.Reason))
	}

	switch o.Tag {
	case fl.Success:
		s.logger.DebugContext(ctx, "session completed", args...)
	case fl.SkippedUnregistered:
		s.logger.ErrorContext(ctx, "session for unregistered drone", args...)
	default:
		s.logger.InfoContext(ctx, "session skipped", args...)
	}
}

func withMetrics(o fl.Outcome, m fl.Metrics) fl.Outcome {
	o.Metrics = m

	return o
}
