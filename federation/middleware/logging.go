package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/dronefl/federation"
	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/netsim"
)

var _ federation.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    federation.Service
}

func Logging(logger *slog.Logger, svc federation.Service) federation.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Register(ctx context.Context, p netsim.Profile) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("drone",
				slog.String("id", p.DroneID),
				slog.String("priority", p.Priority.String()),
				slog.Float64("packet_loss", p.PacketLoss),
				slog.Float64("disconnect_prob", p.DisconnectProb),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Register drone failed", args...)

			return
		}
		lm.logger.Info("Register drone completed successfully", args...)
	}(time.Now())

	return lm.svc.Register(ctx, p)
}

func (lm *loggingMiddleware) Deregister(ctx context.Context, droneID string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("drone",
				slog.String("id", droneID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Deregister drone failed", args...)

			return
		}
		lm.logger.Info("Deregister drone completed successfully", args...)
	}(time.Now())

	return lm.svc.Deregister(ctx, droneID)
}

func (lm *loggingMiddleware) Drone(ctx context.Context, droneID string) (resp netsim.Profile, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("drone",
				slog.String("id", droneID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get drone failed", args...)

			return
		}
		lm.logger.Info("Get drone completed successfully", args...)
	}(time.Now())

	return lm.svc.Drone(ctx, droneID)
}

func (lm *loggingMiddleware) Drones(ctx context.Context, offset, limit uint64) (resp federation.DronePage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List drones failed", args...)

			return
		}
		lm.logger.Info("List drones completed successfully", args...)
	}(time.Now())

	return lm.svc.Drones(ctx, offset, limit)
}

func (lm *loggingMiddleware) Run(ctx context.Context) (resp federation.Summary, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("run",
				slog.String("id", resp.RunID),
				slog.Int("rounds", resp.Rounds),
				slog.Int("degraded", resp.Degraded),
				slog.Uint64("blob_version", resp.BlobVersion),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Federation run failed", args...)

			return
		}
		lm.logger.Info("Federation run completed successfully", args...)
	}(time.Now())

	return lm.svc.Run(ctx)
}

func (lm *loggingMiddleware) Report(ctx context.Context, round uint64) (resp fl.Report, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("round", round),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get round report failed", args...)

			return
		}
		lm.logger.Info("Get round report completed successfully", args...)
	}(time.Now())

	return lm.svc.Report(ctx, round)
}

func (lm *loggingMiddleware) Reports(ctx context.Context, offset, limit uint64) (resp fl.ReportPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List round reports failed", args...)

			return
		}
		lm.logger.Info("List round reports completed successfully", args...)
	}(time.Now())

	return lm.svc.Reports(ctx, offset, limit)
}

func (lm *loggingMiddleware) Blob(ctx context.Context) (resp fl.BlobVersion, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("blob",
				slog.Uint64("version", resp.Version),
				slog.String("digest", resp.Digest),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get blob failed", args...)

			return
		}
		lm.logger.Info("Get blob completed successfully", args...)
	}(time.Now())

	return lm.svc.Blob(ctx)
}
