package middleware

import (
	"context"

	"github.com/absmach/dronefl/federation"
	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/netsim"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ federation.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    federation.Service
}

func Tracing(tracer trace.Tracer, svc federation.Service) federation.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) Register(ctx context.Context, p netsim.Profile) error {
	ctx, span := tm.tracer.Start(ctx, "register-drone", trace.WithAttributes(
		attribute.String("drone.id", p.DroneID),
		attribute.String("drone.priority", p.Priority.String()),
	))
	defer span.End()

	return tm.svc.Register(ctx, p)
}

func (tm *tracing) Deregister(ctx context.Context, droneID string) error {
	ctx, span := tm.tracer.Start(ctx, "deregister-drone", trace.WithAttributes(
		attribute.String("drone.id", droneID),
	))
	defer span.End()

	return tm.svc.Deregister(ctx, droneID)
}

func (tm *tracing) Drone(ctx context.Context, droneID string) (netsim.Profile, error) {
	ctx, span := tm.tracer.Start(ctx, "get-drone", trace.WithAttributes(
		attribute.String("drone.id", droneID),
	))
	defer span.End()

	return tm.svc.Drone(ctx, droneID)
}

func (tm *tracing) Drones(ctx context.Context, offset, limit uint64) (federation.DronePage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-drones", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.Drones(ctx, offset, limit)
}

func (tm *tracing) Run(ctx context.Context) (resp federation.Summary, err error) {
	ctx, span := tm.tracer.Start(ctx, "run-federation")
	defer func() {
		span.SetAttributes(
			attribute.String("run.id", resp.RunID),
			attribute.Int("run.rounds", resp.Rounds),
			attribute.Int("run.degraded", resp.Degraded),
		)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	return tm.svc.Run(ctx)
}

func (tm *tracing) Report(ctx context.Context, round uint64) (fl.Report, error) {
	ctx, span := tm.tracer.Start(ctx, "get-report", trace.WithAttributes(
		attribute.Int64("round", int64(round)),
	))
	defer span.End()

	return tm.svc.Report(ctx, round)
}

func (tm *tracing) Reports(ctx context.Context, offset, limit uint64) (fl.ReportPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-reports", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.Reports(ctx, offset, limit)
}

func (tm *tracing) Blob(ctx context.Context) (fl.BlobVersion, error) {
	ctx, span := tm.tracer.Start(ctx, "get-blob")
	defer span.End()

	return tm.svc.Blob(ctx)
}
