package middleware

import (
	"context"
	"time"

	"github.com/absmach/dronefl/federation"
	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/netsim"
	"github.com/go-kit/kit/metrics"
)

var _ federation.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     federation.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc federation.Service) federation.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) observe(method string, begin time.Time) {
	mm.counter.With("method", method).Add(1)
	mm.latency.With("method", method).Observe(time.Since(begin).Seconds())
}

func (mm *metricsMiddleware) Register(ctx context.Context, p netsim.Profile) error {
	defer mm.observe("register-drone", time.Now())

	return mm.svc.Register(ctx, p)
}

func (mm *metricsMiddleware) Deregister(ctx context.Context, droneID string) error {
	defer mm.observe("deregister-drone", time.Now())

	return mm.svc.Deregister(ctx, droneID)
}

func (mm *metricsMiddleware) Drone(ctx context.Context, droneID string) (netsim.Profile, error) {
	defer mm.observe("get-drone", time.Now())

	return mm.svc.Drone(ctx, droneID)
}

func (mm *metricsMiddleware) Drones(ctx context.Context, offset, limit uint64) (federation.DronePage, error) {
	defer mm.observe("list-drones", time.Now())

	return mm.svc.Drones(ctx, offset, limit)
}

func (mm *metricsMiddleware) Run(ctx context.Context) (federation.Summary, error) {
	defer mm.observe("run-federation", time.Now())

	return mm.svc.Run(ctx)
}

func (mm *metricsMiddleware) Report(ctx context.Context, round uint64) (fl.Report, error) {
	defer mm.observe("get-report", time.Now())

	return mm.svc.Report(ctx, round)
}

func (mm *metricsMiddleware) Reports(ctx context.Context, offset, limit uint64) (fl.ReportPage, error) {
	defer mm.observe("list-reports", time.Now())

	return mm.svc.Reports(ctx, offset, limit)
}

func (mm *metricsMiddleware) Blob(ctx context.Context) (fl.BlobVersion, error) {
	defer mm.observe("get-blob", time.Now())

	return mm.svc.Blob(ctx)
}
