package mocks

import (
	"context"

	"github.com/absmach/dronefl/federation"
	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/netsim"
	"github.com/stretchr/testify/mock"
)

var _ federation.Service = (*Service)(nil)

// Service is a mock implementation of federation.Service.
type Service struct {
	mock.Mock
}

func (m *Service) Register(ctx context.Context, p netsim.Profile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *Service) Deregister(ctx context.Context, droneID string) error {
	args := m.Called(ctx, droneID)
	return args.Error(0)
}

func (m *Service) Drone(ctx context.Context, droneID string) (netsim.Profile, error) {
	args := m.Called(ctx, droneID)
	return args.Get(0).(netsim.Profile), args.Error(1)
}

func (m *Service) Drones(ctx context.Context, offset, limit uint64) (federation.DronePage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(federation.DronePage), args.Error(1)
}

func (m *Service) Run(ctx context.Context) (federation.Summary, error) {
	args := m.Called(ctx)
	return args.Get(0).(federation.Summary), args.Error(1)
}

func (m *Service) Report(ctx context.Context, round uint64) (fl.Report, error) {
	args := m.Called(ctx, round)
	return args.Get(0).(fl.Report), args.Error(1)
}

func (m *Service) Reports(ctx context.Context, offset, limit uint64) (fl.ReportPage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(fl.ReportPage), args.Error(1)
}

func (m *Service) Blob(ctx context.Context) (fl.BlobVersion, error) {
	args := m.Called(ctx)
	return args.Get(0).(fl.BlobVersion), args.Error(1)
}
