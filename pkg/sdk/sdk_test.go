package sdk_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/absmach/dronefl/coordinator"
	"github.com/absmach/dronefl/drone"
	"github.com/absmach/dronefl/federation"
	"github.com/absmach/dronefl/federation/api"
	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/netsim"
	"github.com/absmach/dronefl/pkg/sdk"
	"github.com/absmach/dronefl/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	sdk sdk.SDK
	svc federation.Service
}

func setup(t *testing.T) env {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repos, err := storage.NewRepositories(storage.Config{Type: "memory"})
	require.NoError(t, err)

	registry := federation.NewRegistry()
	session := drone.NewSession(registry, netsim.NewSeededLink(1), drone.NewSimTrainer(drone.SimConfig{Seed: 1}), netsim.NewClock(0), drone.SessionConfig{}, logger)
	cfg := federation.Config{
		NumRounds: 2,
		Round: coordinator.Config{
			FractionFit:         1,
			MinFitClients:       1,
			MinEvaluateClients:  1,
			MinAvailableWorkers: 1,
		},
	}
	coord := coordinator.New(cfg.Round, session, nil, nil, logger)

	initial, err := fl.EncodeTensors(fl.ZeroTensors(map[string]int{"w": 3}))
	require.NoError(t, err)

	svc := federation.NewService(cfg, registry, coord, repos, initial, nil, logger)
	ts := httptest.NewServer(api.MakeHandler(svc, logger, "sdk-test"))
	t.Cleanup(ts.Close)

	return env{
		sdk: sdk.NewSDK(sdk.Config{CoordinatorURL: ts.URL + "/"}),
		svc: svc,
	}
}

func TestDrones(t *testing.T) {
	e := setup(t)

	p := netsim.Profile{
		DroneID:  "drone-1",
		Priority: fl.PriorityMedium,
		Latency:  netsim.LatencyRange{Min: time.Millisecond, Max: 2 * time.Millisecond},
	}
	created, err := e.sdk.RegisterDrone(p)
	require.NoError(t, err)
	assert.Equal(t, p, created)

	_, err = e.sdk.RegisterDrone(netsim.Profile{DroneID: "drone-1", Priority: fl.PriorityLow})
	assert.ErrorContains(t, err, "409")

	_, err = e.sdk.RegisterDrone(netsim.Profile{DroneID: "drone-2", PacketLoss: 4})
	assert.ErrorContains(t, err, "400")

	got, err := e.sdk.GetDrone("drone-1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	page, err := e.sdk.ListDrones(0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), page.Total)
	assert.Equal(t, []netsim.Profile{p}, page.Drones)

	require.NoError(t, e.sdk.DeregisterDrone("drone-1"))
	_, err = e.sdk.GetDrone("drone-1")
	assert.ErrorContains(t, err, "404")
	assert.ErrorContains(t, e.sdk.DeregisterDrone("drone-1"), "404")
}

func TestRoundsAndModel(t *testing.T) {
	e := setup(t)

	_, err := e.sdk.GetModel()
	assert.ErrorContains(t, err, "404")
	_, err = e.sdk.GetRound(1)
	assert.ErrorContains(t, err, "404")
	page, err := e.sdk.ListRounds(0, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Reports)

	_, err = e.sdk.RegisterDrone(netsim.Profile{DroneID: "drone-1"})
	require.NoError(t, err)
	summary, err := e.svc.Run(context.Background())
	require.NoError(t, err)

	page, err = e.sdk.ListRounds(0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), page.Total)

	r, err := e.sdk.GetRound(2)
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, r.RunID)
	assert.Equal(t, fl.Success, r.Tags()["drone-1"])

	model, err := e.sdk.GetModel()
	require.NoError(t, err)
	assert.Equal(t, summary.BlobVersion, model.Version)
	assert.Equal(t, model.Blob.Digest(), model.Digest)
}
