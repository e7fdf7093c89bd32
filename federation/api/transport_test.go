package api_test

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/absmach/dronefl/federation"
	"github.com/absmach/dronefl/federation/api"
	"github.com/absmach/dronefl/federation/mocks"
	pkgerrors "github.com/absmach/dronefl/pkg/errors"
	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/netsim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var profile = netsim.Profile{
	DroneID:        "drone-1",
	Priority:       fl.PriorityHigh,
	PacketLoss:     0.1,
	Latency:        netsim.LatencyRange{Min: 50 * time.Millisecond, Max: 200 * time.Millisecond},
	DisconnectProb: 0.05,
}

func newServer() (*httptest.Server, *mocks.Service) {
	svc := new(mocks.Service)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return httptest.NewServer(api.MakeHandler(svc, logger, "test")), svc
}

type request struct {
	method      string
	path        string
	contentType string
	body        string
}

func (r request) do(t *testing.T, ts *httptest.Server) *http.Response {
	req, err := http.NewRequest(r.method, ts.URL+r.path, strings.NewReader(r.body))
	require.NoError(t, err)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	res, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })

	return res
}

func TestRegisterDrone(t *testing.T) {
	body, err := json.Marshal(profile)
	require.NoError(t, err)

	cases := []struct {
		desc        string
		contentType string
		body        string
		svcErr      error
		status      int
		callsSvc    bool
	}{
		{desc: "register drone", contentType: "application/json", body: string(body), status: http.StatusCreated, callsSvc: true},
		{desc: "conflicting profile", contentType: "application/json", body: string(body), svcErr: pkgerrors.ErrEntityExists, status: http.StatusConflict, callsSvc: true},
		{desc: "wrong content type", contentType: "text/plain", body: string(body), status: http.StatusBadRequest},
		{desc: "malformed body", contentType: "application/json", body: "{", status: http.StatusBadRequest},
		{desc: "missing id", contentType: "application/json", body: `{"priority":"low"}`, status: http.StatusBadRequest},
		{desc: "invalid packet loss", contentType: "application/json", body: `{"drone_id":"d","priority":"low","packet_loss":2}`, status: http.StatusBadRequest},
		{desc: "unknown priority", contentType: "application/json", body: `{"drone_id":"d","priority":"urgent"}`, status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			ts, svc := newServer()
			defer ts.Close()
			if tc.callsSvc {
				svc.On("Register", mock.Anything, profile).Return(tc.svcErr).Once()
			}

			res := request{method: http.MethodPost, path: "/drones", contentType: tc.contentType, body: tc.body}.do(t, ts)
			assert.Equal(t, tc.status, res.StatusCode)
			if tc.status == http.StatusCreated {
				assert.Equal(t, "/drones/drone-1", res.Header.Get("Location"))
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDroneEndpoints(t *testing.T) {
	ts, svc := newServer()
	defer ts.Close()

	svc.On("Drone", mock.Anything, "drone-1").Return(profile, nil)
	svc.On("Drone", mock.Anything, "drone-9").Return(netsim.Profile{}, pkgerrors.ErrNotFound)
	svc.On("Deregister", mock.Anything, "drone-1").Return(nil)
	svc.On("Deregister", mock.Anything, "drone-9").Return(pkgerrors.ErrNotFound)
	svc.On("Drones", mock.Anything, uint64(0), uint64(100)).Return(federation.DronePage{Limit: 100, Total: 1, Drones: []netsim.Profile{profile}}, nil)
	svc.On("Drones", mock.Anything, uint64(5), uint64(10)).Return(federation.DronePage{Offset: 5, Limit: 10, Total: 1, Drones: []netsim.Profile{}}, nil)

	cases := []struct {
		desc   string
		req    request
		status int
		check  func(t *testing.T, body []byte)
	}{
		{
			desc:   "get drone",
			req:    request{method: http.MethodGet, path: "/drones/drone-1"},
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var p netsim.Profile
				require.NoError(t, json.Unmarshal(body, &p))
				assert.Equal(t, profile, p)
			},
		},
		{desc: "get unknown drone", req: request{method: http.MethodGet, path: "/drones/drone-9"}, status: http.StatusNotFound},
		{desc: "deregister drone", req: request{method: http.MethodDelete, path: "/drones/drone-1"}, status: http.StatusNoContent},
		{desc: "deregister unknown drone", req: request{method: http.MethodDelete, path: "/drones/drone-9"}, status: http.StatusNotFound},
		{
			desc:   "list drones",
			req:    request{method: http.MethodGet, path: "/drones"},
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var page federation.DronePage
				require.NoError(t, json.Unmarshal(body, &page))
				assert.Equal(t, uint64(1), page.Total)
				assert.Len(t, page.Drones, 1)
			},
		},
		{desc: "list drones with paging", req: request{method: http.MethodGet, path: "/drones?offset=5&limit=10"}, status: http.StatusOK},
		{desc: "list drones over limit", req: request{method: http.MethodGet, path: "/drones?limit=1000"}, status: http.StatusBadRequest},
		{desc: "list drones bad offset", req: request{method: http.MethodGet, path: "/drones?offset=abc"}, status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			res := tc.req.do(t, ts)
			assert.Equal(t, tc.status, res.StatusCode)
			if tc.check != nil {
				body, err := io.ReadAll(res.Body)
				require.NoError(t, err)
				tc.check(t, body)
			}
		})
	}
}

func TestRoundEndpoints(t *testing.T) {
	ts, svc := newServer()
	defer ts.Close()

	accuracy := 71.25
	report := fl.Report{RunID: "run-1", Round: 2, Dispatched: 3, Successes: 2, Failures: 1, Accuracy: &accuracy, Aggregated: true, BlobVersion: 2}
	blob := fl.NewBlob([]byte{1, 2, 3})

	svc.On("Report", mock.Anything, uint64(2)).Return(report, nil)
	svc.On("Report", mock.Anything, uint64(7)).Return(fl.Report{}, pkgerrors.ErrNotFound)
	svc.On("Report", mock.Anything, uint64(1)).Return(fl.Report{}, federation.ErrNoRun)
	svc.On("Reports", mock.Anything, uint64(0), uint64(100)).Return(fl.ReportPage{Limit: 100, Total: 1, Reports: []fl.Report{report}}, nil)
	svc.On("Blob", mock.Anything).Return(fl.BlobVersion{Version: 2, RunID: "run-1", Round: 2, Digest: blob.Digest(), Size: blob.Len(), Blob: blob}, nil)

	cases := []struct {
		desc   string
		path   string
		status int
		check  func(t *testing.T, body []byte)
	}{
		{
			desc:   "get report",
			path:   "/rounds/2",
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var r fl.Report
				require.NoError(t, json.Unmarshal(body, &r))
				assert.Equal(t, report.Round, r.Round)
				require.NotNil(t, r.Accuracy)
				assert.InDelta(t, accuracy, *r.Accuracy, 1e-9)
			},
		},
		{desc: "get missing report", path: "/rounds/7", status: http.StatusNotFound},
		{desc: "get report before any run", path: "/rounds/1", status: http.StatusNotFound},
		{desc: "get round zero", path: "/rounds/0", status: http.StatusBadRequest},
		{desc: "get non numeric round", path: "/rounds/last", status: http.StatusBadRequest},
		{
			desc:   "list reports",
			path:   "/rounds",
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var page fl.ReportPage
				require.NoError(t, json.Unmarshal(body, &page))
				assert.Len(t, page.Reports, 1)
			},
		},
		{
			desc:   "get model",
			path:   "/model",
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var v fl.BlobVersion
				require.NoError(t, json.Unmarshal(body, &v))
				assert.Equal(t, uint64(2), v.Version)
				assert.True(t, blob.Equal(v.Blob))
			},
		},
		{desc: "health", path: "/health", status: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			res := request{method: http.MethodGet, path: tc.path}.do(t, ts)
			assert.Equal(t, tc.status, res.StatusCode, fmt.Sprintf("GET %s", tc.path))
			if tc.check != nil {
				body, err := io.ReadAll(res.Body)
				require.NoError(t, err)
				tc.check(t, body)
			}
		})
	}
}
