package cli_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/absmach/dronefl/cli"
	"github.com/absmach/dronefl/coordinator"
	"github.com/absmach/dronefl/federation"
	"github.com/absmach/dronefl/federation/api"
	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/sdk"
	"github.com/absmach/dronefl/pkg/storage"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fleetFile = filepath.Join("..", "examples", "fleet", "fleet.toml")

func setup(t *testing.T) federation.Service {
	t.Helper()
	color.NoColor = true

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repos, err := storage.NewRepositories(storage.Config{})
	require.NoError(t, err)
	initial, err := fl.EncodeTensors(fl.ZeroTensors(map[string]int{"w": 2}))
	require.NoError(t, err)

	svc := federation.NewService(federation.Config{NumRounds: 1, Round: coordinator.Config{FractionFit: 1, MinFitClients: 1, MinEvaluateClients: 1, MinAvailableWorkers: 1}},
		federation.NewRegistry(), nil, repos, initial, nil, logger)
	ts := httptest.NewServer(api.MakeHandler(svc, logger, "cli-test"))
	t.Cleanup(ts.Close)
	cli.SetSDK(sdk.NewSDK(sdk.Config{CoordinatorURL: ts.URL}))

	return svc
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())

	return stdout.String(), stderr.String()
}

func TestDronesCmd(t *testing.T) {
	setup(t)

	cases := []struct {
		desc   string
		args   []string
		stdout string
		stderr string
	}{
		{desc: "register drone", args: []string{"register", "scout-1", "--priority", "high", "--packet-loss", "0.1"}, stdout: `"drone_id": "scout-1"`},
		{desc: "register with bad priority", args: []string{"register", "scout-2", "--priority", "urgent"}, stderr: "error"},
		{desc: "register without id", args: []string{"register"}, stdout: "usage: register <id>"},
		{desc: "view drone", args: []string{"view", "scout-1"}, stdout: `"priority": "high"`},
		{desc: "view unknown drone", args: []string{"view", "ghost"}, stderr: "404"},
		{desc: "list drones", args: []string{"list"}, stdout: `"total": 1`},
		{desc: "deregister drone", args: []string{"deregister", "scout-1"}, stdout: "ok"},
		{desc: "deregister twice", args: []string{"deregister", "scout-1"}, stderr: "404"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			stdout, stderr := execute(t, cli.NewDronesCmd(), tc.args...)
			if tc.stdout != "" {
				assert.Contains(t, stdout, tc.stdout)
			}
			if tc.stderr != "" {
				assert.Contains(t, stderr, tc.stderr)
			}
		})
	}
}

func TestFleetCmd(t *testing.T) {
	svc := setup(t)

	stdout, stderr := execute(t, cli.NewFleetCmd(), "check", fleetFile)
	assert.Empty(t, stderr)
	assert.Contains(t, stdout, "relay-1")

	_, stderr = execute(t, cli.NewFleetCmd(), "check", filepath.Join(t.TempDir(), "missing.toml"))
	assert.Contains(t, stderr, "error")

	stdout, stderr = execute(t, cli.NewFleetCmd(), "register", fleetFile)
	assert.Empty(t, stderr)
	assert.Contains(t, stdout, "Successfully registered survey-2")

	page, err := svc.Drones(t.Context(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), page.Total)
}

func TestRoundsCmdBeforeRun(t *testing.T) {
	setup(t)

	_, stderr := execute(t, cli.NewRoundsCmd(), "view", "1")
	assert.Contains(t, stderr, "404")

	_, stderr = execute(t, cli.NewRoundsCmd(), "view", "first")
	assert.Contains(t, stderr, "error")

	stdout, _ := execute(t, cli.NewRoundsCmd(), "list")
	assert.Contains(t, stdout, `"total": 0`)

	_, stderr = execute(t, cli.NewModelCmd())
	assert.Contains(t, stderr, "404")
}
