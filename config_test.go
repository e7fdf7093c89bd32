package dronefl_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/absmach/dronefl"
	"github.com/absmach/dronefl/drone"
	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/netsim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fleetTOML = `
[federation]
num_rounds = 4
fraction_fit = 0.5
fraction_evaluate = 0.0
min_fit_clients = 1
min_evaluate_clients = 1
min_available_workers = 2
registration_timeout = 1.5

[simulation]
seed = 9
time_scale = 0.0
retry_backoff = 0.25

[[tensors]]
name = "w"
size = 3

[[drones]]
id = "d1"
priority = "high"
packet_loss = 0.1
latency_min = 0.05
latency_max = 0.2
disconnect_prob = 0.05
samples = 80

[[drones]]
id = "d2"
`

func TestParseConfig(t *testing.T) {
	cfg, err := dronefl.ParseConfig([]byte(fleetTOML))
	require.NoError(t, err)

	fed := cfg.FederationConfig()
	assert.Equal(t, 4, fed.NumRounds)
	assert.InDelta(t, 0.5, fed.Round.FractionFit, 1e-9)
	assert.Zero(t, fed.Round.FractionEvaluate)
	assert.Equal(t, 1500*time.Millisecond, fed.RegistrationTimeout)

	profiles, err := cfg.Profiles()
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, netsim.Profile{
		DroneID:        "d1",
		Priority:       fl.PriorityHigh,
		PacketLoss:     0.1,
		Latency:        netsim.LatencyRange{Min: 50 * time.Millisecond, Max: 200 * time.Millisecond},
		DisconnectProb: 0.05,
	}, profiles[0])
	assert.Equal(t, fl.PriorityLow, profiles[1].Priority)

	session := cfg.SessionConfig()
	assert.Equal(t, 250*time.Millisecond, session.RetryBackoff)
	assert.Equal(t, 3, session.MaxRetries, "missing keys take their defaults")
	assert.Equal(t, 1, session.BaseEpochs)

	sim := cfg.SimConfig()
	assert.Equal(t, uint64(9), sim.Seed)
	assert.Equal(t, map[string]int{"d1": 80}, sim.Samples)

	blob, err := cfg.InitialBlob()
	require.NoError(t, err)
	tensors, err := fl.DecodeTensors(blob)
	require.NoError(t, err)
	assert.Equal(t, fl.Tensors{"w": {0, 0, 0}}, tensors)
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := dronefl.ParseConfig([]byte(`
[[drones]]
id = "a"

[[drones]]
id = "b"
`))
	require.NoError(t, err)

	def := dronefl.Default()
	assert.Equal(t, def.Federation, cfg.Federation)
	assert.Equal(t, def.Tensors, cfg.Tensors)
	assert.InDelta(t, def.Simulation.TimeScale, cfg.Simulation.TimeScale, 1e-9)
}

func TestParseConfigInvalid(t *testing.T) {
	cases := []struct {
		desc string
		toml string
	}{
		{desc: "malformed", toml: "[federation"},
		{desc: "unknown priority", toml: "[[drones]]\nid = \"a\"\npriority = \"urgent\""},
		{desc: "duplicate drone", toml: "[[drones]]\nid = \"a\"\n[[drones]]\nid = \"a\""},
		{desc: "missing drone id", toml: "[[drones]]\npriority = \"low\""},
		{desc: "packet loss out of range", toml: "[[drones]]\nid = \"a\"\npacket_loss = 1.5"},
		{desc: "inverted latency", toml: "[[drones]]\nid = \"a\"\nlatency_min = 2.0\nlatency_max = 1.0"},
		{desc: "zero rounds", toml: "[federation]\nnum_rounds = 0"},
		{desc: "fraction above one", toml: "[federation]\nfraction_fit = 1.5"},
		{desc: "negative time scale", toml: "[simulation]\ntime_scale = -1.0"},
		{desc: "zero base epochs", toml: "[simulation]\nbase_epochs = 0"},
		{desc: "negative max retries", toml: "[simulation]\nmax_retries = -1"},
		{desc: "empty tensor", toml: "[[tensors]]\nname = \"w\"\nsize = 0"},
		{desc: "duplicate tensor", toml: "[[tensors]]\nname = \"w\"\nsize = 1\n[[tensors]]\nname = \"w\"\nsize = 2"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := dronefl.ParseConfig([]byte(tc.toml))
			assert.Error(t, err)
		})
	}
}

func TestSessionConfigRetries(t *testing.T) {
	cases := []struct {
		desc    string
		toml    string
		retries int
	}{
		{desc: "default", toml: "", retries: drone.DefaultMaxRetries},
		{desc: "explicit", toml: "[simulation]\nmax_retries = 5", retries: 5},
		{desc: "disabled", toml: "[simulation]\nmax_retries = 0", retries: drone.NoRetries},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg, err := dronefl.ParseConfig([]byte(tc.toml + "\n[[drones]]\nid = \"a\"\n"))
			require.NoError(t, err)
			assert.Equal(t, tc.retries, cfg.SessionConfig().MaxRetries)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := dronefl.LoadConfig(filepath.Join("examples", "fleet", "fleet.toml"))
	require.NoError(t, err)
	assert.Len(t, cfg.Drones, 5)

	fleet, err := cfg.Fleet()
	require.NoError(t, err)
	assert.Equal(t, fl.PriorityMedium, fleet["relay-1"].Priority)

	_, err = dronefl.LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg, err := dronefl.ParseConfig([]byte(fleetTOML))
	require.NoError(t, err)

	data, err := cfg.Encode()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "fleet.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := dronefl.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
