package dronefl

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/absmach/dronefl/coordinator"
	"github.com/absmach/dronefl/drone"
	"github.com/absmach/dronefl/federation"
	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/netsim"
	"github.com/pelletier/go-toml"
)

var ErrInvalidFleet = errors.New("invalid fleet configuration")

// Config is the fleet file. Durations are in seconds.
type Config struct {
	Federation FederationConfig `toml:"federation"`
	Simulation SimulationConfig `toml:"simulation"`
	Tensors    []TensorConfig   `toml:"tensors"`
	Drones     []DroneConfig    `toml:"drones"`
}

type FederationConfig struct {
	NumRounds              int     `toml:"num_rounds"`
	FractionFit            float64 `toml:"fraction_fit"`
	FractionEvaluate       float64 `toml:"fraction_evaluate"`
	MinFitClients          int     `toml:"min_fit_clients"`
	MinEvaluateClients     int     `toml:"min_evaluate_clients"`
	MinAvailableWorkers    int     `toml:"min_available_workers"`
	RegistrationTimeout    float64 `toml:"registration_timeout"`
	MaxConsecutiveDegraded int     `toml:"max_consecutive_degraded"`
	Resume                 bool    `toml:"resume"`
}

type SimulationConfig struct {
	Seed         uint64  `toml:"seed"`
	TimeScale    float64 `toml:"time_scale"`
	BaseEpochs   int     `toml:"base_epochs"`
	MaxRetries   int     `toml:"max_retries"`
	RetryBackoff float64 `toml:"retry_backoff"`
	MaxBlobSize  int     `toml:"max_blob_size"`
	LearningRate float64 `toml:"learning_rate"`
}

type TensorConfig struct {
	Name string `toml:"name"`
	Size int    `toml:"size"`
}

type DroneConfig struct {
	ID             string  `toml:"id"`
	Priority       string  `toml:"priority"`
	PacketLoss     float64 `toml:"packet_loss"`
	LatencyMin     float64 `toml:"latency_min"`
	LatencyMax     float64 `toml:"latency_max"`
	DisconnectProb float64 `toml:"disconnect_prob"`
	Samples        int     `toml:"samples"`
}

// Default returns the configuration used for keys missing in the fleet file.
func Default() Config {
	return Config{
		Federation: FederationConfig{
			NumRounds:           10,
			FractionFit:         1,
			FractionEvaluate:    1,
			MinFitClients:       2,
			MinEvaluateClients:  2,
			MinAvailableWorkers: 2,
			RegistrationTimeout: 30,
		},
		Simulation: SimulationConfig{
			TimeScale:    1,
			BaseEpochs:   drone.DefaultBaseEpochs,
			MaxRetries:   drone.DefaultMaxRetries,
			RetryBackoff: drone.DefaultRetryBackoff.Seconds(),
			LearningRate: drone.DefaultLearningRate,
		},
		Tensors: []TensorConfig{
			{Name: "dense/kernel", Size: 16},
			{Name: "dense/bias", Size: 4},
		},
	}
}

type defaultValue struct {
	key   string
	value any
}

// defaults lists the keys filled in from Default when the fleet file omits them.
func defaults() []defaultValue {
	d := Default()

	return []defaultValue{
		{"federation.num_rounds", int64(d.Federation.NumRounds)},
		{"federation.fraction_fit", d.Federation.FractionFit},
		{"federation.fraction_evaluate", d.Federation.FractionEvaluate},
		{"federation.min_fit_clients", int64(d.Federation.MinFitClients)},
		{"federation.min_evaluate_clients", int64(d.Federation.MinEvaluateClients)},
		{"federation.min_available_workers", int64(d.Federation.MinAvailableWorkers)},
		{"federation.registration_timeout", d.Federation.RegistrationTimeout},
		{"simulation.time_scale", d.Simulation.TimeScale},
		{"simulation.base_epochs", int64(d.Simulation.BaseEpochs)},
		{"simulation.max_retries", int64(d.Simulation.MaxRetries)},
		{"simulation.retry_backoff", d.Simulation.RetryBackoff},
		{"simulation.learning_rate", d.Simulation.LearningRate},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	for _, d := range defaults() {
		if !tree.Has(d.key) {
			tree.Set(d.key, d.value)
		}
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if !tree.Has("tensors") {
		cfg.Tensors = Default().Tensors
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Encode renders the configuration as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func (c Config) Validate() error {
	if _, err := c.Profiles(); err != nil {
		return err
	}
	if len(c.Tensors) == 0 {
		return fmt.Errorf("%w: at least one tensor is required", ErrInvalidFleet)
	}
	names := make(map[string]struct{}, len(c.Tensors))
	for _, t := range c.Tensors {
		if t.Name == "" || t.Size < 1 {
			return fmt.Errorf("%w: tensor %q must have a name and a positive size", ErrInvalidFleet, t.Name)
		}
		if _, ok := names[t.Name]; ok {
			return fmt.Errorf("%w: duplicate tensor %q", ErrInvalidFleet, t.Name)
		}
		names[t.Name] = struct{}{}
	}
	switch {
	case c.Simulation.TimeScale < 0:
		return fmt.Errorf("%w: negative time_scale", ErrInvalidFleet)
	case c.Simulation.RetryBackoff < 0:
		return fmt.Errorf("%w: negative retry_backoff", ErrInvalidFleet)
	case c.Simulation.MaxRetries < 0:
		return fmt.Errorf("%w: negative max_retries", ErrInvalidFleet)
	case c.Simulation.BaseEpochs < 1:
		return fmt.Errorf("%w: base_epochs must be at least 1", ErrInvalidFleet)
	}

	return c.FederationConfig().Validate()
}

// Profiles returns the network profiles of the configured drones.
func (c Config) Profiles() ([]netsim.Profile, error) {
	profiles := make([]netsim.Profile, 0, len(c.Drones))
	seen := make(map[string]struct{}, len(c.Drones))
	for _, d := range c.Drones {
		if _, ok := seen[d.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate drone %q", ErrInvalidFleet, d.ID)
		}
		seen[d.ID] = struct{}{}

		priority := fl.PriorityLow
		if d.Priority != "" {
			p, err := fl.ParsePriority(d.Priority)
			if err != nil {
				return nil, fmt.Errorf("%w: drone %q: %w", ErrInvalidFleet, d.ID, err)
			}
			priority = p
		}
		p := netsim.Profile{
			DroneID:    d.ID,
			Priority:   priority,
			PacketLoss: d.PacketLoss,
			Latency: netsim.LatencyRange{
				Min: seconds(d.LatencyMin),
				Max: seconds(d.LatencyMax),
			},
			DisconnectProb: d.DisconnectProb,
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFleet, err)
		}
		profiles = append(profiles, p)
	}

	return profiles, nil
}

// Fleet indexes the configured profiles by drone id.
func (c Config) Fleet() (federation.FleetMap, error) {
	profiles, err := c.Profiles()
	if err != nil {
		return nil, err
	}
	fleet := make(federation.FleetMap, len(profiles))
	for _, p := range profiles {
		fleet[p.DroneID] = p
	}

	return fleet, nil
}

func (c Config) FederationConfig() federation.Config {
	f := c.Federation

	return federation.Config{
		NumRounds: f.NumRounds,
		Round: coordinator.Config{
			FractionFit:         f.FractionFit,
			FractionEvaluate:    f.FractionEvaluate,
			MinFitClients:       f.MinFitClients,
			MinEvaluateClients:  f.MinEvaluateClients,
			MinAvailableWorkers: f.MinAvailableWorkers,
		},
		RegistrationTimeout:    seconds(f.RegistrationTimeout),
		MaxConsecutiveDegraded: f.MaxConsecutiveDegraded,
		Resume:                 f.Resume,
	}
}

func (c Config) SessionConfig() drone.SessionConfig {
	retries := c.Simulation.MaxRetries
	if retries == 0 {
		retries = drone.NoRetries
	}

	return drone.SessionConfig{
		BaseEpochs:   c.Simulation.BaseEpochs,
		MaxRetries:   retries,
		RetryBackoff: seconds(c.Simulation.RetryBackoff),
		MaxBlobSize:  c.Simulation.MaxBlobSize,
	}
}

func (c Config) SimConfig() drone.SimConfig {
	samples := make(map[string]int)
	for _, d := range c.Drones {
		if d.Samples > 0 {
			samples[d.ID] = d.Samples
		}
	}

	return drone.SimConfig{
		Seed:         c.Simulation.Seed,
		LearningRate: c.Simulation.LearningRate,
		Samples:      samples,
	}
}

// InitialBlob encodes zero-valued tensors of the configured shape.
func (c Config) InitialBlob() (fl.Blob, error) {
	shape := make(map[string]int, len(c.Tensors))
	for _, t := range c.Tensors {
		shape[t.Name] = t.Size
	}

	return fl.EncodeTensors(fl.ZeroTensors(shape))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
