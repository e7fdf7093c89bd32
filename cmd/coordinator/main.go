package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"os"
	"time"

	"github.com/absmach/dronefl"
	"github.com/absmach/dronefl/coordinator"
	"github.com/absmach/dronefl/drone"
	"github.com/absmach/dronefl/federation"
	"github.com/absmach/dronefl/federation/api"
	"github.com/absmach/dronefl/federation/middleware"
	"github.com/absmach/dronefl/pkg/mqtt"
	"github.com/absmach/dronefl/pkg/netsim"
	"github.com/absmach/dronefl/pkg/storage"
	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/prometheus"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName       = "coordinator"
	defHTTPPort   = "7070"
	envPrefixHTTP = "COORDINATOR_HTTP_"
	pathEnv       = ".env"

	modeSim  = "sim"
	modeMQTT = "mqtt"
)

type envConfig struct {
	LogLevel      string        `env:"COORDINATOR_LOG_LEVEL"        envDefault:"info"`
	InstanceID    string        `env:"COORDINATOR_INSTANCE_ID"`
	FleetFile     string        `env:"COORDINATOR_FLEET_FILE"       envDefault:"examples/fleet/fleet.toml"`
	Mode          string        `env:"COORDINATOR_MODE"             envDefault:"sim"`
	ExitOnDone    bool          `env:"COORDINATOR_EXIT_ON_DONE"     envDefault:"false"`
	MQTT          mqtt.Config   `envPrefix:"COORDINATOR_MQTT_"`
	RemoteTimeout time.Duration `env:"COORDINATOR_REMOTE_TIMEOUT"   envDefault:"2m"`
	ChannelID     string        `env:"COORDINATOR_CHANNEL_ID"`
	Storage       storage.Config
	OTELURL       url.URL `env:"COORDINATOR_OTEL_URL"`
	TraceRatio    float64 `env:"COORDINATOR_TRACE_RATIO" envDefault:"0"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	fleetCfg, err := dronefl.LoadConfig(cfg.FleetFile)
	if err != nil {
		logger.Error("failed to load fleet configuration", slog.String("path", cfg.FleetFile), slog.Any("error", err))

		return
	}

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	repos, err := storage.NewRepositories(cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize storage", slog.String("type", cfg.Storage.Type), slog.Any("error", err))

		return
	}
	if repos.Closer != nil {
		defer repos.Closer.Close()
	}

	initial, err := fleetCfg.InitialBlob()
	if err != nil {
		logger.Error("failed to build initial blob", slog.Any("error", err))

		return
	}

	registry := federation.NewRegistry()
	fleet, err := fleetCfg.Fleet()
	if err != nil {
		logger.Error("invalid fleet", slog.Any("error", err))

		return
	}

	var (
		trainer drone.Trainer
		pubsub  mqtt.PubSub
		remote  *drone.RemoteTrainer
		sinks   []federation.Sink
	)
	switch cfg.Mode {
	case modeSim:
		trainer = drone.NewSimTrainer(fleetCfg.SimConfig())
		profiles, err := fleetCfg.Profiles()
		if err != nil {
			logger.Error("invalid fleet", slog.Any("error", err))

			return
		}
		for _, p := range profiles {
			if err := registry.Register(p); err != nil {
				logger.Error("failed to register drone", slog.String("drone_id", p.DroneID), slog.Any("error", err))

				return
			}
		}
	case modeMQTT:
		pubsub, err = mqtt.NewPubSub(cfg.MQTT, svcName+"-"+cfg.InstanceID, nil, logger)
		if err != nil {
			logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := pubsub.Disconnect(context.Background()); err != nil {
				logger.Warn("failed to disconnect mqtt client", slog.Any("error", err))
			}
		}()
		remote = drone.NewRemoteTrainer(pubsub, cfg.ChannelID, cfg.RemoteTimeout, logger)
		trainer = remote
		sinks = append(sinks, federation.NewMQTTSink(pubsub, cfg.ChannelID))
	default:
		logger.Error("unsupported mode", slog.String("mode", cfg.Mode))

		return
	}

	seed := fleetCfg.Simulation.Seed
	clock := netsim.NewClock(fleetCfg.Simulation.TimeScale)
	session := drone.NewSession(registry, netsim.NewSeededLink(seed), trainer, clock, fleetCfg.SessionConfig(), logger)
	fedCfg := fleetCfg.FederationConfig()
	rounds := coordinator.New(fedCfg.Round, session, nil, rand.NewPCG(seed, seed^0x9e3779b97f4a7c15), logger)

	var svc federation.Service
	svc = federation.NewService(fedCfg, registry, rounds, repos, initial, sinks, logger)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	if pubsub != nil {
		if err := federation.Subscribe(ctx, cfg.ChannelID, pubsub, svc, fleet, remote, logger); err != nil {
			logger.Error("failed to subscribe to drone channel", slog.String("error", err.Error()))

			return
		}
	}

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	g.Go(func() error {
		summary, err := svc.Run(ctx)
		switch {
		case err == nil:
			logger.Info("federation finished",
				slog.String("run_id", summary.RunID),
				slog.Int("rounds", summary.Rounds),
				slog.Int("degraded", summary.Degraded),
				slog.Uint64("blob_version", summary.BlobVersion),
			)
		case errors.Is(err, context.Canceled):
			return nil
		default:
			logger.Error("federation aborted", slog.String("run_id", summary.RunID), slog.Any("error", err))
		}
		if cfg.ExitOnDone {
			cancel()
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}
