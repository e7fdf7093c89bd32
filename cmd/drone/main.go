package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/dronefl/drone"
	"github.com/absmach/dronefl/pkg/mqtt"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const (
	svcName = "drone"
	pathEnv = ".env"
)

type envConfig struct {
	LogLevel     string      `env:"DRONE_LOG_LEVEL"     envDefault:"info"`
	DroneID      string      `env:"DRONE_ID"`
	MQTT         mqtt.Config `envPrefix:"DRONE_MQTT_"`
	ChannelID    string      `env:"DRONE_CHANNEL_ID"`
	Seed         uint64      `env:"DRONE_SEED"          envDefault:"42"`
	LearningRate float64     `env:"DRONE_LEARNING_RATE" envDefault:"0.2"`
	Samples      int         `env:"DRONE_SAMPLES"       envDefault:"0"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.DroneID == "" {
		cfg.DroneID = namegenerator.NewGenerator().Generate()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler).With(slog.String("drone_id", cfg.DroneID))
	slog.SetDefault(logger)

	pubsub, err := mqtt.NewPubSub(cfg.MQTT, cfg.DroneID, &mqtt.Will{Topics: mqtt.NewTopics(cfg.ChannelID), DroneID: cfg.DroneID}, logger)
	if err != nil {
		logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

		return
	}
	defer func() {
		if err := pubsub.Disconnect(context.Background()); err != nil {
			logger.Warn("failed to disconnect mqtt client", slog.Any("error", err))
		}
	}()

	simCfg := drone.SimConfig{
		Seed:         cfg.Seed,
		LearningRate: cfg.LearningRate,
	}
	if cfg.Samples > 0 {
		simCfg.Samples = map[string]int{cfg.DroneID: cfg.Samples}
	}

	agent, err := drone.NewAgent(ctx, cfg.DroneID, cfg.ChannelID, pubsub, drone.NewSimTrainer(simCfg), logger)
	if err != nil {
		logger.Error("failed to start drone agent", slog.Any("error", err))

		return
	}

	g.Go(func() error {
		return agent.Run(ctx)
	})

	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case s := <-sig:
			logger.Info("received shutdown signal", slog.String("signal", s.String()))
			cancel()
		case <-ctx.Done():
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s exited with error: %s", svcName, err))
	}
}
