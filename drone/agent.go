package drone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/dronefl/pkg/mqtt"
)

// Agent is the drone side of the MQTT protocol. It announces the drone, runs
// training and evaluation requests addressed to it and publishes the results.
type Agent struct {
	droneID string
	topics  mqtt.Topics
	pubsub  mqtt.PubSub
	trainer Trainer
	logger  *slog.Logger
}

func NewAgent(ctx context.Context, droneID, channelID string, pubsub mqtt.PubSub, trainer Trainer, logger *slog.Logger) (*Agent, error) {
	if droneID == "" {
		return nil, errEmptyDroneID
	}

	topics := mqtt.NewTopics(channelID)
	if err := mqtt.Announce(ctx, pubsub, topics, droneID); err != nil {
		return nil, errors.Join(errors.New("failed to publish announcement"), err)
	}

	return &Agent{
		droneID: droneID,
		topics:  topics,
		pubsub:  pubsub,
		trainer: trainer,
		logger:  logger,
	}, nil
}

func (a *Agent) Run(ctx context.Context) error {
	if err := a.pubsub.Subscribe(ctx, a.topics.Train(), a.handleTask(ctx)); err != nil {
		return fmt.Errorf("failed to subscribe to train topic: %w", err)
	}

	if _, ok := a.trainer.(Evaluator); ok {
		if err := a.pubsub.Subscribe(ctx, a.topics.Evaluate(), a.handleTask(ctx)); err != nil {
			return fmt.Errorf("failed to subscribe to evaluate topic: %w", err)
		}
	}

	a.logger.Info("Drone agent is running.", slog.String("drone_id", a.droneID))
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := mqtt.Leave(shutdownCtx, a.pubsub, a.topics, a.droneID); err != nil {
		a.logger.Warn("failed to publish offline message", slog.Any("error", err))
	}

	return nil
}

func (a *Agent) handleTask(ctx context.Context) mqtt.Handler {
	return func(_ string, msg map[string]any) error {
		var task taskMessage
		if err := Decode(msg, &task); err != nil {
			return err
		}
		if task.DroneID != a.droneID {
			return nil
		}
		if err := task.Validate(); err != nil {
			return err
		}

		a.logger.Info("Received task",
			slog.String("phase", task.Phase),
			slog.Uint64("round", task.Round),
			slog.Int("epochs", task.Epochs),
		)

		go a.execute(ctx, task)

		return nil
	}
}

func (a *Agent) execute(ctx context.Context, task taskMessage) {
	res := resultMessage{
		DroneID: a.droneID,
		Phase:   task.Phase,
		Round:   task.Round,
	}

	switch task.Phase {
	case phaseEvaluate:
		ev, ok := a.trainer.(Evaluator)
		if !ok {
			res.Error = "evaluation not supported"

			break
		}
		out, err := ev.Evaluate(ctx, a.droneID, task.Round, task.Blob)
		if err != nil {
			res.Error = err.Error()

			break
		}
		res.Samples, res.Accuracy = out.Samples, out.Accuracy
	default:
		upd, err := a.trainer.Train(ctx, a.droneID, TrainRequest{Round: task.Round, Epochs: task.Epochs, Blob: task.Blob})
		if err != nil {
			res.Error = err.Error()

			break
		}
		res.Blob, res.Samples, res.Accuracy = upd.Blob, upd.Samples, upd.Accuracy
	}

	if err := a.pubsub.Publish(ctx, a.topics.DroneResult(), res); err != nil {
		a.logger.Error("failed to publish result", slog.Uint64("round", task.Round), slog.Any("error", err))

		return
	}

	a.logger.Info("Published result",
		slog.String("phase", task.Phase),
		slog.Uint64("round", task.Round),
		slog.Int("num_samples", res.Samples),
		slog.Float64("accuracy", res.Accuracy),
	)
}
