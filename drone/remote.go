package drone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/mqtt"
)

const DefaultRemoteTimeout = 2 * time.Minute

var (
	ErrRemoteTimeout = errors.New("timed out waiting for drone result")
	ErrRemoteFailure = errors.New("drone reported failure")
)

type pendingKey struct {
	droneID string
	phase   string
	round   uint64
}

// RemoteTrainer runs local updates on drones reachable over MQTT. Results
// arrive through HandleResult, which must be wired to the result topic.
type RemoteTrainer struct {
	pubsub  mqtt.PubSub
	topics  mqtt.Topics
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[pendingKey]chan resultMessage
}

func NewRemoteTrainer(pubsub mqtt.PubSub, channelID string, timeout time.Duration, logger *slog.Logger) *RemoteTrainer {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}

	return &RemoteTrainer{
		pubsub:  pubsub,
		topics:  mqtt.NewTopics(channelID),
		timeout: timeout,
		logger:  logger,
		pending: make(map[pendingKey]chan resultMessage),
	}
}

func (r *RemoteTrainer) Train(ctx context.Context, droneID string, req TrainRequest) (Update, error) {
	msg := taskMessage{
		DroneID: droneID,
		Phase:   phaseFit,
		Round:   req.Round,
		Epochs:  req.Epochs,
		Blob:    req.Blob,
	}
	res, err := r.call(ctx, r.topics.Train(), msg)
	if err != nil {
		return Update{}, err
	}

	return Update{Blob: res.Blob, Samples: res.Samples, Accuracy: res.Accuracy}, nil
}

func (r *RemoteTrainer) Evaluate(ctx context.Context, droneID string, round uint64, blob fl.Blob) (Evaluation, error) {
	msg := taskMessage{
		DroneID: droneID,
		Phase:   phaseEvaluate,
		Round:   round,
		Blob:    blob,
	}
	res, err := r.call(ctx, r.topics.Evaluate(), msg)
	if err != nil {
		return Evaluation{}, err
	}

	return Evaluation{Samples: res.Samples, Accuracy: res.Accuracy}, nil
}

func (r *RemoteTrainer) call(ctx context.Context, topic string, msg taskMessage) (resultMessage, error) {
	key := pendingKey{droneID: msg.DroneID, phase: msg.Phase, round: msg.Round}
	ch := make(chan resultMessage, 1)

	r.mu.Lock()
	r.pending[key] = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, key)
		r.mu.Unlock()
	}()

	if err := r.pubsub.Publish(ctx, topic, msg); err != nil {
		return resultMessage{}, fmt.Errorf("failed to publish %s request: %w", msg.Phase, err)
	}

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return resultMessage{}, ctx.Err()
	case <-timer.C:
		return resultMessage{}, fmt.Errorf("%w: %s after %s", ErrRemoteTimeout, msg.DroneID, r.timeout)
	case res := <-ch:
		if res.Error != "" {
			return resultMessage{}, fmt.Errorf("%w: %s", ErrRemoteFailure, res.Error)
		}

		return res, nil
	}
}

// HandleResult delivers a drone result to the waiting request. Results that
// nobody waits for are dropped.
func (r *RemoteTrainer) HandleResult(msg map[string]any) error {
	var res resultMessage
	if err := Decode(msg, &res); err != nil {
		return fmt.Errorf("invalid drone result: %w", err)
	}
	if res.DroneID == "" {
		return errEmptyDroneID
	}
	if res.Phase == "" {
		res.Phase = phaseFit
	}

	key := pendingKey{droneID: res.DroneID, phase: res.Phase, round: res.Round}
	r.mu.Lock()
	ch, ok := r.pending[key]
	delete(r.pending, key)
	r.mu.Unlock()

	if !ok {
		r.logger.Warn("dropping unexpected drone result",
			slog.String("drone_id", res.DroneID),
			slog.String("phase", res.Phase),
			slog.Uint64("round", res.Round),
		)

		return nil
	}
	ch <- res

	return nil
}
