package federation

import (
	"context"

	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/mqtt"
)

// Sink receives every round report once it is recorded.
type Sink interface {
	Emit(ctx context.Context, r fl.Report) error
}

type SinkFunc func(ctx context.Context, r fl.Report) error

func (f SinkFunc) Emit(ctx context.Context, r fl.Report) error {
	return f(ctx, r)
}

type mqttSink struct {
	pubsub mqtt.PubSub
	topic  string
}

// NewMQTTSink publishes reports on the coordinator report topic of channelID.
func NewMQTTSink(pubsub mqtt.PubSub, channelID string) Sink {
	return &mqttSink{
		pubsub: pubsub,
		topic:  mqtt.NewTopics(channelID).Report(),
	}
}

func (s *mqttSink) Emit(ctx context.Context, r fl.Report) error {
	return s.pubsub.Publish(ctx, s.topic, r)
}
