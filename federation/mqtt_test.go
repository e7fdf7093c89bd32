package federation_test

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/absmach/dronefl/drone"
	"github.com/absmach/dronefl/federation"
	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/mqtt"
	"github.com/absmach/dronefl/pkg/mqtt/mocks"
	"github.com/absmach/dronefl/pkg/netsim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	channelID = "fleet"
	baseTopic = "channels/" + channelID + "/messages"
)

func newHandlerService(t *testing.T) (federation.Service, *federation.Registry) {
	f := newFixture(t, federation.Config{NumRounds: 1, Round: roundConfig(1)}, nil, 1, nil)

	return f.svc, f.registry
}

func TestHandleDroneLifecycle(t *testing.T) {
	svc, registry := newHandlerService(t)
	known := netsim.Profile{DroneID: "drone-1", Priority: fl.PriorityHigh, PacketLoss: 0.2}
	fleet := federation.FleetMap{known.DroneID: known}
	handle := federation.Handle(context.Background(), mqtt.NewTopics(channelID), svc, fleet, nil, logger)

	cases := []struct {
		desc  string
		topic string
		msg   map[string]any
		err   bool
		ids   []string
	}{
		{
			desc:  "announce unknown drone",
			topic: baseTopic + "/control/drone/create",
			msg:   map[string]any{"drone_id": "drone-7"},
			ids:   []string{},
		},
		{
			desc:  "announce without id",
			topic: baseTopic + "/control/drone/create",
			msg:   map[string]any{"status": "online"},
			err:   true,
			ids:   []string{},
		},
		{
			desc:  "announce known drone",
			topic: baseTopic + "/control/drone/create",
			msg:   map[string]any{"drone_id": "drone-1"},
			ids:   []string{"drone-1"},
		},
		{
			desc:  "announce known drone again",
			topic: baseTopic + "/control/drone/create",
			msg:   map[string]any{"drone_id": "drone-1"},
			ids:   []string{"drone-1"},
		},
		{
			desc:  "unrelated topic",
			topic: baseTopic + "/control/drone/telemetry",
			msg:   map[string]any{"drone_id": "drone-1"},
			ids:   []string{"drone-1"},
		},
		{
			desc:  "drone offline",
			topic: baseTopic + "/control/drone/offline",
			msg:   map[string]any{"status": "offline", "drone_id": "drone-1"},
			ids:   []string{},
		},
		{
			desc:  "unknown drone offline",
			topic: baseTopic + "/control/drone/offline",
			msg:   map[string]any{"status": "offline", "drone_id": "drone-1"},
			ids:   []string{},
		},
		{
			desc:  "result without remote trainer",
			topic: baseTopic + "/control/drone/result",
			msg:   map[string]any{"drone_id": "drone-1"},
			ids:   []string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			err := handle(tc.topic, tc.msg)
			if tc.err {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.ElementsMatch(t, tc.ids, registry.IDs())
		})
	}
}

func TestSubscribe(t *testing.T) {
	svc, _ := newHandlerService(t)
	pubsub := new(mocks.PubSub)
	pubsub.On("Subscribe", mock.Anything, baseTopic+"/control/drone/#", mock.Anything).Return(nil).Once()

	err := federation.Subscribe(context.Background(), channelID, pubsub, svc, federation.FleetMap{}, nil, logger)
	require.NoError(t, err)
	pubsub.AssertExpectations(t)
}

func TestHandleForwardsResults(t *testing.T) {
	svc, _ := newHandlerService(t)
	pubsub := new(mocks.PubSub)
	published := make(chan struct{})
	pubsub.On("Publish", mock.Anything, "channels/fleet/messages/control/coordinator/train", mock.Anything).
		Run(func(mock.Arguments) { close(published) }).
		Return(nil).Once()

	remote := drone.NewRemoteTrainer(pubsub, channelID, time.Second, logger)
	handle := federation.Handle(context.Background(), mqtt.NewTopics(channelID), svc, federation.FleetMap{}, remote, logger)

	blob := initialBlob(t)
	done := make(chan error, 1)
	var upd drone.Update
	go func() {
		var err error
		upd, err = remote.Train(context.Background(), "drone-1", drone.TrainRequest{Round: 2, Epochs: 1, Blob: blob})
		done <- err
	}()

	<-published
	err := handle(baseTopic+"/control/drone/result", map[string]any{
		"drone_id":    "drone-1",
		"phase":       "fit",
		"round":       2,
		"blob":        base64.StdEncoding.EncodeToString(blob.Bytes()),
		"num_samples": 42,
		"accuracy":    61.5,
	})
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, 42, upd.Samples)
	assert.InDelta(t, 61.5, upd.Accuracy, 1e-9)
	assert.True(t, blob.Equal(upd.Blob))
	pubsub.AssertExpectations(t)
}

func TestMQTTSink(t *testing.T) {
	pubsub := new(mocks.PubSub)
	report := fl.Report{RunID: "run", Round: 3}
	pubsub.On("Publish", mock.Anything, "channels/fleet/messages/control/coordinator/report", report).Return(nil).Once()

	sink := federation.NewMQTTSink(pubsub, channelID)
	require.NoError(t, sink.Emit(context.Background(), report))
	pubsub.AssertExpectations(t)
}
