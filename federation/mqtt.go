package federation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/absmach/dronefl/drone"
	pkgerrors "github.com/absmach/dronefl/pkg/errors"
	"github.com/absmach/dronefl/pkg/mqtt"
	"github.com/absmach/dronefl/pkg/netsim"
)

var errInvalidDroneID = errors.New("invalid drone_id")

// Fleet resolves the configured profile of a drone announcing itself.
type Fleet interface {
	Profile(droneID string) (netsim.Profile, bool)
}

type FleetMap map[string]netsim.Profile

func (f FleetMap) Profile(droneID string) (netsim.Profile, bool) {
	p, ok := f[droneID]

	return p, ok
}

// Subscribe wires the drone control topics of channelID to svc. Results are
// forwarded to remote when it is set.
func Subscribe(ctx context.Context, channelID string, pubsub mqtt.PubSub, svc Service, fleet Fleet, remote *drone.RemoteTrainer, logger *slog.Logger) error {
	topics := mqtt.NewTopics(channelID)

	return pubsub.Subscribe(ctx, topics.Drones(), Handle(ctx, topics, svc, fleet, remote, logger))
}

func Handle(ctx context.Context, topics mqtt.Topics, svc Service, fleet Fleet, remote *drone.RemoteTrainer, logger *slog.Logger) mqtt.Handler {
	return func(topic string, msg map[string]any) error {
		switch topic {
		case topics.DroneCreate():
			return registerDrone(ctx, msg, svc, fleet, logger)
		case topics.DroneOffline():
			return deregisterDrone(ctx, msg, svc, logger)
		case topics.DroneResult():
			if remote == nil {
				return nil
			}

			return remote.HandleResult(msg)
		}

		return nil
	}
}

func droneID(msg map[string]any) (string, error) {
	id, ok := msg["drone_id"].(string)
	if !ok || id == "" {
		return "", errInvalidDroneID
	}

	return id, nil
}

func registerDrone(ctx context.Context, msg map[string]any, svc Service, fleet Fleet, logger *slog.Logger) error {
	id, err := droneID(msg)
	if err != nil {
		return err
	}
	p, ok := fleet.Profile(id)
	if !ok {
		logger.WarnContext(ctx, "ignoring announcement from drone missing in fleet configuration", slog.String("drone_id", id))

		return nil
	}
	if err := svc.Register(ctx, p); err != nil {
		return err
	}

	logger.InfoContext(ctx, "successfully registered drone", slog.String("drone_id", id))

	return nil
}

func deregisterDrone(ctx context.Context, msg map[string]any, svc Service, logger *slog.Logger) error {
	id, err := droneID(msg)
	if err != nil {
		return err
	}
	if err := svc.Deregister(ctx, id); err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
		return err
	}

	logger.InfoContext(ctx, "drone went offline", slog.String("drone_id", id))

	return nil
}
