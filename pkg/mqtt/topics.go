package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Topics names the control topics of one fleet channel. Drones publish under
// control/drone and the coordinator publishes under control/coordinator.
type Topics struct {
	base string
}

func NewTopics(channelID string) Topics {
	return Topics{base: fmt.Sprintf("channels/%s/messages/control", channelID)}
}

func (t Topics) DroneCreate() string  { return t.base + "/drone/create" }
func (t Topics) DroneOffline() string { return t.base + "/drone/offline" }
func (t Topics) DroneResult() string  { return t.base + "/drone/result" }

// Drones matches every topic a drone publishes on.
func (t Topics) Drones() string { return t.base + "/drone/#" }

func (t Topics) Train() string    { return t.base + "/coordinator/train" }
func (t Topics) Evaluate() string { return t.base + "/coordinator/evaluate" }
func (t Topics) Report() string   { return t.base + "/coordinator/report" }

// StatusMessage is the presence payload of a drone. The offline form doubles
// as the last will of the drone connection.
type StatusMessage struct {
	DroneID string `json:"drone_id"`
	Status  string `json:"status"`
}

func (m StatusMessage) payload() ([]byte, error) {
	return json.Marshal(m)
}

// Announce publishes that droneID joined the channel.
func Announce(ctx context.Context, ps PubSub, t Topics, droneID string) error {
	if droneID == "" {
		return errEmptyID
	}

	return ps.Publish(ctx, t.DroneCreate(), StatusMessage{DroneID: droneID, Status: StatusOnline})
}

// Leave publishes that droneID left the channel, the same message the broker
// sends on its behalf when the connection drops.
func Leave(ctx context.Context, ps PubSub, t Topics, droneID string) error {
	if droneID == "" {
		return errEmptyID
	}

	return ps.Publish(ctx, t.DroneOffline(), StatusMessage{DroneID: droneID, Status: StatusOffline})
}
