package netsim

import (
	"fmt"
	"time"

	pkgerrors "github.com/absmach/dronefl/pkg/errors"
	"github.com/absmach/dronefl/pkg/fl"
)

type LatencyRange struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

// Profile holds the static link characteristics of one drone.
type Profile struct {
	DroneID        string       `json:"drone_id"`
	Priority       fl.Priority  `json:"priority"`
	PacketLoss     float64      `json:"packet_loss"`
	Latency        LatencyRange `json:"latency"`
	DisconnectProb float64      `json:"disconnect_prob"`
}

func (p Profile) Validate() error {
	if p.DroneID == "" {
		return fmt.Errorf("%w: drone id is required", pkgerrors.ErrInvalidProfile)
	}
	if p.PacketLoss < 0 || p.PacketLoss > 1 {
		return fmt.Errorf("%w: packet loss %v outside [0,1]", pkgerrors.ErrInvalidProfile, p.PacketLoss)
	}
	if p.DisconnectProb < 0 || p.DisconnectProb > 1 {
		return fmt.Errorf("%w: disconnect probability %v outside [0,1]", pkgerrors.ErrInvalidProfile, p.DisconnectProb)
	}
	if p.Latency.Min < 0 || p.Latency.Max < p.Latency.Min {
		return fmt.Errorf("%w: latency range [%s,%s]", pkgerrors.ErrInvalidProfile, p.Latency.Min, p.Latency.Max)
	}

	return nil
}

// NetworkQuality is the probability that a single transmission is delivered.
func (p Profile) NetworkQuality() float64 {
	return 1 - p.PacketLoss
}
