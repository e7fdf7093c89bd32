package drone

import (
	"encoding/json"
	"errors"

	"github.com/absmach/dronefl/pkg/fl"
)

const (
	phaseFit      = "fit"
	phaseEvaluate = "evaluate"
)

var (
	errEmptyDroneID = errors.New("drone id is empty")
	errBadEpochs    = errors.New("epochs must be at least 1")
)

type taskMessage struct {
	DroneID string  `json:"drone_id"`
	Phase   string  `json:"phase"`
	Round   uint64  `json:"round"`
	Epochs  int     `json:"epochs,omitempty"`
	Blob    fl.Blob `json:"blob"`
}

func (m taskMessage) Validate() error {
	if m.DroneID == "" {
		return errEmptyDroneID
	}
	if m.Phase == phaseFit && m.Epochs < 1 {
		return errBadEpochs
	}

	return nil
}

type resultMessage struct {
	DroneID  string  `json:"drone_id"`
	Phase    string  `json:"phase"`
	Round    uint64  `json:"round"`
	Blob     fl.Blob `json:"blob"`
	Samples  int     `json:"num_samples"`
	Accuracy float64 `json:"accuracy"`
	Error    string  `json:"error,omitempty"`
}

// Decode converts a generic MQTT payload into v.
func Decode(msg map[string]any, v any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}
