package drone

import (
	"context"

	"github.com/absmach/dronefl/pkg/fl"
)

// TrainRequest is the per-round fit configuration sent to a drone.
type TrainRequest struct {
	Round  uint64  `json:"round"`
	Epochs int     `json:"epochs"`
	Blob   fl.Blob `json:"blob"`
}

type Update struct {
	Blob     fl.Blob `json:"blob"`
	Samples  int     `json:"num_samples"`
	Accuracy float64 `json:"accuracy"`
}

type Evaluation struct {
	Samples  int     `json:"num_samples"`
	Accuracy float64 `json:"accuracy"`
}

// Trainer runs the local update of one drone. It is called at most once per
// drone per round and never retried.
type Trainer interface {
	Train(ctx context.Context, droneID string, req TrainRequest) (Update, error)
}

// Evaluator is implemented by trainers that can score a blob on local data.
type Evaluator interface {
	Evaluate(ctx context.Context, droneID string, round uint64, blob fl.Blob) (Evaluation, error)
}

type TrainerFunc func(ctx context.Context, droneID string, req TrainRequest) (Update, error)

func (f TrainerFunc) Train(ctx context.Context, droneID string, req TrainRequest) (Update, error) {
	return f(ctx, droneID, req)
}
