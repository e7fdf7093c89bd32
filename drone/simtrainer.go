package drone

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"

	"github.com/absmach/dronefl/pkg/fl"
)

const (
	DefaultLearningRate = 0.2
	minSimSamples       = 50
	maxSimSamples       = 150
	droneSpread         = 0.1
)

type SimConfig struct {
	Seed         uint64
	LearningRate float64
	// Samples overrides the local dataset size of individual drones.
	Samples map[string]int
}

// SimTrainer is a deterministic local trainer. Every drone pulls the tensors
// toward its own target, a shared optimum perturbed per drone, so averaging
// the updates converges on the shared optimum.
type SimTrainer struct {
	cfg SimConfig
}

func NewSimTrainer(cfg SimConfig) *SimTrainer {
	if cfg.LearningRate <= 0 || cfg.LearningRate > 1 {
		cfg.LearningRate = DefaultLearningRate
	}

	return &SimTrainer{cfg: cfg}
}

func (t *SimTrainer) Train(ctx context.Context, droneID string, req TrainRequest) (Update, error) {
	w, err := fl.DecodeTensors(req.Blob)
	if err != nil {
		return Update{}, err
	}
	target := t.target(droneID, w)

	for range req.Epochs {
		if err := ctx.Err(); err != nil {
			return Update{}, err
		}
		for k, v := range w {
			for i := range v {
				v[i] += t.cfg.LearningRate * (target[k][i] - v[i])
			}
		}
	}

	blob, err := fl.EncodeTensors(w)
	if err != nil {
		return Update{}, err
	}

	return Update{
		Blob:     blob,
		Samples:  t.samples(droneID),
		Accuracy: accuracy(w, target),
	}, nil
}

func (t *SimTrainer) Evaluate(_ context.Context, droneID string, _ uint64, blob fl.Blob) (Evaluation, error) {
	w, err := fl.DecodeTensors(blob)
	if err != nil {
		return Evaluation{}, err
	}

	return Evaluation{
		Samples:  t.samples(droneID),
		Accuracy: accuracy(w, t.target(droneID, w)),
	}, nil
}

func (t *SimTrainer) samples(droneID string) int {
	if n, ok := t.cfg.Samples[droneID]; ok {
		return n
	}
	rng := rand.New(rand.NewPCG(t.cfg.Seed, hash("samples", droneID)))

	return minSimSamples + rng.IntN(maxSimSamples-minSimSamples+1)
}

func (t *SimTrainer) target(droneID string, shape fl.Tensors) fl.Tensors {
	target := make(fl.Tensors, len(shape))
	for _, k := range shape.Keys() {
		shared := rand.New(rand.NewPCG(t.cfg.Seed, hash("tensor", k)))
		local := rand.New(rand.NewPCG(t.cfg.Seed, hash("tensor", k, droneID)))
		v := make([]float64, len(shape[k]))
		for i := range v {
			v[i] = shared.Float64()*2 - 1 + droneSpread*(local.Float64()*2-1)
		}
		target[k] = v
	}

	return target
}

// accuracy maps the root mean squared distance to the target onto (0, 100].
func accuracy(w, target fl.Tensors) float64 {
	n := w.Size()
	if n == 0 {
		return 0
	}
	var sum float64
	for k, v := range w {
		for i := range v {
			d := v[i] - target[k][i]
			sum += d * d
		}
	}

	return 100 * math.Exp(-math.Sqrt(sum/float64(n)))
}

func hash(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		fmt.Fprint(h, p, "\x00")
	}

	return h.Sum64()
}
