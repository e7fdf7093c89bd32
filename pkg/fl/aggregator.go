package fl

import (
	"fmt"
	"math"
	"sort"
)

type PriorityAggregator struct {
	averager Averager
}

// NewPriorityAggregator returns the round aggregation strategy. Reported
// accuracies are weighted by priority, network quality and sample count while
// blobs are averaged by sample count alone.
func NewPriorityAggregator(averager Averager) Strategy {
	if averager == nil {
		averager = NewFedAvg()
	}

	return &PriorityAggregator{averager: averager}
}

// AccuracyWeight is the contribution of an outcome to the aggregate accuracy.
func AccuracyWeight(o Outcome) float64 {
	return o.Metrics.Priority.Weight() * o.Metrics.NetworkQuality * float64(o.SampleCount)
}

func (a *PriorityAggregator) Aggregate(outcomes []Outcome, prev Blob) (Result, error) {
	for _, o := range outcomes {
		if o.SampleCount < 0 {
			return Result{}, fmt.Errorf("%w: drone %s reported %d", ErrNegativeSamples, o.DroneID, o.SampleCount)
		}
	}

	candidates := make([]Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Usable() {
			candidates = append(candidates, o)
		}
	}
	// Sum in a canonical order so the result does not depend on arrival order.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DroneID != candidates[j].DroneID {
			return candidates[i].DroneID < candidates[j].DroneID
		}

		return candidates[i].Blob.Digest() < candidates[j].Blob.Digest()
	})

	reference := prev
	if reference.IsEmpty() && len(candidates) > 0 {
		reference = candidates[0].Blob
	}

	var res Result
	retained := make([]Outcome, 0, len(candidates))
	for _, o := range candidates {
		if err := a.check(reference, retained, o.Blob); err != nil {
			res.Excluded = append(res.Excluded, o.DroneID)

			continue
		}
		retained = append(retained, o)
	}
	for _, o := range outcomes {
		if !o.Usable() {
			res.Excluded = append(res.Excluded, o.DroneID)
		}
	}
	sort.Strings(res.Excluded)

	if len(retained) == 0 {
		return res, nil
	}

	var weightSum, weighted float64
	entries := make([]WeightedBlob, 0, len(retained))
	for _, o := range retained {
		if res.TotalSamples > math.MaxInt-o.SampleCount {
			return Result{}, ErrOverflow
		}
		res.TotalSamples += o.SampleCount
		w := AccuracyWeight(o)
		weightSum += w
		weighted += w * o.Metrics.Accuracy
		entries = append(entries, WeightedBlob{Blob: o.Blob, Weight: float64(o.SampleCount)})
		res.Contributors = append(res.Contributors, o.DroneID)
	}

	accuracy := 0.0
	if weightSum != 0 {
		accuracy = weighted / weightSum
	}

	blob, err := a.averager.Average(entries)
	if err != nil {
		// Every entry passed Check, so this is an averager fault rather than bad drone data.
		return Result{}, fmt.Errorf("failed to average blobs: %w", err)
	}
	res.Blob = &blob
	res.Accuracy = &accuracy

	return res, nil
}

// check validates a blob against the reference and against the first retained
// blob, keeping every retained blob mutually averageable.
func (a *PriorityAggregator) check(reference Blob, retained []Outcome, blob Blob) error {
	if err := a.averager.Check(reference, blob); err != nil {
		return err
	}
	if len(retained) == 0 {
		return nil
	}

	return a.averager.Check(retained[0].Blob, blob)
}
