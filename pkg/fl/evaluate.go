package fl

import "fmt"

// Evaluated builds the outcome of an evaluation session. Evaluations carry no
// blob; a non-positive sample count downgrades them to SkippedEmptyParams.
func Evaluated(droneID string, round uint64, samples int, metrics Metrics) Outcome {
	if samples <= 0 {
		return Skipped(droneID, round, SkippedEmptyParams, fmt.Sprintf("invalid evaluation sample count %d", samples))
	}

	return Outcome{
		DroneID:     droneID,
		Round:       round,
		Tag:         Success,
		SampleCount: samples,
		Metrics:     metrics,
	}
}

// EvalAccuracy is the sample-weighted mean accuracy of successful
// evaluations, or nil when none qualifies.
func EvalAccuracy(outcomes []Outcome) *float64 {
	var samples, weighted float64
	for _, o := range outcomes {
		if o.Tag != Success || o.SampleCount <= 0 || !o.Metrics.valid() {
			continue
		}
		samples += float64(o.SampleCount)
		weighted += float64(o.SampleCount) * o.Metrics.Accuracy
	}
	if samples == 0 {
		return nil
	}
	acc := weighted / samples

	return &acc
}
