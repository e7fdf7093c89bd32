package fl

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

const (
	lowWeight    = 1.0
	mediumWeight = 1.5
	highWeight   = 2.0
)

func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	default:
		return PriorityLow, fmt.Errorf("%w: %q", ErrUnknownPriority, s)
	}
}

// Weight returns the multiplier applied to the local epoch budget and to the
// accuracy weight of a drone. Unknown priorities weigh the same as low.
func (p Priority) Weight() float64 {
	switch p {
	case PriorityHigh:
		return highWeight
	case PriorityMedium:
		return mediumWeight
	default:
		return lowWeight
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = v

	return nil
}

// Epochs scales the base epoch budget by the priority weight, truncating
// toward zero and never returning less than one epoch.
func Epochs(base int, p Priority) int {
	epochs := int(float64(base) * p.Weight())
	if epochs < 1 {
		return 1
	}

	return epochs
}

type Tag uint8

const (
	Success Tag = iota
	SkippedDisconnected
	SkippedEmptyParams
	SkippedUnregistered
)

func (t Tag) String() string {
	switch t {
	case Success:
		return "SUCCESS"
	case SkippedDisconnected:
		return "SKIPPED_DISCONNECTED"
	case SkippedEmptyParams:
		return "SKIPPED_EMPTY_PARAMS"
	case SkippedUnregistered:
		return "SKIPPED_UNREGISTERED"
	default:
		return "UNKNOWN"
	}
}

func (t Tag) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Tag) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, v := range []Tag{Success, SkippedDisconnected, SkippedEmptyParams, SkippedUnregistered} {
		if v.String() == s {
			*t = v

			return nil
		}
	}

	return fmt.Errorf("unknown outcome tag %q", s)
}

type Metrics struct {
	Priority       Priority `json:"priority"`
	NetworkQuality float64  `json:"network_quality"`
	Accuracy       float64  `json:"accuracy"`
}

// valid rejects NaN and out-of-range metrics; NaN fails every comparison.
func (m Metrics) valid() bool {
	return m.NetworkQuality >= 0 && m.NetworkQuality <= 1 &&
		m.Accuracy >= 0 && m.Accuracy <= 100
}

// Outcome is the result of one drone's participation in one round. Only
// Succeeded can produce a Success tag.
type Outcome struct {
	DroneID     string        `json:"drone_id"`
	Round       uint64        `json:"round"`
	Tag         Tag           `json:"tag"`
	Blob        Blob          `json:"-"`
	BlobSize    int           `json:"blob_size"`
	SampleCount int           `json:"sample_count"`
	Metrics     Metrics       `json:"metrics"`
	Attempts    int           `json:"attempts,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Recovery    time.Duration `json:"recovery,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Succeeded builds a Success outcome. An empty blob or a non-positive sample
// count downgrades the outcome to SkippedEmptyParams with a zero sample count.
func Succeeded(droneID string, round uint64, blob Blob, samples int, metrics Metrics) Outcome {
	if blob.IsEmpty() {
		return Skipped(droneID, round, SkippedEmptyParams, "empty parameters returned")
	}
	if samples <= 0 {
		return Skipped(droneID, round, SkippedEmptyParams, fmt.Sprintf("invalid local sample count %d", samples))
	}

	return Outcome{
		DroneID:     droneID,
		Round:       round,
		Tag:         Success,
		Blob:        blob,
		BlobSize:    blob.Len(),
		SampleCount: samples,
		Metrics:     metrics,
	}
}

func Skipped(droneID string, round uint64, tag Tag, reason string) Outcome {
	if tag == Success {
		tag = SkippedEmptyParams
	}

	return Outcome{
		DroneID: droneID,
		Round:   round,
		Tag:     tag,
		Reason:  reason,
	}
}

// Usable reports whether the outcome may feed the aggregate.
func (o Outcome) Usable() bool {
	return o.Tag == Success && !o.Blob.IsEmpty() && o.SampleCount > 0 && o.Metrics.valid()
}

type Report struct {
	RunID        string    `json:"run_id"`
	Round        uint64    `json:"round"`
	Outcomes     []Outcome `json:"outcomes"`
	Evaluations  []Outcome `json:"evaluations,omitempty"`
	Dispatched   int       `json:"dispatched"`
	Successes    int       `json:"successes"`
	Failures     int       `json:"failures"`
	Accuracy     *float64  `json:"accuracy"`
	EvalAccuracy *float64  `json:"eval_accuracy,omitempty"`
	Contributors []string  `json:"contributors,omitempty"`
	Excluded     []string  `json:"excluded,omitempty"`
	BlobVersion  uint64    `json:"blob_version"`
	BlobDigest   string    `json:"blob_digest,omitempty"`
	Aggregated   bool      `json:"aggregated"`
	Degraded     bool      `json:"degraded"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Tags returns the outcome tag of every dispatched drone keyed by drone ID.
func (r Report) Tags() map[string]Tag {
	tags := make(map[string]Tag, len(r.Outcomes))
	for _, o := range r.Outcomes {
		tags[o.DroneID] = o.Tag
	}

	return tags
}

type ReportPage struct {
	Offset  uint64   `json:"offset"`
	Limit   uint64   `json:"limit"`
	Total   uint64   `json:"total"`
	Reports []Report `json:"reports"`
}

// Result is what a Strategy produces for one round. Blob and Accuracy are nil
// when no outcome was usable.
type Result struct {
	Blob         *Blob
	Accuracy     *float64
	Contributors []string
	Excluded     []string
	TotalSamples int
}

type Strategy interface {
	Aggregate(outcomes []Outcome, prev Blob) (Result, error)
}

type WeightedBlob struct {
	Blob   Blob
	Weight float64
}

// Averager combines blobs elementwise. Check rejects blobs that cannot be
// averaged against the reference blob.
type Averager interface {
	Check(reference, blob Blob) error
	Average(entries []WeightedBlob) (Blob, error)
}

// BlobVersion is a committed shared blob. Versions increase by one with every
// commit and are never reused, across runs.
type BlobVersion struct {
	Version   uint64    `json:"version"`
	RunID     string    `json:"run_id"`
	Round     uint64    `json:"round"`
	Digest    string    `json:"digest"`
	Size      int       `json:"size"`
	Blob      Blob      `json:"blob"`
	CreatedAt time.Time `json:"created_at"`
}
