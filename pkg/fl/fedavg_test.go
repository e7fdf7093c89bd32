package fl_test

import (
	"math"
	"testing"

	"github.com/absmach/dronefl/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFedAvgAverage(t *testing.T) {
	cases := []struct {
		desc    string
		entries []fl.WeightedBlob
		want    fl.Tensors
		err     error
	}{
		{
			desc: "sample weighted mean",
			entries: []fl.WeightedBlob{
				{Blob: tensorBlob(t, fl.Tensors{"w": {1, 2}, "b": {0}}), Weight: 10},
				{Blob: tensorBlob(t, fl.Tensors{"w": {3, 4}, "b": {4}}), Weight: 30},
			},
			want: fl.Tensors{"w": {2.5, 3.5}, "b": {3}},
		},
		{
			desc: "zero weights are ignored",
			entries: []fl.WeightedBlob{
				{Blob: tensorBlob(t, fl.Tensors{"w": {1}}), Weight: 5},
				{Blob: tensorBlob(t, fl.Tensors{"w": {9}}), Weight: 0},
			},
			want: fl.Tensors{"w": {1}},
		},
		{
			desc: "no entries",
			err:  fl.ErrNoUpdates,
		},
		{
			desc: "shape mismatch",
			entries: []fl.WeightedBlob{
				{Blob: tensorBlob(t, fl.Tensors{"w": {1}}), Weight: 1},
				{Blob: tensorBlob(t, fl.Tensors{"w": {1, 2}}), Weight: 1},
			},
			err: fl.ErrShapeMismatch,
		},
		{
			desc: "malformed blob",
			entries: []fl.WeightedBlob{
				{Blob: fl.NewBlob([]byte{0xff, 0x00}), Weight: 1},
			},
			err: fl.ErrMalformedTensors,
		},
	}

	avg := fl.NewFedAvg()
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			b, err := avg.Average(tc.entries)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			got, err := fl.DecodeTensors(b)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFedAvgCheck(t *testing.T) {
	ref := tensorBlob(t, fl.Tensors{"w": {0, 0}})

	cases := []struct {
		desc      string
		reference fl.Blob
		blob      fl.Blob
		err       error
	}{
		{desc: "same shape", reference: ref, blob: tensorBlob(t, fl.Tensors{"w": {1, 2}})},
		{desc: "empty reference", blob: tensorBlob(t, fl.Tensors{"w": {1, 2, 3}})},
		{desc: "opaque reference", reference: fl.NewBlob([]byte("opaque")), blob: tensorBlob(t, fl.Tensors{"w": {1}})},
		{desc: "missing tensor", reference: ref, blob: tensorBlob(t, fl.Tensors{"v": {1, 2}}), err: fl.ErrShapeMismatch},
		{desc: "non-finite value", reference: ref, blob: tensorBlob(t, fl.Tensors{"w": {math.NaN(), 1}}), err: fl.ErrNonFiniteParameter},
		{desc: "empty blob", reference: ref, err: fl.ErrMalformedTensors},
	}

	avg := fl.NewFedAvg()
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			err := avg.Check(tc.reference, tc.blob)
			if tc.err == nil {
				assert.NoError(t, err)

				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestBlobIsImmutable(t *testing.T) {
	raw := []byte{1, 2, 3}
	b := fl.NewBlob(raw)
	raw[0] = 9

	out := b.Bytes()
	out[1] = 9

	assert.Equal(t, []byte{1, 2, 3}, b.Bytes())
	assert.NotEmpty(t, b.Digest())
	assert.Empty(t, fl.Blob{}.Digest())
}

func TestBlobValidate(t *testing.T) {
	b := fl.NewBlob(make([]byte, 16))

	assert.NoError(t, b.Validate(0))
	assert.NoError(t, b.Validate(16))
	assert.ErrorIs(t, b.Validate(8), fl.ErrBlobTooLarge)
}

func TestOutcomeConstruction(t *testing.T) {
	metrics := fl.Metrics{Priority: fl.PriorityHigh, NetworkQuality: 1, Accuracy: 50}

	empty := fl.Succeeded("drone-1", 2, fl.Blob{}, 10, metrics)
	assert.Equal(t, fl.SkippedEmptyParams, empty.Tag)
	assert.False(t, empty.Usable())

	noSamples := fl.Succeeded("drone-1", 2, fl.NewBlob([]byte{1}), 0, metrics)
	assert.Equal(t, fl.SkippedEmptyParams, noSamples.Tag)

	ok := fl.Succeeded("drone-1", 2, fl.NewBlob([]byte{1}), 10, metrics)
	assert.Equal(t, fl.Success, ok.Tag)
	assert.Equal(t, 1, ok.BlobSize)
	assert.True(t, ok.Usable())

	forced := fl.Skipped("drone-1", 2, fl.Success, "")
	assert.Equal(t, fl.SkippedEmptyParams, forced.Tag)
}

func TestEpochs(t *testing.T) {
	cases := []struct {
		desc     string
		base     int
		priority fl.Priority
		want     int
	}{
		{desc: "high doubles", base: 5, priority: fl.PriorityHigh, want: 10},
		{desc: "medium truncates", base: 5, priority: fl.PriorityMedium, want: 7},
		{desc: "low keeps base", base: 5, priority: fl.PriorityLow, want: 5},
		{desc: "never below one", base: 0, priority: fl.PriorityLow, want: 1},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, fl.Epochs(tc.base, tc.priority))
		})
	}
}

func TestParsePriority(t *testing.T) {
	p, err := fl.ParsePriority(" HIGH ")
	require.NoError(t, err)
	assert.Equal(t, fl.PriorityHigh, p)

	_, err = fl.ParsePriority("urgent")
	assert.ErrorIs(t, err, fl.ErrUnknownPriority)
}
