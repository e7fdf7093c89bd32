package fl

import (
	"fmt"
	"math"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// Tensors is the named tensor map carried inside a blob by the default
// averager. Tensors are flattened to one dimension.
type Tensors map[string][]float64

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	return em
}

// EncodeTensors encodes tensors canonically, so equal maps produce equal blobs.
func EncodeTensors(t Tensors) (Blob, error) {
	data, err := encMode.Marshal(map[string][]float64(t))
	if err != nil {
		return Blob{}, fmt.Errorf("failed to encode tensors: %w", err)
	}

	return Blob{data: data}, nil
}

func DecodeTensors(b Blob) (Tensors, error) {
	if b.IsEmpty() {
		return nil, fmt.Errorf("%w: empty blob", ErrMalformedTensors)
	}
	var t map[string][]float64
	if err := cbor.Unmarshal(b.data, &t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTensors, err)
	}
	if len(t) == 0 {
		return nil, fmt.Errorf("%w: no tensors", ErrMalformedTensors)
	}

	return Tensors(t), nil
}

func (t Tensors) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// Size is the total number of parameters across all tensors.
func (t Tensors) Size() int {
	n := 0
	for _, v := range t {
		n += len(v)
	}

	return n
}

func (t Tensors) checkFinite() error {
	for k, v := range t {
		for i, f := range v {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return fmt.Errorf("%w: %s[%d]", ErrNonFiniteParameter, k, i)
			}
		}
	}

	return nil
}

func (t Tensors) sameShape(other Tensors) error {
	if len(t) != len(other) {
		return fmt.Errorf("%w: %d tensors, want %d", ErrShapeMismatch, len(other), len(t))
	}
	for k, v := range t {
		o, ok := other[k]
		if !ok {
			return fmt.Errorf("%w: missing tensor %q", ErrShapeMismatch, k)
		}
		if len(o) != len(v) {
			return fmt.Errorf("%w: tensor %q has %d values, want %d", ErrShapeMismatch, k, len(o), len(v))
		}
	}

	return nil
}

// ZeroTensors returns a tensor map of the given shape filled with zeros.
func ZeroTensors(shape map[string]int) Tensors {
	t := make(Tensors, len(shape))
	for k, n := range shape {
		t[k] = make([]float64, n)
	}

	return t
}
