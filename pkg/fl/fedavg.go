package fl

// FedAvg averages tensor blobs elementwise, weighting each blob by the weight
// supplied with it (the local sample count).
type FedAvg struct{}

func NewFedAvg() Averager {
	return &FedAvg{}
}

func (f *FedAvg) Check(reference, blob Blob) error {
	t, err := DecodeTensors(blob)
	if err != nil {
		return err
	}
	if err := t.checkFinite(); err != nil {
		return err
	}
	if reference.IsEmpty() {
		return nil
	}
	ref, err := DecodeTensors(reference)
	if err != nil {
		// An opaque reference gives nothing to compare shapes against.
		return nil
	}

	return ref.sameShape(t)
}

func (f *FedAvg) Average(entries []WeightedBlob) (Blob, error) {
	if len(entries) == 0 {
		return Blob{}, ErrNoUpdates
	}

	first, err := DecodeTensors(entries[0].Blob)
	if err != nil {
		return Blob{}, err
	}
	keys := first.Keys()
	aggregated := make(Tensors, len(first))
	for _, k := range keys {
		aggregated[k] = make([]float64, len(first[k]))
	}

	var totalWeight float64
	for _, entry := range entries {
		if entry.Weight <= 0 {
			continue
		}
		t, err := DecodeTensors(entry.Blob)
		if err != nil {
			return Blob{}, err
		}
		if err := first.sameShape(t); err != nil {
			return Blob{}, err
		}

		totalWeight += entry.Weight
		for _, k := range keys {
			acc := aggregated[k]
			for i, v := range t[k] {
				acc[i] += v * entry.Weight
			}
		}
	}

	if totalWeight <= 0 {
		return Blob{}, ErrNoUpdates
	}
	for _, k := range keys {
		acc := aggregated[k]
		for i := range acc {
			acc[i] /= totalWeight
		}
	}

	return EncodeTensors(aggregated)
}
