package fl

import "errors"

var (
	ErrNoUpdates          = errors.New("no updates provided for aggregation")
	ErrOverflow           = errors.New("sample count overflow during aggregation")
	ErrNegativeSamples    = errors.New("negative sample count")
	ErrUnknownPriority    = errors.New("unknown priority")
	ErrBlobTooLarge       = errors.New("parameter blob exceeds size limit")
	ErrMalformedTensors   = errors.New("malformed tensor blob")
	ErrShapeMismatch      = errors.New("tensor shape mismatch")
	ErrNonFiniteParameter = errors.New("non-finite parameter value")
)
