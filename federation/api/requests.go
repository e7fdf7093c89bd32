package api

import (
	"github.com/absmach/dronefl/pkg/api"
	"github.com/absmach/dronefl/pkg/netsim"
	apiutil "github.com/absmach/supermq/api/http/util"
)

type registerReq struct {
	netsim.Profile `json:",inline"`
}

func (r *registerReq) validate() error {
	if r.DroneID == "" {
		return apiutil.ErrMissingID
	}

	return r.Profile.Validate()
}

type entityReq struct {
	id string
}

func (e *entityReq) validate() error {
	if e.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type roundReq struct {
	round uint64
}

func (r *roundReq) validate() error {
	if r.round == 0 {
		return errInvalidRound
	}

	return nil
}

type listEntityReq struct {
	offset, limit uint64
}

func (e *listEntityReq) validate() error {
	if e.limit > api.MaxLimitSize {
		return apiutil.ErrLimitSize
	}

	return nil
}
