package api

import (
	"context"
	"errors"

	"github.com/absmach/dronefl/federation"
	pkgerrors "github.com/absmach/dronefl/pkg/errors"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
)

var errInvalidRound = errors.New("round must be a positive integer")

func registerDroneEndpoint(svc federation.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(registerReq)
		if !ok {
			return droneResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return droneResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.Register(ctx, req.Profile); err != nil {
			return droneResponse{}, err
		}

		return droneResponse{
			Profile: req.Profile,
			created: true,
		}, nil
	}
}

func listDronesEndpoint(svc federation.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listDronesResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listDronesResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.Drones(ctx, req.offset, req.limit)
		if err != nil {
			return listDronesResponse{}, err
		}

		return listDronesResponse{
			DronePage: page,
		}, nil
	}
}

func getDroneEndpoint(svc federation.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return droneResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return droneResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		p, err := svc.Drone(ctx, req.id)
		if err != nil {
			return droneResponse{}, err
		}

		return droneResponse{
			Profile: p,
		}, nil
	}
}

func deregisterDroneEndpoint(svc federation.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return droneResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return droneResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.Deregister(ctx, req.id); err != nil {
			return droneResponse{}, err
		}

		return droneResponse{
			deleted: true,
		}, nil
	}
}

func listReportsEndpoint(svc federation.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listReportsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listReportsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.Reports(ctx, req.offset, req.limit)
		if err != nil {
			return listReportsResponse{}, err
		}

		return listReportsResponse{
			ReportPage: page,
		}, nil
	}
}

func getReportEndpoint(svc federation.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(roundReq)
		if !ok {
			return reportResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return reportResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		report, err := svc.Report(ctx, req.round)
		if err != nil {
			return reportResponse{}, err
		}

		return reportResponse{
			Report: report,
		}, nil
	}
}

func getBlobEndpoint(svc federation.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		v, err := svc.Blob(ctx)
		if err != nil {
			return blobResponse{}, err
		}

		return blobResponse{
			BlobVersion: v,
		}, nil
	}
}
