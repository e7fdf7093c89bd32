package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/absmach/dronefl/federation"
	"github.com/absmach/dronefl/pkg/api"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func MakeHandler(svc federation.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, encodeError)),
	}

	mux.Route("/drones", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			registerDroneEndpoint(svc),
			decodeRegisterReq,
			api.EncodeResponse,
			opts...,
		), "register-drone").ServeHTTP)
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listDronesEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-drones").ServeHTTP)
		r.Route("/{droneID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getDroneEndpoint(svc),
				decodeEntityReq("droneID"),
				api.EncodeResponse,
				opts...,
			), "get-drone").ServeHTTP)
			r.Delete("/", otelhttp.NewHandler(kithttp.NewServer(
				deregisterDroneEndpoint(svc),
				decodeEntityReq("droneID"),
				api.EncodeResponse,
				opts...,
			), "deregister-drone").ServeHTTP)
		})
	})

	mux.Route("/rounds", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listReportsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-reports").ServeHTTP)
		r.Get("/{round}", otelhttp.NewHandler(kithttp.NewServer(
			getReportEndpoint(svc),
			decodeRoundReq,
			api.EncodeResponse,
			opts...,
		), "get-report").ServeHTTP)
	})

	mux.Get("/model", otelhttp.NewHandler(kithttp.NewServer(
		getBlobEndpoint(svc),
		kithttp.NopRequestDecoder,
		api.EncodeResponse,
		opts...,
	), "get-model").ServeHTTP)

	mux.Get("/health", supermq.Health("coordinator", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func encodeError(ctx context.Context, err error, w http.ResponseWriter) {
	if errors.Is(err, federation.ErrNoRun) {
		w.Header().Set("Content-Type", api.ContentType)
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})

		return
	}
	api.EncodeError(ctx, err, w)
}

func decodeEntityReq(key string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		return entityReq{
			id: chi.URLParam(r, key),
		}, nil
	}
}

func decodeRoundReq(_ context.Context, r *http.Request) (any, error) {
	round, err := strconv.ParseUint(chi.URLParam(r, "round"), 10, 64)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, errInvalidRound)
	}

	return roundReq{round: round}, nil
}

func decodeRegisterReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeListEntityReq(_ context.Context, r *http.Request) (any, error) {
	o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return listEntityReq{
		offset: o,
		limit:  l,
	}, nil
}
