package api_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/absmach/dronefl/pkg/api"
	pkgerrors "github.com/absmach/dronefl/pkg/errors"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/stretchr/testify/assert"
)

func TestEncodeError(t *testing.T) {
	cases := []struct {
		desc   string
		err    error
		status int
	}{
		{desc: "validation", err: errors.Join(apiutil.ErrValidation, apiutil.ErrMissingID), status: http.StatusBadRequest},
		{desc: "empty key", err: pkgerrors.ErrEmptyKey, status: http.StatusBadRequest},
		{desc: "invalid profile", err: fmt.Errorf("%w: bad loss", pkgerrors.ErrInvalidProfile), status: http.StatusBadRequest},
		{desc: "not found", err: pkgerrors.ErrNotFound, status: http.StatusNotFound},
		{desc: "conflict", err: pkgerrors.ErrEntityExists, status: http.StatusConflict},
		{desc: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			w := httptest.NewRecorder()
			api.EncodeError(context.Background(), tc.err, w)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, api.ContentType, w.Header().Get("Content-Type"))
			assert.Contains(t, w.Body.String(), tc.err.Error()[:4])
		})
	}
}
