package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/ravigill3969/image-converter/backend/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRespondSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondSuccess(rec, http.StatusCreated, map[string]string{"id": "abc"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode(t, rec)
	assert.Equal(t, ResultSuccess, resp.Result)
	assert.Equal(t, map[string]interface{}{"id": "abc"}, resp.Data)
}

func TestRespondAppErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.NewUnauthenticated("no session"), http.StatusUnauthorized, ErrCodeUnauthorized},
		{apperr.NewNotFound("no image"), http.StatusNotFound, ErrCodeNotFound},
		{apperr.NewValidation("quality", "bad quality"), http.StatusBadRequest, ErrCodeValidation},
		{apperr.NewForbidden("not yours"), http.StatusForbidden, ErrCodeForbidden},
		{apperr.NewUpstream("Image service failed", errors.New("secret detail")), http.StatusBadGateway, ErrCodeUpstream},
		{fmt.Errorf("wrapped: %w", errors.New("db down")), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondAppError(rec, logger.Discard(), tc.err)

		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		resp := decode(t, rec)
		assert.Equal(t, ResultError, resp.Result)
		assert.Equal(t, tc.code, resp.Code)
		assert.NotContains(t, resp.Message, "secret detail")
		assert.NotContains(t, resp.Message, "db down")
	}
}

func TestRespondAppErrorCarriesField(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondAppError(rec, logger.Discard(), apperr.NewValidation("format", "unsupported output format: EXE"))

	resp := decode(t, rec)
	assert.Equal(t, "format", resp.Field)
	assert.Equal(t, "unsupported output format: EXE", resp.Message)
}
