package utils

import (
	"encoding/json"
	"net/http"

	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/sirupsen/logrus"
)

const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeRateLimit          = "RATE_LIMIT_EXCEEDED"
	ErrCodeUpstream           = "UPSTREAM_FAILURE"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

const (
	ResultSuccess = "success"
	ResultError   = "error"
)

type APIResponse struct {
	Result  string      `json:"result"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Field   string      `json:"field,omitempty"`
	Code    string      `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logrus.WithError(err).WithField("status", statusCode).Error("failed to encode response")
	}
}

func normalizeData(data []interface{}) interface{} {
	switch len(data) {
	case 0:
		return nil
	case 1:
		return data[0]
	default:
		return data
	}
}

func codeFromStatus(statusCode int) string {
	switch {
	case statusCode == http.StatusBadGateway:
		return ErrCodeUpstream
	case statusCode == http.StatusServiceUnavailable:
		return ErrCodeServiceUnavailable
	case statusCode >= 500:
		return ErrCodeInternalError
	case statusCode == http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case statusCode == http.StatusForbidden:
		return ErrCodeForbidden
	case statusCode == http.StatusNotFound:
		return ErrCodeNotFound
	case statusCode == http.StatusMethodNotAllowed:
		return ErrCodeMethodNotAllowed
	case statusCode == http.StatusConflict:
		return ErrCodeConflict
	case statusCode == http.StatusTooManyRequests:
		return ErrCodeRateLimit
	case statusCode >= 400:
		return ErrCodeBadRequest
	default:
		return "OK"
	}
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case apperr.KindUpstream:
		return http.StatusBadGateway
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func RespondSuccess(w http.ResponseWriter, statusCode int, data ...interface{}) {
	payload := APIResponse{
		Result:  ResultSuccess,
		Message: http.StatusText(statusCode),
		Data:    normalizeData(data),
	}
	writeJSON(w, statusCode, payload)
}

func RespondString(w http.ResponseWriter, statusCode int, message string) {
	payload := APIResponse{
		Result:  ResultSuccess,
		Message: message,
	}
	writeJSON(w, statusCode, payload)
}

func RespondError(w http.ResponseWriter, statusCode int, message string) {
	payload := APIResponse{
		Result:  ResultError,
		Message: message,
		Code:    codeFromStatus(statusCode),
	}
	writeJSON(w, statusCode, payload)
}

// RespondAppError turns err into the envelope for its kind. Upstream and
// internal failures are logged with their cause; the client only sees the
// generic message.
func RespondAppError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)

	switch kind {
	case apperr.KindUpstream:
		log.WithError(err).Error("upstream media service failed")
	case apperr.KindInternal:
		log.WithError(err).Error("internal error")
	default:
		log.WithError(err).WithField("kind", kind).Debug("request rejected")
	}

	payload := APIResponse{
		Result:  ResultError,
		Message: apperr.MessageOf(err),
		Field:   apperr.FieldOf(err),
		Code:    codeFromStatus(status),
	}
	if kind == apperr.KindValidation {
		payload.Code = ErrCodeValidation
	}
	writeJSON(w, status, payload)
}

func RespondInternal(w http.ResponseWriter, log logrus.FieldLogger, err error, message string) {
	log.WithError(err).Error(message)
	payload := APIResponse{
		Result:  ResultError,
		Message: message,
		Code:    ErrCodeInternalError,
	}
	writeJSON(w, http.StatusInternalServerError, payload)
}
