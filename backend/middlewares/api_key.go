package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/ravigill3969/image-converter/backend/models"
	"github.com/ravigill3969/image-converter/backend/utils"
	"github.com/sirupsen/logrus"
)

type KeyAuthenticator interface {
	Authenticate(ctx context.Context, raw string) (*models.APIKey, error)
}

// APIKeyAuth guards the operator endpoints. The key is read from header,
// or from "Authorization: Bearer" when header is absent.
type APIKeyAuth struct {
	keys   KeyAuthenticator
	header string
	log    logrus.FieldLogger
}

func NewAPIKeyAuth(keys KeyAuthenticator, header string, log logrus.FieldLogger) *APIKeyAuth {
	return &APIKeyAuth{
		keys:   keys,
		header: header,
		log:    log.WithField("component", "api_key_auth"),
	}
}

func (a *APIKeyAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(a.header))
		if raw == "" {
			raw = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		}
		if raw == "" {
			utils.RespondAppError(w, a.log, apperr.NewUnauthenticated("API key required"))
			return
		}

		key, err := a.keys.Authenticate(r.Context(), raw)
		if err != nil {
			utils.RespondAppError(w, a.log, err)
			return
		}

		ctx := context.WithValue(r.Context(), APIKeyContextKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func APIKeyFromContext(ctx context.Context) (*models.APIKey, bool) {
	key, ok := ctx.Value(APIKeyContextKey).(*models.APIKey)
	return key, ok && key != nil
}
