package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ravigill3969/image-converter/backend/apperr"
	middleware "github.com/ravigill3969/image-converter/backend/middlewares"
	"github.com/ravigill3969/image-converter/backend/models"
	"github.com/ravigill3969/image-converter/backend/utils"
	"github.com/sirupsen/logrus"
)

type KeyRotator interface {
	Rotate(ctx context.Context, current *models.APIKey) (*models.IssuedAPIKey, error)
}

type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

type AdminHandler struct {
	Keys    KeyRotator
	Tracker Purger
	Log     logrus.FieldLogger
}

// RotateKey revokes the key that authenticated the request and returns its
// replacement. The raw key is only ever shown in this response.
func (ah *AdminHandler) RotateKey(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.APIKeyFromContext(r.Context())
	if !ok {
		utils.RespondAppError(w, ah.Log, apperr.NewUnauthenticated("API key required"))
		return
	}

	issued, err := ah.Keys.Rotate(r.Context(), current)
	if err != nil {
		utils.RespondAppError(w, ah.Log, err)
		return
	}
	utils.RespondSuccess(w, http.StatusCreated, issued)
}

func (ah *AdminHandler) Purge(w http.ResponseWriter, r *http.Request) {
	n, err := ah.Tracker.PurgeExpired(r.Context(), time.Now().UTC())
	if err != nil {
		utils.RespondAppError(w, ah.Log, err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, map[string]int{"purged": n})
}
