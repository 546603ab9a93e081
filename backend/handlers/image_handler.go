package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/ravigill3969/image-converter/backend/apperr"
	middleware "github.com/ravigill3969/image-converter/backend/middlewares"
	"github.com/ravigill3969/image-converter/backend/models"
	"github.com/ravigill3969/image-converter/backend/tracker"
	"github.com/ravigill3969/image-converter/backend/utils"
	"github.com/sirupsen/logrus"
)

const (
	maxMultipartMemory = 32 << 20
	multipartOverhead  = 1 << 20
	maxJSONBody        = 64 << 10
)

type ImageTracker interface {
	GetOriginal(ctx context.Context, user models.UserIdentity) (*models.OriginalImage, error)
	PutOriginal(ctx context.Context, sess *models.UserSession, data []byte, contentType, displayName string) (*models.OriginalImage, error)
	DeleteAll(ctx context.Context, user models.UserIdentity) error
	AddDerived(ctx context.Context, user models.UserIdentity, req tracker.DeriveRequest) (*models.DerivedImage, error)
	ListDerived(ctx context.Context, user models.UserIdentity) ([]models.DerivedImage, error)
	DeleteDerived(ctx context.Context, user models.UserIdentity, id uuid.UUID) error
	ArchiveURL(ctx context.Context, user models.UserIdentity) (*models.ArchiveLink, error)
}

type ImageHandler struct {
	Tracker        ImageTracker
	MaxUploadBytes int64
	Log            logrus.FieldLogger
}

type convertRequest struct {
	Formats []string `json:"formats"`
	Quality *int     `json:"quality"`
}

type editRequest struct {
	models.EditOptions
	Quality *int `json:"quality"`
}

func (ih *ImageHandler) UploadOriginal(w http.ResponseWriter, r *http.Request) {
	sess, ok := ih.session(w, r)
	if !ok {
		return
	}

	// Zero leaves uploads unbounded, matching the tracker.
	if ih.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, ih.MaxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		ih.fail(w, uploadError(err, "Could not parse multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		ih.fail(w, apperr.NewValidation("file", "File not provided"))
		return
	}
	defer file.Close()

	if ih.MaxUploadBytes > 0 && fileHeader.Size > ih.MaxUploadBytes {
		ih.fail(w, apperr.NewValidation("file", "File is too large"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		ih.fail(w, uploadError(err, "Could not read file"))
		return
	}

	img, err := ih.Tracker.PutOriginal(r.Context(), sess, data, fileHeader.Header.Get("Content-Type"), fileHeader.Filename)
	if err != nil {
		ih.fail(w, err)
		return
	}

	utils.RespondSuccess(w, http.StatusCreated, models.SendOriginalToUI{Original: img})
}

func (ih *ImageHandler) GetOriginal(w http.ResponseWriter, r *http.Request) {
	sess, ok := ih.session(w, r)
	if !ok {
		return
	}

	img, err := ih.Tracker.GetOriginal(r.Context(), sess.UserID)
	if err != nil {
		ih.fail(w, err)
		return
	}

	derived, err := ih.Tracker.ListDerived(r.Context(), sess.UserID)
	if err != nil {
		ih.fail(w, err)
		return
	}

	utils.RespondSuccess(w, http.StatusOK, models.SendOriginalToUI{Original: img, Derived: len(derived)})
}

func (ih *ImageHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	sess, ok := ih.session(w, r)
	if !ok {
		return
	}

	if err := ih.Tracker.DeleteAll(r.Context(), sess.UserID); err != nil {
		ih.fail(w, err)
		return
	}
	utils.RespondString(w, http.StatusOK, "Images deleted")
}

func (ih *ImageHandler) Convert(w http.ResponseWriter, r *http.Request) {
	sess, ok := ih.session(w, r)
	if !ok {
		return
	}

	var body convertRequest
	if err := decodeJSON(w, r, &body); err != nil {
		ih.fail(w, err)
		return
	}

	d, err := ih.Tracker.AddDerived(r.Context(), sess.UserID, tracker.DeriveRequest{
		Kind:    models.TransformConvert,
		Formats: body.Formats,
		Quality: body.Quality,
	})
	if err != nil {
		ih.fail(w, err)
		return
	}
	utils.RespondSuccess(w, http.StatusCreated, d)
}

func (ih *ImageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	sess, ok := ih.session(w, r)
	if !ok {
		return
	}

	var body editRequest
	if err := decodeJSON(w, r, &body); err != nil {
		ih.fail(w, err)
		return
	}

	edit := body.EditOptions
	d, err := ih.Tracker.AddDerived(r.Context(), sess.UserID, tracker.DeriveRequest{
		Kind:    models.TransformEdit,
		Quality: body.Quality,
		Edit:    &edit,
	})
	if err != nil {
		ih.fail(w, err)
		return
	}
	utils.RespondSuccess(w, http.StatusCreated, d)
}

func (ih *ImageHandler) ListDerived(w http.ResponseWriter, r *http.Request) {
	sess, ok := ih.session(w, r)
	if !ok {
		return
	}

	list, err := ih.Tracker.ListDerived(r.Context(), sess.UserID)
	if err != nil {
		ih.fail(w, err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, list)
}

func (ih *ImageHandler) DeleteDerived(w http.ResponseWriter, r *http.Request) {
	sess, ok := ih.session(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ih.fail(w, apperr.NewNotFound("Image not found"))
		return
	}

	if err := ih.Tracker.DeleteDerived(r.Context(), sess.UserID, id); err != nil {
		ih.fail(w, err)
		return
	}
	utils.RespondString(w, http.StatusOK, "Image deleted")
}

func (ih *ImageHandler) Archive(w http.ResponseWriter, r *http.Request) {
	sess, ok := ih.session(w, r)
	if !ok {
		return
	}

	link, err := ih.Tracker.ArchiveURL(r.Context(), sess.UserID)
	if err != nil {
		ih.fail(w, err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, link)
}

func (ih *ImageHandler) session(w http.ResponseWriter, r *http.Request) (*models.UserSession, bool) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		ih.fail(w, apperr.NewUnauthenticated("Session required"))
		return nil, false
	}
	return sess, true
}

func (ih *ImageHandler) fail(w http.ResponseWriter, err error) {
	utils.RespondAppError(w, ih.Log, err)
}

func uploadError(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.NewValidation("file", "File is too large")
	}
	return apperr.NewValidation("file", msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.NewValidation("", "Invalid request body")
	}
	return nil
}
