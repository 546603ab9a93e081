package tracker

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/ravigill3969/image-converter/backend/media"
	"github.com/ravigill3969/image-converter/backend/models"
	"github.com/sirupsen/logrus"
)

// DeriveRequest asks for one derived image. Conversions carry Formats and
// Quality; edits carry Edit and at most one format.
type DeriveRequest struct {
	Kind    models.TransformKind
	Formats []string
	Quality *int
	Edit    *models.EditOptions
}

type derivePlan struct {
	formats []models.OutputFormat
	quality *int
	edit    *models.EditOptions
}

// AddDerived runs the transformation once per requested format. Either every
// variant is produced and the record saved, or nothing is saved and the
// objects already produced are removed.
func (t *Tracker) AddDerived(ctx context.Context, user models.UserIdentity, req DeriveRequest) (*models.DerivedImage, error) {
	plan, err := planDerive(req)
	if err != nil {
		return nil, err
	}

	orig, err := t.GetOriginal(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(plan.formats) == 0 {
		f, ok := models.FormatForContentType(orig.ContentType)
		if !ok {
			f = models.FormatPNG
		}
		plan.formats = []models.OutputFormat{f}
	}

	derivedID := newID()
	variants := make([]models.Variant, 0, len(plan.formats))
	produced := make([]string, 0, len(plan.formats))

	for i, f := range plan.formats {
		dest := fmt.Sprintf("%s%s-%d.%s", media.UserFolder(user), derivedID, i, f.Extension())
		res, err := t.media.Transform(ctx, media.TransformRequest{
			Kind:      req.Kind,
			SourceKey: orig.MediaKey,
			DestKey:   dest,
			Format:    f,
			Flatten:   !f.SupportsAlpha(),
			Quality:   plan.quality,
			Edit:      plan.edit,
		})
		if err != nil {
			t.log.WithError(err).WithFields(logrus.Fields{
				"user_id": user,
				"format":  f,
				"kind":    req.Kind,
			}).Error("transformation failed")
			t.deleteBestEffort(ctx, "derive aborted", produced...)
			return nil, err
		}
		produced = append(produced, res.Key)
		variants = append(variants, models.Variant{
			ID:          newID(),
			Format:      f,
			ContentType: f.ContentType(),
			MediaKey:    res.Key,
			URL:         res.URL,
		})
	}

	d := &models.DerivedImage{
		ID:                       derivedID,
		OriginalID:               orig.ID,
		UserID:                   user,
		SessionKey:               orig.SessionKey,
		Kind:                     req.Kind,
		DisplayName:              orig.DisplayName,
		Quality:                  plan.quality,
		Edit:                     plan.edit,
		Variants:                 variants,
		SessionKeyExpirationDate: orig.SessionKeyExpirationDate,
		CreatedAt:                t.nowF(),
	}
	if err := t.repo.PutDerived(ctx, d); err != nil {
		t.deleteBestEffort(ctx, "derived not saved", produced...)
		return nil, err
	}

	t.log.WithFields(logrus.Fields{
		"user_id":    user,
		"derived_id": d.ID,
		"kind":       d.Kind,
		"variants":   len(variants),
	}).Info("derived image created")
	return d, nil
}

// ListDerived returns the derived images of the user's live original. With
// no live original it is NotFound, never an empty list.
func (t *Tracker) ListDerived(ctx context.Context, user models.UserIdentity) ([]models.DerivedImage, error) {
	orig, err := t.GetOriginal(ctx, user)
	if err != nil {
		return nil, err
	}

	all, err := t.repo.FindDerivedByUser(ctx, user)
	if err != nil {
		return nil, err
	}

	now := t.nowF()
	list := make([]models.DerivedImage, 0, len(all))
	for _, d := range all {
		if d.OriginalID == orig.ID && !d.Expired(now) {
			list = append(list, d)
		}
	}
	return list, nil
}

// DeleteDerived removes one derived image the user owns. The record is left
// untouched unless its media objects are gone first.
func (t *Tracker) DeleteDerived(ctx context.Context, user models.UserIdentity, id uuid.UUID) error {
	d, err := t.repo.GetDerived(ctx, id)
	if err != nil {
		return err
	}
	if d == nil || d.Expired(t.nowF()) {
		return apperr.NewNotFound("Image not found")
	}
	if d.UserID != user {
		t.log.WithFields(logrus.Fields{
			"user_id":    user,
			"derived_id": id,
		}).Warn("attempt to delete another user's image")
		return apperr.NewForbidden("You do not own this image")
	}

	if err := t.media.Delete(ctx, d.MediaKeys()...); err != nil {
		return err
	}
	if err := t.repo.DeleteDerived(ctx, id); err != nil {
		return err
	}
	t.log.WithFields(logrus.Fields{"user_id": user, "derived_id": id}).Info("derived image deleted")
	return nil
}

func planDerive(req DeriveRequest) (*derivePlan, error) {
	switch req.Kind {
	case models.TransformConvert:
		if req.Edit != nil {
			return nil, apperr.NewValidation("edit", "Edit options do not apply to conversions")
		}
		if len(req.Formats) == 0 {
			return nil, apperr.NewValidation("formats", "At least one output format is required")
		}
		formats, err := parseFormats(req.Formats)
		if err != nil {
			return nil, err
		}
		if req.Quality == nil {
			return nil, apperr.NewValidation("quality", "Quality is required")
		}
		if err := models.ValidateQuality(*req.Quality); err != nil {
			return nil, err
		}
		q := *req.Quality
		return &derivePlan{formats: formats, quality: &q}, nil

	case models.TransformEdit:
		if req.Quality != nil {
			return nil, apperr.NewValidation("quality", "Quality only applies to conversions")
		}
		if req.Edit == nil {
			return nil, apperr.NewValidation("edit", "Edit options are required")
		}
		edit := *req.Edit
		if edit.Format != "" {
			f, err := models.ParseOutputFormat(string(edit.Format))
			if err != nil {
				return nil, err
			}
			edit.Format = f
		}
		if err := edit.Validate(); err != nil {
			return nil, err
		}
		if len(req.Formats) > 0 {
			return nil, apperr.NewValidation("formats", "Edits take a single format option")
		}
		plan := &derivePlan{edit: &edit}
		if edit.Format != "" {
			plan.formats = []models.OutputFormat{edit.Format}
		}
		return plan, nil
	}
	return nil, apperr.NewValidation("kind", "Unknown transformation: "+string(req.Kind))
}

// parseFormats validates every entry and drops repeats, keeping order.
func parseFormats(raw []string) ([]models.OutputFormat, error) {
	seen := make(map[models.OutputFormat]bool, len(raw))
	out := make([]models.OutputFormat, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) == "" {
			return nil, apperr.NewValidation("formats", "Empty output format")
		}
		f, err := models.ParseOutputFormat(s)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}
