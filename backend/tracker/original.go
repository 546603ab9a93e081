package tracker

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/ravigill3969/image-converter/backend/media"
	"github.com/ravigill3969/image-converter/backend/models"
	"github.com/sirupsen/logrus"
)

// GetOriginal returns the user's live original.
func (t *Tracker) GetOriginal(ctx context.Context, user models.UserIdentity) (*models.OriginalImage, error) {
	img, err := t.repo.FindOriginalByUser(ctx, user)
	if err != nil {
		return nil, err
	}
	if img == nil || img.Expired(t.nowF()) {
		return nil, apperr.NewNotFound("No image uploaded")
	}
	return img, nil
}

// PutOriginal uploads data and makes it the user's only original. Whatever
// the user had before, derived images included, is dropped.
func (t *Tracker) PutOriginal(ctx context.Context, sess *models.UserSession, data []byte, contentType, displayName string) (*models.OriginalImage, error) {
	contentType, format, err := t.validateUpload(data, contentType)
	if err != nil {
		return nil, err
	}

	id := newID()
	key := media.ObjectKey(sess.UserID, id, format.Extension())

	url, err := t.media.Upload(ctx, key, contentType, data)
	if err != nil {
		return nil, err
	}

	img := &models.OriginalImage{
		ID:                       id,
		UserID:                   sess.UserID,
		SessionKey:               sess.Key,
		DisplayName:              cleanDisplayName(displayName, format),
		ContentType:              contentType,
		MediaKey:                 key,
		URL:                      url,
		FileSize:                 int64(len(data)),
		SessionKeyExpirationDate: sess.ExpiresAt,
		CreatedAt:                t.nowF(),
	}

	replaced, err := t.repo.ReplaceOriginal(ctx, img)
	if err != nil {
		t.deleteBestEffort(ctx, "original not saved", key)
		return nil, fmt.Errorf("save original: %w", err)
	}
	if len(replaced) > 0 {
		t.deleteBestEffort(ctx, "original replaced", append(replaced, media.ArchiveKey(sess.UserID))...)
	}

	t.log.WithFields(logrus.Fields{
		"user_id":  sess.UserID,
		"image_id": img.ID,
		"size":     img.FileSize,
		"replaced": len(replaced),
	}).Info("original uploaded")
	return img, nil
}

// DeleteAll drops the user's original and everything derived from it.
func (t *Tracker) DeleteAll(ctx context.Context, user models.UserIdentity) error {
	if _, err := t.GetOriginal(ctx, user); err != nil {
		return err
	}
	keys, err := t.repo.DeleteOriginal(ctx, user)
	if err != nil {
		return fmt.Errorf("delete images: %w", err)
	}
	t.deleteBestEffort(ctx, "user delete", append(keys, media.ArchiveKey(user))...)
	t.log.WithField("user_id", user).Info("images deleted")
	return nil
}

func (t *Tracker) validateUpload(data []byte, declared string) (string, models.OutputFormat, error) {
	if len(data) == 0 {
		return "", "", apperr.NewValidation("file", "File is empty")
	}
	if t.maxUpload > 0 && int64(len(data)) > t.maxUpload {
		return "", "", apperr.NewValidation("file", fmt.Sprintf("File exceeds the %d byte limit", t.maxUpload))
	}

	declared = strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	if _, ok := models.FormatForContentType(declared); !ok {
		return "", "", apperr.NewValidation("file", "Unsupported image type: "+declared)
	}

	sniffed := sniffImage(data)
	format, ok := models.FormatForContentType(sniffed)
	if !ok {
		return "", "", apperr.NewValidation("file", "File is not an image")
	}
	return sniffed, format, nil
}

var (
	tiffLE = []byte("II*\x00")
	tiffBE = []byte("MM\x00*")
)

// sniffImage is http.DetectContentType plus TIFF, which it does not know.
func sniffImage(data []byte) string {
	if bytes.HasPrefix(data, tiffLE) || bytes.HasPrefix(data, tiffBE) {
		return "image/tiff"
	}
	return http.DetectContentType(data)
}

const (
	maxDisplayNameBytes = 255
	maxExtensionBytes   = 16
)

// cleanDisplayName keeps the base name of the upload as valid UTF-8 of at
// most maxDisplayNameBytes. Long names lose the end of their stem, never
// their extension.
func cleanDisplayName(name string, format models.OutputFormat) string {
	name = strings.ToValidUTF8(name, "")
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "image." + format.Extension()
	}
	if len(name) <= maxDisplayNameBytes {
		return name
	}

	ext := path.Ext(name)
	if len(ext) > maxExtensionBytes {
		ext = ""
	}
	stem := name[:len(name)-len(ext)]
	cut := maxDisplayNameBytes - len(ext)
	for cut > 0 && !utf8.RuneStart(stem[cut]) {
		cut--
	}
	return stem[:cut] + ext
}
