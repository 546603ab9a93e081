package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/ravigill3969/image-converter/backend/apperr"
)

// UserIdentity is the anonymous user id bound to a session.
type UserIdentity string

// TransformKind tells conversions from edits.
type TransformKind string

const (
	TransformConvert TransformKind = "convert"
	TransformEdit    TransformKind = "edit"
)

const (
	MaxEditDimension = 10000
)

type OriginalImage struct {
	ID                       uuid.UUID    `json:"id"`
	UserID                   UserIdentity `json:"-"`
	SessionKey               string       `json:"-"`
	DisplayName              string       `json:"display_name"`
	ContentType              string       `json:"content_type"`
	MediaKey                 string       `json:"-"`
	URL                      string       `json:"url"`
	FileSize                 int64        `json:"file_size_bytes"`
	SessionKeyExpirationDate time.Time    `json:"session_key_expiration_date"`
	CreatedAt                time.Time    `json:"created_at"`
}

// Expired reports whether the row outlived its session at now.
func (o *OriginalImage) Expired(now time.Time) bool {
	return o.SessionKeyExpirationDate.Before(now)
}

type Variant struct {
	ID          uuid.UUID    `json:"id"`
	Format      OutputFormat `json:"format"`
	ContentType string       `json:"content_type"`
	MediaKey    string       `json:"-"`
	URL         string       `json:"url"`
}

type DerivedImage struct {
	ID                       uuid.UUID     `json:"id"`
	OriginalID               uuid.UUID     `json:"original_id"`
	UserID                   UserIdentity  `json:"-"`
	SessionKey               string        `json:"-"`
	Kind                     TransformKind `json:"kind"`
	DisplayName              string        `json:"display_name"`
	Quality                  *int          `json:"quality,omitempty"`
	Edit                     *EditOptions  `json:"edit,omitempty"`
	Variants                 []Variant     `json:"variants"`
	SessionKeyExpirationDate time.Time     `json:"session_key_expiration_date"`
	CreatedAt                time.Time     `json:"created_at"`
}

func (d *DerivedImage) Expired(now time.Time) bool {
	return d.SessionKeyExpirationDate.Before(now)
}

// MediaKeys lists the object keys of every variant.
func (d *DerivedImage) MediaKeys() []string {
	keys := make([]string, 0, len(d.Variants))
	for _, v := range d.Variants {
		keys = append(keys, v.MediaKey)
	}
	return keys
}

// EditOptions are the basic edits. Zero values mean "leave as is".
type EditOptions struct {
	Width     int          `json:"width,omitempty"`
	Height    int          `json:"height,omitempty"`
	Rotate    int          `json:"rotate,omitempty"`
	Grayscale bool         `json:"grayscale,omitempty"`
	Flip      bool         `json:"flip,omitempty"`
	Mirror    bool         `json:"mirror,omitempty"`
	Format    OutputFormat `json:"format,omitempty"`
}

func (e EditOptions) Validate() error {
	if e.Width < 0 || e.Width > MaxEditDimension {
		return apperr.NewValidation("width", "width must be between 1 and 10000")
	}
	if e.Height < 0 || e.Height > MaxEditDimension {
		return apperr.NewValidation("height", "height must be between 1 and 10000")
	}
	switch e.Rotate {
	case 0, 90, 180, 270:
	default:
		return apperr.NewValidation("rotate", "rotate must be one of 0, 90, 180, 270")
	}
	if e.Format != "" && !e.Format.Valid() {
		return apperr.NewValidation("format", "unsupported output format: "+string(e.Format))
	}
	if e.Width == 0 && e.Height == 0 && e.Rotate == 0 && !e.Grayscale && !e.Flip && !e.Mirror && e.Format == "" {
		return apperr.NewValidation("", "edit does not change the image")
	}
	return nil
}

// SendOriginalToUI is what the upload endpoint returns.
type SendOriginalToUI struct {
	Original *OriginalImage `json:"original"`
	Derived  int            `json:"derived_count"`
}

type ArchiveLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Files     int       `json:"files"`
}
