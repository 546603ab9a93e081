package models

import (
	"strings"

	"github.com/ravigill3969/image-converter/backend/apperr"
)

// OutputFormat is the closed set of raster formats the converter produces.
type OutputFormat string

const (
	FormatJPEG OutputFormat = "JPEG"
	FormatJPG  OutputFormat = "JPG"
	FormatJFIF OutputFormat = "JFIF"
	FormatBMP  OutputFormat = "BMP"
	FormatTIFF OutputFormat = "TIFF"
	FormatWEBP OutputFormat = "WEBP"
	FormatPNG  OutputFormat = "PNG"
	FormatICO  OutputFormat = "ICO"
	FormatGIF  OutputFormat = "GIF"
)

const (
	MinQuality = 5
	MaxQuality = 100
)

type formatInfo struct {
	alpha       bool
	extension   string
	contentType string
}

var formats = map[OutputFormat]formatInfo{
	FormatJPEG: {alpha: false, extension: "jpeg", contentType: "image/jpeg"},
	FormatJPG:  {alpha: false, extension: "jpg", contentType: "image/jpeg"},
	FormatJFIF: {alpha: false, extension: "jfif", contentType: "image/jpeg"},
	FormatBMP:  {alpha: false, extension: "bmp", contentType: "image/bmp"},
	FormatTIFF: {alpha: false, extension: "tiff", contentType: "image/tiff"},
	FormatWEBP: {alpha: true, extension: "webp", contentType: "image/webp"},
	FormatPNG:  {alpha: true, extension: "png", contentType: "image/png"},
	FormatICO:  {alpha: true, extension: "ico", contentType: "image/x-icon"},
	FormatGIF:  {alpha: true, extension: "gif", contentType: "image/gif"},
}

// ParseOutputFormat accepts any case and surrounding blanks. Anything outside
// the enumeration is a validation error.
func ParseOutputFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := formats[f]; !ok {
		return "", apperr.NewValidation("format", "unsupported output format: "+s)
	}
	return f, nil
}

func (f OutputFormat) Valid() bool {
	_, ok := formats[f]
	return ok
}

// SupportsAlpha reports whether the format keeps transparency.
func (f OutputFormat) SupportsAlpha() bool { return formats[f].alpha }

func (f OutputFormat) Extension() string { return formats[f].extension }

func (f OutputFormat) ContentType() string { return formats[f].contentType }

// FormatForContentType maps an uploaded content type to the format used when
// an edit does not ask for one.
func FormatForContentType(contentType string) (OutputFormat, bool) {
	switch contentType {
	case "image/jpeg":
		return FormatJPEG, true
	case "image/png":
		return FormatPNG, true
	case "image/gif":
		return FormatGIF, true
	case "image/webp":
		return FormatWEBP, true
	case "image/bmp", "image/x-ms-bmp":
		return FormatBMP, true
	case "image/tiff":
		return FormatTIFF, true
	case "image/x-icon", "image/vnd.microsoft.icon":
		return FormatICO, true
	}
	return "", false
}

// ValidateQuality rejects values outside [MinQuality, MaxQuality]; they are
// never clamped.
func ValidateQuality(q int) error {
	if q < MinQuality || q > MaxQuality {
		return apperr.NewValidation("quality", "quality must be between 5 and 100")
	}
	return nil
}
