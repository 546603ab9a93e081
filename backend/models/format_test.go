package models

import (
	"errors"
	"testing"

	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutputFormat(t *testing.T) {
	for _, in := range []string{"jpeg", "JPG", "jfif", "Bmp", "TIFF", " webp ", "png", "ico", "GIF"} {
		f, err := ParseOutputFormat(in)
		require.NoError(t, err, in)
		assert.True(t, f.Valid(), in)
	}

	for _, in := range []string{"EXE", "", "svg", "heic", "jpeg2000"} {
		_, err := ParseOutputFormat(in)
		assert.True(t, errors.Is(err, apperr.Validation), in)
	}
}

func TestFormatAlpha(t *testing.T) {
	for _, f := range []OutputFormat{FormatJPEG, FormatJPG, FormatJFIF, FormatBMP, FormatTIFF} {
		assert.False(t, f.SupportsAlpha(), f)
	}
	for _, f := range []OutputFormat{FormatWEBP, FormatPNG, FormatICO, FormatGIF} {
		assert.True(t, f.SupportsAlpha(), f)
	}
	assert.Equal(t, "image/webp", FormatWEBP.ContentType())
	assert.Equal(t, "jfif", FormatJFIF.Extension())
}

func TestValidateQuality(t *testing.T) {
	assert.NoError(t, ValidateQuality(5))
	assert.NoError(t, ValidateQuality(80))
	assert.NoError(t, ValidateQuality(100))

	for _, q := range []int{-1, 0, 4, 101, 1000} {
		err := ValidateQuality(q)
		assert.True(t, errors.Is(err, apperr.Validation), q)
	}
}

func TestEditOptionsValidate(t *testing.T) {
	assert.NoError(t, EditOptions{Width: 200}.Validate())
	assert.NoError(t, EditOptions{Rotate: 270, Grayscale: true}.Validate())
	assert.NoError(t, EditOptions{Format: FormatPNG}.Validate())

	cases := map[string]EditOptions{
		"noop":   {},
		"rotate": {Rotate: 45},
		"width":  {Width: 10001},
		"height": {Height: -3},
		"format": {Format: "EXE"},
	}
	for name, opts := range cases {
		err := opts.Validate()
		assert.True(t, errors.Is(err, apperr.Validation), name)
	}
}

func TestFormatForContentType(t *testing.T) {
	f, ok := FormatForContentType("image/png")
	assert.True(t, ok)
	assert.Equal(t, FormatPNG, f)

	_, ok = FormatForContentType("image/svg+xml")
	assert.False(t, ok)
}
