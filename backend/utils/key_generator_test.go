package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	a, err := GenerateKey(16)
	require.NoError(t, err)
	b, err := GenerateKey(16)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)

	_, err = GenerateKey(0)
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("abcd.secret")
	assert.Len(t, fp, 12)
	assert.Equal(t, fp, Fingerprint("abcd.secret"))
	assert.NotEqual(t, fp, Fingerprint("abcd.other"))
	assert.NotContains(t, fp, "secret")
}
