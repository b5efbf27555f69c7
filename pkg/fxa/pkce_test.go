package fxa

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePKCEParamsShape(t *testing.T) {
	params, err := generatePKCEParams()
	require.NoError(t, err)

	assert.Len(t, params.CodeVerifier, 43)
	assert.Len(t, params.CodeChallenge, 43)

	digest := sha256.Sum256([]byte(params.CodeVerifier))
	want := base64.RawURLEncoding.EncodeToString(digest[:])
	assert.Equal(t, want, params.CodeChallenge)
}

func TestGeneratePKCEParamsUnique(t *testing.T) {
	a, err := generatePKCEParams()
	require.NoError(t, err)
	b, err := generatePKCEParams()
	require.NoError(t, err)
	assert.NotEqual(t, a.CodeVerifier, b.CodeVerifier)
}

func TestGenerateStateShape(t *testing.T) {
	s, err := generateState()
	require.NoError(t, err)
	assert.Len(t, s, 22)

	other, err := generateState()
	require.NoError(t, err)
	assert.NotEqual(t, s, other)
}
