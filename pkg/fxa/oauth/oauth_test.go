package oauth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozilla/fxa-client-go/pkg/fxa"
)

type fakeMinter struct {
	info fxa.AccessTokenInfo
	err  error
}

func (f *fakeMinter) GetAccessToken(_ context.Context, _ string) (fxa.AccessTokenInfo, error) {
	return f.info, f.err
}

func TestTokenSourceAdaptsAccessToken(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	src := &TokenSource{
		ctx:     context.Background(),
		account: &fakeMinter{info: fxa.AccessTokenInfo{Token: "at", ExpiresAt: expiry}},
		scope:   "profile",
	}

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "at", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.True(t, tok.Expiry.Equal(expiry))
}

func TestTokenSourcePropagatesError(t *testing.T) {
	src := &TokenSource{ctx: context.Background(), account: &fakeMinter{err: assert.AnError}}
	_, err := src.Token()
	require.Error(t, err)
}

func TestDecodeClaims(t *testing.T) {
	claims := jwt.MapClaims{"sub": "uid123", "client_id": "client1", "scope": "profile", "exp": time.Now().Add(time.Hour).Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("irrelevant-for-unverified-decode"))
	require.NoError(t, err)

	decoded, ok := DecodeClaims(signed)
	require.True(t, ok)
	assert.Equal(t, "uid123", decoded.Subject)
	assert.Equal(t, "client1", decoded.ClientID)
	assert.Equal(t, "profile", decoded.Scope)
}

func TestDecodeClaimsRejectsGarbage(t *testing.T) {
	_, ok := DecodeClaims("not-a-jwt")
	assert.False(t, ok)
}
