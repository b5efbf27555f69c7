package oauth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the best-effort subset of an access token's JWT claims this
// module surfaces for diagnostics. FxA access tokens are opaque bearer
// tokens as far as authorization is concerned — nothing here is verified
// against a signature or used to make an authorization decision.
type Claims struct {
	Subject   string   `json:"sub,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	Scope     string   `json:"scope,omitempty"`
	ExpiresAt int64    `json:"exp,omitempty"`
	Audience  []string `json:"aud,omitempty"`
}

func (c *Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.ExpiresAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}
func (c *Claims) GetIssuedAt() (*jwt.NumericDate, error)  { return nil, nil }
func (c *Claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c *Claims) GetIssuer() (string, error)              { return "", nil }
func (c *Claims) GetSubject() (string, error)             { return c.Subject, nil }
func (c *Claims) GetAudience() (jwt.ClaimStrings, error)   { return c.Audience, nil }

// DecodeClaims parses an access token's claims without verifying its
// signature, for logging/diagnostics only. FxA access tokens are not
// always JWTs (some are opaque macaroons); a parse failure is not an error
// condition callers should treat as unusual.
func DecodeClaims(accessToken string) (*Claims, bool) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(accessToken, &Claims{})
	if err != nil {
		return nil, false
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, false
	}
	return claims, true
}
