// Package oauth adapts this module's token broker onto the stdlib-adjacent
// golang.org/x/oauth2 interfaces, so an Account's access tokens can be fed
// directly into any oauth2-aware HTTP client (e.g. http.Client{Transport:
// oauth2.Transport{...}}) without every consumer re-learning the broker's
// own API.
package oauth

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/mozilla/fxa-client-go/pkg/fxa"
)

// accessTokenMinter is the subset of *fxa.Account this package depends on,
// narrowed to ease testing with a fake.
type accessTokenMinter interface {
	GetAccessToken(ctx context.Context, scope string) (fxa.AccessTokenInfo, error)
}

// TokenSource adapts an Account's get_access_token to oauth2.TokenSource for
// a single fixed scope.
type TokenSource struct {
	ctx     context.Context
	account accessTokenMinter
	scope   string
}

// NewTokenSource returns an oauth2.TokenSource that mints tokens for scope
// via account, reusing the account's own freshness/caching rules.
func NewTokenSource(ctx context.Context, account *fxa.Account, scope string) oauth2.TokenSource {
	return &TokenSource{ctx: ctx, account: account, scope: scope}
}

// Token implements oauth2.TokenSource.
func (s *TokenSource) Token() (*oauth2.Token, error) {
	info, err := s.account.GetAccessToken(s.ctx, s.scope)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: info.Token,
		TokenType:   "Bearer",
		Expiry:      info.ExpiresAt,
	}, nil
}
