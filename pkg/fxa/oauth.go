package fxa

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/mozilla/fxa-client-go/internal/fxaerr"
	"github.com/mozilla/fxa-client-go/internal/logging"
)

// oauthFlowEntry is the in-memory record kept per in-flight OAuth attempt,
// keyed by the random `state` parameter. It is consumed exactly once, at
// the moment the code is exchanged, regardless of outcome (§5).
type oauthFlowEntry struct {
	scopedKeysFlow *scopedKeysFlow
	codeVerifier   string
}

// BeginOAuthFlow constructs an authorization URL and records the flow
// awaiting completion. If a refresh token already exists, the effective
// scope set is the union of its scopes and the requested ones.
func (a *Account) BeginOAuthFlow(ctx context.Context, scopes []string, wantsKeys bool) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	effectiveScopes := scopes
	if a.state.RefreshToken != nil {
		effectiveScopes = unionScopes(scopes, a.state.RefreshToken.Scopes)
	}
	return a.oauthFlow(a.state.Config.AuthorizationURL(), effectiveScopes, wantsKeys)
}

// BeginPairingFlow builds an authorization URL against the pairing
// supplicant endpoint, copying the pairing URL's fragment verbatim and
// failing with OriginMismatch if hosts differ. wantsKeys is implicitly
// true, matching the scoped-keys pairing handshake.
func (a *Account) BeginPairingFlow(ctx context.Context, pairingURL string, scopes []string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	parsed, err := url.Parse(pairingURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse pairing url: %w", err)
	}
	if parsed.Host != a.state.Config.ContentHost() {
		return "", fxaerr.NewOriginMismatchError(
			fmt.Sprintf("pairing url host %q does not match content host %q", parsed.Host, a.state.Config.ContentHost()), nil)
	}

	flowURL, err := a.oauthFlow(a.state.Config.PairingSupplicantURL(), scopes, true)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(flowURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse generated flow url: %w", err)
	}
	u.Fragment = parsed.Fragment
	u.RawFragment = parsed.RawFragment
	return u.String(), nil
}

// oauthFlow builds the query string shared by begin_oauth_flow and
// begin_pairing_flow, storing the new flow entry keyed by `state`. Caller
// holds a.mu.
func (a *Account) oauthFlow(baseURL string, scopes []string, wantsKeys bool) (string, error) {
	state, err := generateState()
	if err != nil {
		return "", err
	}
	pkce, err := generatePKCEParams()
	if err != nil {
		return "", err
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}

	// Order matters: it is part of the §4.2 compatibility contract. A plain
	// url.Values would re-sort keys alphabetically on Encode, so the query
	// string is built by hand instead.
	params := []struct{ key, value string }{
		{"action", "email"},
		{"response_type", "code"},
		{"client_id", a.state.Config.ClientID},
		{"redirect_uri", a.state.Config.RedirectURI},
		{"scope", strings.Join(scopes, " ")},
		{"state", state},
		{"code_challenge_method", "S256"},
		{"code_challenge", pkce.CodeChallenge},
		{"access_type", "offline"},
	}

	entry := oauthFlowEntry{codeVerifier: pkce.CodeVerifier}
	if wantsKeys {
		flow, err := newScopedKeysFlow()
		if err != nil {
			return "", err
		}
		keysJWK, err := flow.keysJWK()
		if err != nil {
			return "", err
		}
		params = append(params, struct{ key, value string }{"keys_jwk", keysJWK})
		entry.scopedKeysFlow = flow
	}

	a.flowStore[state] = entry

	var sb strings.Builder
	sb.WriteString(u.Scheme)
	sb.WriteString("://")
	sb.WriteString(u.Host)
	sb.WriteString(u.Path)
	sb.WriteByte('?')
	for i, p := range params {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.value))
	}
	return sb.String(), nil
}

// CompleteOAuthFlow exchanges an authorization code for tokens, decrypting
// scoped keys if the scoped-keys extension was used, and replaces the
// account's refresh token.
func (a *Account) CompleteOAuthFlow(ctx context.Context, code, state string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.flowStore[state]
	delete(a.flowStore, state) // removed exactly once, regardless of outcome
	if !ok {
		return fxaerr.NewUnknownOAuthStateError(fmt.Sprintf("no oauth flow found for state %q", state), nil)
	}

	client := newHTTPClient(a.state.Config)
	resp, err := client.exchangeCodeForToken(ctx, code, entry.codeVerifier)
	if err != nil {
		return err
	}

	if resp.RefreshToken == "" {
		return fxaerr.NewRefreshTokenNotPresentError("server did not return a refresh token", nil)
	}

	if resp.KeysJWE != "" {
		if entry.scopedKeysFlow == nil {
			return fxaerr.NewUnrecoverableServerError("got a JWE without sending a JWK", nil)
		}
		keys, err := entry.scopedKeysFlow.decryptKeysJWE(resp.KeysJWE)
		if err != nil {
			return err
		}
		for scope, key := range keys {
			a.state.ScopedKeys[scope] = key
		}
	} else if entry.scopedKeysFlow != nil {
		logging.Error("expected keys_jwe alongside the token but the server did not send it")
		return fxaerr.NewTokenWithoutKeysError("keys were requested but not delivered", nil)
	}

	if err := client.destroyOAuthToken(ctx, resp.AccessToken); err != nil {
		logDestroyFailure("access_token", err)
	}

	if a.state.RefreshToken != nil {
		if err := client.destroyOAuthToken(ctx, a.state.RefreshToken.Token); err != nil {
			logDestroyFailure("refresh_token", err)
		}
	}

	a.state.RefreshToken = &RefreshToken{
		Token:  resp.RefreshToken,
		Scopes: strings.Split(resp.Scope, " "),
	}

	a.maybeCallPersistCallback()
	return nil
}

// unionScopes returns the set union of a and b as a sorted, deduplicated
// slice. Order of the input scopes is irrelevant to the resulting set.
func unionScopes(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		seen[s] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
