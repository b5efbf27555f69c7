package fxa

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mozilla/fxa-client-go/internal/fxaerr"
	"github.com/mozilla/fxa-client-go/internal/logging"
)

const (
	// oauthMinTimeLeft is how close to expiry a cached access token can be
	// before it is treated as expired and re-minted (§3 invariant).
	oauthMinTimeLeft = 60 * time.Second
	// profileFreshness is how long a cached profile response is served
	// without revalidation (§3 invariant).
	profileFreshness = 120 * time.Second
)

// AccessTokenInfo is what get_access_token returns: the token itself, the
// scope it was minted for, the scoped key for that scope if one exists,
// and its expiry.
type AccessTokenInfo struct {
	Scope     string
	Token     string
	Key       *ScopedKey
	ExpiresAt time.Time
}

type cachedProfile struct {
	response Profile
	cachedAt time.Time
	etag     string
}

// PersistFunc is invoked with the serialized account state whenever
// persistent fields change. If the host platform requires asynchronous
// persistence, the callback should enqueue the write, not block (§9).
type PersistFunc func(serializedState string)

// Account is the single-owner facade over an account's persistent state
// and ephemeral caches: the account state machine, token broker, command
// registry, and send-tab orchestration all hang off this type. All
// mutating methods require exclusive access for the duration of the call;
// it is safe to move an Account between goroutines but not to share it
// concurrently (§5).
type Account struct {
	mu sync.Mutex

	state *state

	accessTokenCache map[string]AccessTokenInfo
	flowStore        map[string]oauthFlowEntry
	profileCache     *cachedProfile
	persist          PersistFunc
}

// NewAccount creates a fresh Account from a Config, with empty state.
func NewAccount(cfg Config) *Account {
	return fromState(newState(cfg))
}

// FromState reconstructs an Account from a previously serialized state
// blob (see Account.ToState).
func FromState(serialized string) (*Account, error) {
	s, err := deserialize(serialized)
	if err != nil {
		return nil, err
	}
	return fromState(s), nil
}

func fromState(s *state) *Account {
	return &Account{
		state:            s,
		accessTokenCache: map[string]AccessTokenInfo{},
		flowStore:        map[string]oauthFlowEntry{},
	}
}

// ToState serializes the account's persistent state to its versioned wire
// form, the inverse of FromState.
func (a *Account) ToState() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return serialize(a.state)
}

// SetPersistCallback registers the capability invoked after every
// persistent state mutation.
func (a *Account) SetPersistCallback(fn PersistFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.persist = fn
}

// maybeCallPersistCallback serializes the current state and invokes the
// persist callback, if one is registered. Caller holds a.mu.
func (a *Account) maybeCallPersistCallback() {
	if a.persist == nil {
		return
	}
	serialized, err := serialize(a.state)
	if err != nil {
		logging.Errorw("failed to serialize state for persist callback", "error", err)
		return
	}
	a.persist(serialized)
}

// GetAccessToken mints or returns a cached access token for scope.
func (a *Account) GetAccessToken(ctx context.Context, scope string) (AccessTokenInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if strings.Contains(scope, " ") {
		return AccessTokenInfo{}, fxaerr.NewMultipleScopesRequestedError("a single scope was expected", nil)
	}

	if cached, ok := a.accessTokenCache[scope]; ok {
		if time.Until(cached.ExpiresAt) >= oauthMinTimeLeft {
			return cached, nil
		}
	}

	if a.state.RefreshToken == nil || !a.state.RefreshToken.HasScope(scope) {
		return AccessTokenInfo{}, fxaerr.NewNoCachedTokenError(fmt.Sprintf("no path to mint scope %q", scope), nil)
	}

	client := newHTTPClient(a.state.Config)
	resp, err := client.exchangeRefreshToken(ctx, a.state.RefreshToken.Token, scope)
	if err != nil {
		return AccessTokenInfo{}, err
	}

	info := AccessTokenInfo{
		Scope:     resp.Scope,
		Token:     resp.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	if key, ok := a.state.ScopedKeys[scope]; ok {
		k := key
		info.Key = &k
	}
	a.accessTokenCache[scope] = info
	return info, nil
}

// GetProfile fetches the account's profile, serving a cached response when
// it is fresh (within 120s) unless ignoreCache is set. A response is cached
// only when the server sends an ETag with it.
func (a *Account) GetProfile(ctx context.Context, ignoreCache bool) (Profile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	token, err := a.getAccessTokenLocked(ctx, scopeProfile)
	if err != nil {
		return Profile{}, err
	}

	etag := ""
	if a.profileCache != nil {
		if !ignoreCache && time.Since(a.profileCache.cachedAt) < profileFreshness {
			return a.profileCache.response, nil
		}
		etag = a.profileCache.etag
	}

	client := newHTTPClient(a.state.Config)
	result, err := client.fetchProfile(ctx, token.Token, etag)
	if err != nil {
		return Profile{}, err
	}
	if result.NotModified {
		if a.profileCache == nil {
			return Profile{}, fxaerr.NewUnrecoverableServerError("got a 304 without having sent an etag", nil)
		}
		a.profileCache.cachedAt = time.Now()
		return a.profileCache.response, nil
	}

	if result.ETag != "" {
		a.profileCache = &cachedProfile{response: result.Response, cachedAt: time.Now(), etag: result.ETag}
	}
	return result.Response, nil
}

const scopeProfile = "profile"

// getAccessTokenLocked is GetAccessToken without re-acquiring a.mu, for use
// by other locked methods on Account.
func (a *Account) getAccessTokenLocked(ctx context.Context, scope string) (AccessTokenInfo, error) {
	if strings.Contains(scope, " ") {
		return AccessTokenInfo{}, fxaerr.NewMultipleScopesRequestedError("a single scope was expected", nil)
	}
	if cached, ok := a.accessTokenCache[scope]; ok {
		if time.Until(cached.ExpiresAt) >= oauthMinTimeLeft {
			return cached, nil
		}
	}
	if a.state.RefreshToken == nil || !a.state.RefreshToken.HasScope(scope) {
		return AccessTokenInfo{}, fxaerr.NewNoCachedTokenError(fmt.Sprintf("no path to mint scope %q", scope), nil)
	}
	client := newHTTPClient(a.state.Config)
	resp, err := client.exchangeRefreshToken(ctx, a.state.RefreshToken.Token, scope)
	if err != nil {
		return AccessTokenInfo{}, err
	}
	info := AccessTokenInfo{
		Scope:     resp.Scope,
		Token:     resp.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	if key, ok := a.state.ScopedKeys[scope]; ok {
		k := key
		info.Key = &k
	}
	a.accessTokenCache[scope] = info
	return info, nil
}

// GetConnectionSuccessURL returns the URL the embedder navigates to after
// a successful pairing/connection flow.
func (a *Account) GetConnectionSuccessURL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Config.ConnectionSuccessURL()
}

// GetManageAccountURL returns the "manage account" settings page URL.
func (a *Account) GetManageAccountURL(entrypoint string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Config.ManageAccountURL(entrypoint)
}

// GetManageDevicesURL returns the "manage devices" settings page URL.
func (a *Account) GetManageDevicesURL(entrypoint string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Config.ManageDevicesURL(entrypoint)
}

// GetTokenServerEndpointURL returns the Sync token-server endpoint.
func (a *Account) GetTokenServerEndpointURL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Config.TokenServerURL()
}

// Disconnect tears down the local session: best-effort destroys the
// refresh token server-side, clears all persisted and ephemeral state, and
// invokes the persist callback once with the empty state.
func (a *Account) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.RefreshToken != nil {
		client := newHTTPClient(a.state.Config)
		if err := client.destroyOAuthToken(ctx, a.state.RefreshToken.Token); err != nil {
			logDestroyFailure("refresh_token", err)
		}
	}

	a.state.RefreshToken = nil
	a.state.ScopedKeys = map[string]ScopedKey{}
	a.state.LastHandledCommand = nil
	a.state.CommandsData = map[string]string{}
	a.accessTokenCache = map[string]AccessTokenInfo{}
	a.flowStore = map[string]oauthFlowEntry{}
	a.profileCache = nil

	a.maybeCallPersistCallback()
	return nil
}

// SignOut is an alias for Disconnect, matching the terminal operation name
// used by embedding applications.
func (a *Account) SignOut(ctx context.Context) error {
	return a.Disconnect(ctx)
}
