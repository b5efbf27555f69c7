package fxa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mozilla/fxa-client-go/internal/fxaerr"
	"github.com/mozilla/fxa-client-go/internal/logging"
	"github.com/mozilla/fxa-client-go/internal/netutil"
)

// httpClient adapts the module's §6 HTTP contract onto internal/netutil. A
// fresh http.Client is used per call rather than held long-lived, keeping
// the account facade the sole owner of mutable state (§9).
type httpClient struct {
	config Config
	client *http.Client
}

func newHTTPClient(cfg Config) *httpClient {
	return &httpClient{config: cfg, client: &http.Client{Timeout: 30 * time.Second}}
}

// tokenResponse is the shared response shape for code exchange and
// refresh-token exchange.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
	KeysJWE      string `json:"keys_jwe,omitempty"`
}

func oauthErrorHandler(_ *http.Response, body []byte) error {
	var oauthErr struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description,omitempty"`
		Message          string `json:"message,omitempty"`
	}
	if err := json.Unmarshal(body, &oauthErr); err != nil || oauthErr.Error == "" {
		return nil
	}
	return fxaerr.NewTransportError(fmt.Sprintf("oauth error: %s %s", oauthErr.Error, oauthErr.Message), nil)
}

func (c *httpClient) exchangeCodeForToken(ctx context.Context, code, codeVerifier string) (*tokenResponse, error) {
	form := url.Values{
		"client_id":     {c.config.ClientID},
		"code":          {code},
		"code_verifier": {codeVerifier},
		"grant_type":    {"authorization_code"},
	}
	result, err := netutil.FetchJSONWithForm[tokenResponse](ctx, c.client, c.config.TokenURL(), form,
		netutil.WithErrorHandler(oauthErrorHandler))
	if err != nil {
		return nil, fxaerr.NewTransportError("code exchange failed", err)
	}
	return &result.Data, nil
}

func (c *httpClient) exchangeRefreshToken(ctx context.Context, refreshToken string, scope string) (*tokenResponse, error) {
	form := url.Values{
		"client_id":     {c.config.ClientID},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
		"scope":         {scope},
	}
	result, err := netutil.FetchJSONWithForm[tokenResponse](ctx, c.client, c.config.TokenURL(), form,
		netutil.WithErrorHandler(oauthErrorHandler))
	if err != nil {
		return nil, fxaerr.NewTransportError("refresh token exchange failed", err)
	}
	return &result.Data, nil
}

// destroyOAuthToken is best-effort: failures are logged by the caller, not
// surfaced as a hard error, per the §7 propagation policy.
func (c *httpClient) destroyOAuthToken(ctx context.Context, token string) error {
	form := url.Values{
		"client_id": {c.config.ClientID},
		"token":     {token},
	}
	_, err := netutil.FetchJSONWithForm[struct{}](ctx, c.client, c.config.OAuthDestroyURL(), form)
	return err
}

// profileResult reports whether the server returned a fresh profile or a
// 304 confirming the caller's cached copy is still valid.
type profileResult struct {
	NotModified bool
	Response    Profile
	ETag        string
}

// Profile is the subset of the FxA profile-server response this module
// cares about.
type Profile struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName,omitempty"`
	AvatarURL    string `json:"avatar,omitempty"`
	AvatarIsDflt bool   `json:"avatarDefault,omitempty"`
}

func (c *httpClient) fetchProfile(ctx context.Context, accessToken, etag string) (*profileResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.ProfileURL(), nil)
	if err != nil {
		return nil, fxaerr.NewTransportError("failed to build profile request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fxaerr.NewTransportError("profile request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &profileResult{NotModified: true}, nil
	}
	if resp.StatusCode >= 400 {
		return nil, fxaerr.NewTransportError(fmt.Sprintf("profile request returned %s", resp.Status), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fxaerr.NewTransportError("failed to read profile response", err)
	}
	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fxaerr.NewSerializationError("failed to parse profile response", err)
	}
	return &profileResult{Response: profile, ETag: resp.Header.Get("ETag")}, nil
}

// Device is a single entry from GET /account/devices.
type Device struct {
	ID string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	IsCurrentDevice bool `json:"isCurrentDevice"`
	AvailableCommands map[string]string `json:"availableCommands,omitempty"`
	PushEndpointExpired bool `json:"pushEndpointExpired,omitempty"`
}

func (c *httpClient) listDevices(ctx context.Context, refreshToken string) ([]Device, error) {
	result, err := netutil.FetchJSON[[]Device](ctx, c.client, c.config.DevicesURL(),
		netutil.WithHeader("Authorization", "Bearer "+refreshToken))
	if err != nil {
		return nil, fxaerr.NewTransportError("failed to list devices", err)
	}
	return result.Data, nil
}

// deviceUpdateRequest is the PUT-equivalent body for POST /account/device:
// any subset of fields may be set; AvailableCommands, when non-nil, entirely
// replaces the advertised command set (§4.3 known limitation).
type deviceUpdateRequest struct {
	DisplayName       *string           `json:"displayName,omitempty"`
	AvailableCommands map[string]string `json:"availableCommands"`
}

func (c *httpClient) updateDevice(ctx context.Context, refreshToken string, update deviceUpdateRequest) error {
	body, err := json.Marshal(update)
	if err != nil {
		return fxaerr.NewSerializationError("failed to marshal device update", err)
	}
	_, err = netutil.FetchJSON[struct{}](ctx, c.client, c.config.DeviceURL(),
		netutil.WithMethod(http.MethodPost),
		netutil.WithHeader("Authorization", "Bearer "+refreshToken),
		netutil.WithHeader("Content-Type", "application/json"),
		netutil.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fxaerr.NewTransportError("failed to update device", err)
	}
	return nil
}

func (c *httpClient) invokeCommand(ctx context.Context, refreshToken, command, targetID string, payload json.RawMessage) error {
	req := struct {
		Command string          `json:"command"`
		Target  string          `json:"target"`
		Payload json.RawMessage `json:"payload"`
	}{Command: command, Target: targetID, Payload: payload}
	body, err := json.Marshal(req)
	if err != nil {
		return fxaerr.NewSerializationError("failed to marshal command invocation", err)
	}
	_, err = netutil.FetchJSON[struct{}](ctx, c.client, c.config.InvokeCommandURL(),
		netutil.WithMethod(http.MethodPost),
		netutil.WithHeader("Authorization", "Bearer "+refreshToken),
		netutil.WithHeader("Content-Type", "application/json"),
		netutil.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fxaerr.NewTransportError("failed to invoke command", err)
	}
	return nil
}

// CommandData is the payload of a single pending command message.
type CommandData struct {
	Command string          `json:"command"`
	Index   uint64          `json:"index"`
	Sender  string          `json:"sender,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// pendingCommand wraps one message returned from the commands endpoint.
type pendingCommand struct {
	Index uint64      `json:"index"`
	Data  CommandData `json:"data"`
}

// pendingCommandsResponse is the server's response to a commands poll: the
// authoritative current high-water mark plus any messages at or after the
// requested starting index.
type pendingCommandsResponse struct {
	Index    uint64           `json:"index"`
	Messages []pendingCommand `json:"messages"`
}

func (c *httpClient) pendingCommands(ctx context.Context, refreshToken string, index uint64, limit *int) (*pendingCommandsResponse, error) {
	u := c.config.CommandsURL() + "?index=" + strconv.FormatUint(index, 10)
	if limit != nil {
		u += "&limit=" + strconv.Itoa(*limit)
	}
	result, err := netutil.FetchJSON[pendingCommandsResponse](ctx, c.client, u,
		netutil.WithHeader("Authorization", "Bearer "+refreshToken))
	if err != nil {
		return nil, fxaerr.NewTransportError("failed to poll pending commands", err)
	}
	return &result.Data, nil
}

func logDestroyFailure(kind string, err error) {
	if err != nil {
		logging.Warnw("best-effort token destruction failed", "kind", kind, "error", err)
	}
}
