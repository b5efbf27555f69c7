// Package fxa implements the account state machine, OAuth/PKCE token
// broker, device command registry, and send-tab orchestration for a
// Firefox-Accounts-style identity provider.
package fxa

import (
	"fmt"
	"net/url"
	"strings"
)

// Config is the immutable per-instance configuration: content-server base
// URL, OAuth client id, and redirect URI. Derived endpoints are not stored:
// each endpoint method builds its URL from ContentURL when called, so they
// stay fixed for the lifetime of an instance because the Config does.
type Config struct {
	ContentURL  string `json:"content_url"`
	ClientID    string `json:"client_id"`
	RedirectURI string `json:"redirect_uri"`
}

// NewConfig validates and normalizes a Config. ContentURL must be an
// absolute http(s) URL.
func NewConfig(contentURL, clientID, redirectURI string) (Config, error) {
	u, err := url.Parse(contentURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Config{}, fmt.Errorf("invalid content url %q", contentURL)
	}
	return Config{
		ContentURL:  strings.TrimRight(contentURL, "/"),
		ClientID:    clientID,
		RedirectURI: redirectURI,
	}, nil
}

func (c Config) contentURLPath(path string) string {
	return c.ContentURL + "/" + strings.TrimLeft(path, "/")
}

// ContentHost returns the host component of ContentURL, used for the
// pairing-flow origin check.
func (c Config) ContentHost() string {
	u, err := url.Parse(c.ContentURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// AuthorizationURL returns the base OAuth authorization endpoint, before
// query parameters are attached.
func (c Config) AuthorizationURL() string { return c.contentURLPath("/authorization") }

// PairingSupplicantURL returns the base pairing-flow endpoint.
func (c Config) PairingSupplicantURL() string { return c.contentURLPath("/pair/supp") }

// TokenURL returns the code/refresh-token exchange endpoint.
func (c Config) TokenURL() string { return c.contentURLPath("/oauth/token") }

// OAuthDestroyURL returns the token-destruction endpoint.
func (c Config) OAuthDestroyURL() string { return c.contentURLPath("/oauth/destroy") }

// ProfileURL returns the profile-fetch endpoint.
func (c Config) ProfileURL() string { return c.contentURLPath("/profile") }

// TokenServerURL returns the Sync token-server endpoint, used to exchange
// an OAuth token for a Sync storage token outside this module's scope.
func (c Config) TokenServerURL() string { return c.contentURLPath("/1.0/sync/1.5") }

// DevicesURL returns the device-listing endpoint.
func (c Config) DevicesURL() string { return c.contentURLPath("/account/devices") }

// DeviceURL returns the device update endpoint.
func (c Config) DeviceURL() string { return c.contentURLPath("/account/device") }

// InvokeCommandURL returns the command-invocation endpoint.
func (c Config) InvokeCommandURL() string { return c.contentURLPath("/account/devices/invoke_command") }

// CommandsURL returns the pending-commands polling endpoint.
func (c Config) CommandsURL() string { return c.contentURLPath("/account/device/commands") }

// ConnectionSuccessURL returns the URL the embedder navigates to after a
// successful pairing/connection flow.
func (c Config) ConnectionSuccessURL() string {
	return c.contentURLPath("/connect_another_device") + "?showSuccessMessage=true"
}

// ManageAccountURL returns the URL for the "manage account" settings page.
func (c Config) ManageAccountURL(entrypoint string) string {
	u := c.contentURLPath("/settings")
	if entrypoint != "" {
		u += "?entrypoint=" + url.QueryEscape(entrypoint)
	}
	return u
}

// ManageDevicesURL returns the URL for the "manage devices" settings page.
func (c Config) ManageDevicesURL(entrypoint string) string {
	u := c.contentURLPath("/settings/clients")
	if entrypoint != "" {
		u += "?entrypoint=" + url.QueryEscape(entrypoint)
	}
	return u
}
