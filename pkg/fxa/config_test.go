package fxa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigTrimsTrailingSlash(t *testing.T) {
	cfg, err := NewConfig("https://accounts.example.com/", "client123", "https://app.example.com/callback")
	require.NoError(t, err)
	assert.Equal(t, "https://accounts.example.com", cfg.ContentURL)
}

func TestNewConfigRejectsInvalidURL(t *testing.T) {
	cases := []string{"", "not-a-url", "ftp://accounts.example.com", "/relative/path"}
	for _, c := range cases {
		_, err := NewConfig(c, "client123", "https://app.example.com/callback")
		assert.Error(t, err, "expected error for content url %q", c)
	}
}

func TestConfigDerivedEndpoints(t *testing.T) {
	cfg, err := NewConfig("https://accounts.example.com", "client123", "https://app.example.com/callback")
	require.NoError(t, err)

	assert.Equal(t, "https://accounts.example.com/authorization", cfg.AuthorizationURL())
	assert.Equal(t, "https://accounts.example.com/pair/supp", cfg.PairingSupplicantURL())
	assert.Equal(t, "https://accounts.example.com/oauth/token", cfg.TokenURL())
	assert.Equal(t, "https://accounts.example.com/oauth/destroy", cfg.OAuthDestroyURL())
	assert.Equal(t, "https://accounts.example.com/profile", cfg.ProfileURL())
	assert.Equal(t, "https://accounts.example.com/1.0/sync/1.5", cfg.TokenServerURL())
	assert.Equal(t, "https://accounts.example.com/account/devices", cfg.DevicesURL())
	assert.Equal(t, "https://accounts.example.com/account/device", cfg.DeviceURL())
	assert.Equal(t, "https://accounts.example.com/account/devices/invoke_command", cfg.InvokeCommandURL())
	assert.Equal(t, "https://accounts.example.com/account/device/commands", cfg.CommandsURL())
	assert.Equal(t, "https://accounts.example.com/connect_another_device?showSuccessMessage=true", cfg.ConnectionSuccessURL())
	assert.Equal(t, "accounts.example.com", cfg.ContentHost())
}

func TestConfigManageURLsWithEntrypoint(t *testing.T) {
	cfg, err := NewConfig("https://accounts.example.com", "client123", "https://app.example.com/callback")
	require.NoError(t, err)

	assert.Equal(t, "https://accounts.example.com/settings", cfg.ManageAccountURL(""))
	assert.Equal(t, "https://accounts.example.com/settings?entrypoint=my_app", cfg.ManageAccountURL("my_app"))
	assert.Equal(t, "https://accounts.example.com/settings/clients", cfg.ManageDevicesURL(""))
	assert.Equal(t, "https://accounts.example.com/settings/clients?entrypoint=my_app", cfg.ManageDevicesURL("my_app"))
}
