package fxa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozilla/fxa-client-go/internal/fxaerr"
	"github.com/mozilla/fxa-client-go/pkg/sendtab"
)

func testOldSyncKey(t *testing.T) ScopedKey {
	t.Helper()
	return ScopedKey{
		Kty:   "oct",
		Scope: scopeOldSync,
		K:     "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		Kid:   "1234567890-Y2xpZW50c3RhdGU",
	}
}

func TestRegisterCommandWithoutRefreshTokenFails(t *testing.T) {
	account := NewAccount(testConfig(t))
	err := account.RegisterCommand(context.Background(), "cmd", "value")
	require.Error(t, err)
	assert.True(t, fxaerr.IsNoRefreshToken(err))
}

func TestEnsureSendTabRegisteredGeneratesAndAdvertisesKeys(t *testing.T) {
	var advertised map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body deviceUpdateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		advertised = body.AvailableCommands
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct{}{})
	}))
	defer server.Close()

	account := NewAccount(testServerConfig(t, server))
	account.state.RefreshToken = &RefreshToken{Token: "rt", Scopes: []string{scopeOldSync}}
	account.state.ScopedKeys[scopeOldSync] = testOldSyncKey(t)

	err := account.EnsureSendTabRegistered(context.Background())
	require.NoError(t, err)

	require.Contains(t, advertised, commandSendTab)
	assert.Contains(t, account.state.CommandsData, sendTabDataKey)
}

func TestEnsureSendTabRegisteredReusesExistingKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct{}{})
	}))
	defer server.Close()

	account := NewAccount(testServerConfig(t, server))
	account.state.RefreshToken = &RefreshToken{Token: "rt", Scopes: []string{scopeOldSync}}
	account.state.ScopedKeys[scopeOldSync] = testOldSyncKey(t)

	require.NoError(t, account.EnsureSendTabRegistered(context.Background()))
	firstBlob := account.state.CommandsData[sendTabDataKey]

	require.NoError(t, account.EnsureSendTabRegistered(context.Background()))
	assert.Equal(t, firstBlob, account.state.CommandsData[sendTabDataKey])
}

func TestSendTabRejectsUnregisteredTarget(t *testing.T) {
	account := NewAccount(testConfig(t))
	account.state.RefreshToken = &RefreshToken{Token: "rt", Scopes: []string{scopeOldSync}}

	err := account.SendTab(context.Background(), Device{ID: "dev1"}, "title", "https://example.com")
	require.Error(t, err)
	assert.True(t, fxaerr.IsIllegalState(err))
}

func TestSendTabAndHandleCommandRoundTrip(t *testing.T) {
	var invoked json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/account/devices/invoke_command" {
			var body struct {
				Payload json.RawMessage `json:"payload"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			invoked = body.Payload
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct{}{})
	}))
	defer server.Close()

	cfg := testServerConfig(t, server)
	keyRecord := testOldSyncKey(t)
	kek, err := sendtab.DeriveKEK(keyRecord.K, keyRecord.Kid)
	require.NoError(t, err)

	sender := NewAccount(cfg)
	sender.state.RefreshToken = &RefreshToken{Token: "rt", Scopes: []string{scopeOldSync}}
	sender.state.ScopedKeys[scopeOldSync] = keyRecord

	receiver := NewAccount(cfg)
	receiver.state.RefreshToken = &RefreshToken{Token: "rt", Scopes: []string{scopeOldSync}}
	receiver.state.ScopedKeys[scopeOldSync] = keyRecord
	require.NoError(t, receiver.EnsureSendTabRegistered(context.Background()))

	// The fake server above doesn't echo device state back, so the
	// receiver's advertised send-tab command is re-derived directly from
	// its locally stored keys to stand in for a real device listing.
	receiverPriv, err := decodeStoredKeyBlob(receiver.state.CommandsData[sendTabDataKey])
	require.NoError(t, err)
	wrapped, err := sendtab.WrapPublicKeys(kek, receiverPriv.Public())
	require.NoError(t, err)

	receiverAsDevice := Device{ID: "receiver-device", AvailableCommands: map[string]string{commandSendTab: wrapped}}
	require.NoError(t, sender.SendTab(context.Background(), receiverAsDevice, "Example", "https://example.com"))

	require.NotNil(t, invoked)
	_, tab, err := receiver.handleCommandLocked(CommandData{Command: commandSendTab, Payload: invoked}, nil, receiverPriv)
	require.NoError(t, err)
	require.Len(t, tab.Entries, 1)
	assert.Equal(t, "Example", tab.Entries[0].Title)
	assert.Equal(t, "https://example.com", tab.Entries[0].URL)
}

func TestPollRemoteCommandsReturnsEmptyWithoutTouchingDevicesOrKeys(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/account/device/commands", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pendingCommandsResponse{Index: 41, Messages: nil})
	})
	mux.HandleFunc("/account/devices", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("listDevices should not be called when there are no pending messages")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	account := NewAccount(testServerConfig(t, server))
	account.state.RefreshToken = &RefreshToken{Token: "rt", Scopes: []string{scopeOldSync}}
	// No send-tab keys registered: if PollRemoteCommands reached past the
	// empty-messages guard it would fail looking them up.

	events, err := account.PollRemoteCommands(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
	// The high-water mark only advances when there was something to handle.
	assert.Nil(t, account.state.LastHandledCommand)
}

func TestPollRemoteCommandsAdvancesToAuthoritativeIndex(t *testing.T) {
	keyRecord := testOldSyncKey(t)
	kek, err := sendtab.DeriveKEK(keyRecord.K, keyRecord.Kid)
	require.NoError(t, err)

	priv, err := sendtab.GeneratePrivateKeys()
	require.NoError(t, err)
	wrapped, err := sendtab.WrapPublicKeys(kek, priv.Public())
	require.NoError(t, err)
	commandPayload, err := sendtab.BuildSendCommand(kek, wrapped, sendtab.Payload{Entries: []sendtab.Entry{{Title: "t", URL: "https://example.com"}}})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/account/device/commands", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pendingCommandsResponse{
			// The authoritative index jumps ahead of base+len(messages),
			// simulating server-side pruning of an older message.
			Index: 99,
			Messages: []pendingCommand{
				{Index: 50, Data: CommandData{Command: commandSendTab, Index: 50, Sender: "sender-device", Payload: commandPayload}},
			},
		})
	})
	mux.HandleFunc("/account/devices", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Device{{ID: "sender-device", Name: "Sender"}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	account := NewAccount(testServerConfig(t, server))
	account.state.RefreshToken = &RefreshToken{Token: "rt", Scopes: []string{scopeOldSync}}
	account.state.ScopedKeys[scopeOldSync] = keyRecord
	account.state.CommandsData[sendTabDataKey] = encodeKeyBlob(priv.Serialize())

	var persisted bool
	account.SetPersistCallback(func(string) { persisted = true })

	events, err := account.PollRemoteCommands(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, TabReceivedEvent, events[0].Kind)
	require.NotNil(t, account.state.LastHandledCommand)
	assert.Equal(t, uint64(99), *account.state.LastHandledCommand)
	assert.True(t, persisted)
}
