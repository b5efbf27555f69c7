package fxa

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/mozilla/fxa-client-go/internal/fxaerr"
	"github.com/mozilla/fxa-client-go/internal/logging"
	"github.com/mozilla/fxa-client-go/pkg/sendtab"
)

const (
	scopeOldSync    = "https://identity.mozilla.com/apps/oldsync"
	commandSendTab  = "https://identity.mozilla.com/cmd/open-uri"
	sendTabDataKey  = "send-tab"
	deviceCommandID = "https://identity.mozilla.com/cmd/open-uri/v1"
)

// GetDevices lists the devices attached to the account.
func (a *Account) GetDevices(ctx context.Context) ([]Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.RefreshToken == nil {
		return nil, fxaerr.NewNoRefreshTokenError("no refresh token on file", nil)
	}
	client := newHTTPClient(a.state.Config)
	return client.listDevices(ctx, a.state.RefreshToken.Token)
}

// RegisterCommand advertises a single command/value pair under the
// account's device record. The server replaces the entire command set on
// every write, so calling this repeatedly with different names loses
// earlier registrations — a known limitation (§4.3/§9).
func (a *Account) RegisterCommand(ctx context.Context, name, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.RefreshToken == nil {
		return fxaerr.NewNoRefreshTokenError("no refresh token on file", nil)
	}
	client := newHTTPClient(a.state.Config)
	return client.updateDevice(ctx, a.state.RefreshToken.Token, deviceUpdateRequest{
		AvailableCommands: map[string]string{name: value},
	})
}

// UnregisterCommand clears every advertised command, since the server has
// no endpoint to remove a single one.
func (a *Account) UnregisterCommand(ctx context.Context, _ string) error {
	return a.ClearCommands(ctx)
}

// ClearCommands clears all advertised commands from the device record.
func (a *Account) ClearCommands(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.RefreshToken == nil {
		return fxaerr.NewNoRefreshTokenError("no refresh token on file", nil)
	}
	client := newHTTPClient(a.state.Config)
	return client.updateDevice(ctx, a.state.RefreshToken.Token, deviceUpdateRequest{
		AvailableCommands: map[string]string{},
	})
}

// EnsureSendTabRegistered generates (or reuses) a local send-tab keypair,
// stores the serialized private keys under commands_data, and advertises
// the KEK-wrapped public bundle as the send-tab command.
func (a *Account) EnsureSendTabRegistered(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.RefreshToken == nil {
		return fxaerr.NewNoRefreshTokenError("no refresh token on file", nil)
	}

	var priv *sendtab.PrivateKeys
	if blob, ok := a.state.CommandsData[sendTabDataKey]; ok {
		decoded, err := decodeStoredKeyBlob(blob)
		if err != nil {
			return err
		}
		priv = decoded
	} else {
		generated, err := sendtab.GeneratePrivateKeys()
		if err != nil {
			return fxaerr.NewCryptoError("failed to generate send-tab keys", err)
		}
		priv = generated
		a.state.CommandsData[sendTabDataKey] = encodeKeyBlob(priv.Serialize())
	}

	kek, err := a.oldSyncKEKLocked()
	if err != nil {
		return err
	}

	wrapped, err := sendtab.WrapPublicKeys(kek, priv.Public())
	if err != nil {
		return fxaerr.NewCryptoError("failed to wrap send-tab public keys", err)
	}

	client := newHTTPClient(a.state.Config)
	if err := client.updateDevice(ctx, a.state.RefreshToken.Token, deviceUpdateRequest{
		AvailableCommands: map[string]string{commandSendTab: wrapped},
	}); err != nil {
		return err
	}

	a.maybeCallPersistCallback()
	return nil
}

// SendTab encrypts a tab to target's advertised send-tab public keys and
// invokes the command on the server.
func (a *Account) SendTab(ctx context.Context, target Device, title, url string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.RefreshToken == nil {
		return fxaerr.NewNoRefreshTokenError("no refresh token on file", nil)
	}

	wrapped, ok := target.AvailableCommands[commandSendTab]
	if !ok {
		return fxaerr.NewIllegalStateError(fmt.Sprintf("device %q has not registered send-tab", target.ID), nil)
	}

	kek, err := a.oldSyncKEKLocked()
	if err != nil {
		return err
	}

	payload := sendtab.Payload{Entries: []sendtab.Entry{{Title: title, URL: url}}}
	commandPayload, err := sendtab.BuildSendCommand(kek, wrapped, payload)
	if err != nil {
		return fxaerr.NewCryptoError("failed to build send-tab command", err)
	}

	client := newHTTPClient(a.state.Config)
	return client.invokeCommand(ctx, a.state.RefreshToken.Token, commandSendTab, target.ID, commandPayload)
}

// oldSyncKEKLocked derives the KEK from the account's old-sync scoped key.
// Caller holds a.mu.
func (a *Account) oldSyncKEKLocked() (*sendtab.KEK, error) {
	key, ok := a.state.ScopedKeys[scopeOldSync]
	if !ok {
		return nil, fxaerr.NewNoCachedKeyError("no old-sync scoped key on file", nil)
	}
	return sendtab.DeriveKEK(key.K, key.Kid)
}

// PollRemoteCommands fetches commands after the last handled index,
// advancing the high-water mark to the server's authoritative value.
// Individual messages that fail to decode or dispatch are logged and
// skipped rather than aborting the whole poll.
func (a *Account) PollRemoteCommands(ctx context.Context) ([]AccountEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.RefreshToken == nil {
		return nil, fxaerr.NewNoRefreshTokenError("no refresh token on file", nil)
	}

	base := uint64(0)
	if a.state.LastHandledCommand != nil {
		base = *a.state.LastHandledCommand + 1
	}

	client := newHTTPClient(a.state.Config)
	resp, err := client.pendingCommands(ctx, a.state.RefreshToken.Token, base, nil)
	if err != nil {
		return nil, err
	}

	if len(resp.Messages) == 0 {
		return nil, nil
	}

	devices, err := client.listDevices(ctx, a.state.RefreshToken.Token)
	if err != nil {
		return nil, err
	}

	priv, err := a.sendTabPrivateKeysLocked()
	if err != nil {
		return nil, err
	}

	var events []AccountEvent
	for _, msg := range resp.Messages {
		sender, tab, err := a.handleCommandLocked(msg.Data, devices, priv)
		if err != nil {
			logging.Warnw("skipping undecodable remote command", "index", msg.Index, "error", err)
			continue
		}
		events = append(events, AccountEvent{Kind: TabReceivedEvent, Sender: sender, Tab: tab})
	}

	index := resp.Index
	a.state.LastHandledCommand = &index
	a.maybeCallPersistCallback()
	return events, nil
}

// HandlePushMessage decodes an inbound push message and, if it signals a
// pending command, polls for it.
func (a *Account) HandlePushMessage(ctx context.Context, raw []byte) ([]AccountEvent, error) {
	payload, err := decodePushPayload(raw)
	if err != nil {
		return nil, err
	}
	if !payload.IsCommandReceived() {
		return nil, nil
	}
	return a.PollRemoteCommands(ctx)
}

// handleCommandLocked resolves the sender of a single pending command and
// decrypts its send-tab payload. Caller holds a.mu.
func (a *Account) handleCommandLocked(data CommandData, devices []Device, priv *sendtab.PrivateKeys) (*Device, sendtab.Payload, error) {
	if data.Command != commandSendTab {
		return nil, sendtab.Payload{}, fxaerr.NewUnknownCommandError(fmt.Sprintf("unrecognized command %q", data.Command), nil)
	}

	var sender *Device
	for i := range devices {
		if devices[i].ID == data.Sender {
			sender = &devices[i]
			break
		}
	}

	tab, err := sendtab.DecryptCommand(priv, data.Payload)
	if err != nil {
		return nil, sendtab.Payload{}, fxaerr.NewCryptoError("failed to decrypt send-tab command", err)
	}
	return sender, tab, nil
}

// sendTabPrivateKeysLocked loads this device's local send-tab keypair.
// Caller holds a.mu.
func (a *Account) sendTabPrivateKeysLocked() (*sendtab.PrivateKeys, error) {
	blob, ok := a.state.CommandsData[sendTabDataKey]
	if !ok {
		return nil, fxaerr.NewIllegalStateError("send-tab is not registered on this device", nil)
	}
	return decodeStoredKeyBlob(blob)
}

// encodeKeyBlob/decodeStoredKeyBlob round-trip a serialized send-tab key
// blob through the string-valued commands_data map, which the account
// state wire format stores as plain JSON strings.
func encodeKeyBlob(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

func decodeStoredKeyBlob(encoded string) (*sendtab.PrivateKeys, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fxaerr.NewSerializationError("failed to decode stored send-tab key blob", err)
	}
	return sendtab.DeserializeKey(raw)
}
