package fxa

import (
	"encoding/json"
	"fmt"

	"github.com/mozilla/fxa-client-go/internal/fxaerr"
	"github.com/mozilla/fxa-client-go/pkg/sendtab"
)

// AccountEventKind discriminates the tagged AccountEvent sum type.
type AccountEventKind string

// TabReceivedEvent is the only AccountEventKind this module emits today; the
// discriminator exists so additional event kinds can be added without
// breaking callers that switch on Kind.
const TabReceivedEvent AccountEventKind = "tab_received"

// AccountEvent is emitted from poll_remote_commands / handle_push_message.
type AccountEvent struct {
	Kind   AccountEventKind
	Sender *Device
	Tab    sendtab.Payload
}

// PushPayload is the inbound push-message envelope from the embedder. Only
// command == "fxaccounts:command_received" is recognized; any other value
// is rejected by decoding, not dispatch.
type PushPayload struct {
	Version int             `json:"version"`
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data"`
}

const commandReceivedPush = "fxaccounts:command_received"

// IsCommandReceived reports whether this push payload should trigger a
// command poll.
func (p PushPayload) IsCommandReceived() bool {
	return p.Command == commandReceivedPush
}

// decodePushPayload parses a raw push message, rejecting unrecognized
// command kinds at decode time rather than at dispatch time.
func decodePushPayload(raw []byte) (PushPayload, error) {
	var p PushPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return PushPayload{}, fxaerr.NewSerializationError("failed to parse push payload", err)
	}
	if !p.IsCommandReceived() {
		return PushPayload{}, fxaerr.NewUnknownCommandError(fmt.Sprintf("unrecognized push command %q", p.Command), nil)
	}
	return p, nil
}
