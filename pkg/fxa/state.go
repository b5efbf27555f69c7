package fxa

import (
	"encoding/json"
	"fmt"

	"github.com/mozilla/fxa-client-go/internal/fxaerr"
)

// currentStateVersion is the version written by Serialize. A state written
// by an older version is migrated forward on read; a state claiming a newer
// version than this one is rejected.
const currentStateVersion = 2

// RefreshToken is the long-lived opaque credential used to mint access
// tokens. Exactly one is held per account instance.
type RefreshToken struct {
	Token  string   `json:"token"`
	Scopes []string `json:"scopes"`
}

// HasScope reports whether scope is among the scopes this token grants.
func (t *RefreshToken) HasScope(scope string) bool {
	if t == nil {
		return false
	}
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ScopedKey is a symmetric key delivered by the identity provider and
// scoped to a single OAuth scope.
type ScopedKey struct {
	Kty   string `json:"kty"`
	Scope string `json:"scope"`
	K     string `json:"k"`
	Kid   string `json:"kid"`
}

// state is the persisted, versioned account record. Every state-mutating
// facade operation reads and writes through this struct so that a single
// serialize call downstream of it always reflects a consistent snapshot.
type state struct {
	Config Config `json:"config"`
	RefreshToken *RefreshToken `json:"refresh_token,omitempty"`
	ScopedKeys map[string]ScopedKey `json:"scoped_keys"`
	LastHandledCommand *uint64 `json:"last_handled_command,omitempty"`
	CommandsData map[string]string `json:"commands_data"`
}

func newState(cfg Config) *state {
	return &state{
		Config:       cfg,
		ScopedKeys:   map[string]ScopedKey{},
		CommandsData: map[string]string{},
	}
}

// wireEnvelope is the self-describing versioned document written to disk.
// Only the version field is interpreted before the rest is decoded, so a
// reader can detect and reject documents from a newer, incompatible writer
// before attempting to parse fields it doesn't understand.
type wireEnvelope struct {
	Version int             `json:"version"`
	Body    json.RawMessage `json:"body"`
}

// serialize renders the state to its versioned wire form.
func serialize(s *state) (string, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return "", fxaerr.NewSerializationError("failed to marshal account state", err)
	}
	envelope := wireEnvelope{Version: currentStateVersion, Body: body}
	out, err := json.Marshal(envelope)
	if err != nil {
		return "", fxaerr.NewSerializationError("failed to marshal state envelope", err)
	}
	return string(out), nil
}

// deserialize parses a wire-form document, migrating older versions
// forward. Unknown fields in Body are tolerated (Go's json.Unmarshal
// ignores fields absent from the target struct); missing optional maps are
// defaulted to empty so an older document still produces a usable state.
func deserialize(data string) (*state, error) {
	var envelope wireEnvelope
	if err := json.Unmarshal([]byte(data), &envelope); err != nil {
		return nil, fxaerr.NewSerializationError("failed to parse state envelope", err)
	}
	if envelope.Version > currentStateVersion {
		return nil, fxaerr.NewSerializationError(
			fmt.Sprintf("state version %d is newer than supported version %d", envelope.Version, currentStateVersion), nil)
	}

	var s state
	if err := json.Unmarshal(envelope.Body, &s); err != nil {
		return nil, fxaerr.NewSerializationError("failed to parse account state", err)
	}
	if s.ScopedKeys == nil {
		s.ScopedKeys = map[string]ScopedKey{}
	}
	if s.CommandsData == nil {
		s.CommandsData = map[string]string{}
	}
	return &s, nil
}
