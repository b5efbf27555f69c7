package fxa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePushPayloadAcceptsCommandReceived(t *testing.T) {
	raw := []byte(`{"version":1,"command":"fxaccounts:command_received","data":{"index":3}}`)
	payload, err := decodePushPayload(raw)
	require.NoError(t, err)
	assert.True(t, payload.IsCommandReceived())
}

func TestDecodePushPayloadRejectsUnknownCommand(t *testing.T) {
	raw := []byte(`{"version":1,"command":"fxaccounts:device_disconnected","data":{}}`)
	_, err := decodePushPayload(raw)
	require.Error(t, err)
}

func TestDecodePushPayloadRejectsInvalidJSON(t *testing.T) {
	_, err := decodePushPayload([]byte("not json"))
	require.Error(t, err)
}
