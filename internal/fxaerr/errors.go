// Package fxaerr provides a small typed-error system used across this
// module so callers can branch on error kind with errors.As instead of
// string matching, while still getting a useful wrapped Error() string.
package fxaerr

import (
	"errors"
	"fmt"
)

// Error kinds. One per failure mode named in the account state machine,
// token broker, command channel, and send-tab envelope.
const (
	ErrMultipleScopesRequested = "multiple_scopes_requested"
	ErrNoCachedToken           = "no_cached_token"
	ErrNoCachedKey             = "no_cached_key"
	ErrNoRefreshToken          = "no_refresh_token"
	ErrUnknownOAuthState       = "unknown_oauth_state"
	ErrOriginMismatch          = "origin_mismatch"
	ErrTokenWithoutKeys        = "token_without_keys"
	ErrUnrecoverableServer     = "unrecoverable_server_error"
	ErrRefreshTokenNotPresent  = "refresh_token_not_present"
	ErrUnknownCommand          = "unknown_command"
	ErrIllegalState            = "illegal_state"
	ErrTransport               = "transport"
	ErrSerialization           = "serialization"
	ErrCrypto                  = "crypto"
)

// Error is the concrete type returned by every constructor below. Cause may
// be nil when the failure originates in this module rather than wrapping a
// lower-level error.
type Error struct {
	Type    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an Error of the given type.
func New(errType, message string, cause error) *Error {
	return &Error{Type: errType, Message: message, Cause: cause}
}

func NewMultipleScopesRequestedError(message string, cause error) *Error {
	return New(ErrMultipleScopesRequested, message, cause)
}

func NewNoCachedTokenError(message string, cause error) *Error {
	return New(ErrNoCachedToken, message, cause)
}

func NewNoCachedKeyError(message string, cause error) *Error {
	return New(ErrNoCachedKey, message, cause)
}

func NewNoRefreshTokenError(message string, cause error) *Error {
	return New(ErrNoRefreshToken, message, cause)
}

func NewUnknownOAuthStateError(message string, cause error) *Error {
	return New(ErrUnknownOAuthState, message, cause)
}

func NewOriginMismatchError(message string, cause error) *Error {
	return New(ErrOriginMismatch, message, cause)
}

func NewTokenWithoutKeysError(message string, cause error) *Error {
	return New(ErrTokenWithoutKeys, message, cause)
}

func NewUnrecoverableServerError(message string, cause error) *Error {
	return New(ErrUnrecoverableServer, message, cause)
}

func NewRefreshTokenNotPresentError(message string, cause error) *Error {
	return New(ErrRefreshTokenNotPresent, message, cause)
}

func NewUnknownCommandError(message string, cause error) *Error {
	return New(ErrUnknownCommand, message, cause)
}

func NewIllegalStateError(message string, cause error) *Error {
	return New(ErrIllegalState, message, cause)
}

func NewTransportError(message string, cause error) *Error {
	return New(ErrTransport, message, cause)
}

func NewSerializationError(message string, cause error) *Error {
	return New(ErrSerialization, message, cause)
}

func NewCryptoError(message string, cause error) *Error {
	return New(ErrCrypto, message, cause)
}

func is(err error, errType string) bool {
	if err == nil {
		return false
	}
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Type == errType
}

func IsMultipleScopesRequested(err error) bool { return is(err, ErrMultipleScopesRequested) }
func IsNoCachedToken(err error) bool           { return is(err, ErrNoCachedToken) }
func IsNoCachedKey(err error) bool             { return is(err, ErrNoCachedKey) }
func IsNoRefreshToken(err error) bool          { return is(err, ErrNoRefreshToken) }
func IsUnknownOAuthState(err error) bool       { return is(err, ErrUnknownOAuthState) }
func IsOriginMismatch(err error) bool          { return is(err, ErrOriginMismatch) }
func IsTokenWithoutKeys(err error) bool        { return is(err, ErrTokenWithoutKeys) }
func IsUnrecoverableServer(err error) bool     { return is(err, ErrUnrecoverableServer) }
func IsRefreshTokenNotPresent(err error) bool  { return is(err, ErrRefreshTokenNotPresent) }
func IsUnknownCommand(err error) bool          { return is(err, ErrUnknownCommand) }
func IsIllegalState(err error) bool            { return is(err, ErrIllegalState) }
func IsTransport(err error) bool               { return is(err, ErrTransport) }
func IsSerialization(err error) bool           { return is(err, ErrSerialization) }
func IsCrypto(err error) bool                  { return is(err, ErrCrypto) }
