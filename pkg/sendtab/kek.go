package sendtab

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// KEK is the key-encrypting key derived from the account's old-sync scoped
// key: the raw sync key bytes and the client-state bytes extracted from the
// key id, per §4.4.
type KEK struct {
	KSync []byte
	KXCS  []byte
}

// DeriveKEK splits the old-sync scoped key's `k` (base64url, no padding,
// the 64-byte sync key) and `kid` (formatted "<ts>-<base64url(k_xcs)>") into
// a KEK. kid is split on its first "-" only, so a client-state value that
// itself contains a hyphen is not mis-split.
func DeriveKEK(k, kid string) (*KEK, error) {
	kSync, err := base64.RawURLEncoding.DecodeString(k)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sync key: %w", err)
	}
	parts := strings.SplitN(kid, "-", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed scoped key kid %q: expected <ts>-<client-state>", kid)
	}
	kXCS, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode client-state from kid: %w", err)
	}
	return &KEK{KSync: kSync, KXCS: kXCS}, nil
}
