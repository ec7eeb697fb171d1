// Package secret wraps values that must never reach a log line, audit
// event, or error message in the clear: vault-backed process environment
// entries, values read from a FS_READ-gated file, or arguments a block
// marshals toward a foreign executor. A Handle is tainted until the holder
// explicitly asks for the raw value through a capability-gated accessor;
// every other path (String, GoString, MarshalJSON) yields a redacted
// placeholder.
package secret

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/naab-lang/naab/core/capability"
	"github.com/naab-lang/naab/core/invariant"
	"github.com/naab-lang/naab/core/limits"
)

const redactionMask = "***"

// Handle wraps a secret value behind taint tracking. The zero value is not
// usable; construct with New.
type Handle struct {
	raw       *limits.SecureString
	displayID string
}

// New creates a Handle for value, deriving a random-looking display ID from
// a fresh per-handle key (two Handles wrapping the same value never share
// an ID, preventing correlation across blocks/runs).
func New(value string) *Handle {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		panic(fmt.Sprintf("secret: failed to generate display key: %v", err))
	}
	h := &Handle{
		raw:       limits.NewSecureString([]byte(value)),
		displayID: displayID(key[:], []byte(value)),
	}
	DefaultRegistry.register(h)
	return h
}

// displayID computes naab:s:<base58> from a keyed BLAKE2b-256 digest over
// key and value, taking the first 8 bytes of the digest for a compact,
// collision-resistant-enough identifier.
func displayID(key, value []byte) string {
	h, err := blake2b.New256(key)
	if err != nil {
		panic(fmt.Sprintf("secret: failed to create blake2b hash: %v", err))
	}
	h.Write(value)
	digest := h.Sum(nil)
	return fmt.Sprintf("naab:s:%s", encodeBase58(digest[:8]))
}

// String never exposes the value: it is the safe placeholder used by %v,
// %s, fmt.Stringer, logging, and text templates.
func (h *Handle) String() string { return h.displayID }

// ID returns the opaque display identifier.
func (h *Handle) ID() string { return h.displayID }

// Mask returns the value with n characters visible at each end, or the bare
// redaction mask if the value is too short to mask safely.
func (h *Handle) Mask(n int) string {
	invariant.Precondition(n >= 0, "mask count must be non-negative")
	v := h.raw.Bytes()
	if len(v) <= n*2 {
		return redactionMask
	}
	return string(v[:n]) + redactionMask + string(v[len(v)-n:])
}

// Len reports the value's length without exposing it.
func (h *Handle) Len() int { return h.raw.Len() }

// Equal compares two secrets in constant time without exposing either
// value.
func (h *Handle) Equal(other *Handle) bool {
	invariant.NotNil(other, "other")
	a, b := h.raw.Bytes(), other.raw.Bytes()
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Fingerprint returns a keyed hex digest for scrubber-style matching. key
// must be at least 32 bytes (a per-run scrubber key); this is for internal
// detection only, never for display.
func (h *Handle) Fingerprint(key []byte) string {
	invariant.Precondition(len(key) >= 32, "fingerprint key must be at least 32 bytes")
	hash, err := blake2b.New256(key)
	if err != nil {
		panic(fmt.Sprintf("secret: failed to create blake2b hash: %v", err))
	}
	hash.Write(h.raw.Bytes())
	return hex.EncodeToString(hash.Sum(nil))
}

// Unwrap returns the raw value, requiring guard to hold BLOCK_CALL — the
// capability an executor already needs to invoke a foreign block — so a
// Handle can only be unwrapped from the same call path that is permitted to
// hand arguments to foreign code in the first place.
func (h *Handle) Unwrap(guard *capability.Guard, operation string) (string, error) {
	if err := guard.Require(capability.BlockCall, operation, h.displayID); err != nil {
		return "", err
	}
	return string(h.raw.Bytes()), nil
}

// Wipe zeroes the underlying buffer. Safe to call repeatedly; after Wipe,
// Unwrap returns an empty string.
func (h *Handle) Wipe() {
	h.raw.Wipe()
	h.raw = limits.NewSecureString(nil)
}

// GoString implements fmt.GoStringer, returning the placeholder instead of
// the raw value for %#v formatting.
func (h *Handle) GoString() string { return fmt.Sprintf("secret.Handle{%s}", h.displayID) }

// MarshalJSON implements json.Marshaler, returning the placeholder instead
// of the raw value.
func (h *Handle) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", h.displayID)), nil
}
