// Package domain defines the identifier value types shared across the engine.
//
// Addresses are 20-byte hex identifiers in the contract convention
// (0x-prefixed, case-insensitive). They are plain value types so stores and
// services can use them as map keys without extra plumbing.
package domain

import (
	"encoding/hex"
	"strings"
)

// AddressLength is the byte length of a decoded account address.
const AddressLength = 20

// Address identifies an account. The canonical form is lowercase
// 0x-prefixed hex.
type Address string

// ZeroAddress is the empty account identifier.
const ZeroAddress Address = ""

// ParseAddress validates and canonicalizes an address string.
func ParseAddress(s string) (Address, bool) {
	raw := strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(raw) != AddressLength*2 {
		return ZeroAddress, false
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return ZeroAddress, false
	}
	return Address("0x" + raw), true
}

// AddressFromBytes builds an address from a decoded 20-byte value.
// Inputs longer than 20 bytes keep the trailing 20 bytes, matching the
// contract convention for hash-derived addresses.
func AddressFromBytes(b []byte) Address {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	return Address("0x" + hex.EncodeToString(b))
}

// String returns the canonical form.
func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Bytes decodes the address into its 20-byte form. Returns nil for
// malformed values; callers that ParseAddress first never see nil.
func (a Address) Bytes() []byte {
	raw := strings.TrimPrefix(string(a), "0x")
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil
	}
	return b
}

// DeviceID is the opaque device identifier supplied by the collaborating
// application layer. The engine treats it as a binding key, never as a
// trusted device attestation.
type DeviceID string

// IsZero reports whether the device identifier is unset.
func (d DeviceID) IsZero() bool {
	return d == ""
}

// PositionID addresses a staking position within an account's position
// list. Positions are append-only, so indexes are stable for the life of
// the account.
type PositionID int
