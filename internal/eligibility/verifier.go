// Package eligibility verifies the two mint eligibility paths: merkle
// inclusion against the off-chain whitelist root (first-time) and detached
// signature recovery against the authorized signer sets (recurring). Both
// checks fail closed: malformed input is a verification failure, never a
// panic or an error on the production path.
package eligibility

import (
	"bytes"
	"context"
	"log/slog"

	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"aurum/internal/params"
	id "aurum/pkg/domain"
)

// Verifier checks mint eligibility proofs against the current params
// snapshot.
type Verifier struct {
	params *params.Service
	logger *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) { v.logger = logger }
}

// NewVerifier constructs a Verifier.
func NewVerifier(paramsSvc *params.Service, opts ...Option) *Verifier {
	v := &Verifier{params: paramsSvc, logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyFirstTimeProof recomputes the account's leaf and folds the proof
// path against the eligibility root. Read-only; returns false for any
// malformed input.
func (v *Verifier) VerifyFirstTimeProof(ctx context.Context, addr id.Address, proof [][]byte) bool {
	root := v.params.Current().EligibilityRoot
	if len(root) != HashSize || addr.IsZero() {
		return false
	}

	node := LeafHash(addr)
	for _, sibling := range proof {
		if len(sibling) != HashSize {
			return false
		}
		node = combine(node, sibling)
	}
	return bytes.Equal(node, root)
}

// VerifyRecurringSignature recovers the signer of the recurring-mint
// message and accepts it when the recovered address is an authorized
// signer, an authorized minter, or the administrator. A signature whose
// signer cannot be recovered is rejected.
func (v *Verifier) VerifyRecurringSignature(ctx context.Context, addr id.Address, device id.DeviceID, timestamp int64, signature []byte) bool {
	if addr.IsZero() || device.IsZero() {
		return false
	}

	msg := MessageHash(addr, device, timestamp)
	pub, _, err := secpecdsa.RecoverCompact(signature, msg)
	if err != nil {
		v.logger.DebugContext(ctx, "signature recovery failed",
			"account", addr,
			"error", err,
		)
		return false
	}

	signer := AddressFromPubKeyBytes(pub.SerializeUncompressed())
	snap := v.params.Current()
	return snap.IsSigner(signer) || snap.IsMinter(signer) || snap.IsAdmin(signer)
}

// AddressFromPubKeyBytes derives the account address from an uncompressed
// secp256k1 public key: the trailing 20 bytes of the keccak of the key
// body, in the contract convention.
func AddressFromPubKeyBytes(uncompressed []byte) id.Address {
	if len(uncompressed) != 65 {
		return id.ZeroAddress
	}
	return id.AddressFromBytes(keccak(uncompressed[1:]))
}
