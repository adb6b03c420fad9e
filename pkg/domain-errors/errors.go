// Package domainerrors provides coded errors for the engine. Every
// precondition failure carries a specific code so callers can present an
// actionable message instead of a generic failure.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// Ambient codes shared by all components.
	CodeInternal           Code = "internal_error"
	CodeBadRequest         Code = "bad_request"
	CodeNotFound           Code = "not_found"
	CodeValidation         Code = "validation_failed"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeInvariantViolation Code = "invariant_violation"

	// Engine-specific codes. Each maps 1:1 onto a precondition in the
	// minting, staking, transfer, or sweep paths.
	CodeInvalidAddress           Code = "invalid_address"
	CodeBlacklisted              Code = "blacklisted"
	CodeAlreadyClaimed           Code = "already_claimed"
	CodeAlreadyClaimedThisPeriod Code = "already_claimed_this_period"
	CodeInvalidProof             Code = "invalid_proof"
	CodeInvalidSignature         Code = "invalid_signature"
	CodeCooldownNotOver          Code = "cooldown_not_over"
	CodeDeviceAlreadyUsed        Code = "device_already_used"
	CodeInsufficientBalance      Code = "insufficient_balance"
	CodeLockNotOver              Code = "lock_not_over"
	CodeNoRewards                Code = "no_rewards_available"
	CodeZeroAmount               Code = "zero_amount"
	CodeLockedTokenRestriction   Code = "locked_token_restriction"
)

// Error is a coded domain error. It wraps an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two domain errors by code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// New creates a domain error with a code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message. Returns nil when err is nil
// so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == code
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is re-exports errors.Is so call sites aliasing this package don't need a
// second errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
