// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets the values; services only read them. Keeping this package
// free of net/http lets the engine services stay transport-agnostic.
//
// Usage in services (read values):
//
//	account := requestcontext.Account(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithAccount(ctx, addr)
package requestcontext

import (
	"context"
	"time"

	id "aurum/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	accountKey     struct{}
	deviceIDKey    struct{}
	deviceNameKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyAccount     = accountKey{}
	ContextKeyDeviceID    = deviceIDKey{}
	ContextKeyDeviceName  = deviceNameKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Account retrieves the authenticated account address from the context.
// Returns the zero address if not set.
func Account(ctx context.Context) id.Address {
	if addr, ok := ctx.Value(ContextKeyAccount).(id.Address); ok {
		return addr
	}
	return id.ZeroAddress
}

// WithAccount injects an authenticated account address into the context.
func WithAccount(ctx context.Context, addr id.Address) context.Context {
	return context.WithValue(ctx, ContextKeyAccount, addr)
}

// DeviceID retrieves the device identifier from the context.
func DeviceID(ctx context.Context) id.DeviceID {
	if device, ok := ctx.Value(ContextKeyDeviceID).(id.DeviceID); ok {
		return device
	}
	return ""
}

// WithDeviceID injects a device identifier into a context.
// Useful for service unit tests that don't run the HTTP middleware chain.
func WithDeviceID(ctx context.Context, device id.DeviceID) context.Context {
	return context.WithValue(ctx, ContextKeyDeviceID, device)
}

// DeviceName retrieves the human-readable device display name parsed from
// the User-Agent. Audit-only; never part of a binding key.
func DeviceName(ctx context.Context) string {
	if name, ok := ctx.Value(ContextKeyDeviceName).(string); ok {
		return name
	}
	return ""
}

// WithDeviceName injects a device display name into a context.
func WithDeviceName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ContextKeyDeviceName, name)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, CLI, tests without a clock).
// All engine preconditions (cooldowns, locks, expiries) read time through
// this accessor so a single request observes one consistent instant.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
