// Package testutil provides common test utilities for handler and
// integration tests.
package testutil

import (
	"net/http"
	"time"

	id "aurum/pkg/domain"
	"aurum/pkg/requestcontext"
)

// WithAccount adds an authenticated account to the request context.
// This simulates what the auth middleware would do for authenticated
// requests.
func WithAccount(req *http.Request, account id.Address) *http.Request {
	return req.WithContext(requestcontext.WithAccount(req.Context(), account))
}

// WithDevice adds a device identifier to the request context.
func WithDevice(req *http.Request, device id.DeviceID) *http.Request {
	return req.WithContext(requestcontext.WithDeviceID(req.Context(), device))
}

// WithTime pins the request-scoped clock.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
