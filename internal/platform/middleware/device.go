package middleware

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	id "aurum/pkg/domain"
	"aurum/pkg/requestcontext"
)

// DeviceIDHeader carries the opaque device identifier chosen by the
// collaborating application layer.
const DeviceIDHeader = "X-Device-ID"

// Device captures the device identifier and a human-readable device name
// for audit events. The identifier is a binding key for mint replay
// prevention, never a trusted attestation.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if deviceID := r.Header.Get(DeviceIDHeader); deviceID != "" {
			ctx = requestcontext.WithDeviceID(ctx, id.DeviceID(deviceID))
		}
		ctx = requestcontext.WithDeviceName(ctx, ParseUserAgent(r.UserAgent()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ParseUserAgent renders a user-agent string as "Browser on OS" for audit
// display.
func ParseUserAgent(uaString string) string {
	if uaString == "" {
		return "Unknown Device"
	}

	ua := useragent.New(uaString)
	name, _ := ua.Browser()
	if name == "" {
		name = "Unknown Browser"
	}
	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(name + " on " + os)
}
