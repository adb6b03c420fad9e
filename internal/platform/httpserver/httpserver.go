// Package httpserver builds the engine's HTTP server from configuration.
package httpserver

import (
	"net/http"
	"time"

	"aurum/internal/platform/config"
)

// New builds an HTTP server with the configured timeouts. Zero-valued
// timeouts fall back to defaults suited to the engine's short, small
// request bodies.
func New(cfg config.Server, handler http.Handler) *http.Server {
	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 10 * time.Second
	}
	idleTimeout := cfg.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = time.Minute
	}

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
