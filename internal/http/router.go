// Package httpapi assembles the HTTP surface: middleware chain, domain
// handlers, and operational endpoints. It delegates to domain services
// without embedding business logic so transport concerns remain isolated.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	expiryHandler "aurum/internal/expiry/handler"
	ledgerHandler "aurum/internal/ledger/handler"
	mintingHandler "aurum/internal/minting/handler"
	paramsHandler "aurum/internal/params/handler"
	"aurum/internal/platform/middleware"
	stakingHandler "aurum/internal/staking/handler"
	"aurum/pkg/platform/httputil"
)

// Deps collects everything the router mounts.
type Deps struct {
	Logger       *slog.Logger
	JWTValidator middleware.JWTValidator
	Minting      mintingHandler.Service
	Staking      stakingHandler.Service
	Expiry       expiryHandler.Service
	Ledger       ledgerHandler.Service
	Params       paramsHandler.Service
}

// NewRouter wires all endpoints. Sweeps and views are open; everything
// that acts as an account requires a bearer token. Admin authorization is
// enforced in the services against the authenticated caller.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Device)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	ledger := ledgerHandler.New(deps.Ledger, deps.Logger)
	minting := mintingHandler.New(deps.Minting, deps.Logger)
	staking := stakingHandler.New(deps.Staking, deps.Logger)
	expiry := expiryHandler.New(deps.Expiry, deps.Logger)
	params := paramsHandler.New(deps.Params, deps.Logger)

	// Views and sweeps carry no caller identity.
	ledger.Register(r)
	expiry.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.JWTValidator, deps.Logger))
		minting.Register(r)
		staking.Register(r)
		ledger.RegisterAuthed(r)

		minting.RegisterAdmin(r)
		ledger.RegisterAdmin(r)
		params.RegisterAdmin(r)
	})

	return r
}
