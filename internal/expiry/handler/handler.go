// Package handler exposes expiry sweeps over HTTP. Sweeps are
// unprivileged: they only enforce expiry that already happened.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"aurum/internal/expiry/service"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/platform/httputil"
	"aurum/pkg/requestcontext"
)

// Service defines the interface for sweep operations.
type Service interface {
	SweepAccount(ctx context.Context, addr id.Address, maxIterations int) (*service.SweepResult, error)
	SweepBatch(ctx context.Context, addrs []id.Address, maxPerAccount int) ([]service.SweepResult, error)
}

// Handler handles sweep endpoints.
type Handler struct {
	logger *slog.Logger
	expiry Service
}

// New creates a sweep Handler.
func New(expiry Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, expiry: expiry}
}

// Register registers the sweep routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sweep/{address}", h.handleSweepAccount)
	r.Post("/sweep/batch", h.handleSweepBatch)
}

// SweepBatchRequest names the accounts to sweep and the per-account
// bucket bound.
type SweepBatchRequest struct {
	Addresses     []string `json:"addresses"`
	MaxPerAccount int      `json:"max_per_account"`
}

// Validate checks address encoding.
func (r SweepBatchRequest) Validate() error {
	if len(r.Addresses) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one address is required")
	}
	for _, raw := range r.Addresses {
		if _, ok := id.ParseAddress(raw); !ok {
			return dErrors.Newf(dErrors.CodeInvalidAddress, "malformed address %q", raw)
		}
	}
	return nil
}

func (h *Handler) handleSweepAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	addr, ok := id.ParseAddress(chi.URLParam(r, "address"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAddress, "malformed account address"))
		return
	}
	maxIterations := 0
	if raw := r.URL.Query().Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "max must be a positive integer"))
			return
		}
		maxIterations = n
	}

	result, err := h.expiry.SweepAccount(ctx, addr, maxIterations)
	if err != nil {
		h.logger.ErrorContext(ctx, "sweep failed",
			"request_id", requestcontext.RequestID(ctx),
			"account", addr,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSweepBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SweepBatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	addrs := make([]id.Address, 0, len(req.Addresses))
	for _, raw := range req.Addresses {
		addr, _ := id.ParseAddress(raw)
		addrs = append(addrs, addr)
	}

	results, err := h.expiry.SweepBatch(ctx, addrs, req.MaxPerAccount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}
