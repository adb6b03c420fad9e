// Package handler exposes balances, transfers, and supply views over
// HTTP. Transfers always debit the authenticated caller.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aurum/internal/ledger/models"
	"aurum/internal/ledger/service"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/platform/httputil"
	"aurum/pkg/requestcontext"
)

// Service defines the interface for ledger operations.
type Service interface {
	Transfer(ctx context.Context, from, to id.Address, amount uint64) (*service.TransferResult, error)
	BalanceOf(ctx context.Context, addr id.Address) (uint64, error)
	MintRecordOf(ctx context.Context, addr id.Address) (*models.MintRecord, error)
	TotalSupplyStats(ctx context.Context) (*models.Stats, error)
	SetAccountFlags(ctx context.Context, addr id.Address, blacklisted, investor *bool) error
}

// Handler handles ledger endpoints.
type Handler struct {
	logger *slog.Logger
	ledger Service
}

// New creates a ledger Handler.
func New(ledger Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, ledger: ledger}
}

// Register registers the unauthenticated view routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/accounts/{address}/balance", h.handleBalance)
	r.Get("/accounts/{address}/mint-record", h.handleMintRecord)
	r.Get("/supply", h.handleSupply)
}

// RegisterAuthed registers routes that act as the authenticated caller.
func (h *Handler) RegisterAuthed(r chi.Router) {
	r.Post("/transfer", h.handleTransfer)
}

// RegisterAdmin registers administrator-only ledger routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/admin/accounts/{address}/flags", h.handleSetFlags)
}

// TransferRequest moves amount from the authenticated caller to the
// recipient.
type TransferRequest struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// Validate checks the recipient encoding.
func (r TransferRequest) Validate() error {
	if _, ok := id.ParseAddress(r.To); !ok {
		return dErrors.New(dErrors.CodeInvalidAddress, "malformed recipient address")
	}
	return nil
}

// FlagsRequest updates administrative account flags. Absent fields leave
// the flag unchanged.
type FlagsRequest struct {
	Blacklisted *bool `json:"blacklisted,omitempty"`
	Investor    *bool `json:"investor,omitempty"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	to, _ := id.ParseAddress(req.To)

	result, err := h.ledger.Transfer(ctx, requestcontext.Account(ctx), to, req.Amount)
	if err != nil {
		h.logger.WarnContext(ctx, "transfer rejected",
			"request_id", requestID,
			"to", to,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addr, ok := h.pathAddress(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.BalanceOf(ctx, addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"address": addr, "balance": balance})
}

func (h *Handler) handleMintRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addr, ok := h.pathAddress(w, r)
	if !ok {
		return
	}

	rec, err := h.ledger.MintRecordOf(ctx, addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleSupply(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledger.TotalSupplyStats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleSetFlags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	addr, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[FlagsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.ledger.SetAccountFlags(ctx, addr, req.Blacklisted, req.Investor); err != nil {
		h.logger.WarnContext(ctx, "flag update rejected",
			"request_id", requestID,
			"address", addr,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathAddress(w http.ResponseWriter, r *http.Request) (id.Address, bool) {
	addr, ok := id.ParseAddress(chi.URLParam(r, "address"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAddress, "malformed account address"))
		return id.ZeroAddress, false
	}
	return addr, true
}
