// Package handler exposes the minting controller over HTTP. The caller's
// account comes from the bearer token; the device identifier comes from
// the X-Device-ID header.
package handler

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"aurum/internal/minting/service"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/platform/httputil"
	"aurum/pkg/requestcontext"
)

// Service defines the interface for minting operations.
type Service interface {
	MintFirstTime(ctx context.Context, addr id.Address, proof [][]byte, device id.DeviceID) (*service.MintResult, error)
	MintRecurring(ctx context.Context, addr id.Address, device id.DeviceID, timestamp int64, signature []byte) (*service.MintResult, error)
	MintDirect(ctx context.Context, addr id.Address) (*service.MintResult, error)
	ArchiveUsedKeys(ctx context.Context) (int, error)
}

// Handler handles minting endpoints.
type Handler struct {
	logger  *slog.Logger
	minting Service
}

// New creates a minting Handler.
func New(minting Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, minting: minting}
}

// Register registers the minting routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/mint/first", h.handleMintFirstTime)
	r.Post("/mint/recurring", h.handleMintRecurring)
	r.Post("/mint/direct", h.handleMintDirect)
}

// RegisterAdmin registers administrator-only minting routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/used-keys/archive", h.handleArchiveUsedKeys)
}

// FirstMintRequest carries the merkle inclusion proof, hex-encoded per
// node.
type FirstMintRequest struct {
	Proof []string `json:"proof"`
}

// Validate checks proof node encoding.
func (r FirstMintRequest) Validate() error {
	for _, node := range r.Proof {
		if _, err := decodeHex(node); err != nil {
			return dErrors.New(dErrors.CodeValidation, "proof nodes must be hex encoded")
		}
	}
	return nil
}

// RecurringMintRequest carries the signed timestamp for the recurring
// path.
type RecurringMintRequest struct {
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

// Validate checks the signature encoding.
func (r RecurringMintRequest) Validate() error {
	if r.Timestamp <= 0 {
		return dErrors.New(dErrors.CodeValidation, "timestamp must be positive")
	}
	if _, err := decodeHex(r.Signature); err != nil {
		return dErrors.New(dErrors.CodeValidation, "signature must be hex encoded")
	}
	return nil
}

// DirectMintRequest names the account an authorized minter issues to.
type DirectMintRequest struct {
	Address string `json:"address"`
}

func (h *Handler) handleMintFirstTime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	account, ok := h.callerAccount(w, ctx, requestID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[FirstMintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	proof := make([][]byte, 0, len(req.Proof))
	for _, node := range req.Proof {
		decoded, _ := decodeHex(node)
		proof = append(proof, decoded)
	}

	result, err := h.minting.MintFirstTime(ctx, account, proof, requestcontext.DeviceID(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "first-time mint rejected",
			"request_id", requestID,
			"account", account,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleMintRecurring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	account, ok := h.callerAccount(w, ctx, requestID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RecurringMintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	signature, _ := decodeHex(req.Signature)

	result, err := h.minting.MintRecurring(ctx, account, requestcontext.DeviceID(ctx), req.Timestamp, signature)
	if err != nil {
		h.logger.WarnContext(ctx, "recurring mint rejected",
			"request_id", requestID,
			"account", account,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleMintDirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[DirectMintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	addr, ok := id.ParseAddress(req.Address)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAddress, "malformed account address"))
		return
	}

	result, err := h.minting.MintDirect(ctx, addr)
	if err != nil {
		h.logger.WarnContext(ctx, "direct mint rejected",
			"request_id", requestID,
			"account", addr,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleArchiveUsedKeys(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dropped, err := h.minting.ArchiveUsedKeys(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "used-key archive failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"dropped": dropped})
}

// callerAccount pulls the authenticated account set by the auth
// middleware.
func (h *Handler) callerAccount(w http.ResponseWriter, ctx context.Context, requestID string) (id.Address, bool) {
	account := requestcontext.Account(ctx)
	if account.IsZero() {
		h.logger.ErrorContext(ctx, "account missing from context despite auth middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.ZeroAddress, false
	}
	return account, true
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
