// Package handler exposes the engine configuration over HTTP. Every write
// is administrator-only; the params service enforces the caller check so
// the handler only translates requests.
package handler

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"aurum/internal/eligibility"
	"aurum/internal/params"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/platform/httputil"
	"aurum/pkg/requestcontext"
)

// Service defines the interface for configuration writes.
type Service interface {
	Current() *params.Snapshot
	UpdateEligibilityRoot(ctx context.Context, root []byte) error
	SetBurnRate(ctx context.Context, bp uint64) error
	SetYieldTiers(ctx context.Context, tiers params.YieldTiers) error
	SetSigner(ctx context.Context, addr id.Address, authorized bool) error
	SetMinter(ctx context.Context, addr id.Address, authorized bool) error
	SetAppContract(ctx context.Context, addr id.Address, authorized bool) error
}

// Handler handles configuration endpoints.
type Handler struct {
	logger *slog.Logger
	params Service
}

// New creates a params Handler.
func New(paramsSvc Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, params: paramsSvc}
}

// RegisterAdmin registers the configuration routes with the chi router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/params", h.handleGetParams)
	r.Put("/admin/eligibility-root", h.handleUpdateRoot)
	r.Put("/admin/burn-rate", h.handleSetBurnRate)
	r.Put("/admin/yield-tiers", h.handleSetYieldTiers)
	r.Post("/admin/signers/{address}", h.handleSetMember(h.params.SetSigner, true))
	r.Delete("/admin/signers/{address}", h.handleSetMember(h.params.SetSigner, false))
	r.Post("/admin/minters/{address}", h.handleSetMember(h.params.SetMinter, true))
	r.Delete("/admin/minters/{address}", h.handleSetMember(h.params.SetMinter, false))
	r.Post("/admin/app-contracts/{address}", h.handleSetMember(h.params.SetAppContract, true))
	r.Delete("/admin/app-contracts/{address}", h.handleSetMember(h.params.SetAppContract, false))
}

// RootRequest carries either a pre-computed merkle root or the full
// eligibility list to derive one from.
type RootRequest struct {
	Root     string   `json:"root,omitempty"`
	Accounts []string `json:"accounts,omitempty"`
}

// BurnRateRequest sets the transfer burn rate in basis points.
type BurnRateRequest struct {
	BurnRateBp uint64 `json:"burn_rate_bp"`
}

// YieldTiersRequest sets the staking reward rates in basis points.
type YieldTiersRequest struct {
	OneYearBp    uint64 `json:"one_year_bp"`
	SixMonthBp   uint64 `json:"six_month_bp"`
	ThreeMonthBp uint64 `json:"three_month_bp"`
	DefaultBp    uint64 `json:"default_bp"`
}

func (h *Handler) handleGetParams(w http.ResponseWriter, r *http.Request) {
	snap := h.params.Current()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"version":          snap.Version,
		"burn_rate_bp":     snap.BurnRateBp,
		"yield_tiers":      snap.Tiers,
		"eligibility_root": hex.EncodeToString(snap.EligibilityRoot),
	})
}

func (h *Handler) handleUpdateRoot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RootRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var (
		root []byte
		err  error
	)
	switch {
	case req.Root != "":
		root, err = hex.DecodeString(strings.TrimPrefix(req.Root, "0x"))
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "root must be hex encoded"))
			return
		}
	case len(req.Accounts) > 0:
		addrs := make([]id.Address, 0, len(req.Accounts))
		for _, raw := range req.Accounts {
			addr, ok := id.ParseAddress(raw)
			if !ok {
				httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidAddress, "malformed address %q", raw))
				return
			}
			addrs = append(addrs, addr)
		}
		root, err = eligibility.BuildRoot(addrs)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "either root or accounts is required"))
		return
	}

	if err := h.params.UpdateEligibilityRoot(ctx, root); err != nil {
		h.logger.WarnContext(ctx, "eligibility root update rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"root": hex.EncodeToString(root)})
}

func (h *Handler) handleSetBurnRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BurnRateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.params.SetBurnRate(ctx, req.BurnRateBp); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetYieldTiers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[YieldTiersRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	tiers := params.YieldTiers{
		OneYearBp:    req.OneYearBp,
		SixMonthBp:   req.SixMonthBp,
		ThreeMonthBp: req.ThreeMonthBp,
		DefaultBp:    req.DefaultBp,
	}
	if err := h.params.SetYieldTiers(ctx, tiers); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetMember(set func(ctx context.Context, addr id.Address, authorized bool) error, authorized bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		addr, ok := id.ParseAddress(chi.URLParam(r, "address"))
		if !ok {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAddress, "malformed address"))
			return
		}
		if err := set(ctx, addr, authorized); err != nil {
			h.logger.WarnContext(ctx, "authorized set update rejected",
				"request_id", requestcontext.RequestID(ctx),
				"address", addr,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
