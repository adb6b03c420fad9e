// Package handler exposes the staking engine over HTTP. Positions belong
// to the authenticated caller; position IDs are path parameters.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"aurum/internal/ledger/models"
	"aurum/internal/staking/service"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/platform/httputil"
	"aurum/pkg/requestcontext"
)

// Service defines the interface for staking operations.
type Service interface {
	OpenStake(ctx context.Context, owner id.Address, amount uint64, lockPeriod int64, autoCompound, autoClaim bool) (id.PositionID, error)
	Claim(ctx context.Context, owner id.Address, posID id.PositionID) (uint64, error)
	Withdraw(ctx context.Context, owner id.Address, posID id.PositionID) (*service.WithdrawResult, error)
	EmergencyWithdraw(ctx context.Context, owner id.Address, posID id.PositionID) (*service.WithdrawResult, error)
	PendingRewards(ctx context.Context, owner id.Address, posID id.PositionID) (uint64, error)
	PositionsOf(ctx context.Context, owner id.Address) ([]models.Position, error)
}

// Handler handles staking endpoints.
type Handler struct {
	logger  *slog.Logger
	staking Service
}

// New creates a staking Handler.
func New(staking Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, staking: staking}
}

// Register registers the staking routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/stake", h.handleOpenStake)
	r.Get("/stake", h.handlePositions)
	r.Post("/stake/{id}/claim", h.handleClaim)
	r.Post("/stake/{id}/withdraw", h.handleWithdraw)
	r.Post("/stake/{id}/emergency", h.handleEmergencyWithdraw)
	r.Get("/stake/{id}/rewards", h.handlePendingRewards)
}

// OpenStakeRequest carries the stake parameters. LockPeriod is in seconds;
// zero means a flexible position with no fixed term.
type OpenStakeRequest struct {
	Amount       uint64 `json:"amount"`
	LockPeriod   int64  `json:"lock_period"`
	AutoCompound bool   `json:"auto_compound"`
	AutoClaim    bool   `json:"auto_claim"`
}

func (h *Handler) handleOpenStake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[OpenStakeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	posID, err := h.staking.OpenStake(ctx, requestcontext.Account(ctx), req.Amount, req.LockPeriod, req.AutoCompound, req.AutoClaim)
	if err != nil {
		h.logger.WarnContext(ctx, "stake rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]id.PositionID{"position_id": posID})
}

func (h *Handler) handlePositions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	positions, err := h.staking.PositionsOf(ctx, requestcontext.Account(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"positions": positions})
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	posID, ok := h.positionID(w, r)
	if !ok {
		return
	}

	reward, err := h.staking.Claim(ctx, requestcontext.Account(ctx), posID)
	if err != nil {
		h.logger.WarnContext(ctx, "claim rejected",
			"request_id", requestcontext.RequestID(ctx),
			"position", posID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"reward": reward})
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.withdraw(w, r, h.staking.Withdraw)
}

func (h *Handler) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	h.withdraw(w, r, h.staking.EmergencyWithdraw)
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request, fn func(context.Context, id.Address, id.PositionID) (*service.WithdrawResult, error)) {
	ctx := r.Context()
	posID, ok := h.positionID(w, r)
	if !ok {
		return
	}

	result, err := fn(ctx, requestcontext.Account(ctx), posID)
	if err != nil {
		h.logger.WarnContext(ctx, "withdrawal rejected",
			"request_id", requestcontext.RequestID(ctx),
			"position", posID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handlePendingRewards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	posID, ok := h.positionID(w, r)
	if !ok {
		return
	}

	reward, err := h.staking.PendingRewards(ctx, requestcontext.Account(ctx), posID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"pending_rewards": reward})
}

func (h *Handler) positionID(w http.ResponseWriter, r *http.Request) (id.PositionID, bool) {
	raw := chi.URLParam(r, "id")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "position id must be a non-negative integer"))
		return 0, false
	}
	return id.PositionID(n), true
}
