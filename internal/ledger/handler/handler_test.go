package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"aurum/internal/ledger/models"
	"aurum/internal/ledger/service"
	"aurum/internal/ledger/store"
	"aurum/internal/params"
	id "aurum/pkg/domain"
	"aurum/pkg/requestcontext"
	"aurum/pkg/testutil"
)

var (
	admin    = id.Address("0x00000000000000000000000000000000000000a1")
	treasury = id.Address("0x00000000000000000000000000000000000000a2")
	escrow   = id.Address("0x00000000000000000000000000000000000000a3")
	app      = id.Address("0x00000000000000000000000000000000000000c1")
	alice    = id.Address("0x0000000000000000000000000000000000000001")
	bob      = id.Address("0x0000000000000000000000000000000000000002")
)

// HandlerSuite validates HTTP concerns with real in-memory components.
type HandlerSuite struct {
	suite.Suite
	router http.Handler
	state  *store.MemoryStore
}

func (s *HandlerSuite) SetupTest() {
	s.state = store.NewMemory()

	paramsSvc, err := params.New(params.Seed{
		Admin: admin, Treasury: treasury, Escrow: escrow, BurnRateBp: 200,
	})
	require.NoError(s.T(), err)
	adminCtx := requestcontext.WithAccount(context.Background(), admin)
	require.NoError(s.T(), paramsSvc.SetAppContract(adminCtx, app, true))

	svc, err := service.New(s.state, paramsSvc)
	require.NoError(s.T(), err)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := New(svc, logger)

	r := chi.NewRouter()
	h.Register(r)
	h.RegisterAuthed(r)
	h.RegisterAdmin(r)
	s.router = r

	require.NoError(s.T(), s.state.ApplyMint(context.Background(), models.MintApplication{
		Account:       alice,
		Treasury:      treasury,
		AccountAmount: 100_000,
	}))
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) TestTransfer_InvalidJSON() {
	req := httptest.NewRequest(http.MethodPost, "/transfer", bytes.NewReader([]byte("not valid json")))
	req.Header.Set("Content-Type", "application/json")
	req = testutil.WithAccount(req, alice)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code, "expected 400 for invalid JSON")
}

func (s *HandlerSuite) TestTransfer_ValidRequest() {
	body, _ := json.Marshal(TransferRequest{To: app.String(), Amount: 10_000})
	req := httptest.NewRequest(http.MethodPost, "/transfer", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = testutil.WithAccount(req, alice)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	require.Equal(s.T(), http.StatusOK, rec.Code)

	var resp service.TransferResult
	require.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(s.T(), uint64(9_800), resp.Credited)
	assert.Equal(s.T(), uint64(200), resp.Burned)
}

func (s *HandlerSuite) TestTransfer_RestrictedRecipient() {
	body, _ := json.Marshal(TransferRequest{To: bob.String(), Amount: 10_000})
	req := httptest.NewRequest(http.MethodPost, "/transfer", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = testutil.WithAccount(req, alice)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusForbidden, rec.Code,
		"perimeter violations map to 403")
}

func (s *HandlerSuite) TestTransfer_MalformedRecipient() {
	body, _ := json.Marshal(TransferRequest{To: "nonsense", Amount: 10})
	req := httptest.NewRequest(http.MethodPost, "/transfer", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = testutil.WithAccount(req, alice)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestBalanceView() {
	req := httptest.NewRequest(http.MethodGet, "/accounts/"+alice.String()+"/balance", nil)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	require.Equal(s.T(), http.StatusOK, rec.Code)

	var resp struct {
		Balance uint64 `json:"balance"`
	}
	require.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(s.T(), uint64(100_000), resp.Balance)
}

func (s *HandlerSuite) TestBalanceView_MalformedAddress() {
	req := httptest.NewRequest(http.MethodGet, "/accounts/xyz/balance", nil)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestSupplyView() {
	req := httptest.NewRequest(http.MethodGet, "/supply", nil)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	require.Equal(s.T(), http.StatusOK, rec.Code)

	var stats models.Stats
	require.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(s.T(), uint64(100_000), stats.TotalMinted)
}

func (s *HandlerSuite) TestSetFlags_RequiresAdmin() {
	body, _ := json.Marshal(FlagsRequest{Blacklisted: boolPtr(true)})
	req := httptest.NewRequest(http.MethodPut, "/admin/accounts/"+bob.String()+"/flags", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = testutil.WithAccount(req, alice)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestSetFlags_Admin() {
	body, _ := json.Marshal(FlagsRequest{Blacklisted: boolPtr(true)})
	req := httptest.NewRequest(http.MethodPut, "/admin/accounts/"+bob.String()+"/flags", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = testutil.WithAccount(req, admin)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	require.Equal(s.T(), http.StatusNoContent, rec.Code)

	acc, err := s.state.Account(context.Background(), bob)
	require.NoError(s.T(), err)
	assert.True(s.T(), acc.Blacklisted)
}

func boolPtr(b bool) *bool { return &b }
