package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/suite"

	"aurum/internal/eligibility"
	"aurum/internal/ledger/models"
	"aurum/internal/ledger/store"
	"aurum/internal/minting/store/usedkey"
	"aurum/internal/params"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/requestcontext"
)

var (
	admin    = id.Address("0x00000000000000000000000000000000000000a1")
	treasury = id.Address("0x00000000000000000000000000000000000000a2")
	escrow   = id.Address("0x00000000000000000000000000000000000000a3")
	minter   = id.Address("0x00000000000000000000000000000000000000b1")
	alice    = id.Address("0x0000000000000000000000000000000000000001")
	bob      = id.Address("0x0000000000000000000000000000000000000002")
)

// MintingSuite drives the minting controller with real components: memory
// state store, memory used-key store, and the real verifier.
type MintingSuite struct {
	suite.Suite
	ctx      context.Context
	adminCtx context.Context
	state    *store.MemoryStore
	usedKeys *usedkey.MemoryStore
	params   *params.Service
	svc      *Service

	eligible  []id.Address
	signerKey *secp256k1.PrivateKey
}

func (s *MintingSuite) SetupTest() {
	s.ctx = context.Background()
	s.adminCtx = requestcontext.WithAccount(s.ctx, admin)
	s.state = store.NewMemory()
	s.usedKeys = usedkey.NewMemory()

	var err error
	s.params, err = params.New(params.Seed{Admin: admin, Treasury: treasury, Escrow: escrow})
	s.Require().NoError(err)

	s.eligible = []id.Address{alice, bob, admin}
	root, err := eligibility.BuildRoot(s.eligible)
	s.Require().NoError(err)
	s.Require().NoError(s.params.UpdateEligibilityRoot(s.adminCtx, root))

	keyBytes := make([]byte, 32)
	keyBytes[31] = 9
	s.signerKey = secp256k1.PrivKeyFromBytes(keyBytes)
	signer := eligibility.AddressFromPubKeyBytes(s.signerKey.PubKey().SerializeUncompressed())
	s.Require().NoError(s.params.SetSigner(s.adminCtx, signer, true))
	s.Require().NoError(s.params.SetMinter(s.adminCtx, minter, true))

	s.svc, err = New(s.state, s.usedKeys, eligibility.NewVerifier(s.params), s.params)
	s.Require().NoError(err)
}

func TestMintingSuite(t *testing.T) {
	suite.Run(t, new(MintingSuite))
}

func (s *MintingSuite) at(unix int64) context.Context {
	return requestcontext.WithTime(s.ctx, time.Unix(unix, 0))
}

func (s *MintingSuite) proofFor(addr id.Address) [][]byte {
	proof, err := eligibility.ProofFor(s.eligible, addr)
	s.Require().NoError(err)
	return proof
}

func (s *MintingSuite) sign(addr id.Address, device id.DeviceID, ts int64) []byte {
	return secpecdsa.SignCompact(s.signerKey, eligibility.MessageHash(addr, device, ts), false)
}

func (s *MintingSuite) firstMint(addr id.Address, device id.DeviceID, now int64) (*MintResult, error) {
	return s.svc.MintFirstTime(s.at(now), addr, s.proofFor(addr), device)
}

func (s *MintingSuite) TestFirstTimeMint() {
	now := int64(1_000_000)

	s.Run("splits one unit between treasury and account", func() {
		result, err := s.firstMint(alice, "device-1", now)
		s.Require().NoError(err)
		s.Equal(models.MintUnit/2, result.AccountAmount)
		s.Equal(models.MintUnit/2, result.TreasuryAmount)

		acc, _ := s.state.Account(s.ctx, alice)
		s.Equal(models.MintUnit/2, acc.Balance)

		entry, ok, err := s.state.ExpiryEntry(s.ctx, alice, models.DayBucket(now))
		s.Require().NoError(err)
		s.Require().True(ok)
		s.Equal(models.MintUnit/2, entry.BatchAmount)
		s.Equal(now+models.RetentionPeriod, entry.ExpiresAt)

		used, err := s.usedKeys.Contains(s.ctx, eligibility.BindingKey(alice, "device-1"))
		s.Require().NoError(err)
		s.True(used)
	})

	s.Run("second attempt is rejected", func() {
		_, err := s.firstMint(alice, "device-2", now+1)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyClaimed))
	})
}

func (s *MintingSuite) TestFirstTimeMintRejections() {
	now := int64(1_000_000)

	s.Run("invalid proof", func() {
		_, err := s.svc.MintFirstTime(s.at(now), alice, s.proofFor(bob), "device-1")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidProof))
	})

	s.Run("consumed binding key", func() {
		inserted, err := s.usedKeys.Add(s.ctx, eligibility.BindingKey(bob, "device-x"), usedkey.FirstTimeBucket)
		s.Require().NoError(err)
		s.Require().True(inserted)

		_, err = s.firstMint(bob, "device-x", now)
		s.True(dErrors.HasCode(err, dErrors.CodeDeviceAlreadyUsed))
	})

	s.Run("blacklisted account", func() {
		s.Require().NoError(s.state.SetAccountFlags(s.ctx, bob, boolPtr(true), nil))
		_, err := s.firstMint(bob, "device-y", now)
		s.True(dErrors.HasCode(err, dErrors.CodeBlacklisted))
	})

	s.Run("missing device", func() {
		_, err := s.svc.MintFirstTime(s.at(now), alice, s.proofFor(alice), "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// barrierStore holds MintRecord reads until both racing callers have read,
// so both pass the service-side precondition check on the same stale state.
type barrierStore struct {
	*store.MemoryStore
	gate *sync.WaitGroup
}

func (b *barrierStore) MintRecord(ctx context.Context, addr id.Address) (models.MintRecord, error) {
	rec, err := b.MemoryStore.MintRecord(ctx, addr)
	b.gate.Done()
	b.gate.Wait()
	return rec, err
}

// TestConcurrentFirstMintsCommitOnce races two first mints for one account
// on different devices. The device binding keys differ, so only the
// commit-time re-check can reject the loser.
func (s *MintingSuite) TestConcurrentFirstMintsCommitOnce() {
	gate := &sync.WaitGroup{}
	gate.Add(2)
	svc, err := New(&barrierStore{MemoryStore: s.state, gate: gate}, s.usedKeys, eligibility.NewVerifier(s.params), s.params)
	s.Require().NoError(err)

	now := int64(1_000_000)
	proof := s.proofFor(alice)
	devices := []id.DeviceID{"device-1", "device-2"}
	errs := make([]error, len(devices))

	var wg sync.WaitGroup
	for i, device := range devices {
		wg.Add(1)
		go func(i int, device id.DeviceID) {
			defer wg.Done()
			_, errs[i] = svc.MintFirstTime(s.at(now), alice, proof, device)
		}(i, device)
	}
	wg.Wait()

	var successes, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case dErrors.HasCode(err, dErrors.CodeAlreadyClaimed):
			rejected++
		}
	}
	s.Equal(1, successes)
	s.Equal(1, rejected, "the racing mint must lose with already_claimed")

	rec, _ := s.state.MintRecord(s.ctx, alice)
	s.Equal(models.MintUnit, rec.TotalMinted, "exactly one unit issued")
	stats, _ := s.state.Stats(s.ctx)
	s.Equal(models.MintUnit, stats.TotalMinted)
}

func (s *MintingSuite) TestAdminBootstrapGrant() {
	now := int64(1_000_000)

	result, err := s.firstMint(admin, "admin-device", now)
	s.Require().NoError(err)
	s.Zero(result.AccountAmount)
	s.Equal(models.AdminInitialGrant, result.TreasuryAmount)

	tre, _ := s.state.Account(s.ctx, treasury)
	s.Equal(models.AdminInitialGrant, tre.Balance)

	// The bootstrap grant is unrestricted: no expiry entry.
	_, ok, err := s.state.ExpiryEntry(s.ctx, admin, models.DayBucket(now))
	s.Require().NoError(err)
	s.False(ok)
}

func (s *MintingSuite) TestRecurringMint() {
	start := int64(1_000_000)
	_, err := s.firstMint(alice, "device-1", start)
	s.Require().NoError(err)

	s.Run("rejected before the cooldown elapses", func() {
		ts := start + models.CooldownPeriod - 1
		_, err := s.svc.MintRecurring(s.at(ts), alice, "device-1", ts, s.sign(alice, "device-1", ts))
		s.True(dErrors.HasCode(err, dErrors.CodeCooldownNotOver))
	})

	s.Run("accepted exactly at the cooldown boundary", func() {
		ts := start + models.CooldownPeriod
		result, err := s.svc.MintRecurring(s.at(ts), alice, "device-1", ts, s.sign(alice, "device-1", ts))
		s.Require().NoError(err)
		s.Equal(models.MintUnit/2, result.AccountAmount)

		rec, _ := s.state.MintRecord(s.ctx, alice)
		s.Equal(ts, rec.LastMintAt)
		s.Equal(2*models.MintUnit, rec.TotalMinted)
	})

	s.Run("rejected without a first mint", func() {
		ts := start + models.CooldownPeriod
		_, err := s.svc.MintRecurring(s.at(ts), bob, "device-2", ts, s.sign(bob, "device-2", ts))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejected with a bad signature", func() {
		ts := start + 2*models.CooldownPeriod
		_, err := s.svc.MintRecurring(s.at(ts), alice, "device-1", ts, []byte("junk"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidSignature))
	})
}

func (s *MintingSuite) TestRecurringMintPeriodReplay() {
	start := int64(1_000_000)
	_, err := s.firstMint(alice, "device-1", start)
	s.Require().NoError(err)

	ts := start + models.CooldownPeriod
	key := eligibility.PeriodBindingKey(alice, "device-1", models.PeriodBucket(ts))
	inserted, err := s.usedKeys.Add(s.ctx, key, models.PeriodBucket(ts))
	s.Require().NoError(err)
	s.Require().True(inserted)

	_, err = s.svc.MintRecurring(s.at(ts), alice, "device-1", ts, s.sign(alice, "device-1", ts))
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyClaimedThisPeriod))
}

func (s *MintingSuite) TestMintDirect() {
	now := int64(1_000_000)
	minterCtx := requestcontext.WithTime(requestcontext.WithAccount(s.ctx, minter), time.Unix(now, 0))

	s.Run("requires an authorized minter", func() {
		callerCtx := requestcontext.WithAccount(s.ctx, alice)
		_, err := s.svc.MintDirect(callerCtx, bob)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("issues the split-and-lock first mint", func() {
		result, err := s.svc.MintDirect(minterCtx, bob)
		s.Require().NoError(err)
		s.Equal(models.MintUnit/2, result.AccountAmount)
		s.False(result.AlreadyMinted)
	})

	s.Run("is idempotent for minted accounts", func() {
		result, err := s.svc.MintDirect(minterCtx, bob)
		s.Require().NoError(err)
		s.True(result.AlreadyMinted)
		s.Zero(result.AccountAmount)

		rec, _ := s.state.MintRecord(s.ctx, bob)
		s.Equal(models.MintUnit, rec.TotalMinted)
	})
}

func (s *MintingSuite) TestArchiveUsedKeys() {
	now := 3 * models.CooldownPeriod

	_, err := s.usedKeys.Add(s.ctx, "stale-period-key", 0)
	s.Require().NoError(err)
	_, err = s.usedKeys.Add(s.ctx, "first-time-key", usedkey.FirstTimeBucket)
	s.Require().NoError(err)

	s.Run("requires the administrator", func() {
		_, err := s.svc.ArchiveUsedKeys(requestcontext.WithAccount(s.ctx, alice))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("drops stale period keys and keeps first-time keys", func() {
		adminAt := requestcontext.WithTime(s.adminCtx, time.Unix(now, 0))
		dropped, err := s.svc.ArchiveUsedKeys(adminAt)
		s.Require().NoError(err)
		s.Equal(1, dropped)

		kept, err := s.usedKeys.Contains(s.ctx, "first-time-key")
		s.Require().NoError(err)
		s.True(kept)
	})
}

func boolPtr(b bool) *bool { return &b }
