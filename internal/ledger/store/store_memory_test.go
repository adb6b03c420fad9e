package store

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/suite"

	"aurum/internal/ledger/models"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
)

const day = models.SecondsPerDay

var (
	alice    = id.Address("0x00000000000000000000000000000000000000aa")
	bob      = id.Address("0x00000000000000000000000000000000000000bb")
	treasury = id.Address("0x00000000000000000000000000000000000000a2")
)

// StoreSuite exercises the compound atomic operations and the supply
// accounting they must preserve.
type StoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *MemoryStore
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewMemory()
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

// conserved asserts the conservation identity over the whole store.
func (s *StoreSuite) conserved() {
	sum, err := s.store.SumBalances(s.ctx)
	s.Require().NoError(err)
	stats, err := s.store.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(stats.TotalMinted, sum+stats.TotalStaked+stats.TotalBurned,
		"sum(balances)+staked+burned must equal minted")
}

func (s *StoreSuite) mint(addr id.Address, amount uint64, now int64) {
	half := amount / 2
	err := s.store.ApplyMint(s.ctx, models.MintApplication{
		Account:        addr,
		Treasury:       treasury,
		AccountAmount:  half,
		TreasuryAmount: amount - half,
		Now:            now,
		Expiry: &models.ExpiryEntry{
			Address:     addr,
			IssueBucket: models.DayBucket(now),
			ExpiresAt:   now + models.RetentionPeriod,
			BatchAmount: half,
		},
	})
	s.Require().NoError(err)
}

func (s *StoreSuite) TestApplyMint() {
	s.Run("splits credits and records issuance", func() {
		s.mint(alice, 1_000_000, 1000)

		acc, err := s.store.Account(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal(uint64(500_000), acc.Balance)

		tre, err := s.store.Account(s.ctx, treasury)
		s.Require().NoError(err)
		s.Equal(uint64(500_000), tre.Balance)

		rec, err := s.store.MintRecord(s.ctx, alice)
		s.Require().NoError(err)
		s.True(rec.HasFirstMinted)
		s.Equal(int64(1000), rec.LastMintAt)
		s.Equal(uint64(1_000_000), rec.TotalMinted)

		s.conserved()
	})

	s.Run("same-day issuances share one expiry entry", func() {
		s.mint(bob, 1_000_000, 2000)
		s.mint(bob, 1_000_000, 3000) // same day bucket

		entry, ok, err := s.store.ExpiryEntry(s.ctx, bob, models.DayBucket(2000))
		s.Require().NoError(err)
		s.Require().True(ok)
		s.Equal(uint64(1_000_000), entry.BatchAmount)
		s.Equal(int64(3000)+models.RetentionPeriod, entry.ExpiresAt,
			"the merged entry keeps the later expiry")
	})
}

// TestApplyMintGuards covers the precondition re-validation inside the
// commit's critical section.
func (s *StoreSuite) TestApplyMintGuards() {
	guarded := func(now int64, unminted, cooldown bool) error {
		return s.store.ApplyMint(s.ctx, models.MintApplication{
			Account:         alice,
			Treasury:        treasury,
			AccountAmount:   500_000,
			TreasuryAmount:  500_000,
			Now:             now,
			RequireUnminted: unminted,
			RequireCooldown: cooldown,
		})
	}

	s.Require().NoError(guarded(1000, true, false))

	s.Run("rejects a second guarded first mint", func() {
		err := guarded(2000, true, false)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyClaimed))

		rec, _ := s.store.MintRecord(s.ctx, alice)
		s.Equal(uint64(1_000_000), rec.TotalMinted, "the rejected mint must leave no trace")
		s.Equal(int64(1000), rec.LastMintAt)
		s.conserved()
	})

	s.Run("rejects a guarded mint inside the cooldown", func() {
		err := guarded(1000+models.CooldownPeriod-1, false, true)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeCooldownNotOver))
	})

	s.Run("accepts a guarded mint at the cooldown boundary", func() {
		s.Require().NoError(guarded(1000+models.CooldownPeriod, false, true))
		s.conserved()
	})
}

func (s *StoreSuite) TestTransfer() {
	s.mint(alice, 1_000_000, 1000)

	s.Run("rejects amounts above balance", func() {
		err := s.store.Transfer(s.ctx, alice, bob, 600_000, 0)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
		s.conserved()
	})

	s.Run("debits full amount and accounts the burn", func() {
		err := s.store.Transfer(s.ctx, alice, bob, 100_000, 2_000)
		s.Require().NoError(err)

		from, _ := s.store.Account(s.ctx, alice)
		to, _ := s.store.Account(s.ctx, bob)
		s.Equal(uint64(400_000), from.Balance)
		s.Equal(uint64(98_000), to.Balance)

		stats, _ := s.store.Stats(s.ctx)
		s.Equal(uint64(2_000), stats.TotalBurned)
		s.conserved()
	})
}

func (s *StoreSuite) TestPositions() {
	s.mint(alice, 1_000_000, 1000)

	s.Run("rejects stakes above balance", func() {
		_, err := s.store.OpenPosition(s.ctx, alice, models.Position{Amount: 600_000})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
	})

	s.Run("moves principal into the staked bucket", func() {
		posID, err := s.store.OpenPosition(s.ctx, alice, models.Position{
			Amount:  200_000,
			StartAt: 1000,
		})
		s.Require().NoError(err)
		s.Equal(id.PositionID(0), posID)

		acc, _ := s.store.Account(s.ctx, alice)
		s.Equal(uint64(300_000), acc.Balance)
		stats, _ := s.store.Stats(s.ctx)
		s.Equal(uint64(200_000), stats.TotalStaked)
		s.conserved()
	})

	s.Run("claim mints reward and resets anchor", func() {
		err := s.store.SettleClaim(s.ctx, alice, 0, 5_000, 0, 9000)
		s.Require().NoError(err)

		acc, _ := s.store.Account(s.ctx, alice)
		s.Equal(uint64(305_000), acc.Balance)
		pos, _ := s.store.Position(s.ctx, alice, 0)
		s.Equal(int64(9000), pos.LastClaimAt)
		s.conserved()
	})

	s.Run("a settle computed from a stale anchor is rejected", func() {
		err := s.store.SettleClaim(s.ctx, alice, 0, 5_000, 0, 9500)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		acc, _ := s.store.Account(s.ctx, alice)
		s.Equal(uint64(305_000), acc.Balance, "a stale settle must not pay")
		s.conserved()
	})

	s.Run("a close computed from a stale anchor is rejected", func() {
		err := s.store.ClosePosition(s.ctx, alice, 0, 5_000, 0)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.conserved()
	})

	s.Run("close returns principal plus reward and zeroes the position", func() {
		err := s.store.ClosePosition(s.ctx, alice, 0, 1_000, 9000)
		s.Require().NoError(err)

		acc, _ := s.store.Account(s.ctx, alice)
		s.Equal(uint64(506_000), acc.Balance)
		stats, _ := s.store.Stats(s.ctx)
		s.Equal(uint64(0), stats.TotalStaked)

		pos, _ := s.store.Position(s.ctx, alice, 0)
		s.False(pos.Open())
		s.conserved()
	})

	s.Run("closed positions cannot be settled again", func() {
		err := s.store.ClosePosition(s.ctx, alice, 0, 0, 9000)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *StoreSuite) TestBurnExpired() {
	issueAt := int64(10 * day)
	s.mint(alice, 1_000_000, issueAt)
	bucket := models.DayBucket(issueAt)

	s.Run("does nothing before expiry", func() {
		burned, err := s.store.BurnExpired(s.ctx, alice, bucket, issueAt+models.RetentionPeriod-1)
		s.Require().NoError(err)
		s.Zero(burned)
	})

	s.Run("burns the expired batch and removes the entry", func() {
		burned, err := s.store.BurnExpired(s.ctx, alice, bucket, issueAt+models.RetentionPeriod)
		s.Require().NoError(err)
		s.Equal(uint64(500_000), burned)

		acc, _ := s.store.Account(s.ctx, alice)
		s.Zero(acc.Balance)
		s.conserved()
	})

	s.Run("is idempotent", func() {
		burned, err := s.store.BurnExpired(s.ctx, alice, bucket, issueAt+models.RetentionPeriod)
		s.Require().NoError(err)
		s.Zero(burned)
	})

	s.Run("caps the burn at the remaining balance", func() {
		s.mint(bob, 1_000_000, issueAt)
		s.Require().NoError(s.store.Transfer(s.ctx, bob, treasury, 400_000, 0))

		burned, err := s.store.BurnExpired(s.ctx, bob, bucket, issueAt+models.RetentionPeriod)
		s.Require().NoError(err)
		s.Equal(uint64(100_000), burned)
		s.conserved()
	})
}

// TestConservationUnderRandomOps drives the store through a random op
// sequence and checks the conservation identity after every step.
func (s *StoreSuite) TestConservationUnderRandomOps() {
	rng := rand.New(rand.NewSource(42))
	addrs := []id.Address{alice, bob, treasury}
	now := int64(100 * day)

	for i := 0; i < 500; i++ {
		a := addrs[rng.Intn(len(addrs))]
		b := addrs[rng.Intn(len(addrs))]
		amount := uint64(rng.Intn(1_000_000) + 1)

		switch rng.Intn(5) {
		case 0:
			s.mint(a, amount, now)
		case 1:
			_ = s.store.Transfer(s.ctx, a, b, amount, amount/100)
		case 2:
			_, _ = s.store.OpenPosition(s.ctx, a, models.Position{Amount: amount, StartAt: now})
		case 3:
			positions, err := s.store.Positions(s.ctx, a)
			s.Require().NoError(err)
			for _, pos := range positions {
				if pos.Open() {
					_ = s.store.ClosePosition(s.ctx, a, pos.ID, amount/1000, pos.LastClaimAt)
					break
				}
			}
		case 4:
			_, _ = s.store.BurnExpired(s.ctx, a, models.DayBucket(now-models.RetentionPeriod), now)
		}
		now += int64(rng.Intn(int(day)))
		s.conserved()
	}
}
