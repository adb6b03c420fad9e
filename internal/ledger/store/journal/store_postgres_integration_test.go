//go:build integration

package journal_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"aurum/internal/ledger/store/journal"
	id "aurum/pkg/domain"
	"aurum/pkg/testutil/containers"
)

const journalDDL = `
CREATE TABLE IF NOT EXISTS ledger_journal (
	id           UUID PRIMARY KEY,
	kind         TEXT NOT NULL,
	account      TEXT NOT NULL,
	counterparty TEXT NOT NULL,
	amount       BIGINT NOT NULL,
	burned       BIGINT NOT NULL,
	occurred_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS ledger_journal_account_idx ON ledger_journal (account, occurred_at);`

type PostgresJournalSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *journal.PostgresJournal
}

func TestPostgresJournalSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresJournalSuite))
}

func (s *PostgresJournalSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	_, err := s.postgres.DB.ExecContext(context.Background(), journalDDL)
	s.Require().NoError(err)
	s.store = journal.NewPostgres(s.postgres.DB)
}

func (s *PostgresJournalSuite) SetupTest() {
	_, err := s.postgres.DB.ExecContext(context.Background(), "TRUNCATE ledger_journal")
	s.Require().NoError(err)
}

func (s *PostgresJournalSuite) TestAppendAndList() {
	ctx := context.Background()
	alice := id.Address("0x0000000000000000000000000000000000000001")
	bob := id.Address("0x0000000000000000000000000000000000000002")
	base := time.Now().UTC().Truncate(time.Microsecond)

	entries := []journal.Entry{
		{
			ID:           uuid.New(),
			Kind:         journal.KindMint,
			Account:      alice,
			Counterparty: bob,
			Amount:       500_000,
			OccurredAt:   base,
		},
		{
			ID:         uuid.New(),
			Kind:       journal.KindTransfer,
			Account:    alice,
			Amount:     10_000,
			Burned:     200,
			OccurredAt: base.Add(time.Second),
		},
		{
			ID:         uuid.New(),
			Kind:       journal.KindExpiryBurn,
			Account:    bob,
			Amount:     1_000,
			Burned:     1_000,
			OccurredAt: base.Add(2 * time.Second),
		},
	}
	for _, e := range entries {
		s.Require().NoError(s.store.Append(ctx, e))
	}

	got, err := s.store.ListByAccounts(ctx, []id.Address{alice})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(journal.KindMint, got[0].Kind, "entries come back in occurrence order")
	s.Equal(entries[0].ID, got[0].ID)
	s.Equal(uint64(500_000), got[0].Amount)
	s.Equal(bob, got[0].Counterparty)
	s.Equal(journal.KindTransfer, got[1].Kind)
	s.Equal(uint64(200), got[1].Burned)

	got, err = s.store.ListByAccounts(ctx, []id.Address{alice, bob})
	s.Require().NoError(err)
	s.Len(got, 3)
}

func (s *PostgresJournalSuite) TestListUnknownAccount() {
	got, err := s.store.ListByAccounts(context.Background(),
		[]id.Address{id.Address("0x00000000000000000000000000000000000000ff")})
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *PostgresJournalSuite) TestAppendDuplicateID() {
	ctx := context.Background()
	entry := journal.Entry{
		ID:         uuid.New(),
		Kind:       journal.KindMint,
		Account:    id.Address("0x0000000000000000000000000000000000000001"),
		Amount:     1,
		OccurredAt: time.Now().UTC(),
	}
	s.Require().NoError(s.store.Append(ctx, entry))
	s.Error(s.store.Append(ctx, entry), "the journal id is a primary key")
}
