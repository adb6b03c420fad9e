package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	id "aurum/pkg/domain"
)

// PostgresJournal persists ledger journal entries in PostgreSQL.
type PostgresJournal struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed journal.
func NewPostgres(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

func (j *PostgresJournal) Append(ctx context.Context, entry Entry) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO ledger_journal (id, kind, account, counterparty, amount, burned, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID,
		string(entry.Kind),
		entry.Account.String(),
		entry.Counterparty.String(),
		int64(entry.Amount),
		int64(entry.Burned),
		entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

func (j *PostgresJournal) ListByAccounts(ctx context.Context, accounts []id.Address) ([]Entry, error) {
	raw := make([]string, 0, len(accounts))
	for _, a := range accounts {
		raw = append(raw, a.String())
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, kind, account, counterparty, amount, burned, occurred_at
		FROM ledger_journal
		WHERE account = ANY($1)
		ORDER BY occurred_at`,
		pq.Array(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			entry        Entry
			kind         string
			account      string
			counterparty string
			amount       int64
			burned       int64
			occurredAt   time.Time
		)
		if err := rows.Scan(&entry.ID, &kind, &account, &counterparty, &amount, &burned, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entry.Kind = Kind(kind)
		entry.Account = id.Address(account)
		entry.Counterparty = id.Address(counterparty)
		entry.Amount = uint64(amount)
		entry.Burned = uint64(burned)
		entry.OccurredAt = occurredAt
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}
	return out, nil
}
