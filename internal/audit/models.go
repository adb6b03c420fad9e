// Package audit captures structured engine events (mints, burns, stakes,
// sweeps) for the collaborating application layer. Events are append-only;
// the publisher swaps sinks so tests run against memory and production
// runs against Kafka.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "aurum/pkg/domain"
)

// Action names an engine event.
type Action string

const (
	ActionMintFirstTime           Action = "mint_first_time"
	ActionMintRecurring           Action = "mint_recurring"
	ActionMintDirect              Action = "mint_direct"
	ActionAdminGrant              Action = "admin_grant"
	ActionTransfer                Action = "transfer"
	ActionStakeOpened             Action = "stake_opened"
	ActionStakeClaimed            Action = "stake_claimed"
	ActionStakeWithdrawn          Action = "stake_withdrawn"
	ActionStakeEmergencyWithdrawn Action = "stake_emergency_withdrawn"
	ActionExpirySweep             Action = "expiry_sweep"
)

// Event is one audit record.
type Event struct {
	ID         uuid.UUID  `json:"id"`
	Action     Action     `json:"action"`
	Account    id.Address `json:"account"`
	Amount     uint64     `json:"amount,omitempty"`
	DeviceName string     `json:"device_name,omitempty"`
	RequestID  string     `json:"request_id,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Store is the audit persistence boundary.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAccount(ctx context.Context, account id.Address) ([]Event, error)
}
