// Package store persists issued tickets. Every backend guarantees that
// Create never overwrites an existing ticket number and that Redeem flips a
// ticket from unused to used at most once, regardless of how many callers
// race on the same number.
package store

import (
	"context"
	"time"

	"ticket-gate/models"
)

type TicketStore interface {
	// Create persists a new unused ticket or fails with status.ErrDuplicateID.
	Create(ctx context.Context, ticket *models.Ticket) error

	// Lookup returns the ticket or status.ErrNotFound.
	Lookup(ctx context.Context, id string) (*models.Ticket, error)

	// Redeem marks the ticket used. When the ticket was already used it
	// returns the stored ticket, carrying the original RedeemedAt, together
	// with status.ErrAlreadyRedeemed.
	Redeem(ctx context.Context, id string) (*models.Ticket, error)

	Ping(ctx context.Context) error
}

// Clock returns the current time. Stores truncate it to milliseconds so a
// stored timestamp reads back identical.
type Clock func() time.Time

func now(c Clock) time.Time {
	if c == nil {
		c = time.Now
	}
	return c().UTC().Truncate(time.Millisecond)
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
