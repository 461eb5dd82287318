package services

import (
	"context"

	"ticket-gate/models"
)

// PaymentVerifier confirms that a gateway reference is settled. It returns
// status.ErrNotSettled for a definite "no" and status.ErrVerifierUnavailable
// when no answer could be obtained in time.
type PaymentVerifier interface {
	Verify(ctx context.Context, reference string) (*models.Settlement, error)
}

// NotificationSender delivers a batch of ticket numbers to the purchaser.
type NotificationSender interface {
	SendTickets(ctx context.Context, recipient, holderName string, ticketIDs []string) error
}

type TicketCodec interface {
	Generate(quantity int) (string, error)
	Parse(s string) (string, error)
}
