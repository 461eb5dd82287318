package models

import (
	"time"
)

// DebugReference is stored as the payment reference of tickets issued
// without a gateway settlement.
const DebugReference = "debug"

type Ticket struct {
	ID               string     `json:"ticket_number"`
	HolderName       string     `json:"name"`
	HolderEmail      string     `json:"email"`
	IssuedAt         time.Time  `json:"purchase_date"`
	PaymentReference string     `json:"payment_reference"`
	Redeemed         bool       `json:"used"`
	RedeemedAt       *time.Time `json:"used_date"`
}

// MarkRedeemed stamps the ticket as used. It reports false and leaves the
// ticket untouched when it was already redeemed.
func (t *Ticket) MarkRedeemed(at time.Time) bool {
	if t.Redeemed {
		return false
	}
	at = at.UTC()
	t.Redeemed = true
	t.RedeemedAt = &at
	return true
}

// TicketNumber is the wire shape of an issued ticket in purchase responses.
type TicketNumber struct {
	TicketNumber string `json:"ticket_number"`
}

func TicketNumbers(tickets []Ticket) []TicketNumber {
	out := make([]TicketNumber, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, TicketNumber{TicketNumber: t.ID})
	}
	return out
}

func TicketIDs(tickets []Ticket) []string {
	ids := make([]string, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.ID)
	}
	return ids
}
