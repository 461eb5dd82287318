package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ticket-gate/internal/status"
	"ticket-gate/models"

	"github.com/pocketbase/dbx"
)

const TicketsTable = "issued_tickets"

// CreateTableSQL is shared by the pocketbase migration and EnsureSchema.
const CreateTableSQL = `CREATE TABLE IF NOT EXISTS issued_tickets (
	ticket_number     TEXT PRIMARY KEY NOT NULL,
	holder_name       TEXT NOT NULL,
	holder_email      TEXT NOT NULL,
	payment_reference TEXT NOT NULL,
	issued_at         INTEGER NOT NULL,
	redeemed          INTEGER NOT NULL DEFAULT 0,
	redeemed_at       INTEGER NULL
)`

const CreateReferenceIndexSQL = `CREATE INDEX IF NOT EXISTS idx_issued_tickets_reference ON issued_tickets (payment_reference)`

type ticketRow struct {
	TicketNumber     string        `db:"ticket_number"`
	HolderName       string        `db:"holder_name"`
	HolderEmail      string        `db:"holder_email"`
	PaymentReference string        `db:"payment_reference"`
	IssuedAt         int64         `db:"issued_at"`
	Redeemed         bool          `db:"redeemed"`
	RedeemedAt       sql.NullInt64 `db:"redeemed_at"`
}

func (r ticketRow) toModel() *models.Ticket {
	t := &models.Ticket{
		ID:               r.TicketNumber,
		HolderName:       r.HolderName,
		HolderEmail:      r.HolderEmail,
		PaymentReference: r.PaymentReference,
		IssuedAt:         fromMillis(r.IssuedAt),
		Redeemed:         r.Redeemed,
	}
	if r.RedeemedAt.Valid {
		at := fromMillis(r.RedeemedAt.Int64)
		t.RedeemedAt = &at
	}
	return t
}

// SQLStore keeps tickets in a SQL table. Atomicity comes from the primary
// key on ticket_number and from a conditional UPDATE guarded by
// redeemed = 0, so no read-modify-write happens in Go.
type SQLStore struct {
	db    dbx.Builder
	clock Clock
}

func NewSQLStore(db dbx.Builder, clock Clock) *SQLStore {
	return &SQLStore{db: db, clock: clock}
}

func EnsureSchema(db dbx.Builder) error {
	if _, err := db.NewQuery(CreateTableSQL).Execute(); err != nil {
		return fmt.Errorf("store: create table: %w", err)
	}
	if _, err := db.NewQuery(CreateReferenceIndexSQL).Execute(); err != nil {
		return fmt.Errorf("store: create index: %w", err)
	}
	return nil
}

func (s *SQLStore) EnsureSchema() error {
	return EnsureSchema(s.db)
}

func (s *SQLStore) Create(ctx context.Context, ticket *models.Ticket) error {
	issuedAt := ticket.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = now(s.clock)
	}
	issuedAt = issuedAt.UTC().Truncate(time.Millisecond)

	res, err := s.db.NewQuery(`INSERT INTO issued_tickets
		(ticket_number, holder_name, holder_email, payment_reference, issued_at, redeemed, redeemed_at)
		VALUES ({:id}, {:name}, {:email}, {:reference}, {:issued}, 0, NULL)
		ON CONFLICT(ticket_number) DO NOTHING`).
		WithContext(ctx).
		Bind(dbx.Params{
			"id":        ticket.ID,
			"name":      ticket.HolderName,
			"email":     ticket.HolderEmail,
			"reference": ticket.PaymentReference,
			"issued":    issuedAt.UnixMilli(),
		}).
		Execute()
	if err != nil {
		return fmt.Errorf("store: insert %s: %w", ticket.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: insert %s: %w", ticket.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", status.ErrDuplicateID, ticket.ID)
	}

	ticket.IssuedAt = issuedAt
	ticket.Redeemed = false
	ticket.RedeemedAt = nil
	return nil
}

func (s *SQLStore) Lookup(ctx context.Context, id string) (*models.Ticket, error) {
	var row ticketRow
	err := s.db.Select("*").
		From(TicketsTable).
		Where(dbx.HashExp{"ticket_number": id}).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", status.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: lookup %s: %w", id, err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) Redeem(ctx context.Context, id string) (*models.Ticket, error) {
	at := now(s.clock)

	res, err := s.db.NewQuery(`UPDATE issued_tickets
		SET redeemed = 1, redeemed_at = {:at}
		WHERE ticket_number = {:id} AND redeemed = 0`).
		WithContext(ctx).
		Bind(dbx.Params{"id": id, "at": at.UnixMilli()}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("store: redeem %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("store: redeem %s: %w", id, err)
	}

	// Either this call won, or the row is missing or was already used.
	// The row never changes after redemption, so reading it now is safe.
	ticket, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return ticket, fmt.Errorf("%w: %s", status.ErrAlreadyRedeemed, id)
	}
	return ticket, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.NewQuery("SELECT 1").WithContext(ctx).Row(&one); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}
