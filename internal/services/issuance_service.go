package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ticket-gate/internal/services/notify"
	"ticket-gate/internal/status"
	"ticket-gate/internal/store"
	"ticket-gate/models"
	"ticket-gate/monitoring"

	"github.com/google/uuid"
)

// IssuanceState is the position of one purchase in the issuance workflow:
// Pending -> Verifying -> Rejected | Verified -> Issuing -> Issued ->
// Notifying -> Done. Failed marks an infrastructure error at any step.
type IssuanceState string

const (
	StatePending   IssuanceState = "pending"
	StateVerifying IssuanceState = "verifying"
	StateRejected  IssuanceState = "rejected"
	StateVerified  IssuanceState = "verified"
	StateIssuing   IssuanceState = "issuing"
	StateIssued    IssuanceState = "issued"
	StateNotifying IssuanceState = "notifying"
	StateDone      IssuanceState = "done"
	StateFailed    IssuanceState = "failed"
)

const (
	sourcePaystack = "paystack"
	sourceDebug    = "debug"
)

type IssuanceResult struct {
	// PurchaseID correlates the log lines of one purchase.
	PurchaseID string
	State      IssuanceState
	Settlement *models.Settlement
	Tickets    []models.Ticket

	// Notified reports whether the purchaser was emailed. A failed
	// notification leaves the issued tickets valid.
	Notified    bool
	NotifyError error
}

type IssuanceConfig struct {
	MaxQuantity   int
	MaxIDAttempts int
	Feed          *notify.GateFeed
	Monitor       *monitoring.Monitor
}

type IssuanceService struct {
	store       store.TicketStore
	verifier    PaymentVerifier
	notifier    NotificationSender
	codec       TicketCodec
	feed        *notify.GateFeed
	monitor     *monitoring.Monitor
	maxQuantity int
	maxAttempts int
	now         func() time.Time
}

func NewIssuanceService(st store.TicketStore, verifier PaymentVerifier, notifier NotificationSender, codec TicketCodec, cfg IssuanceConfig) *IssuanceService {
	if cfg.MaxQuantity <= 0 {
		cfg.MaxQuantity = 100
	}
	if cfg.MaxIDAttempts <= 0 {
		cfg.MaxIDAttempts = 8
	}
	return &IssuanceService{
		store:       st,
		verifier:    verifier,
		notifier:    notifier,
		codec:       codec,
		feed:        cfg.Feed,
		monitor:     cfg.Monitor,
		maxQuantity: cfg.MaxQuantity,
		maxAttempts: cfg.MaxIDAttempts,
		now:         time.Now,
	}
}

// Purchase verifies the payment reference once and, when it is settled,
// issues req.Quantity tickets and emails them. The returned result is never
// nil; its State tells how far the workflow got.
func (s *IssuanceService) Purchase(ctx context.Context, req models.PurchaseRequest) (*IssuanceResult, error) {
	result := &IssuanceResult{PurchaseID: uuid.NewString(), State: StatePending}

	req.Normalize()
	if err := req.Validate(s.maxQuantity, true); err != nil {
		result.State = StateRejected
		s.monitor.TrackPurchase("invalid")
		return result, status.WithReason(status.ErrInvalidRequest, err.Error())
	}

	result.State = StateVerifying
	started := time.Now()
	settlement, err := s.verifier.Verify(ctx, req.Reference)
	switch {
	case err == nil:
		s.monitor.TrackVerify("settled", time.Since(started))
	case errors.Is(err, status.ErrNotSettled):
		s.monitor.TrackVerify("not_settled", time.Since(started))
		s.monitor.TrackPurchase("not_settled")
		slog.Info("Purchase rejected", "purchase", result.PurchaseID, "reference", req.Reference, "reason", status.Reason(err))
		result.State = StateRejected
		return result, err
	default:
		s.monitor.TrackVerify("unavailable", time.Since(started))
		s.monitor.TrackPurchase("verifier_unavailable")
		slog.Error("Payment verification unavailable", "purchase", result.PurchaseID, "reference", req.Reference, "error", err)
		result.State = StateFailed
		if !errors.Is(err, status.ErrVerifierUnavailable) {
			err = fmt.Errorf("%w: %v", status.ErrVerifierUnavailable, err)
		}
		return result, err
	}

	result.State = StateVerified
	result.Settlement = settlement

	return s.issue(ctx, result, req, req.Reference, sourcePaystack)
}

// IssueUnverified issues tickets under models.DebugReference without calling
// the payment gateway. It exists for development servers only.
func (s *IssuanceService) IssueUnverified(ctx context.Context, req models.PurchaseRequest) (*IssuanceResult, error) {
	result := &IssuanceResult{PurchaseID: uuid.NewString(), State: StatePending}

	req.Normalize()
	if err := req.Validate(s.maxQuantity, false); err != nil {
		result.State = StateRejected
		return result, status.WithReason(status.ErrInvalidRequest, err.Error())
	}

	result.State = StateVerified
	return s.issue(ctx, result, req, models.DebugReference, sourceDebug)
}

// issue runs detached from ctx cancellation: once issuance starts, the whole
// batch is written and notified even if the HTTP client goes away.
func (s *IssuanceService) issue(ctx context.Context, result *IssuanceResult, req models.PurchaseRequest, reference, source string) (*IssuanceResult, error) {
	ctx = context.WithoutCancel(ctx)
	result.State = StateIssuing
	result.Tickets = make([]models.Ticket, 0, req.Quantity)

	for i := 0; i < req.Quantity; i++ {
		ticket, err := s.createTicket(ctx, req, reference)
		if err != nil {
			result.State = StateFailed
			s.monitor.TrackIssued(source, len(result.Tickets))
			s.monitor.TrackPurchase("issuance_failed")
			slog.Error("Ticket issuance failed",
				"purchase", result.PurchaseID,
				"reference", reference,
				"issued", len(result.Tickets),
				"requested", req.Quantity,
				"error", err,
			)
			return result, err
		}
		result.Tickets = append(result.Tickets, *ticket)
	}

	result.State = StateIssued
	s.monitor.TrackIssued(source, len(result.Tickets))
	s.monitor.TrackPurchase("issued")
	slog.Info("Tickets issued", "purchase", result.PurchaseID, "reference", reference, "count", len(result.Tickets), "email", req.Email)
	s.feed.TicketsIssued(ctx, reference, result.Tickets)

	result.State = StateNotifying
	if err := s.notifier.SendTickets(ctx, req.Email, req.Name, models.TicketIDs(result.Tickets)); err != nil {
		result.NotifyError = err
		s.monitor.TrackNotification("failed")
		slog.Warn("Tickets issued but not delivered", "purchase", result.PurchaseID, "reference", reference, "email", req.Email, "error", err)
	} else {
		result.Notified = true
		s.monitor.TrackNotification("sent")
	}

	result.State = StateDone
	return result, nil
}

// createTicket persists one ticket, drawing a fresh number whenever the
// store reports a collision.
func (s *IssuanceService) createTicket(ctx context.Context, req models.PurchaseRequest, reference string) (*models.Ticket, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		id, err := s.codec.Generate(req.Quantity)
		if err != nil {
			return nil, err
		}

		ticket := &models.Ticket{
			ID:               id,
			HolderName:       req.Name,
			HolderEmail:      req.Email,
			IssuedAt:         s.now(),
			PaymentReference: reference,
		}

		err = s.store.Create(ctx, ticket)
		if err == nil {
			return ticket, nil
		}
		if !errors.Is(err, status.ErrDuplicateID) {
			return nil, err
		}

		s.monitor.TrackCollision()
		slog.Warn("Ticket number collision, regenerating", "ticket", id, "attempt", attempt)
	}

	return nil, fmt.Errorf("%w after %d attempts", status.ErrIDSpaceExhausted, s.maxAttempts)
}
