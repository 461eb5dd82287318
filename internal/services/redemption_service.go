package services

import (
	"context"
	"errors"
	"log/slog"

	"ticket-gate/internal/services/notify"
	"ticket-gate/internal/status"
	"ticket-gate/internal/store"
	"ticket-gate/models"
	"ticket-gate/monitoring"
)

// RedemptionService is the gate path: a syntactic check of the ticket
// number followed by the store's atomic redeem.
type RedemptionService struct {
	store   store.TicketStore
	codec   TicketCodec
	feed    *notify.GateFeed
	monitor *monitoring.Monitor
}

func NewRedemptionService(st store.TicketStore, codec TicketCodec, feed *notify.GateFeed, monitor *monitoring.Monitor) *RedemptionService {
	return &RedemptionService{
		store:   st,
		codec:   codec,
		feed:    feed,
		monitor: monitor,
	}
}

// Redeem marks the ticket used exactly once. On status.ErrAlreadyRedeemed
// the returned ticket carries the time of the first redemption.
func (s *RedemptionService) Redeem(ctx context.Context, raw string) (*models.Ticket, error) {
	id, err := s.codec.Parse(raw)
	if err != nil {
		s.monitor.TrackRedemption("invalid_format")
		return nil, err
	}

	ticket, err := s.store.Redeem(ctx, id)
	switch {
	case err == nil:
		s.monitor.TrackRedemption("success")
		slog.Info("Ticket redeemed", "ticket", id)
		s.feed.TicketRedeemed(ctx, ticket)
		return ticket, nil
	case errors.Is(err, status.ErrAlreadyRedeemed):
		s.monitor.TrackRedemption("already_redeemed")
		slog.Info("Ticket already used", "ticket", id, "used_at", ticket.RedeemedAt)
		return ticket, err
	case errors.Is(err, status.ErrNotFound):
		s.monitor.TrackRedemption("not_found")
		return nil, err
	default:
		s.monitor.TrackRedemption("error")
		slog.Error("Ticket redemption failed", "ticket", id, "error", err)
		return nil, err
	}
}

// Check reports the ticket's current state without redeeming it.
func (s *RedemptionService) Check(ctx context.Context, raw string) (*models.Ticket, error) {
	id, err := s.codec.Parse(raw)
	if err != nil {
		return nil, err
	}
	return s.store.Lookup(ctx, id)
}

func (s *RedemptionService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
