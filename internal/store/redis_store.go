package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ticket-gate/internal/status"
	"ticket-gate/models"
	"ticket-gate/utils"

	"github.com/redis/go-redis/v9"
)

type redisTicket struct {
	ID               string `json:"ticket_number"`
	HolderName       string `json:"name"`
	HolderEmail      string `json:"email"`
	PaymentReference string `json:"payment_reference"`
	IssuedAt         int64  `json:"issued_at"`
}

// RedisStore keeps the immutable ticket fields under ticket:<id> and the
// redemption stamp under ticket:<id>:redeemed_at. Both keys are written with
// SETNX, which gives atomic create and atomic check-and-set redeem without
// WATCH transactions. Keys never expire.
type RedisStore struct {
	Redis *redis.Client
	clock Clock
}

func NewRedisStore(client *redis.Client, clock Clock) *RedisStore {
	return &RedisStore{Redis: client, clock: clock}
}

func ticketKey(id string) string {
	return fmt.Sprintf("ticket:%s", id)
}

func redeemedKey(id string) string {
	return fmt.Sprintf("ticket:%s:redeemed_at", id)
}

func (s *RedisStore) Create(ctx context.Context, ticket *models.Ticket) error {
	issuedAt := ticket.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = now(s.clock)
	}
	issuedAt = fromMillis(issuedAt.UnixMilli())

	data, err := json.Marshal(redisTicket{
		ID:               ticket.ID,
		HolderName:       ticket.HolderName,
		HolderEmail:      ticket.HolderEmail,
		PaymentReference: ticket.PaymentReference,
		IssuedAt:         issuedAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", ticket.ID, err)
	}

	created, err := s.Redis.SetNX(ctx, ticketKey(ticket.ID), string(data), 0).Result()
	if err != nil {
		return fmt.Errorf("store: setnx %s: %w", ticket.ID, err)
	}
	if !created {
		return fmt.Errorf("%w: %s", status.ErrDuplicateID, ticket.ID)
	}

	ticket.IssuedAt = issuedAt
	ticket.Redeemed = false
	ticket.RedeemedAt = nil
	return nil
}

func (s *RedisStore) load(ctx context.Context, id string) (*models.Ticket, error) {
	raw, err := s.Redis.Get(ctx, ticketKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", status.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}

	var rt redisTicket
	if err := json.Unmarshal([]byte(raw), &rt); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", id, err)
	}

	return &models.Ticket{
		ID:               rt.ID,
		HolderName:       rt.HolderName,
		HolderEmail:      rt.HolderEmail,
		PaymentReference: rt.PaymentReference,
		IssuedAt:         fromMillis(rt.IssuedAt),
	}, nil
}

func (s *RedisStore) redeemedAt(ctx context.Context, ticket *models.Ticket) error {
	ms, err := s.Redis.Get(ctx, redeemedKey(ticket.ID)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: get redeemed %s: %w", ticket.ID, err)
	}
	ticket.MarkRedeemed(fromMillis(ms))
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.redeemedAt(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *RedisStore) Redeem(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	at := now(s.clock)
	won, err := s.Redis.SetNX(ctx, redeemedKey(id), at.UnixMilli(), 0).Result()
	if err != nil {
		return nil, fmt.Errorf("store: setnx redeemed %s: %w", id, err)
	}
	if won {
		ticket.MarkRedeemed(at)
		return ticket, nil
	}

	if err := s.redeemedAt(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, fmt.Errorf("%w: %s", status.ErrAlreadyRedeemed, id)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return utils.RedisHealthCheck(ctx, s.Redis)
}
