package notify

import (
	"context"
	"log/slog"
	"time"

	"ticket-gate/models"

	pubnub "github.com/pubnub/go"
)

// Publisher pushes one realtime message to a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, message map[string]any) error
}

type PubNubPublisher struct {
	PubNub *pubnub.PubNub
}

func NewPubNubPublisher(publishKey, subscribeKey, secretKey string) *PubNubPublisher {
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = publishKey
	pnConfig.SubscribeKey = subscribeKey
	pnConfig.SecretKey = secretKey

	return &PubNubPublisher{PubNub: pubnub.NewPubNub(pnConfig)}
}

func (p *PubNubPublisher) Publish(_ context.Context, channel string, message map[string]any) error {
	_, _, err := p.PubNub.Publish().
		Channel(channel).
		Message(message).
		Execute()
	return err
}

// GateFeed announces issuance and redemption to gate dashboards. A nil
// *GateFeed is valid and publishes nothing.
type GateFeed struct {
	publisher Publisher
	channel   string
}

func NewGateFeed(publisher Publisher, channel string) *GateFeed {
	if channel == "" {
		channel = "gate-activity"
	}
	return &GateFeed{publisher: publisher, channel: channel}
}

func (g *GateFeed) TicketsIssued(ctx context.Context, reference string, tickets []models.Ticket) {
	if g == nil || len(tickets) == 0 {
		return
	}
	g.publish(ctx, map[string]any{
		"type":              "tickets_issued",
		"payment_reference": reference,
		"count":             len(tickets),
		"tickets":           models.TicketIDs(tickets),
	})
}

func (g *GateFeed) TicketRedeemed(ctx context.Context, ticket *models.Ticket) {
	if g == nil || ticket == nil || ticket.RedeemedAt == nil {
		return
	}
	g.publish(ctx, map[string]any{
		"type":          "ticket_redeemed",
		"ticket_number": ticket.ID,
		"redeemed_at":   ticket.RedeemedAt.Format(time.RFC3339),
	})
}

func (g *GateFeed) publish(ctx context.Context, message map[string]any) {
	if err := g.publisher.Publish(ctx, g.channel, message); err != nil {
		slog.Warn("Failed to publish gate activity", "channel", g.channel, "type", message["type"], "error", err)
	}
}
