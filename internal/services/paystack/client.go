// Package paystack verifies settled transactions against the Paystack API.
package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ticket-gate/internal/status"
	"ticket-gate/models"
	"ticket-gate/utils"

	"github.com/shopspring/decimal"
)

const DefaultBaseURL = "https://api.paystack.co"

type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

type Client struct {
	// baseURL is the base url of the Paystack API.
	baseURL string

	// secretKey authenticates every call as a bearer token.
	secretKey string

	// timeout bounds one verification, including reading the body.
	timeout time.Duration

	// breaker stops hammering the gateway while it is failing.
	breaker *utils.CircuitBreaker

	// hc is the http client.
	hc *http.Client
}

func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:   baseURL,
		secretKey: cfg.SecretKey,
		timeout:   timeout,
		breaker:   utils.NewCircuitBreaker("paystack", utils.DefaultBreakerSettings()),
		hc: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// verifyReply mirrors GET /transaction/verify/:reference.
type verifyReply struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    *struct {
		Status          string `json:"status"`
		Reference       string `json:"reference"`
		Amount          int64  `json:"amount"`
		Currency        string `json:"currency"`
		PaidAt          string `json:"paid_at"`
		GatewayResponse string `json:"gateway_response"`
	} `json:"data"`
}

// Verify reports a Settlement when the transaction succeeded. A transaction
// the gateway knows but has not captured yields status.ErrNotSettled; any
// transport, configuration or protocol problem yields
// status.ErrVerifierUnavailable. Nothing is retried here.
func (c *Client) Verify(ctx context.Context, reference string) (*models.Settlement, error) {
	if c.secretKey == "" {
		return nil, fmt.Errorf("%w: paystack secret key not configured", status.ErrVerifierUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var settlement *models.Settlement
	var notSettled error
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		settlement, err = c.verify(ctx, reference)
		if errors.Is(err, status.ErrNotSettled) {
			// a definite answer from the gateway is not a gateway failure
			notSettled = err
			return nil
		}
		return err
	})
	if notSettled != nil {
		return nil, notSettled
	}
	if err != nil {
		if errors.Is(err, status.ErrVerifierUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", status.ErrVerifierUnavailable, err)
	}
	return settlement, nil
}

func (c *Client) verify(ctx context.Context, reference string) (*models.Settlement, error) {
	endpoint := fmt.Sprintf("%s/transaction/verify/%s", c.baseURL, url.PathEscape(reference))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("paystack: http.NewReq: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paystack: http.Do: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: paystack rejected credentials (%d)", status.ErrVerifierUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusNotFound:
		// only 200, 400 and 404 are answers about the transaction itself
		return nil, fmt.Errorf("paystack: http.StatusCode: %d", resp.StatusCode)
	}

	var reply verifyReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&reply); err != nil {
		return nil, fmt.Errorf("paystack: json.Decode: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !reply.Status || reply.Data == nil || reply.Data.Status != "success" {
		msg := reply.Message
		if reply.Data != nil && reply.Data.GatewayResponse != "" {
			msg = reply.Data.GatewayResponse
		}
		if msg == "" {
			msg = "Payment verification failed."
		}
		slog.Info("paystack transaction not settled", "reference", reference, "http_status", resp.StatusCode, "message", msg)
		return nil, status.WithReason(status.ErrNotSettled, msg)
	}

	settlement := &models.Settlement{
		Reference: reference,
		// amounts come in the currency's minor unit (kobo, pesewas)
		Amount:   decimal.New(reply.Data.Amount, -2),
		Currency: reply.Data.Currency,
	}
	if reply.Data.Reference != "" {
		settlement.Reference = reply.Data.Reference
	}
	if paidAt, err := time.Parse(time.RFC3339, reply.Data.PaidAt); err == nil {
		paidAt = paidAt.UTC()
		settlement.PaidAt = &paidAt
	}
	return settlement, nil
}
