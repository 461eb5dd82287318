package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ticket-gate/internal/services"
	"ticket-gate/internal/status"
	"ticket-gate/internal/ticketcode"
	"ticket-gate/models"

	"github.com/pocketbase/pocketbase/core"
)

type TicketHandler struct {
	issuance   *services.IssuanceService
	redemption *services.RedemptionService
}

func NewTicketHandler(issuance *services.IssuanceService, redemption *services.RedemptionService) *TicketHandler {
	return &TicketHandler{
		issuance:   issuance,
		redemption: redemption,
	}
}

type ticketInfo struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PurchaseDate time.Time `json:"purchase_date"`
	Section      string    `json:"section"`
}

func newTicketInfo(t *models.Ticket) ticketInfo {
	return ticketInfo{
		Name:         t.HolderName,
		Email:        t.HolderEmail,
		PurchaseDate: t.IssuedAt,
		Section:      ticketcode.Section(t.ID),
	}
}

func failure(e *core.RequestEvent, code int, state, message string) error {
	return e.JSON(code, map[string]any{
		"status":  state,
		"message": message,
	})
}

// VerifyPayment - POST /verify
func (h *TicketHandler) VerifyPayment(e *core.RequestEvent) error {
	var req models.PurchaseRequest
	if err := e.BindBody(&req); err != nil {
		return failure(e, http.StatusBadRequest, "error", "Invalid request body.")
	}
	req.Normalize()

	result, err := h.issuance.Purchase(e.Request.Context(), req)
	if err != nil {
		return purchaseFailure(e, err)
	}

	message := fmt.Sprintf("Payment verified and tickets sent to %s.", req.Email)
	if !result.Notified {
		message = "Payment verified. Tickets were issued but the email could not be delivered; keep these ticket numbers."
	}

	return e.JSON(http.StatusOK, map[string]any{
		"status":      "success",
		"message":     message,
		"purchase_id": result.PurchaseID,
		"tickets":     models.TicketNumbers(result.Tickets),
		"notified":    result.Notified,
	})
}

// DebugIssue - issue and email tickets without a payment; development only
func (h *TicketHandler) DebugIssue(e *core.RequestEvent) error {
	var req models.PurchaseRequest
	if err := e.BindBody(&req); err != nil {
		return failure(e, http.StatusBadRequest, "error", "Invalid request body.")
	}
	req.Normalize()

	result, err := h.issuance.IssueUnverified(e.Request.Context(), req)
	if err != nil {
		return purchaseFailure(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"status":   "success",
		"message":  fmt.Sprintf("Debug tickets issued for %s.", req.Email),
		"tickets":  models.TicketNumbers(result.Tickets),
		"notified": result.Notified,
	})
}

func purchaseFailure(e *core.RequestEvent, err error) error {
	switch {
	case errors.Is(err, status.ErrInvalidRequest):
		return failure(e, http.StatusBadRequest, "error", status.Reason(err))
	case errors.Is(err, status.ErrNotSettled):
		message := status.Reason(err)
		if message == "" {
			message = "Payment verification failed."
		}
		return failure(e, http.StatusPaymentRequired, "failed", message)
	case errors.Is(err, status.ErrVerifierUnavailable):
		return failure(e, http.StatusServiceUnavailable, "error", "Payment verification is temporarily unavailable. Please try again.")
	default:
		slog.Error("Purchase failed", "error", err)
		return failure(e, http.StatusInternalServerError, "error", "Server error while issuing tickets.")
	}
}

// RedeemTicket - GET /verify-ticket/{ticketNumber}
func (h *TicketHandler) RedeemTicket(e *core.RequestEvent) error {
	ticketNumber := e.Request.PathValue("ticketNumber")

	ticket, err := h.redemption.Redeem(e.Request.Context(), ticketNumber)
	switch {
	case err == nil:
		return e.JSON(http.StatusOK, map[string]any{
			"status":      "success",
			"message":     "Ticket verified successfully.",
			"ticket_info": newTicketInfo(ticket),
		})
	case errors.Is(err, status.ErrAlreadyRedeemed):
		return e.JSON(http.StatusConflict, map[string]any{
			"status":    "error",
			"message":   "Ticket already used.",
			"used_date": ticket.RedeemedAt,
		})
	default:
		return ticketFailure(e, err)
	}
}

// GetTicket - GET /api/v1/tickets/{ticketNumber}
func (h *TicketHandler) GetTicket(e *core.RequestEvent) error {
	ticket, err := h.redemption.Check(e.Request.Context(), e.Request.PathValue("ticketNumber"))
	if err != nil {
		return ticketFailure(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"status":        "success",
		"ticket_number": ticket.ID,
		"used":          ticket.Redeemed,
		"used_date":     ticket.RedeemedAt,
		"ticket_info":   newTicketInfo(ticket),
	})
}

func ticketFailure(e *core.RequestEvent, err error) error {
	switch {
	case errors.Is(err, status.ErrInvalidFormat):
		return failure(e, http.StatusBadRequest, "error", "Invalid ticket format.")
	case errors.Is(err, status.ErrNotFound):
		return failure(e, http.StatusNotFound, "error", "Ticket not found.")
	default:
		slog.Error("Ticket lookup failed", "error", err)
		return failure(e, http.StatusInternalServerError, "error", "Server error while checking ticket.")
	}
}

// Health - GET /health
func (h *TicketHandler) Health(e *core.RequestEvent) error {
	if err := h.redemption.Ping(e.Request.Context()); err != nil {
		return e.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
