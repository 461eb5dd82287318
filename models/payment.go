package models

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/shopspring/decimal"
)

// Settlement is the gateway's confirmation that funds were captured.
type Settlement struct {
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
}

type PurchaseRequest struct {
	Reference string `json:"reference"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Quantity  int    `json:"quantity"`
}

// Normalize trims user supplied fields and defaults the quantity to one.
func (r *PurchaseRequest) Normalize() {
	r.Reference = strings.TrimSpace(r.Reference)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	if r.Quantity == 0 {
		r.Quantity = 1
	}
}

// Validate checks the request; the reference is optional only for debug
// issuance, which passes requireReference=false.
func (r PurchaseRequest) Validate(maxQuantity int, requireReference bool) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reference, validation.When(requireReference, validation.Required), validation.Length(0, 128)),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Quantity, validation.Required, validation.Min(1), validation.Max(maxQuantity)),
	)
}
