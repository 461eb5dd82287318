// Package ticketcode generates and syntactically checks ticket numbers of
// the form SP-<7 digits>-<2 digit quantity>.
package ticketcode

import (
	"fmt"
	"strings"

	"ticket-gate/internal/status"
	"ticket-gate/utils"
)

const (
	Prefix       = "SP"
	baseLength   = 7
	qtyLength    = 2
	maxQtyDigits = 99
)

// Source produces the random base digits of a ticket number.
type Source func(n int) (string, error)

// Codec generates and parses ticket numbers. The zero value uses
// crypto/rand digits.
type Codec struct {
	source Source
}

func New(source Source) *Codec {
	return &Codec{source: source}
}

// Generate returns a fresh ticket number. The quantity is embedded for
// display only and is clamped to 0..99; the caller still issues the real
// quantity of tickets.
func (c *Codec) Generate(quantity int) (string, error) {
	source := utils.GenerateDigits
	if c != nil && c.source != nil {
		source = c.source
	}

	base, err := source(baseLength)
	if err != nil {
		return "", fmt.Errorf("ticketcode: random digits: %w", err)
	}
	if len(base) != baseLength || !allDigits(base) {
		return "", fmt.Errorf("ticketcode: random source returned %q", base)
	}

	return fmt.Sprintf("%s-%s-%02d", Prefix, base, clampQuantity(quantity)), nil
}

// Parse accepts only SP-<7 digits>-<2 digits> and returns the number
// unchanged. It does not consult any store.
func (c *Codec) Parse(s string) (string, error) {
	return Parse(s)
}

func Generate(quantity int) (string, error) {
	return (*Codec)(nil).Generate(quantity)
}

func Parse(s string) (string, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: %q", status.ErrInvalidFormat, s)
	}

	prefix, base, qty := parts[0], parts[1], parts[2]
	if prefix != Prefix || len(base) != baseLength || len(qty) != qtyLength {
		return "", fmt.Errorf("%w: %q", status.ErrInvalidFormat, s)
	}
	if !allDigits(base) || !allDigits(qty) {
		return "", fmt.Errorf("%w: %q", status.ErrInvalidFormat, s)
	}

	return s, nil
}

// Quantity returns the quantity digits of a well-formed ticket number,
// or -1. The value is descriptive and never used for access decisions.
func Quantity(id string) int {
	if _, err := Parse(id); err != nil {
		return -1
	}
	q := id[len(id)-qtyLength:]
	return int(q[0]-'0')*10 + int(q[1]-'0')
}

// Section returns the prefix field reported to gate staff.
func Section(id string) string {
	section, _, _ := strings.Cut(id, "-")
	return section
}

func clampQuantity(q int) int {
	if q < 0 {
		return 0
	}
	if q > maxQtyDigits {
		return maxQtyDigits
	}
	return q
}

// allDigits reports ASCII digits only; unicode digits are not accepted.
func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
