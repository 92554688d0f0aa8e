// Package report renders group expense reports as PDF documents.
package report

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Member struct {
	ID    uuid.UUID
	Name  string
	Email string
	Role  string
}

type Line struct {
	Date   time.Time
	Title  string
	Amount decimal.Decimal
	PaidBy string
}

// Document is everything a renderer needs. Expenses are already in display order.
type Document struct {
	GroupName   string
	Period      string
	GeneratedAt time.Time
	Members     []Member
	Balances    map[uuid.UUID]decimal.Decimal
	Expenses    []Line
}

type Renderer interface {
	Render(doc Document) ([]byte, error)
}

// FormatAmount renders a value the way the Indonesian locale formats money:
// dot thousands separator, comma decimal separator, two decimals.
func FormatAmount(value decimal.Decimal, currency string) string {
	prefix := currency
	if strings.EqualFold(currency, "IDR") {
		prefix = "Rp"
	}

	negative := value.IsNegative()
	fixed := value.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(digit)
	}

	out := prefix + " " + grouped.String() + "," + frac
	if negative {
		return "-" + out
	}
	return out
}
