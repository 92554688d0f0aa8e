// Package ledger turns a group's expenses and splits into per-member balances.
//
// A positive balance means the group owes the member money; a negative balance
// means the member owes the group. All arithmetic is exact decimal arithmetic.
package ledger

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidMonth = errors.New("month must be between 1 and 12")
	ErrInvalidYear  = errors.New("year must be 1970 or later")
)

type Split struct {
	UserID uuid.UUID
	Share  decimal.Decimal
}

// Entry is one expense as seen by the ledger.
type Entry struct {
	ID        uuid.UUID
	PaidByID  uuid.UUID
	Amount    decimal.Decimal
	CreatedAt time.Time
	Splits    []Split
}

// SplitTotal is the sum of all shares of the entry.
func (e Entry) SplitTotal() decimal.Decimal {
	total := decimal.Zero
	for _, s := range e.Splits {
		total = total.Add(s.Share)
	}
	return total
}

// Balanced reports whether the shares add up to the amount exactly.
func (e Entry) Balanced() bool {
	return e.SplitTotal().Equal(e.Amount)
}

type Balances map[uuid.UUID]decimal.Decimal

// Compute folds entries into balances. Every current member starts at zero;
// payers and split users outside memberIDs still accumulate so that history
// of people who left the group is preserved. The result does not depend on
// the order of entries.
func Compute(memberIDs []uuid.UUID, entries []Entry) Balances {
	balances := make(Balances, len(memberIDs))
	for _, id := range memberIDs {
		balances[id] = decimal.Zero
	}

	for _, entry := range entries {
		balances[entry.PaidByID] = balances.Of(entry.PaidByID).Add(entry.Amount)
		for _, split := range entry.Splits {
			balances[split.UserID] = balances.Of(split.UserID).Sub(split.Share)
		}
	}

	return balances
}

// Of returns the balance for id, zero when the user never appeared.
func (b Balances) Of(id uuid.UUID) decimal.Decimal {
	if v, ok := b[id]; ok {
		return v
	}
	return decimal.Zero
}

// Total is the signed sum of all balances. It is zero whenever every entry is balanced.
func (b Balances) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range b {
		total = total.Add(v)
	}
	return total
}

// Sort orders entries chronologically with the id as tie-break.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID.String() < entries[j].ID.String()
	})
}

// MonthWindow returns the half-open UTC interval [start, end) covering the month.
func MonthWindow(month, year int) (time.Time, time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, ErrInvalidMonth
	}
	if year < 1970 {
		return time.Time{}, time.Time{}, ErrInvalidYear
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}
