package ledger

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer is one suggested payment that moves balances toward zero.
type Transfer struct {
	FromUserID uuid.UUID       `json:"fromUserID"`
	ToUserID   uuid.UUID       `json:"toUserID"`
	Amount     decimal.Decimal `json:"amount"`
}

type position struct {
	id     uuid.UUID
	amount decimal.Decimal
}

// Settle suggests transfers that clear the balances, greedily matching the
// largest debtor with the largest creditor. Output is deterministic for a
// given set of balances. Balances that do not sum to zero leave the excess
// unsettled.
func Settle(b Balances) []Transfer {
	var creditors, debtors []position
	for id, v := range b {
		switch v.Sign() {
		case 1:
			creditors = append(creditors, position{id: id, amount: v})
		case -1:
			debtors = append(debtors, position{id: id, amount: v.Neg()})
		}
	}
	byAmountDesc(creditors)
	byAmountDesc(debtors)

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := decimal.Min(debtors[i].amount, creditors[j].amount)
		transfers = append(transfers, Transfer{
			FromUserID: debtors[i].id,
			ToUserID:   creditors[j].id,
			Amount:     amount,
		})

		debtors[i].amount = debtors[i].amount.Sub(amount)
		creditors[j].amount = creditors[j].amount.Sub(amount)
		if debtors[i].amount.IsZero() {
			i++
		}
		if creditors[j].amount.IsZero() {
			j++
		}
	}

	return transfers
}

func byAmountDesc(positions []position) {
	sort.Slice(positions, func(i, j int) bool {
		if c := positions[i].amount.Cmp(positions[j].amount); c != 0 {
			return c > 0
		}
		return positions[i].id.String() < positions[j].id.String()
	})
}
