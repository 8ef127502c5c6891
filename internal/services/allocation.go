package services

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/diewo77/go-fees/internal/models"
)

var hundred = decimal.NewFromInt(100)

// ProportionalSplit divides amount across balances in proportion to each
// balance's share of their total. Shares are rounded down to places decimals
// and the leftover minor units go to the largest fractional remainders, never
// past a balance, so the shares always add up to amount exactly.
// amount must be positive and not exceed the sum of balances.
func ProportionalSplit(balances []decimal.Decimal, amount decimal.Decimal, places int32) ([]decimal.Decimal, error) {
	total := decimal.Sum(decimal.Zero, balances...)
	if !amount.IsPositive() {
		return nil, &InvalidAmountError{Reason: "amount must be greater than zero"}
	}
	if amount.GreaterThan(total) {
		return nil, &InvalidAmountError{Reason: "amount " + amount.String() + " exceeds outstanding balance " + total.String()}
	}

	type part struct {
		index     int
		remainder decimal.Decimal
	}
	shares := make([]decimal.Decimal, len(balances))
	parts := make([]part, 0, len(balances))
	allocated := decimal.Zero
	for i, b := range balances {
		if !b.IsPositive() {
			shares[i] = decimal.Zero
			continue
		}
		raw := b.Mul(amount).DivRound(total, places+8)
		floor := decimal.Min(raw.RoundFloor(places), b)
		shares[i] = floor
		allocated = allocated.Add(floor)
		parts = append(parts, part{index: i, remainder: raw.Sub(floor)})
	}

	slices.SortStableFunc(parts, func(a, b part) int {
		return b.remainder.Cmp(a.remainder)
	})
	unit := decimal.New(1, -places)
	left := amount.Sub(allocated)
	for left.IsPositive() {
		progressed := false
		for _, p := range parts {
			if !left.IsPositive() {
				break
			}
			if next := shares[p.index].Add(unit); next.LessThanOrEqual(balances[p.index]) {
				shares[p.index] = next
				left = left.Sub(unit)
				progressed = true
			}
		}
		if !progressed {
			return nil, &InvalidAmountError{Reason: "amount cannot be split at the currency's minor unit"}
		}
	}
	return shares, nil
}

// InstallmentAmounts converts schedule percentages into amounts of total.
// Every installment but the last is rounded to places; the last one takes
// whatever remains so the amounts add up to total.
func InstallmentAmounts(total decimal.Decimal, percentages []decimal.Decimal, places int32) []decimal.Decimal {
	out := make([]decimal.Decimal, len(percentages))
	assigned := decimal.Zero
	for i, pct := range percentages {
		if i == len(percentages)-1 {
			out[i] = total.Sub(assigned)
			break
		}
		out[i] = total.Mul(pct).Div(hundred).Round(places)
		assigned = assigned.Add(out[i])
	}
	return out
}

// CreditInstallments applies amount to the installments with the earliest due
// date first and returns what could not be placed.
func CreditInstallments(installments []models.StudentFeeInstallment, amount decimal.Decimal) decimal.Decimal {
	order := make([]int, len(installments))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := installments[a].DueDate.Compare(installments[b].DueDate); c != 0 {
			return c
		}
		return cmp.Compare(installments[a].Position, installments[b].Position)
	})
	left := amount
	for _, i := range order {
		if !left.IsPositive() {
			break
		}
		in := &installments[i]
		open := in.Amount.Sub(in.AmountPaid)
		if !open.IsPositive() {
			continue
		}
		take := decimal.Min(open, left)
		in.AmountPaid = in.AmountPaid.Add(take)
		left = left.Sub(take)
	}
	return left
}
