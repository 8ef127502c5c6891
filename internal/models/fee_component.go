package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeStatus is the payment state of a fee, a component or an installment.
type FeeStatus string

const (
	FeeStatusPending FeeStatus = "pending"
	FeeStatusPartial FeeStatus = "partial"
	FeeStatusPaid    FeeStatus = "paid"
	FeeStatusOverdue FeeStatus = "overdue"
)

// DeriveStatus applies the status rule shared by fees, components and installments:
// paid when nothing is owed, partial once something was paid, overdue when
// the due date has passed with nothing paid, pending otherwise.
func DeriveStatus(balance, amountPaid decimal.Decimal, dueDate *time.Time, now time.Time) FeeStatus {
	switch {
	case balance.Sign() <= 0:
		return FeeStatusPaid
	case amountPaid.Sign() > 0:
		return FeeStatusPartial
	case dueDate != nil && dueDate.Before(now):
		return FeeStatusOverdue
	default:
		return FeeStatusPending
	}
}

// FeeComponent is one named charge. It is embedded in template, structure
// and student fee rows.
type FeeComponent struct {
	Name        string          `gorm:"size:120;not null" json:"name"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Description string          `gorm:"size:500" json:"description,omitempty"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	IsOptional  bool            `gorm:"not null" json:"is_optional"`
}

// Installment is one scheduled portion, expressed as a percentage of the total.
type Installment struct {
	Name       string          `gorm:"size:120;not null" json:"name"`
	DueDate    time.Time       `gorm:"not null" json:"due_date"`
	Percentage decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"percentage"`
}

// SumAmounts totals the component amounts.
func SumAmounts(components []FeeComponent) decimal.Decimal {
	total := decimal.Zero
	for _, c := range components {
		total = total.Add(c.Amount)
	}
	return total
}
