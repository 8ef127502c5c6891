package services

import (
	"time"

	"github.com/diewo77/go-fees/internal/models"
)

// RecomputeDerivedFields refreshes every balance and status of fee from its
// amounts and amounts paid. Components without their own due date inherit the
// fee's due date. Services call it right before each write.
func RecomputeDerivedFields(fee *models.StudentFee, now time.Time) {
	for i := range fee.Components {
		c := &fee.Components[i]
		c.Balance = c.Amount.Sub(c.AmountPaid)
		due := c.DueDate
		if due == nil {
			due = &fee.DueDate
		}
		c.Status = models.DeriveStatus(c.Balance, c.AmountPaid, due, now)
	}
	for i := range fee.Installments {
		in := &fee.Installments[i]
		in.Balance = in.Amount.Sub(in.AmountPaid)
		in.Status = models.DeriveStatus(in.Balance, in.AmountPaid, &in.DueDate, now)
	}
	fee.Balance = fee.TotalAmount.Sub(fee.AmountPaid)
	fee.Status = models.DeriveStatus(fee.Balance, fee.AmountPaid, &fee.DueDate, now)
}
