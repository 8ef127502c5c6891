package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StudentFee is the obligation and payment state of one student for one academic year.
// Balance and Status fields are derived; they are recomputed before every write.
type StudentFee struct {
	Base
	StudentID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_student_fee_student_year" json:"student_id"`
	AcademicYearID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_student_fee_student_year;index" json:"academic_year_id"`
	FeeStructureID uuid.UUID       `gorm:"type:uuid;index;not null" json:"fee_structure_id"`
	ClassID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"class_id"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	AmountPaid     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount_paid"`
	Balance        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"balance"`
	DueDate        time.Time       `gorm:"not null" json:"due_date"`
	Status         FeeStatus       `gorm:"size:20;not null;index" json:"status"`
	FeeScheduleID  *uuid.UUID      `gorm:"type:uuid;index" json:"fee_schedule_id,omitempty"`

	// Correlation ids in the external accounting system.
	ExternalCustomerID string `gorm:"size:100" json:"external_customer_id,omitempty"`
	ExternalInvoiceID  string `gorm:"size:100" json:"external_invoice_id,omitempty"`

	// Version guards read-modify-write cycles against concurrent writers.
	Version   int       `gorm:"not null" json:"version"`
	CreatedBy uuid.UUID `gorm:"type:uuid" json:"created_by"`
	UpdatedBy uuid.UUID `gorm:"type:uuid" json:"updated_by"`

	Components   []StudentFeeComponent   `gorm:"foreignKey:StudentFeeID;constraint:OnDelete:CASCADE" json:"fee_components"`
	Installments []StudentFeeInstallment `gorm:"foreignKey:StudentFeeID;constraint:OnDelete:CASCADE" json:"installments,omitempty"`
	Reminders    []StudentFeeReminder    `gorm:"foreignKey:StudentFeeID;constraint:OnDelete:CASCADE" json:"reminders,omitempty"`
}

// StudentFeeComponent is a structure component copied onto a student fee.
type StudentFeeComponent struct {
	Base
	StudentFeeID uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`
	Position     int       `gorm:"not null" json:"position"`
	FeeComponent `gorm:"embedded"`
	AmountPaid   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount_paid"`
	Balance      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"balance"`
	Status       FeeStatus       `gorm:"size:20;not null" json:"status"`
}

// StudentFeeInstallment is a schedule installment applied to a student fee.
type StudentFeeInstallment struct {
	Base
	StudentFeeID uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`
	Position     int       `gorm:"not null" json:"position"`
	Installment  `gorm:"embedded"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	AmountPaid   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount_paid"`
	Balance      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"balance"`
	Status       FeeStatus       `gorm:"size:20;not null" json:"status"`
}

// ReminderType tells how a reminder was triggered.
type ReminderType string

const (
	ReminderTypeManual    ReminderType = "manual"
	ReminderTypeAutomatic ReminderType = "automatic"
)

// StudentFeeReminder records one reminder sent about a student fee.
type StudentFeeReminder struct {
	Base
	StudentFeeID  uuid.UUID    `gorm:"type:uuid;index;not null" json:"-"`
	InstallmentID *uuid.UUID   `gorm:"type:uuid" json:"installment_id,omitempty"`
	Type          ReminderType `gorm:"size:20;not null" json:"type"`
	Channel       string       `gorm:"size:20;not null" json:"channel"`
	Recipient     string       `gorm:"size:255" json:"recipient"`
	Message       string       `gorm:"type:text;not null" json:"message"`
	SentBy        uuid.UUID    `gorm:"type:uuid" json:"sent_by"`
	SentAt        time.Time    `gorm:"not null" json:"sent_at"`
	Delivered     bool         `gorm:"not null" json:"delivered"`
	Error         string       `gorm:"size:500" json:"error,omitempty"`
}

// IsPaid returns true once nothing is owed.
func (f *StudentFee) IsPaid() bool {
	return f.Status == FeeStatusPaid
}

// Component returns the component with the given id.
func (f *StudentFee) Component(id uuid.UUID) (*StudentFeeComponent, bool) {
	for i := range f.Components {
		if f.Components[i].ID == id {
			return &f.Components[i], true
		}
	}
	return nil, false
}

// InstallmentTotal sums the applied installment amounts.
func (f *StudentFee) InstallmentTotal() decimal.Decimal {
	total := decimal.Zero
	for _, in := range f.Installments {
		total = total.Add(in.Amount)
	}
	return total
}
