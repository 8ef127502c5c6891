package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how the money was received.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodMobileMoney  PaymentMethod = "mobile_money"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodOther        PaymentMethod = "other"
)

// PaymentMethods lists the accepted methods.
var PaymentMethods = []PaymentMethod{
	PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheck,
	PaymentMethodMobileMoney, PaymentMethodCreditCard, PaymentMethodOther,
}

// Valid returns true for a known method.
func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// PaymentStatus represents the state of a payment record.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// SyncStatus is the outcome of pushing a payment to the accounting system.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
	SyncStatusSkipped SyncStatus = "skipped"
)

// Payment is an immutable receipt of money against a student fee.
// Only the sync fields change after creation.
type Payment struct {
	Base
	StudentID       uuid.UUID       `gorm:"type:uuid;index;not null" json:"student_id"`
	StudentFeeID    uuid.UUID       `gorm:"type:uuid;index;not null" json:"student_fee_id"`
	AcademicYearID  uuid.UUID       `gorm:"type:uuid;index;not null" json:"academic_year_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	PaymentDate     time.Time       `gorm:"not null;index" json:"payment_date"`
	Method          PaymentMethod   `gorm:"size:20;not null" json:"payment_method"`
	ReferenceNumber string          `gorm:"size:40;uniqueIndex;not null" json:"reference_number"`
	ReceiptNumber   string          `gorm:"size:40;uniqueIndex;not null" json:"receipt_number"`
	Status          PaymentStatus   `gorm:"size:20;not null;index" json:"status"`
	ReceivedBy      uuid.UUID       `gorm:"type:uuid;index" json:"received_by"`
	Notes           string          `gorm:"type:text" json:"notes,omitempty"`

	ExternalPaymentID string     `gorm:"size:100" json:"external_payment_id,omitempty"`
	SyncStatus        SyncStatus `gorm:"size:20;not null" json:"sync_status"`
	SyncError         string     `gorm:"size:500" json:"sync_error,omitempty"`
	SyncedAt          *time.Time `json:"synced_at,omitempty"`

	Allocations []PaymentAllocation `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE" json:"fee_component_payments,omitempty"`
}

// PaymentAllocation is the part of a payment credited to one fee component.
type PaymentAllocation struct {
	Base
	PaymentID      uuid.UUID       `gorm:"type:uuid;index;not null" json:"-"`
	FeeComponentID uuid.UUID       `gorm:"type:uuid;not null" json:"fee_component_id"`
	Name           string          `gorm:"size:120" json:"name"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
}

// ReferenceNumber formats REF-<last 6 digits of the unix millisecond clock>-<4 digits>.
func ReferenceNumber(now time.Time, suffix int) string {
	return fmt.Sprintf("REF-%06d-%04d", now.UnixMilli()%1000000, suffix%10000)
}

// ReceiptNumber formats RCT-<YYMMDD>-<4 digits>.
func ReceiptNumber(now time.Time, suffix int) string {
	return fmt.Sprintf("RCT-%s-%04d", now.Format("060102"), suffix%10000)
}
