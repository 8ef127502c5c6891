package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeSchedule is a percentage based installment plan for one academic year.
// A nil ClassID targets every class of the year.
type FeeSchedule struct {
	Base
	Name            string     `gorm:"size:255;not null" json:"name"`
	Description     string     `gorm:"type:text" json:"description,omitempty"`
	AcademicYearID  uuid.UUID  `gorm:"type:uuid;index;not null" json:"academic_year_id"`
	ClassID         *uuid.UUID `gorm:"type:uuid;index" json:"class_id,omitempty"`
	EnableReminders bool       `gorm:"not null" json:"enable_reminders"`
	ReminderDays    int        `gorm:"not null" json:"reminder_days"`
	IsActive        bool       `gorm:"not null" json:"is_active"`
	CreatedBy       uuid.UUID  `gorm:"type:uuid" json:"created_by"`
	UpdatedBy       uuid.UUID  `gorm:"type:uuid" json:"updated_by"`

	Installments []FeeScheduleInstallment `gorm:"foreignKey:FeeScheduleID;constraint:OnDelete:CASCADE" json:"installments"`
}

// FeeScheduleInstallment is an installment row of a schedule.
type FeeScheduleInstallment struct {
	Base
	FeeScheduleID uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`
	Position      int       `gorm:"not null" json:"position"`
	Installment   `gorm:"embedded"`
}

// TotalPercentage sums the installment percentages.
func (s *FeeSchedule) TotalPercentage() decimal.Decimal {
	total := decimal.Zero
	for _, in := range s.Installments {
		total = total.Add(in.Percentage)
	}
	return total
}
