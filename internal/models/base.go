package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the identity and timestamps shared by every table.
type Base struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns an id when the caller did not set one.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// All lists the models handled by AutoMigrate, parents first.
func All() []any {
	return []any{
		&User{}, &AcademicYear{}, &Class{}, &Student{},
		&FeeTemplate{}, &FeeTemplateComponent{},
		&FeeStructure{}, &FeeStructureComponent{},
		&FeeSchedule{}, &FeeScheduleInstallment{},
		&StudentFee{}, &StudentFeeComponent{}, &StudentFeeInstallment{}, &StudentFeeReminder{},
		&Payment{}, &PaymentAllocation{},
	}
}
