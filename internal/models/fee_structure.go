package models

import (
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// StructureStatus represents the lifecycle of a fee structure.
type StructureStatus string

const (
	StructureStatusDraft    StructureStatus = "draft"
	StructureStatusActive   StructureStatus = "active"
	StructureStatusArchived StructureStatus = "archived"
)

// TemplateStatus represents the lifecycle of a fee template.
type TemplateStatus string

const (
	TemplateStatusActive   TemplateStatus = "active"
	TemplateStatusInactive TemplateStatus = "inactive"
	TemplateStatusDraft    TemplateStatus = "draft"
)

// FeeTemplate is a reusable list of components that can be cloned into structures.
type FeeTemplate struct {
	Base
	Name              string                         `gorm:"size:255;not null" json:"name"`
	Description       string                         `gorm:"type:text" json:"description,omitempty"`
	Status            TemplateStatus                 `gorm:"size:20;not null" json:"status"`
	TotalAmount       decimal.Decimal                `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	ApplicableClasses datatypes.JSONSlice[uuid.UUID] `json:"applicable_classes,omitempty"`
	AcademicYearID    *uuid.UUID                     `gorm:"type:uuid;index" json:"academic_year_id,omitempty"`
	CreatedBy         uuid.UUID                      `gorm:"type:uuid" json:"created_by"`
	UpdatedBy         uuid.UUID                      `gorm:"type:uuid" json:"updated_by"`

	Components []FeeTemplateComponent `gorm:"foreignKey:FeeTemplateID;constraint:OnDelete:CASCADE" json:"components"`
}

// FeeTemplateComponent is a component row of a template.
type FeeTemplateComponent struct {
	Base
	FeeTemplateID uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`
	Position      int       `gorm:"not null" json:"position"`
	FeeComponent  `gorm:"embedded"`
}

// AppliesTo reports whether a structure for classID may be cloned from the template.
// An empty class list means every class.
func (t *FeeTemplate) AppliesTo(classID uuid.UUID) bool {
	return len(t.ApplicableClasses) == 0 || slices.Contains(t.ApplicableClasses, classID)
}

// ComponentValues returns the embedded components in position order.
func (t *FeeTemplate) ComponentValues() []FeeComponent {
	out := make([]FeeComponent, len(t.Components))
	for i, c := range t.Components {
		out[i] = c.FeeComponent
	}
	return out
}

// FeeStructure is the nominal charge for one class in one academic year.
type FeeStructure struct {
	Base
	Name           string          `gorm:"size:255;not null" json:"name"`
	Description    string          `gorm:"type:text" json:"description,omitempty"`
	AcademicYearID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_fee_structure_year_class" json:"academic_year_id"`
	ClassID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_fee_structure_year_class" json:"class_id"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	Status         StructureStatus `gorm:"size:20;not null" json:"status"`
	TemplateID     *uuid.UUID      `gorm:"type:uuid;index" json:"template_id,omitempty"`
	CreatedBy      uuid.UUID       `gorm:"type:uuid" json:"created_by"`
	UpdatedBy      uuid.UUID       `gorm:"type:uuid" json:"updated_by"`

	Components []FeeStructureComponent `gorm:"foreignKey:FeeStructureID;constraint:OnDelete:CASCADE" json:"components"`
}

// FeeStructureComponent is a component row of a structure.
type FeeStructureComponent struct {
	Base
	FeeStructureID uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`
	Position       int       `gorm:"not null" json:"position"`
	FeeComponent   `gorm:"embedded"`
}

// IsActive returns true if students can be assigned to the structure.
func (s *FeeStructure) IsActive() bool {
	return s.Status == StructureStatusActive
}

// CanEdit returns true while the structure has not been archived.
func (s *FeeStructure) CanEdit() bool {
	return s.Status != StructureStatusArchived
}

// ComponentValues returns the embedded components in position order.
func (s *FeeStructure) ComponentValues() []FeeComponent {
	out := make([]FeeComponent, len(s.Components))
	for i, c := range s.Components {
		out[i] = c.FeeComponent
	}
	return out
}
