package models

import (
	"time"

	"github.com/google/uuid"
)

// StudentStatus is the enrolment state of a student.
type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "active"
	StudentStatusInactive  StudentStatus = "inactive"
	StudentStatusGraduated StudentStatus = "graduated"
)

// AcademicYear is a school year such as "2025/2026".
type AcademicYear struct {
	Base
	Name      string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null" json:"end_date"`
	IsCurrent bool      `gorm:"not null" json:"is_current"`
}

// Class groups students of one level within the school.
type Class struct {
	Base
	Name  string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Level string `gorm:"size:50" json:"level,omitempty"`
}

// Student is the directory record the fee engine reads.
// Phone and Email are used as reminder recipients.
type Student struct {
	Base
	Name         string        `gorm:"size:255;not null" json:"name"`
	ClassID      uuid.UUID     `gorm:"type:uuid;index;not null" json:"class_id"`
	Status       StudentStatus `gorm:"size:20;not null;index" json:"status"`
	GuardianName string        `gorm:"size:255" json:"guardian_name,omitempty"`
	Phone        string        `gorm:"size:30" json:"phone,omitempty"`
	Email        string        `gorm:"size:255" json:"email,omitempty"`
}

// IsActive returns true if the student is currently enrolled.
func (s *Student) IsActive() bool {
	return s.Status == StudentStatusActive
}
