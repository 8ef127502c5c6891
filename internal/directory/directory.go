// Package directory reads students and classes for the fee engine.
package directory

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/diewo77/go-fees/internal/models"
	"github.com/diewo77/go-fees/internal/services"
)

// Directory is the gorm backed student lookup.
type Directory struct {
	db *gorm.DB
}

var _ services.Directory = (*Directory)(nil)

func New(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// GetStudent returns the student with id, or a services.NotFoundError.
func (d *Directory) GetStudent(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	var st models.Student
	if err := d.db.WithContext(ctx).First(&st, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &services.NotFoundError{Entity: "student", ID: id}
		}
		return nil, errors.Wrap(err, "load student")
	}
	return &st, nil
}

// ListActiveStudents returns active students of one class, or of every class when classID is nil.
func (d *Directory) ListActiveStudents(ctx context.Context, classID *uuid.UUID) ([]models.Student, error) {
	q := d.db.WithContext(ctx).Where("status = ?", models.StudentStatusActive)
	if classID != nil {
		q = q.Where("class_id = ?", *classID)
	}
	var out []models.Student
	if err := q.Order("name").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "list students")
	}
	return out, nil
}

// CreateStudent enrols a student.
func (d *Directory) CreateStudent(ctx context.Context, st *models.Student) error {
	if st.Status == "" {
		st.Status = models.StudentStatusActive
	}
	return errors.Wrap(d.db.WithContext(ctx).Create(st).Error, "create student")
}

// ListClasses returns every class by name.
func (d *Directory) ListClasses(ctx context.Context) ([]models.Class, error) {
	var out []models.Class
	if err := d.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "list classes")
	}
	return out, nil
}

// ListAcademicYears returns academic years, newest first.
func (d *Directory) ListAcademicYears(ctx context.Context) ([]models.AcademicYear, error) {
	var out []models.AcademicYear
	if err := d.db.WithContext(ctx).Order("start_date DESC").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "list academic years")
	}
	return out, nil
}
