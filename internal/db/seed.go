package db

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/diewo77/go-fees/internal/models"
)

var baseClasses = []models.Class{
	{Name: "P1", Level: "primary"},
	{Name: "P2", Level: "primary"},
	{Name: "P3", Level: "primary"},
	{Name: "S1", Level: "secondary"},
	{Name: "S2", Level: "secondary"},
}

// Seed ensures the academic year of now and the base classes exist.
// Running it again changes nothing.
func Seed(db *gorm.DB, now time.Time) error {
	year := models.AcademicYear{
		Name:      strconv.Itoa(now.Year()),
		StartDate: time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, time.UTC),
		IsCurrent: true,
	}
	if err := db.Where("name = ?", year.Name).FirstOrCreate(&year).Error; err != nil {
		return errors.Wrap(err, "academic year")
	}
	for _, c := range baseClasses {
		if err := db.Where("name = ?", c.Name).FirstOrCreate(&c).Error; err != nil {
			return errors.Wrapf(err, "class %s", c.Name)
		}
	}
	return nil
}
