package services

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/diewo77/go-fees/internal/models"
)

// Directory is the student/class lookup the fee engine depends on.
type Directory interface {
	GetStudent(ctx context.Context, id uuid.UUID) (*models.Student, error)
	ListActiveStudents(ctx context.Context, classID *uuid.UUID) ([]models.Student, error)
}

// Options carries the settings shared by every service.
type Options struct {
	Logger *zap.Logger
	// Now is the clock used for status derivation and numbering.
	Now func() time.Time
	// RandIntn returns a number in [0, n) for receipt suffixes.
	RandIntn func(n int) int
	// Places is the number of decimals money is kept at.
	Places          int32
	Currency        string
	NumberRetries   int
	DefaultDueMonth time.Month
	DefaultDueDay   int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.RandIntn == nil {
		o.RandIntn = rand.IntN
	}
	if o.Places <= 0 {
		o.Places = 2
	}
	if o.Currency == "" {
		o.Currency = "UGX"
	}
	if o.NumberRetries <= 0 {
		o.NumberRetries = 5
	}
	if o.DefaultDueMonth < time.January || o.DefaultDueMonth > time.December {
		o.DefaultDueMonth = time.December
	}
	if o.DefaultDueDay <= 0 {
		o.DefaultDueDay = 31
	}
	return o
}

// defaultDueDate is the fallback due date for fees whose components carry none.
func (o Options) defaultDueDate() time.Time {
	now := o.Now()
	return time.Date(now.Year(), o.DefaultDueMonth, o.DefaultDueDay, 23, 59, 59, 0, time.UTC)
}

// MoneyPlaces is the number of decimals amounts are accepted at.
func (o Options) MoneyPlaces() int32 { return o.withDefaults().Places }

// exact reports whether v has no more decimals than money is kept at.
func (o Options) exact(v decimal.Decimal) bool {
	return v.Equal(v.Round(o.Places))
}
