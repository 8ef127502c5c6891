package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-fees/internal/models"
)

const defaultReminderDays = 7

// ScheduleService manages installment schedules and applies them to student fees.
type ScheduleService struct {
	db   *gorm.DB
	dir  Directory
	opts Options
	log  *zap.Logger
}

func NewScheduleService(db *gorm.DB, dir Directory, opts Options) *ScheduleService {
	opts = opts.withDefaults()
	return &ScheduleService{db: db, dir: dir, opts: opts, log: opts.Logger.Named("schedule")}
}

// ScheduleInput describes a schedule to create or replace.
type ScheduleInput struct {
	Name            string
	Description     string
	AcademicYearID  uuid.UUID
	ClassID         *uuid.UUID
	Installments    []models.Installment
	EnableReminders bool
	ReminderDays    int
	IsActive        bool
	UserID          uuid.UUID
}

// ScheduleApplication counts the outcome of applying a schedule.
type ScheduleApplication struct {
	Applied        int `json:"applied"`
	AlreadyApplied int `json:"already_applied"`
	MissingFee     int `json:"missing_fee"`
	Skipped        int `json:"skipped"`
	TotalEligible  int `json:"total_eligible"`
}

// ValidateInstallments checks that percentages add up to exactly 100 and that
// each installment is well formed.
func ValidateInstallments(installments []models.Installment) error {
	total := decimal.Zero
	for _, in := range installments {
		total = total.Add(in.Percentage)
	}
	if !total.Equal(hundred) {
		return &InvariantViolationError{
			Reason: fmt.Sprintf("installment percentages must total 100%% (got %s%%)", total.String()),
		}
	}
	for _, in := range installments {
		if strings.TrimSpace(in.Name) == "" {
			return &InvalidArgumentError{Field: "installments", Reason: "installment name is required"}
		}
		if in.Percentage.LessThan(decimal.NewFromInt(1)) || in.Percentage.GreaterThan(hundred) {
			return &InvalidArgumentError{Field: "installments", Reason: "percentage of " + in.Name + " must be between 1 and 100"}
		}
		if in.DueDate.IsZero() {
			return &InvalidArgumentError{Field: "installments", Reason: "due date of " + in.Name + " is required"}
		}
	}
	return nil
}

func (in *ScheduleInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &InvalidArgumentError{Field: "name", Reason: "required"}
	}
	if in.AcademicYearID == uuid.Nil {
		return &InvalidArgumentError{Field: "academic_year_id", Reason: "required"}
	}
	if err := ValidateInstallments(in.Installments); err != nil {
		return err
	}
	if in.ReminderDays == 0 {
		in.ReminderDays = defaultReminderDays
	}
	if in.ReminderDays < 1 || in.ReminderDays > 30 {
		return &InvalidArgumentError{Field: "reminder_days", Reason: "must be between 1 and 30"}
	}
	return nil
}

func scheduleRows(scheduleID uuid.UUID, installments []models.Installment) []models.FeeScheduleInstallment {
	rows := make([]models.FeeScheduleInstallment, len(installments))
	for i, in := range installments {
		in.DueDate = in.DueDate.UTC()
		rows[i] = models.FeeScheduleInstallment{
			Base:          models.Base{ID: uuid.New()},
			FeeScheduleID: scheduleID,
			Position:      i,
			Installment:   in,
		}
	}
	return rows
}

// CreateSchedule stores a new schedule.
func (s *ScheduleService) CreateSchedule(ctx context.Context, in ScheduleInput) (*models.FeeSchedule, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	id := uuid.New()
	sched := &models.FeeSchedule{
		Base:            models.Base{ID: id},
		Name:            strings.TrimSpace(in.Name),
		Description:     in.Description,
		AcademicYearID:  in.AcademicYearID,
		ClassID:         in.ClassID,
		EnableReminders: in.EnableReminders,
		ReminderDays:    in.ReminderDays,
		IsActive:        in.IsActive,
		CreatedBy:       in.UserID,
		UpdatedBy:       in.UserID,
		Installments:    scheduleRows(id, in.Installments),
	}
	if err := s.db.WithContext(ctx).Create(sched).Error; err != nil {
		return nil, persistence("create schedule", err)
	}
	return sched, nil
}

// UpdateSchedule replaces a schedule's fields and installments. Fees the
// schedule was already applied to keep their installments until it is applied again.
func (s *ScheduleService) UpdateSchedule(ctx context.Context, id uuid.UUID, in ScheduleInput) (*models.FeeSchedule, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var sched models.FeeSchedule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sched, "id = ?", id).Error; err != nil {
			return notFoundOr("load schedule", "fee schedule", id, err)
		}
		sched.Name = strings.TrimSpace(in.Name)
		sched.Description = in.Description
		sched.AcademicYearID = in.AcademicYearID
		sched.ClassID = in.ClassID
		sched.EnableReminders = in.EnableReminders
		sched.ReminderDays = in.ReminderDays
		sched.IsActive = in.IsActive
		sched.UpdatedBy = in.UserID
		if err := tx.Where("fee_schedule_id = ?", sched.ID).Delete(&models.FeeScheduleInstallment{}).Error; err != nil {
			return err
		}
		sched.Installments = scheduleRows(sched.ID, in.Installments)
		if err := tx.Create(&sched.Installments).Error; err != nil {
			return err
		}
		return tx.Omit("Installments").Save(&sched).Error
	})
	if err != nil {
		return nil, classify("update schedule", err)
	}
	return &sched, nil
}

// DeleteSchedule removes a schedule that no student fee references.
func (s *ScheduleService) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sched models.FeeSchedule
		if err := tx.First(&sched, "id = ?", id).Error; err != nil {
			return notFoundOr("load schedule", "fee schedule", id, err)
		}
		var n int64
		if err := tx.Model(&models.StudentFee{}).Where("fee_schedule_id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return &InvalidStateError{
				Entity: "fee schedule",
				State:  "in use",
				Reason: fmt.Sprintf("%d student fees reference it", n),
			}
		}
		if err := tx.Where("fee_schedule_id = ?", id).Delete(&models.FeeScheduleInstallment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&sched).Error
	})
	return classify("delete schedule", err)
}

// SetScheduleActive switches a schedule on or off.
func (s *ScheduleService) SetScheduleActive(ctx context.Context, id uuid.UUID, active bool, userID uuid.UUID) (*models.FeeSchedule, error) {
	sched, err := s.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(sched).Updates(map[string]any{
		"is_active":  active,
		"updated_by": userID,
		"updated_at": s.opts.Now(),
	}).Error; err != nil {
		return nil, persistence("update schedule", err)
	}
	sched.IsActive = active
	sched.UpdatedBy = userID
	return sched, nil
}

// GetSchedule loads a schedule with its installments.
func (s *ScheduleService) GetSchedule(ctx context.Context, id uuid.UUID) (*models.FeeSchedule, error) {
	var sched models.FeeSchedule
	if err := s.db.WithContext(ctx).Preload("Installments", byPosition).First(&sched, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("load schedule", "fee schedule", id, err)
	}
	return &sched, nil
}

// ListSchedules returns schedules, optionally limited to one academic year.
func (s *ScheduleService) ListSchedules(ctx context.Context, academicYearID *uuid.UUID) ([]models.FeeSchedule, error) {
	q := s.db.WithContext(ctx).Preload("Installments", byPosition).Order("created_at")
	if academicYearID != nil {
		q = q.Where("academic_year_id = ?", *academicYearID)
	}
	var out []models.FeeSchedule
	if err := q.Find(&out).Error; err != nil {
		return nil, persistence("list schedules", err)
	}
	return out, nil
}

// ApplySchedule replaces the installments of every eligible student fee with
// the schedule's installments, sized from each fee's current total.
func (s *ScheduleService) ApplySchedule(ctx context.Context, scheduleID, userID uuid.UUID) (*ScheduleApplication, error) {
	sched, err := s.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if !sched.IsActive {
		return nil, &InvalidStateError{Entity: "fee schedule", State: "inactive", Reason: "only active schedules can be applied"}
	}
	students, err := s.dir.ListActiveStudents(ctx, sched.ClassID)
	if err != nil {
		return nil, classify("list students", err)
	}
	res := &ScheduleApplication{TotalEligible: len(students)}
	if len(students) == 0 {
		return res, nil
	}

	ids := make([]uuid.UUID, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}
	var fees []models.StudentFee
	if err := s.db.WithContext(ctx).
		Select("id", "student_id", "fee_schedule_id").
		Where("academic_year_id = ? AND student_id IN ?", sched.AcademicYearID, ids).
		Find(&fees).Error; err != nil {
		return nil, persistence("list student fees", err)
	}
	byStudent := make(map[uuid.UUID]models.StudentFee, len(fees))
	for _, f := range fees {
		byStudent[f.StudentID] = f
	}

	for _, st := range students {
		fee, ok := byStudent[st.ID]
		switch {
		case !ok:
			res.MissingFee++
			continue
		case fee.FeeScheduleID != nil && *fee.FeeScheduleID == sched.ID:
			res.AlreadyApplied++
			continue
		}
		applied, err := s.applyToFee(ctx, sched, fee.ID, userID)
		if err != nil {
			return res, err
		}
		if applied {
			res.Applied++
		} else {
			res.AlreadyApplied++
		}
	}
	res.Skipped = res.MissingFee + res.AlreadyApplied
	s.log.Info("schedule applied",
		zap.String("schedule_id", sched.ID.String()),
		zap.Int("applied", res.Applied),
		zap.Int("already_applied", res.AlreadyApplied),
		zap.Int("missing_fee", res.MissingFee))
	return res, nil
}

func (s *ScheduleService) applyToFee(ctx context.Context, sched *models.FeeSchedule, feeID, userID uuid.UUID) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fee, err := loadStudentFee(tx, feeID)
		if err != nil {
			return err
		}
		if fee.FeeScheduleID != nil && *fee.FeeScheduleID == sched.ID {
			return nil
		}
		if err := tx.Where("student_fee_id = ?", fee.ID).Delete(&models.StudentFeeInstallment{}).Error; err != nil {
			return err
		}
		pcts := make([]decimal.Decimal, len(sched.Installments))
		for i, in := range sched.Installments {
			pcts[i] = in.Percentage
		}
		amounts := InstallmentAmounts(fee.TotalAmount, pcts, s.opts.Places)
		fee.Installments = make([]models.StudentFeeInstallment, len(sched.Installments))
		for i, in := range sched.Installments {
			fee.Installments[i] = models.StudentFeeInstallment{
				Base:         models.Base{ID: uuid.New()},
				StudentFeeID: fee.ID,
				Position:     i,
				Installment:  in.Installment,
				Amount:       amounts[i],
			}
		}
		CreditInstallments(fee.Installments, fee.AmountPaid)
		now := s.opts.Now()
		fee.FeeScheduleID = &sched.ID
		fee.UpdatedBy = userID
		RecomputeDerivedFields(fee, now)
		if err := tx.Create(&fee.Installments).Error; err != nil {
			return err
		}
		if err := saveStudentFee(tx, fee, now); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, classify("apply schedule", err)
}
