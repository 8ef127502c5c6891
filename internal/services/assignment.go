package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-fees/internal/models"
)

// AssignmentService creates student fees from active fee structures.
type AssignmentService struct {
	db   *gorm.DB
	dir  Directory
	opts Options
	log  *zap.Logger
}

func NewAssignmentService(db *gorm.DB, dir Directory, opts Options) *AssignmentService {
	opts = opts.withDefaults()
	return &AssignmentService{db: db, dir: dir, opts: opts, log: opts.Logger.Named("assignment")}
}

// AssignmentResult summarizes a class-wide assignment.
type AssignmentResult struct {
	Created int                 `json:"created"`
	Skipped int                 `json:"skipped"`
	Total   int                 `json:"total"`
	Fees    []models.StudentFee `json:"fees"`
}

// StudentFeeFilter narrows ListStudentFees.
type StudentFeeFilter struct {
	AcademicYearID *uuid.UUID
	ClassID        *uuid.UUID
	StudentID      *uuid.UUID
	Status         models.FeeStatus
}

func (s *AssignmentService) activeStructure(ctx context.Context, id uuid.UUID) (*models.FeeStructure, error) {
	var st models.FeeStructure
	if err := s.db.WithContext(ctx).Preload("Components", byPosition).First(&st, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("load structure", "fee structure", id, err)
	}
	if !st.IsActive() {
		return nil, &InvalidStateError{Entity: "fee structure", State: string(st.Status), Reason: "only active structures can be assigned"}
	}
	return &st, nil
}

// Assign creates the student fee of one student from an active structure.
// A second assignment for the same student and year fails with DuplicateError.
func (s *AssignmentService) Assign(ctx context.Context, structureID, studentID, userID uuid.UUID) (*models.StudentFee, error) {
	st, err := s.activeStructure(ctx, structureID)
	if err != nil {
		return nil, err
	}
	student, err := s.dir.GetStudent(ctx, studentID)
	if err != nil {
		return nil, classify("load student", err)
	}
	if !student.IsActive() {
		return nil, &InvalidStateError{Entity: "student", State: string(student.Status), Reason: "only active students can be assigned fees"}
	}
	if student.ClassID != st.ClassID {
		return nil, &InvalidArgumentError{Field: "student_id", Reason: "student is not in the structure's class"}
	}
	fee := s.build(st, student.ID, userID)
	if err := s.insert(ctx, fee); err != nil {
		return nil, err
	}
	s.log.Info("fee assigned",
		zap.String("student_id", student.ID.String()),
		zap.String("structure_id", st.ID.String()),
		zap.String("total", fee.TotalAmount.String()))
	return fee, nil
}

// AssignToClass creates a student fee for every active student of the structure's class.
// Students that already have a fee for the year are counted as skipped.
func (s *AssignmentService) AssignToClass(ctx context.Context, structureID, userID uuid.UUID) (*AssignmentResult, error) {
	st, err := s.activeStructure(ctx, structureID)
	if err != nil {
		return nil, err
	}
	students, err := s.dir.ListActiveStudents(ctx, &st.ClassID)
	if err != nil {
		return nil, classify("list students", err)
	}
	res := &AssignmentResult{Total: len(students), Fees: []models.StudentFee{}}
	for _, student := range students {
		fee := s.build(st, student.ID, userID)
		err := s.insert(ctx, fee)
		if IsDuplicate(err) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, err
		}
		res.Created++
		res.Fees = append(res.Fees, *fee)
	}
	s.log.Info("class assignment finished",
		zap.String("structure_id", st.ID.String()),
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

func (s *AssignmentService) build(st *models.FeeStructure, studentID, userID uuid.UUID) *models.StudentFee {
	fee := &models.StudentFee{
		Base:           models.Base{ID: uuid.New()},
		StudentID:      studentID,
		AcademicYearID: st.AcademicYearID,
		FeeStructureID: st.ID,
		ClassID:        st.ClassID,
		AmountPaid:     decimal.Zero,
		CreatedBy:      userID,
		UpdatedBy:      userID,
	}
	var earliest *time.Time
	total := decimal.Zero
	for i, c := range st.Components {
		fee.Components = append(fee.Components, models.StudentFeeComponent{
			Base:         models.Base{ID: uuid.New()},
			StudentFeeID: fee.ID,
			Position:     i,
			FeeComponent: c.FeeComponent,
			AmountPaid:   decimal.Zero,
		})
		total = total.Add(c.Amount)
		if c.DueDate != nil && (earliest == nil || c.DueDate.Before(*earliest)) {
			earliest = c.DueDate
		}
	}
	fee.TotalAmount = total
	if earliest != nil {
		fee.DueDate = *earliest
	} else {
		fee.DueDate = s.opts.defaultDueDate()
	}
	RecomputeDerivedFields(fee, s.opts.Now())
	return fee
}

func (s *AssignmentService) insert(ctx context.Context, fee *models.StudentFee) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.StudentFee{}).
			Where("student_id = ? AND academic_year_id = ?", fee.StudentID, fee.AcademicYearID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return &DuplicateError{Entity: "student fee", Key: "student " + fee.StudentID.String() + " and academic year"}
		}
		return tx.Create(fee).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &DuplicateError{Entity: "student fee", Key: "student " + fee.StudentID.String() + " and academic year"}
	}
	return classify("create student fee", err)
}

// GetStudentFee loads a student fee with components, installments and reminders.
func (s *AssignmentService) GetStudentFee(ctx context.Context, id uuid.UUID) (*models.StudentFee, error) {
	return loadStudentFee(s.db.WithContext(ctx), id)
}

// ListStudentFees returns the fees matching filter, without reminders.
func (s *AssignmentService) ListStudentFees(ctx context.Context, f StudentFeeFilter) ([]models.StudentFee, error) {
	q := s.db.WithContext(ctx).
		Preload("Components", byPosition).
		Preload("Installments", byPosition).
		Order("created_at")
	q = applyFeeFilter(q, f)
	var out []models.StudentFee
	if err := q.Find(&out).Error; err != nil {
		return nil, persistence("list student fees", err)
	}
	return out, nil
}

func applyFeeFilter(q *gorm.DB, f StudentFeeFilter) *gorm.DB {
	if f.AcademicYearID != nil {
		q = q.Where("academic_year_id = ?", *f.AcademicYearID)
	}
	if f.ClassID != nil {
		q = q.Where("class_id = ?", *f.ClassID)
	}
	if f.StudentID != nil {
		q = q.Where("student_id = ?", *f.StudentID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

func loadStudentFee(db *gorm.DB, id uuid.UUID) (*models.StudentFee, error) {
	var fee models.StudentFee
	err := db.Preload("Components", byPosition).
		Preload("Installments", byPosition).
		Preload("Reminders", func(db *gorm.DB) *gorm.DB { return db.Order("sent_at") }).
		First(&fee, "id = ?", id).Error
	if err != nil {
		return nil, notFoundOr("load student fee", "student fee", id, err)
	}
	return &fee, nil
}

// saveStudentFee writes the derived state of fee and its children, guarded by
// the version loaded with it. It must run inside a transaction.
func saveStudentFee(tx *gorm.DB, fee *models.StudentFee, now time.Time) error {
	res := tx.Model(&models.StudentFee{}).
		Where("id = ? AND version = ?", fee.ID, fee.Version).
		Updates(map[string]any{
			"total_amount":    fee.TotalAmount,
			"amount_paid":     fee.AmountPaid,
			"balance":         fee.Balance,
			"status":          fee.Status,
			"due_date":        fee.DueDate,
			"fee_schedule_id": fee.FeeScheduleID,
			"updated_by":      fee.UpdatedBy,
			"updated_at":      now,
			"version":         fee.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ConflictError{Entity: "student fee", ID: fee.ID}
	}
	fee.Version++
	for i := range fee.Components {
		c := &fee.Components[i]
		if err := tx.Model(c).Select("AmountPaid", "Balance", "Status").Updates(c).Error; err != nil {
			return err
		}
	}
	for i := range fee.Installments {
		in := &fee.Installments[i]
		if err := tx.Model(in).Select("AmountPaid", "Balance", "Status").Updates(in).Error; err != nil {
			return err
		}
	}
	return nil
}
