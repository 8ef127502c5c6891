package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/go-fees/internal/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setupTestDB(t *testing.T) *gorm.DB {
	// unique in-memory DB per test name to avoid leakage via shared cache
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// testDirectory mirrors the gorm directory without importing it.
type testDirectory struct{ db *gorm.DB }

func (d *testDirectory) GetStudent(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	var st models.Student
	if err := d.db.WithContext(ctx).First(&st, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("load student", "student", id, err)
	}
	return &st, nil
}

func (d *testDirectory) ListActiveStudents(ctx context.Context, classID *uuid.UUID) ([]models.Student, error) {
	q := d.db.WithContext(ctx).Where("status = ?", models.StudentStatusActive)
	if classID != nil {
		q = q.Where("class_id = ?", *classID)
	}
	var out []models.Student
	return out, q.Order("name").Find(&out).Error
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	dir      *testDirectory
	opts     Options
	user     uuid.UUID
	year     models.AcademicYear
	class    models.Class
	students []models.Student
}

func newFixture(t *testing.T, students int) *fixture {
	db := setupTestDB(t)
	f := &fixture{
		t:    t,
		ctx:  context.Background(),
		db:   db,
		dir:  &testDirectory{db: db},
		opts: Options{Now: func() time.Time { return testNow }},
		user: uuid.New(),
		year: models.AcademicYear{
			Name:      "2025",
			StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
			IsCurrent: true,
		},
		class: models.Class{Name: "S1"},
	}
	require.NoError(t, db.Create(&f.year).Error)
	require.NoError(t, db.Create(&f.class).Error)
	for i := 0; i < students; i++ {
		st := models.Student{
			Name:    fmt.Sprintf("Student %02d", i+1),
			ClassID: f.class.ID,
			Status:  models.StudentStatusActive,
			Phone:   fmt.Sprintf("+25670000%04d", i),
			Email:   fmt.Sprintf("parent%02d@example.com", i+1),
		}
		require.NoError(t, db.Create(&st).Error)
		f.students = append(f.students, st)
	}
	return f
}

func (f *fixture) catalog() *CatalogService { return NewCatalogService(f.db, f.opts) }

func (f *fixture) assignment() *AssignmentService { return NewAssignmentService(f.db, f.dir, f.opts) }

func (f *fixture) schedules() *ScheduleService { return NewScheduleService(f.db, f.dir, f.opts) }

func components(amounts ...string) []models.FeeComponent {
	names := []string{"Tuition", "Boarding", "Uniform", "Library", "Transport", "Exams"}
	out := make([]models.FeeComponent, len(amounts))
	for i, a := range amounts {
		out[i] = models.FeeComponent{Name: names[i%len(names)], Amount: d(a)}
	}
	return out
}

// activeStructure creates an active structure for the fixture's class and year.
func (f *fixture) activeStructure(amounts ...string) *models.FeeStructure {
	st, err := f.catalog().CreateStructure(f.ctx, StructureInput{
		Name:           "S1 2025",
		AcademicYearID: f.year.ID,
		ClassID:        f.class.ID,
		Status:         models.StructureStatusActive,
		Components:     components(amounts...),
		UserID:         f.user,
	})
	require.NoError(f.t, err)
	return st
}

// assignedFee creates a structure and assigns it to the first student.
func (f *fixture) assignedFee(amounts ...string) *models.StudentFee {
	st := f.activeStructure(amounts...)
	fee, err := f.assignment().Assign(f.ctx, st.ID, f.students[0].ID, f.user)
	require.NoError(f.t, err)
	return fee
}

func (f *fixture) reload(id uuid.UUID) *models.StudentFee {
	fee, err := loadStudentFee(f.db, id)
	require.NoError(f.t, err)
	return fee
}

func (f *fixture) paymentCount() int64 {
	var n int64
	require.NoError(f.t, f.db.Model(&models.Payment{}).Count(&n).Error)
	return n
}

func requireBalanceInvariant(t *testing.T, fee *models.StudentFee) {
	t.Helper()
	require.True(t, fee.Balance.Equal(fee.TotalAmount.Sub(fee.AmountPaid)), "fee balance %s != %s - %s", fee.Balance, fee.TotalAmount, fee.AmountPaid)
	for _, c := range fee.Components {
		require.True(t, c.Balance.Equal(c.Amount.Sub(c.AmountPaid)), "component %s balance %s", c.Name, c.Balance)
	}
	for _, in := range fee.Installments {
		require.True(t, in.Balance.Equal(in.Amount.Sub(in.AmountPaid)), "installment %s balance %s", in.Name, in.Balance)
	}
}
