package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-fees/internal/models"
)

func TestAssign(t *testing.T) {
	f := newFixture(t, 1)
	st := f.activeStructure("100000", "100000", "100000")

	fee, err := f.assignment().Assign(f.ctx, st.ID, f.students[0].ID, f.user)
	require.NoError(t, err)
	assert.True(t, fee.TotalAmount.Equal(d("300000")))
	assert.True(t, fee.AmountPaid.IsZero())
	assert.Equal(t, models.FeeStatusPending, fee.Status)
	assert.Equal(t, time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC), fee.DueDate)

	got := f.reload(fee.ID)
	require.Len(t, got.Components, 3)
	requireBalanceInvariant(t, got)
	for _, c := range got.Components {
		assert.Equal(t, models.FeeStatusPending, c.Status)
		assert.True(t, c.Balance.Equal(d("100000")))
	}

	_, err = f.assignment().Assign(f.ctx, st.ID, f.students[0].ID, f.user)
	assert.True(t, IsDuplicate(err), "got %v", err)
}

func TestAssignEarliestDueDate(t *testing.T) {
	f := newFixture(t, 1)
	feb := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	comps := components("100", "100")
	comps[0].DueDate = &jun
	comps[1].DueDate = &feb
	st, err := f.catalog().CreateStructure(f.ctx, StructureInput{
		Name:           "Dated",
		AcademicYearID: f.year.ID,
		ClassID:        f.class.ID,
		Status:         models.StructureStatusActive,
		Components:     comps,
	})
	require.NoError(t, err)

	fee, err := f.assignment().Assign(f.ctx, st.ID, f.students[0].ID, f.user)
	require.NoError(t, err)
	assert.True(t, fee.DueDate.Equal(feb))
	assert.Equal(t, models.FeeStatusOverdue, fee.Status)
	assert.Equal(t, models.FeeStatusPending, fee.Components[0].Status)
	assert.Equal(t, models.FeeStatusOverdue, fee.Components[1].Status)
}

func TestAssignRejects(t *testing.T) {
	f := newFixture(t, 2)
	st := f.activeStructure("1000")

	_, err := f.assignment().Assign(f.ctx, st.ID, uuid.New(), f.user)
	assert.True(t, IsNotFound(err), "got %v", err)

	require.NoError(t, f.db.Model(&f.students[1]).Update("status", models.StudentStatusGraduated).Error)
	_, err = f.assignment().Assign(f.ctx, st.ID, f.students[1].ID, f.user)
	var is *InvalidStateError
	require.ErrorAs(t, err, &is)

	other := models.Class{Name: "S2"}
	require.NoError(t, f.db.Create(&other).Error)
	outsider := models.Student{Name: "Outsider", ClassID: other.ID, Status: models.StudentStatusActive}
	require.NoError(t, f.db.Create(&outsider).Error)
	_, err = f.assignment().Assign(f.ctx, st.ID, outsider.ID, f.user)
	var arg *InvalidArgumentError
	require.ErrorAs(t, err, &arg)

	draft, err := f.catalog().CreateStructure(f.ctx, StructureInput{
		Name:           "Draft",
		AcademicYearID: f.year.ID,
		ClassID:        other.ID,
		Components:     components("10"),
	})
	require.NoError(t, err)
	_, err = f.assignment().Assign(f.ctx, draft.ID, outsider.ID, f.user)
	require.ErrorAs(t, err, &is)
	assert.Equal(t, string(models.StructureStatusDraft), is.State)
}

func TestAssignToClass(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.db.Model(&f.students[3]).Update("status", models.StudentStatusInactive).Error)
	st := f.activeStructure("250000", "50000")

	_, err := f.assignment().Assign(f.ctx, st.ID, f.students[0].ID, f.user)
	require.NoError(t, err)

	res, err := f.assignment().AssignToClass(f.ctx, st.ID, f.user)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, res.Fees, 2)

	again, err := f.assignment().AssignToClass(f.ctx, st.ID, f.user)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 3, again.Skipped)

	fees, err := f.assignment().ListStudentFees(f.ctx, StudentFeeFilter{AcademicYearID: &f.year.ID, ClassID: &f.class.ID})
	require.NoError(t, err)
	assert.Len(t, fees, 3)
	for _, fee := range fees {
		assert.True(t, fee.TotalAmount.Equal(d("300000")))
		assert.Len(t, fee.Components, 2)
	}

	pending, err := f.assignment().ListStudentFees(f.ctx, StudentFeeFilter{Status: models.FeeStatusPaid})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGetStudentFeeNotFound(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.assignment().GetStudentFee(f.ctx, uuid.New())
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "student fee", nf.Entity)
}
