package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-fees/internal/models"
)

func TestCreateTemplate(t *testing.T) {
	f := newFixture(t, 0)
	tpl, err := f.catalog().CreateTemplate(f.ctx, TemplateInput{
		Name:       "Day scholar",
		Components: components("500000", "150000.50"),
		UserID:     f.user,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TemplateStatusDraft, tpl.Status)
	assert.True(t, tpl.TotalAmount.Equal(d("650000.50")))

	got, err := f.catalog().GetTemplate(f.ctx, tpl.ID)
	require.NoError(t, err)
	require.Len(t, got.Components, 2)
	assert.Equal(t, "Tuition", got.Components[0].Name)

	updated, err := f.catalog().UpdateTemplate(f.ctx, tpl.ID, TemplateInput{
		Status:            models.TemplateStatusActive,
		Components:        components("400000"),
		ApplicableClasses: []uuid.UUID{f.class.ID},
		UserID:            f.user,
	})
	require.NoError(t, err)
	assert.Equal(t, "Day scholar", updated.Name)
	assert.True(t, updated.TotalAmount.Equal(d("400000")))

	got, err = f.catalog().GetTemplate(f.ctx, tpl.ID)
	require.NoError(t, err)
	assert.Len(t, got.Components, 1)
	assert.True(t, got.AppliesTo(f.class.ID))

	active, err := f.catalog().ListTemplates(f.ctx, models.TemplateStatusActive)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestCreateTemplateRejects(t *testing.T) {
	f := newFixture(t, 0)
	var arg *InvalidArgumentError
	var ia *InvalidAmountError

	_, err := f.catalog().CreateTemplate(f.ctx, TemplateInput{Name: "Empty"})
	require.ErrorAs(t, err, &arg)

	_, err = f.catalog().CreateTemplate(f.ctx, TemplateInput{Name: "Negative", Components: components("-1")})
	require.ErrorAs(t, err, &ia)

	_, err = f.catalog().CreateTemplate(f.ctx, TemplateInput{Name: "Fractional", Components: components("10.555")})
	require.ErrorAs(t, err, &ia)

	_, err = f.catalog().CreateTemplate(f.ctx, TemplateInput{Name: "Status", Status: "retired", Components: components("1")})
	require.ErrorAs(t, err, &arg)
}

func TestCreateStructureFromTemplate(t *testing.T) {
	f := newFixture(t, 0)
	due := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	comps := components("300000", "50000")
	comps[1].DueDate = &due
	tpl, err := f.catalog().CreateTemplate(f.ctx, TemplateInput{Name: "Boarder", Components: comps})
	require.NoError(t, err)

	in := StructureInput{AcademicYearID: f.year.ID, ClassID: f.class.ID, Status: models.StructureStatusActive, UserID: f.user}
	_, err = f.catalog().CreateStructureFromTemplate(f.ctx, tpl.ID, in)
	var is *InvalidStateError
	require.ErrorAs(t, err, &is, "draft templates cannot be cloned")

	other := uuid.New()
	_, err = f.catalog().UpdateTemplate(f.ctx, tpl.ID, TemplateInput{
		Status:            models.TemplateStatusActive,
		Components:        comps,
		ApplicableClasses: []uuid.UUID{other},
	})
	require.NoError(t, err)
	_, err = f.catalog().CreateStructureFromTemplate(f.ctx, tpl.ID, in)
	var arg *InvalidArgumentError
	require.ErrorAs(t, err, &arg)

	_, err = f.catalog().UpdateTemplate(f.ctx, tpl.ID, TemplateInput{Status: models.TemplateStatusActive, Components: comps})
	require.NoError(t, err)
	st, err := f.catalog().CreateStructureFromTemplate(f.ctx, tpl.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Boarder", st.Name)
	require.NotNil(t, st.TemplateID)
	assert.Equal(t, tpl.ID, *st.TemplateID)
	assert.True(t, st.TotalAmount.Equal(d("350000")))

	got, err := f.catalog().GetStructure(f.ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, got.Components, 2)
	require.NotNil(t, got.Components[1].DueDate)
	assert.True(t, got.Components[1].DueDate.Equal(due))
}

func TestCreateStructureDuplicate(t *testing.T) {
	f := newFixture(t, 0)
	f.activeStructure("1000")
	_, err := f.catalog().CreateStructure(f.ctx, StructureInput{
		Name:           "Again",
		AcademicYearID: f.year.ID,
		ClassID:        f.class.ID,
		Components:     components("2000"),
	})
	assert.True(t, IsDuplicate(err), "got %v", err)

	_, err = f.catalog().CreateStructure(f.ctx, StructureInput{
		Name:           "Archived",
		AcademicYearID: f.year.ID,
		ClassID:        uuid.New(),
		Status:         models.StructureStatusArchived,
		Components:     components("2000"),
	})
	var arg *InvalidArgumentError
	require.ErrorAs(t, err, &arg)
}

func TestStructureLifecycle(t *testing.T) {
	f := newFixture(t, 0)
	st, err := f.catalog().CreateStructure(f.ctx, StructureInput{
		Name:           "S1",
		AcademicYearID: f.year.ID,
		ClassID:        f.class.ID,
		Components:     components("1000", "500"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StructureStatusDraft, st.Status)

	st, err = f.catalog().UpdateStructureComponents(f.ctx, st.ID, components("1200"), f.user)
	require.NoError(t, err)
	assert.True(t, st.TotalAmount.Equal(d("1200")))

	st, err = f.catalog().ActivateStructure(f.ctx, st.ID, f.user)
	require.NoError(t, err)
	assert.True(t, st.IsActive())

	st, err = f.catalog().ArchiveStructure(f.ctx, st.ID, f.user)
	require.NoError(t, err)
	assert.Equal(t, models.StructureStatusArchived, st.Status)

	var is *InvalidStateError
	_, err = f.catalog().UpdateStructureComponents(f.ctx, st.ID, components("1"), f.user)
	require.ErrorAs(t, err, &is)
	_, err = f.catalog().ActivateStructure(f.ctx, st.ID, f.user)
	require.ErrorAs(t, err, &is)

	list, err := f.catalog().ListStructures(f.ctx, &f.year.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Components, 1)

	_, err = f.catalog().GetStructure(f.ctx, uuid.New())
	assert.True(t, IsNotFound(err))
}
