package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-fees/internal/models"
)

// CatalogService manages fee templates and fee structures.
type CatalogService struct {
	db   *gorm.DB
	opts Options
	log  *zap.Logger
}

func NewCatalogService(db *gorm.DB, opts Options) *CatalogService {
	opts = opts.withDefaults()
	return &CatalogService{db: db, opts: opts, log: opts.Logger.Named("catalog")}
}

// TemplateInput describes a template to create or replace.
type TemplateInput struct {
	Name              string
	Description       string
	Status            models.TemplateStatus
	Components        []models.FeeComponent
	ApplicableClasses []uuid.UUID
	AcademicYearID    *uuid.UUID
	UserID            uuid.UUID
}

// StructureInput describes a structure to create.
type StructureInput struct {
	Name           string
	Description    string
	AcademicYearID uuid.UUID
	ClassID        uuid.UUID
	Status         models.StructureStatus
	Components     []models.FeeComponent
	UserID         uuid.UUID
}

func (s *CatalogService) validateComponents(components []models.FeeComponent) error {
	if len(components) == 0 {
		return &InvalidArgumentError{Field: "components", Reason: "at least one component is required"}
	}
	for i, c := range components {
		if strings.TrimSpace(c.Name) == "" {
			return &InvalidArgumentError{Field: "components", Reason: "component name is required"}
		}
		if c.Amount.IsNegative() {
			return &InvalidAmountError{Reason: "component " + c.Name + " has a negative amount"}
		}
		if !s.opts.exact(c.Amount) {
			return &InvalidAmountError{Reason: "component " + c.Name + " has more decimals than the currency allows"}
		}
		if c.DueDate != nil {
			due := c.DueDate.UTC()
			components[i].DueDate = &due
		}
	}
	return nil
}

func templateRows(components []models.FeeComponent) []models.FeeTemplateComponent {
	rows := make([]models.FeeTemplateComponent, len(components))
	for i, c := range components {
		rows[i] = models.FeeTemplateComponent{Base: models.Base{ID: uuid.New()}, Position: i, FeeComponent: c}
	}
	return rows
}

func structureRows(components []models.FeeComponent) []models.FeeStructureComponent {
	rows := make([]models.FeeStructureComponent, len(components))
	for i, c := range components {
		rows[i] = models.FeeStructureComponent{Base: models.Base{ID: uuid.New()}, Position: i, FeeComponent: c}
	}
	return rows
}

func byPosition(db *gorm.DB) *gorm.DB { return db.Order("position") }

// CreateTemplate stores a new template with its total computed from the components.
func (s *CatalogService) CreateTemplate(ctx context.Context, in TemplateInput) (*models.FeeTemplate, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, &InvalidArgumentError{Field: "name", Reason: "required"}
	}
	if err := s.validateComponents(in.Components); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = models.TemplateStatusDraft
	}
	if !validTemplateStatus(status) {
		return nil, &InvalidArgumentError{Field: "status", Reason: "unknown template status " + string(status)}
	}
	tpl := &models.FeeTemplate{
		Base:              models.Base{ID: uuid.New()},
		Name:              strings.TrimSpace(in.Name),
		Description:       in.Description,
		Status:            status,
		TotalAmount:       models.SumAmounts(in.Components),
		ApplicableClasses: in.ApplicableClasses,
		AcademicYearID:    in.AcademicYearID,
		CreatedBy:         in.UserID,
		UpdatedBy:         in.UserID,
		Components:        templateRows(in.Components),
	}
	if err := s.db.WithContext(ctx).Create(tpl).Error; err != nil {
		return nil, persistence("create template", err)
	}
	return tpl, nil
}

// UpdateTemplate replaces the template's fields and components and recomputes its total.
func (s *CatalogService) UpdateTemplate(ctx context.Context, id uuid.UUID, in TemplateInput) (*models.FeeTemplate, error) {
	if err := s.validateComponents(in.Components); err != nil {
		return nil, err
	}
	if in.Status != "" && !validTemplateStatus(in.Status) {
		return nil, &InvalidArgumentError{Field: "status", Reason: "unknown template status " + string(in.Status)}
	}
	var tpl models.FeeTemplate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tpl, "id = ?", id).Error; err != nil {
			return notFoundOr("load template", "fee template", id, err)
		}
		if name := strings.TrimSpace(in.Name); name != "" {
			tpl.Name = name
		}
		if in.Status != "" {
			tpl.Status = in.Status
		}
		tpl.Description = in.Description
		tpl.ApplicableClasses = in.ApplicableClasses
		tpl.AcademicYearID = in.AcademicYearID
		tpl.TotalAmount = models.SumAmounts(in.Components)
		tpl.UpdatedBy = in.UserID
		if err := tx.Where("fee_template_id = ?", tpl.ID).Delete(&models.FeeTemplateComponent{}).Error; err != nil {
			return err
		}
		tpl.Components = templateRows(in.Components)
		for i := range tpl.Components {
			tpl.Components[i].FeeTemplateID = tpl.ID
		}
		if err := tx.Create(&tpl.Components).Error; err != nil {
			return err
		}
		return tx.Omit("Components").Save(&tpl).Error
	})
	if err != nil {
		return nil, classify("update template", err)
	}
	return &tpl, nil
}

// GetTemplate loads a template with its components.
func (s *CatalogService) GetTemplate(ctx context.Context, id uuid.UUID) (*models.FeeTemplate, error) {
	var tpl models.FeeTemplate
	if err := s.db.WithContext(ctx).Preload("Components", byPosition).First(&tpl, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("load template", "fee template", id, err)
	}
	return &tpl, nil
}

// ListTemplates returns templates, optionally limited to one status.
func (s *CatalogService) ListTemplates(ctx context.Context, status models.TemplateStatus) ([]models.FeeTemplate, error) {
	q := s.db.WithContext(ctx).Preload("Components", byPosition).Order("name")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.FeeTemplate
	if err := q.Find(&out).Error; err != nil {
		return nil, persistence("list templates", err)
	}
	return out, nil
}

// CreateStructure stores the fee structure for a (year, class) pair.
func (s *CatalogService) CreateStructure(ctx context.Context, in StructureInput) (*models.FeeStructure, error) {
	if err := s.validateComponents(in.Components); err != nil {
		return nil, err
	}
	return s.insertStructure(ctx, in, nil)
}

// CreateStructureFromTemplate clones an active template's components into a new structure.
func (s *CatalogService) CreateStructureFromTemplate(ctx context.Context, templateID uuid.UUID, in StructureInput) (*models.FeeStructure, error) {
	tpl, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tpl.Status != models.TemplateStatusActive {
		return nil, &InvalidStateError{Entity: "fee template", State: string(tpl.Status), Reason: "only active templates can be cloned"}
	}
	if !tpl.AppliesTo(in.ClassID) {
		return nil, &InvalidArgumentError{Field: "class_id", Reason: "template does not apply to this class"}
	}
	if strings.TrimSpace(in.Name) == "" {
		in.Name = tpl.Name
	}
	if in.Description == "" {
		in.Description = tpl.Description
	}
	in.Components = tpl.ComponentValues()
	return s.insertStructure(ctx, in, &tpl.ID)
}

func (s *CatalogService) insertStructure(ctx context.Context, in StructureInput, templateID *uuid.UUID) (*models.FeeStructure, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, &InvalidArgumentError{Field: "name", Reason: "required"}
	}
	if in.AcademicYearID == uuid.Nil || in.ClassID == uuid.Nil {
		return nil, &InvalidArgumentError{Field: "academic_year_id", Reason: "academic year and class are required"}
	}
	status := in.Status
	if status == "" {
		status = models.StructureStatusDraft
	}
	if status == models.StructureStatusArchived || !validStructureStatus(status) {
		return nil, &InvalidArgumentError{Field: "status", Reason: "a new structure must be draft or active"}
	}
	st := &models.FeeStructure{
		Base:           models.Base{ID: uuid.New()},
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		AcademicYearID: in.AcademicYearID,
		ClassID:        in.ClassID,
		TotalAmount:    models.SumAmounts(in.Components),
		Status:         status,
		TemplateID:     templateID,
		CreatedBy:      in.UserID,
		UpdatedBy:      in.UserID,
		Components:     structureRows(in.Components),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.FeeStructure{}).
			Where("academic_year_id = ? AND class_id = ?", in.AcademicYearID, in.ClassID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return &DuplicateError{Entity: "fee structure", Key: "academic year and class"}
		}
		return tx.Create(st).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, &DuplicateError{Entity: "fee structure", Key: "academic year and class"}
	}
	if err != nil {
		return nil, classify("create structure", err)
	}
	s.log.Info("fee structure created",
		zap.String("structure_id", st.ID.String()),
		zap.String("total", st.TotalAmount.String()))
	return st, nil
}

// UpdateStructureComponents replaces the components of a structure that is not archived.
// Student fees already assigned keep the components they were created with.
func (s *CatalogService) UpdateStructureComponents(ctx context.Context, id uuid.UUID, components []models.FeeComponent, userID uuid.UUID) (*models.FeeStructure, error) {
	if err := s.validateComponents(components); err != nil {
		return nil, err
	}
	var st models.FeeStructure
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&st, "id = ?", id).Error; err != nil {
			return notFoundOr("load structure", "fee structure", id, err)
		}
		if !st.CanEdit() {
			return &InvalidStateError{Entity: "fee structure", State: string(st.Status), Reason: "archived structures cannot be edited"}
		}
		if err := tx.Where("fee_structure_id = ?", st.ID).Delete(&models.FeeStructureComponent{}).Error; err != nil {
			return err
		}
		st.Components = structureRows(components)
		for i := range st.Components {
			st.Components[i].FeeStructureID = st.ID
		}
		if err := tx.Create(&st.Components).Error; err != nil {
			return err
		}
		st.TotalAmount = models.SumAmounts(components)
		st.UpdatedBy = userID
		return tx.Omit("Components").Save(&st).Error
	})
	if err != nil {
		return nil, classify("update structure", err)
	}
	return &st, nil
}

// ActivateStructure opens a draft structure for assignment.
func (s *CatalogService) ActivateStructure(ctx context.Context, id, userID uuid.UUID) (*models.FeeStructure, error) {
	return s.transition(ctx, id, userID, models.StructureStatusActive)
}

// ArchiveStructure closes a structure; it can no longer be assigned or edited.
func (s *CatalogService) ArchiveStructure(ctx context.Context, id, userID uuid.UUID) (*models.FeeStructure, error) {
	return s.transition(ctx, id, userID, models.StructureStatusArchived)
}

func (s *CatalogService) transition(ctx context.Context, id, userID uuid.UUID, to models.StructureStatus) (*models.FeeStructure, error) {
	var st models.FeeStructure
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&st, "id = ?", id).Error; err != nil {
			return notFoundOr("load structure", "fee structure", id, err)
		}
		if st.Status == models.StructureStatusArchived {
			return &InvalidStateError{Entity: "fee structure", State: string(st.Status), Reason: "archived structures are final"}
		}
		return tx.Model(&st).Updates(map[string]any{
			"status":     to,
			"updated_by": userID,
			"updated_at": s.opts.Now(),
		}).Error
	})
	if err != nil {
		return nil, classify("change structure status", err)
	}
	st.Status = to
	st.UpdatedBy = userID
	return &st, nil
}

// GetStructure loads a structure with its components.
func (s *CatalogService) GetStructure(ctx context.Context, id uuid.UUID) (*models.FeeStructure, error) {
	var st models.FeeStructure
	if err := s.db.WithContext(ctx).Preload("Components", byPosition).First(&st, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("load structure", "fee structure", id, err)
	}
	return &st, nil
}

// ListStructures returns structures, optionally limited to one academic year.
func (s *CatalogService) ListStructures(ctx context.Context, academicYearID *uuid.UUID) ([]models.FeeStructure, error) {
	q := s.db.WithContext(ctx).Preload("Components", byPosition).Order("created_at")
	if academicYearID != nil {
		q = q.Where("academic_year_id = ?", *academicYearID)
	}
	var out []models.FeeStructure
	if err := q.Find(&out).Error; err != nil {
		return nil, persistence("list structures", err)
	}
	return out, nil
}

func validTemplateStatus(s models.TemplateStatus) bool {
	switch s {
	case models.TemplateStatusActive, models.TemplateStatusInactive, models.TemplateStatusDraft:
		return true
	}
	return false
}

func validStructureStatus(s models.StructureStatus) bool {
	switch s {
	case models.StructureStatusDraft, models.StructureStatusActive, models.StructureStatusArchived:
		return true
	}
	return false
}
