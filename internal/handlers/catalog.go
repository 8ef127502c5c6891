package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/diewo77/go-fees/httpx"
	"github.com/diewo77/go-fees/internal/models"
	"github.com/diewo77/go-fees/internal/services"
)

// CatalogHandler serves fee templates and fee structures.
type CatalogHandler struct {
	svc *services.CatalogService
	log *zap.Logger
}

func NewCatalogHandler(svc *services.CatalogService, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{svc: svc, log: log.Named("catalog")}
}

type componentRequest struct {
	Name        string          `json:"name" validate:"required,max=120"`
	Amount      decimal.Decimal `json:"amount" validate:"gte=0,money"`
	Description string          `json:"description" validate:"max=500"`
	DueDate     *time.Time      `json:"due_date"`
	IsOptional  bool            `json:"is_optional"`
}

func toComponents(in []componentRequest) []models.FeeComponent {
	out := make([]models.FeeComponent, len(in))
	for i, c := range in {
		out[i] = models.FeeComponent{
			Name:        c.Name,
			Amount:      c.Amount,
			Description: c.Description,
			DueDate:     c.DueDate,
			IsOptional:  c.IsOptional,
		}
	}
	return out
}

type templateRequest struct {
	Name              string                `json:"name" validate:"required,max=255"`
	Description       string                `json:"description"`
	Status            models.TemplateStatus `json:"status" validate:"omitempty,oneof=active inactive draft"`
	Components        []componentRequest    `json:"components" validate:"required,min=1,dive"`
	ApplicableClasses []uuid.UUID           `json:"applicable_classes"`
	AcademicYearID    *uuid.UUID            `json:"academic_year_id"`
}

func (req templateRequest) input(userID uuid.UUID) services.TemplateInput {
	return services.TemplateInput{
		Name:              req.Name,
		Description:       req.Description,
		Status:            req.Status,
		Components:        toComponents(req.Components),
		ApplicableClasses: req.ApplicableClasses,
		AcademicYearID:    req.AcademicYearID,
		UserID:            userID,
	}
}

type structureRequest struct {
	Name           string                 `json:"name" validate:"required,max=255"`
	Description    string                 `json:"description"`
	AcademicYearID uuid.UUID              `json:"academic_year_id" validate:"required"`
	ClassID        uuid.UUID              `json:"class_id" validate:"required"`
	Status         models.StructureStatus `json:"status" validate:"omitempty,oneof=draft active"`
	Components     []componentRequest     `json:"components" validate:"required,min=1,dive"`
}

type fromTemplateRequest struct {
	TemplateID     uuid.UUID              `json:"template_id" validate:"required"`
	Name           string                 `json:"name" validate:"max=255"`
	Description    string                 `json:"description"`
	AcademicYearID uuid.UUID              `json:"academic_year_id" validate:"required"`
	ClassID        uuid.UUID              `json:"class_id" validate:"required"`
	Status         models.StructureStatus `json:"status" validate:"omitempty,oneof=draft active"`
}

type componentsRequest struct {
	Components []componentRequest `json:"components" validate:"required,min=1,dive"`
}

func (h *CatalogHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !decode(w, r, &req) {
		return
	}
	tpl, err := h.svc.CreateTemplate(r.Context(), req.input(currentUser(r)))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tpl)
}

func (h *CatalogHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req templateRequest
	if !decode(w, r, &req) {
		return
	}
	tpl, err := h.svc.UpdateTemplate(r.Context(), id, req.input(currentUser(r)))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tpl)
}

func (h *CatalogHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	tpl, err := h.svc.GetTemplate(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tpl)
}

func (h *CatalogHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListTemplates(r.Context(), models.TemplateStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *CatalogHandler) CreateStructure(w http.ResponseWriter, r *http.Request) {
	var req structureRequest
	if !decode(w, r, &req) {
		return
	}
	st, err := h.svc.CreateStructure(r.Context(), services.StructureInput{
		Name:           req.Name,
		Description:    req.Description,
		AcademicYearID: req.AcademicYearID,
		ClassID:        req.ClassID,
		Status:         req.Status,
		Components:     toComponents(req.Components),
		UserID:         currentUser(r),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, st)
}

func (h *CatalogHandler) CreateStructureFromTemplate(w http.ResponseWriter, r *http.Request) {
	var req fromTemplateRequest
	if !decode(w, r, &req) {
		return
	}
	st, err := h.svc.CreateStructureFromTemplate(r.Context(), req.TemplateID, services.StructureInput{
		Name:           req.Name,
		Description:    req.Description,
		AcademicYearID: req.AcademicYearID,
		ClassID:        req.ClassID,
		Status:         req.Status,
		UserID:         currentUser(r),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, st)
}

func (h *CatalogHandler) UpdateStructureComponents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req componentsRequest
	if !decode(w, r, &req) {
		return
	}
	st, err := h.svc.UpdateStructureComponents(r.Context(), id, toComponents(req.Components), currentUser(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *CatalogHandler) ActivateStructure(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.ActivateStructure)
}

func (h *CatalogHandler) ArchiveStructure(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.ArchiveStructure)
}

func (h *CatalogHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, userID uuid.UUID) (*models.FeeStructure, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	st, err := fn(r.Context(), id, currentUser(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *CatalogHandler) GetStructure(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	st, err := h.svc.GetStructure(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *CatalogHandler) ListStructures(w http.ResponseWriter, r *http.Request) {
	yearID, err := queryID(r, "academic_year_id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	list, err := h.svc.ListStructures(r.Context(), yearID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}
