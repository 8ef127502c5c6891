package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/diewo77/go-fees/httpx"
	"github.com/diewo77/go-fees/internal/models"
	"github.com/diewo77/go-fees/internal/services"
)

type ScheduleHandler struct {
	svc *services.ScheduleService
	log *zap.Logger
}

func NewScheduleHandler(svc *services.ScheduleService, log *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, log: log.Named("schedules")}
}

type installmentRequest struct {
	Name       string          `json:"name" validate:"required,max=120"`
	DueDate    time.Time       `json:"due_date" validate:"required"`
	Percentage decimal.Decimal `json:"percentage" validate:"gt=0,lte=100,money"`
}

type scheduleRequest struct {
	Name            string               `json:"name" validate:"required,max=255"`
	Description     string               `json:"description"`
	AcademicYearID  uuid.UUID            `json:"academic_year_id" validate:"required"`
	ClassID         *uuid.UUID           `json:"class_id"`
	Installments    []installmentRequest `json:"installments" validate:"required,min=1,dive"`
	EnableReminders bool                 `json:"enable_reminders"`
	ReminderDays    int                  `json:"reminder_days" validate:"omitempty,min=1,max=30"`
	IsActive        *bool                `json:"is_active"`
}

func (req scheduleRequest) input(userID uuid.UUID) services.ScheduleInput {
	in := services.ScheduleInput{
		Name:            req.Name,
		Description:     req.Description,
		AcademicYearID:  req.AcademicYearID,
		ClassID:         req.ClassID,
		EnableReminders: req.EnableReminders,
		ReminderDays:    req.ReminderDays,
		IsActive:        true,
		UserID:          userID,
	}
	if req.IsActive != nil {
		in.IsActive = *req.IsActive
	}
	for _, i := range req.Installments {
		in.Installments = append(in.Installments, models.Installment{
			Name:       i.Name,
			DueDate:    i.DueDate,
			Percentage: i.Percentage,
		})
	}
	return in
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !decode(w, r, &req) {
		return
	}
	sched, err := h.svc.CreateSchedule(r.Context(), req.input(currentUser(r)))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sched)
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req scheduleRequest
	if !decode(w, r, &req) {
		return
	}
	sched, err := h.svc.UpdateSchedule(r.Context(), id, req.input(currentUser(r)))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sched)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteSchedule(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sched, err := h.svc.GetSchedule(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sched)
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	yearID, err := queryID(r, "academic_year_id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	list, err := h.svc.ListSchedules(r.Context(), yearID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *ScheduleHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *ScheduleHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *ScheduleHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sched, err := h.svc.SetScheduleActive(r.Context(), id, active, currentUser(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sched)
}

// Apply spreads the schedule over every eligible student fee.
func (h *ScheduleHandler) Apply(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.ApplySchedule(r.Context(), id, currentUser(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
