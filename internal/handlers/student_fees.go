package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/diewo77/go-fees/httpx"
	"github.com/diewo77/go-fees/internal/models"
	"github.com/diewo77/go-fees/internal/services"
)

// StudentFeeHandler assigns fee structures and reads student fees.
type StudentFeeHandler struct {
	svc *services.AssignmentService
	log *zap.Logger
}

func NewStudentFeeHandler(svc *services.AssignmentService, log *zap.Logger) *StudentFeeHandler {
	return &StudentFeeHandler{svc: svc, log: log.Named("student_fees")}
}

type assignRequest struct {
	StudentID uuid.UUID `json:"student_id" validate:"required"`
}

func (h *StudentFeeHandler) Assign(w http.ResponseWriter, r *http.Request) {
	structureID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req assignRequest
	if !decode(w, r, &req) {
		return
	}
	fee, err := h.svc.Assign(r.Context(), structureID, req.StudentID, currentUser(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, fee)
}

func (h *StudentFeeHandler) AssignToClass(w http.ResponseWriter, r *http.Request) {
	structureID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.AssignToClass(r.Context(), structureID, currentUser(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *StudentFeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	fee, err := h.svc.GetStudentFee(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, fee)
}

// List filters by academic_year_id, class_id, student_id and status.
func (h *StudentFeeHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		f   services.StudentFeeFilter
		err error
	)
	if f.AcademicYearID, err = queryID(r, "academic_year_id"); err != nil {
		writeError(w, h.log, err)
		return
	}
	if f.ClassID, err = queryID(r, "class_id"); err != nil {
		writeError(w, h.log, err)
		return
	}
	if f.StudentID, err = queryID(r, "student_id"); err != nil {
		writeError(w, h.log, err)
		return
	}
	f.Status = models.FeeStatus(r.URL.Query().Get("status"))
	fees, err := h.svc.ListStudentFees(r.Context(), f)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, fees)
}
