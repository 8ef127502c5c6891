package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/diewo77/go-fees/httpx"
	"github.com/diewo77/go-fees/internal/directory"
	"github.com/diewo77/go-fees/internal/models"
)

// DirectoryHandler exposes the classes, academic years and students fees are assigned to.
type DirectoryHandler struct {
	dir *directory.Directory
	log *zap.Logger
}

func NewDirectoryHandler(dir *directory.Directory, log *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{dir: dir, log: log.Named("directory")}
}

type studentRequest struct {
	Name         string               `json:"name" validate:"required,max=255"`
	ClassID      uuid.UUID            `json:"class_id" validate:"required"`
	Status       models.StudentStatus `json:"status" validate:"omitempty,oneof=active inactive graduated"`
	GuardianName string               `json:"guardian_name" validate:"max=255"`
	Phone        string               `json:"phone" validate:"omitempty,e164"`
	Email        string               `json:"email" validate:"omitempty,email"`
}

func (h *DirectoryHandler) ListClasses(w http.ResponseWriter, r *http.Request) {
	list, err := h.dir.ListClasses(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *DirectoryHandler) ListAcademicYears(w http.ResponseWriter, r *http.Request) {
	list, err := h.dir.ListAcademicYears(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

// ListStudents lists active students, optionally of one class_id.
func (h *DirectoryHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	classID, err := queryID(r, "class_id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	list, err := h.dir.ListActiveStudents(r.Context(), classID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *DirectoryHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	st, err := h.dir.GetStudent(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *DirectoryHandler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if !decode(w, r, &req) {
		return
	}
	st := &models.Student{
		Name:         req.Name,
		ClassID:      req.ClassID,
		Status:       req.Status,
		GuardianName: req.GuardianName,
		Phone:        req.Phone,
		Email:        req.Email,
	}
	if err := h.dir.CreateStudent(r.Context(), st); err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, st)
}
