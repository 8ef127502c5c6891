package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-fees/httpx"
	"github.com/diewo77/go-fees/internal/models"
)

// RoleCache forgets the cached role of a user.
type RoleCache interface {
	Invalidate(userID uuid.UUID)
}

// UserHandler lets an admin manage staff accounts.
type UserHandler struct {
	db    *gorm.DB
	roles RoleCache
	log   *zap.Logger
}

func NewUserHandler(db *gorm.DB, roles RoleCache, log *zap.Logger) *UserHandler {
	return &UserHandler{db: db, roles: roles, log: log.Named("users")}
}

type updateUserRequest struct {
	Name   *string      `json:"name" validate:"omitempty,max=255"`
	Role   *models.Role `json:"role" validate:"omitempty,oneof=admin bursar cashier"`
	Active *bool        `json:"active"`
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	var users []models.User
	if err := h.db.WithContext(r.Context()).Order("email").Find(&users).Error; err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

// Update changes the name, role or active flag of a user. Admins cannot
// demote or deactivate themselves.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateUserRequest
	if !decode(w, r, &req) {
		return
	}
	if id == currentUser(r) && ((req.Role != nil && *req.Role != models.RoleAdmin) || (req.Active != nil && !*req.Active)) {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", map[string]string{"id": "cannot demote or deactivate yourself"})
		return
	}

	ctx := r.Context()
	var user models.User
	if err := h.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", "user "+id.String()+" not found")
			return
		}
		writeError(w, h.log, err)
		return
	}
	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if len(updates) > 0 {
		if err := h.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			writeError(w, h.log, err)
			return
		}
		h.roles.Invalidate(user.ID)
		h.log.Info("staff user updated", zap.String("user_id", user.ID.String()), zap.Any("changes", updates))
	}
	if err := h.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}
