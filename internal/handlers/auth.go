package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/go-fees/auth"
	"github.com/diewo77/go-fees/httpx"
	"github.com/diewo77/go-fees/internal/models"
)

type AuthHandler struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewAuthHandler(db *gorm.DB, log *zap.Logger) *AuthHandler {
	return &AuthHandler{db: db, log: log.Named("auth")}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Email    string      `json:"email" validate:"required,email,max=255"`
	Password string      `json:"password" validate:"required,min=8,max=72"`
	Name     string      `json:"name" validate:"max=255"`
	Role     models.Role `json:"role" validate:"omitempty,oneof=admin bursar cashier"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login checks the credentials, sets the session cookie and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	var user models.User
	err := h.db.WithContext(r.Context()).Where("email = ? AND active = ?", strings.ToLower(req.Email), true).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, h.log, err)
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	auth.CreateSession(w, user.ID)
	httpx.JSON(w, http.StatusOK, sessionResponse{Token: auth.Token(user.ID), User: &user})
}

// Register creates a staff user. The first user may register anonymously
// and becomes admin; afterwards only an admin may add users.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	var count int64
	if err := h.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		writeError(w, h.log, err)
		return
	}
	role := req.Role
	if count == 0 {
		role = models.RoleAdmin
	} else {
		var caller models.User
		uid, ok := auth.UserIDFromContext(ctx)
		if !ok || h.db.WithContext(ctx).First(&caller, "id = ?", uid).Error != nil || caller.Role != models.RoleAdmin {
			httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
			return
		}
		if role == "" {
			role = models.RoleBursar
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	user := models.User{
		Email:    strings.ToLower(req.Email),
		Name:     req.Name,
		Password: string(hashed),
		Role:     role,
		Active:   true,
	}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			httpx.JSONError(w, http.StatusConflict, "duplicate", "email already registered")
			return
		}
		writeError(w, h.log, err)
		return
	}
	h.log.Info("staff user registered", zap.String("email", user.Email), zap.String("role", string(user.Role)))
	httpx.JSON(w, http.StatusCreated, sessionResponse{Token: auth.Token(user.ID), User: &user})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed in user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := h.db.WithContext(r.Context()).First(&user, "id = ?", currentUser(r)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

// UserExists reports whether uid names an active user. It backs auth.SetUserVerifier.
func UserExists(db *gorm.DB) auth.UserVerifier {
	return func(ctx context.Context, uid uuid.UUID) bool {
		var count int64
		db.WithContext(ctx).Model(&models.User{}).Where("id = ? AND active = ?", uid, true).Count(&count)
		return count > 0
	}
}
