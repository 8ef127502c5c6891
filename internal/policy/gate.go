// Package policy decides which staff roles may call which routes.
package policy

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/diewo77/go-fees/auth"
	"github.com/diewo77/go-fees/httpx"
	"github.com/diewo77/go-fees/internal/models"
)

// RoleResolver returns the role of a user.
type RoleResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (models.Role, error)
}

// ErrInactive is returned for unknown or deactivated users.
var ErrInactive = errors.New("user_inactive")

// DBResolver reads roles from the users table.
type DBResolver struct {
	db *gorm.DB
}

func NewDBResolver(db *gorm.DB) *DBResolver {
	return &DBResolver{db: db}
}

func (r *DBResolver) Resolve(ctx context.Context, userID uuid.UUID) (models.Role, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Select("role", "active").First(&u, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInactive
		}
		return "", errors.Wrap(err, "resolve role")
	}
	if !u.Active {
		return "", ErrInactive
	}
	return u.Role, nil
}

// CachedResolver keeps resolved roles for ttl.
type CachedResolver struct {
	inner RoleResolver
	ttl   time.Duration
	now   func() time.Time

	mu    sync.RWMutex
	cache map[uuid.UUID]cacheEntry
}

type cacheEntry struct {
	role      models.Role
	expiresAt time.Time
}

func NewCachedResolver(inner RoleResolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{inner: inner, ttl: ttl, now: time.Now, cache: make(map[uuid.UUID]cacheEntry)}
}

func (r *CachedResolver) Resolve(ctx context.Context, userID uuid.UUID) (models.Role, error) {
	r.mu.RLock()
	e, ok := r.cache[userID]
	r.mu.RUnlock()
	if ok && r.now().Before(e.expiresAt) {
		return e.role, nil
	}
	role, err := r.inner.Resolve(ctx, userID)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.cache[userID] = cacheEntry{role: role, expiresAt: r.now().Add(r.ttl)}
	r.mu.Unlock()
	return role, nil
}

// Invalidate drops the cached role of one user.
func (r *CachedResolver) Invalidate(userID uuid.UUID) {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()
}

// Gate guards handlers by role.
type Gate struct {
	roles RoleResolver
}

func NewGate(roles RoleResolver) *Gate {
	return &Gate{roles: roles}
}

// Allow reports whether the user holds one of roles. Admin is always allowed.
func (g *Gate) Allow(ctx context.Context, userID uuid.UUID, roles ...models.Role) bool {
	role, err := g.roles.Resolve(ctx, userID)
	if err != nil {
		return false
	}
	return role == models.RoleAdmin || slices.Contains(roles, role)
}

// Require answers 403 unless the caller holds one of roles.
// It expects auth.RequireAuth to run first.
func (g *Gate) Require(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, ok := auth.UserIDFromContext(r.Context())
			if !ok || !g.Allow(r.Context(), uid, roles...) {
				httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
