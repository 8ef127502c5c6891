package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ctxKey string

const (
	sessionCookieName = "session"
	userIDCtxKey      = ctxKey("userID")
	sessionTTL        = 14 * 24 * time.Hour
)

// UserVerifier is an optional callback to validate that a token's user still exists/is allowed.
// Set it during app bootstrap via SetUserVerifier. If nil, no extra verification is performed.
type UserVerifier func(ctx context.Context, uid uuid.UUID) bool

var (
	mu       sync.RWMutex
	secret   = []byte("devsessionsecret")
	verifier UserVerifier
)

// SetSecret configures the HMAC key tokens are signed with.
func SetSecret(s string) {
	if s == "" {
		return
	}
	mu.Lock()
	secret = []byte(s)
	mu.Unlock()
}

// SetUserVerifier configures the global verifier used by RequireAuth.
func SetUserVerifier(v UserVerifier) {
	mu.Lock()
	verifier = v
	mu.Unlock()
}

func sign(payload string) string {
	mu.RLock()
	mac := hmac.New(sha256.New, secret)
	mu.RUnlock()
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Token returns the signed token of userID, usable as cookie value or bearer token.
func Token(userID uuid.UUID) string {
	uid := userID.String()
	return uid + "." + sign(uid)
}

// ParseToken validates a token and returns its user id.
func ParseToken(token string) (uuid.UUID, bool) {
	uidStr, sig, ok := strings.Cut(token, ".")
	if !ok || uidStr == "" {
		return uuid.Nil, false
	}
	if !hmac.Equal([]byte(sig), []byte(sign(uidStr))) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(uidStr)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// CreateSession sets a signed cookie with the user id.
func CreateSession(w http.ResponseWriter, userID uuid.UUID) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    Token(userID),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sessionTTL),
	})
}

// ClearSession deletes the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// ParseRequest reads the user id from the Authorization header, falling back to the session cookie.
func ParseRequest(r *http.Request) (uuid.UUID, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return uuid.Nil, false
		}
		return ParseToken(strings.TrimSpace(token))
	}
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return uuid.Nil, false
	}
	return ParseToken(c.Value)
}

// WithUserID stores user id in context.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts user id.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDCtxKey).(uuid.UUID)
	return id, ok
}

// Middleware attaches user id to request context if present.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, ok := ParseRequest(r); ok {
			r = r.WithContext(WithUserID(r.Context(), uid))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth answers 401 unless Middleware found a valid, verified user.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		mu.RLock()
		v := verifier
		mu.RUnlock()
		if ok && v != nil && !v(r.Context(), uid) {
			ClearSession(w)
			ok = false
		}
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
