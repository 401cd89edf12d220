// Package handlers implements the session-authenticated JSON API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"expense-api/internal/auth"
	applog "expense-api/internal/log"
	"expense-api/internal/models"
	"expense-api/internal/storage"
)

// Context key type to avoid collisions.
type contextKey string

// userContextKey is the context key for the authenticated user.
const userContextKey contextKey = "user"

// SessionCookieName is the name of the session cookie.
const SessionCookieName = "user_sid"

// Options configures handler behavior.
type Options struct {
	// SessionTTL is how long an issued session and its cookie last.
	SessionTTL time.Duration
	// BcryptCost is the bcrypt work factor for new password hashes.
	BcryptCost int
	// SecureCookie marks session cookies Secure (HTTPS-only deployments).
	SecureCookie bool
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db     *storage.DB
	logger *applog.Logger
	opts   Options
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *storage.DB, logger *applog.Logger, opts Options) *Handlers {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 600 * time.Second
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = auth.DefaultCost
	}
	return &Handlers{db: db, logger: logger, opts: opts}
}

// UserFromContext retrieves the authenticated user from request context.
func UserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(userContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// RequireAuth wraps a handler with the session resolution guard. Requests
// without a resolvable session are rejected with 401 before reaching the
// target handler; otherwise the user is attached to the request context.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.sessionUser(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionUser resolves the session cookie to a user, or an error when the
// cookie is absent, unknown or expired.
func (h *Handlers) sessionUser(r *http.Request) (*models.User, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, errors.New("no session cookie")
	}
	return h.db.ValidateSession(cookie.Value)
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.opts.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeJSON writes v as the JSON response body. Plain strings produce the
// bare-string bodies the browser client renders verbatim.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
