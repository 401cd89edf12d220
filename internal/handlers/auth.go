package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"expense-api/internal/auth"
	"expense-api/internal/storage"
)

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Index greets unauthenticated visitors at the root path.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Welcome to the Expense Tracker"))
}

// Register creates a new account. Validation is minimal: fields must be
// non-empty, everything else is up to the store.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, "Something went wrong")
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, "Something went wrong")
		return
	}

	hash, err := auth.HashPassword(req.Password, h.opts.BcryptCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeJSON(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if _, err := h.db.CreateUser(req.Email, req.Username, hash); err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			writeJSON(w, http.StatusConflict, "User already exists")
			return
		}
		h.logger.Error("create user", "error", err)
		writeJSON(w, http.StatusBadRequest, "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, "User created successfully")
}

// Login verifies credentials and issues a session cookie. The token is
// delivered only via the cookie; the body echoes the user id.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, "Invalid Email or Password")
		return
	}

	user, err := h.db.GetUserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("lookup user", "error", err)
		writeJSON(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		writeJSON(w, http.StatusBadRequest, "Invalid Email or Password")
		return
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		h.logger.Error("generate session token", "error", err)
		writeJSON(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	expiresAt := time.Now().Add(h.opts.SessionTTL)
	if err := h.db.CreateSession(token, user.ID, expiresAt); err != nil {
		h.logger.Error("create session", "error", err)
		writeJSON(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"userId":  user.ID,
	})
}

// CurrentUser returns the authenticated user's display name. Unlike the
// expense endpoints it answers 401 with a structured message, matching
// what the login page polls for.
func (h *Handlers) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessionUser(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": user.Username})
}

// CheckSession reports whether the caller holds a live session.
func (h *Handlers) CheckSession(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessionUser(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"userId": user.ID})
}

// Logout destroys the session and clears the cookie. Logging out without
// an active session still succeeds.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.db.DeleteSession(cookie.Value); err != nil {
			h.logger.Error("delete session", "error", err)
			writeJSON(w, http.StatusInternalServerError, "Error logging out")
			return
		}
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, "Logout successful")
}
