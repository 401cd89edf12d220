package models

import "time"

// Expense represents a financial expense record owned by a single user.
type Expense struct {
	ID       int64   `json:"id"`
	UserID   int64   `json:"user_id"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Date     Date    `json:"date"`
}

// User represents a registered account. Email is unique; the password is
// stored only as a bcrypt hash.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session maps an opaque token to an authenticated user until it expires.
// A user may hold several sessions at once.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
