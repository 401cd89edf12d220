// Package storage persists users, expenses and sessions in SQLite.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"expense-api/internal/models"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when no row matches the given identity.
	// For expense mutations it deliberately covers both a missing row
	// and a row owned by another user.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken is returned when registering an email that already
	// has an account.
	ErrEmailTaken = errors.New("email already registered")
)

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer; one pooled connection also keeps
	// in-memory test databases on a single schema.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateUser registers a new account. The email must not already exist;
// the check is a case-sensitive exact match.
func (db *DB) CreateUser(email, username, passwordHash string) (*models.User, error) {
	if _, err := db.GetUserByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	result, err := db.conn.Exec(
		"INSERT INTO users (email, username, password_hash) VALUES (?, ?, ?)",
		email, username, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return db.GetUserByID(id)
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(email string) (*models.User, error) {
	row := db.conn.QueryRow(
		"SELECT id, email, username, password_hash, created_at FROM users WHERE email = ?",
		email,
	)
	return scanUser(row)
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(id int64) (*models.User, error) {
	row := db.conn.QueryRow(
		"SELECT id, email, username, password_hash, created_at FROM users WHERE id = ?",
		id,
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateExpense inserts a new expense owned by the given user. Amount,
// category and date are stored verbatim; the client is trusted here.
func (db *DB) CreateExpense(userID int64, category string, amount float64, date models.Date) error {
	_, err := db.conn.Exec(
		"INSERT INTO expenses (user_id, category, amount, date) VALUES (?, ?, ?, ?)",
		userID, category, amount, date.Time,
	)
	return err
}

// ListExpensesByUser retrieves all expenses of a user, ordered by date
// descending. Rows on the same date keep store-native order.
func (db *DB) ListExpensesByUser(userID int64) ([]models.Expense, error) {
	rows, err := db.conn.Query(
		"SELECT id, user_id, category, amount, date FROM expenses WHERE user_id = ? ORDER BY date DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		var e models.Expense
		var date time.Time
		if err := rows.Scan(&e.ID, &e.UserID, &e.Category, &e.Amount, &date); err != nil {
			return nil, err
		}
		e.Date = models.Date{Time: date}
		expenses = append(expenses, e)
	}

	return expenses, rows.Err()
}

// UpdateExpense rewrites category, amount and date of an expense. The
// write is conditional on both id and owner, so ErrNotFound covers a
// missing row as well as one owned by someone else.
func (db *DB) UpdateExpense(id, userID int64, category string, amount float64, date models.Date) error {
	result, err := db.conn.Exec(
		"UPDATE expenses SET category = ?, amount = ?, date = ? WHERE id = ? AND user_id = ?",
		category, amount, date.Time, id, userID,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// DeleteExpense removes an expense, conditional on id and owner.
func (db *DB) DeleteExpense(id, userID int64) error {
	result, err := db.conn.Exec(
		"DELETE FROM expenses WHERE id = ? AND user_id = ?",
		id, userID,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSession creates a new session for a user. A user may hold
// multiple sessions concurrently.
func (db *DB) CreateSession(token string, userID int64, expiresAt time.Time) error {
	_, err := db.conn.Exec(
		"INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		token, userID, expiresAt.UTC(),
	)
	return err
}

// ValidateSession resolves a session token to its user. Expired sessions
// are treated as absent.
func (db *DB) ValidateSession(token string) (*models.User, error) {
	row := db.conn.QueryRow(`
		SELECT u.id, u.email, u.username, u.password_hash, u.created_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > ?
	`, token, time.Now().UTC())
	return scanUser(row)
}

// DeleteSession removes a session by token. Deleting a session that no
// longer exists is not an error.
func (db *DB) DeleteSession(token string) error {
	_, err := db.conn.Exec("DELETE FROM sessions WHERE token = ?", token)
	return err
}

// DeleteExpiredSessions removes all expired sessions and reports how
// many were swept.
func (db *DB) DeleteExpiredSessions() (int64, error) {
	result, err := db.conn.Exec("DELETE FROM sessions WHERE expires_at <= ?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CategoryTotal aggregates spending for one category.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

// GetCategoryTotalsByMonth aggregates a user's expenses per category for
// a given month, largest total first.
func (db *DB) GetCategoryTotalsByMonth(userID int64, year, month int) ([]CategoryTotal, error) {
	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	rows, err := db.conn.Query(`
		SELECT category, SUM(amount), COUNT(*)
		FROM expenses
		WHERE user_id = ? AND date >= ? AND date < ?
		GROUP BY category
		ORDER BY SUM(amount) DESC
	`, userID, monthStart, monthEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := []CategoryTotal{}
	for rows.Next() {
		var ct CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total, &ct.Count); err != nil {
			return nil, err
		}
		totals = append(totals, ct)
	}

	return totals, rows.Err()
}
