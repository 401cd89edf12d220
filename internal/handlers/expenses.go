package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"expense-api/internal/models"
	"expense-api/internal/storage"
)

type expenseRequest struct {
	Category string      `json:"category"`
	Amount   float64     `json:"amount"`
	Date     models.Date `json:"date"`
}

// CreateExpense records a new expense for the session's user. Amount
// sign, date range and category vocabulary are not validated; the row is
// stored as sent.
// TODO: tighten input validation once the client contract allows it.
func (h *Handlers) CreateExpense(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r)

	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, "Error adding expense")
		return
	}

	if err := h.db.CreateExpense(user.ID, req.Category, req.Amount, req.Date); err != nil {
		h.logger.Error("create expense", "error", err, "user_id", user.ID)
		writeJSON(w, http.StatusBadRequest, "Error adding expense")
		return
	}

	writeJSON(w, http.StatusCreated, "Expense added successfully")
}

// ListExpenses returns every expense of the session's user, newest date
// first.
func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r)

	expenses, err := h.db.ListExpensesByUser(user.ID)
	if err != nil {
		h.logger.Error("list expenses", "error", err, "user_id", user.ID)
		writeJSON(w, http.StatusBadRequest, "Error retrieving expenses")
		return
	}

	writeJSON(w, http.StatusOK, expenses)
}

// UpdateExpense rewrites an expense the session's user owns. A missing
// row and a row owned by someone else produce the same 404 so that
// existence is not leaked.
func (h *Handlers) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, "Expense not found or not authorized")
		return
	}

	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, "Error updating expense")
		return
	}

	if err := h.db.UpdateExpense(id, user.ID, req.Category, req.Amount, req.Date); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, "Expense not found or not authorized")
			return
		}
		h.logger.Error("update expense", "error", err, "user_id", user.ID, "expense_id", id)
		writeJSON(w, http.StatusBadRequest, "Error updating expense")
		return
	}

	writeJSON(w, http.StatusOK, "Expense updated successfully")
}

// DeleteExpense removes an expense the session's user owns. Deleting an
// already-deleted id yields 404, not 200.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, "Expense not found or not authorized")
		return
	}

	if err := h.db.DeleteExpense(id, user.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, "Expense not found or not authorized")
			return
		}
		h.logger.Error("delete expense", "error", err, "user_id", user.ID, "expense_id", id)
		writeJSON(w, http.StatusBadRequest, "Error deleting expense")
		return
	}

	writeJSON(w, http.StatusOK, "Expense deleted successfully")
}
