package handlers

import (
	"net/http"
	"strconv"
	"time"
)

// statsCategory is one category's share of a month's spending.
type statsCategory struct {
	Category   string  `json:"category"`
	Total      float64 `json:"total"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type statsResponse struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Total      float64         `json:"total"`
	Categories []statsCategory `json:"categories"`
}

// Statistics aggregates the session user's spending per category for one
// month. Year and month come from query parameters and default to the
// current month.
func (h *Handlers) Statistics(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r)

	now := time.Now()
	year := now.Year()
	month := int(now.Month())

	if v := r.URL.Query().Get("year"); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}
	if v := r.URL.Query().Get("month"); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			month = m
		}
	}

	totals, err := h.db.GetCategoryTotalsByMonth(user.ID, year, month)
	if err != nil {
		h.logger.Error("category totals", "error", err, "user_id", user.ID)
		writeJSON(w, http.StatusBadRequest, "Error retrieving statistics")
		return
	}

	var total float64
	for _, ct := range totals {
		total += ct.Total
	}

	categories := make([]statsCategory, 0, len(totals))
	for _, ct := range totals {
		percentage := 0.0
		if total > 0 {
			percentage = (ct.Total / total) * 100
		}
		categories = append(categories, statsCategory{
			Category:   ct.Category,
			Total:      ct.Total,
			Count:      ct.Count,
			Percentage: percentage,
		})
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Year:       year,
		Month:      month,
		Total:      total,
		Categories: categories,
	})
}
