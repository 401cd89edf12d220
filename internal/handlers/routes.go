package handlers

import "net/http"

// Routes builds the API route table. Expense endpoints sit behind the
// session resolution guard; registration, login and the session probes
// handle authentication themselves.
func (h *Handlers) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.Index)

	mux.HandleFunc("POST /api/register", h.Register)
	mux.HandleFunc("POST /api/login", h.Login)
	mux.HandleFunc("POST /api/logout", h.Logout)
	mux.HandleFunc("GET /api/current-user", h.CurrentUser)
	mux.HandleFunc("GET /api/check-session", h.CheckSession)

	mux.Handle("POST /api/expenses", h.RequireAuth(http.HandlerFunc(h.CreateExpense)))
	mux.Handle("GET /api/expenses", h.RequireAuth(http.HandlerFunc(h.ListExpenses)))
	mux.Handle("PUT /api/expenses/{id}", h.RequireAuth(http.HandlerFunc(h.UpdateExpense)))
	mux.Handle("DELETE /api/expenses/{id}", h.RequireAuth(http.HandlerFunc(h.DeleteExpense)))
	mux.Handle("GET /api/statistics", h.RequireAuth(http.HandlerFunc(h.Statistics)))

	return mux
}
