package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	applog "expense-api/internal/log"
	"expense-api/internal/models"
	"expense-api/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := storage.NewDB(":memory:")
	require.NoError(t, err, "failed to create test database")
	t.Cleanup(func() { db.Close() })

	logger := applog.New(slog.LevelError, applog.ComponentHTTP)
	h := NewHandlers(db, logger, Options{
		SessionTTL: time.Minute,
		BcryptCost: bcrypt.MinCost, // keep hashing fast in tests
	})

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, data
}

func register(t *testing.T, client *http.Client, baseURL, email, username, password string) {
	t.Helper()
	resp, _ := doJSON(t, client, http.MethodPost, baseURL+"/api/register", map[string]string{
		"email": email, "username": username, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "registration should succeed")
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) int64 {
	t.Helper()
	resp, body := doJSON(t, client, http.MethodPost, baseURL+"/api/login", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "login should succeed")

	var result struct {
		Message string `json:"message"`
		UserID  int64  `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	require.Equal(t, "Login successful", result.Message)
	return result.UserID
}

func TestRegister(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	resp, body := doJSON(t, client, http.MethodPost, srv.URL+"/api/register", map[string]string{
		"email": "alice@example.com", "username": "alice", "password": "secret",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `"User created successfully"`, string(body))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "alice@example.com", "alice", "secret")

	resp, body := doJSON(t, client, http.MethodPost, srv.URL+"/api/register", map[string]string{
		"email": "alice@example.com", "username": "impostor", "password": "other",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.JSONEq(t, `"User already exists"`, string(body))

	// The first account is unchanged: its original password still works.
	login(t, client, srv.URL, "alice@example.com", "secret")
	resp, body = doJSON(t, client, http.MethodGet, srv.URL+"/api/current-user", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"username":"alice"}`, string(body))
}

func TestRegisterMissingFields(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	resp, body := doJSON(t, client, http.MethodPost, srv.URL+"/api/register", map[string]string{
		"email": "alice@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `"Something went wrong"`, string(body))
}

func TestLoginUnknownUser(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	resp, body := doJSON(t, client, http.MethodPost, srv.URL+"/api/login", map[string]string{
		"email": "ghost@example.com", "password": "whatever",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `"User not found"`, string(body))
}

func TestLoginWrongPassword(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "alice@example.com", "alice", "secret")

	resp, body := doJSON(t, client, http.MethodPost, srv.URL+"/api/login", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `"Invalid Email or Password"`, string(body))

	// No session was issued
	resp, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/current-user", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginIssuesHTTPOnlyCookie(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "alice@example.com", "alice", "secret")

	payload, _ := json.Marshal(map[string]string{"email": "alice@example.com", "password": "secret"})
	resp, err := client.Post(srv.URL+"/api/login", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie, "login must set the session cookie")
	assert.True(t, sessionCookie.HttpOnly)
	assert.NotEmpty(t, sessionCookie.Value)
	assert.Positive(t, sessionCookie.MaxAge)

	// Token must not appear in the response body
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(body), sessionCookie.Value)
}

func TestCheckSession(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "alice@example.com", "alice", "secret")
	userID := login(t, client, srv.URL, "alice@example.com", "secret")

	resp, body := doJSON(t, client, http.MethodGet, srv.URL+"/api/check-session", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		UserID int64 `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, userID, result.UserID)
}

func TestSessionProbesUnauthenticated(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	for _, path := range []string{"/api/current-user", "/api/check-session"} {
		resp, body := doJSON(t, client, http.MethodGet, srv.URL+path, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		assert.JSONEq(t, `{"message":"Not authenticated"}`, string(body), path)
	}
}

func TestExpenseEndpointsRequireAuth(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/expenses"},
		{http.MethodGet, "/api/expenses"},
		{http.MethodPut, "/api/expenses/1"},
		{http.MethodDelete, "/api/expenses/1"},
		{http.MethodGet, "/api/statistics"},
	}
	for _, tc := range cases {
		resp, body := doJSON(t, client, tc.method, srv.URL+tc.path, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", tc.method, tc.path)
		assert.JSONEq(t, `"Unauthorized"`, string(body))
	}
}

func TestExpenseCRUDFlow(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "alice@example.com", "alice", "secret")
	login(t, client, srv.URL, "alice@example.com", "secret")

	resp, body := doJSON(t, client, http.MethodPost, srv.URL+"/api/expenses", map[string]any{
		"category": "food", "amount": 12.5, "date": "2024-05-02",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `"Expense added successfully"`, string(body))

	resp, body = doJSON(t, client, http.MethodGet, srv.URL+"/api/expenses", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var expenses []models.Expense
	require.NoError(t, json.Unmarshal(body, &expenses))
	require.Len(t, expenses, 1)
	assert.Equal(t, "food", expenses[0].Category)
	assert.Equal(t, 12.5, expenses[0].Amount)
	assert.Equal(t, "2024-05-02", expenses[0].Date.Format(models.DateLayout))

	id := expenses[0].ID

	resp, body = doJSON(t, client, http.MethodPut, srv.URL+"/api/expenses/"+itoa(id), map[string]any{
		"category": "transport", "amount": 8, "date": "2024-05-03",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `"Expense updated successfully"`, string(body))

	resp, body = doJSON(t, client, http.MethodDelete, srv.URL+"/api/expenses/"+itoa(id), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `"Expense deleted successfully"`, string(body))

	// Second delete hits nothing
	resp, body = doJSON(t, client, http.MethodDelete, srv.URL+"/api/expenses/"+itoa(id), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `"Expense not found or not authorized"`, string(body))
}

func TestExpenseListOrder(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "alice@example.com", "alice", "secret")
	login(t, client, srv.URL, "alice@example.com", "secret")

	for _, date := range []string{"2024-01-01", "2024-03-01", "2024-02-01"} {
		resp, _ := doJSON(t, client, http.MethodPost, srv.URL+"/api/expenses", map[string]any{
			"category": "food", "amount": 1, "date": date,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := doJSON(t, client, http.MethodGet, srv.URL+"/api/expenses", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var expenses []models.Expense
	require.NoError(t, json.Unmarshal(body, &expenses))
	require.Len(t, expenses, 3)
	assert.Equal(t, "2024-03-01", expenses[0].Date.Format(models.DateLayout))
	assert.Equal(t, "2024-02-01", expenses[1].Date.Format(models.DateLayout))
	assert.Equal(t, "2024-01-01", expenses[2].Date.Format(models.DateLayout))
}

func TestExpenseOwnershipIsolation(t *testing.T) {
	srv := newTestServer(t)

	alice := newClient(t)
	register(t, alice, srv.URL, "alice@example.com", "alice", "secret")
	login(t, alice, srv.URL, "alice@example.com", "secret")

	bob := newClient(t)
	register(t, bob, srv.URL, "bob@example.com", "bob", "hunter2")
	login(t, bob, srv.URL, "bob@example.com", "hunter2")

	resp, _ := doJSON(t, alice, http.MethodPost, srv.URL+"/api/expenses", map[string]any{
		"category": "food", "amount": 42, "date": "2024-05-02",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, alice, http.MethodGet, srv.URL+"/api/expenses", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var aliceExpenses []models.Expense
	require.NoError(t, json.Unmarshal(body, &aliceExpenses))
	require.Len(t, aliceExpenses, 1)
	id := aliceExpenses[0].ID

	// Bob sees nothing
	resp, body = doJSON(t, bob, http.MethodGet, srv.URL+"/api/expenses", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	// Bob cannot mutate Alice's expense; the response does not reveal
	// whether the row exists
	resp, body = doJSON(t, bob, http.MethodPut, srv.URL+"/api/expenses/"+itoa(id), map[string]any{
		"category": "theft", "amount": 0, "date": "2024-05-03",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `"Expense not found or not authorized"`, string(body))

	resp, _ = doJSON(t, bob, http.MethodDelete, srv.URL+"/api/expenses/"+itoa(id), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Alice's expense survived Bob's attempts
	resp, body = doJSON(t, alice, http.MethodGet, srv.URL+"/api/expenses", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &aliceExpenses))
	require.Len(t, aliceExpenses, 1)
	assert.Equal(t, "food", aliceExpenses[0].Category)
}

func TestUpdateMissingExpense(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "alice@example.com", "alice", "secret")
	login(t, client, srv.URL, "alice@example.com", "secret")

	resp, body := doJSON(t, client, http.MethodPut, srv.URL+"/api/expenses/9999", map[string]any{
		"category": "food", "amount": 1, "date": "2024-05-02",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `"Expense not found or not authorized"`, string(body))
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "alice@example.com", "alice", "secret")
	login(t, client, srv.URL, "alice@example.com", "secret")

	resp, body := doJSON(t, client, http.MethodPost, srv.URL+"/api/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `"Logout successful"`, string(body))

	// The session is gone server-side; any expense call is rejected
	resp, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/expenses", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Logging out without an active session still succeeds
	resp, body = doJSON(t, client, http.MethodPost, srv.URL+"/api/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `"Logout successful"`, string(body))
}

func TestLogoutInvalidatesTokenNotJustCookie(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "alice@example.com", "alice", "secret")

	payload, _ := json.Marshal(map[string]string{"email": "alice@example.com", "password": "secret"})
	resp, err := client.Post(srv.URL+"/api/login", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()

	var token string
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookieName {
			token = c.Value
		}
	}
	require.NotEmpty(t, token)

	resp, _ = doJSON(t, client, http.MethodPost, srv.URL+"/api/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Replaying the old token fails: the store row was destroyed
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/expenses", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	replay, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	replay.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, replay.StatusCode)
}

func TestStatistics(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	register(t, client, srv.URL, "alice@example.com", "alice", "secret")
	login(t, client, srv.URL, "alice@example.com", "secret")

	for _, e := range []map[string]any{
		{"category": "food", "amount": 10, "date": "2024-05-02"},
		{"category": "food", "amount": 5, "date": "2024-05-10"},
		{"category": "transport", "amount": 5, "date": "2024-05-03"},
	} {
		resp, _ := doJSON(t, client, http.MethodPost, srv.URL+"/api/expenses", e)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := doJSON(t, client, http.MethodGet, srv.URL+"/api/statistics?year=2024&month=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats struct {
		Year       int     `json:"year"`
		Month      int     `json:"month"`
		Total      float64 `json:"total"`
		Categories []struct {
			Category   string  `json:"category"`
			Total      float64 `json:"total"`
			Count      int     `json:"count"`
			Percentage float64 `json:"percentage"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 2024, stats.Year)
	assert.Equal(t, 5, stats.Month)
	assert.Equal(t, 20.0, stats.Total)
	require.Len(t, stats.Categories, 2)
	assert.Equal(t, "food", stats.Categories[0].Category)
	assert.Equal(t, 15.0, stats.Categories[0].Total)
	assert.Equal(t, 2, stats.Categories[0].Count)
	assert.InDelta(t, 75.0, stats.Categories[0].Percentage, 0.001)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
