package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/storage"
)

var testNow = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard, Format: "text", Component: log.ComponentHTTP})
}

func newTestServer(t *testing.T, opts Options) (*Server, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	srv, err := NewServer(services.NewTransactionService(store, nil), opts)
	require.NoError(t, err)
	return srv, store
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func seedTx(t *testing.T, store *storage.MemoryStore, amount string, typ core.TransactionType, category string, date time.Time) core.Transaction {
	t.Helper()
	tx, err := store.Insert(context.Background(), core.Transaction{
		Description: category + " entry",
		Amount:      decimal.RequireFromString(amount),
		Date:        date,
		Category:    category,
		Type:        typ,
	})
	require.NoError(t, err)
	return tx
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateTransaction(t *testing.T) {
	srv, store := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/api/transactions",
		`{"description":"Groceries","amount":42.5,"date":"2024-05-10","category":"Food","type":"expense"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/transactions/1", rec.Header().Get("Location"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	created := decodeBody[core.Transaction](t, rec)
	assert.Equal(t, int64(1), created.ID)
	assert.True(t, decimal.RequireFromString("42.5").Equal(created.Amount))
	assert.Equal(t, core.Expense, created.Type)

	stored, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", stored.Description)
	assert.True(t, stored.Date.Equal(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)))
}

func TestCreateTransaction_IgnoresClientID(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/api/transactions",
		`{"id":99,"amount":"10","date":"2024-05-10T08:30:00Z","category":"Salary","type":0}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[core.Transaction](t, rec)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, core.Income, created.Type)
}

func TestCreateTransaction_AcceptsAmountStrings(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{`"12,34"`, "12.34"},
		{`"12.345"`, "12.35"},
		{`" 7,5 "`, "7.5"},
		{`19.99`, "19.99"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			srv, store := newTestServer(t, Options{})
			rec := do(t, srv, http.MethodPost, "/api/transactions",
				`{"amount":`+tt.amount+`,"date":"2024-05-10","category":"Food","type":"expense"}`)
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

			stored, err := store.Get(context.Background(), 1)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(stored.Amount), stored.Amount.String())
		})
	}
}

func TestCreateTransaction_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"amount":`, http.StatusBadRequest},
		{"trailing data", `{"amount":1,"date":"2024-05-10","type":"income"} {}`, http.StatusBadRequest},
		{"bad date", `{"amount":1,"date":"10/05/2024","type":"income"}`, http.StatusBadRequest},
		{"unknown type", `{"amount":1,"date":"2024-05-10","type":"transfer"}`, http.StatusUnprocessableEntity},
		{"missing type", `{"amount":1,"date":"2024-05-10"}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"amount":-5,"date":"2024-05-10","type":"expense"}`, http.StatusUnprocessableEntity},
		{"negative amount string", `{"amount":"-5,00","date":"2024-05-10","type":"expense"}`, http.StatusUnprocessableEntity},
		{"non-numeric amount", `{"amount":"twelve","date":"2024-05-10","type":"expense"}`, http.StatusUnprocessableEntity},
		{"fractional type", `{"amount":1,"date":"2024-05-10","type":2.5}`, http.StatusUnprocessableEntity},
		{"out of range type", `{"amount":1,"date":"2024-05-10","type":2}`, http.StatusUnprocessableEntity},
		{"missing date", `{"amount":5,"type":"expense"}`, http.StatusUnprocessableEntity},
		{"description too long", `{"amount":5,"date":"2024-05-10","type":"expense","description":"` + strings.Repeat("x", core.MaxDescriptionLength+1) + `"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := newTestServer(t, Options{})
			rec := do(t, srv, http.MethodPost, "/api/transactions", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			body := decodeBody[map[string]string](t, rec)
			assert.NotEmpty(t, body["error"])

			n, err := store.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestCreateTransaction_BodyTooLarge(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	body := `{"description":"` + strings.Repeat("x", MaxBodyBytes) + `"}`

	rec := do(t, srv, http.MethodPost, "/api/transactions", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestGetTransaction(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	tx := seedTx(t, store, "12.30", core.Expense, "Food", testNow)

	rec := do(t, srv, http.MethodGet, "/api/transactions/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[core.Transaction](t, rec)
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, "Food", got.Category)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/transactions/2", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/transactions/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/transactions/0", "").Code)
}

func TestListTransactions(t *testing.T) {
	srv, store := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/api/transactions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	seedTx(t, store, "100", core.Income, "Salary", testNow)
	seedTx(t, store, "40", core.Expense, "Food", testNow)
	seedTx(t, store, "15", core.Expense, "Transport", testNow)

	all := decodeBody[[]core.Transaction](t, do(t, srv, http.MethodGet, "/api/transactions", ""))
	require.Len(t, all, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{all[0].ID, all[1].ID, all[2].ID})

	expenses := decodeBody[[]core.Transaction](t, do(t, srv, http.MethodGet, "/api/transactions/expenses", ""))
	assert.Len(t, expenses, 2)
	for _, tx := range expenses {
		assert.Equal(t, core.Expense, tx.Type)
	}

	incomes := decodeBody[[]core.Transaction](t, do(t, srv, http.MethodGet, "/api/transactions/incomes", ""))
	require.Len(t, incomes, 1)
	assert.Equal(t, "Salary", incomes[0].Category)

	filtered := decodeBody[[]core.Transaction](t, do(t, srv, http.MethodGet, "/api/transactions?type=expense", ""))
	assert.Len(t, filtered, 2)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/transactions?type=transfer", "").Code)
}

func TestUpdateTransaction(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	seedTx(t, store, "10", core.Expense, "Food", testNow)

	rec := do(t, srv, http.MethodPut, "/api/transactions/1",
		`{"id":1,"description":"Paycheck","amount":2500,"date":"2024-05-01T09:00:00","category":"Salary","type":"income"}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Body.String())

	got, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "Paycheck", got.Description)
	assert.Equal(t, core.Income, got.Type)
	assert.Equal(t, "Salary", got.Category)
	assert.True(t, decimal.NewFromInt(2500).Equal(got.Amount))
	assert.True(t, got.Date.Equal(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)))
}

func TestUpdateTransaction_Errors(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	original := seedTx(t, store, "10", core.Expense, "Food", testNow)
	valid := `{"amount":1,"date":"2024-05-10","type":"income"}`

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"id mismatch", "/api/transactions/1", `{"id":2,"amount":1,"date":"2024-05-10","type":"income"}`, http.StatusBadRequest},
		{"bad path id", "/api/transactions/x", valid, http.StatusBadRequest},
		{"malformed", "/api/transactions/1", `not json`, http.StatusBadRequest},
		{"absent", "/api/transactions/7", valid, http.StatusNotFound},
		{"invalid", "/api/transactions/1", `{"amount":-1,"date":"2024-05-10","type":"income"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	got, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestDeleteTransaction(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	seedTx(t, store, "10", core.Expense, "Food", testNow)

	rec := do(t, srv, http.MethodDelete, "/api/transactions/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/transactions/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/api/transactions/1", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodDelete, "/api/transactions/-1", "").Code)
}

func TestSummary(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	seedTx(t, store, "100", core.Income, "Salary", time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))
	seedTx(t, store, "40", core.Expense, "Food", time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC))
	seedTx(t, store, "7", core.Expense, "Food", time.Date(2024, 4, 30, 23, 59, 59, 0, time.UTC))

	rec := do(t, srv, http.MethodGet, "/api/transactions/summary?window=month", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	summary := decodeBody[core.Summary](t, rec)
	assert.Equal(t, core.WindowMonth, summary.Window)
	assert.Equal(t, 2, summary.Count)
	assert.True(t, decimal.NewFromInt(100).Equal(summary.TotalIncome))
	assert.True(t, decimal.NewFromInt(40).Equal(summary.TotalExpense))
	assert.True(t, decimal.NewFromInt(60).Equal(summary.Balance))
	assert.Equal(t, []string{"Food"}, summary.Categories.Labels)

	all := decodeBody[core.Summary](t, do(t, srv, http.MethodGet, "/api/transactions/summary", ""))
	assert.Equal(t, core.WindowAll, all.Window)
	assert.Equal(t, 3, all.Count)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/transactions/summary?window=week", "").Code)
}

func TestSummary_CacheInvalidatedByMutation(t *testing.T) {
	srv, store := newTestServer(t, Options{SummaryCacheTTL: time.Minute})
	seedTx(t, store, "100", core.Income, "Salary", testNow)

	first := do(t, srv, http.MethodGet, "/api/transactions/summary?window=day", "")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := do(t, srv, http.MethodGet, "/api/transactions/summary?window=day", "")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	rec := do(t, srv, http.MethodPost, "/api/transactions",
		`{"amount":25,"date":"2024-05-15T10:00:00Z","category":"Food","type":"expense"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	third := do(t, srv, http.MethodGet, "/api/transactions/summary?window=day", "")
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	summary := decodeBody[core.Summary](t, third)
	assert.Equal(t, 2, summary.Count)
	assert.True(t, decimal.NewFromInt(25).Equal(summary.TotalExpense))
}

func TestRateLimitAppliesToMutationsOnly(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimitPerMinute: 2})
	body := `{"amount":1,"date":"2024-05-10","type":"income"}`

	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/transactions", body).Code)
	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/transactions", body).Code)

	rec := do(t, srv, http.MethodPost, "/api/transactions", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.NotEmpty(t, decodeBody[map[string]string](t, rec)["error"])

	for range 5 {
		assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/transactions", "").Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, Options{CORSAllowedOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/transactions/1", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
}

func TestSecurityHeadersOnAPI(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/api/transactions", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestUnknownAPIPath(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/api/transactions/1/extra", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decodeBody[map[string]string](t, rec)["error"])

	rec = do(t, srv, http.MethodPatch, "/api/transactions/1", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStaticFallsBackToIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))
	srv, _ := newTestServer(t, Options{StaticDir: dir})

	rec := do(t, srv, http.MethodGet, "/app.js", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/charts/monthly", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "app")

	rec = do(t, srv, http.MethodGet, "/api/transactions", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

type failingService struct {
	err error
}

var _ TransactionService = failingService{}

func (f failingService) Create(context.Context, core.Transaction) (core.Transaction, error) {
	return core.Transaction{}, f.err
}
func (f failingService) Get(context.Context, int64) (core.Transaction, bool, error) {
	return core.Transaction{}, false, f.err
}
func (f failingService) List(context.Context) ([]core.Transaction, error) { return nil, f.err }
func (f failingService) ListByType(context.Context, core.TransactionType) ([]core.Transaction, error) {
	return nil, f.err
}
func (f failingService) Update(context.Context, int64, core.Transaction) (bool, error) {
	return false, f.err
}
func (f failingService) Delete(context.Context, int64) (bool, error) { return false, f.err }
func (f failingService) Summary(context.Context, core.Window, time.Time, *time.Location) (core.Summary, error) {
	return core.Summary{}, f.err
}
func (f failingService) Ready(context.Context) error { return f.err }

func TestPersistenceFailuresAre500(t *testing.T) {
	var logs bytes.Buffer
	srv, err := NewServer(failingService{err: errors.New("disk I/O error")}, Options{
		Logger:   log.New(log.Config{Output: &logs, Format: "json", Component: log.ComponentHTTP}),
		Location: time.UTC,
	})
	require.NoError(t, err)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/transactions", ""},
		{http.MethodGet, "/api/transactions/1", ""},
		{http.MethodGet, "/api/transactions/summary", ""},
		{http.MethodPost, "/api/transactions", `{"amount":1,"date":"2024-05-10","type":"income"}`},
		{http.MethodDelete, "/api/transactions/1", ""},
	} {
		rec := do(t, srv, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, tc.method+" "+tc.path)
		assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	}
	assert.Contains(t, logs.String(), "disk I/O error")

	rec := do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewServer_RequiresService(t *testing.T) {
	_, err := NewServer(nil, Options{})
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	srv, _ := newTestServer(t, Options{Addr: "127.0.0.1:0", SummaryCacheTTL: time.Second})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
