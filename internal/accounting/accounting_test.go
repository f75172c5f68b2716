package accounting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gooms-backend/internal/config"
	"gooms-backend/internal/database"
	"gooms-backend/internal/database/dbtest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_PushTransactions(t *testing.T) {
	var got pushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/transactions", r.URL.Path)
		assert.Equal(t, "Bearer acct-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pushResponse{Results: []Result{{LocalID: 7, ExternalID: "EXT-7"}}})
	}))
	defer srv.Close()

	c := NewClient(config.AccountingConfig{BaseURL: srv.URL + "/v1/", APIKey: "acct-key", Timeout: time.Second})
	results, err := c.PushTransactions(context.Background(), []Entry{{
		LocalID:  7,
		Type:     "income",
		Category: "sales",
		Amount:   decimal.RequireFromString("21.00"),
		Date:     "2025-03-04",
	}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "EXT-7", results[0].ExternalID)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, "sales", got.Transactions[0].Category)
}

func TestClient_PushTransactions_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "ledger locked", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(config.AccountingConfig{BaseURL: srv.URL})
	_, err := c.PushTransactions(context.Background(), []Entry{{LocalID: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "ledger locked")
}

type fakePusher struct {
	mu      sync.Mutex
	batches [][]Entry
	results func([]Entry) []Result
	err     error
}

func (f *fakePusher) PushTransactions(_ context.Context, entries []Entry) ([]Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, entries)
	if f.err != nil {
		return nil, f.err
	}
	return f.results(entries), nil
}

func ledgerRows(ids ...int) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "type", "category", "amount", "date"})
	for _, id := range ids {
		rows.AddRow(id, "income", "sales", "10.00", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	}
	return rows
}

func TestService_Sync(t *testing.T) {
	mock := dbtest.Mock(t)
	mock.ExpectQuery(`SELECT \* FROM "financial_transactions" WHERE synced_at IS NULL AND id > \$1 ORDER BY id ASC LIMIT \$2`).
		WithArgs(0, 2).
		WillReturnRows(ledgerRows(1, 2))
	mock.ExpectExec(`UPDATE "financial_transactions" SET .* WHERE id = \$\d+ AND synced_at IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "financial_transactions" WHERE synced_at IS NULL AND id > \$1`).
		WithArgs(2, 2).
		WillReturnRows(ledgerRows(3))
	mock.ExpectExec(`UPDATE "financial_transactions" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	pusher := &fakePusher{results: func(entries []Entry) []Result {
		out := make([]Result, 0, len(entries))
		for _, e := range entries {
			if e.LocalID == 2 {
				out = append(out, Result{LocalID: 2, Error: "unknown category"})
				continue
			}
			out = append(out, Result{LocalID: e.LocalID, ExternalID: "EXT"})
		}
		return out
	}}

	rep, err := NewService(pusher, 2, nil).Sync(context.Background(), database.DB)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Attempted)
	assert.Equal(t, 2, rep.Synced)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, []string{"transaction 2: unknown category"}, rep.Errors)
	assert.Len(t, pusher.batches, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Sync_PushError(t *testing.T) {
	mock := dbtest.Mock(t)
	mock.ExpectQuery(`SELECT \* FROM "financial_transactions"`).
		WillReturnRows(ledgerRows(1))

	pusher := &fakePusher{err: errors.New("connection refused")}
	rep, err := NewService(pusher, 10, nil).Sync(context.Background(), database.DB)
	require.Error(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 0, rep.Synced)
}

func TestSyncHandler_Disabled(t *testing.T) {
	app := fiber.New()
	app.Post("/api/accounting/sync", SyncHandler(nil))

	resp, err := app.Test(httptest.NewRequest("POST", "/api/accounting/sync", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
