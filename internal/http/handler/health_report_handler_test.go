package handler_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/gradnja/stroski-api/internal/database"
	"github.com/gradnja/stroski-api/internal/http/handler"
	"github.com/gradnja/stroski-api/internal/reporting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSyncStatus struct {
	last string
	err  error
}

func (s stubSyncStatus) LastSync(ctx context.Context) (string, error) {
	return s.last, s.err
}

func TestHealthHandler(t *testing.T) {
	s := setupTestStore(t)

	t.Run("live", func(t *testing.T) {
		h := handler.NewHealthHandler(s, nil, zap.NewNop())
		rr := serve(h.Live, jsonRequest(t, http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "OK", rr.Body.String())
	})

	t.Run("ready without reporting", func(t *testing.T) {
		h := handler.NewHealthHandler(s, nil, zap.NewNop())
		rr := serve(h.Ready, jsonRequest(t, http.MethodGet, "/health/ready", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		body := decode[map[string]interface{}](t, rr)
		assert.Equal(t, "healthy", body["status"])
		checks := body["checks"].(map[string]interface{})
		assert.Contains(t, checks, "store")
		assert.NotContains(t, checks, "reporting")
	})

	t.Run("reporting failure makes it unready", func(t *testing.T) {
		h := handler.NewHealthHandler(s, stubSyncStatus{err: errors.New("database is locked")}, zap.NewNop())
		rr := serve(h.Ready, jsonRequest(t, http.MethodGet, "/health/ready", nil))
		require.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Equal(t, "unhealthy", decode[map[string]interface{}](t, rr)["status"])
	})
}

func TestReportHandler_Disabled(t *testing.T) {
	s := setupTestStore(t)
	h := handler.NewReportHandler(nil, s, zap.NewNop())

	for _, fn := range []http.HandlerFunc{h.Monthly, h.Contractors, h.Sync} {
		rr := serve(fn, jsonRequest(t, http.MethodGet, "/reports/monthly?projectId=p1", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	}
}

func TestReportHandler_SyncAndQuery(t *testing.T) {
	w := setupWorld(t)
	ctx := context.Background()
	for _, date := range []string{"2024-01-10", "2024-01-20", "2024-02-05"} {
		_, err := w.store.CreateCost(ctx, w.costInput(100, date))
		require.NoError(t, err)
	}

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "reporting.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, zap.NewNop()))
	mirror := reporting.NewMirror(db, zap.NewNop())

	h := handler.NewReportHandler(mirror, w.store, zap.NewNop())

	rr := serve(h.Monthly, jsonRequest(t, http.MethodGet, "/reports/monthly", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code, "projectId is required")

	rr = serve(h.Sync, jsonRequest(t, http.MethodPost, "/reports/sync", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotEmpty(t, decode[map[string]string](t, rr)["last_sync"])

	rr = serve(h.Monthly, jsonRequest(t, http.MethodGet, "/reports/monthly?projectId="+w.project.ID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	months := decode[[]reporting.MonthTotal](t, rr)
	require.Len(t, months, 2)
	assert.Equal(t, reporting.MonthTotal{Month: "2024-01", Total: 200, Count: 2}, months[0])
	assert.Equal(t, reporting.MonthTotal{Month: "2024-02", Total: 100, Count: 1}, months[1])

	rr = serve(h.Contractors, jsonRequest(t, http.MethodGet, "/reports/contractors?projectId="+w.project.ID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	contractors := decode[[]reporting.ContractorTotal](t, rr)
	require.Len(t, contractors, 1)
	assert.Equal(t, "ACME", contractors[0].Name)
	assert.Equal(t, 300.0, contractors[0].Total)
}
