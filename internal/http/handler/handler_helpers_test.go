package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gradnja/stroski-api/internal/domain"
	"github.com/gradnja/stroski-api/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testMaxUploadMB int64 = 5

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(t.TempDir(), zap.NewNop())
	require.NoError(t, s.Init(context.Background()))
	return s
}

// withURLParams attaches chi route parameters given as key, value pairs
func withURLParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartRequest builds a multipart form with a "file" part and extra fields
func multipartRequest(t *testing.T, method, target, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

// world is a project with one contractor on the first subphase of Temelji
type world struct {
	store      *store.Store
	project    *domain.Project
	phase      domain.Phase
	subphase   domain.Subphase
	contractor *domain.Contractor
}

func setupWorld(t *testing.T) *world {
	t.Helper()
	ctx := context.Background()
	s := setupTestStore(t)

	project, err := s.CreateProject(ctx, domain.CreateProjectRequest{Name: "Hiša Novak"})
	require.NoError(t, err)

	phases, err := s.ListPhases(ctx, project.ID)
	require.NoError(t, err)
	var phase domain.Phase
	for _, p := range phases {
		if p.Name == "Temelji" {
			phase = p
		}
	}
	require.NotEmpty(t, phase.ID)

	subphases, err := s.ListSubphases(ctx, phase.ID)
	require.NoError(t, err)
	require.NotEmpty(t, subphases)

	contractor, err := s.CreateContractor(ctx, domain.CreateContractorRequest{
		Name:        "ACME",
		ProjectID:   project.ID,
		SubphaseIDs: []string{subphases[0].ID},
	})
	require.NoError(t, err)

	return &world{store: s, project: project, phase: phase, subphase: subphases[0], contractor: contractor}
}

func (w *world) costInput(amount float64, date string) domain.CostInput {
	return domain.CostInput{
		ProjectID:    w.project.ID,
		PhaseID:      w.phase.ID,
		SubphaseID:   w.subphase.ID,
		ContractorID: w.contractor.ID,
		Description:  "Beton",
		AmountGross:  amount,
		InvoiceDate:  date,
	}
}
