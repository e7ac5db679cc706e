package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/worldsmith/worldsmith/internal/bootstrap"
	"github.com/worldsmith/worldsmith/internal/store"
)

type fakeService struct {
	mu      sync.Mutex
	worlds  map[string]store.World
	started []string
	stopped []string
}

func newFakeService() *fakeService {
	return &fakeService{worlds: map[string]store.World{
		"123456789012": {
			WorldNumber:  "123456789012",
			Name:         "w",
			Version:      "1.21",
			Software:     "Vanilla",
			RCONPassword: "secret",
		},
	}}
}

func (f *fakeService) CreateWorld(_ context.Context, p CreateParams) bootstrap.Result {
	if p.Version == "99.99" {
		return bootstrap.Result{Status: bootstrap.StatusError, Message: fmt.Sprintf("%s %s is not supported!", p.Software, p.Version)}
	}
	return bootstrap.Result{Status: bootstrap.StatusSuccess, Message: "World Created Successfully", WorldNumber: "210987654321"}
}

func (f *fakeService) StartWorld(_ context.Context, n string) (int, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, n)
	return 0, ""
}

func (f *fakeService) StopWorld(_ context.Context, n, grace string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, n)
	return "server stopped"
}

func (f *fakeService) DeleteWorld(_ context.Context, n string) error {
	if _, ok := f.worlds[n]; !ok {
		return store.ErrNotFound
	}
	delete(f.worlds, n)
	return nil
}

func (f *fakeService) ListWorlds(context.Context) ([]store.World, error) {
	var out []store.World
	for _, w := range f.worlds {
		out = append(out, w)
	}
	return out, nil
}

func (f *fakeService) WorldStatus(_ context.Context, n string) (Status, error) {
	w, ok := f.worlds[n]
	if !ok {
		return Status{}, store.ErrNotFound
	}
	return Status{World: w, State: "stopped"}, nil
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateWorldEndpoint(t *testing.T) {
	h := NewRouter(newFakeService(), "").Handler()
	rec := do(t, h, http.MethodPost, "/worlds", CreateParams{Software: "Vanilla", Version: "1.21"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res bootstrap.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, "210987654321", res.WorldNumber)
}

func TestCreateWorldUnsupported(t *testing.T) {
	h := NewRouter(newFakeService(), "").Handler()
	rec := do(t, h, http.MethodPost, "/worlds", CreateParams{Software: "Vanilla", Version: "99.99"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateWorldMissingFields(t *testing.T) {
	h := NewRouter(newFakeService(), "").Handler()
	rec := do(t, h, http.MethodPost, "/worlds", CreateParams{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartWorldEndpoint(t *testing.T) {
	svc := newFakeService()
	h := NewRouter(svc, "").Handler()
	rec := do(t, h, http.MethodPost, "/worlds/123456789012/start", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return len(svc.started) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestStartWorldRejectsBadNumber(t *testing.T) {
	h := NewRouter(newFakeService(), "").Handler()
	rec := do(t, h, http.MethodPost, "/worlds/..%2Fetc/start", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/worlds/12345/start", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartWorldUnknown(t *testing.T) {
	h := NewRouter(newFakeService(), "").Handler()
	rec := do(t, h, http.MethodPost, "/worlds/000000000000/start", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStopWorldEndpoint(t *testing.T) {
	svc := newFakeService()
	h := NewRouter(svc, "").Handler()
	rec := do(t, h, http.MethodPost, "/worlds/123456789012/stop?grace=05:00", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "server stopped")
}

func TestDeleteWorldEndpoint(t *testing.T) {
	svc := newFakeService()
	h := NewRouter(svc, "").Handler()
	rec := do(t, h, http.MethodDelete, "/worlds/123456789012", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodDelete, "/worlds/123456789012", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRedactsSecrets(t *testing.T) {
	h := NewRouter(newFakeService(), "").Handler()
	rec := do(t, h, http.MethodGet, "/worlds", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "secret")
}

func TestStatusEndpoint(t *testing.T) {
	h := NewRouter(newFakeService(), "").Handler()
	rec := do(t, h, http.MethodGet, "/worlds/123456789012/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.Equal(t, "stopped", st.State)
	require.Empty(t, st.World.RCONPassword)
}

func TestBasePath(t *testing.T) {
	h := NewRouter(newFakeService(), "api").Handler()
	rec := do(t, h, http.MethodGet, "/api/worlds", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
