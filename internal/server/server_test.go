package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/h0rv/roadmap/internal/domain"
	"github.com/h0rv/roadmap/internal/store"
	"github.com/h0rv/roadmap/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeCache records reads and returns canned results.
type fakeCache struct {
	data   *domain.NormalizedProjectData
	err    error
	status store.Status
	forced []bool
	panics bool
}

func (f *fakeCache) GetBoard(ctx context.Context, forceRefresh bool) (*domain.NormalizedProjectData, error) {
	if f.panics {
		panic("boom")
	}
	f.forced = append(f.forced, forceRefresh)
	return f.data, f.err
}

func (f *fakeCache) Status() store.Status { return f.status }

func sampleBoard() *domain.NormalizedProjectData {
	item := domain.ProjectItem{ID: "I_1", Title: "Dark mode", ContentType: domain.ContentTypeDraftIssue, Fields: map[string]any{"Release": "v2.0"}}
	return &domain.NormalizedProjectData{
		Project: domain.Project{ID: "PVT_1", Title: "Roadmap", GroupByField: "Release"},
		Items:   []domain.ProjectItem{item},
		Columns: domain.Columns{
			{Name: "v10.0", Items: []domain.ProjectItem{}},
			{Name: "v2.0", Items: []domain.ProjectItem{item}},
		},
		LastUpdated: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestRouter(cache BoardCache, refreshToken string) *gin.Engine {
	h := &Handler{
		Cache:        cache,
		RefreshToken: refreshToken,
		Logger:       zap.NewNop(),
		Now:          func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	return NewRouter(h, zap.NewNop())
}

func do(t *testing.T, router http.Handler, target string, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func TestGetRoadmap_Success(t *testing.T) {
	cache := &fakeCache{data: sampleBoard()}
	w, body := do(t, newTestRouter(cache, ""), "/roadmap", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "error")
	assert.NotContains(t, body, "stale")
	assert.Equal(t, []bool{false}, cache.forced)

	// Columns keep board order on the wire
	raw := w.Body.String()
	assert.Less(t, strings.Index(raw, `"v10.0"`), strings.Index(raw, `"v2.0":[`))
}

func TestGetRoadmap_ForcedRefresh(t *testing.T) {
	cache := &fakeCache{data: sampleBoard()}
	router := newTestRouter(cache, "")

	do(t, router, "/roadmap?refresh=true", nil)
	do(t, router, "/roadmap?refresh=false", nil)

	assert.Equal(t, []bool{true, false}, cache.forced)
}

func TestGetRoadmap_InvalidRefresh(t *testing.T) {
	cache := &fakeCache{data: sampleBoard()}
	w, body := do(t, newTestRouter(cache, ""), "/roadmap?refresh=maybe", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "maybe")
	assert.Empty(t, cache.forced)
}

func TestGetRoadmap_RefreshToken(t *testing.T) {
	cache := &fakeCache{data: sampleBoard()}
	router := newTestRouter(cache, "s3cret")

	w, body := do(t, router, "/roadmap?refresh=true", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, false, body["success"])

	w, _ = do(t, router, "/roadmap?refresh=true", http.Header{"Authorization": {"Bearer wrong"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(t, router, "/roadmap?refresh=true", http.Header{"Authorization": {"Bearer s3cret"}})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, router, "/roadmap", nil)
	assert.Equal(t, http.StatusOK, w.Code, "plain reads never need the token")
	assert.Equal(t, []bool{true, false}, cache.forced)
}

func TestGetRoadmap_Stale(t *testing.T) {
	cache := &fakeCache{data: sampleBoard(), status: store.Status{State: store.StateStale, LastError: "upstream error (HTTP 502): bad gateway"}}
	w, body := do(t, newTestRouter(cache, ""), "/roadmap", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["stale"])
	assert.Contains(t, body["warning"], "bad gateway")
	assert.Contains(t, body["warning"], "2024-06-01T12:00:00Z")
}

func TestGetRoadmap_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		wantHint bool
		kind     string
	}{
		{"configuration", &domain.ConfigurationError{Reason: "no GitHub token found", Hint: domain.TokenHint}, http.StatusInternalServerError, true, ErrorKindConfiguration},
		{"not found", fmt.Errorf("failed to load: %w", &domain.NotFoundError{Owner: "acme", Number: 9}), http.StatusNotFound, true, ErrorKindNotFound},
		{"upstream", &domain.UpstreamError{StatusCode: 502, Message: "bad gateway"}, http.StatusBadGateway, false, ErrorKindUpstream},
		{"timeout", fmt.Errorf("failed to fetch page 2: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, false, ""},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := do(t, newTestRouter(&fakeCache{err: tt.err}, ""), "/roadmap", nil)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.err.Error(), body["error"])
			assert.NotContains(t, body, "data")
			if tt.wantHint {
				assert.NotEmpty(t, body["hint"])
			} else {
				assert.NotContains(t, body, "hint")
			}
			if tt.kind != "" {
				detail, ok := body["detail"].(map[string]any)
				require.True(t, ok, "detail missing")
				assert.Equal(t, tt.kind, detail["kind"])
			} else {
				assert.NotContains(t, body, "detail")
			}
		})
	}
}

func TestGetRoadmap_PanicStillReturnsEnvelope(t *testing.T) {
	w, body := do(t, newTestRouter(&fakeCache{panics: true}, ""), "/roadmap", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, body["success"])
}

func TestStatusAndHealth(t *testing.T) {
	cache := &fakeCache{status: store.Status{State: store.StateFresh, Refreshes: 3}}
	router := newTestRouter(cache, "")

	w, body := do(t, router, "/roadmap/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fresh", body["state"])
	assert.EqualValues(t, 3, body["refreshes"])

	w, body = do(t, router, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "2024-06-01T12:00:00Z", body["ts"])

	w, body = do(t, router, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, body["success"])
}

func TestRemoteSource(t *testing.T) {
	cache := &fakeCache{data: sampleBoard()}
	srv := httptest.NewServer(newTestRouter(cache, "s3cret"))
	defer srv.Close()

	src := NewRemoteSource(srv.URL+"/", "s3cret", srv.Client())
	data, err := src.GetBoard(context.Background(), true)

	require.NoError(t, err)
	assert.Equal(t, "Roadmap", data.Project.Title)
	assert.Equal(t, []string{"v10.0", "v2.0"}, data.Columns.Names())
	assert.Equal(t, []bool{true}, cache.forced)
}

func TestRemoteSource_MapsErrors(t *testing.T) {
	cache := &fakeCache{err: fmt.Errorf("failed to load acme/#9: %w",
		&domain.ConfigurationError{Reason: "no GitHub token found", Hint: domain.TokenHint})}
	srv := httptest.NewServer(newTestRouter(cache, ""))
	defer srv.Close()
	src := NewRemoteSource(srv.URL, "", nil)

	_, err := src.GetBoard(context.Background(), false)

	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, domain.TokenHint, cfgErr.Hint)
	assert.Equal(t, "configuration error: no GitHub token found", err.Error())

	cache.err = fmt.Errorf("failed to load acme/#9: %w", &domain.NotFoundError{Owner: "acme", Number: 9})
	_, err = src.GetBoard(context.Background(), false)

	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "acme", notFound.Owner)
	assert.Equal(t, 9, notFound.Number)
	assert.False(t, domain.IsUpstream(err))
	assert.NotEmpty(t, view.Guidance(err))

	cache.err = &domain.UpstreamError{StatusCode: 502, Message: "bad gateway"}
	_, err = src.GetBoard(context.Background(), false)

	var upErr *domain.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusBadGateway, upErr.StatusCode)
	assert.False(t, domain.IsNotFound(err))
}

func TestRemoteSource_WrongURLIsUpstream(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(&fakeCache{data: sampleBoard()}, ""))
	defer srv.Close()

	_, err := NewRemoteSource(srv.URL+"/api", "", nil).GetBoard(context.Background(), false)

	var upErr *domain.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusNotFound, upErr.StatusCode)
	assert.False(t, domain.IsNotFound(err))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, StatusFor(&domain.UpstreamError{Message: "timeout", Err: context.DeadlineExceeded}))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(context.Canceled))
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	srv := New(newTestRouter(&fakeCache{}, ""), Options{Addr: "127.0.0.1:0", ReadTimeout: time.Second, WriteTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, zap.NewNop()) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
