package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/opml-comb/app/database"
	"github.com/lysyi3m/opml-comb/app/feed"
	"github.com/lysyi3m/opml-comb/app/tasks"
	"github.com/lysyi3m/opml-comb/app/validation"
)

type mockSourceRepository struct {
	sources map[string]*database.Source
}

func (m *mockSourceRepository) GetSource(name string) (*database.Source, error) {
	return m.sources[name], nil
}

func (m *mockSourceRepository) GetSources() ([]database.Source, error) {
	var sources []database.Source
	for _, s := range m.sources {
		sources = append(sources, *s)
	}
	return sources, nil
}

func (m *mockSourceRepository) GetSourcesDue(now time.Time) ([]database.Source, error) {
	return nil, nil
}

func (m *mockSourceRepository) GetSourceCount() (int, error) {
	return len(m.sources), nil
}

func (m *mockSourceRepository) UpsertSource(name, opmlPath string, enabled bool) error {
	return nil
}

func (m *mockSourceRepository) SetSourceEnabled(name string, enabled bool) error {
	return nil
}

func (m *mockSourceRepository) UpdateNextRun(name string, lastRun, nextRun time.Time) error {
	return nil
}

type mockRunRepository struct {
	runs    map[string]*database.Run
	results map[string][]validation.Result
}

func (m *mockRunRepository) GetLatestRun(sourceName string) (*database.Run, error) {
	return m.runs[sourceName], nil
}

func (m *mockRunRepository) GetRunResults(runID string) ([]validation.Result, error) {
	return m.results[runID], nil
}

func (m *mockRunRepository) GetRunCount(sourceName string) (int, error) {
	if m.runs[sourceName] == nil {
		return 0, nil
	}
	return 1, nil
}

func (m *mockRunRepository) CreateRun(run database.Run, results []validation.Result) error {
	return nil
}

type mockScheduler struct {
	queued []string
	err    error
}

func (m *mockScheduler) Start() {}
func (m *mockScheduler) Stop()  {}

func (m *mockScheduler) EnqueueTask(task tasks.TaskInterface) error {
	return m.err
}

func (m *mockScheduler) EnqueueValidation(sourceName string) error {
	if m.err != nil {
		return m.err
	}
	m.queued = append(m.queued, sourceName)
	return nil
}

type mockValidator struct{}

func (m *mockValidator) Validate(ctx context.Context, f feed.Feed) validation.Result {
	return validation.Result{Feed: f.Title, URL: f.XMLURL, Status: validation.StatusValid, Categories: []string{}, Format: validation.FormatRSS, Attempts: 1}
}

const testOPML = `<?xml version="1.0"?>
<opml version="2.0">
  <head><title>Test</title></head>
  <body>
    <outline text="Tech">
      <outline text="Go Blog" type="rss" xmlUrl="https://go.dev/blog/feed.atom"/>
      <outline text="Dead" type="rss" xmlUrl="https://dead.example.com/rss"/>
    </outline>
  </body>
</opml>`

type testEnv struct {
	handler   *Handler
	scheduler *mockScheduler
	runRepo   *mockRunRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "feeds.opml"), []byte(testOPML), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tech.yml"), []byte("opml: feeds.opml\nsettings:\n  enabled: true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	configCache := feed.NewConfigCache(dir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	finished := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	runRepo := &mockRunRepository{
		runs: map[string]*database.Run{
			"tech": {ID: "run-1", SourceName: "tech", StartedAt: finished.Add(-time.Minute), FinishedAt: finished, Total: 2, Valid: 1, Errored: 1},
		},
		results: map[string][]validation.Result{
			"run-1": {
				{Feed: "Go Blog", URL: "https://go.dev/blog/feed.atom", Status: validation.StatusValid, Categories: []string{"Tech"}},
				{Feed: "Dead", URL: "https://dead.example.com/rss", Status: validation.StatusError, Error: "Max retry attempts reached", Categories: []string{"Tech"}},
			},
		},
	}
	sourceRepo := &mockSourceRepository{sources: map[string]*database.Source{"tech": {Name: "tech", Enabled: true}}}
	scheduler := &mockScheduler{}

	return &testEnv{
		handler:   NewHandler(configCache, sourceRepo, runRepo, &mockValidator{}, scheduler),
		scheduler: scheduler,
		runRepo:   runRepo,
	}
}

func (e *testEnv) do(method, target, apiKey string) *httptest.ResponseRecorder {
	router := NewServer(e.handler, "secret")

	req := httptest.NewRequest(method, target, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetReport(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/sources/tech/report", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/markdown") {
		t.Errorf("Expected markdown content type, got '%s'", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("X-Run-ID") != "run-1" {
		t.Errorf("Expected X-Run-ID 'run-1', got '%s'", rec.Header().Get("X-Run-ID"))
	}

	body := rec.Body.String()
	for _, want := range []string{"# Feed Validation Report", "Source OPML: tech", "## Error Feeds", "Max retry attempts reached"} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected report to contain %q", want)
		}
	}
}

func TestGetReportNotFound(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(http.MethodGet, "/sources/unknown/report", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown source, got %d", rec.Code)
	}

	delete(env.runRepo.runs, "tech")
	if rec := env.do(http.MethodGet, "/sources/tech/report", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 before the first run, got %d", rec.Code)
	}
}

func TestGetOPML(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/sources/tech/opml", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Feed-Count") != "2" {
		t.Errorf("Expected 2 feeds, got '%s'", rec.Header().Get("X-Feed-Count"))
	}

	rec = env.do(http.MethodGet, "/sources/tech/opml?valid_only=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "https://go.dev/blog/feed.atom") {
		t.Error("Expected valid feed in export")
	}
	if strings.Contains(body, "dead.example.com") {
		t.Error("Expected failing feed to be dropped from export")
	}
	if !strings.Contains(body, `text="Tech"`) {
		t.Error("Expected category outline to be kept")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var health map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if health["sources"] != float64(1) || health["loaded_configurations"] != float64(1) {
		t.Errorf("Unexpected health response: %v", health)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("Expected Prometheus exposition format")
	}
}

func TestAPIAuthentication(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(http.MethodGet, "/api/sources", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/api/sources", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong key, got %d", rec.Code)
	}

	router := NewServer(env.handler, "secret")
	req := httptest.NewRequest(http.MethodGet, "/api/sources", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with bearer token, got %d", rec.Code)
	}
}

func TestAPIDisabledWithoutKey(t *testing.T) {
	env := newTestEnv(t)
	router := NewServer(env.handler, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sources", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 when API is disabled, got %d", rec.Code)
	}
}

func TestAPIListSources(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/sources", "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var response struct {
		Sources []map[string]interface{} `json:"sources"`
		Total   int                      `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Total != 1 || response.Sources[0]["name"] != "tech" {
		t.Fatalf("Unexpected sources: %+v", response)
	}
	if response.Sources[0]["latest_run"] == nil {
		t.Error("Expected latest run summary")
	}
}

func TestAPIValidateSource(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/sources/tech/validate", "secret")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rec.Code)
	}
	if len(env.scheduler.queued) != 1 || env.scheduler.queued[0] != "tech" {
		t.Errorf("Expected validation queued for 'tech', got %v", env.scheduler.queued)
	}

	tests := []struct {
		err  error
		code int
	}{
		{tasks.ErrSourceNotFound, http.StatusNotFound},
		{tasks.ErrValidationQueued, http.StatusConflict},
	}
	for _, tt := range tests {
		env.scheduler.err = tt.err
		if rec := env.do(http.MethodPost, "/api/sources/tech/validate", "secret"); rec.Code != tt.code {
			t.Errorf("Expected %d for %v, got %d", tt.code, tt.err, rec.Code)
		}
	}
}

func TestAPIValidateURL(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/validate?url=https://go.dev/blog/feed.atom", "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var result validation.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.Status != validation.StatusValid || result.URL != "https://go.dev/blog/feed.atom" {
		t.Errorf("Unexpected result: %+v", result)
	}

	for _, target := range []string{"/api/validate", "/api/validate?url=not-a-url"} {
		if rec := env.do(http.MethodGet, target, "secret"); rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %s, got %d", target, rec.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodOptions, "/api/sources", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header")
	}
}
