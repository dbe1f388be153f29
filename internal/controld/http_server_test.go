package controld

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voltaic-sim/control-core/internal/publish"
)

func newTestServer(t *testing.T) (*HTTPServer, *Controller) {
	t.Helper()
	ctrl, err := New(testControllerConfig(), &StaticProvider{Scenario: steadyScenario()}, publish.NewMemorySink(0))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return NewHTTPServer(ctrl), ctrl
}

func doRequest(t *testing.T, srv *HTTPServer, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	srv.Handler().ServeHTTP(rr, req)

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s %s: invalid JSON response: %v", method, path, err)
	}
	return rr, body
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rr, body := doRequest(t, srv, http.MethodGet, "/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestLatestDecisionEndpoint(t *testing.T) {
	srv, ctrl := newTestServer(t)

	rr, _ := doRequest(t, srv, http.MethodGet, "/v1/decisions/latest")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any tick, got %d", rr.Code)
	}

	d, err := ctrl.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick error: %v", err)
	}

	rr, body := doRequest(t, srv, http.MethodGet, "/v1/decisions/latest")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 after a tick, got %d", rr.Code)
	}
	decision, ok := body["decision"].(map[string]any)
	if !ok {
		t.Fatalf("missing decision payload: %v", body)
	}
	if decision["id"] != d.ID {
		t.Fatalf("expected decision %s, got %v", d.ID, decision["id"])
	}
}

func TestDecisionsEndpoint(t *testing.T) {
	srv, ctrl := newTestServer(t)

	for i := 0; i < 4; i++ {
		if _, err := ctrl.Tick(context.Background()); err != nil {
			t.Fatalf("Tick error: %v", err)
		}
	}

	rr, body := doRequest(t, srv, http.MethodGet, "/v1/decisions")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["count"] != float64(4) {
		t.Fatalf("expected 4 decisions, got %v", body["count"])
	}

	rr, body = doRequest(t, srv, http.MethodGet, "/v1/decisions?limit=2")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["count"] != float64(2) {
		t.Fatalf("expected limit to apply, got %v", body["count"])
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv, ctrl := newTestServer(t)

	if _, err := ctrl.Tick(context.Background()); err != nil {
		t.Fatalf("Tick error: %v", err)
	}

	rr, body := doRequest(t, srv, http.MethodGet, "/v1/history")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	history, ok := body["history"].([]any)
	if !ok || len(history) == 0 {
		t.Fatalf("expected at least one generation record: %v", body)
	}
	first, ok := history[0].(map[string]any)
	if !ok || first["generation"] != float64(1) {
		t.Fatalf("unexpected first record: %v", history[0])
	}
}

func TestCompareEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rr, _ := doRequest(t, srv, http.MethodGet, "/v1/compare")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rr.Code)
	}

	rr, body := doRequest(t, srv, http.MethodPost, "/v1/compare")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	comparison, ok := body["comparison"].(map[string]any)
	if !ok {
		t.Fatalf("missing comparison payload: %v", body)
	}
	if comparison["winner"] == "" {
		t.Fatalf("expected a winner: %v", comparison)
	}
	ranking, ok := comparison["ranking"].([]any)
	if !ok || len(ranking) == 0 {
		t.Fatalf("expected a non-empty ranking: %v", comparison)
	}
}

func TestCompareWinnerEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rr, _ := doRequest(t, srv, http.MethodGet, "/v1/compare/winner")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any comparison, got %d", rr.Code)
	}

	if rr, _ := doRequest(t, srv, http.MethodPost, "/v1/compare"); rr.Code != http.StatusOK {
		t.Fatalf("comparison failed: %d", rr.Code)
	}

	rr, body := doRequest(t, srv, http.MethodGet, "/v1/compare/winner")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["winner"] == "" || body["wins"] != float64(1) {
		t.Fatalf("unexpected winner stats: %v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/v1/decisions", "/v1/decisions/latest", "/v1/history"} {
		rr, _ := doRequest(t, srv, http.MethodPost, path)
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("POST %s: expected 405, got %d", path, rr.Code)
		}
	}
}
