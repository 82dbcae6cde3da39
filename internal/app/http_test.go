package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"interlink/api/internal/authkey"
	"interlink/api/internal/store"
)

type fakeStoreForHealth struct {
	fakeStore
	pingFn func(context.Context) error
}

func (f *fakeStoreForHealth) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func TestHealthEndpoint(t *testing.T) {
	service, _ := newTestService(&fakeStore{}, testEntries())
	server := NewHTTPServer(service, "*", "")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if ok, exists := response["ok"]; !exists || ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
}

func TestReadyEndpoint_DatabaseFailure(t *testing.T) {
	fs := &fakeStoreForHealth{
		pingFn: func(context.Context) error {
			return errors.New("connection refused")
		},
	}
	fc := &fakeCatalog{entries: testEntries()}
	service := &Service{store: fs, catalog: fc}
	server := NewHTTPServer(service, "*", "")

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if status, exists := response["status"]; !exists || status != "not_ready" {
		t.Errorf("expected status=not_ready, got %v", status)
	}
}

func TestMutatingRoutesRequireAPIKey(t *testing.T) {
	hash, err := authkey.Hash("operator-key")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	fs := &fakeStore{
		getDocumentFn: func(context.Context, string) (store.Document, error) {
			return docWith("<p>body</p>"), nil
		},
	}
	service, _ := newTestService(fs, testEntries())
	server := NewHTTPServer(service, "*", hash)

	req := httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/links/rollback", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", rr.Code)
	}

	// Reads stay open.
	req = httptest.NewRequest(http.MethodGet, "/api/documents/doc-1", nil)
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 for unauthenticated read, got %d", rr.Code)
	}

	// And the right key unlocks writes.
	req = httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/links/preview", strings.NewReader(`{"candidates":[]}`))
	req.Header.Set("X-API-Key", "operator-key")
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 with valid key, got %d", rr.Code)
	}
}

func TestPreviewEndpoint(t *testing.T) {
	body := "<p>Visit our Phuket villa guide today.</p>"
	fs := &fakeStore{
		getDocumentFn: func(context.Context, string) (store.Document, error) {
			return docWith(body), nil
		},
	}
	service, _ := newTestService(fs, testEntries())
	server := NewHTTPServer(service, "*", "")

	payload := `{"candidates":[{"linkId":"cat-villas","anchorText":"villa guide"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/links/preview", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var result PreviewResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(result.Plan) != 1 || result.Plan[0].LinkID != "cat-villas" {
		t.Errorf("unexpected plan: %+v", result.Plan)
	}
	if !strings.Contains(result.Preview, `class="internal-link">villa guide</a>`) {
		t.Errorf("preview body missing injected wrapper: %q", result.Preview)
	}
}

func TestRollbackEndpointNoBackup(t *testing.T) {
	fs := &fakeStore{
		getDocumentFn: func(context.Context, string) (store.Document, error) {
			return docWith("<p>never optimized</p>"), nil
		},
		applyRollbackFn: func(context.Context, string) (int, error) {
			return 0, store.ErrNoBackup
		},
	}
	service, _ := newTestService(fs, testEntries())
	server := NewHTTPServer(service, "*", "")

	req := httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/links/rollback", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if code, exists := response["code"]; !exists || code != "NO_BACKUP" {
		t.Errorf("expected code NO_BACKUP, got %v", code)
	}
}

func TestUnknownRoute(t *testing.T) {
	service, _ := newTestService(&fakeStore{}, testEntries())
	server := NewHTTPServer(service, "*", "")

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	service, _ := newTestService(&fakeStore{}, testEntries())
	server := NewHTTPServer(service, "*", "")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != "abc123" {
		t.Errorf("expected request id to round-trip, got %q", got)
	}
}
