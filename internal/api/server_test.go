package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fornax/internal/api"
	"fornax/internal/config"
	"fornax/internal/logging"
	"fornax/internal/ops"
	"fornax/internal/pipeline"
	"fornax/internal/services/archivematica"
	"fornax/internal/services/cleanup"
	"fornax/internal/sips"
	"fornax/internal/testsupport"
)

type env struct {
	cfg     *config.Config
	store   *sips.Store
	handler http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	clients := archivematica.NewFactory(cfg, nil, logger)
	runner := pipeline.NewRunner(store, logger, ops.NewExtractor(cfg, logger))
	server := api.NewServer(cfg, store, runner, cleanup.NewRoutine(cfg, logger), clients, logger)
	return &env{cfg: cfg, store: store, handler: server.Handler()}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestCreateSIP(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/sips", map[string]any{
		"identifier": "abc123",
		"origin":     "aurora",
		"metadata":   map[string]any{"identifier": "abc123", "rights_statements": []any{}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decode[map[string]any](t, rec)
	if body["identifier"] != "abc123" || body["status"] != "created" {
		t.Fatalf("unexpected body %v", body)
	}
	wantPath := filepath.Join(e.cfg.Paths.SourceDir, "abc123.tar.gz")
	if body["path"] != wantPath {
		t.Fatalf("expected path %s, got %v", wantPath, body["path"])
	}
}

func TestCreateSIPValidation(t *testing.T) {
	e := newEnv(t)

	if rec := e.do(t, http.MethodPost, "/sips", map[string]any{"origin": "aurora"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing identifier: expected 400, got %d", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/sips", map[string]any{"identifier": "x", "origin": "nowhere"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown origin: expected 400, got %d", rec.Code)
	}

	ok := e.do(t, http.MethodPost, "/sips", map[string]any{"identifier": "abc123", "origin": "aurora"})
	if ok.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", ok.Code)
	}
	dup := e.do(t, http.MethodPost, "/sips", map[string]any{"identifier": "abc123", "origin": "aurora"})
	if dup.Code != http.StatusBadRequest {
		t.Fatalf("duplicate: expected 400, got %d", dup.Code)
	}
}

func TestListAndGetSIPs(t *testing.T) {
	e := newEnv(t)
	testsupport.NewSIP(t, e.store, "one", "aurora", "", "")
	two := testsupport.NewSIP(t, e.store, "two", "aurora", "", "")
	testsupport.SetStatus(t, e.store, two, sips.StatusExtracted)

	all := decode[[]map[string]any](t, e.do(t, http.MethodGet, "/sips", nil))
	if len(all) != 2 {
		t.Fatalf("expected 2 sips, got %d", len(all))
	}

	filtered := decode[[]map[string]any](t, e.do(t, http.MethodGet, "/sips?status=extracted", nil))
	if len(filtered) != 1 || filtered[0]["identifier"] != "two" {
		t.Fatalf("unexpected filtered result %v", filtered)
	}

	if rec := e.do(t, http.MethodGet, "/sips?status=bogus", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter: expected 400, got %d", rec.Code)
	}

	one := e.do(t, http.MethodGet, "/sips/one", nil)
	if one.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", one.Code)
	}
	if rec := e.do(t, http.MethodGet, "/sips/ghost", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing sip: expected 404, got %d", rec.Code)
	}
}

func TestStageTriggerProcessesPackage(t *testing.T) {
	e := newEnv(t)
	archive := filepath.Join(e.cfg.Paths.SourceDir, "abc123.tar.gz")
	testsupport.BaggedArchive(t, "abc123", archive, map[string]string{"objects/f.txt": "x"})
	testsupport.NewSIP(t, e.store, "abc123", "aurora", archive, "")

	rec := e.do(t, http.MethodPost, "/extract", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[map[string]any](t, rec)
	objects, _ := body["objects"].([]any)
	if len(objects) != 1 || objects[0] != "abc123" {
		t.Fatalf("unexpected objects %v", body)
	}
	if _, err := os.Stat(filepath.Join(e.cfg.Paths.WorkDir, "abc123")); err != nil {
		t.Fatalf("extraction did not run: %v", err)
	}
}

func TestStageTriggerIdle(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/extract", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	detail, _ := body["detail"].(string)
	if !strings.Contains(detail, "no packages waiting") {
		t.Fatalf("unexpected detail %q", detail)
	}
	objects, _ := body["objects"].([]any)
	if len(objects) != 0 {
		t.Fatalf("idle trigger must return empty objects, got %v", objects)
	}
}

func TestStageTriggerFailureIs500(t *testing.T) {
	e := newEnv(t)
	archive := filepath.Join(e.cfg.Paths.SourceDir, "abc123.tar.gz")
	if err := os.WriteFile(archive, []byte("not a tarball"), 0o644); err != nil {
		t.Fatal(err)
	}
	testsupport.NewSIP(t, e.store, "abc123", "aurora", archive, "")

	rec := e.do(t, http.MethodPost, "/extract", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	detail, _ := body["detail"].(string)
	if !strings.Contains(detail, "abc123") {
		t.Fatalf("error detail must name the package: %q", detail)
	}

	sip, err := e.store.GetByIdentifier(context.Background(), "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if sip.Status != sips.StatusCreated {
		t.Fatalf("claim not reverted, status %s", sip.Status)
	}
}

func TestCleanupEndpoint(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(e.cfg.Paths.DestDir, "abc123.tar.gz")
	if err := os.WriteFile(path, []byte("archive"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := e.do(t, http.MethodPost, "/cleanup", map[string]string{"identifier": "abc123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["detail"] != "package removed" {
		t.Fatalf("unexpected detail %v", body["detail"])
	}

	again := decode[map[string]any](t, e.do(t, http.MethodPost, "/cleanup", map[string]string{"identifier": "abc123"}))
	if again["detail"] != "package not found" {
		t.Fatalf("unexpected detail %v", again["detail"])
	}

	if rec := e.do(t, http.MethodPost, "/cleanup", map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing identifier: expected 400, got %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	e := newEnv(t)
	testsupport.NewSIP(t, e.store, "one", "aurora", "", "")

	rec := e.do(t, http.MethodGet, "/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" || body["total"] != float64(1) || body["waiting"] != float64(1) {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRemoveTransfers(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/transfer/completed/" {
			_ = json.NewEncoder(w).Encode(map[string][]string{"results": {"t-1", "t-2"}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"removed": "true"})
	}))
	defer upstream.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithOrigin("aurora", config.Archivematica{
		BaseURL: upstream.URL, Username: "fornax", APIKey: "k",
		LocationUUID: "loc", ProcessingConfig: "default", Version: "1.13",
		CloseCompleted: true,
	}))
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	clients := archivematica.NewFactory(cfg, upstream.Client(), logger)
	runner := pipeline.NewRunner(store, logger)
	server := api.NewServer(cfg, store, runner, cleanup.NewRoutine(cfg, logger), clients, logger)
	e := &env{cfg: cfg, store: store, handler: server.Handler()}

	rec := e.do(t, http.MethodPost, "/remove-transfers", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[map[string]any](t, rec)
	objects, _ := body["objects"].([]any)
	if len(objects) != 2 {
		t.Fatalf("expected 2 closed units, got %v", body)
	}
}
