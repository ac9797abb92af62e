package cleanup_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"fornax/internal/logging"
	"fornax/internal/services"
	"fornax/internal/services/cleanup"
	"fornax/internal/sips"
	"fornax/internal/testsupport"
)

func TestRequesterPostsIdentifier(t *testing.T) {
	var gotBody map[string]string
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithCleanupURL(server.URL))
	requester := cleanup.NewRequester(cfg, server.Client(), logging.NewNop())

	sip := &sips.SIP{Identifier: "abc123", Status: sips.StatusCleaningUp}
	if err := requester.Execute(context.Background(), sip); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if gotContentType != "application/json" {
		t.Fatalf("unexpected content type %q", gotContentType)
	}
	if gotBody["identifier"] != "abc123" {
		t.Fatalf("unexpected body %v", gotBody)
	}
}

func TestRequesterOnlyAcceptsOK(t *testing.T) {
	// 202 is a success status but not the one the downstream contract uses.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithCleanupURL(server.URL))
	requester := cleanup.NewRequester(cfg, server.Client(), logging.NewNop())

	err := requester.Execute(context.Background(), &sips.SIP{Identifier: "abc123"})
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external error, got %v", err)
	}
}

func TestRequesterSkipsWhenUnconfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	requester := cleanup.NewRequester(cfg, nil, logging.NewNop())
	if err := requester.Execute(context.Background(), &sips.SIP{Identifier: "abc123"}); err != nil {
		t.Fatalf("expected skip, got %v", err)
	}
}

func TestRoutineRemovesArchive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(cfg.Paths.DestDir, "abc123.tar.gz")
	if err := os.WriteFile(path, []byte("archive"), 0o644); err != nil {
		t.Fatal(err)
	}

	routine := cleanup.NewRoutine(cfg, logging.NewNop())
	result, err := routine.Remove("abc123")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !result.Removed || result.Identifier != "abc123" {
		t.Fatalf("unexpected result %#v", result)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("archive should be deleted")
	}

	// A second pass is a clean not-found, never an error.
	result, err = routine.Remove("abc123")
	if err != nil {
		t.Fatalf("second Remove failed: %v", err)
	}
	if result.Removed {
		t.Fatal("nothing left to remove")
	}
}
