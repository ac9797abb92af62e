package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newFakeDaemon(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server.URL
}

func TestSIPsListRendersTable(t *testing.T) {
	addr := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sips" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
		records := []sipRecord{
			{ID: 1, Identifier: "abc123", Status: "cleaned_up", Origin: "digitization", CreatedAt: now, ModifiedAt: now},
			{ID: 2, Identifier: "def456", Status: "created", Origin: "legacy_digital", CreatedAt: now, ModifiedAt: now},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(records)
	})

	out, err := runCLI(t, []string{"sips", "list"}, addr)
	if err != nil {
		t.Fatalf("sips list: %v", err)
	}
	requireContains(t, out, "abc123")
	requireContains(t, out, "Cleaned Up")
	requireContains(t, out, "legacy_digital")
}

func TestSIPsListStatusFilter(t *testing.T) {
	var gotStatus string
	addr := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		gotStatus = r.URL.Query().Get("status")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	})

	out, err := runCLI(t, []string{"sips", "list", "--status", "created"}, addr)
	if err != nil {
		t.Fatalf("sips list: %v", err)
	}
	if gotStatus != "created" {
		t.Fatalf("expected status filter created, got %q", gotStatus)
	}
	requireContains(t, out, "No packages tracked")
}

func TestSIPsListRejectsUnknownStatus(t *testing.T) {
	addr := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("daemon should not be contacted")
	})

	if _, err := runCLI(t, []string{"sips", "list", "--status", "bogus"}, addr); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestSIPsShowIncludesTransferUUID(t *testing.T) {
	addr := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sips/abc123" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		record := sipRecord{
			ID:                1,
			Identifier:        "abc123",
			Status:            "approved",
			Origin:            "digitization",
			Path:              "/archive/abc123.tar.gz",
			ExternalReference: "unit-uuid-1",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(record)
	})

	out, err := runCLI(t, []string{"sips", "show", "abc123"}, addr)
	if err != nil {
		t.Fatalf("sips show: %v", err)
	}
	requireContains(t, out, "unit-uuid-1")
	requireContains(t, out, "Approved")
}

func TestSIPsShowNotFound(t *testing.T) {
	addr := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"not found"}`))
	})

	_, err := runCLI(t, []string{"sips", "show", "missing"}, addr)
	if err == nil {
		t.Fatal("expected error for missing package")
	}
	requireContains(t, err.Error(), "not found")
}

func TestAddRegistersPackage(t *testing.T) {
	var got map[string]any
	addr := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/sips" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(sipRecord{Identifier: "abc123", Status: "created"})
	})

	out, err := runCLI(t, []string{"add", "abc123", "--origin", "digitization", "--metadata", `{"title":"Papers"}`}, addr)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	requireContains(t, out, "Registered abc123")
	if got["identifier"] != "abc123" || got["origin"] != "digitization" {
		t.Fatalf("unexpected request body: %v", got)
	}
	metadata, ok := got["metadata"].(map[string]any)
	if !ok || metadata["title"] != "Papers" {
		t.Fatalf("expected metadata to pass through, got %v", got["metadata"])
	}
}
