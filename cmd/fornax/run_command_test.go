package main

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestRunTriggersStageEndpoint(t *testing.T) {
	var gotPath string
	addr := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(triggerResponse{
			Detail:  "extraction started",
			Objects: []string{"abc123"},
		})
	})

	out, err := runCLI(t, []string{"run", "extract"}, addr)
	if err != nil {
		t.Fatalf("run extract: %v", err)
	}
	if gotPath != "/extract" {
		t.Fatalf("expected /extract, got %s", gotPath)
	}
	requireContains(t, out, "extraction started")
	requireContains(t, out, "abc123")
}

func TestRunMapsStartTransferRoute(t *testing.T) {
	var gotPath string
	addr := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(triggerResponse{Detail: "no packages waiting"})
	})

	if _, err := runCLI(t, []string{"run", "start_transfer"}, addr); err != nil {
		t.Fatalf("run start_transfer: %v", err)
	}
	if gotPath != "/start" {
		t.Fatalf("expected /start, got %s", gotPath)
	}
}

func TestRunRejectsUnknownStage(t *testing.T) {
	addr := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("daemon should not be contacted")
	})

	_, err := runCLI(t, []string{"run", "transcode"}, addr)
	if err == nil {
		t.Fatal("expected error for unknown stage")
	}
	requireContains(t, err.Error(), "unknown stage")
}

func TestRunSurfacesStageFailure(t *testing.T) {
	addr := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"abc123: bag validation failed"}`))
	})

	_, err := runCLI(t, []string{"run", "restructure"}, addr)
	if err == nil {
		t.Fatal("expected error from failed stage")
	}
	requireContains(t, err.Error(), "bag validation failed")
}

func TestCleanupCommand(t *testing.T) {
	var got map[string]string
	addr := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cleanup" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(triggerResponse{Detail: "package removed"})
	})

	out, err := runCLI(t, []string{"cleanup", "abc123"}, addr)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if got["identifier"] != "abc123" {
		t.Fatalf("expected identifier abc123, got %v", got)
	}
	requireContains(t, out, "package removed")
}

func TestRemoveCompletedSelectsUnitRoute(t *testing.T) {
	var gotPath string
	addr := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(triggerResponse{
			Detail:  "completed units hidden",
			Objects: []string{"uuid-1", "uuid-2"},
		})
	})

	out, err := runCLI(t, []string{"remove-completed", "--unit", "ingest"}, addr)
	if err != nil {
		t.Fatalf("remove-completed: %v", err)
	}
	if gotPath != "/remove-ingests" {
		t.Fatalf("expected /remove-ingests, got %s", gotPath)
	}
	requireContains(t, out, "uuid-2")

	if _, err := runCLI(t, []string{"remove-completed", "--unit", "sip"}, addr); err == nil {
		t.Fatal("expected error for unknown unit")
	}
}
