package testsupport

import (
	"context"
	"testing"

	"fornax/internal/config"
	"fornax/internal/sips"
)

// MustOpenStore opens a sips.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *sips.Store {
	t.Helper()

	store, err := sips.Open(cfg)
	if err != nil {
		t.Fatalf("sips.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSIP creates a SIP record for tests using the provided store.
func NewSIP(t testing.TB, store *sips.Store, identifier, origin, path, metadataJSON string) *sips.SIP {
	t.Helper()

	sip, err := store.Create(context.Background(), identifier, origin, path, metadataJSON)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return sip
}

// SetStatus moves a SIP to a status and persists it.
func SetStatus(t testing.TB, store *sips.Store, sip *sips.SIP, status sips.Status) {
	t.Helper()

	sip.Status = status
	if err := store.Update(context.Background(), sip); err != nil {
		t.Fatalf("store.Update: %v", err)
	}
}
