package services_test

import (
	"errors"
	"testing"

	"fornax/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("underlying")
	err := services.Wrap(services.ErrValidation, "rights", "validate", "3 problems", base)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	want := "validation error: rights: validate: 3 problems: underlying"
	if err.Error() != want {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external marker default, got %v", err)
	}
	if err.Error() != "external service error: service failure" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestIsBusy(t *testing.T) {
	err := services.Wrap(services.ErrBusy, "archivematica", "approve", "previous transfer still processing", nil)
	if !services.IsBusy(err) {
		t.Fatal("expected busy classification")
	}
	if services.IsBusy(errors.New("plain")) {
		t.Fatal("plain error misclassified as busy")
	}
}
