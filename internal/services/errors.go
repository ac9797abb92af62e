package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFormat marks unrecognized archive types and malformed bags.
	ErrFormat = errors.New("format error")
	// ErrValidation marks schema violations such as an invalid rights CSV.
	ErrValidation = errors.New("validation error")
	// ErrExternal marks unexpected responses from Archivematica or the
	// cleanup service.
	ErrExternal = errors.New("external service error")
	// ErrBusy marks the recoverable condition where the external service is
	// still processing a previous transfer. It is an expected outcome, not a
	// failure; the pipeline reverts the claim and reports it informationally.
	ErrBusy = errors.New("external service busy")
	// ErrNotFound marks missing records or artifacts.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration marks unusable configuration, such as an origin with
	// no Archivematica profile.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsBusy reports whether an error represents the expected busy condition.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
