package sips

import (
	"encoding/json"
	"fmt"

	"fornax/internal/rights"
)

// Metadata is the provenance payload attached to a SIP at intake. The
// pipeline reads it but never rewrites it; unrecognized keys from the
// upstream system are preserved in the stored JSON untouched.
type Metadata struct {
	Identifier       string             `json:"identifier"`
	RightsStatements []rights.Statement `json:"rights_statements"`
}

// Metadata parses the stored metadata payload.
func (s *SIP) Metadata() (Metadata, error) {
	var meta Metadata
	if s.MetadataJSON == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(s.MetadataJSON), &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse metadata for %s: %w", s.Identifier, err)
	}
	return meta, nil
}

// EncodeMetadata serializes an intake metadata payload for storage.
func EncodeMetadata(raw map[string]any) (string, error) {
	if raw == nil {
		return "", nil
	}
	body, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(body), nil
}
