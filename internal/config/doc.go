// Package config loads, normalizes, and validates fornax configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// daemon and CLI need, including the per-origin Archivematica profiles that
// govern which dashboard a SIP is transferred to.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
