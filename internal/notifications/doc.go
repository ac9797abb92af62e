// Package notifications announces pipeline milestones via ntfy.
//
// The ntfy-backed service publishes to the topic configured in config.toml
// and degrades to a no-op when no topic is set, so callers never need to
// guard their notification calls. Per-category flags let operators silence
// assembly, transfer, or error events independently.
//
// The pipeline runner is the only producer; it announces when a package
// archive is assembled, when a transfer is approved by the Archivematica
// dashboard, and when a stage fails.
package notifications
