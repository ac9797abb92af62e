// Package services defines the error taxonomy and context helpers shared by
// the stage operations and external service clients.
//
// Stage failures are tagged with sentinel errors so the pipeline runner can
// distinguish fatal failures from the expected "busy" condition reported by
// Archivematica when a previous transfer is still processing.
package services
