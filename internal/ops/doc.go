// Package ops implements the local stage operations that transform a SIP on
// disk: extracting the delivered archive, restructuring the bag for
// Archivematica, and assembling the final zipped bag. Each operation mutates
// the SIP's Path to the artifact's new location; persisting that change is
// the pipeline's job.
package ops
