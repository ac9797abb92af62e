// Package cleanup handles both directions of post-transfer housekeeping:
// asking the upstream system to delete its copy of a delivered SIP, and
// deleting archives from our own destination directory on request.
package cleanup
