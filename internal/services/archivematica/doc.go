// Package archivematica is the HTTP client for the Archivematica dashboard
// API, plus the start-transfer stage operation built on it. Each configured
// origin gets its own client with its own credentials and transfer source
// location.
package archivematica
