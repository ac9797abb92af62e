package preflight

import (
	"context"
	"fmt"
	"sort"

	"fornax/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Source directory", cfg.Paths.SourceDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Destination directory", cfg.Paths.DestDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace("Work directory space", cfg.Paths.WorkDir),
	}

	origins := make([]string, 0, len(cfg.Archivematica))
	for origin := range cfg.Archivematica {
		origins = append(origins, origin)
	}
	sort.Strings(origins)
	for _, origin := range origins {
		name := fmt.Sprintf("Archivematica (%s)", origin)
		results = append(results, CheckArchivematica(ctx, name, cfg.Archivematica[origin]))
	}

	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
