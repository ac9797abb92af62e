package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"fornax/internal/config"
	"fornax/internal/fileutil"
	"fornax/internal/logging"
	"fornax/internal/services"
	"fornax/internal/sips"
)

// HTTPDoer abstracts the HTTP client for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Requester is the request-cleanup stage operation. Once a SIP has been
// approved into Archivematica, it tells the downstream system that the
// delivered archive can be deleted.
type Requester struct {
	cfg    *config.Config
	http   HTTPDoer
	logger *slog.Logger
}

// NewRequester creates the request-cleanup stage operation.
func NewRequester(cfg *config.Config, doer HTTPDoer, logger *slog.Logger) *Requester {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Requester{
		cfg:    cfg,
		http:   doer,
		logger: logging.NewComponentLogger(logger, "cleanup"),
	}
}

// Name returns the stage this operation serves.
func (r *Requester) Name() sips.StageName {
	return sips.StageRequestCleanup
}

// Execute posts the SIP identifier to the configured cleanup endpoint. Only
// HTTP 200 counts as success. With no endpoint configured the request is
// skipped so self-contained deployments still finish the pipeline.
func (r *Requester) Execute(ctx context.Context, sip *sips.SIP) error {
	if r.cfg.Cleanup.URL == "" {
		r.logger.Info("no cleanup endpoint configured, skipping request",
			logging.String(logging.FieldIdentifier, sip.Identifier))
		return nil
	}

	body, err := json.Marshal(map[string]string{"identifier": sip.Identifier})
	if err != nil {
		return services.Wrap(nil, "cleanup", "encode request", sip.Identifier, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Cleanup.URL, bytes.NewReader(body))
	if err != nil {
		return services.Wrap(nil, "cleanup", "build request", sip.Identifier, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternal, "cleanup", "request", sip.Identifier, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrExternal, "cleanup", "request",
			fmt.Sprintf("%s: unexpected status %d", sip.Identifier, resp.StatusCode), nil)
	}

	r.logger.Info("cleanup requested", logging.String(logging.FieldIdentifier, sip.Identifier))
	return nil
}

// Result reports what the destination cleanup routine did for one SIP.
type Result struct {
	Identifier string `json:"identifier"`
	Removed    bool   `json:"removed"`
}

// Routine deletes delivered archives from the destination directory when an
// upstream system signals it no longer needs them.
type Routine struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewRoutine creates the destination cleanup routine.
func NewRoutine(cfg *config.Config, logger *slog.Logger) *Routine {
	return &Routine{cfg: cfg, logger: logging.NewComponentLogger(logger, "cleanup")}
}

// Remove deletes {dest_dir}/{identifier}.tar.gz. A file that is already gone
// is a normal outcome, not an error.
func (r *Routine) Remove(identifier string) (Result, error) {
	path := filepath.Join(r.cfg.Paths.DestDir, identifier+".tar.gz")
	removed, err := fileutil.RemoveIfExists(path)
	if err != nil {
		return Result{}, services.Wrap(nil, "cleanup", "remove archive", identifier, err)
	}
	r.logger.Info("destination cleanup",
		logging.String(logging.FieldIdentifier, identifier),
		logging.Bool("removed", removed))
	return Result{Identifier: identifier, Removed: removed}, nil
}
