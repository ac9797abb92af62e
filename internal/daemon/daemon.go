package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"fornax/internal/config"
	"fornax/internal/logging"
	"fornax/internal/pipeline"
	"fornax/internal/preflight"
	"fornax/internal/sips"
)

// Daemon coordinates the stage scheduler and the HTTP API, and enforces
// single-instance execution through a file lock.
type Daemon struct {
	cfg     *config.Config
	store   *sips.Store
	runner  *pipeline.Runner
	handler http.Handler
	logger  *slog.Logger

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	cancel   context.CancelFunc
	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *sips.Store, runner *pipeline.Runner, handler http.Handler, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || runner == nil || handler == nil {
		return nil, errors.New("daemon requires config, store, runner, and handler")
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "fornaxd.lock")
	return &Daemon{
		cfg:      cfg,
		store:    store,
		runner:   runner,
		handler:  handler,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, recovers stale claims, and launches the
// scheduler and the HTTP server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fornax daemon instance is already running")
	}

	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		d.logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail))
	}

	// Claims left behind by a crashed process would block their stage
	// forever, so release them before scheduling resumes.
	reset, err := d.store.ResetInProgress(ctx, "")
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reset stale claims: %w", err)
	}
	if reset > 0 {
		d.logger.Info("stale claims released", logging.Int64("count", reset))
	}

	listener, err := net.Listen("tcp", d.cfg.Paths.APIBind)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("bind api: %w", err)
	}
	d.listener = listener
	d.server = &http.Server{
		Handler:           d.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Capture the server locally: Stop clears d.server before wg.Wait, so
	// the goroutine must not read the field.
	srv := d.server
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("api server stopped", logging.Error(err))
		}
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.schedule(runCtx)
	}()

	if d.cfg.Logging.RetentionDays > 0 {
		logging.CleanupOldLogs(d.logger, d.cfg.Paths.LogDir, "fornax*.log", d.cfg.Logging.RetentionDays)
	}

	d.running.Store(true)
	d.logger.Info("fornax daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", listener.Addr().String()))
	return nil
}

// Addr reports the bound API address, usable once Start has returned.
func (d *Daemon) Addr() string {
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// schedule ticks every stage in pipeline order at the configured interval.
// One tick moves each waiting SIP at most one stage; stage failures are
// logged and do not stop the scheduler.
func (d *Daemon) schedule(ctx context.Context) {
	interval := time.Duration(d.cfg.Workflow.StagePollInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Daemon) tick(ctx context.Context) {
	for _, name := range d.runner.Stages() {
		if ctx.Err() != nil {
			return
		}
		outcome, err := d.runner.RunStage(ctx, name)
		if err != nil {
			d.logger.Error("scheduled stage failed",
				logging.String(logging.FieldStage, string(name)),
				logging.Error(err))
			continue
		}
		if outcome.Kind == pipeline.OutcomeProcessed {
			d.logger.Info("scheduled stage processed",
				logging.String(logging.FieldStage, string(name)),
				logging.String(logging.FieldIdentifier, outcome.Identifier))
		}
	}
}

// Stop shuts down the HTTP server and the scheduler and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("api shutdown incomplete", logging.Error(err))
		}
		cancel()
		d.server = nil
		d.listener = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("fornax daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Run starts the daemon and blocks until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}
