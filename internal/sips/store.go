package sips

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fornax/internal/config"
)

// Store manages SIP persistence backed by SQLite. Every save is a single
// statement, so a record is either fully persisted with its new status, path,
// and metadata or not written at all.
type Store struct {
	db   *sql.DB
	path string
}

// ErrDuplicateIdentifier is returned when creating a SIP whose identifier is
// already registered.
var ErrDuplicateIdentifier = errors.New("identifier already registered")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the SIP database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "fornax.db")
	return OpenPath(dbPath)
}

// OpenPath opens the SIP database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Create registers a new SIP at status created.
func (s *Store) Create(ctx context.Context, identifier, origin, path, metadataJSON string) (*SIP, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, errors.New("identifier is required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO sips (identifier, status, path, origin, external_reference, metadata_json, created_at, modified_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		identifier,
		StatusCreated,
		nullableString(path),
		nullableString(origin),
		nil,
		nullableString(metadataJSON),
		now,
		now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateIdentifier, identifier)
		}
		return nil, fmt.Errorf("insert sip: %w", err)
	}

	return s.GetByIdentifier(ctx, identifier)
}

// GetByIdentifier fetches a SIP by its unique identifier. Returns nil when no
// record exists.
func (s *Store) GetByIdentifier(ctx context.Context, identifier string) (*SIP, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sipColumns+` FROM sips WHERE identifier = ?`, identifier)
	item, err := scanSIP(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sip: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing SIP and bumps modified_at.
func (s *Store) Update(ctx context.Context, sip *SIP) error {
	if sip == nil {
		return errors.New("sip is nil")
	}
	sip.ModifiedAt = time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE sips
         SET status = ?, path = ?, origin = ?, external_reference = ?, metadata_json = ?, modified_at = ?
         WHERE identifier = ?`,
		sip.Status,
		nullableString(sip.Path),
		nullableString(sip.Origin),
		nullableString(sip.ExternalReference),
		nullableString(sip.MetadataJSON),
		sip.ModifiedAt.Format(time.RFC3339Nano),
		sip.Identifier,
	)
	if err != nil {
		return fmt.Errorf("update sip: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("sip %s not found", sip.Identifier)
	}
	return nil
}

// ItemsByStatus returns SIPs matching a status ordered oldest-modified first,
// which enforces FIFO processing.
func (s *Store) ItemsByStatus(ctx context.Context, status Status) ([]*SIP, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sipColumns+` FROM sips WHERE status = ? ORDER BY modified_at`, status)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()
	return collectSIPs(rows)
}

// NextForStatus returns the oldest-modified SIP in a status, or nil when none
// exists.
func (s *Store) NextForStatus(ctx context.Context, status Status) (*SIP, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+sipColumns+` FROM sips WHERE status = ? ORDER BY modified_at LIMIT 1`,
		status,
	)
	item, err := scanSIP(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next for status: %w", err)
	}
	return item, nil
}

// LastForStatus returns the most recently modified SIP in a status,
// optionally restricted to one origin. Used to find the transfer most
// recently approved against a dashboard.
func (s *Store) LastForStatus(ctx context.Context, status Status, origin string) (*SIP, error) {
	query := `SELECT ` + sipColumns + ` FROM sips WHERE status = ?`
	args := []any{status}
	if origin != "" {
		query += ` AND origin = ?`
		args = append(args, origin)
	}
	query += ` ORDER BY modified_at DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	item, err := scanSIP(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last for status: %w", err)
	}
	return item, nil
}

// HasStatus reports whether any SIP currently holds a status.
func (s *Store) HasStatus(ctx context.Context, status Status) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sips WHERE status = ?`, status).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count by status: %w", err)
	}
	return count > 0, nil
}

// List returns SIPs filtered by status set (or all SIPs when no status is
// provided), ordered by creation time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*SIP, error) {
	baseQuery := `SELECT ` + sipColumns + ` FROM sips`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list sips: %w", err)
	}
	defer rows.Close()
	return collectSIPs(rows)
}

// ResetInProgress reverts claimed SIPs back to their stage's start status.
// When identifier is empty, every in-progress SIP is reset. This is the
// manual recovery path for claims left behind by a crashed process.
func (s *Store) ResetInProgress(ctx context.Context, identifier string) (int64, error) {
	var total int64
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, stage := range stageTable {
		query := `UPDATE sips SET status = ?, modified_at = ? WHERE status = ?`
		args := []any{stage.Start, now, stage.InProgress}
		if identifier != "" {
			query += ` AND identifier = ?`
			args = append(args, identifier)
		}
		res, err := s.execWithRetry(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("reset %s claims: %w", stage.Name, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += affected
	}
	return total, nil
}

// Stats returns a count of SIPs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM sips GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("sip stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// HealthSummary describes aggregated SIP counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Waiting    int
	InProgress int
	Completed  int
}

// Health aggregates SIP state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch {
		case status == StatusCleanedUp:
			health.Completed += count
		case IsInProgressStatus(status):
			health.InProgress += count
		default:
			health.Waiting += count
		}
	}
	return health, nil
}

const sipColumns = "id, identifier, status, path, origin, external_reference, metadata_json, created_at, modified_at"

func scanSIP(scanner interface{ Scan(dest ...any) error }) (*SIP, error) {
	var (
		id          int64
		identifier  string
		statusStr   string
		path        sql.NullString
		origin      sql.NullString
		externalRef sql.NullString
		metadata    sql.NullString
		createdRaw  sql.NullString
		modifiedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&identifier,
		&statusStr,
		&path,
		&origin,
		&externalRef,
		&metadata,
		&createdRaw,
		&modifiedRaw,
	); err != nil {
		return nil, err
	}

	sip := &SIP{
		ID:                id,
		Identifier:        identifier,
		Status:            Status(statusStr),
		Path:              path.String,
		Origin:            origin.String,
		ExternalReference: externalRef.String,
		MetadataJSON:      metadata.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		sip.CreatedAt = created
	}
	if modified, err := parseTimeString(modifiedRaw.String); err == nil {
		sip.ModifiedAt = modified
	}
	return sip, nil
}

func collectSIPs(rows *sql.Rows) ([]*SIP, error) {
	var items []*SIP
	for rows.Next() {
		item, err := scanSIP(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
