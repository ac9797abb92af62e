package ops

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio/v2"

	"fornax/internal/bagit"
	"fornax/internal/config"
	"fornax/internal/fileutil"
	"fornax/internal/logging"
	"fornax/internal/rights"
	"fornax/internal/services"
	"fornax/internal/sips"
)

// ProcessingConfigSource fetches the Archivematica processing configuration
// that gets embedded in each bag before transfer.
type ProcessingConfigSource interface {
	ProcessingConfig(ctx context.Context) ([]byte, error)
}

// ConfigSourceFactory resolves a ProcessingConfigSource for a SIP's origin.
type ConfigSourceFactory func(origin string) (ProcessingConfigSource, error)

// Restructurer reshapes an extracted bag into the layout Archivematica
// expects: payload under data/objects, standard metadata directories, a
// rights CSV when statements are present, and an embedded processing config.
type Restructurer struct {
	cfg     *config.Config
	sources ConfigSourceFactory
	logger  *slog.Logger
}

// NewRestructurer creates the restructure stage operation.
func NewRestructurer(cfg *config.Config, sources ConfigSourceFactory, logger *slog.Logger) *Restructurer {
	return &Restructurer{
		cfg:     cfg,
		sources: sources,
		logger:  logging.NewComponentLogger(logger, "restructure"),
	}
}

// Name returns the stage this operation serves.
func (r *Restructurer) Name() sips.StageName {
	return sips.StageRestructure
}

// Execute runs the full restructure sequence against the bag at sip.Path.
// Every step is idempotent so a reverted claim can be safely re-triggered.
func (r *Restructurer) Execute(ctx context.Context, sip *sips.SIP) error {
	bagPath := sip.Path
	if err := bagit.Validate(bagPath); err != nil {
		return services.Wrap(services.ErrFormat, "ops", "restructure", "validate bag", err)
	}
	if err := moveIntoObjects(bagPath); err != nil {
		return services.Wrap(nil, "ops", "restructure", "move payload into objects", err)
	}
	if err := createStandardDirs(bagPath); err != nil {
		return services.Wrap(nil, "ops", "restructure", "create bag directories", err)
	}

	origin, err := r.cfg.Origin(sip.Origin)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "ops", "restructure", "resolve origin", err)
	}

	meta, err := sip.Metadata()
	if err != nil {
		return services.Wrap(services.ErrValidation, "ops", "restructure", "parse metadata", err)
	}
	if len(meta.RightsStatements) > 0 {
		if err := rights.CreateCSV(bagPath, meta.RightsStatements, origin.SkipEmptyGrants()); err != nil {
			return services.Wrap(nil, "ops", "restructure", "create rights csv", err)
		}
		if err := rights.ValidateCSV(bagPath); err != nil {
			return err
		}
	}

	if err := r.writeProcessingConfig(ctx, sip, bagPath); err != nil {
		return err
	}
	if err := bagit.SetInfo(bagPath, "Internal-Sender-Identifier", sip.Identifier); err != nil {
		return services.Wrap(nil, "ops", "restructure", "set bag info", err)
	}
	if err := bagit.UpdateManifests(bagPath); err != nil {
		return services.Wrap(nil, "ops", "restructure", "update manifests", err)
	}

	r.logger.Info("bag restructured",
		logging.String(logging.FieldIdentifier, sip.Identifier),
		logging.Int("rights_statements", len(meta.RightsStatements)))
	return nil
}

func (r *Restructurer) writeProcessingConfig(ctx context.Context, sip *sips.SIP, bagPath string) error {
	source, err := r.sources(sip.Origin)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "ops", "restructure", "processing config source", err)
	}
	body, err := source.ProcessingConfig(ctx)
	if err != nil {
		return services.Wrap(services.ErrExternal, "ops", "restructure", "fetch processing config", err)
	}
	target := filepath.Join(bagPath, "processingMCP.xml")
	if err := renameio.WriteFile(target, body, 0o644); err != nil {
		return services.Wrap(nil, "ops", "restructure", "write processing config", err)
	}
	return nil
}

// canonicalDataDirs are the data/ entries restructure itself maintains. The
// move loop leaves them in place so a re-run does not sweep a previous run's
// logs and metadata (including rights.csv) into the payload.
var canonicalDataDirs = map[string]struct{}{
	"objects":  {},
	"logs":     {},
	"metadata": {},
}

// moveIntoObjects relocates every delivered top-level data/ entry into
// data/objects/.
func moveIntoObjects(bagPath string) error {
	dataDir := filepath.Join(bagPath, "data")
	objectsDir := filepath.Join(dataDir, "objects")
	if err := os.MkdirAll(objectsDir, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if _, ok := canonicalDataDirs[entry.Name()]; ok {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		src := filepath.Join(dataDir, name)
		dst := filepath.Join(objectsDir, name)
		if err := fileutil.MovePath(src, dst); err != nil {
			return err
		}
	}
	return nil
}

func createStandardDirs(bagPath string) error {
	for _, dir := range []string{
		filepath.Join(bagPath, "data", "logs"),
		filepath.Join(bagPath, "data", "metadata"),
		filepath.Join(bagPath, "data", "metadata", "submissionDocumentation"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
