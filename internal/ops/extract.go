package ops

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"fornax/internal/config"
	"fornax/internal/fileutil"
	"fornax/internal/logging"
	"fornax/internal/services"
	"fornax/internal/sips"
)

var archiveSuffixes = []string{".tar.gz", ".tgz", ".gz"}

// Extractor unpacks a delivered SIP archive into the work directory.
type Extractor struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewExtractor creates the extract stage operation.
func NewExtractor(cfg *config.Config, logger *slog.Logger) *Extractor {
	return &Extractor{cfg: cfg, logger: logging.NewComponentLogger(logger, "extract")}
}

// Name returns the stage this operation serves.
func (e *Extractor) Name() sips.StageName {
	return sips.StageExtract
}

// Execute extracts the SIP's gzipped tar archive into the work directory and
// removes the source archive. The archive must contain a top-level directory
// named after the SIP identifier; Path is updated to that directory.
func (e *Extractor) Execute(ctx context.Context, sip *sips.SIP) error {
	if !recognizedArchive(sip.Path) {
		return services.Wrap(services.ErrFormat, "ops", "extract",
			fmt.Sprintf("unrecognized archive format %q", filepath.Ext(sip.Path)), nil)
	}

	target := filepath.Join(e.cfg.Paths.WorkDir, sip.Identifier)
	if err := extractTarGz(ctx, sip.Path, e.cfg.Paths.WorkDir); err != nil {
		return services.Wrap(services.ErrFormat, "ops", "extract", "unpack archive", err)
	}
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		return services.Wrap(services.ErrFormat, "ops", "extract",
			fmt.Sprintf("archive did not produce directory %s", sip.Identifier), err)
	}
	if err := os.Remove(sip.Path); err != nil {
		return services.Wrap(nil, "ops", "extract", "remove source archive", err)
	}

	e.logger.Info("archive extracted",
		logging.String(logging.FieldIdentifier, sip.Identifier),
		logging.String("path", target))
	sip.Path = target
	return nil
}

func recognizedArchive(path string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func extractTarGz(ctx context.Context, archivePath, destDir string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	reader := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}
		target, err := fileutil.SafeJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := writeEntry(target, reader, header.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		default:
			// Links and specials are not part of the bag profile.
			return fmt.Errorf("unsupported tar entry type %d for %s", header.Typeflag, header.Name)
		}
	}
}

func writeEntry(target string, reader io.Reader, mode os.FileMode) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, reader); err != nil {
		return err
	}
	return out.Close()
}
