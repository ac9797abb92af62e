package ops

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"fornax/internal/config"
	"fornax/internal/logging"
	"fornax/internal/services"
	"fornax/internal/sips"
)

// Assembler packages a restructured bag directory into the zipped bag that
// gets handed to Archivematica.
type Assembler struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewAssembler creates the assemble stage operation.
func NewAssembler(cfg *config.Config, logger *slog.Logger) *Assembler {
	return &Assembler{cfg: cfg, logger: logging.NewComponentLogger(logger, "assemble")}
}

// Name returns the stage this operation serves.
func (a *Assembler) Name() sips.StageName {
	return sips.StageAssemble
}

// Execute compresses the bag directory at sip.Path into
// {dest_dir}/{identifier}.tar.gz, removes the directory, and points Path at
// the archive.
func (a *Assembler) Execute(ctx context.Context, sip *sips.SIP) error {
	archivePath := filepath.Join(a.cfg.Paths.DestDir, sip.Identifier+".tar.gz")
	if err := createTarGz(ctx, sip.Path, sip.Identifier, archivePath); err != nil {
		_ = os.Remove(archivePath)
		return services.Wrap(nil, "ops", "assemble", "create archive", err)
	}
	if err := os.RemoveAll(sip.Path); err != nil {
		return services.Wrap(nil, "ops", "assemble", "remove bag directory", err)
	}

	a.logger.Info("bag assembled",
		logging.String(logging.FieldIdentifier, sip.Identifier),
		logging.String("path", archivePath))
	sip.Path = archivePath
	return nil
}

// createTarGz writes dir into a gzipped tar at archivePath with every entry
// rooted at the given base name.
func createTarGz(ctx context.Context, dir, base, archivePath string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	writer := tar.NewWriter(gz)

	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := base
		if rel != "." {
			name = filepath.Join(base, rel)
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(name)
		if entry.IsDir() {
			header.Name += "/"
		}
		if err := writer.WriteHeader(header); err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(writer, in)
		return err
	})
	if err != nil {
		return err
	}

	if err := writer.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return out.Close()
}
