package ops_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fornax/internal/bagit"
	"fornax/internal/config"
	"fornax/internal/logging"
	"fornax/internal/ops"
	"fornax/internal/services"
	"fornax/internal/sips"
	"fornax/internal/testsupport"
)

type stubConfigSource struct {
	body []byte
	err  error
}

func (s stubConfigSource) ProcessingConfig(_ context.Context) ([]byte, error) {
	return s.body, s.err
}

func stubSources(source ops.ProcessingConfigSource) ops.ConfigSourceFactory {
	return func(string) (ops.ProcessingConfigSource, error) {
		return source, nil
	}
}

const rightsMetadata = `{
  "identifier": "abc123",
  "rights_statements": [
    {
      "rights_basis": "Copyright",
      "status": "copyrighted",
      "jurisdiction": "us",
      "note": "under copyright until 2050",
      "rights_granted": [
        {"act": "disseminate", "restriction": "disallow", "start_date": "2021-01-01", "end_date": "2021-12-31", "note": "no dissemination"}
      ]
    }
  ]
}`

func TestRestructureShapesBag(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	bagPath := testsupport.WriteBag(t, cfg.Paths.WorkDir, "abc123", map[string]string{
		"report.pdf":        "report body",
		"objects/image.tif": "pixels",
	})

	sip := &sips.SIP{
		Identifier:   "abc123",
		Status:       sips.StatusRestructuring,
		Path:         bagPath,
		Origin:       "aurora",
		MetadataJSON: rightsMetadata,
	}
	restructurer := ops.NewRestructurer(cfg, stubSources(stubConfigSource{body: []byte("<processingMCP/>")}), logging.NewNop())
	if err := restructurer.Execute(context.Background(), sip); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// Loose payload moved under objects; existing objects left alone.
	if _, err := os.Stat(filepath.Join(bagPath, "data", "objects", "report.pdf")); err != nil {
		t.Fatalf("report.pdf not moved into objects: %v", err)
	}
	if _, err := os.Stat(filepath.Join(bagPath, "data", "objects", "image.tif")); err != nil {
		t.Fatalf("image.tif missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(bagPath, "data", "report.pdf")); !os.IsNotExist(err) {
		t.Fatal("report.pdf should no longer sit at data top level")
	}

	for _, dir := range []string{
		filepath.Join("data", "logs"),
		filepath.Join("data", "metadata"),
		filepath.Join("data", "metadata", "submissionDocumentation"),
	} {
		info, err := os.Stat(filepath.Join(bagPath, dir))
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}

	body, err := os.ReadFile(filepath.Join(bagPath, "processingMCP.xml"))
	if err != nil {
		t.Fatalf("processing config not written: %v", err)
	}
	if string(body) != "<processingMCP/>" {
		t.Fatalf("unexpected processing config body %q", body)
	}

	info, err := bagit.Info(bagPath)
	if err != nil {
		t.Fatalf("read bag info: %v", err)
	}
	if info["Internal-Sender-Identifier"] != "abc123" {
		t.Fatalf("expected sender identifier in bag-info, got %#v", info)
	}

	// One grant per payload file, plus the header.
	file, err := os.Open(filepath.Join(bagPath, "data", "metadata", "rights.csv"))
	if err != nil {
		t.Fatalf("rights csv not written: %v", err)
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("parse rights csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d records", len(records))
	}

	// The reshaped bag revalidates cleanly end to end.
	if err := bagit.Validate(bagPath); err != nil {
		t.Fatalf("restructured bag failed validation: %v", err)
	}
}

func TestRestructureIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	bagPath := testsupport.WriteBag(t, cfg.Paths.WorkDir, "abc123", map[string]string{
		"report.pdf":        "report body",
		"objects/image.tif": "pixels",
	})

	sip := &sips.SIP{Identifier: "abc123", Path: bagPath, Origin: "aurora", MetadataJSON: rightsMetadata}
	restructurer := ops.NewRestructurer(cfg, stubSources(stubConfigSource{body: []byte("<processingMCP/>")}), logging.NewNop())
	if err := restructurer.Execute(context.Background(), sip); err != nil {
		t.Fatalf("first Execute failed: %v", err)
	}

	rightsPath := filepath.Join(bagPath, "data", "metadata", "rights.csv")
	manifestPath := filepath.Join(bagPath, "manifest-sha256.txt")
	firstRights, err := os.ReadFile(rightsPath)
	if err != nil {
		t.Fatalf("read rights csv: %v", err)
	}
	firstManifest, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}

	if err := restructurer.Execute(context.Background(), sip); err != nil {
		t.Fatalf("second Execute failed: %v", err)
	}

	// The directories restructure maintains stay put; a re-run must not sweep
	// the previous run's metadata (rights.csv included) into the payload.
	for _, stray := range []string{
		filepath.Join(bagPath, "data", "objects", "metadata"),
		filepath.Join(bagPath, "data", "objects", "logs"),
	} {
		if _, err := os.Stat(stray); !os.IsNotExist(err) {
			t.Fatalf("re-run moved %s into the payload", stray)
		}
	}

	secondRights, err := os.ReadFile(rightsPath)
	if err != nil {
		t.Fatalf("read rights csv after re-run: %v", err)
	}
	if !bytes.Equal(firstRights, secondRights) {
		t.Fatalf("rights csv changed across runs\nfirst:\n%s\nsecond:\n%s", firstRights, secondRights)
	}
	secondManifest, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatalf("read manifest after re-run: %v", err)
	}
	if !bytes.Equal(firstManifest, secondManifest) {
		t.Fatalf("manifest changed across runs\nfirst:\n%s\nsecond:\n%s", firstManifest, secondManifest)
	}

	if err := bagit.Validate(bagPath); err != nil {
		t.Fatalf("bag invalid after re-run: %v", err)
	}
}

func TestRestructureRejectsInvalidBag(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	bagPath := filepath.Join(cfg.Paths.WorkDir, "abc123")
	if err := os.MkdirAll(filepath.Join(bagPath, "data"), 0o755); err != nil {
		t.Fatal(err)
	}

	sip := &sips.SIP{Identifier: "abc123", Path: bagPath, Origin: "aurora"}
	restructurer := ops.NewRestructurer(cfg, stubSources(stubConfigSource{}), logging.NewNop())
	if err := restructurer.Execute(context.Background(), sip); !errors.Is(err, services.ErrFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
}

func TestRestructureFailsOnUnknownOrigin(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	bagPath := testsupport.WriteBag(t, cfg.Paths.WorkDir, "abc123", map[string]string{
		"objects/file.txt": "contents",
	})

	sip := &sips.SIP{Identifier: "abc123", Path: bagPath, Origin: "unknown"}
	restructurer := ops.NewRestructurer(cfg, stubSources(stubConfigSource{}), logging.NewNop())
	if err := restructurer.Execute(context.Background(), sip); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRestructureSurfacesProcessingConfigFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	bagPath := testsupport.WriteBag(t, cfg.Paths.WorkDir, "abc123", map[string]string{
		"objects/file.txt": "contents",
	})

	sip := &sips.SIP{Identifier: "abc123", Path: bagPath, Origin: "aurora"}
	restructurer := ops.NewRestructurer(cfg, stubSources(stubConfigSource{err: errors.New("boom")}), logging.NewNop())
	if err := restructurer.Execute(context.Background(), sip); !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external error, got %v", err)
	}
}

func TestRestructureSkipEmptyGrantsFollowsOriginVersion(t *testing.T) {
	metadata := `{"identifier":"abc123","rights_statements":[{"rights_basis":"Other","note":"open","rights_granted":[]}]}`

	oldVersion := config.Archivematica{
		BaseURL: "http://archivematica.test", Username: "fornax", APIKey: "k",
		LocationUUID: "loc", ProcessingConfig: "default", Version: "1.11.2",
	}
	cfg := testsupport.NewConfig(t, testsupport.WithOrigin("legacy", oldVersion))
	bagPath := testsupport.WriteBag(t, cfg.Paths.WorkDir, "abc123", map[string]string{
		"objects/file.txt": "contents",
	})

	sip := &sips.SIP{Identifier: "abc123", Path: bagPath, Origin: "legacy", MetadataJSON: metadata}
	restructurer := ops.NewRestructurer(cfg, stubSources(stubConfigSource{body: []byte("<processingMCP/>")}), logging.NewNop())
	if err := restructurer.Execute(context.Background(), sip); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	file, err := os.Open(filepath.Join(bagPath, "data", "metadata", "rights.csv"))
	if err != nil {
		t.Fatalf("rights csv not written: %v", err)
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("parse rights csv: %v", err)
	}
	// Pre-1.13 origins suppress rows for statements that grant nothing.
	if len(records) != 1 {
		t.Fatalf("expected header only, got %d records", len(records))
	}
}
