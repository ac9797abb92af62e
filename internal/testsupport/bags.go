package testsupport

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"fornax/internal/bagit"
)

// WriteBag builds a valid bag directory with the given payload files, keyed
// by path relative to data/. Returns the bag path.
func WriteBag(t testing.TB, dir, name string, payload map[string]string) string {
	t.Helper()

	bagPath := filepath.Join(dir, name)
	for relPath, body := range payload {
		fullPath := filepath.Join(bagPath, "data", filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			t.Fatalf("create payload dir: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(body), 0o644); err != nil {
			t.Fatalf("write payload file: %v", err)
		}
	}
	if err := bagit.Init(bagPath, map[string]string{"Source-Organization": "testsupport"}); err != nil {
		t.Fatalf("init bag: %v", err)
	}
	return bagPath
}

// TarGz compresses a directory into a .tar.gz whose entries are rooted at the
// directory's base name, matching how upstream systems package bags.
func TarGz(t testing.TB, srcDir, destPath string) {
	t.Helper()

	out, err := os.Create(destPath)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer out.Close()

	gzWriter := gzip.NewWriter(out)
	tarWriter := tar.NewWriter(gzWriter)

	base := filepath.Base(srcDir)
	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(filepath.Join(base, rel))
		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = name
		if d.IsDir() {
			header.Name += "/"
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(tarWriter, file)
		return err
	})
	if err != nil {
		t.Fatalf("build archive: %v", err)
	}
	if err := tarWriter.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
	if err := gzWriter.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}
}

// BaggedArchive builds a bag, compresses it to destPath, and removes the
// uncompressed directory. Used to stage source archives for extract tests.
func BaggedArchive(t testing.TB, identifier, destPath string, payload map[string]string) {
	t.Helper()

	scratch := t.TempDir()
	bagPath := WriteBag(t, scratch, identifier, payload)
	TarGz(t, bagPath, destPath)
	if err := os.RemoveAll(bagPath); err != nil {
		t.Fatalf("remove scratch bag: %v", err)
	}
}
