package bagit

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"fornax/internal/services"
)

// Declaration is the standard bagit.txt content for bags this system writes.
const Declaration = "BagIt-Version: 0.97\nTag-File-Character-Encoding: UTF-8\n"

const (
	declFile        = "bagit.txt"
	infoFile        = "bag-info.txt"
	sha256Manifest  = "manifest-sha256.txt"
	md5Manifest     = "manifest-md5.txt"
	tagManifestFile = "tagmanifest-sha256.txt"
)

// Validate checks a bag directory against the BagIt specification: the bag
// declaration and payload directory exist, every manifest entry matches its
// file's checksum, and every payload file appears in the manifest.
func Validate(bagPath string) error {
	if _, err := os.Stat(filepath.Join(bagPath, declFile)); err != nil {
		return services.Wrap(services.ErrFormat, "bagit", "validate", "missing bag declaration", err)
	}
	dataDir := filepath.Join(bagPath, "data")
	if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
		return services.Wrap(services.ErrFormat, "bagit", "validate", "missing payload directory", err)
	}

	manifest, hasher, err := readManifest(bagPath)
	if err != nil {
		return err
	}

	for relPath, want := range manifest {
		got, err := checksumFile(filepath.Join(bagPath, filepath.FromSlash(relPath)), hasher)
		if err != nil {
			return services.Wrap(services.ErrFormat, "bagit", "validate",
				fmt.Sprintf("payload file %s unreadable", relPath), err)
		}
		if got != want {
			return services.Wrap(services.ErrFormat, "bagit", "validate",
				fmt.Sprintf("checksum mismatch for %s", relPath), nil)
		}
	}

	payload, err := payloadFiles(bagPath)
	if err != nil {
		return services.Wrap(services.ErrFormat, "bagit", "validate", "walk payload", err)
	}
	for _, relPath := range payload {
		if _, ok := manifest[relPath]; !ok {
			return services.Wrap(services.ErrFormat, "bagit", "validate",
				fmt.Sprintf("payload file %s not in manifest", relPath), nil)
		}
	}
	return nil
}

// SetInfo sets a key in bag-info.txt, replacing any existing value. Other
// entries are preserved in order.
func SetInfo(bagPath, key, value string) error {
	path := filepath.Join(bagPath, infoFile)
	var lines []string
	if body, err := os.ReadFile(path); err == nil {
		for _, line := range strings.Split(strings.TrimRight(string(body), "\n"), "\n") {
			if line == "" || strings.HasPrefix(line, key+": ") {
				continue
			}
			lines = append(lines, line)
		}
	}
	lines = append(lines, fmt.Sprintf("%s: %s", key, value))
	body := strings.Join(lines, "\n") + "\n"
	if err := renameio.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write bag-info.txt: %w", err)
	}
	return nil
}

// UpdateManifests recomputes the payload manifest, Payload-Oxum, Bagging-Date,
// and the tag manifest. Call after any change to the payload or tag files.
func UpdateManifests(bagPath string) error {
	payload, err := payloadFiles(bagPath)
	if err != nil {
		return fmt.Errorf("walk payload: %w", err)
	}

	var (
		manifest   bytes.Buffer
		totalBytes int64
	)
	for _, relPath := range payload {
		fullPath := filepath.Join(bagPath, filepath.FromSlash(relPath))
		sum, err := checksumFile(fullPath, sha256.New)
		if err != nil {
			return fmt.Errorf("checksum %s: %w", relPath, err)
		}
		info, err := os.Stat(fullPath)
		if err != nil {
			return fmt.Errorf("stat %s: %w", relPath, err)
		}
		totalBytes += info.Size()
		fmt.Fprintf(&manifest, "%s  %s\n", sum, relPath)
	}
	if err := renameio.WriteFile(filepath.Join(bagPath, sha256Manifest), manifest.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write payload manifest: %w", err)
	}
	// An md5 manifest from the original bagging tool would no longer match.
	if err := os.Remove(filepath.Join(bagPath, md5Manifest)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale md5 manifest: %w", err)
	}

	if err := SetInfo(bagPath, "Payload-Oxum", fmt.Sprintf("%d.%d", totalBytes, len(payload))); err != nil {
		return err
	}
	if err := SetInfo(bagPath, "Bagging-Date", time.Now().UTC().Format("2006-01-02")); err != nil {
		return err
	}

	var tagManifest bytes.Buffer
	for _, name := range []string{declFile, infoFile, sha256Manifest} {
		sum, err := checksumFile(filepath.Join(bagPath, name), sha256.New)
		if err != nil {
			return fmt.Errorf("checksum %s: %w", name, err)
		}
		fmt.Fprintf(&tagManifest, "%s  %s\n", sum, name)
	}
	if err := renameio.WriteFile(filepath.Join(bagPath, tagManifestFile), tagManifest.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write tag manifest: %w", err)
	}
	return nil
}

// Init turns a directory holding a data/ payload into a valid bag. Used to
// build fixtures; incoming packages arrive already bagged.
func Init(bagPath string, info map[string]string) error {
	if err := renameio.WriteFile(filepath.Join(bagPath, declFile), []byte(Declaration), 0o644); err != nil {
		return fmt.Errorf("write bag declaration: %w", err)
	}
	keys := make([]string, 0, len(info))
	for key := range info {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := SetInfo(bagPath, key, info[key]); err != nil {
			return err
		}
	}
	return UpdateManifests(bagPath)
}

// Info reads bag-info.txt into a map. Continuation lines are not supported;
// bags produced upstream use simple single-line entries.
func Info(bagPath string) (map[string]string, error) {
	body, err := os.ReadFile(filepath.Join(bagPath, infoFile))
	if err != nil {
		return nil, fmt.Errorf("read bag-info.txt: %w", err)
	}
	entries := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if key, value, ok := strings.Cut(line, ": "); ok {
			entries[key] = value
		}
	}
	return entries, scanner.Err()
}

func readManifest(bagPath string) (map[string]string, func() hash.Hash, error) {
	candidates := []struct {
		name   string
		hasher func() hash.Hash
	}{
		{sha256Manifest, sha256.New},
		{md5Manifest, md5.New},
	}
	for _, candidate := range candidates {
		body, err := os.ReadFile(filepath.Join(bagPath, candidate.name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, nil, services.Wrap(services.ErrFormat, "bagit", "validate", "read manifest", err)
		}
		manifest, err := parseManifest(body)
		if err != nil {
			return nil, nil, services.Wrap(services.ErrFormat, "bagit", "validate", "parse manifest", err)
		}
		return manifest, candidate.hasher, nil
	}
	return nil, nil, services.Wrap(services.ErrFormat, "bagit", "validate", "no payload manifest found", nil)
}

func parseManifest(body []byte) (map[string]string, error) {
	manifest := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed manifest line %q", line)
		}
		relPath := filepath.ToSlash(strings.Join(fields[1:], " "))
		manifest[relPath] = fields[0]
	}
	return manifest, scanner.Err()
}

func payloadFiles(bagPath string) ([]string, error) {
	var files []string
	dataDir := filepath.Join(bagPath, "data")
	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(bagPath, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func checksumFile(path string, hasher func() hash.Hash) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	h := hasher()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
