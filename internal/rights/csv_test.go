package rights_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"fornax/internal/rights"
)

func writeObjects(t *testing.T, bagPath string, names ...string) {
	t.Helper()
	objectsDir := filepath.Join(bagPath, "data", "objects")
	if err := os.MkdirAll(objectsDir, 0o755); err != nil {
		t.Fatalf("create objects dir: %v", err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(objectsDir, name), []byte(name), 0o644); err != nil {
			t.Fatalf("write object %s: %v", name, err)
		}
	}
}

func readCSV(t *testing.T, bagPath string) [][]string {
	t.Helper()
	file, err := os.Open(rights.CSVPath(bagPath))
	if err != nil {
		t.Fatalf("open rights.csv: %v", err)
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("parse rights.csv: %v", err)
	}
	return records
}

func sampleStatement(grants ...rights.Grant) rights.Statement {
	return rights.Statement{
		RightsBasis:   "Copyright",
		Status:        "copyrighted",
		Note:          "Open after 2021",
		RightsGranted: grants,
	}
}

func TestCreateCSVRowPerFileAndGrant(t *testing.T) {
	bagPath := t.TempDir()
	writeObjects(t, bagPath, "a.txt", "b.txt")

	statement := sampleStatement(
		rights.Grant{Act: "disseminate", Restriction: "disallow", StartDate: "2021-01-01", EndDate: "2021-12-31", Note: "grant note"},
		rights.Grant{Act: "publish", Restriction: "allow", Note: "grant note"},
	)
	if err := rights.CreateCSV(bagPath, []rights.Statement{statement}, false); err != nil {
		t.Fatalf("CreateCSV failed: %v", err)
	}

	records := readCSV(t, bagPath)
	// header + 2 files x 2 grants
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	for i, record := range records {
		if len(record) != 18 {
			t.Fatalf("record %d has %d columns, want 18", i, len(record))
		}
	}
	first := records[1]
	if first[0] != "data/objects/a.txt" {
		t.Fatalf("unexpected file column: %q", first[0])
	}
	if first[10] != "disseminate" || first[11] != "disallow" || first[12] != "2021-01-01" || first[13] != "2021-12-31" {
		t.Fatalf("unexpected grant columns: %v", first[10:14])
	}
}

func TestCreateCSVEmptyGrantRow(t *testing.T) {
	bagPath := t.TempDir()
	writeObjects(t, bagPath, "a.txt", "b.txt", "c.txt")

	statement := sampleStatement()
	if err := rights.CreateCSV(bagPath, []rights.Statement{statement}, false); err != nil {
		t.Fatalf("CreateCSV failed: %v", err)
	}

	records := readCSV(t, bagPath)
	// header + one empty-grant row per file
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	for _, record := range records[1:] {
		for col := 10; col < 15; col++ {
			if record[col] != "" {
				t.Fatalf("expected empty grant column %d, got %q", col, record[col])
			}
		}
	}
}

func TestCreateCSVSkipEmptyGrants(t *testing.T) {
	bagPath := t.TempDir()
	writeObjects(t, bagPath, "a.txt")

	statement := sampleStatement()
	if err := rights.CreateCSV(bagPath, []rights.Statement{statement}, true); err != nil {
		t.Fatalf("CreateCSV failed: %v", err)
	}

	records := readCSV(t, bagPath)
	if len(records) != 1 {
		t.Fatalf("expected header only, got %d records", len(records))
	}
}

func TestCreateCSVIsDeterministic(t *testing.T) {
	bagPath := t.TempDir()
	writeObjects(t, bagPath, "b.txt", "a.txt", "c.txt")

	statement := sampleStatement(rights.Grant{Act: "use", Restriction: "allow", Note: "n"})
	if err := rights.CreateCSV(bagPath, []rights.Statement{statement}, false); err != nil {
		t.Fatalf("CreateCSV failed: %v", err)
	}
	firstBytes, err := os.ReadFile(rights.CSVPath(bagPath))
	if err != nil {
		t.Fatalf("read rights.csv: %v", err)
	}

	if err := rights.CreateCSV(bagPath, []rights.Statement{statement}, false); err != nil {
		t.Fatalf("second CreateCSV failed: %v", err)
	}
	secondBytes, err := os.ReadFile(rights.CSVPath(bagPath))
	if err != nil {
		t.Fatalf("read rights.csv: %v", err)
	}

	if string(firstBytes) != string(secondBytes) {
		t.Fatal("expected byte-identical output across runs")
	}
}

func TestGrantKeyFallbacks(t *testing.T) {
	grant := rights.Grant{Act: "use", GrantRestriction: "conditional", GrantedNote: "via granted_note"}
	if grant.RestrictionValue() != "conditional" {
		t.Fatalf("unexpected restriction: %q", grant.RestrictionValue())
	}
	if grant.NoteValue() != "via granted_note" {
		t.Fatalf("unexpected note: %q", grant.NoteValue())
	}

	statement := rights.Statement{CopyrightStatus: "public domain", BasisNote: "basis note"}
	if statement.StatusValue() != "public domain" {
		t.Fatalf("unexpected status: %q", statement.StatusValue())
	}
	if statement.NoteValue() != "basis note" {
		t.Fatalf("unexpected note: %q", statement.NoteValue())
	}
}
