package rights

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio/v2"

	"fornax/internal/services"
)

// FieldNames is the fixed Archivematica rights.csv column order.
var FieldNames = []string{
	"file", "basis", "status", "determination_date", "jurisdiction",
	"start_date", "end_date", "terms", "citation", "note", "grant_act",
	"grant_restriction", "grant_start_date", "grant_end_date",
	"grant_note", "doc_id_type", "doc_id_value", "doc_id_role",
}

// CSVPath returns the rights.csv location inside a bag.
func CSVPath(bagPath string) string {
	return filepath.Join(bagPath, "data", "metadata", "rights.csv")
}

// CreateCSV writes an Archivematica-compliant rights.csv into the bag at
// bagPath, one row per (object file, statement, granted right). Statements
// that grant nothing produce one row per file with empty grant columns,
// unless skipEmptyGrants is set for dashboards that reject such rows.
//
// The file is written atomically, so re-running a failed restructure never
// leaves a partial CSV behind.
func CreateCSV(bagPath string, statements []Statement, skipEmptyGrants bool) error {
	files, err := objectFiles(bagPath)
	if err != nil {
		return services.Wrap(services.ErrFormat, "rights", "list object files", "", err)
	}

	rows := [][]string{FieldNames}
	for _, file := range files {
		for _, statement := range statements {
			rows = append(rows, statementRows(file, statement, skipEmptyGrants)...)
		}
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("encode rights csv: %w", err)
	}

	path := CSVPath(bagPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metadata directory: %w", err)
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write rights csv: %w", err)
	}
	return nil
}

// statementRows builds the rows one statement contributes for one file.
func statementRows(file string, statement Statement, skipEmptyGrants bool) [][]string {
	grants := grantColumns(statement.RightsGranted)
	rows := make([][]string, 0, len(grants))
	for _, grant := range grants {
		if skipEmptyGrants && isEmpty(grant) {
			continue
		}
		row := make([]string, 0, len(FieldNames))
		row = append(row,
			file,
			statement.RightsBasis,
			statement.StatusValue(),
			statement.DeterminationDate,
			statement.Jurisdiction,
			statement.StartDate,
			statement.EndDate,
			statement.Terms,
			statement.Citation,
			statement.NoteValue(),
		)
		row = append(row, grant...)
		row = append(row,
			statement.DocIDType,
			statement.DocIDValue,
			statement.DocIDRole,
		)
		rows = append(rows, row)
	}
	return rows
}

// grantColumns returns the five grant columns for each granted right, or a
// single all-empty set when the statement grants nothing.
func grantColumns(grants []Grant) [][]string {
	if len(grants) == 0 {
		return [][]string{{"", "", "", "", ""}}
	}
	columns := make([][]string, 0, len(grants))
	for _, grant := range grants {
		columns = append(columns, []string{
			grant.Act,
			grant.RestrictionValue(),
			grant.StartDate,
			grant.EndDate,
			grant.NoteValue(),
		})
	}
	return columns
}

func isEmpty(columns []string) bool {
	for _, value := range columns {
		if value != "" {
			return false
		}
	}
	return true
}

// objectFiles lists every file under data/objects relative to the bag root,
// in stable sorted order so repeated runs produce byte-identical output.
func objectFiles(bagPath string) ([]string, error) {
	objectsDir := filepath.Join(bagPath, "data", "objects")
	var files []string
	err := filepath.WalkDir(objectsDir, func(path string, d fs.DirEntry, err error) error {
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
