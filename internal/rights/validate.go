package rights

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"fornax/internal/services"
)

var (
	basisValues = map[string]struct{}{
		"copyright": {}, "statute": {}, "license": {}, "other": {},
	}
	statusValues = map[string]struct{}{
		"copyrighted": {}, "public domain": {}, "unknown": {}, "": {},
	}
	actValues = map[string]struct{}{
		"publish": {}, "disseminate": {}, "replicate": {}, "migrate": {},
		"modify": {}, "use": {}, "delete": {},
	}
	restrictionValues = map[string]struct{}{
		"allow": {}, "disallow": {}, "conditional": {},
	}
)

var dateColumns = []string{
	"determination_date", "start_date", "end_date",
	"grant_start_date", "grant_end_date",
}

// ValidateCSV checks the rights.csv inside a bag against the Archivematica
// schema. All problems are collected; the returned error enumerates every
// violated row and rule rather than stopping at the first.
func ValidateCSV(bagPath string) error {
	file, err := os.Open(CSVPath(bagPath))
	if err != nil {
		return services.Wrap(services.ErrValidation, "rights", "open rights.csv", "", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return services.Wrap(services.ErrValidation, "rights", "parse rights.csv", "", err)
	}

	problems := validateRecords(records)
	if len(problems) > 0 {
		return services.Wrap(
			services.ErrValidation, "rights", "validate rights.csv",
			fmt.Sprintf("%d problems: %s", len(problems), strings.Join(problems, "; ")), nil)
	}
	return nil
}

func validateRecords(records [][]string) []string {
	var problems []string
	if len(records) == 0 {
		return []string{"empty file"}
	}

	if !headerMatches(records[0]) {
		problems = append(problems, "row 1: bad header")
	}

	for i, record := range records[1:] {
		rowNum := i + 2
		if len(record) != len(FieldNames) {
			problems = append(problems, fmt.Sprintf("row %d: unexpected record length %d", rowNum, len(record)))
			continue
		}
		row := make(map[string]string, len(FieldNames))
		for j, name := range FieldNames {
			row[name] = record[j]
		}
		problems = append(problems, validateRow(rowNum, row)...)
	}
	return problems
}

func headerMatches(header []string) bool {
	if len(header) != len(FieldNames) {
		return false
	}
	for i, name := range FieldNames {
		if header[i] != name {
			return false
		}
	}
	return true
}

func validateRow(rowNum int, row map[string]string) []string {
	var problems []string

	basis := strings.ToLower(strings.TrimSpace(row["basis"]))
	if _, ok := basisValues[basis]; !ok {
		problems = append(problems, fmt.Sprintf("row %d: invalid basis %q", rowNum, row["basis"]))
	}
	if basis == "copyright" {
		if _, ok := statusValues[strings.ToLower(strings.TrimSpace(row["status"]))]; !ok {
			problems = append(problems, fmt.Sprintf("row %d: invalid status %q", rowNum, row["status"]))
		}
	}
	if act := strings.TrimSpace(row["grant_act"]); act != "" {
		if _, ok := actValues[strings.ToLower(act)]; !ok {
			problems = append(problems, fmt.Sprintf("row %d: invalid act %q", rowNum, act))
		}
	}
	if restriction := strings.TrimSpace(row["grant_restriction"]); restriction != "" {
		if _, ok := restrictionValues[strings.ToLower(restriction)]; !ok {
			problems = append(problems, fmt.Sprintf("row %d: invalid restriction %q", rowNum, restriction))
		}
	}
	for _, name := range dateColumns {
		if value := row[name]; !validDate(value) {
			problems = append(problems, fmt.Sprintf("row %d: invalid date format %q in %s", rowNum, value, name))
		}
	}
	if strings.TrimSpace(row["file"]) == "" {
		problems = append(problems, fmt.Sprintf("row %d: file must not be empty", rowNum))
	}
	if strings.TrimSpace(row["note"]) == "" {
		problems = append(problems, fmt.Sprintf("row %d: note must not be empty", rowNum))
	}
	return problems
}

// validDate accepts YYYY-MM-DD, the literal OPEN, or blank. Blank is allowed
// because statements without grants legitimately leave grant dates empty.
func validDate(value string) bool {
	if value == "" || value == "OPEN" {
		return true
	}
	_, err := time.Parse("2006-01-02", value)
	return err == nil
}
