// internal/app/system/csvutil/students.go
package csvutil

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/mindmatrix/cohorthub/internal/app/system/normalize"
)

// StudentRow is the normalized row produced by ParseStudentsCSV.
// Column order: Name, Email, University, Course, Batch.
type StudentRow struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Organization string `json:"organization"`
	Program      string `json:"program"`
	Cohort       string `json:"cohort"`
}

// RowError describes one rejected row.
type RowError struct {
	Line   int    `json:"line"`
	Email  string `json:"email,omitempty"`
	Reason string `json:"reason"`
}

// Result holds the outcome of a pre-scan: either every row parsed clean,
// or Errors lists what must be fixed. Nothing is written to a DB here.
type Result struct {
	Rows   []StudentRow `json:"rows,omitempty"`
	Errors []RowError   `json:"errors,omitempty"`
}

// HasErrors reports whether any row was rejected.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// ErrTooManyRows is returned when the file exceeds MaxRows.
var ErrTooManyRows = fmt.Errorf("csv exceeds the %d row limit", MaxRows)

// ParseStudentsCSV reads all rows from r, skips a header if present,
// validates each row, and returns normalized rows plus per-row errors.
// Rows are validated in full before anything is inserted, so a single bad
// line rejects the upload without partial writes.
func ParseStudentsCSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	result := &Result{}
	seen := make(map[string]int) // email → first line

	line := 0
	dataRows := 0
	headerChecked := false
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Errors = append(result.Errors, RowError{
				Line: line, Reason: "malformed csv: " + err.Error(),
			})
			continue
		}
		if len(rec) > 0 {
			// Strip a UTF-8 BOM from the first cell.
			rec[0] = strings.TrimPrefix(rec[0], "\uFEFF")
		}
		if !headerChecked {
			headerChecked = true
			if isHeader(rec) {
				continue
			}
		}
		dataRows++
		if dataRows > MaxRows {
			return nil, ErrTooManyRows
		}

		row := normalizeRow(rec)
		if row == (StudentRow{}) {
			continue // blank line
		}

		reason := validate(row)
		if reason == "" {
			if first, dup := seen[row.Email]; dup {
				reason = fmt.Sprintf("duplicate email (first seen on line %d)", first)
			}
		}
		if reason != "" {
			result.Errors = append(result.Errors, RowError{
				Line: line, Email: row.Email, Reason: reason,
			})
			continue
		}

		seen[row.Email] = line
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

func isHeader(rec []string) bool {
	if len(rec) < 2 {
		return false
	}
	first := strings.TrimSpace(rec[0])
	second := strings.TrimSpace(rec[1])
	return (strings.EqualFold(first, "name") || strings.EqualFold(first, "full name")) &&
		strings.EqualFold(second, "email")
}

func normalizeRow(rec []string) StudentRow {
	get := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	return StudentRow{
		FullName:     normalize.Name(get(0)),
		Email:        normalize.Email(get(1)),
		Organization: normalize.OrgCode(get(2)),
		Program:      normalize.Program(get(3)),
		Cohort:       normalize.Cohort(get(4)),
	}
}

func validate(row StudentRow) string {
	switch {
	case row.FullName == "":
		return "missing name"
	case row.Email == "":
		return "missing email"
	case !strings.Contains(row.Email, "@") || strings.HasPrefix(row.Email, "@") || strings.HasSuffix(row.Email, "@"):
		return "invalid email"
	case row.Organization == "":
		return "missing university"
	case row.Program == "":
		return "missing course"
	case row.Cohort == "":
		return "missing batch"
	}
	return ""
}
