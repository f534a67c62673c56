// internal/app/features/admin/import.go
package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/mindmatrix/cohorthub/internal/app/features/shared"
	"github.com/mindmatrix/cohorthub/internal/app/system/csvutil"
	"github.com/mindmatrix/cohorthub/internal/app/system/timeouts"
	"github.com/mindmatrix/cohorthub/internal/domain/models"
	"go.uber.org/zap"
)

type importResponse struct {
	Added     int                `json:"added"`
	Skipped   int                `json:"skipped"`
	Conflicts []importConflict   `json:"conflicts,omitempty"`
	Errors    []csvutil.RowError `json:"errors,omitempty"`
}

type importConflict struct {
	Email    string `json:"email"`
	Existing string `json:"existing"`
	Incoming string `json:"incoming"`
}

// HandleImportStudents handles POST /admin/students/import with a
// multipart "csv" file. The whole file is validated before anything is
// written: a file with bad rows is rejected outright so a half-imported
// roster never needs untangling.
func (h *Handler) HandleImportStudents(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, csvutil.MaxUploadSize)
	if err := r.ParseMultipartForm(csvutil.MaxUploadSize); err != nil {
		shared.Error(w, http.StatusRequestEntityTooLarge, "file_too_large",
			"The CSV file is too large or the upload is malformed.")
		return
	}

	file, _, err := r.FormFile("csv")
	if err != nil {
		shared.Error(w, http.StatusBadRequest, "bad_request", `Missing "csv" file field.`)
		return
	}
	defer file.Close()

	parsed, err := csvutil.ParseStudentsCSV(file)
	if err != nil {
		if errors.Is(err, csvutil.ErrTooManyRows) {
			shared.Error(w, http.StatusRequestEntityTooLarge, "too_many_rows",
				"The CSV has more rows than a single import allows.")
			return
		}
		shared.Error(w, http.StatusBadRequest, "bad_csv", "Could not parse the CSV file.")
		return
	}
	if parsed.HasErrors() {
		shared.JSON(w, http.StatusUnprocessableEntity, importResponse{Errors: parsed.Errors})
		return
	}
	if len(parsed.Rows) == 0 {
		shared.Error(w, http.StatusBadRequest, "empty_csv", "The CSV contains no student rows.")
		return
	}

	for _, row := range parsed.Rows {
		if !h.Orgs.Supported(row.Organization) {
			shared.Error(w, http.StatusUnprocessableEntity, "unsupported_organization",
				"Organization "+row.Organization+" (row for "+row.Email+") is not in the supported set.")
			return
		}
	}

	students := make([]models.Student, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		students = append(students, models.Student{
			Email:        row.Email,
			FullName:     row.FullName,
			Organization: row.Organization,
			Program:      row.Program,
			Cohort:       row.Cohort,
		})
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	result, err := h.Students.BulkImport(ctx, students)
	if err != nil {
		h.Log.Error("student import failed", zap.Error(err))
		shared.VerifierError(w, h.Log, err)
		return
	}

	resp := importResponse{Added: result.Added, Skipped: result.Skipped}
	for _, c := range result.Conflicts {
		resp.Conflicts = append(resp.Conflicts, importConflict{
			Email:    c.Email,
			Existing: c.Existing.Organization + "/" + c.Existing.Program + "/" + c.Existing.Cohort,
			Incoming: c.Incoming.Organization + "/" + c.Incoming.Program + "/" + c.Incoming.Cohort,
		})
	}

	h.Audit.StudentsImported(ctx, actor(r), result.Added, result.Skipped, len(result.Conflicts))
	shared.JSON(w, http.StatusOK, resp)
}
