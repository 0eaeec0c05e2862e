package workflow

import (
	"bytes"
	"context"
	"io"
	"time"

	"bitbucket.org/mmdatafocus/housing_backend/models"
	"bitbucket.org/mmdatafocus/housing_backend/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	conflictSheet      = "Conflicts"
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	conflictTimeLayout = "2006-01-02 15:04:05"
)

var conflictHeadings = []string{"Event", "Name", "Category", "Geo code", "Local id", "Housing", "Created at"}

// WriteConflictReport writes one XLSX row per conflict event.
func WriteConflictReport(w io.Writer, rows []models.ConflictEventRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", conflictSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(conflictSheet, "A1", &conflictHeadings); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			r.EventId,
			r.Name,
			r.Category,
			r.HousingGeoCode,
			r.LocalId,
			r.HousingId,
			r.CreatedAt.UTC().Format(conflictTimeLayout),
		}
		if err := f.SetSheetRow(conflictSheet, cell, &values); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// ExportConflicts writes the conflict events raised since the given time to a local path or a
// "gs://bucket/object" location, and returns how many were exported.
func ExportConflicts(ctx context.Context, db *gorm.DB, since time.Time, location string) (int, error) {
	rows, err := models.ListConflictEvents(ctx, db, since)
	if err != nil {
		return 0, newJobError(ErrorKindSource, "list conflict events", since.Format(time.DateOnly), err)
	}
	var buf bytes.Buffer
	if err := WriteConflictReport(&buf, rows); err != nil {
		return 0, newJobError(ErrorKindSource, "write conflict report", location, err)
	}
	if err := utils.WriteObject(ctx, location, buf.Bytes(), xlsxContentType); err != nil {
		return 0, newJobError(ErrorKindSource, "store conflict report", location, err)
	}
	return len(rows), nil
}
