// Package export serializes pipeline rows to xlsx workbooks and reads
// input workbooks (feedback rows, course-id filter lists) back in.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Pavel4en/lms-api-app/internal/pipeline"
)

const sheetName = "Data"

// Header orders are fixed; readers of the produced files depend on them.
var sessionHeader = []string{
	"course_id",
	"course_name",
	"session_id",
	"session_name",
	"user_id",
	"fullname",
	"listeners_count",
	"owner_name",
	"authors_names",
	"created_at",
	"Категория",
}

var materialHeader = []string{
	"course_id",
	"course_name",
	"course_created_at",
	"section_name",
	"material_name",
	"file_name",
	"category",
	"material_created_at",
	"scorm",
}

var feedbackHeader = []string{
	"course_id",
	"course_name",
	"section_id",
	"material_added",
	"link",
}

// WriteSessionRows writes the session export to a single-sheet workbook.
func WriteSessionRows(path string, rows []pipeline.SessionRow) error {
	cells := make([][]any, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []any{
			r.CourseID,
			r.CourseName,
			r.SessionID,
			r.SessionName,
			r.UserID,
			r.Fullname,
			r.ListenersCount,
			r.OwnerName,
			r.AuthorsNames,
			r.CreatedAt,
			r.Category,
		})
	}
	return writeSheet(path, sessionHeader, cells)
}

// WriteMaterialRows writes the materials export.
func WriteMaterialRows(path string, rows []pipeline.MaterialRow) error {
	cells := make([][]any, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []any{
			r.CourseID,
			r.CourseName,
			r.CourseCreatedAt,
			r.SectionName,
			r.MaterialName,
			r.FileName,
			r.Category,
			r.MaterialCreatedAt,
			r.Scorm,
		})
	}
	return writeSheet(path, materialHeader, cells)
}

// WriteFeedbackResults writes the feedback publishing outcomes.
func WriteFeedbackResults(path string, rows []pipeline.FeedbackResult) error {
	cells := make([][]any, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []any{
			r.CourseID,
			r.CourseName,
			r.SectionID,
			r.MaterialAdded,
			r.Link,
		})
	}
	return writeSheet(path, feedbackHeader, cells)
}

func writeSheet(path string, headers []string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := setRow(f, 1, header); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("export: save %s: %w", path, err)
	}
	return nil
}

func setRow(f *excelize.File, rowNum int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
		return fmt.Errorf("export: write row %d: %w", rowNum, err)
	}
	return nil
}

// ReadRows loads the first sheet of a workbook as header-keyed string
// maps, one per data row.
func ReadRows(path string) ([]map[string]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("export: open %s: %w", path, err)
	}
	defer f.Close()

	raw, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("export: read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	header := raw[0]
	rows := make([]map[string]string, 0, len(raw)-1)
	for _, cells := range raw[1:] {
		row := make(map[string]string, len(header))
		for j, name := range header {
			if j < len(cells) {
				row[name] = cells[j]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadCourseIDs extracts the trimmed, non-empty course_id column from
// a workbook — the course-id allowlist upload format.
func ReadCourseIDs(path string) ([]string, error) {
	rows, err := ReadRows(path)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, row := range rows {
		if id := strings.TrimSpace(row["course_id"]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// DatedFilename produces the conventional "<prefix>_YYYY-MM-DD.xlsx"
// output name.
func DatedFilename(prefix string) string {
	return prefix + "_" + time.Now().Format("2006-01-02") + ".xlsx"
}
