package webapp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/kmalloy/workhours/internal/store"
	"github.com/kmalloy/workhours/internal/timesheet"
)

const maxImportSize = 10 << 20

type importedRow struct {
	employeeName string
	date         time.Time
	project      timesheet.Project
}

// importHours bulk-loads work hours from a legacy .xls or .xlsx export.
// Rows for unknown employees or with unparseable dates are skipped, not
// fatal; the response reports both counts.
func (s *server) importHours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	rows, err := readRowsFromSpreadsheet(file, header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	parsed, skipped, err := parseImportRows(rows, s.zone)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	imported := 0
	for _, row := range parsed {
		emp, err := s.store.Employees.GetByName(r.Context(), row.employeeName)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				skipped++
				continue
			}
			writeError(w, http.StatusInternalServerError, "failed to look up employee")
			return
		}
		_, _, err = s.upsertHours(r.Context(), emp.ID, row.date,
			[]timesheet.Project{row.project}, timesheet.SignatureAdminAdded)
		if err != nil {
			s.log.Error(r.Context(), "import row failed", "employee", row.employeeName, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save imported hours")
			return
		}
		imported++
	}

	s.log.Info(r.Context(), "spreadsheet import finished",
		"file", header.Filename, "imported", imported, "skipped", skipped)
	writeJSON(w, http.StatusOK, map[string]int{"imported": imported, "skipped": skipped})
}

func readRowsFromSpreadsheet(reader io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, err
		}
		if workbook.NumSheets() == 0 {
			return nil, fmt.Errorf("no worksheet found")
		}
		rows := workbook.ReadAllCells(100000)
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	default:
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		sheetName := file.GetSheetName(0)
		if sheetName == "" {
			return nil, fmt.Errorf("no worksheet found")
		}
		rows, err := file.GetRows(sheetName)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	}
}

func parseImportRows(rows [][]string, zone *time.Location) ([]importedRow, int, error) {
	headerIndex := map[string]int{}
	for i, header := range rows[0] {
		headerIndex[normalizeHeader(header)] = i
	}

	nameIdx, ok := headerIndex["employee"]
	if !ok {
		nameIdx, ok = headerIndex["employee name"]
	}
	if !ok {
		return nil, 0, fmt.Errorf("missing required column: employee")
	}
	dateIdx, ok := headerIndex["date"]
	if !ok {
		return nil, 0, fmt.Errorf("missing required column: date")
	}
	hoursIdx, ok := headerIndex["hours"]
	if !ok {
		return nil, 0, fmt.Errorf("missing required column: hours")
	}
	projectIdx := optionalColumn(headerIndex, "project")
	locationIdx := optionalColumn(headerIndex, "location")
	descIdx := optionalColumn(headerIndex, "description")

	var out []importedRow
	skipped := 0
	for _, row := range rows[1:] {
		name := cellValue(row, nameIdx)
		if name == "" {
			continue
		}
		date, ok := normalizeImportDate(cellValue(row, dateIdx), zone)
		if !ok {
			skipped++
			continue
		}
		hours, err := strconv.ParseFloat(cellValue(row, hoursIdx), 64)
		if err != nil || hours <= 0 || hours > maxHoursPerDay {
			skipped++
			continue
		}
		project := cellValue(row, projectIdx)
		if project == "" {
			project = "Imported hours"
		}
		out = append(out, importedRow{
			employeeName: name,
			date:         date,
			project: timesheet.Project{
				Name:        project,
				Location:    cellValue(row, locationIdx),
				Hours:       hours,
				Description: cellValue(row, descIdx),
			},
		})
	}
	return out, skipped, nil
}

func normalizeImportDate(value string, zone *time.Location) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}

	// Excel exports often hold raw date serials.
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 25569 {
		if parsed, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, zone), true
		}
	}

	formats := []string{
		"2006-01-02",
		"1/2/2006",
		"01/02/2006",
		"1/2/06",
		"2006/01/02",
		"Jan 2, 2006",
	}
	for _, format := range formats {
		if parsed, err := time.ParseInLocation(format, value, zone); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func optionalColumn(headerIndex map[string]int, name string) int {
	if idx, ok := headerIndex[name]; ok {
		return idx
	}
	return -1
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
