package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kmalloy/workhours/internal/logging"
	"github.com/kmalloy/workhours/internal/timesheet"
)

// SummarySheetName is the first sheet of every report workbook.
const SummarySheetName = "All Employees Summary"

const (
	colorHeader   = "1E3A8A"
	colorBanner   = "E7E6E6"
	colorWeekend  = "FFF4CC"
	colorEvenRow  = "F9F9F9"
	colorSubtotal = "FFD966"
)

const (
	minEntryRowHeight    = 30.0
	projectLineHeight    = 15.0
	signatureRowHeight   = 50.0
	maxSheetNameLength   = 31
	summarySignatureCol  = "G"
	employeeSignatureCol = "F"
)

var illegalSheetNameChars = []string{"/", "\\", "?", "*", "[", "]"}

// Renderer builds the multi-sheet .xlsx payroll workbook: one summary sheet
// across all employees plus one sheet per employee.
type Renderer struct {
	log  logging.Logger
	zone *time.Location
}

func NewRenderer(log logging.Logger, zone *time.Location) *Renderer {
	return &Renderer{log: log, zone: zone}
}

type workbookStyles struct {
	header        int
	banner        int
	title         int
	entry         int
	entryEven     int
	entryWeekend  int
	subtotal      int
	subtotalHours int
	sheetTotal    int
	grand         int
	grandHours    int
}

// Render produces the complete workbook as an in-memory buffer. Entries must
// arrive ordered by employee then date; grouping preserves first-seen order
// so the same input always yields the same sheets.
func (r *Renderer) Render(ctx context.Context, entries []timesheet.TimeEntry) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SummarySheetName); err != nil {
		return nil, fmt.Errorf("name summary sheet: %w", err)
	}

	styles, err := buildStyles(f)
	if err != nil {
		return nil, fmt.Errorf("build styles: %w", err)
	}

	if err := r.renderSummaryHeader(f, styles); err != nil {
		return nil, err
	}

	names, groups := groupByEmployee(entries)
	usedSheets := map[string]bool{SummarySheetName: true}

	current := 2
	for _, name := range names {
		group := groups[name]

		// Banner row with the uppercased employee name spanning all columns.
		bannerCell := fmt.Sprintf("A%d", current)
		if err := f.SetCellValue(SummarySheetName, bannerCell, "> "+strings.ToUpper(name)); err != nil {
			return nil, fmt.Errorf("banner row: %w", err)
		}
		if err := f.MergeCell(SummarySheetName, bannerCell, fmt.Sprintf("G%d", current)); err != nil {
			return nil, fmt.Errorf("merge banner row: %w", err)
		}
		if err := f.SetCellStyle(SummarySheetName, bannerCell, fmt.Sprintf("G%d", current), styles.banner); err != nil {
			return nil, err
		}
		if err := f.SetRowHeight(SummarySheetName, current, 20); err != nil {
			return nil, err
		}
		current++

		var subtotal float64
		for _, entry := range group {
			if err := r.writeEntryRow(ctx, f, SummarySheetName, current, name, entry, styles, true); err != nil {
				return nil, err
			}
			subtotal += entry.HoursWorked
			current++
		}

		if err := f.SetCellValue(SummarySheetName, fmt.Sprintf("A%d", current), "  "+name+" - SUBTOTAL:"); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(SummarySheetName, fmt.Sprintf("E%d", current), subtotal); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(SummarySheetName, fmt.Sprintf("A%d", current), fmt.Sprintf("G%d", current), styles.subtotal); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(SummarySheetName, fmt.Sprintf("E%d", current), fmt.Sprintf("E%d", current), styles.subtotalHours); err != nil {
			return nil, err
		}
		current += 2 // subtotal row plus a spacer

		if err := r.renderEmployeeSheet(ctx, f, uniqueSheetName(usedSheets, name), name, group, subtotal, styles); err != nil {
			return nil, err
		}
	}

	var grandTotal float64
	for _, entry := range entries {
		grandTotal += entry.HoursWorked
	}
	if err := f.SetCellValue(SummarySheetName, fmt.Sprintf("A%d", current), "GRAND TOTAL ALL EMPLOYEES:"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(SummarySheetName, fmt.Sprintf("E%d", current), grandTotal); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(SummarySheetName, fmt.Sprintf("A%d", current), fmt.Sprintf("G%d", current), styles.grand); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(SummarySheetName, fmt.Sprintf("E%d", current), fmt.Sprintf("E%d", current), styles.grandHours); err != nil {
		return nil, err
	}
	if err := f.SetRowHeight(SummarySheetName, current, 30); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

func (r *Renderer) renderSummaryHeader(f *excelize.File, styles workbookStyles) error {
	widths := []struct {
		col   string
		width float64
	}{
		{"A", 25}, {"B", 15}, {"C", 12}, {"D", 40}, {"E", 10}, {"F", 35}, {"G", 20},
	}
	for _, w := range widths {
		if err := f.SetColWidth(SummarySheetName, w.col, w.col, w.width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	header := []any{"Employee", "Date", "Day", "Projects", "Hours", "Description", "Signature"}
	if err := f.SetSheetRow(SummarySheetName, "A1", &header); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	if err := f.SetCellStyle(SummarySheetName, "A1", "G1", styles.header); err != nil {
		return err
	}
	return f.SetRowHeight(SummarySheetName, 1, 25)
}

// writeEntryRow emits one entry. On the summary sheet the first column is the
// indented employee name; per-employee sheets drop it.
func (r *Renderer) writeEntryRow(ctx context.Context, f *excelize.File, sheet string, row int, name string, entry timesheet.TimeEntry, styles workbookStyles, withEmployee bool) error {
	date := entry.Date.In(r.zone)
	lines := ProjectLines(entry.Projects)

	values := []any{
		date.Format("2006-01-02"),
		date.Weekday().String(),
		strings.Join(lines, "\n"),
		entry.HoursWorked,
		orDefault(entry.Description, "N/A"),
		timesheet.SignatureStatus(entry.Signature),
	}
	lastCol := employeeSignatureCol
	if withEmployee {
		values = append([]any{"  " + name}, values...)
		lastCol = summarySignatureCol
	}

	anchor := fmt.Sprintf("A%d", row)
	if err := f.SetSheetRow(sheet, anchor, &values); err != nil {
		return fmt.Errorf("write entry row: %w", err)
	}

	// Weekend highlight wins over the alternating-row background.
	style := styles.entry
	switch {
	case isWeekend(date, r.zone):
		style = styles.entryWeekend
	case row%2 == 0:
		style = styles.entryEven
	}
	if err := f.SetCellStyle(sheet, anchor, fmt.Sprintf("%s%d", lastCol, row), style); err != nil {
		return err
	}

	height := minEntryRowHeight
	if h := float64(len(entry.Projects)) * projectLineHeight; h > height {
		height = h
	}

	if timesheet.HasSignatureImage(entry.Signature) {
		thumb, err := decodeSignatureImage(entry.Signature)
		if err != nil {
			// A bad signature never takes down the rest of the report.
			r.log.Warn(ctx, "skipping signature image", "employee", name, "date", date.Format("2006-01-02"), "error", err)
		} else {
			cell := fmt.Sprintf("%s%d", lastCol, row)
			err := f.AddPictureFromBytes(sheet, cell, &excelize.Picture{
				Extension: ".png",
				File:      thumb,
				Format:    &excelize.GraphicOptions{OffsetX: 2, OffsetY: 2},
			})
			if err != nil {
				r.log.Warn(ctx, "embedding signature image failed", "employee", name, "error", err)
			} else if height < signatureRowHeight {
				height = signatureRowHeight
			}
		}
	}

	return f.SetRowHeight(sheet, row, height)
}

func (r *Renderer) renderEmployeeSheet(ctx context.Context, f *excelize.File, sheet, name string, group []timesheet.TimeEntry, total float64, styles workbookStyles) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %q: %w", sheet, err)
	}

	widths := []struct {
		col   string
		width float64
	}{
		{"A", 15}, {"B", 12}, {"C", 40}, {"D", 10}, {"E", 35}, {"F", 20},
	}
	for _, w := range widths {
		if err := f.SetColWidth(sheet, w.col, w.col, w.width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if err := f.SetCellValue(sheet, "A1", name); err != nil {
		return err
	}
	if err := f.MergeCell(sheet, "A1", "F1"); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "F1", styles.title); err != nil {
		return err
	}
	if err := f.SetRowHeight(sheet, 1, 30); err != nil {
		return err
	}

	header := []any{"Date", "Day", "Projects", "Hours", "Description", "Signature"}
	if err := f.SetSheetRow(sheet, "A2", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A2", "F2", styles.header); err != nil {
		return err
	}
	if err := f.SetRowHeight(sheet, 2, 25); err != nil {
		return err
	}

	row := 3
	for _, entry := range group {
		if err := r.writeEntryRow(ctx, f, sheet, row, name, entry, styles, false); err != nil {
			return err
		}
		row++
	}

	// One blank row, then the sheet total.
	totalRow := row + 1
	if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", totalRow), "TOTAL HOURS:"); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, fmt.Sprintf("D%d", totalRow), total); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", totalRow), fmt.Sprintf("F%d", totalRow), styles.subtotal); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, fmt.Sprintf("D%d", totalRow), fmt.Sprintf("D%d", totalRow), styles.sheetTotal); err != nil {
		return err
	}
	return f.SetRowHeight(sheet, totalRow, 25)
}

// groupByEmployee buckets entries by display name, preserving first-seen
// group order.
func groupByEmployee(entries []timesheet.TimeEntry) ([]string, map[string][]timesheet.TimeEntry) {
	names := make([]string, 0)
	groups := make(map[string][]timesheet.TimeEntry)
	for _, entry := range entries {
		name := entry.Employee.DisplayName()
		if _, seen := groups[name]; !seen {
			names = append(names, name)
		}
		groups[name] = append(groups[name], entry)
	}
	return names, groups
}

// uniqueSheetName sanitizes a display name for use as a sheet name and
// disambiguates collisions with a numeric suffix, staying within the
// sheet name limit. Two employees may sanitize to the same token.
func uniqueSheetName(used map[string]bool, name string) string {
	sheet := SanitizeSheetName(name)
	if !used[sheet] {
		used[sheet] = true
		return sheet
	}
	base := []rune(sheet)
	for n := 2; ; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		trimmed := base
		if len(base)+len(suffix) > maxSheetNameLength {
			trimmed = base[:maxSheetNameLength-len(suffix)]
		}
		candidate := string(trimmed) + suffix
		if !used[candidate] {
			used[candidate] = true
			return candidate
		}
	}
}

// SanitizeSheetName strips characters xlsx forbids in sheet names and
// enforces the 31-character limit.
func SanitizeSheetName(name string) string {
	for _, c := range illegalSheetNameChars {
		name = strings.ReplaceAll(name, c, "-")
	}
	if name == "" {
		name = "Unknown"
	}
	if r := []rune(name); len(r) > maxSheetNameLength {
		name = string(r[:maxSheetNameLength])
	}
	return name
}

func buildStyles(f *excelize.File) (workbookStyles, error) {
	var s workbookStyles
	var err error

	solid := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
	}

	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      solid(colorHeader),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	}); err != nil {
		return s, err
	}
	if s.banner, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: solid(colorBanner),
	}); err != nil {
		return s, err
	}
	if s.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	}); err != nil {
		return s, err
	}

	entryAlignment := &excelize.Alignment{WrapText: true, Vertical: "top"}
	if s.entry, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 10},
		Alignment: entryAlignment,
	}); err != nil {
		return s, err
	}
	if s.entryEven, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 10},
		Fill:      solid(colorEvenRow),
		Alignment: entryAlignment,
	}); err != nil {
		return s, err
	}
	if s.entryWeekend, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 10},
		Fill:      solid(colorWeekend),
		Alignment: entryAlignment,
	}); err != nil {
		return s, err
	}

	if s.subtotal, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 10},
		Fill: solid(colorSubtotal),
	}); err != nil {
		return s, err
	}
	if s.subtotalHours, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: colorHeader},
		Fill: solid(colorSubtotal),
	}); err != nil {
		return s, err
	}

	if s.sheetTotal, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14, Color: colorHeader},
		Fill: solid(colorSubtotal),
	}); err != nil {
		return s, err
	}

	if s.grand, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill: solid(colorHeader),
	}); err != nil {
		return s, err
	}
	if s.grandHours, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill: solid(colorHeader),
	}); err != nil {
		return s, err
	}

	return s, nil
}
