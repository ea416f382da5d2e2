package report

import (
	"strings"
	"time"

	"github.com/kmalloy/workhours/internal/timesheet"
)

// Row is one display-ready report line, used by both the preview payload and
// the workbook renderer. No aggregation happens here; totals are the
// caller's business.
type Row struct {
	Employee    string   `json:"employee"`
	Date        string   `json:"date"`
	Day         string   `json:"day"`
	Projects    []string `json:"projects"`
	Hours       float64  `json:"hours"`
	Description string   `json:"description"`
	Signature   string   `json:"signature"`
}

// BuildRows converts entries into display rows, preserving input order.
// Callers are expected to have ordered the query by employee then date.
func BuildRows(entries []timesheet.TimeEntry, zone *time.Location) []Row {
	rows := make([]Row, 0, len(entries))
	for _, entry := range entries {
		date := entry.Date.In(zone)
		rows = append(rows, Row{
			Employee:    entry.Employee.DisplayName(),
			Date:        date.Format("2006-01-02"),
			Day:         date.Weekday().String(),
			Projects:    ProjectLines(entry.Projects),
			Hours:       entry.HoursWorked,
			Description: orDefault(entry.Description, "N/A"),
			Signature:   timesheet.SignatureStatus(entry.Signature),
		})
	}
	return rows
}

// ProjectLines formats one display line per project, or a single placeholder
// when the day has none.
func ProjectLines(projects []timesheet.Project) []string {
	if len(projects) == 0 {
		return []string{"No projects"}
	}
	lines := make([]string, 0, len(projects))
	for _, p := range projects {
		name := p.Name
		if strings.TrimSpace(name) == "" {
			name = "Unnamed project"
		}
		line := "- " + name + " (" + timesheet.FormatHours(p.Hours) + "h)"
		if strings.TrimSpace(p.Location) != "" {
			line += " @ " + p.Location
		}
		lines = append(lines, line)
	}
	return lines
}

func isWeekend(date time.Time, zone *time.Location) bool {
	switch date.In(zone).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
