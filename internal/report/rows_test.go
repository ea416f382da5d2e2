package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmalloy/workhours/internal/timesheet"
)

func TestBuildRowsScenario(t *testing.T) {
	zone := testZone(t)
	entry := timesheet.TimeEntry{
		EmployeeID: "emp-1",
		Date:       time.Date(2024, 6, 3, 12, 0, 0, 0, zone), // Monday
		Projects: []timesheet.Project{
			{Name: "Site A", Hours: 4},
			{Name: "Site B", Hours: 3.5},
		},
		HoursWorked: 7.5,
		Signature:   "data:image/png;base64,AAAA",
		Employee:    timesheet.Employee{ID: "emp-1", Name: "jane", FullName: "Jane Doe"},
	}

	rows := BuildRows([]timesheet.TimeEntry{entry}, zone)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "Jane Doe", row.Employee)
	assert.Equal(t, "2024-06-03", row.Date)
	assert.Equal(t, "Monday", row.Day)
	assert.Equal(t, []string{"- Site A (4h)", "- Site B (3.5h)"}, row.Projects)
	assert.InDelta(t, 7.5, row.Hours, 0.001)
	assert.Equal(t, "N/A", row.Description)
	assert.Equal(t, "Signed", row.Signature)
}

func TestBuildRowsSignatureLabels(t *testing.T) {
	zone := testZone(t)
	entries := []timesheet.TimeEntry{
		{Date: time.Now(), Signature: timesheet.SignatureAdminAdded},
		{Date: time.Now(), Signature: ""},
		{Date: time.Now(), Signature: "scribble"},
	}

	rows := BuildRows(entries, zone)
	assert.Equal(t, "Admin Added", rows[0].Signature)
	assert.Equal(t, "Admin Added", rows[1].Signature)
	assert.Equal(t, "Signed", rows[2].Signature)
}

func TestBuildRowsNameFallback(t *testing.T) {
	zone := testZone(t)
	rows := BuildRows([]timesheet.TimeEntry{
		{Date: time.Now(), Employee: timesheet.Employee{Name: "aj"}},
		{Date: time.Now()},
	}, zone)

	assert.Equal(t, "aj", rows[0].Employee)
	assert.Equal(t, "Unknown", rows[1].Employee)
}

func TestProjectLines(t *testing.T) {
	assert.Equal(t, []string{"No projects"}, ProjectLines(nil))

	lines := ProjectLines([]timesheet.Project{
		{Name: "Site A", Hours: 4, Location: "Downtown"},
		{Name: "", Hours: 2},
	})
	assert.Equal(t, "- Site A (4h) @ Downtown", lines[0])
	assert.Equal(t, "- Unnamed project (2h)", lines[1])
}

func TestIsWeekend(t *testing.T) {
	zone := testZone(t)
	assert.True(t, isWeekend(time.Date(2024, 6, 8, 12, 0, 0, 0, zone), zone))  // Saturday
	assert.True(t, isWeekend(time.Date(2024, 6, 9, 12, 0, 0, 0, zone), zone))  // Sunday
	assert.False(t, isWeekend(time.Date(2024, 6, 3, 12, 0, 0, 0, zone), zone)) // Monday
}
