package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testZone(t *testing.T) *time.Location {
	t.Helper()
	zone, err := LoadZone()
	require.NoError(t, err)
	return zone
}

func TestDefaultWeeklyRangeShape(t *testing.T) {
	zone := testZone(t)

	// One instant per weekday, plus a DST-transition week (PDT began
	// 2024-03-10) to catch zone-arithmetic drift.
	instants := []time.Time{
		time.Date(2024, 6, 10, 0, 0, 1, 0, zone),  // Monday just past midnight
		time.Date(2024, 6, 11, 15, 30, 0, 0, zone), // Tuesday
		time.Date(2024, 6, 14, 9, 0, 0, 0, zone),   // Friday
		time.Date(2024, 6, 16, 23, 59, 0, 0, zone), // Sunday late
		time.Date(2024, 3, 13, 12, 0, 0, 0, zone),  // week after DST change
	}

	for _, now := range instants {
		r := DefaultWeeklyRange(now, zone)

		assert.Equal(t, time.Monday, r.Start.Weekday(), "now=%s", now)
		assert.Equal(t, 0, r.Start.Hour())
		assert.Equal(t, 0, r.Start.Minute())

		assert.Equal(t, time.Sunday, r.End.Weekday())
		assert.Equal(t, 23, r.End.Hour())
		assert.Equal(t, 59, r.End.Minute())
		assert.Equal(t, 59, r.End.Second())
		assert.Equal(t, int(999*time.Millisecond), r.End.Nanosecond())

		assert.Equal(t, time.Monday, r.Cutoff.Weekday())
		assert.Equal(t, 9, r.Cutoff.Hour())
		assert.Equal(t, 0, r.Cutoff.Minute())
		assert.True(t, r.Cutoff.After(r.End), "cutoff follows the period")
		assert.True(t, r.End.After(r.Start))
	}
}

func TestDefaultWeeklyRangeConcrete(t *testing.T) {
	zone := testZone(t)
	now := time.Date(2024, 6, 12, 10, 0, 0, 0, zone) // Wednesday June 12

	r := DefaultWeeklyRange(now, zone)

	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, zone), r.Start)
	assert.Equal(t, "2024-06-09", r.End.Format("2006-01-02"))
	assert.Equal(t, time.Date(2024, 6, 10, 9, 0, 0, 0, zone), r.Cutoff)
}

func TestCustomRangeCutoffEqualsEnd(t *testing.T) {
	zone := testZone(t)

	r, err := CustomRange("2024-06-01", "2024-06-15", zone)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, zone), r.Start)
	assert.Equal(t, 23, r.End.Hour())
	assert.Equal(t, int(999*time.Millisecond), r.End.Nanosecond())
	assert.True(t, r.Cutoff.Equal(r.End))
}

func TestCustomRangeRejectsBadDates(t *testing.T) {
	zone := testZone(t)

	for _, tc := range [][2]string{
		{"junk", "2024-06-15"},
		{"2024-06-01", "junk"},
		{"06/01/2024", "2024-06-15"},
	} {
		_, err := CustomRange(tc[0], tc[1], zone)
		assert.ErrorIs(t, err, ErrInvalidRange)
	}
}
