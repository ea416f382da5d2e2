package report

import (
	"errors"
	"fmt"
	"time"
)

// TimezoneName is the fixed reporting timezone. Every range boundary, cutoff,
// and weekday label is anchored here; nothing in the reporting path depends
// on the process-local zone.
const TimezoneName = "America/Los_Angeles"

// ErrInvalidRange is returned when a custom range cannot be used. Callers are
// expected to reject these requests before any query runs.
var ErrInvalidRange = errors.New("invalid report range")

// Range is a resolved reporting window. Cutoff bounds entry creation time:
// entries created after it stay out of the report even when their date falls
// inside [Start, End].
type Range struct {
	Start  time.Time
	End    time.Time
	Cutoff time.Time
}

// LoadZone resolves the reporting timezone.
func LoadZone() (*time.Location, error) {
	zone, err := time.LoadLocation(TimezoneName)
	if err != nil {
		return nil, fmt.Errorf("load reporting timezone: %w", err)
	}
	return zone, nil
}

// DefaultWeeklyRange computes the previous Monday-Sunday week relative to
// now: Start is the prior Monday at 00:00:00, End the prior Sunday at
// 23:59:59.999. Cutoff is 09:00 on the Monday following End, so late edits
// to last week's entries stop leaking into an already-sent report.
func DefaultWeeklyRange(now time.Time, zone *time.Location) Range {
	now = now.In(zone)

	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	thisMonday := time.Date(now.Year(), now.Month(), now.Day()-daysSinceMonday, 0, 0, 0, 0, zone)

	start := thisMonday.AddDate(0, 0, -7)
	end := thisMonday.Add(-time.Millisecond)
	cutoff := time.Date(thisMonday.Year(), thisMonday.Month(), thisMonday.Day(), 9, 0, 0, 0, zone)

	return Range{Start: start, End: end, Cutoff: cutoff}
}

// CustomRange resolves an operator-supplied window from "YYYY-MM-DD" date
// strings: startDate at 00:00:00 through endDate at 23:59:59.999. The cutoff
// equals End, so a manually requested report reflects live state.
//
// CustomRange validates date syntax only; callers must verify End >= Start
// before querying.
func CustomRange(startDate, endDate string, zone *time.Location) (Range, error) {
	start, err := time.ParseInLocation("2006-01-02", startDate, zone)
	if err != nil {
		return Range{}, fmt.Errorf("%w: bad start date %q", ErrInvalidRange, startDate)
	}
	endDay, err := time.ParseInLocation("2006-01-02", endDate, zone)
	if err != nil {
		return Range{}, fmt.Errorf("%w: bad end date %q", ErrInvalidRange, endDate)
	}

	end := time.Date(endDay.Year(), endDay.Month(), endDay.Day(), 23, 59, 59, int(999*time.Millisecond), zone)
	return Range{Start: start, End: end, Cutoff: end}, nil
}
