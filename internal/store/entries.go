package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kmalloy/workhours/internal/timesheet"
)

type EntriesRepo struct {
	db   *sql.DB
	zone *time.Location
}

// NormalizeDate anchors a calendar day at noon in the reporting zone so the
// stored timestamp never drifts across a day boundary under DST shifts.
func (r *EntriesRepo) NormalizeDate(t time.Time) time.Time {
	in := t.In(r.zone)
	return time.Date(in.Year(), in.Month(), in.Day(), 12, 0, 0, 0, r.zone)
}

const entryColumns = `w.id, w.employee_id, w.date, w.projects, w.hours_worked,
	w.description, w.signature, w.created_at, e.name, e.full_name, e.email`

// ListForReport returns entries whose day falls inside [start, end] and that
// were logged no later than cutoff, ordered by employee then date.
func (r *EntriesRepo) ListForReport(ctx context.Context, start, end, cutoff time.Time) ([]timesheet.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+`
		 FROM work_hours w
		 JOIN employees e ON e.id = w.employee_id
		 WHERE w.date >= $1 AND w.date <= $2 AND w.created_at <= $3
		 ORDER BY w.employee_id, w.date`,
		start, end, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list entries for report: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *EntriesRepo) ListByEmployee(ctx context.Context, employeeID string, limit int) ([]timesheet.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+`
		 FROM work_hours w
		 JOIN employees e ON e.id = w.employee_id
		 WHERE w.employee_id = $1
		 ORDER BY w.date DESC
		 LIMIT $2`,
		employeeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries for employee %q: %w", employeeID, err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *EntriesRepo) Get(ctx context.Context, id int64) (*timesheet.TimeEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+`
		 FROM work_hours w
		 JOIN employees e ON e.id = w.employee_id
		 WHERE w.id = $1`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %d: %w", id, err)
	}
	return entry, nil
}

// FindByEmployeeAndDate locates the single entry for an employee's day, if
// any. Dates are normalized before comparison so any time-of-day matches.
func (r *EntriesRepo) FindByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*timesheet.TimeEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+`
		 FROM work_hours w
		 JOIN employees e ON e.id = w.employee_id
		 WHERE w.employee_id = $1 AND w.date = $2`,
		employeeID, r.NormalizeDate(date))
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find entry for %q on %s: %w", employeeID, date.Format("2006-01-02"), err)
	}
	return entry, nil
}

func (r *EntriesRepo) Create(ctx context.Context, entry *timesheet.TimeEntry) error {
	entry.Date = r.NormalizeDate(entry.Date)
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO work_hours (employee_id, date, projects, hours_worked, description, signature)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		entry.EmployeeID, entry.Date, timesheet.EncodeProjects(entry.Projects),
		entry.HoursWorked, entry.Description, nullable(entry.Signature),
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("create entry for %q: %w", entry.EmployeeID, err)
	}
	return nil
}

func (r *EntriesRepo) Update(ctx context.Context, entry *timesheet.TimeEntry) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE work_hours
		 SET projects = $1, hours_worked = $2, description = $3, signature = $4
		 WHERE id = $5`,
		timesheet.EncodeProjects(entry.Projects), entry.HoursWorked,
		entry.Description, nullable(entry.Signature), entry.ID)
	if err != nil {
		return fmt.Errorf("update entry %d: %w", entry.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *EntriesRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM work_hours WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*timesheet.TimeEntry, error) {
	var entry timesheet.TimeEntry
	var emp timesheet.Employee
	var projects []byte
	var signature, email sql.NullString
	err := row.Scan(&entry.ID, &entry.EmployeeID, &entry.Date, &projects,
		&entry.HoursWorked, &entry.Description, &signature, &entry.CreatedAt,
		&emp.Name, &emp.FullName, &email)
	if err != nil {
		return nil, err
	}
	entry.Projects = timesheet.DecodeProjects(projects)
	entry.Signature = signature.String
	emp.ID = entry.EmployeeID
	emp.Email = email.String
	entry.Employee = emp
	return &entry, nil
}

func scanEntries(rows *sql.Rows) ([]timesheet.TimeEntry, error) {
	var entries []timesheet.TimeEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}
