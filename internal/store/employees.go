package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kmalloy/workhours/internal/timesheet"
)

type EmployeesRepo struct {
	db *sql.DB
}

func (r *EmployeesRepo) Create(ctx context.Context, emp timesheet.Employee) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO employees (id, name, full_name, email) VALUES ($1, $2, $3, $4)`,
		emp.ID, emp.Name, emp.FullName, nullable(emp.Email))
	if err != nil {
		return fmt.Errorf("create employee %q: %w", emp.Name, err)
	}
	return nil
}

func (r *EmployeesRepo) Get(ctx context.Context, id string) (*timesheet.Employee, error) {
	return r.one(ctx, `SELECT id, name, full_name, email FROM employees WHERE id = $1`, id)
}

func (r *EmployeesRepo) GetByName(ctx context.Context, name string) (*timesheet.Employee, error) {
	return r.one(ctx, `SELECT id, name, full_name, email FROM employees WHERE name = $1`, name)
}

func (r *EmployeesRepo) one(ctx context.Context, query string, arg any) (*timesheet.Employee, error) {
	emp := &timesheet.Employee{}
	var email sql.NullString
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&emp.ID, &emp.Name, &emp.FullName, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	emp.Email = email.String
	return emp, nil
}

func (r *EmployeesRepo) List(ctx context.Context) ([]timesheet.Employee, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, full_name, email FROM employees ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var emps []timesheet.Employee
	for rows.Next() {
		var emp timesheet.Employee
		var email sql.NullString
		if err := rows.Scan(&emp.ID, &emp.Name, &emp.FullName, &email); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		emp.Email = email.String
		emps = append(emps, emp)
	}
	return emps, rows.Err()
}

func (r *EmployeesRepo) UpdateProfile(ctx context.Context, id, fullName, email string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE employees SET full_name = $1, email = $2 WHERE id = $3`,
		fullName, nullable(email), id)
	if err != nil {
		return fmt.Errorf("update employee %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the employee; work_hours rows cascade at the schema level.
func (r *EmployeesRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete employee %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
