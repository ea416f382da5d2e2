// Package timesheet holds the work-hour domain model shared by the store,
// the HTTP handlers, and the reporting engine.
package timesheet

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// SignatureAdminAdded is the sentinel stored when an administrator logged the
// hours on an employee's behalf. Anything else non-empty counts as a real
// signature; drawn signatures are stored as data URIs.
const SignatureAdminAdded = "admin-added"

// Project is one allocation of hours inside a day's entry.
type Project struct {
	Name        string  `json:"name"`
	Location    string  `json:"location,omitempty"`
	Hours       float64 `json:"hours"`
	Description string  `json:"description,omitempty"`
}

// TimeEntry is one employee-day of logged hours. Projects is decoded once at
// the store boundary; HoursWorked is the persisted sum and is not recomputed
// by readers.
type TimeEntry struct {
	ID          int64
	EmployeeID  string
	Date        time.Time
	Projects    []Project
	HoursWorked float64
	Description string
	Signature   string
	CreatedAt   time.Time

	Employee Employee
}

// Employee carries the identity fields reports need.
type Employee struct {
	ID       string
	Name     string
	FullName string
	Email    string
}

// DisplayName resolves the name shown on reports: full name, then login
// handle, then "Unknown".
func (e Employee) DisplayName() string {
	if strings.TrimSpace(e.FullName) != "" {
		return e.FullName
	}
	if strings.TrimSpace(e.Name) != "" {
		return e.Name
	}
	return "Unknown"
}

// DecodeProjects parses the stored project list. Malformed input degrades to
// an empty list, never an error; readers must tolerate historical garbage.
func DecodeProjects(raw []byte) []Project {
	if len(raw) == 0 {
		return nil
	}
	var projects []Project
	if err := json.Unmarshal(raw, &projects); err != nil {
		return nil
	}
	return projects
}

// EncodeProjects serializes projects for storage. An empty list encodes as
// an empty JSON array so the column never holds SQL NULL.
func EncodeProjects(projects []Project) []byte {
	if projects == nil {
		projects = []Project{}
	}
	raw, err := json.Marshal(projects)
	if err != nil {
		return []byte("[]")
	}
	return raw
}

// MergeProjects appends incoming allocations to an existing day. Logging the
// same date twice adds to the day rather than replacing it.
func MergeProjects(existing, incoming []Project) []Project {
	merged := make([]Project, 0, len(existing)+len(incoming))
	merged = append(merged, existing...)
	merged = append(merged, incoming...)
	return merged
}

// SumHours totals the project allocations.
func SumHours(projects []Project) float64 {
	var total float64
	for _, p := range projects {
		total += p.Hours
	}
	return total
}

// DeriveDescription builds the stored free-text summary, one
// "name: description" fragment per project.
func DeriveDescription(projects []Project) string {
	parts := make([]string, 0, len(projects))
	for _, p := range projects {
		desc := p.Description
		if strings.TrimSpace(desc) == "" {
			desc = "N/A"
		}
		parts = append(parts, p.Name+": "+desc)
	}
	return strings.Join(parts, "; ")
}

// SignatureStatus maps the stored signature value to its report label.
func SignatureStatus(signature string) string {
	if signature != "" && signature != SignatureAdminAdded {
		return "Signed"
	}
	return "Admin Added"
}

// HasSignatureImage reports whether the signature value embeds an image.
func HasSignatureImage(signature string) bool {
	return strings.HasPrefix(signature, "data:image")
}

// FormatHours renders an hours figure the way project lines show it: no
// trailing zeros, so 4 stays "4" and 3.5 stays "3.5".
func FormatHours(hours float64) string {
	return strconv.FormatFloat(hours, 'f', -1, 64)
}
