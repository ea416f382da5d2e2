package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kmalloy/workhours/internal/sanitize"
	"github.com/kmalloy/workhours/internal/store"
	"github.com/kmalloy/workhours/internal/timesheet"
)

const (
	// Employees may log only the current or previous day; older dates go
	// through an admin.
	selfLogWindowDays = 1

	// Owners may fix their own entry for this long after it was logged.
	selfEditWindow = 12 * time.Hour

	maxHoursPerDay  = 24
	defaultListSize = 50
	maxListSize     = 200
)

type projectRequest struct {
	Name        string  `json:"name"`
	Location    string  `json:"location"`
	Hours       float64 `json:"hours"`
	Description string  `json:"description"`
}

type logHoursRequest struct {
	Date      string           `json:"date"`
	Projects  []projectRequest `json:"projects"`
	Signature string           `json:"signature"`
}

type updateHoursRequest struct {
	Projects  []projectRequest `json:"projects"`
	Signature string           `json:"signature"`
}

type entryResponse struct {
	ID          int64               `json:"id"`
	EmployeeID  string              `json:"employeeId"`
	Employee    string              `json:"employee"`
	Date        string              `json:"date"`
	Projects    []timesheet.Project `json:"projects"`
	HoursWorked float64             `json:"hoursWorked"`
	Description string              `json:"description"`
	Signed      bool                `json:"signed"`
	CreatedAt   time.Time           `json:"createdAt"`
}

func (s *server) workHoursHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listWorkHours(w, r)
	case http.MethodPost:
		s.logWorkHours(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) logWorkHours(w http.ResponseWriter, r *http.Request) {
	emp := employeeFromContext(r.Context())
	if emp == nil {
		writeError(w, http.StatusForbidden, "no employee profile for this account")
		return
	}

	var req logHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.Date), s.zone)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if !s.withinSelfLogWindow(date) {
		writeError(w, http.StatusBadRequest, "hours can only be logged for today or yesterday")
		return
	}

	projects, err := parseProjects(req.Projects)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	signature := strings.TrimSpace(req.Signature)
	if !timesheet.HasSignatureImage(signature) {
		writeError(w, http.StatusBadRequest, "a drawn signature is required")
		return
	}

	entry, created, err := s.upsertHours(r.Context(), emp.ID, date, projects, signature)
	if err != nil {
		s.log.Error(r.Context(), "log hours failed", "employee", emp.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save hours")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toEntryResponse(entry, s.zone))
}

// withinSelfLogWindow accepts today and yesterday, by calendar day in the
// reporting zone.
func (s *server) withinSelfLogWindow(date time.Time) bool {
	today := s.now().In(s.zone)
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, s.zone)
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.zone)
	// Calendar days, not hour deltas: DST transition days are not 24h long.
	return day.Equal(today) || day.Equal(today.AddDate(0, 0, -selfLogWindowDays))
}

// upsertHours merges into the employee's existing entry for that day, or
// creates one. Re-logging a day adds hours instead of replacing them.
func (s *server) upsertHours(ctx context.Context, employeeID string, date time.Time, projects []timesheet.Project, signature string) (*timesheet.TimeEntry, bool, error) {
	existing, err := s.store.Entries.FindByEmployeeAndDate(ctx, employeeID, date)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	if existing != nil {
		merged := timesheet.MergeProjects(existing.Projects, projects)
		existing.Projects = merged
		existing.HoursWorked = timesheet.SumHours(merged)
		existing.Description = timesheet.DeriveDescription(merged)
		if signature != "" {
			existing.Signature = signature
		}
		if err := s.store.Entries.Update(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	entry := &timesheet.TimeEntry{
		EmployeeID:  employeeID,
		Date:        date,
		Projects:    projects,
		HoursWorked: timesheet.SumHours(projects),
		Description: timesheet.DeriveDescription(projects),
		Signature:   signature,
	}
	if err := s.store.Entries.Create(ctx, entry); err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

func (s *server) listWorkHours(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	employeeID := ""
	if emp := employeeFromContext(r.Context()); emp != nil {
		employeeID = emp.ID
	}
	if requested := strings.TrimSpace(r.URL.Query().Get("employeeId")); requested != "" {
		if !user.IsAdmin() && requested != employeeID {
			writeError(w, http.StatusForbidden, "cannot view another employee's hours")
			return
		}
		employeeID = requested
	}
	if employeeID == "" {
		writeError(w, http.StatusBadRequest, "no employee selected")
		return
	}

	limit := defaultListSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListSize {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := s.store.Entries.ListByEmployee(r.Context(), employeeID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list hours")
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, toEntryResponse(&entries[i], s.zone))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (s *server) workHourByIDHandler(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/work-hours/"), "/")
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}
	switch r.Method {
	case http.MethodPut:
		s.updateWorkHours(w, r, id)
	case http.MethodDelete:
		s.deleteWorkHours(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) updateWorkHours(w http.ResponseWriter, r *http.Request, id int64) {
	user := userFromContext(r.Context())
	emp := employeeFromContext(r.Context())

	entry, err := s.store.Entries.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load entry")
		return
	}

	owner := emp != nil && entry.EmployeeID == emp.ID
	if !user.IsAdmin() {
		if !owner {
			writeError(w, http.StatusForbidden, "cannot edit another employee's entry")
			return
		}
		if s.now().Sub(entry.CreatedAt) > selfEditWindow {
			writeError(w, http.StatusForbidden, "entries can only be edited within 12 hours of logging")
			return
		}
	}

	var req updateHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	projects, err := parseProjects(req.Projects)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry.Projects = projects
	entry.HoursWorked = timesheet.SumHours(projects)
	entry.Description = timesheet.DeriveDescription(projects)
	if signature := strings.TrimSpace(req.Signature); signature != "" {
		entry.Signature = signature
	}
	if err := s.store.Entries.Update(r.Context(), entry); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update entry")
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(entry, s.zone))
}

func (s *server) deleteWorkHours(w http.ResponseWriter, r *http.Request, id int64) {
	user := userFromContext(r.Context())
	if !user.IsAdmin() {
		writeError(w, http.StatusForbidden, "admin access required")
		return
	}
	if err := s.store.Entries.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete entry")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "entry deleted"})
}

func parseProjects(reqs []projectRequest) ([]timesheet.Project, error) {
	if len(reqs) == 0 {
		return nil, errors.New("at least one project is required")
	}
	projects := make([]timesheet.Project, 0, len(reqs))
	var total float64
	for _, p := range reqs {
		name := sanitize.String(strings.TrimSpace(p.Name))
		if name == "" {
			return nil, errors.New("every project needs a name")
		}
		if p.Hours <= 0 {
			return nil, errors.New("project hours must be positive")
		}
		total += p.Hours
		projects = append(projects, timesheet.Project{
			Name:        name,
			Location:    sanitize.String(strings.TrimSpace(p.Location)),
			Hours:       p.Hours,
			Description: sanitize.String(strings.TrimSpace(p.Description)),
		})
	}
	if total > maxHoursPerDay {
		return nil, errors.New("total hours cannot exceed 24 per day")
	}
	return projects, nil
}

func toEntryResponse(entry *timesheet.TimeEntry, zone *time.Location) entryResponse {
	return entryResponse{
		ID:          entry.ID,
		EmployeeID:  entry.EmployeeID,
		Employee:    entry.Employee.DisplayName(),
		Date:        entry.Date.In(zone).Format("2006-01-02"),
		Projects:    entry.Projects,
		HoursWorked: entry.HoursWorked,
		Description: entry.Description,
		Signed:      timesheet.SignatureStatus(entry.Signature) == "Signed",
		CreatedAt:   entry.CreatedAt,
	}
}
