package webapp

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kmalloy/workhours/internal/sanitize"
	"github.com/kmalloy/workhours/internal/security"
	"github.com/kmalloy/workhours/internal/store"
	"github.com/kmalloy/workhours/internal/timesheet"
)

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type setPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

type adminAddHoursRequest struct {
	EmployeeID string           `json:"employeeId"`
	Date       string           `json:"date"`
	Projects   []projectRequest `json:"projects"`
}

// adminAddHours logs hours on an employee's behalf, for any date. The entry
// carries the admin-added marker instead of a drawn signature.
func (s *server) adminAddHours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req adminAddHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := s.store.Employees.Get(r.Context(), strings.TrimSpace(req.EmployeeID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "employee not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load employee")
		return
	}
	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.Date), s.zone)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	projects, err := parseProjects(req.Projects)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, created, err := s.upsertHours(r.Context(), req.EmployeeID, date, projects, timesheet.SignatureAdminAdded)
	if err != nil {
		s.log.Error(r.Context(), "admin add hours failed", "employee", req.EmployeeID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save hours")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toEntryResponse(entry, s.zone))
}

func (s *server) listEmployees(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	employees, err := s.store.Employees.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list employees")
		return
	}
	type employeeResponse struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		FullName string `json:"fullName"`
		Email    string `json:"email,omitempty"`
	}
	out := make([]employeeResponse, 0, len(employees))
	for _, emp := range employees {
		out = append(out, employeeResponse{ID: emp.ID, Name: emp.Name, FullName: emp.FullName, Email: emp.Email})
	}
	writeJSON(w, http.StatusOK, map[string]any{"employees": out})
}

func (s *server) usersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listUsers(w, r)
	case http.MethodPost:
		s.createUser(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.Users.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	type userResponse struct {
		Username  string    `json:"username"`
		Role      string    `json:"role"`
		CreatedAt time.Time `json:"createdAt"`
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse{Username: u.Username, Role: u.Role, CreatedAt: u.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

// createUser provisions a login and its employee profile together.
func (s *server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	hash, err := security.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.store.Users.Create(r.Context(), username, hash, store.RoleUser); err != nil {
		writeError(w, http.StatusConflict, "username already exists")
		return
	}
	emp := timesheet.Employee{
		ID:       uuid.NewString(),
		Name:     username,
		FullName: sanitize.String(strings.TrimSpace(req.FullName)),
		Email:    strings.TrimSpace(req.Email),
	}
	if err := s.store.Employees.Create(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create employee profile")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"username":   username,
		"employeeId": emp.ID,
	})
}

func (s *server) userByNameHandler(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admin/users/"), "/")
	if trimmed == "" {
		http.NotFound(w, r)
		return
	}
	parts := strings.Split(trimmed, "/")
	username, err := url.PathUnescape(parts[0])
	if err != nil || strings.TrimSpace(username) == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.deleteUser(w, r, username)
		return
	}
	if len(parts) == 2 && parts[1] == "password" {
		if r.Method != http.MethodPut {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.setUserPassword(w, r, username)
		return
	}
	http.NotFound(w, r)
}

// deleteUser removes the login, the employee profile, and every logged
// entry. Admins cannot delete themselves.
func (s *server) deleteUser(w http.ResponseWriter, r *http.Request, username string) {
	current := userFromContext(r.Context())
	if current.Username == username {
		writeError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	if emp, err := s.store.Employees.GetByName(r.Context(), username); err == nil {
		if err := s.store.Employees.Delete(r.Context(), emp.ID); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to delete employee profile")
			return
		}
	}
	if err := s.store.Users.Delete(r.Context(), username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

func (s *server) setUserPassword(w http.ResponseWriter, r *http.Request, username string) {
	var req setPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	hash, err := security.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.Users.UpdatePassword(r.Context(), username, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}
