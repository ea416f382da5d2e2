package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kmalloy/workhours/internal/sanitize"
	"github.com/kmalloy/workhours/internal/security"
	"github.com/kmalloy/workhours/internal/store"
	"github.com/kmalloy/workhours/internal/timesheet"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	// Failed and successful attempts both count toward the limit; the window
	// resets on its own, never on success.
	if res := s.limiter.Check(limiterKey(req.Username, r)); !res.Allowed {
		writeError(w, http.StatusTooManyRequests, res.Message)
		return
	}

	user, hash, err := s.store.Users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "authentication failed")
		return
	}
	if !security.VerifyPassword(req.Password, hash) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	sessionID, err := security.RandomToken(32)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authentication failed")
		return
	}
	csrfToken, err := security.RandomToken(32)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authentication failed")
		return
	}

	expires := s.now().UTC().Add(s.sessionTTL)
	err = s.store.Sessions.Create(r.Context(), store.Session{
		ID:        sessionID,
		UserID:    user.ID,
		CSRFToken: csrfToken,
		ExpiresAt: expires,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authentication failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.sessionTTL.Seconds()),
		Expires:  expires,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"username": user.Username,
		"isAdmin":  user.IsAdmin(),
	})
}

func limiterKey(username string, r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return username + "|" + host
}

func (s *server) me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user := userFromContext(r.Context())
	payload := map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"isAdmin":  user.IsAdmin(),
	}
	if emp := employeeFromContext(r.Context()); emp != nil {
		payload["employeeId"] = emp.ID
		payload["fullName"] = emp.FullName
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *server) csrfToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": sess.CSRFToken})
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if sess := sessionFromContext(r.Context()); sess != nil {
		_ = s.store.Sessions.Delete(r.Context(), sess.ID)
	}
	expireSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

func (s *server) changeOwnPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user := userFromContext(r.Context())

	_, hash, err := s.store.Users.GetByUsername(r.Context(), user.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "password change failed")
		return
	}
	if !security.VerifyPassword(req.CurrentPassword, hash) {
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}
	newHash, err := security.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.Users.UpdatePassword(r.Context(), user.Username, newHash); err != nil {
		writeError(w, http.StatusInternalServerError, "password change failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

type updateProfileRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// updateProfile lets an employee change the name and email shown on
// reports. Login identity is not editable here.
func (s *server) updateProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	emp := employeeFromContext(r.Context())
	if emp == nil {
		writeError(w, http.StatusForbidden, "no employee profile for this account")
		return
	}
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fullName := sanitize.String(strings.TrimSpace(req.FullName))
	email := strings.TrimSpace(req.Email)
	if err := s.store.Employees.UpdateProfile(r.Context(), emp.ID, fullName, email); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"employeeId": emp.ID,
		"fullName":   fullName,
		"email":      email,
	})
}

// requireUser authenticates the session cookie and loads the user, plus
// their employee profile when one exists. Admin accounts may have none.
func (s *server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		sess, err := s.store.Sessions.Get(r.Context(), cookie.Value, s.now())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				expireSessionCookie(w)
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			writeError(w, http.StatusInternalServerError, "session check failed")
			return
		}
		user, err := s.store.Users.GetByID(r.Context(), sess.UserID)
		if err != nil {
			expireSessionCookie(w)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		ctx = context.WithValue(ctx, userContextKey, user)
		if emp, err := s.store.Employees.GetByName(ctx, user.Username); err == nil {
			ctx = context.WithValue(ctx, employeeContextKey, emp)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) requireAdmin(next http.Handler) http.Handler {
	return s.requireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		if user == nil || !user.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (s *server) csrfProtect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}
		sess := sessionFromContext(r.Context())
		if sess == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		token := strings.TrimSpace(r.Header.Get(csrfHeaderName))
		if token == "" || token != sess.CSRFToken {
			writeError(w, http.StatusForbidden, "csrf validation failed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func employeeFromContext(ctx context.Context) *timesheet.Employee {
	emp, ok := ctx.Value(employeeContextKey).(*timesheet.Employee)
	if !ok {
		return nil
	}
	return emp
}

func expireSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}
