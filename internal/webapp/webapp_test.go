package webapp

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/kmalloy/workhours/internal/logging"
	"github.com/kmalloy/workhours/internal/mailer"
	"github.com/kmalloy/workhours/internal/ratelimit"
	"github.com/kmalloy/workhours/internal/report"
	"github.com/kmalloy/workhours/internal/store"
	"github.com/kmalloy/workhours/internal/timesheet"
)

type stubSource struct{}

func (stubSource) ListForReport(context.Context, time.Time, time.Time, time.Time) ([]timesheet.TimeEntry, error) {
	return nil, nil
}

type stubMailer struct{ sent []mailer.Message }

func (m *stubMailer) Send(_ context.Context, msg mailer.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

type stubArchiver struct{}

func (stubArchiver) Archive(context.Context, string, []byte) error { return nil }

func newTestServer(t *testing.T) (*server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	zone, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	log := logging.Discard()

	st := store.New(db, zone)
	reports := report.NewService(stubSource{}, &stubMailer{}, stubArchiver{}, log, zone, "payroll@example.com")

	return &server{
		store:      st,
		reports:    reports,
		limiter:    ratelimit.NewDefault(),
		log:        log,
		zone:       zone,
		sessionTTL: 12 * time.Hour,
		cronSecret: "topsecret",
		now:        func() time.Time { return time.Date(2024, 6, 12, 10, 0, 0, 0, zone) },
	}, mock
}

func TestLoginRejectsAfterRepeatedAttempts(t *testing.T) {
	s, mock := newTestServer(t)

	for i := 0; i < 5; i++ {
		mock.ExpectQuery(`SELECT\s+id,\s*username,\s*password_hash`).
			WillReturnError(sql.ErrNoRows)
	}

	body := `{"username":"jane","password":"wrong-pass"}`
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		req.RemoteAddr = "10.0.0.1:4000"
		s.login(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.RemoteAddr = "10.0.0.1:4000"
	s.login(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), "too many login attempts")
}

func TestLoginValidatesInput(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":" "}`))
	s.login(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	s.login(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWithinSelfLogWindow(t *testing.T) {
	s, _ := newTestServer(t)

	day := func(value string) time.Time {
		d, err := time.ParseInLocation("2006-01-02", value, s.zone)
		require.NoError(t, err)
		return d
	}

	require.True(t, s.withinSelfLogWindow(day("2024-06-12")))
	require.True(t, s.withinSelfLogWindow(day("2024-06-11")))
	require.False(t, s.withinSelfLogWindow(day("2024-06-10")))
	require.False(t, s.withinSelfLogWindow(day("2024-06-13")))

	// Yesterday must stay loggable across DST transitions, where the
	// elapsed time since midnight yesterday is not 24 hours.
	s.now = func() time.Time { return time.Date(2025, 11, 3, 10, 0, 0, 0, s.zone) }
	require.True(t, s.withinSelfLogWindow(day("2025-11-02")))
	require.False(t, s.withinSelfLogWindow(day("2025-11-01")))

	s.now = func() time.Time { return time.Date(2025, 3, 10, 10, 0, 0, 0, s.zone) }
	require.True(t, s.withinSelfLogWindow(day("2025-03-09")))
	require.False(t, s.withinSelfLogWindow(day("2025-03-08")))
}

func TestLogWorkHoursRejectsOldDate(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"date":"2024-06-01","projects":[{"name":"Site A","hours":4}],"signature":"data:image/png;base64,AAAA"}`
	req := httptest.NewRequest(http.MethodPost, "/api/work-hours", strings.NewReader(body))
	emp := &timesheet.Employee{ID: "emp-1", Name: "jane"}
	req = req.WithContext(context.WithValue(req.Context(), employeeContextKey, emp))

	rec := httptest.NewRecorder()
	s.logWorkHours(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "today or yesterday")
}

func TestLogWorkHoursRequiresSignature(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"date":"2024-06-12","projects":[{"name":"Site A","hours":4}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/work-hours", strings.NewReader(body))
	emp := &timesheet.Employee{ID: "emp-1", Name: "jane"}
	req = req.WithContext(context.WithValue(req.Context(), employeeContextKey, emp))

	rec := httptest.NewRecorder()
	s.logWorkHours(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "signature")
}

func TestParseProjects(t *testing.T) {
	_, err := parseProjects(nil)
	require.Error(t, err)

	_, err = parseProjects([]projectRequest{{Name: "", Hours: 4}})
	require.Error(t, err)

	_, err = parseProjects([]projectRequest{{Name: "Site A", Hours: -1}})
	require.Error(t, err)

	_, err = parseProjects([]projectRequest{{Name: "Site A", Hours: 25}})
	require.Error(t, err)

	projects, err := parseProjects([]projectRequest{
		{Name: "<b>Site A</b>", Location: "North", Hours: 4, Description: "javascript:alert(1)"},
	})
	require.NoError(t, err)
	require.Equal(t, "Site A", projects[0].Name)
	require.NotContains(t, projects[0].Description, "javascript:")
}

func TestCsrfProtect(t *testing.T) {
	s, _ := newTestServer(t)

	var reached bool
	handler := s.csrfProtect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	sess := &store.Session{ID: "sess-1", CSRFToken: "tok"}
	withSession := func(r *http.Request) *http.Request {
		return r.WithContext(context.WithValue(r.Context(), sessionContextKey, sess))
	}

	// Reads pass without a token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/work-hours", nil))
	require.True(t, reached)

	reached = false
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodPost, "/api/work-hours", nil)))
	require.False(t, reached)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/work-hours", nil))
	req.Header.Set(csrfHeaderName, "tok")
	handler.ServeHTTP(rec, req)
	require.True(t, reached)
}

func TestCronWeeklyReportAuth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/cron/weekly-report", nil)
	s.cronWeeklyReport(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/cron/weekly-report", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	s.cronWeeklyReport(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	s.cronSecret = ""
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/cron/weekly-report", nil)
	s.cronWeeklyReport(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCronWeeklyReportSendsNotice(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/cron/weekly-report", nil)
	req.Header.Set("Authorization", "Bearer topsecret")
	s.cronWeeklyReport(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"noticeOnly":true`)
}

func TestPreviewReportRejectsInvalidRange(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/reports/preview?start=2024-06-09&end=2024-06-03", nil)
	s.previewReport(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseImportRows(t *testing.T) {
	zone, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	rows := [][]string{
		{"Employee", "Date", "Project", "Location", "Hours", "Description"},
		{"jane", "2024-06-03", "Site A", "North", "4", "framing"},
		{"jane", "not-a-date", "Site A", "", "4", ""},
		{"bob", "2024-06-04", "", "", "8", ""},
		{"", "2024-06-04", "Site B", "", "2", ""},
		{"bob", "2024-06-05", "Site C", "", "0", ""},
	}
	parsed, skipped, err := parseImportRows(rows, zone)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	require.Equal(t, 2, skipped)

	require.Equal(t, "jane", parsed[0].employeeName)
	require.Equal(t, "Site A", parsed[0].project.Name)
	require.Equal(t, 4.0, parsed[0].project.Hours)
	require.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, zone), parsed[0].date)

	// Missing project name falls back to a generic label.
	require.Equal(t, "Imported hours", parsed[1].project.Name)
}

func TestParseImportRowsRequiresColumns(t *testing.T) {
	zone := time.UTC
	_, _, err := parseImportRows([][]string{{"Date", "Hours"}}, zone)
	require.ErrorContains(t, err, "employee")

	_, _, err = parseImportRows([][]string{{"Employee", "Hours"}}, zone)
	require.ErrorContains(t, err, "date")
}

func TestNormalizeImportDate(t *testing.T) {
	zone := time.UTC

	parsed, ok := normalizeImportDate("45446", zone)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, zone), parsed)

	parsed, ok = normalizeImportDate("6/3/2024", zone)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, zone), parsed)

	_, ok = normalizeImportDate("soon", zone)
	require.False(t, ok)
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}
