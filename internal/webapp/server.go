// Package webapp serves the JSON API: session auth, work-hour logging,
// admin user management, spreadsheet import, and report dispatch.
package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kmalloy/workhours/internal/archive"
	"github.com/kmalloy/workhours/internal/envutil"
	"github.com/kmalloy/workhours/internal/logging"
	"github.com/kmalloy/workhours/internal/mailer"
	"github.com/kmalloy/workhours/internal/middleware"
	"github.com/kmalloy/workhours/internal/ratelimit"
	"github.com/kmalloy/workhours/internal/report"
	"github.com/kmalloy/workhours/internal/scheduler"
	"github.com/kmalloy/workhours/internal/security"
	"github.com/kmalloy/workhours/internal/store"
)

const (
	sessionCookieName = "workhours_session"
	csrfHeaderName    = "X-CSRF-Token"
)

type contextKey string

const (
	userContextKey     contextKey = "user"
	sessionContextKey  contextKey = "session"
	employeeContextKey contextKey = "employee"
)

type Config struct {
	Addr          string
	DatabaseURL   string
	AdminUsername string
	AdminPassword string
	CronSecret    string
	CronSpec      string
	SessionTTL    time.Duration
}

func DefaultConfigFromEnv() Config {
	return Config{
		Addr:          envutil.OrDefault("API_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		AdminUsername: strings.TrimSpace(os.Getenv("ADMIN_USERNAME")),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		CronSecret:    os.Getenv("CRON_SECRET"),
		CronSpec:      scheduler.SpecFromEnv(),
		SessionTTL:    12 * time.Hour,
	}
}

type server struct {
	store      *store.Store
	reports    *report.Service
	limiter    *ratelimit.Limiter
	log        logging.Logger
	zone       *time.Location
	sessionTTL time.Duration
	cronSecret string
	now        func() time.Time
}

func Run(ctx context.Context, cfg Config) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return errors.New("ADMIN_USERNAME and ADMIN_PASSWORD are required")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}

	log := logging.New()

	zone, err := report.LoadZone()
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.DatabaseURL, zone)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	adminHash, err := security.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := db.Users.EnsureAdmin(ctx, cfg.AdminUsername, adminHash); err != nil {
		return err
	}

	reports, err := NewReportService(ctx, db)
	if err != nil {
		return err
	}

	attempts := ratelimit.NewMemoryStore()
	sweepStop := make(chan struct{})
	defer close(sweepStop)
	ratelimit.StartSweeper(attempts, time.Minute, sweepStop)

	s := &server{
		store:      db,
		reports:    reports,
		limiter:    ratelimit.New(attempts, 15*time.Minute, 5),
		log:        log,
		zone:       zone,
		sessionTTL: cfg.SessionTTL,
		cronSecret: cfg.CronSecret,
		now:        time.Now,
	}

	sched := scheduler.New(zone, log)
	if err := sched.AddWeeklyReport(cfg.CronSpec, func(ctx context.Context) error {
		_, err := reports.Send(ctx, report.Options{})
		return err
	}); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	csp := strings.Join([]string{
		"default-src 'self'",
		"img-src 'self' data:",
		"script-src 'self'",
		"connect-src 'self'",
		"frame-ancestors 'none'",
	}, "; ")

	handler := middleware.Chain(
		s.routes(),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{ContentSecurityPolicy: csp}),
		middleware.RequestLogger(log),
	)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "api listening", "addr", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewReportService assembles the report dispatcher from environment
// configuration. The CLI uses it to send reports without an HTTP server.
func NewReportService(ctx context.Context, db *store.Store) (*report.Service, error) {
	log := logging.New()
	zone, err := report.LoadZone()
	if err != nil {
		return nil, err
	}
	mail, err := mailer.NewSMTPMailer(mailer.SMTPConfigFromEnv())
	if err != nil {
		return nil, err
	}
	arch, err := archive.New(ctx, archive.ConfigFromEnv(), log)
	if err != nil {
		return nil, err
	}
	recipient := strings.TrimSpace(os.Getenv("PAYROLL_EMAIL"))
	return report.NewService(db.Entries, mail, arch, log, zone, recipient), nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/health", http.HandlerFunc(s.health))
	mux.Handle("/api/auth/login", http.HandlerFunc(s.login))
	mux.Handle("/api/auth/me", middleware.Chain(http.HandlerFunc(s.me), s.requireUser))
	mux.Handle("/api/auth/csrf", middleware.Chain(http.HandlerFunc(s.csrfToken), s.requireUser))
	mux.Handle("/api/auth/logout", middleware.Chain(http.HandlerFunc(s.logout), s.requireUser, s.csrfProtect))
	mux.Handle("/api/auth/password", middleware.Chain(http.HandlerFunc(s.changeOwnPassword), s.requireUser, s.csrfProtect))
	mux.Handle("/api/profile", middleware.Chain(http.HandlerFunc(s.updateProfile), s.requireUser, s.csrfProtect))
	mux.Handle("/api/work-hours", middleware.Chain(http.HandlerFunc(s.workHoursHandler), s.requireUser, s.csrfProtect))
	mux.Handle("/api/work-hours/", middleware.Chain(http.HandlerFunc(s.workHourByIDHandler), s.requireUser, s.csrfProtect))
	mux.Handle("/api/admin/work-hours", middleware.Chain(http.HandlerFunc(s.adminAddHours), s.requireAdmin, s.csrfProtect))
	mux.Handle("/api/admin/employees", middleware.Chain(http.HandlerFunc(s.listEmployees), s.requireAdmin, s.csrfProtect))
	mux.Handle("/api/admin/users", middleware.Chain(http.HandlerFunc(s.usersHandler), s.requireAdmin, s.csrfProtect))
	mux.Handle("/api/admin/users/", middleware.Chain(http.HandlerFunc(s.userByNameHandler), s.requireAdmin, s.csrfProtect))
	mux.Handle("/api/admin/import-hours", middleware.Chain(http.HandlerFunc(s.importHours), s.requireAdmin, s.csrfProtect))
	mux.Handle("/api/reports/preview", middleware.Chain(http.HandlerFunc(s.previewReport), s.requireAdmin))
	mux.Handle("/api/reports/send", middleware.Chain(http.HandlerFunc(s.sendReport), s.requireAdmin, s.csrfProtect))
	mux.Handle("/api/cron/weekly-report", http.HandlerFunc(s.cronWeeklyReport))
	return mux
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func userFromContext(ctx context.Context) *store.User {
	user, ok := ctx.Value(userContextKey).(*store.User)
	if !ok {
		return nil
	}
	return user
}

func sessionFromContext(ctx context.Context) *store.Session {
	sess, ok := ctx.Value(sessionContextKey).(*store.Session)
	if !ok {
		return nil
	}
	return sess
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
