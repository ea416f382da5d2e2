package workhourscli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/kmalloy/workhours/internal/envutil"
	"github.com/kmalloy/workhours/internal/report"
	"github.com/kmalloy/workhours/internal/security"
	"github.com/kmalloy/workhours/internal/store"
	"github.com/kmalloy/workhours/internal/webapp"
)

var ErrUsage = errors.New("usage")

func Execute(args []string) error {
	if len(args) < 1 {
		return usageError()
	}

	switch args[0] {
	case "setup":
		return runSetup(args[1:])
	case "migrate":
		return runMigrate(args[1:])
	case "run":
		return runServer(args[1:])
	case "send-report":
		return runSendReport(args[1:])
	default:
		return usageError()
	}
}

func usageError() error {
	return fmt.Errorf("%w: workhours <setup|migrate|run|send-report> [...]", ErrUsage)
}

func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: workhours setup --admin-password <password> [--admin-username admin] [--force]")
	fmt.Fprintln(w, "       workhours migrate")
	fmt.Fprintln(w, "       workhours run")
	fmt.Fprintln(w, "       workhours send-report [--start YYYY-MM-DD --end YYYY-MM-DD]")
}

func runSetup(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	adminUser := fs.String("admin-username", "admin", "initial admin username")
	adminPass := fs.String("admin-password", "", "initial admin password (min 8 chars)")
	databaseURL := fs.String("database-url", "postgres://localhost:5432/workhours?sslmode=disable", "postgres connection string")
	payrollEmail := fs.String("payroll-email", "", "default report recipient")
	envPath := fs.String("env-file", ".env", "path to .env file")
	force := fs.Bool("force", false, "overwrite existing env file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *adminPass == "" {
		return errors.New("--admin-password is required")
	}
	if _, err := security.HashPassword(*adminPass); err != nil {
		return fmt.Errorf("invalid admin password: %w", err)
	}

	values := map[string]string{
		"ADMIN_USERNAME": *adminUser,
		"ADMIN_PASSWORD": *adminPass,
		"DATABASE_URL":   *databaseURL,
		"PAYROLL_EMAIL":  *payrollEmail,
		"API_ADDR":       ":8080",
	}

	if err := envutil.WriteDotEnv(*envPath, values, *force); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", *envPath)
	return nil
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	envPath := fs.String("env-file", ".env", "path to .env file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := envutil.LoadDotEnv(*envPath); err != nil {
		return fmt.Errorf("load %s: %w", *envPath, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	fmt.Println("migrations applied")
	return nil
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	envPath := fs.String("env-file", ".env", "path to .env file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := envutil.LoadDotEnv(*envPath); err != nil {
		return fmt.Errorf("load %s: %w", *envPath, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := webapp.DefaultConfigFromEnv()
	if err := webapp.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runSendReport dispatches one report from the command line, without the
// HTTP server. Empty dates fall back to the prior Monday-through-Sunday.
func runSendReport(args []string) error {
	fs := flag.NewFlagSet("send-report", flag.ContinueOnError)
	start := fs.String("start", "", "range start (YYYY-MM-DD, optional)")
	end := fs.String("end", "", "range end (YYYY-MM-DD, optional)")
	envPath := fs.String("env-file", ".env", "path to .env file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := envutil.LoadDotEnv(*envPath); err != nil {
		return fmt.Errorf("load %s: %w", *envPath, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := webapp.NewReportService(ctx, db)
	if err != nil {
		return err
	}
	result, err := svc.Send(ctx, report.Options{StartDate: *start, EndDate: *end})
	if err != nil {
		return err
	}
	if result.NoticeOnly {
		fmt.Printf("no hours logged for %s to %s; notice sent\n", result.StartDate, result.EndDate)
		return nil
	}
	fmt.Printf("sent %s with %d entries\n", result.Filename, result.Entries)
	return nil
}

func openStore(ctx context.Context) (*store.Store, error) {
	dsn := envutil.OrDefault("DATABASE_URL", "")
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	zone, err := report.LoadZone()
	if err != nil {
		return nil, err
	}
	return store.Open(dsn, zone)
}
