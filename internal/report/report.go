package report

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kmalloy/workhours/internal/logging"
	"github.com/kmalloy/workhours/internal/mailer"
	"github.com/kmalloy/workhours/internal/timesheet"
)

const attachmentContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// EntrySource is the query boundary: entries with date in [start, end] and
// createdAt <= cutoff, ordered by employee then date, joined with employee
// identity.
type EntrySource interface {
	ListForReport(ctx context.Context, start, end, cutoff time.Time) ([]timesheet.TimeEntry, error)
}

// Archiver keeps a copy of every sent workbook. Best effort; failures are
// logged and never block the send.
type Archiver interface {
	Archive(ctx context.Context, filename string, content []byte) error
}

// Options selects the reporting window. Both date strings empty means the
// default previous-week policy; both set means a custom range. ExtraEmails
// are appended to the fixed default recipient.
type Options struct {
	StartDate   string
	EndDate     string
	ExtraEmails []string
}

// Preview is the JSON payload behind the interactive report preview.
type Preview struct {
	Range  RangeInfo `json:"range"`
	Totals Totals    `json:"totals"`
	Rows   []Row     `json:"rows"`
}

type RangeInfo struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Cutoff    string `json:"cutoff"`
}

type Totals struct {
	Entries   int     `json:"entries"`
	Hours     float64 `json:"hours"`
	Employees int     `json:"employees"`
}

// SendResult summarizes a dispatch for the caller.
type SendResult struct {
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	Entries    int    `json:"entriesCount"`
	NoticeOnly bool   `json:"noticeOnly"`
	Filename   string `json:"filename,omitempty"`
}

// Service wires the range resolver, the query boundary, the renderer, and
// the mail/archive collaborators into the two report operations.
type Service struct {
	entries          EntrySource
	mail             mailer.Mailer
	archiver         Archiver
	renderer         *Renderer
	log              logging.Logger
	zone             *time.Location
	defaultRecipient string
	now              func() time.Time
}

func NewService(entries EntrySource, mail mailer.Mailer, archiver Archiver, log logging.Logger, zone *time.Location, defaultRecipient string) *Service {
	return &Service{
		entries:          entries,
		mail:             mail,
		archiver:         archiver,
		renderer:         NewRenderer(log, zone),
		log:              log,
		zone:             zone,
		defaultRecipient: defaultRecipient,
		now:              time.Now,
	}
}

// Resolve turns Options into a concrete Range, rejecting inverted custom
// windows before anything touches the store.
func (s *Service) Resolve(opts Options) (Range, error) {
	if opts.StartDate == "" && opts.EndDate == "" {
		return DefaultWeeklyRange(s.now(), s.zone), nil
	}
	r, err := CustomRange(opts.StartDate, opts.EndDate, s.zone)
	if err != nil {
		return Range{}, err
	}
	if r.End.Before(r.Start) {
		return Range{}, fmt.Errorf("%w: end date must not precede start date", ErrInvalidRange)
	}
	return r, nil
}

// Preview builds the row list plus totals for the admin preview screen. It
// performs no side effects.
func (s *Service) Preview(ctx context.Context, opts Options) (*Preview, error) {
	r, err := s.Resolve(opts)
	if err != nil {
		return nil, err
	}

	entries, err := s.entries.ListForReport(ctx, r.Start, r.End, r.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("query report entries: %w", err)
	}

	var hours float64
	employees := make(map[string]struct{})
	for _, e := range entries {
		hours += e.HoursWorked
		employees[e.EmployeeID] = struct{}{}
	}

	return &Preview{
		Range: RangeInfo{
			StartDate: r.Start.Format("2006-01-02"),
			EndDate:   r.End.Format("2006-01-02"),
			Cutoff:    r.Cutoff.Format(time.RFC3339),
		},
		Totals: Totals{
			Entries:   len(entries),
			Hours:     math.Round(hours*10) / 10,
			Employees: len(employees),
		},
		Rows: BuildRows(entries, s.zone),
	}, nil
}

// Send resolves the range, queries entries, and either emails the rendered
// workbook or a "no hours logged" notice when the window is empty. Either
// the full workbook is produced and dispatched or an error comes back; no
// partial artifact is ever delivered.
func (s *Service) Send(ctx context.Context, opts Options) (*SendResult, error) {
	r, err := s.Resolve(opts)
	if err != nil {
		return nil, err
	}

	entries, err := s.entries.ListForReport(ctx, r.Start, r.End, r.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("query report entries: %w", err)
	}

	recipients := Recipients(s.defaultRecipient, opts.ExtraEmails)
	result := &SendResult{
		StartDate: r.Start.Format("2006-01-02"),
		EndDate:   r.End.Format("2006-01-02"),
		Entries:   len(entries),
	}

	if len(entries) == 0 {
		if err := s.mail.Send(ctx, noticeMessage(r, recipients)); err != nil {
			return nil, fmt.Errorf("send no-hours notice: %w", err)
		}
		s.log.Info(ctx, "no hours logged for period, notice sent",
			"start", result.StartDate, "end", result.EndDate, "recipients", len(recipients))
		result.NoticeOnly = true
		return result, nil
	}

	buf, err := s.renderer.Render(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("render report workbook: %w", err)
	}
	content := buf.Bytes()

	filename := Filename(r)
	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, filename, content); err != nil {
			s.log.Warn(ctx, "report archive failed", "filename", filename, "error", err)
		}
	}

	if err := s.mail.Send(ctx, reportMessage(r, recipients, filename, content)); err != nil {
		return nil, fmt.Errorf("send report email: %w", err)
	}

	s.log.Info(ctx, "report sent",
		"start", result.StartDate, "end", result.EndDate,
		"entries", len(entries), "recipients", len(recipients), "filename", filename)
	result.Filename = filename
	return result, nil
}

// Filename derives the attachment name from the range, e.g.
// "Report_Jun-03_to_Jun-09-2024.xlsx".
func Filename(r Range) string {
	return fmt.Sprintf("Report_%s_to_%s.xlsx", r.Start.Format("Jan-02"), r.End.Format("Jan-02-2006"))
}

// Subject formats the email subject line for the range.
func Subject(r Range) string {
	return fmt.Sprintf("Work Hours Report: %s - %s", r.Start.Format("Jan 02"), r.End.Format("Jan 02, 2006"))
}

// CutoffLabel renders the creation-time cutoff for the email body.
func CutoffLabel(r Range) string {
	return r.Cutoff.Format("Monday, Jan 02, 3:04 PM")
}

// Recipients prepends the fixed default address and de-duplicates while
// keeping first-seen order.
func Recipients(defaultRecipient string, extras []string) []string {
	out := make([]string, 0, 1+len(extras))
	seen := make(map[string]struct{})
	for _, addr := range append([]string{defaultRecipient}, extras...) {
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}

func reportMessage(r Range, recipients []string, filename string, content []byte) mailer.Message {
	period := fmt.Sprintf("%s - %s", r.Start.Format("January 02"), r.End.Format("January 02, 2006"))
	cutoff := CutoffLabel(r)
	return mailer.Message{
		To:      recipients,
		Subject: Subject(r),
		Text: fmt.Sprintf("Attached is the work hours report for %s.\n\nCutoff: %s PT.", period, cutoff),
		HTML: fmt.Sprintf(`<h2>Work Hours Report</h2>
<p><strong>Period:</strong> %s</p>
<p><strong>Cutoff:</strong> %s PT</p>
<p>Attached is the Excel report containing all employee hours for this period.</p>
<ul>
<li>Summary sheet with all employees</li>
<li>Individual sheets for each employee</li>
<li>Weekend entries highlighted</li>
<li>Digital signatures where provided</li>
</ul>`, period, cutoff),
		Attachment: &mailer.Attachment{
			Filename:    filename,
			ContentType: attachmentContentType,
			Content:     content,
		},
	}
}

func noticeMessage(r Range, recipients []string) mailer.Message {
	period := fmt.Sprintf("%s - %s", r.Start.Format("January 02"), r.End.Format("January 02, 2006"))
	cutoff := CutoffLabel(r)
	return mailer.Message{
		To:      recipients,
		Subject: Subject(r) + " - NO HOURS LOGGED",
		Text:    fmt.Sprintf("No work hours were logged for %s.", period),
		HTML: fmt.Sprintf(`<h2>Work Hours Report</h2>
<p><strong>Period:</strong> %s</p>
<p><strong>Cutoff:</strong> %s PT</p>
<p><strong style="color: red;">NO HOURS WERE LOGGED FOR THIS PERIOD</strong></p>`, period, cutoff),
	}
}
