package webapp

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kmalloy/workhours/internal/report"
)

type sendReportRequest struct {
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	ExtraEmails []string `json:"extraEmails"`
}

func (s *server) previewReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	opts := report.Options{
		StartDate: strings.TrimSpace(r.URL.Query().Get("start")),
		EndDate:   strings.TrimSpace(r.URL.Query().Get("end")),
	}
	preview, err := s.reports.Preview(r.Context(), opts)
	if err != nil {
		if errors.Is(err, report.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error(r.Context(), "report preview failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build preview")
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *server) sendReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req sendReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.reports.Send(r.Context(), report.Options{
		StartDate:   strings.TrimSpace(req.StartDate),
		EndDate:     strings.TrimSpace(req.EndDate),
		ExtraEmails: req.ExtraEmails,
	})
	if err != nil {
		if errors.Is(err, report.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error(r.Context(), "report send failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send report")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// cronWeeklyReport is the unauthenticated trigger for external schedulers.
// It is gated by a shared bearer secret instead of a session.
func (s *server) cronWeeklyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.cronSecret == "" {
		writeError(w, http.StatusServiceUnavailable, "cron trigger is not configured")
		return
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cronSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := s.reports.Send(r.Context(), report.Options{})
	if err != nil {
		s.log.Error(r.Context(), "cron report send failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send report")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
