package http

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"rewards/internal/analytics"
	"rewards/internal/core"
	applog "rewards/internal/log"
	"rewards/internal/middleware/security"
	"rewards/internal/services"
)

// reportResponse is the JSON body of the report endpoints.
type reportResponse struct {
	core.Snapshot
	Stale bool `json:"stale"`
}

type topRow struct {
	core.TopReward
	Popularity string
	Width      int
}

// reportView feeds the report_body template.
type reportView struct {
	Start, End  string
	HasData     bool
	Stale       bool
	Error       string
	Generation  uint64
	GeneratedAt string
	Data        core.AnalyticsData
	Top         []topRow
}

func newReportView(r core.DateRange) reportView {
	return reportView{
		Start: r.Start.Format(time.DateOnly),
		End:   r.End.Format(time.DateOnly),
	}
}

func (v *reportView) fill(s core.Snapshot, stale bool) {
	v.HasData = true
	v.Stale = stale
	v.Generation = s.Generation
	v.GeneratedAt = s.GeneratedAt.UTC().Format("2006-01-02 15:04 MST")
	v.Data = s.Data
	v.Top = v.Top[:0]
	for _, t := range s.Data.TopRewards {
		pop := analytics.Popularity(s.Data.TopRewards, t.Count)
		v.Top = append(v.Top, topRow{
			TopReward:  t,
			Popularity: fmt.Sprintf("%.0f", pop),
			Width:      int(math.Round(pop)),
		})
	}
}

func (s *Server) defaultRange() core.DateRange {
	return core.LastDays(s.now().UTC(), s.windowDays)
}

// refresh runs one refresh for the requesting client and falls back to the
// last snapshot of the same range. ok is false when there is neither.
func (s *Server) refresh(r *http.Request, rng core.DateRange) (snap core.Snapshot, stale bool, ok bool) {
	ctx := r.Context()
	snap, err := s.reports.Refresh(ctx, security.ClientIP(r), rng)
	if err == nil {
		return snap, false, true
	}
	if !errors.Is(err, services.ErrSuperseded) {
		applog.FromContext(ctx).WarnContext(ctx, "Serving previous report after refresh failure",
			applog.FieldError, err)
	}
	prev, found := s.reports.Previous(rng)
	return prev, true, found
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	rng := s.defaultRange()
	view := newReportView(rng)
	if snap, stale, ok := s.refresh(r, rng); ok {
		view.fill(snap, stale)
	} else {
		view.Error = "Reports are unavailable right now. Please try again shortly."
	}
	s.render(w, r, http.StatusOK, "reports_page", view)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, "report_body", reportView{Error: "Invalid request"})
		return
	}
	rng, err := parseRange(r.Form.Get("start"), r.Form.Get("end"), s.defaultRange())
	if err != nil {
		s.render(w, r, http.StatusBadRequest, "report_body", reportView{Error: "Dates must be in YYYY-MM-DD format"})
		return
	}

	view := newReportView(rng)
	snap, stale, ok := s.refresh(r, rng)
	if !ok {
		view.Error = "Reports are unavailable right now. Please try again shortly."
		s.render(w, r, http.StatusServiceUnavailable, "report_body", view)
		return
	}
	view.fill(snap, stale)
	s.render(w, r, http.StatusOK, "report_body", view)
}

func (s *Server) handleAPIReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := parseRange(q.Get("start"), q.Get("end"), s.defaultRange())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, stale, ok := s.refresh(r, rng)
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, "report unavailable")
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{Snapshot: snap, Stale: stale})
}

func (s *Server) handleAPILatest(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.reports.Latest()
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no report published yet")
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{Snapshot: snap})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err,
			"template", name)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once a report has been published.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.reports.Latest(); !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no report yet"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
