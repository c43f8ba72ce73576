package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"rewards/internal/core"
	applog "rewards/internal/log"
	"rewards/internal/services"
	"rewards/internal/sources/memory"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seededService() *services.ReportService {
	store := memory.New(
		[]core.Nomination{
			{ID: 1, NomineeID: 10, RewardID: 1, Date: core.ParseDate("2024-01-05"), ApprovalStatus: core.Status(core.StatusApproved)},
			{ID: 2, NomineeID: 11, RewardID: 1, Date: core.ParseDate("2024-02-10"), ApprovalStatus: core.Status(core.StatusPending)},
			{ID: 3, NomineeID: 10, RewardID: 2, Date: core.ParseDate("2024-02-20")},
		},
		[]core.Reward{{ID: 1, Name: "Mug", CategoryID: 1}, {ID: 2, Name: "Day off", CategoryID: 2}},
		[]core.RewardCategory{{ID: 1, Name: "Gifts"}, {ID: 2, Name: "Time"}},
		[]core.Employee{{ID: 10}, {ID: 11}},
	)
	return services.NewReportService(store, services.WithLogger(applog.Discard()))
}

func newTestServer(t *testing.T, reports ReportRefresher) *Server {
	t.Helper()
	s := NewServer(":0", reports, Options{
		WindowDays:         30,
		RefreshesPerMinute: 100,
		Logger:             applog.Discard(),
		Now:                func() time.Time { return fixedNow },
	})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

// stubReports serves a fixed outcome. snap is the previous report for its
// own range only.
type stubReports struct {
	snap    core.Snapshot
	hasSnap bool
	err     error
	ranges  []core.DateRange
	clients []string
}

func (s *stubReports) Refresh(_ context.Context, client string, r core.DateRange) (core.Snapshot, error) {
	s.ranges = append(s.ranges, r)
	s.clients = append(s.clients, client)
	if s.err != nil {
		return core.Snapshot{}, s.err
	}
	return s.snap, nil
}

func (s *stubReports) Previous(r core.DateRange) (core.Snapshot, bool) {
	if !s.hasSnap || !sameDays(s.snap.Range, r) {
		return core.Snapshot{}, false
	}
	return s.snap, true
}

func (s *stubReports) Latest() (core.Snapshot, bool) { return s.snap, s.hasSnap }

func sameDays(a, b core.DateRange) bool {
	return a.Start.Format(time.DateOnly) == b.Start.Format(time.DateOnly) &&
		a.End.Format(time.DateOnly) == b.End.Format(time.DateOnly)
}

func TestIndexRendersDefaultWindow(t *testing.T) {
	s := newTestServer(t, seededService())
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Rewards reports", `value="2024-01-31"`, `value="2024-03-01"`, "Mug", "2024-02"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, "2024-01</td>") {
		t.Errorf("January nomination is outside the default window")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing X-Request-ID header")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("missing security headers")
	}
}

func TestIndexUnknownPathIs404(t *testing.T) {
	s := newTestServer(t, seededService())
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestApplyRendersPartial(t *testing.T) {
	s := newTestServer(t, seededService())
	form := url.Values{"start": {"2024-01-01"}, "end": {"2024-01-31"}}
	req := httptest.NewRequest(http.MethodPost, "/reports/apply", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if strings.Contains(body, "<html") {
		t.Errorf("apply must return a fragment")
	}
	if !strings.Contains(body, `id="report"`) || !strings.Contains(body, "2024-01") {
		t.Errorf("unexpected fragment: %s", body)
	}
	if strings.Contains(body, "Day off") {
		t.Errorf("February reward leaked into January report")
	}
}

func TestApplyBadDate(t *testing.T) {
	s := newTestServer(t, seededService())
	form := url.Values{"start": {"01/02/2024"}}
	req := httptest.NewRequest(http.MethodPost, "/reports/apply", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "YYYY-MM-DD") {
		t.Errorf("expected error message, got %s", rr.Body.String())
	}
}

func TestApplyFallsBackToPreviousReport(t *testing.T) {
	prev := core.Snapshot{
		Generation: 4,
		Range:      core.DateRange{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		Data:       core.AnalyticsData{TopRewards: []core.TopReward{{RewardID: 1, RewardName: "Mug", CategoryName: "Gifts", Count: 3}}},
	}
	stub := &stubReports{snap: prev, hasSnap: true, err: errors.New("upstream down")}
	s := newTestServer(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/reports/apply", strings.NewReader("start=2024-01-01&end=2024-01-31"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "last available report (2024-01-01 to 2024-01-31)") {
		t.Errorf("expected stale notice, got %s", body)
	}
	if !strings.Contains(body, "100%") {
		t.Errorf("expected popularity of the top reward")
	}
	if len(stub.clients) != 1 || stub.clients[0] != "192.0.2.1" {
		t.Errorf("refresh must be keyed by the client address, got %v", stub.clients)
	}
}

func TestApplyDoesNotFallBackToAnotherRange(t *testing.T) {
	prev := core.Snapshot{
		Generation: 4,
		Range:      core.DateRange{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
	}
	s := newTestServer(t, &stubReports{snap: prev, hasSnap: true, err: errors.New("upstream down")})

	req := httptest.NewRequest(http.MethodPost, "/reports/apply", strings.NewReader("start=2024-02-01&end=2024-02-29"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "2024-01-31") {
		t.Errorf("another range's report was served: %s", rr.Body.String())
	}
}

func TestConcurrentClientsGetTheirOwnRange(t *testing.T) {
	s := newTestServer(t, seededService())

	ranges := map[string]string{
		"198.51.100.1:4000": "start=2024-01-01&end=2024-01-31",
		"198.51.100.2:4000": "start=2024-02-01&end=2024-02-29",
	}
	type result struct {
		addr string
		code int
		got  reportResponse
	}
	results := make(chan result, len(ranges))
	for addr, q := range ranges {
		go func() {
			req := httptest.NewRequest(http.MethodGet, "/api/reports?"+q, nil)
			req.RemoteAddr = addr
			rr := httptest.NewRecorder()
			s.Handler.ServeHTTP(rr, req)
			var got reportResponse
			_ = json.NewDecoder(rr.Body).Decode(&got)
			results <- result{addr, rr.Code, got}
		}()
	}

	wantTotal := map[string]int{"198.51.100.1:4000": 1, "198.51.100.2:4000": 2}
	wantStart := map[string]string{"198.51.100.1:4000": "2024-01-01", "198.51.100.2:4000": "2024-02-01"}
	for range ranges {
		res := <-results
		if res.code != http.StatusOK || res.got.Stale {
			t.Errorf("%s: status = %d stale = %v", res.addr, res.code, res.got.Stale)
			continue
		}
		if start := res.got.Range.Start.Format(time.DateOnly); start != wantStart[res.addr] {
			t.Errorf("%s: got range starting %s, want %s", res.addr, start, wantStart[res.addr])
		}
		if res.got.Data.Metrics.TotalNominations != wantTotal[res.addr] {
			t.Errorf("%s: total = %d, want %d", res.addr, res.got.Data.Metrics.TotalNominations, wantTotal[res.addr])
		}
	}
}

func TestApplyUnavailableWithoutReport(t *testing.T) {
	s := newTestServer(t, &stubReports{err: errors.New("upstream down")})
	req := httptest.NewRequest(http.MethodPost, "/reports/apply", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestAPIReports(t *testing.T) {
	s := newTestServer(t, seededService())

	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/reports?start=2024-01-01&end=2024-02-29", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var got reportResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Stale || got.Generation != 1 {
		t.Errorf("unexpected envelope %+v", got)
	}
	if got.Data.Metrics.TotalNominations != 3 || got.Data.Metrics.ApprovedNominations != 1 {
		t.Errorf("unexpected metrics %+v", got.Data.Metrics)
	}
	wantEnd := time.Date(2024, 2, 29, 23, 59, 59, 999999999, time.UTC)
	if !got.Range.End.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", got.Range.End, wantEnd)
	}

	rr = httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/reports/latest", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("latest status = %d", rr.Code)
	}
}

func TestAPIReportsErrors(t *testing.T) {
	t.Run("bad date", func(t *testing.T) {
		s := newTestServer(t, seededService())
		rr := httptest.NewRecorder()
		s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/reports?end=tomorrow", nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rr.Code)
		}
	})

	t.Run("stale fallback", func(t *testing.T) {
		prev := core.Snapshot{Generation: 2, Range: core.LastDays(fixedNow, 30)}
		stub := &stubReports{snap: prev, hasSnap: true, err: errors.New("boom")}
		s := newTestServer(t, stub)
		rr := httptest.NewRecorder()
		s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
		var got reportResponse
		_ = json.NewDecoder(rr.Body).Decode(&got)
		if rr.Code != http.StatusOK || !got.Stale || got.Generation != 2 {
			t.Fatalf("status = %d body = %+v", rr.Code, got)
		}
		if len(stub.ranges) != 1 || !stub.ranges[0].End.Equal(fixedNow) {
			t.Fatalf("expected default window, got %+v", stub.ranges)
		}
	})

	t.Run("no report", func(t *testing.T) {
		s := newTestServer(t, &stubReports{err: errors.New("boom")})
		rr := httptest.NewRecorder()
		s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rr.Code)
		}
	})

	t.Run("latest missing", func(t *testing.T) {
		s := newTestServer(t, &stubReports{})
		rr := httptest.NewRecorder()
		s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/reports/latest", nil))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rr.Code)
		}
	})
}

func TestHealthAndReadiness(t *testing.T) {
	stub := &stubReports{}
	s := newTestServer(t, stub)

	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before report = %d, want 503", rr.Code)
	}

	stub.hasSnap = true
	rr = httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz after report = %d, want 200", rr.Code)
	}
}

func TestRefreshRateLimited(t *testing.T) {
	s := NewServer(":0", &stubReports{}, Options{RefreshesPerMinute: 1, Logger: applog.Discard()})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	if rr.Code == http.StatusTooManyRequests {
		t.Fatalf("first request must pass")
	}
	rr = httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("missing Retry-After")
	}
}

func TestStaticAssets(t *testing.T) {
	s := newTestServer(t, &stubReports{})
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/reports.css", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestSuspiciousRequestsAreCounted(t *testing.T) {
	s := newTestServer(t, &stubReports{})
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/.env", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if s.detector.Suspicious() != 1 {
		t.Fatalf("Suspicious() = %d, want 1", s.detector.Suspicious())
	}
}
