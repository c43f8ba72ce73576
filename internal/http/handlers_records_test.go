package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rewards/internal/cache"
	"rewards/internal/core"
	applog "rewards/internal/log"
	"rewards/internal/services"
	"rewards/internal/sources/api"
)

// stubRecords records calls and returns err when set.
type stubRecords struct {
	err   error
	calls []string
}

func (s *stubRecords) call(format string, args ...any) error {
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
	return s.err
}

func (s *stubRecords) Record(_ context.Context, resource string, id int64) (json.RawMessage, error) {
	if err := s.call("record %s %d", resource, id); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"reward_id":7,"reward_name":"Mug"}`), nil
}

func (s *stubRecords) CacheStats() cache.Stats { return cache.Stats{Size: 1, Hits: 4, Misses: 2} }

func (s *stubRecords) Region(_ context.Context, id int64) (services.RegionView, error) {
	if err := s.call("region %d", id); err != nil {
		return services.RegionView{}, err
	}
	return services.RegionView{Region: core.Region{ID: id, Name: "EMEA"}, Zones: []string{"eu-1"}}, nil
}

func (s *stubRecords) CreateRegion(_ context.Context, in services.RegionView) (services.RegionView, error) {
	if err := s.call("create %s %v", in.Name, in.Zones); err != nil {
		return services.RegionView{}, err
	}
	in.ID = 9
	return in, nil
}

func (s *stubRecords) DeleteRegion(_ context.Context, id int64) error {
	return s.call("delete %d", id)
}

func (s *stubRecords) AddZone(_ context.Context, id int64, zone string) (services.RegionView, error) {
	if err := s.call("add %d %s", id, zone); err != nil {
		return services.RegionView{}, err
	}
	return services.RegionView{Region: core.Region{ID: id, Name: "EMEA"}, Zones: []string{"eu-1", zone}}, nil
}

func (s *stubRecords) RemoveZone(_ context.Context, id int64, zone string) (services.RegionView, error) {
	if err := s.call("remove %d %s", id, zone); err != nil {
		return services.RegionView{}, err
	}
	return services.RegionView{Region: core.Region{ID: id, Name: "EMEA"}, Zones: []string{}}, nil
}

func newRecordsServer(t *testing.T, records RecordEditor) *Server {
	t.Helper()
	s := NewServer(":0", &stubReports{}, Options{
		RefreshesPerMinute: 100,
		Logger:             applog.Discard(),
		Now:                func() time.Time { return fixedNow },
		Records:            records,
	})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func TestRecordEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		status   int
		call     string
		contains string
	}{
		{"record", http.MethodGet, "/api/records/rewards/7", "", http.StatusOK, "record rewards 7", `"reward_name":"Mug"`},
		{"record bad id", http.MethodGet, "/api/records/rewards/x", "", http.StatusBadRequest, "", "invalid id"},
		{"record zero id", http.MethodGet, "/api/records/rewards/0", "", http.StatusBadRequest, "", "invalid id"},
		{"cache stats", http.MethodGet, "/api/records/stats", "", http.StatusOK, "", `"hits":4`},
		{"region", http.MethodGet, "/api/regions/3", "", http.StatusOK, "region 3", `"zones":["eu-1"]`},
		{"create", http.MethodPost, "/api/regions", `{"region_name":"APAC","zones":["ap-1"]}`, http.StatusCreated, "create APAC [ap-1]", `"region_id":9`},
		{"create bad body", http.MethodPost, "/api/regions", `{`, http.StatusBadRequest, "", "invalid JSON"},
		{"delete", http.MethodDelete, "/api/regions/3", "", http.StatusNoContent, "delete 3", ""},
		{"add zone", http.MethodPost, "/api/regions/3/zones", `{"zone":"eu-2"}`, http.StatusOK, "add 3 eu-2", `"eu-2"`},
		{"remove zone", http.MethodDelete, "/api/regions/3/zones/eu-1", "", http.StatusOK, "remove 3 eu-1", `"zones":[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubRecords{}
			s := newRecordsServer(t, stub)
			rr := httptest.NewRecorder()
			s.Handler.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))

			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.status, rr.Body.String())
			}
			if tt.contains != "" && !strings.Contains(rr.Body.String(), tt.contains) {
				t.Errorf("body %q missing %q", rr.Body.String(), tt.contains)
			}
			var wantCalls []string
			if tt.call != "" {
				wantCalls = []string{tt.call}
			}
			if strings.Join(stub.calls, ";") != strings.Join(wantCalls, ";") {
				t.Errorf("calls = %v, want %v", stub.calls, wantCalls)
			}
		})
	}
}

func TestRecordErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown resource", fmt.Errorf("%q: %w", "users", services.ErrUnknownResource), http.StatusNotFound},
		{"missing name", core.ErrMissingName, http.StatusBadRequest},
		{"edit in progress", fmt.Errorf("region 3: %w", services.ErrEditInProgress), http.StatusConflict},
		{"upstream 404", fmt.Errorf("get: %w", &api.StatusError{Method: "GET", Endpoint: "/regions/3", StatusCode: 404}), http.StatusNotFound},
		{"upstream 500", fmt.Errorf("get: %w", &api.StatusError{Method: "GET", Endpoint: "/regions/3", StatusCode: 500}), http.StatusBadGateway},
		{"transport", errors.New("connection refused"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newRecordsServer(t, &stubRecords{err: tt.err})
			rr := httptest.NewRecorder()
			s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/regions/3", nil))
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			var body map[string]string
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil || body["error"] == "" {
				t.Fatalf("expected JSON error body, got %v (%v)", body, err)
			}
		})
	}
}

func TestRecordEndpointsNeedRecordEditor(t *testing.T) {
	s := newTestServer(t, &stubReports{})
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/regions/3", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}
