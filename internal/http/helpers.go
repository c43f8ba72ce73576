package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rewards/internal/core"
)

var errBadDate = errors.New("invalid date")

// parseRange reads start and end as YYYY-MM-DD or RFC 3339. A date-only end
// covers its whole day. Missing bounds fall back to the default window.
func parseRange(startRaw, endRaw string, def core.DateRange) (core.DateRange, error) {
	r := def
	if v := strings.TrimSpace(startRaw); v != "" {
		t, err := parseBound(v, false)
		if err != nil {
			return core.DateRange{}, fmt.Errorf("start %q: %w", v, err)
		}
		r.Start = t
	}
	if v := strings.TrimSpace(endRaw); v != "" {
		t, err := parseBound(v, true)
		if err != nil {
			return core.DateRange{}, fmt.Errorf("end %q: %w", v, err)
		}
		r.End = t
	}
	return r, nil
}

func parseBound(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		if endOfDay {
			return t.Add(24*time.Hour - time.Nanosecond), nil
		}
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errBadDate
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
