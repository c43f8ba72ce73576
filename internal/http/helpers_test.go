package http

import (
	"errors"
	"testing"
	"time"

	"rewards/internal/core"
)

func TestParseRange(t *testing.T) {
	def := core.DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	tests := []struct {
		name      string
		start     string
		end       string
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{name: "defaults", wantStart: def.Start, wantEnd: def.End},
		{
			name:      "date only end covers the day",
			start:     "2024-02-01",
			end:       "2024-02-29",
			wantStart: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 2, 29, 23, 59, 59, 999999999, time.UTC),
		},
		{
			name:      "rfc3339 normalised to utc",
			start:     "2024-02-01T10:00:00+02:00",
			wantStart: time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC),
			wantEnd:   def.End,
		},
		{
			name:      "inverted range is kept",
			start:     "2024-03-01",
			end:       "2024-02-01",
			wantStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 2, 1, 23, 59, 59, 999999999, time.UTC),
		},
		{name: "bad start", start: "yesterday", wantErr: true},
		{name: "bad end", end: "2024-13-01", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRange(tt.start, tt.end, def)
			if tt.wantErr {
				if !errors.Is(err, errBadDate) {
					t.Fatalf("error = %v, want errBadDate", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Start.Equal(tt.wantStart) || !got.End.Equal(tt.wantEnd) {
				t.Fatalf("got %v..%v, want %v..%v", got.Start, got.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}
