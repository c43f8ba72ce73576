package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

// UnknownCategory is the display name used when a category id does not resolve.
const UnknownCategory = "Unknown"

type (
	ApprovalStatus string

	// NullDate is a nullable ISO-8601 date as served by the rewards API.
	// Raw keeps the exact string received so month keys can be sliced from it.
	NullDate struct {
		Raw   string
		Time  time.Time
		Valid bool
	}

	Nomination struct {
		ID             int64           `json:"nomination_id"`
		NomineeID      int64           `json:"nominee_id"`
		NominatorID    int64           `json:"nominator_id"`
		RewardID       int64           `json:"reward_id"`
		Date           NullDate        `json:"nomination_date"`
		ApprovalStatus *ApprovalStatus `json:"approval_status"`
	}

	Reward struct {
		ID         int64  `json:"reward_id"`
		Name       string `json:"reward_name"`
		CategoryID int64  `json:"category_id"`
	}

	RewardCategory struct {
		ID   int64  `json:"category_id"`
		Name string `json:"category_name"`
	}

	Employee struct {
		ID           int64  `json:"employee_id"`
		FirstName    string `json:"first_name"`
		LastName     string `json:"last_name"`
		DepartmentID int64  `json:"department_id"`
	}

	Region struct {
		ID                int64   `json:"region_id,omitempty"`
		Name              string  `json:"region_name"`
		AvailabilityZones *string `json:"availability_zones"`
		Points            int     `json:"points,omitempty"`
		CountryCode       string  `json:"country_code,omitempty"`
	}
)

var (
	ErrMissingName  = errors.New("missing name")
	ErrMissingID    = errors.New("missing identifier")
	ErrInvalidRange = errors.New("start is after end")
)

// dateLayouts are tried in order when decoding a nomination date.
// Timestamps without an offset are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate builds a NullDate from a raw API string. An empty string is null;
// an unparseable string keeps Raw but is not Valid.
func ParseDate(raw string) NullDate {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NullDate{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return NullDate{Raw: raw, Time: t, Valid: true}
		}
	}
	return NullDate{Raw: raw}
}

// DateOf formats t as a date-only NullDate.
func DateOf(t time.Time) NullDate {
	return ParseDate(t.UTC().Format("2006-01-02"))
}

// MonthKey returns the YYYY-MM prefix of the raw date string.
func (d NullDate) MonthKey() string {
	if len(d.Raw) < 7 {
		return d.Raw
	}
	return d.Raw[:7]
}

func (d NullDate) MarshalJSON() ([]byte, error) {
	if d.Raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(d.Raw)
}

func (d *NullDate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = NullDate{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = ParseDate(raw)
	return nil
}

// Status returns a pointer suitable for Nomination.ApprovalStatus.
func Status(s ApprovalStatus) *ApprovalStatus {
	return &s
}

// IsApproved reports an exact "approved" status; null and any other value are not approved.
func (n Nomination) IsApproved() bool {
	return n.ApprovalStatus != nil && *n.ApprovalStatus == StatusApproved
}

func (r Region) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrMissingName
	}
	return nil
}

// CategoryName resolves a category id against categories keyed by id, or
// UnknownCategory when the id is missing or the name is blank.
func CategoryName(categories map[int64]RewardCategory, id int64) string {
	if c, ok := categories[id]; ok && c.Name != "" {
		return c.Name
	}
	return UnknownCategory
}
