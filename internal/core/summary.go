package core

import "time"

// MonthCount is the number of nominations dated in one YYYY-MM month.
type MonthCount struct {
	Month       string `json:"month"`
	Nominations int    `json:"nominations"`
}

// CategoryShare counts nominations per reward category name.
type CategoryShare struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// TopReward is one row of the most nominated rewards ranking.
type TopReward struct {
	RewardID     int64  `json:"reward_id"`
	RewardName   string `json:"reward_name"`
	CategoryName string `json:"category_name"`
	Count        int    `json:"count"`
}

// Metrics are the scalar figures computed over the filtered nominations.
type Metrics struct {
	TotalNominations    int `json:"totalNominations"`
	ApprovedNominations int `json:"approvedNominations"`
	ActiveEmployees     int `json:"activeEmployees"`
	UniqueRewards       int `json:"uniqueRewards"`
}

// AnalyticsData is the full report handed to presentation consumers.
type AnalyticsData struct {
	MonthlyNominations []MonthCount    `json:"monthlyNominations"`
	RewardDistribution []CategoryShare `json:"rewardDistribution"`
	TopRewards         []TopReward     `json:"topRewards"`
	Metrics            Metrics         `json:"metrics"`
}

// DateRange is an inclusive [Start, End] window.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies within the window, bounds included.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

func (r DateRange) Validate() error {
	if r.Start.After(r.End) {
		return ErrInvalidRange
	}
	return nil
}

// LastDays returns the window of the given number of days ending at now.
func LastDays(now time.Time, days int) DateRange {
	return DateRange{Start: now.Add(-time.Duration(days) * 24 * time.Hour), End: now}
}

// Snapshot is a published report together with the refresh that produced it.
type Snapshot struct {
	Generation  uint64        `json:"generation"`
	Range       DateRange     `json:"range"`
	GeneratedAt time.Time     `json:"generated_at"`
	Data        AnalyticsData `json:"data"`
}
