// Package analytics folds nomination records into report views.
//
// All functions are pure: inputs are never modified and every slice in the
// result is freshly allocated.
package analytics

import (
	"sort"

	"rewards/internal/core"
)

// TopN is the length of the top rewards ranking.
const TopN = 5

// Inputs groups the collections one report is computed from.
type Inputs struct {
	Nominations []core.Nomination
	Rewards     []core.Reward
	Categories  []core.RewardCategory
	Employees   []core.Employee
}

// Filter keeps dated nominations inside the inclusive window.
// Nominations without a usable date are always dropped.
func Filter(noms []core.Nomination, r core.DateRange) []core.Nomination {
	out := make([]core.Nomination, 0, len(noms))
	for _, n := range noms {
		if !n.Date.Valid {
			continue
		}
		if r.Contains(n.Date.Time) {
			out = append(out, n)
		}
	}
	return out
}

// Build filters the nominations to the window and aggregates the result.
func Build(in Inputs, r core.DateRange) core.AnalyticsData {
	filtered := Filter(in.Nominations, r)
	idx := newIndex(in.Rewards, in.Categories)
	return core.AnalyticsData{
		MonthlyNominations: MonthlyTrend(filtered),
		RewardDistribution: idx.distribution(filtered),
		TopRewards:         idx.topRewards(filtered, TopN),
		Metrics:            ComputeMetrics(filtered),
	}
}

// MonthlyTrend counts nominations per YYYY-MM, ascending by month.
func MonthlyTrend(noms []core.Nomination) []core.MonthCount {
	out := []core.MonthCount{}
	pos := make(map[string]int)
	for _, n := range noms {
		if n.Date.Raw == "" {
			continue
		}
		month := n.Date.MonthKey()
		if i, ok := pos[month]; ok {
			out[i].Nominations++
			continue
		}
		pos[month] = len(out)
		out = append(out, core.MonthCount{Month: month, Nominations: 1})
	}
	// fixed-width keys, so lexicographic order is chronological
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// CategoryDistribution counts nominations per reward category name in
// first-seen order. Nominations whose reward does not resolve are skipped.
func CategoryDistribution(noms []core.Nomination, rewards []core.Reward, categories []core.RewardCategory) []core.CategoryShare {
	return newIndex(rewards, categories).distribution(noms)
}

// TopRewards ranks resolvable rewards by nomination count and keeps the first n.
// Equal counts keep their first-seen order.
func TopRewards(noms []core.Nomination, rewards []core.Reward, categories []core.RewardCategory, n int) []core.TopReward {
	return newIndex(rewards, categories).topRewards(noms, n)
}

// ComputeMetrics derives the scalar figures. UniqueRewards counts raw reward
// ids, including ids that do not resolve to a known reward.
func ComputeMetrics(noms []core.Nomination) core.Metrics {
	nominees := make(map[int64]struct{})
	rewardIDs := make(map[int64]struct{})
	approved := 0
	for _, n := range noms {
		nominees[n.NomineeID] = struct{}{}
		rewardIDs[n.RewardID] = struct{}{}
		if n.IsApproved() {
			approved++
		}
	}
	return core.Metrics{
		TotalNominations:    len(noms),
		ApprovedNominations: approved,
		ActiveEmployees:     len(nominees),
		UniqueRewards:       len(rewardIDs),
	}
}

// Popularity returns 100*count/max over the ranking, or 0 for an empty ranking.
func Popularity(top []core.TopReward, count int) float64 {
	max := 0
	for _, t := range top {
		if t.Count > max {
			max = t.Count
		}
	}
	if max == 0 {
		return 0
	}
	return float64(count) * 100 / float64(max)
}

type index struct {
	rewards    map[int64]core.Reward
	categories map[int64]core.RewardCategory
}

func newIndex(rewards []core.Reward, categories []core.RewardCategory) index {
	idx := index{
		rewards:    make(map[int64]core.Reward, len(rewards)),
		categories: make(map[int64]core.RewardCategory, len(categories)),
	}
	// later duplicates win, as when building a map from a list
	for _, r := range rewards {
		idx.rewards[r.ID] = r
	}
	for _, c := range categories {
		idx.categories[c.ID] = c
	}
	return idx
}

func (idx index) categoryName(r core.Reward) string {
	return core.CategoryName(idx.categories, r.CategoryID)
}

func (idx index) distribution(noms []core.Nomination) []core.CategoryShare {
	out := []core.CategoryShare{}
	pos := make(map[string]int)
	for _, n := range noms {
		reward, ok := idx.rewards[n.RewardID]
		if !ok {
			continue
		}
		name := idx.categoryName(reward)
		if i, ok := pos[name]; ok {
			out[i].Value++
			continue
		}
		pos[name] = len(out)
		out = append(out, core.CategoryShare{Name: name, Value: 1})
	}
	return out
}

type rewardKey struct {
	id   int64
	name string
}

func (idx index) topRewards(noms []core.Nomination, n int) []core.TopReward {
	counts := []core.TopReward{}
	pos := make(map[rewardKey]int)
	for _, nom := range noms {
		reward, ok := idx.rewards[nom.RewardID]
		if !ok {
			continue
		}
		key := rewardKey{id: reward.ID, name: reward.Name}
		if i, ok := pos[key]; ok {
			counts[i].Count++
			continue
		}
		pos[key] = len(counts)
		counts = append(counts, core.TopReward{
			RewardID:     reward.ID,
			RewardName:   reward.Name,
			CategoryName: idx.categoryName(reward),
			Count:        1,
		})
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	if n >= 0 && len(counts) > n {
		counts = counts[:n]
	}
	return counts
}
