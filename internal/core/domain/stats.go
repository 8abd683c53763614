package domain

import (
	"sort"
	"strconv"
	"time"
)

// GlobalStats are process-wide, purely additive usage counters.
type GlobalStats struct {
	TotalRequests int64            `json:"totalRequests"`
	PopularGenres map[string]int64 `json:"popularGenres"`
	PopularMoods  map[string]int64 `json:"popularMoods"`
	PeakHours     map[string]int64 `json:"peakHours"`
	ActiveUsers   []string         `json:"activeUsers"`
}

// NewGlobalStats returns empty stats.
func NewGlobalStats() GlobalStats {
	return GlobalStats{
		PopularGenres: map[string]int64{},
		PopularMoods:  map[string]int64{},
		PeakHours:     map[string]int64{},
		ActiveUsers:   []string{},
	}
}

// Normalize replaces nil maps left over from decoding an older blob.
func (g *GlobalStats) Normalize() {
	if g.PopularGenres == nil {
		g.PopularGenres = map[string]int64{}
	}
	if g.PopularMoods == nil {
		g.PopularMoods = map[string]int64{}
	}
	if g.PeakHours == nil {
		g.PeakHours = map[string]int64{}
	}
	if g.ActiveUsers == nil {
		g.ActiveUsers = []string{}
	}
}

// Record counts one request at time now.
func (g *GlobalStats) Record(genre, mood string, now time.Time) {
	g.Normalize()
	g.TotalRequests++
	if genre != "" {
		g.PopularGenres[genre]++
	}
	if mood != "" {
		g.PopularMoods[mood]++
	}
	g.PeakHours[strconv.Itoa(now.Hour())]++
}

// Join adds userID to the active set and reports whether it was new.
func (g *GlobalStats) Join(userID string) bool {
	for _, u := range g.ActiveUsers {
		if u == userID {
			return false
		}
	}
	g.ActiveUsers = append(g.ActiveUsers, userID)
	return true
}

// Leave removes userID from the active set and reports whether it was present.
func (g *GlobalStats) Leave(userID string) bool {
	for i, u := range g.ActiveUsers {
		if u == userID {
			g.ActiveUsers = append(g.ActiveUsers[:i], g.ActiveUsers[i+1:]...)
			return true
		}
	}
	return false
}

// Count is a ranked counter entry.
type Count struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// StatsSnapshot is the read model of GlobalStats.
type StatsSnapshot struct {
	TotalRequests    int64            `json:"totalRequests"`
	PopularGenres    map[string]int64 `json:"popularGenres"`
	PopularMoods     map[string]int64 `json:"popularMoods"`
	PeakHours        map[string]int64 `json:"peakHours"`
	ActiveUsersCount int              `json:"activeUsersCount"`
	ActiveUsers      []string         `json:"activeUsers"`
	TopGenres        []Count          `json:"topGenres"`
	TopMoods         []Count          `json:"topMoods"`
}

// Snapshot copies the counters and ranks the top 10 genres and top 5 moods.
func (g GlobalStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalRequests:    g.TotalRequests,
		PopularGenres:    copyCounts(g.PopularGenres),
		PopularMoods:     copyCounts(g.PopularMoods),
		PeakHours:        copyCounts(g.PeakHours),
		ActiveUsersCount: len(g.ActiveUsers),
		ActiveUsers:      append([]string{}, g.ActiveUsers...),
		TopGenres:        TopCounts(g.PopularGenres, 10),
		TopMoods:         TopCounts(g.PopularMoods, 5),
	}
}

// TopCounts ranks m by descending count; equal counts are ordered by key.
func TopCounts(m map[string]int64, n int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
