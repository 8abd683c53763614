package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalStats_Record(t *testing.T) {
	g := NewGlobalStats()
	at := time.Date(2026, 3, 1, 21, 5, 0, 0, time.UTC)

	g.Record("jazz", "chill", at)
	g.Record("", "chill", at)
	g.Record("rock", "", at.Add(time.Hour))

	assert.EqualValues(t, 3, g.TotalRequests)
	assert.EqualValues(t, 1, g.PopularGenres["jazz"])
	assert.EqualValues(t, 1, g.PopularGenres["rock"])
	assert.EqualValues(t, 2, g.PopularMoods["chill"])
	assert.EqualValues(t, 2, g.PeakHours["21"])
	assert.EqualValues(t, 1, g.PeakHours["22"])
	assert.NotContains(t, g.PopularGenres, "")
}

func TestGlobalStats_JoinLeave(t *testing.T) {
	g := NewGlobalStats()
	assert.True(t, g.Join("a"))
	assert.False(t, g.Join("a"))
	assert.True(t, g.Join("b"))
	assert.True(t, g.Leave("a"))
	assert.False(t, g.Leave("a"))
	assert.Equal(t, []string{"b"}, g.ActiveUsers)
}

func TestGlobalStats_Snapshot(t *testing.T) {
	g := NewGlobalStats()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	genres := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	for i, genre := range genres {
		for n := 0; n <= i; n++ {
			g.Record(genre, "", at)
		}
	}
	for _, mood := range []string{"m1", "m2", "m2", "m3", "m4", "m5", "m6"} {
		g.Record("", mood, at)
	}
	g.Join("u1")

	snap := g.Snapshot()

	require.Len(t, snap.TopGenres, 10)
	assert.Equal(t, "l", snap.TopGenres[0].Key)
	assert.EqualValues(t, 12, snap.TopGenres[0].Count)
	assert.Equal(t, "c", snap.TopGenres[9].Key)

	require.Len(t, snap.TopMoods, 5)
	assert.Equal(t, Count{Key: "m2", Count: 2}, snap.TopMoods[0])
	assert.Equal(t, "m1", snap.TopMoods[1].Key, "ties break by key")
	assert.Equal(t, 1, snap.ActiveUsersCount)

	snap.PopularGenres["a"] = 99
	assert.EqualValues(t, 1, g.PopularGenres["a"], "snapshot must not alias live counters")
}
