package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsAggregator_RecordAndSnapshot(t *testing.T) {
	store := newMemStore()
	clock := func() time.Time { return time.Date(2025, 1, 1, 14, 30, 0, 0, time.UTC) }
	agg, err := NewStatsAggregator(context.Background(), store, clock)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, agg.RecordRequest(ctx, "jazz", "chill"))
	require.NoError(t, agg.RecordRequest(ctx, "jazz", ""))
	require.NoError(t, agg.RecordRequest(ctx, "", "party"))
	require.NoError(t, agg.UserJoined(ctx, "alice"))
	require.NoError(t, agg.UserJoined(ctx, "alice"))
	require.NoError(t, agg.UserJoined(ctx, "bob"))
	require.NoError(t, agg.UserLeft(ctx, "bob"))

	snap := agg.Snapshot()
	assert.EqualValues(t, 3, snap.TotalRequests)
	assert.EqualValues(t, 2, snap.PopularGenres["jazz"])
	assert.EqualValues(t, 3, snap.PeakHours["14"])
	assert.Equal(t, 1, snap.ActiveUsersCount)
	assert.Equal(t, []string{"alice"}, snap.ActiveUsers)
	require.Len(t, snap.TopMoods, 2)
	assert.Equal(t, "chill", snap.TopMoods[0].Key, "ties are ordered by key")
}

func TestStatsAggregator_PersistsAcrossRestarts(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	first, err := NewStatsAggregator(ctx, store, nil)
	require.NoError(t, err)
	require.NoError(t, first.RecordRequest(ctx, "rock", "upbeat"))
	require.NoError(t, first.UserJoined(ctx, "alice"))

	second, err := NewStatsAggregator(ctx, store, nil)
	require.NoError(t, err)
	snap := second.Snapshot()
	assert.EqualValues(t, 1, snap.TotalRequests)
	assert.EqualValues(t, 1, snap.PopularMoods["upbeat"])
	assert.Equal(t, []string{"alice"}, snap.ActiveUsers)
}

func TestStatsAggregator_TopLists(t *testing.T) {
	agg, err := NewStatsAggregator(context.Background(), newMemStore(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	genres := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	for i, g := range genres {
		for n := 0; n <= i; n++ {
			require.NoError(t, agg.RecordRequest(ctx, g, g))
		}
	}

	snap := agg.Snapshot()
	require.Len(t, snap.TopGenres, 10)
	require.Len(t, snap.TopMoods, 5)
	assert.Equal(t, "l", snap.TopGenres[0].Key)
	assert.EqualValues(t, 12, snap.TopGenres[0].Count)
	for i := 1; i < len(snap.TopGenres); i++ {
		assert.GreaterOrEqual(t, snap.TopGenres[i-1].Count, snap.TopGenres[i].Count)
	}
}

func TestStatsAggregator_CorruptBlob(t *testing.T) {
	store := newMemStore()
	store.blobs[statsKey] = []byte("{not json")
	_, err := NewStatsAggregator(context.Background(), store, nil)
	assert.Error(t, err)
}
