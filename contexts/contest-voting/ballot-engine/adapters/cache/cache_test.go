package cache

import (
	"context"
	"testing"
	"time"

	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() entities.CategoryResult {
	return entities.CategoryResult{
		CategoryID:   "cat-1",
		ContestID:    "contest-1",
		VotingMethod: entities.VotingMethodPickOne,
		TotalBallots: 3,
		Entries: []entities.ContestantResult{
			{ContestantID: "a", Name: "Alpha", Rank: 1, Score: 2, Percentage: 66.5, Votes: 2, IsWinner: true, SharedTop: true},
			{ContestantID: "b", Name: "Beta", Rank: 2, Score: 1, Percentage: 33.5, Votes: 1},
		},
		VoterKeys: []string{"k1", "k2", "k3"},
	}
}

func TestLocalResultCacheRoundTrip(t *testing.T) {
	cache := NewLocalResultCache(1, time.Minute)
	ctx := context.Background()

	_, found, err := cache.GetCategoryResult(ctx, "cat-1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.SetCategoryResult(ctx, sampleResult()))
	got, found, err := cache.GetCategoryResult(ctx, " cat-1 ")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, sampleResult(), got)

	require.NoError(t, cache.Invalidate(ctx, "cat-1"))
	_, found, err = cache.GetCategoryResult(ctx, "cat-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTTLSecondsRoundsUp(t *testing.T) {
	assert.Equal(t, 0, ttlSeconds(0))
	assert.Equal(t, 1, ttlSeconds(10*time.Millisecond))
	assert.Equal(t, 30, ttlSeconds(30*time.Second))
	assert.Equal(t, 31, ttlSeconds(30*time.Second+time.Millisecond))
}

func TestRedisResultCacheReportsConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewRedisResultCache(client, time.Minute)

	_, found, err := cache.GetCategoryResult(context.Background(), "cat-1")
	require.Error(t, err)
	assert.False(t, found)
	require.Error(t, cache.SetCategoryResult(context.Background(), sampleResult()))
}
