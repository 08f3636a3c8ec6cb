package queries

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"contestvote/contexts/contest-voting/ballot-engine/adapters/memory"
	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	domainerrors "contestvote/contexts/contest-voting/ballot-engine/domain/errors"
	"contestvote/contexts/contest-voting/ballot-engine/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	mu      sync.Mutex
	items   map[string]entities.CategoryResult
	readErr error
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string]entities.CategoryResult)}
}

func (c *mapCache) GetCategoryResult(_ context.Context, categoryID string) (entities.CategoryResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return entities.CategoryResult{}, false, c.readErr
	}
	result, ok := c.items[categoryID]
	return result, ok, nil
}

func (c *mapCache) SetCategoryResult(_ context.Context, result entities.CategoryResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[result.CategoryID] = result
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, categoryID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, categoryID)
	return nil
}

type lookupMetrics struct {
	mu     sync.Mutex
	hits   int
	misses int
	tally  int
}

func (m *lookupMetrics) ObserveVote(string) {}
func (m *lookupMetrics) ObserveTally(entities.VotingMethod, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tally++
}
func (m *lookupMetrics) ObserveCacheLookup(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
		return
	}
	m.misses++
}

var queryNow = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

func seedContest(t *testing.T, store *memory.Store) {
	t.Helper()
	store.PutContest(entities.Contest{
		ContestID:       "contest-1",
		OwnerAccountID:  "owner",
		Name:            "Readers Choice",
		IsPublic:        true,
		EndsAt:          queryNow.Add(time.Hour),
		ShowLiveResults: true,
	})
	store.PutCategory(entities.Category{CategoryID: "cat-1", ContestID: "contest-1", VotingMethod: entities.VotingMethodPickOne, Order: 1})
	store.PutCategory(entities.Category{CategoryID: "cat-2", ContestID: "contest-1", VotingMethod: entities.VotingMethodRank, Order: 0})
	for _, categoryID := range []string{"cat-1", "cat-2"} {
		store.PutContestant(entities.Contestant{ContestantID: categoryID + "-a", CategoryID: categoryID, Name: "A"})
		store.PutContestant(entities.Contestant{ContestantID: categoryID + "-b", CategoryID: categoryID, Name: "B", Order: 1})
	}

	appendBallot := func(id string, categoryID string, account string, payload entities.Payload) {
		_, err := store.AppendBallot(context.Background(), ports.AppendBallotRecord{
			Ballot: entities.Ballot{
				BallotID:   id,
				ContestID:  "contest-1",
				CategoryID: categoryID,
				AccountID:  account,
				Payload:    payload,
				CastAt:     queryNow,
			},
			IdentityKeys: []entities.IdentityKey{{Kind: entities.IdentityKindAccount, Value: account}},
			Event:        ports.EventEnvelope{EventID: "event-" + id, EventType: ports.EventTypeBallotAppended},
		})
		require.NoError(t, err)
	}
	appendBallot("b1", "cat-1", "u1", entities.PickOnePayload{ContestantID: "cat-1-b"})
	appendBallot("b2", "cat-1", "u2", entities.PickOnePayload{ContestantID: "cat-1-b"})
	appendBallot("b3", "cat-2", "u1", entities.RankPayload{Ranking: []string{"cat-2-a", "cat-2-b"}})
}

func newResults(t *testing.T) (ResultsUseCase, *memory.Store, *mapCache, *lookupMetrics) {
	t.Helper()
	store := memory.NewStore()
	store.SetNow(func() time.Time { return queryNow })
	seedContest(t, store)
	cache := newMapCache()
	metrics := &lookupMetrics{}
	return ResultsUseCase{
		Contests:    store,
		Contestants: store,
		Ballots:     store,
		Cache:       cache,
		Clock:       store,
		Metrics:     metrics,
		Concurrency: 2,
	}, store, cache, metrics
}

func TestGetCategoryResultReadsThroughCache(t *testing.T) {
	uc, store, cache, metrics := newResults(t)

	first, err := uc.GetCategoryResult(context.Background(), "cat-1")
	require.NoError(t, err)
	assert.Equal(t, 2, first.TotalBallots)
	assert.Equal(t, "cat-1-b", first.Entries[0].ContestantID)
	assert.Equal(t, 1, metrics.misses)

	_, err = store.AppendBallot(context.Background(), ports.AppendBallotRecord{
		Ballot: entities.Ballot{BallotID: "b9", ContestID: "contest-1", CategoryID: "cat-1", AccountID: "u9", Payload: entities.PickOnePayload{ContestantID: "cat-1-a"}},
		Event:  ports.EventEnvelope{EventID: "event-b9"},
	})
	require.NoError(t, err)

	cached, err := uc.GetCategoryResult(context.Background(), "cat-1")
	require.NoError(t, err)
	assert.Equal(t, 2, cached.TotalBallots)
	assert.Equal(t, 1, metrics.hits)

	require.NoError(t, uc.InvalidateCategoryResult(context.Background(), "cat-1"))
	_, found, _ := cache.GetCategoryResult(context.Background(), "cat-1")
	assert.False(t, found)

	fresh, err := uc.GetCategoryResult(context.Background(), "cat-1")
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.TotalBallots)
	assert.Equal(t, 2, metrics.tally)
}

func TestGetCategoryResultFallsBackWhenCacheFails(t *testing.T) {
	uc, _, cache, _ := newResults(t)
	cache.readErr = errors.New("cache offline")

	result, err := uc.GetCategoryResult(context.Background(), "cat-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalBallots)
}

func TestComputeCategoryResultUnknownCategory(t *testing.T) {
	uc, _, _, _ := newResults(t)
	_, err := uc.ComputeCategoryResult(context.Background(), "missing")
	require.ErrorIs(t, err, domainerrors.ErrCategoryNotFound)
	_, err = uc.ComputeCategoryResult(context.Background(), " ")
	require.ErrorIs(t, err, domainerrors.ErrCategoryNotFound)
}

func TestGetContestResult(t *testing.T) {
	uc, _, _, _ := newResults(t)

	doc, err := uc.GetContestResult(context.Background(), "contest-1", entities.ResultsView{})
	require.NoError(t, err)

	assert.Equal(t, "Readers Choice", doc.Name)
	assert.False(t, doc.Ended)
	assert.Equal(t, 3, doc.TotalBallots)
	assert.Equal(t, 2, doc.TotalVoters)
	require.Len(t, doc.Categories, 2)
	assert.Equal(t, "cat-2", doc.Categories[0].CategoryID)
	assert.Equal(t, "cat-1", doc.Categories[1].CategoryID)
	assert.Equal(t, queryNow, doc.ComputedAt)
}

func TestResultsVisibility(t *testing.T) {
	uc, store, _, _ := newResults(t)
	contest, err := store.GetContest(context.Background(), "contest-1")
	require.NoError(t, err)
	contest.ShowLiveResults = false
	store.PutContest(contest)

	_, err = uc.GetContestResult(context.Background(), "contest-1", entities.ResultsView{})
	require.ErrorIs(t, err, domainerrors.ErrResultsNotYetVisible)
	_, err = uc.GetVisibleCategoryResult(context.Background(), "cat-1", entities.ResultsView{})
	require.ErrorIs(t, err, domainerrors.ErrResultsNotYetVisible)

	owner := entities.ResultsView{ViewerAccountID: "owner"}
	_, err = uc.GetContestResult(context.Background(), "contest-1", owner)
	require.NoError(t, err)
	result, err := uc.GetVisibleCategoryResult(context.Background(), "cat-1", owner)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalBallots)
}

// writeInBetweenReads commits a write-in ballot right after the first of the
// two category reads returns.
type writeInBetweenReads struct {
	store *memory.Store
	t     *testing.T
	once  sync.Once
}

func (w *writeInBetweenReads) commitWriteIn() {
	w.once.Do(func() {
		_, err := w.store.AppendBallot(context.Background(), ports.AppendBallotRecord{
			Ballot: entities.Ballot{
				BallotID:   "b-write-in",
				ContestID:  "contest-1",
				CategoryID: "cat-1",
				AccountID:  "u7",
				Payload:    entities.PickOnePayload{ContestantID: "cat-1-gamma"},
				CastAt:     queryNow,
			},
			WriteIns: []entities.Contestant{{ContestantID: "cat-1-gamma", CategoryID: "cat-1", Name: "Gamma", WriteIn: true}},
			Event:    ports.EventEnvelope{EventID: "event-b-write-in"},
		})
		require.NoError(w.t, err)
	})
}

func (w *writeInBetweenReads) ListBallots(ctx context.Context, categoryID string) ([]entities.Ballot, error) {
	ballots, err := w.store.ListBallots(ctx, categoryID)
	w.commitWriteIn()
	return ballots, err
}

func (w *writeInBetweenReads) ListContestants(ctx context.Context, categoryID string) ([]entities.Contestant, error) {
	contestants, err := w.store.ListContestants(ctx, categoryID)
	w.commitWriteIn()
	return contestants, err
}

func TestComputeCategoryResultCountsEveryListedBallot(t *testing.T) {
	uc, store, _, _ := newResults(t)
	racing := &writeInBetweenReads{store: store, t: t}
	uc.Ballots = racing
	uc.Contestants = racing
	uc.Cache = nil

	result, err := uc.ComputeCategoryResult(context.Background(), "cat-1")
	require.NoError(t, err)

	counted := 0
	for _, entry := range result.Entries {
		counted += entry.Votes
	}
	assert.Equal(t, result.TotalBallots, counted)
	assert.Equal(t, 2, result.TotalBallots)

	uc.Ballots = store
	uc.Contestants = store
	fresh, err := uc.ComputeCategoryResult(context.Background(), "cat-1")
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.TotalBallots)
	for _, entry := range fresh.Entries {
		if entry.ContestantID == "cat-1-gamma" {
			assert.Equal(t, 1, entry.Votes)
		}
	}
}
