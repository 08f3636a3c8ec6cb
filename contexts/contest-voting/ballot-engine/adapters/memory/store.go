package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	domainerrors "contestvote/contexts/contest-voting/ballot-engine/domain/errors"
	"contestvote/contexts/contest-voting/ballot-engine/ports"
	"contestvote/internal/shared/outbox"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

type claimKey struct {
	categoryID string
	kind       entities.IdentityKind
	value      string
}

// Store is an in-process implementation of every ballot engine port. The
// claims map plays the role of the identity claim table: AppendBallot checks
// and claims under the write lock, so concurrent appends for one identity
// admit exactly one ballot.
type Store struct {
	mu sync.RWMutex

	contests    map[string]entities.Contest
	categories  map[string]entities.Category
	contestants map[string][]entities.Contestant
	ballots     map[string]entities.Ballot
	byCategory  map[string][]string
	claims      map[claimKey]string
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]ports.OutboxMessage

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		contests:    make(map[string]entities.Contest),
		categories:  make(map[string]entities.Category),
		contestants: make(map[string][]entities.Contestant),
		ballots:     make(map[string]entities.Ballot),
		byCategory:  make(map[string][]string),
		claims:      make(map[claimKey]string),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]ports.OutboxMessage),
	}
}

// SetNow pins the store clock. A nil fn restores wall time.
func (s *Store) SetNow(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = fn
}

func (s *Store) PutContest(contest entities.Contest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contests[strings.TrimSpace(contest.ContestID)] = contest
}

func (s *Store) PutCategory(category entities.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[strings.TrimSpace(category.CategoryID)] = category
}

func (s *Store) PutContestant(contestant entities.Contestant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	categoryID := strings.TrimSpace(contestant.CategoryID)
	items := s.contestants[categoryID]
	for i, existing := range items {
		if existing.ContestantID == contestant.ContestantID {
			items[i] = contestant
			return
		}
	}
	s.contestants[categoryID] = append(items, contestant)
}

func (s *Store) GetContest(_ context.Context, contestID string) (entities.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contest, ok := s.contests[strings.TrimSpace(contestID)]
	if !ok {
		return entities.Contest{}, domainerrors.ErrContestNotFound
	}
	return contest, nil
}

func (s *Store) GetCategory(_ context.Context, categoryID string) (entities.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	category, ok := s.categories[strings.TrimSpace(categoryID)]
	if !ok {
		return entities.Category{}, domainerrors.ErrCategoryNotFound
	}
	return category, nil
}

func (s *Store) ListCategories(_ context.Context, contestID string) ([]entities.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contestID = strings.TrimSpace(contestID)
	if _, ok := s.contests[contestID]; !ok {
		return nil, domainerrors.ErrContestNotFound
	}
	items := make([]entities.Category, 0)
	for _, category := range s.categories {
		if category.ContestID == contestID {
			items = append(items, category)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Order != items[j].Order {
			return items[i].Order < items[j].Order
		}
		return items[i].CategoryID < items[j].CategoryID
	})
	return items, nil
}

func (s *Store) ListContestants(_ context.Context, categoryID string) ([]entities.Contestant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.Contestant(nil), s.contestants[strings.TrimSpace(categoryID)]...), nil
}

func (s *Store) FindBallotByIdentity(
	_ context.Context,
	categoryID string,
	key entities.IdentityKey,
) (entities.Ballot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ballotID, ok := s.claims[claimKey{
		categoryID: strings.TrimSpace(categoryID),
		kind:       key.Kind,
		value:      key.Value,
	}]
	if !ok {
		return entities.Ballot{}, false, nil
	}
	return s.ballots[ballotID], true, nil
}

// ListBallots returns the category's ballots in cast order, read under one
// lock acquisition.
func (s *Store) ListBallots(_ context.Context, categoryID string) ([]entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byCategory[strings.TrimSpace(categoryID)]
	items := make([]entities.Ballot, 0, len(ids))
	for _, id := range ids {
		items = append(items, s.ballots[id])
	}
	return items, nil
}

func (s *Store) GetBallot(_ context.Context, ballotID string) (entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ballot, ok := s.ballots[strings.TrimSpace(ballotID)]
	if !ok {
		return entities.Ballot{}, domainerrors.ErrBallotNotFound
	}
	return ballot, nil
}

func (s *Store) AppendBallot(_ context.Context, record ports.AppendBallotRecord) (entities.Ballot, error) {
	ballot := record.Ballot
	payload, err := json.Marshal(record.Event)
	if err != nil {
		return entities.Ballot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ballots[ballot.BallotID]; exists {
		return entities.Ballot{}, domainerrors.ErrConflict
	}
	var claim ports.IdempotencyRecord
	if record.Idempotency != nil {
		claim = *record.Idempotency
		claim.Key = strings.TrimSpace(claim.Key)
		claim.BallotID = ballot.BallotID
		if existing, ok := s.idempotency[claim.Key]; ok && !expired(existing, ballot.CastAt) {
			return entities.Ballot{}, domainerrors.ErrIdempotencyKeyTaken
		}
	}
	keys := make([]claimKey, 0, len(record.IdentityKeys))
	for _, identity := range record.IdentityKeys {
		key := claimKey{categoryID: ballot.CategoryID, kind: identity.Kind, value: identity.Value}
		if _, claimed := s.claims[key]; claimed {
			return entities.Ballot{}, domainerrors.ErrConflict
		}
		keys = append(keys, key)
	}

	existing := s.contestants[ballot.CategoryID]
	aliases := make(map[string]string)
	created := make([]entities.Contestant, 0, len(record.WriteIns))
	for _, writeIn := range record.WriteIns {
		if match, ok := findContestantByName(existing, writeIn.Name); ok {
			aliases[writeIn.ContestantID] = match.ContestantID
			continue
		}
		writeIn.Order = nextContestantOrder(existing, created)
		created = append(created, writeIn)
	}
	ballot.Payload = entities.RewriteContestantIDs(ballot.Payload, aliases)

	s.contestants[ballot.CategoryID] = append(existing, created...)
	s.ballots[ballot.BallotID] = ballot
	s.byCategory[ballot.CategoryID] = append(s.byCategory[ballot.CategoryID], ballot.BallotID)
	for _, key := range keys {
		s.claims[key] = ballot.BallotID
	}
	if claim.Key != "" {
		s.idempotency[claim.Key] = claim
	}
	s.outbox[record.Event.EventID] = ports.OutboxMessage{
		OutboxID:     record.Event.EventID,
		EventType:    record.Event.EventType,
		PartitionKey: record.Event.PartitionKey,
		Payload:      payload,
		Status:       outbox.StatusPending,
		CreatedAt:    record.Event.OccurredAt.UTC(),
	}
	return ballot, nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key = strings.TrimSpace(key)
	record, ok := s.idempotency[key]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	if expired(record, now) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func expired(record ports.IdempotencyRecord, now time.Time) bool {
	return !record.ExpiresAt.IsZero() && now.UTC().After(record.ExpiresAt.UTC())
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]ports.OutboxMessage, 0)
	for _, message := range s.outbox {
		if message.Status == outbox.StatusPending {
			items = append(items, message)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].OutboxID < items[j].OutboxID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	message, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	published := publishedAt.UTC()
	message.Status = outbox.StatusPublished
	message.PublishedAt = &published
	s.outbox[message.OutboxID] = message
	return nil
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	now := s.now
	s.mu.RUnlock()
	if now != nil {
		return now().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func findContestantByName(items []entities.Contestant, name string) (entities.Contestant, bool) {
	for _, item := range items {
		if strings.EqualFold(strings.TrimSpace(item.Name), strings.TrimSpace(name)) {
			return item, true
		}
	}
	return entities.Contestant{}, false
}

func nextContestantOrder(existing []entities.Contestant, created []entities.Contestant) int {
	next := 0
	for _, item := range existing {
		if item.Order >= next {
			next = item.Order + 1
		}
	}
	for _, item := range created {
		if item.Order >= next {
			next = item.Order + 1
		}
	}
	return next
}

var _ ports.BallotRepository = (*Store)(nil)
var _ ports.IdempotencyStore = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
