package ports

import (
	"context"
	"time"

	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	"contestvote/internal/shared/events"
	"contestvote/internal/shared/outbox"
)

// ContestRepository reads contest configuration authored outside the engine.
type ContestRepository interface {
	GetContest(ctx context.Context, contestID string) (entities.Contest, error)
	GetCategory(ctx context.Context, categoryID string) (entities.Category, error)
	ListCategories(ctx context.Context, contestID string) ([]entities.Category, error)
}

// ContestantLister returns every contestant of a category, write-ins included.
type ContestantLister interface {
	ListContestants(ctx context.Context, categoryID string) ([]entities.Contestant, error)
}

// BallotFinder is the duplicate pre-check lookup. A hit is advisory only.
type BallotFinder interface {
	FindBallotByIdentity(ctx context.Context, categoryID string, key entities.IdentityKey) (entities.Ballot, bool, error)
}

// BallotLister reads all ballots of one category in a single query.
type BallotLister interface {
	ListBallots(ctx context.Context, categoryID string) ([]entities.Ballot, error)
}

type BallotReader interface {
	GetBallot(ctx context.Context, ballotID string) (entities.Ballot, error)
}

// AppendBallotRecord is everything one ballot append writes. Idempotency is
// nil when the caller sent no idempotency key.
type AppendBallotRecord struct {
	Ballot       entities.Ballot
	WriteIns     []entities.Contestant
	IdentityKeys []entities.IdentityKey
	Idempotency  *IdempotencyRecord
	Event        EventEnvelope
}

// BallotAppender persists a ballot atomically. Implementations must claim
// every IdentityKey under a (category, kind, value) uniqueness constraint in
// the same transaction as the ballot insert and return ErrConflict when any
// claim already exists; this constraint, not the eligibility pre-check, is
// what guarantees one ballot per voter. Write-ins whose name matches an
// existing contestant of the category (case-insensitively) reuse it, and the
// returned ballot carries the final contestant ids.
//
// A non-nil Idempotency record is claimed under a unique key in the same
// transaction, before the identity claims. A live record for the key fails
// the append with ErrIdempotencyKeyTaken; a record expired as of the ballot's
// CastAt is replaced.
type BallotAppender interface {
	AppendBallot(ctx context.Context, record AppendBallotRecord) (entities.Ballot, error)
}

type BallotRepository interface {
	ContestRepository
	ContestantLister
	BallotFinder
	BallotLister
	BallotReader
	BallotAppender
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	BallotID    string
	ExpiresAt   time.Time
}

// IdempotencyStore reads replay records. Records are written only by
// BallotAppender, together with the ballot they point at.
type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage = outbox.Message

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventEnvelope = events.Envelope

// EventPublisher publishes envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

// EventSubscriber registers a topic consumer callback.
type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

const EventTypeBallotAppended = "ballot.appended"

// BallotAppendedEvent is the Data body of a ballot.appended envelope.
type BallotAppendedEvent struct {
	BallotID     string                `json:"ballot_id"`
	ContestID    string                `json:"contest_id"`
	CategoryID   string                `json:"category_id"`
	VotingMethod entities.VotingMethod `json:"voting_method"`
	WriteInCount int                   `json:"write_in_count"`
	CastAt       time.Time             `json:"cast_at"`
}

// ResultCache stores computed category results. Implementations apply their
// own TTL; a miss is (zero, false, nil).
type ResultCache interface {
	GetCategoryResult(ctx context.Context, categoryID string) (entities.CategoryResult, bool, error)
	SetCategoryResult(ctx context.Context, result entities.CategoryResult) error
	Invalidate(ctx context.Context, categoryID string) error
}

// LivePublisher pushes fresh category results to live subscribers.
type LivePublisher interface {
	PublishCategoryResult(ctx context.Context, result entities.CategoryResult) error
}

// Metrics records engine outcomes.
type Metrics interface {
	ObserveVote(outcome string)
	ObserveTally(method entities.VotingMethod, elapsed time.Duration)
	ObserveCacheLookup(hit bool)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
