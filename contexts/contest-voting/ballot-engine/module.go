package ballotengine

import (
	"log/slog"
	"time"

	httpadapter "contestvote/contexts/contest-voting/ballot-engine/adapters/http"
	"contestvote/contexts/contest-voting/ballot-engine/adapters/memory"
	"contestvote/contexts/contest-voting/ballot-engine/application/ballots"
	"contestvote/contexts/contest-voting/ballot-engine/application/commands"
	"contestvote/contexts/contest-voting/ballot-engine/application/eligibility"
	"contestvote/contexts/contest-voting/ballot-engine/application/queries"
	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	"contestvote/contexts/contest-voting/ballot-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Votes   commands.SubmitVoteUseCase
	Results queries.ResultsUseCase
	Store   *memory.Store
}

type Dependencies struct {
	Repository         ports.BallotRepository
	Idempotency        ports.IdempotencyStore
	Cache              ports.ResultCache
	Metrics            ports.Metrics
	Clock              ports.Clock
	IDGen              ports.IDGenerator
	IdempotencyTTL     time.Duration
	ResultsConcurrency int
	WinnerPolicy       entities.WinnerPolicy
	Logger             *slog.Logger
}

func NewModule(deps Dependencies) Module {
	guard := eligibility.Guard{
		Ballots:     deps.Repository,
		Contestants: deps.Repository,
		Clock:       deps.Clock,
		Logger:      deps.Logger,
	}
	store := ballots.Store{
		Ballots: deps.Repository,
		IDGen:   deps.IDGen,
		Clock:   deps.Clock,
		Logger:  deps.Logger,
	}
	votes := commands.SubmitVoteUseCase{
		Contests:       deps.Repository,
		Ballots:        deps.Repository,
		Idempotency:    deps.Idempotency,
		Guard:          guard,
		Store:          store,
		Clock:          deps.Clock,
		Metrics:        deps.Metrics,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	results := queries.ResultsUseCase{
		Contests:    deps.Repository,
		Contestants: deps.Repository,
		Ballots:     deps.Repository,
		Cache:       deps.Cache,
		Clock:       deps.Clock,
		Metrics:     deps.Metrics,
		Concurrency: deps.ResultsConcurrency,
		Logger:      deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Votes:        votes,
			Results:      results,
			WinnerPolicy: deps.WinnerPolicy,
			Logger:       deps.Logger,
		},
		Votes:   votes,
		Results: results,
	}
}

// NewInMemoryModule wires the module to a fresh memory store. Callers seed
// contests, categories and contestants through Module.Store.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:     store,
		Idempotency:    store,
		Clock:          store,
		IDGen:          store,
		IdempotencyTTL: 24 * time.Hour,
		WinnerPolicy:   entities.WinnerPolicySingle,
		Logger:         logger,
	})
	module.Store = store
	return module
}
