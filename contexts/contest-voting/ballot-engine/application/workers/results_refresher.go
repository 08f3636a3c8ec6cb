package workers

import (
	"context"
	"log/slog"
	"strings"

	application "contestvote/contexts/contest-voting/ballot-engine/application"
	"contestvote/contexts/contest-voting/ballot-engine/application/queries"
	"contestvote/contexts/contest-voting/ballot-engine/ports"

	json "github.com/goccy/go-json"
)

const defaultRefresherCG = "ballot-engine-results-refresher-cg"

// ResultsRefresher keeps cached and live category results current as
// ballot.appended events arrive.
type ResultsRefresher struct {
	Subscriber    ports.EventSubscriber
	Results       queries.ResultsUseCase
	Contests      ports.ContestRepository
	Live          ports.LivePublisher
	Clock         ports.Clock
	ConsumerGroup string
	Logger        *slog.Logger
}

func (r ResultsRefresher) Start(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	group := strings.TrimSpace(r.ConsumerGroup)
	if group == "" {
		group = defaultRefresherCG
	}
	if err := r.Subscriber.Subscribe(ctx, ports.EventTypeBallotAppended, group, r.Handle); err != nil {
		logger.Error("results refresher subscribe failed",
			"event", "ballot_engine_results_refresher_subscribe_failed",
			"module", "contest-voting/ballot-engine",
			"layer", "worker",
			"topic", ports.EventTypeBallotAppended,
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("results refresher subscription active",
		"event", "ballot_engine_results_refresher_started",
		"module", "contest-voting/ballot-engine",
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

// Handle invalidates the category's cached result and, while the contest is
// running with live results on, pushes the recomputed result to subscribers.
func (r ResultsRefresher) Handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(r.Logger)
	if event.EventType != ports.EventTypeBallotAppended {
		return nil
	}
	var data ports.BallotAppendedEvent
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logger.Error("results refresher decode failed",
			"event", "ballot_engine_results_refresher_decode_failed",
			"module", "contest-voting/ballot-engine",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	if strings.TrimSpace(data.CategoryID) == "" {
		return nil
	}

	if err := r.Results.InvalidateCategoryResult(ctx, data.CategoryID); err != nil {
		return err
	}
	if r.Live == nil {
		return nil
	}

	contest, err := r.Contests.GetContest(ctx, data.ContestID)
	if err != nil {
		return err
	}
	if !contest.ShowLiveResults || contest.EndedAt(application.ResolveNow(r.Clock)) {
		return nil
	}
	result, err := r.Results.GetCategoryResult(ctx, data.CategoryID)
	if err != nil {
		return err
	}
	if err := r.Live.PublishCategoryResult(ctx, result); err != nil {
		logger.Warn("live results push failed",
			"event", "ballot_engine_live_push_failed",
			"module", "contest-voting/ballot-engine",
			"layer", "worker",
			"category_id", data.CategoryID,
			"error", err.Error(),
		)
		return err
	}
	logger.Debug("live results pushed",
		"event", "ballot_engine_live_pushed",
		"module", "contest-voting/ballot-engine",
		"layer", "worker",
		"category_id", data.CategoryID,
		"total_ballots", result.TotalBallots,
	)
	return nil
}
