package workers

import (
	"context"
	"log/slog"

	application "contestvote/contexts/contest-voting/ballot-engine/application"
	"contestvote/contexts/contest-voting/ballot-engine/ports"

	json "github.com/goccy/go-json"
)

// OutboxRelay publishes persisted outbox records to the event bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce publishes a bounded batch of pending outbox rows and marks each row
// published only after the publish succeeds. It stops on the first failure
// so the next cycle picks up the remaining rows. It returns how many rows
// were published.
func (r OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("ballot outbox list failed",
			"event", "ballot_engine_outbox_list_failed",
			"module", "contest-voting/ballot-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}
	if len(pending) == 0 {
		logger.Debug("ballot outbox relay found no pending rows",
			"event", "ballot_engine_outbox_relay_noop",
			"module", "contest-voting/ballot-engine",
			"layer", "worker",
			"batch_size", limit,
		)
		return 0, nil
	}

	now := application.ResolveNow(r.Clock)
	published := 0
	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("ballot outbox decode failed",
				"event", "ballot_engine_outbox_decode_failed",
				"module", "contest-voting/ballot-engine",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return published, err
		}
		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("ballot outbox publish failed",
				"event", "ballot_engine_outbox_publish_failed",
				"module", "contest-voting/ballot-engine",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_id", event.EventID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			return published, err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("ballot outbox mark published failed",
				"event", "ballot_engine_outbox_mark_published_failed",
				"module", "contest-voting/ballot-engine",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return published, err
		}
		published++
	}

	logger.Info("ballot outbox relay cycle completed",
		"event", "ballot_engine_outbox_relay_completed",
		"module", "contest-voting/ballot-engine",
		"layer", "worker",
		"published_count", published,
	)
	return published, nil
}
