package ballots

import (
	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	"contestvote/contexts/contest-voting/ballot-engine/ports"

	json "github.com/goccy/go-json"
)

func newBallotAppendedEnvelope(
	eventID string,
	ballot entities.Ballot,
	method entities.VotingMethod,
	writeInCount int,
) (ports.EventEnvelope, error) {
	// Partitioned by category so consumers refreshing a category see its
	// ballots in order.
	payload, err := json.Marshal(ports.BallotAppendedEvent{
		BallotID:     ballot.BallotID,
		ContestID:    ballot.ContestID,
		CategoryID:   ballot.CategoryID,
		VotingMethod: method,
		WriteInCount: writeInCount,
		CastAt:       ballot.CastAt.UTC(),
	})
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        ports.EventTypeBallotAppended,
		OccurredAt:       ballot.CastAt.UTC(),
		SourceService:    "ballot-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "category_id",
		PartitionKey:     ballot.CategoryID,
		Data:             payload,
	}, nil
}
