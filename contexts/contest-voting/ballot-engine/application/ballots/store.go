package ballots

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	application "contestvote/contexts/contest-voting/ballot-engine/application"
	"contestvote/contexts/contest-voting/ballot-engine/application/eligibility"
	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	domainerrors "contestvote/contexts/contest-voting/ballot-engine/domain/errors"
	"contestvote/contexts/contest-voting/ballot-engine/ports"
)

// Store persists admitted ballots.
type Store struct {
	Ballots ports.BallotAppender
	IDGen   ports.IDGenerator
	Clock   ports.Clock
	Logger  *slog.Logger
}

// Append writes the admitted ballot, its write-in contestants, its identity
// claims and a ballot.appended event as one unit. A uniqueness conflict at
// write time is reported as ErrDuplicateVote, the same outcome as the
// eligibility pre-check. A non-nil replay record is bound to the new ballot
// and claimed in the same write; ErrIdempotencyKeyTaken is returned as is.
func (s Store) Append(
	ctx context.Context,
	admission eligibility.Admission,
	replay *ports.IdempotencyRecord,
) (entities.Ballot, error) {
	logger := application.ResolveLogger(s.Logger)
	now := application.ResolveNow(s.Clock)

	ballotID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Ballot{}, err
	}

	refs := make(map[string]string, len(admission.WriteIns))
	writeIns := make([]entities.Contestant, 0, len(admission.WriteIns))
	for _, writeIn := range admission.WriteIns {
		contestantID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return entities.Ballot{}, err
		}
		refs[writeIn.Ref] = contestantID
		writeIns = append(writeIns, entities.Contestant{
			ContestantID: contestantID,
			CategoryID:   admission.CategoryID,
			Name:         strings.TrimSpace(writeIn.Name),
			WriteIn:      true,
			CreatedAt:    now,
		})
	}

	ballot := entities.Ballot{
		BallotID:      ballotID,
		ContestID:     admission.ContestID,
		CategoryID:    admission.CategoryID,
		AccountID:     admission.Voter.AccountID,
		Email:         admission.Voter.Email,
		DeviceID:      admission.Voter.DeviceID,
		NetworkOrigin: admission.Voter.NetworkOrigin,
		UserAgent:     admission.Voter.UserAgent,
		Payload:       entities.RewriteContestantIDs(admission.Payload, refs),
		CastAt:        now,
	}

	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Ballot{}, err
	}
	event, err := newBallotAppendedEnvelope(eventID, ballot, admission.Method, len(writeIns))
	if err != nil {
		return entities.Ballot{}, err
	}

	var claim *ports.IdempotencyRecord
	if replay != nil {
		bound := *replay
		bound.BallotID = ballotID
		claim = &bound
	}

	stored, err := s.Ballots.AppendBallot(ctx, ports.AppendBallotRecord{
		Ballot:       ballot,
		WriteIns:     writeIns,
		IdentityKeys: admission.IdentityKeys,
		Idempotency:  claim,
		Event:        event,
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrConflict) {
			logger.Warn("ballot append lost uniqueness race",
				"event", "ballot_engine_ballot_append_conflict",
				"module", "contest-voting/ballot-engine",
				"layer", "application",
				"contest_id", ballot.ContestID,
				"category_id", ballot.CategoryID,
			)
			return entities.Ballot{}, domainerrors.ErrDuplicateVote
		}
		logger.Error("ballot append failed",
			"event", "ballot_engine_ballot_append_failed",
			"module", "contest-voting/ballot-engine",
			"layer", "application",
			"contest_id", ballot.ContestID,
			"category_id", ballot.CategoryID,
			"error", err.Error(),
		)
		return entities.Ballot{}, err
	}

	logger.Info("ballot appended",
		"event", "ballot_engine_ballot_appended",
		"module", "contest-voting/ballot-engine",
		"layer", "application",
		"ballot_id", stored.BallotID,
		"contest_id", stored.ContestID,
		"category_id", stored.CategoryID,
		"voting_method", string(admission.Method),
		"write_in_count", len(writeIns),
	)
	return stored, nil
}
