package eligibility

import (
	"strings"
	"unicode/utf8"

	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	domainerrors "contestvote/contexts/contest-voting/ballot-engine/domain/errors"
)

// normalizeSubmission resolves write-ins against the category's contestants
// and validates the resulting payload. It returns the payload the store will
// persist and the write-ins that still need a contestant row.
func normalizeSubmission(
	category entities.Category,
	contestants []entities.Contestant,
	submission Submission,
) (entities.Payload, []entities.WriteIn, error) {
	if submission.Payload == nil {
		return nil, nil, domainerrors.InvalidPayload(domainerrors.RuleMissingPayload)
	}
	if submission.Payload.Method() != category.VotingMethod {
		return nil, nil, domainerrors.InvalidPayload(domainerrors.RuleMethodMismatch)
	}

	known := make(map[string]bool, len(contestants)+len(submission.WriteIns))
	byName := make(map[string]string, len(contestants))
	for _, contestant := range contestants {
		known[contestant.ContestantID] = true
		byName[strings.ToLower(strings.TrimSpace(contestant.Name))] = contestant.ContestantID
	}

	payload := submission.Payload
	fresh := make([]entities.WriteIn, 0, len(submission.WriteIns))
	if len(submission.WriteIns) > 0 {
		if !category.AllowWriteIns {
			return nil, nil, domainerrors.InvalidPayload(domainerrors.RuleWriteInsNotAllowed)
		}
		aliases := make(map[string]string, len(submission.WriteIns))
		seenNames := make(map[string]bool, len(submission.WriteIns))
		for _, writeIn := range submission.WriteIns {
			ref := strings.TrimSpace(writeIn.Ref)
			name := strings.TrimSpace(writeIn.Name)
			nameKey := strings.ToLower(name)
			if ref == "" || name == "" || utf8.RuneCountInString(name) > entities.MaxWriteInNameLength {
				return nil, nil, domainerrors.InvalidPayload(domainerrors.RuleInvalidWriteIn)
			}
			if known[ref] || aliases[ref] != "" || seenNames[nameKey] {
				return nil, nil, domainerrors.InvalidPayload(domainerrors.RuleInvalidWriteIn)
			}
			seenNames[nameKey] = true
			if existingID, ok := byName[nameKey]; ok {
				aliases[ref] = existingID
				continue
			}
			known[ref] = true
			fresh = append(fresh, entities.WriteIn{Ref: ref, Name: name})
		}
		payload = entities.RewriteContestantIDs(payload, aliases)
	}

	normalized, err := validatePayload(category, payload, known)
	if err != nil {
		return nil, nil, err
	}

	referenced := make(map[string]bool)
	for _, id := range normalized.ContestantIDs() {
		referenced[id] = true
	}
	for _, writeIn := range fresh {
		if !referenced[writeIn.Ref] {
			return nil, nil, domainerrors.InvalidPayload(domainerrors.RuleUnreferencedWriteIn)
		}
	}
	return normalized, fresh, nil
}

// validatePayload checks a payload against its category's method and
// parameters. known holds every contestant id the ballot may reference.
func validatePayload(
	category entities.Category,
	payload entities.Payload,
	known map[string]bool,
) (entities.Payload, error) {
	switch p := payload.(type) {
	case entities.RankPayload:
		ranking := trimIDs(p.Ranking)
		if len(ranking) == 0 {
			return nil, domainerrors.InvalidPayload(domainerrors.RuleEmptySelection)
		}
		if category.MaxRankings > 0 && len(ranking) > category.MaxRankings {
			return nil, domainerrors.InvalidPayload(domainerrors.RuleRankingExceedsMax)
		}
		if err := checkDistinctKnown(ranking, known); err != nil {
			return nil, err
		}
		return entities.RankPayload{Ranking: ranking}, nil

	case entities.PickOnePayload:
		id := strings.TrimSpace(p.ContestantID)
		if id == "" {
			return nil, domainerrors.InvalidPayload(domainerrors.RuleEmptySelection)
		}
		if !known[id] {
			return nil, domainerrors.InvalidPayload(domainerrors.RuleUnknownContestant)
		}
		return entities.PickOnePayload{ContestantID: id}, nil

	case entities.MultipleChoicePayload:
		selections := trimIDs(p.Selections)
		if len(selections) == 0 {
			return nil, domainerrors.InvalidPayload(domainerrors.RuleEmptySelection)
		}
		if category.MaxSelections > 0 && len(selections) > category.MaxSelections {
			return nil, domainerrors.InvalidPayload(domainerrors.RuleSelectionsExceedMax)
		}
		if err := checkDistinctKnown(selections, known); err != nil {
			return nil, err
		}
		return entities.MultipleChoicePayload{Selections: selections}, nil

	case entities.RatingPayload:
		if len(p.Ratings) == 0 {
			return nil, domainerrors.InvalidPayload(domainerrors.RuleEmptySelection)
		}
		ratings := make(map[string]int, len(p.Ratings))
		for _, rawID := range p.ContestantIDs() {
			id := strings.TrimSpace(rawID)
			value := p.Ratings[rawID]
			if id == "" || !known[id] {
				return nil, domainerrors.InvalidPayload(domainerrors.RuleUnknownContestant)
			}
			if _, dup := ratings[id]; dup {
				return nil, domainerrors.InvalidPayload(domainerrors.RuleDuplicateContestant)
			}
			if value < 1 || value > category.RatingScale {
				return nil, domainerrors.InvalidPayload(domainerrors.RuleRatingOutOfRange)
			}
			ratings[id] = value
		}
		return entities.RatingPayload{Ratings: ratings}, nil

	case entities.HeadToHeadPayload:
		if len(p.Matchups) == 0 {
			return nil, domainerrors.InvalidPayload(domainerrors.RuleEmptySelection)
		}
		matchups := make([]entities.Matchup, 0, len(p.Matchups))
		for _, matchup := range p.Matchups {
			winner := strings.TrimSpace(matchup.WinnerID)
			loser := strings.TrimSpace(matchup.LoserID)
			if !known[winner] || !known[loser] {
				return nil, domainerrors.InvalidPayload(domainerrors.RuleUnknownContestant)
			}
			if winner == loser {
				return nil, domainerrors.InvalidPayload(domainerrors.RuleSelfMatchup)
			}
			matchups = append(matchups, entities.Matchup{WinnerID: winner, LoserID: loser})
		}
		return entities.HeadToHeadPayload{Matchups: matchups}, nil

	case nil:
		return nil, domainerrors.InvalidPayload(domainerrors.RuleMissingPayload)
	default:
		return nil, domainerrors.InvalidPayload(domainerrors.RuleMethodMismatch)
	}
}

func checkDistinctKnown(ids []string, known map[string]bool) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return domainerrors.InvalidPayload(domainerrors.RuleDuplicateContestant)
		}
		seen[id] = true
		if !known[id] {
			return domainerrors.InvalidPayload(domainerrors.RuleUnknownContestant)
		}
	}
	return nil
}

func trimIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strings.TrimSpace(id))
	}
	return out
}
