package entities

import (
	"sort"
	"strings"

	domainerrors "contestvote/contexts/contest-voting/ballot-engine/domain/errors"
)

// Payload is the method-specific body of a ballot. The set of variants is
// closed: RankPayload, PickOnePayload, MultipleChoicePayload, RatingPayload
// and HeadToHeadPayload.
type Payload interface {
	Method() VotingMethod
	// ContestantIDs lists every referenced contestant id in payload order.
	ContestantIDs() []string
	sealed()
}

type RankPayload struct {
	Ranking []string
}

type PickOnePayload struct {
	ContestantID string
}

type MultipleChoicePayload struct {
	Selections []string
}

// RatingPayload maps contestant id to rating. Omitted contestants abstain.
type RatingPayload struct {
	Ratings map[string]int
}

type HeadToHeadPayload struct {
	Matchups []Matchup
}

type Matchup struct {
	WinnerID string `json:"winner_id"`
	LoserID  string `json:"loser_id"`
}

func (RankPayload) Method() VotingMethod           { return VotingMethodRank }
func (PickOnePayload) Method() VotingMethod        { return VotingMethodPickOne }
func (MultipleChoicePayload) Method() VotingMethod { return VotingMethodMultipleChoice }
func (RatingPayload) Method() VotingMethod         { return VotingMethodRating }
func (HeadToHeadPayload) Method() VotingMethod     { return VotingMethodHeadToHead }

func (RankPayload) sealed()           {}
func (PickOnePayload) sealed()        {}
func (MultipleChoicePayload) sealed() {}
func (RatingPayload) sealed()         {}
func (HeadToHeadPayload) sealed()     {}

func (p RankPayload) ContestantIDs() []string {
	return append([]string(nil), p.Ranking...)
}

func (p PickOnePayload) ContestantIDs() []string {
	return []string{p.ContestantID}
}

func (p MultipleChoicePayload) ContestantIDs() []string {
	return append([]string(nil), p.Selections...)
}

// ContestantIDs returns rated contestants sorted by id so callers iterate the
// map deterministically.
func (p RatingPayload) ContestantIDs() []string {
	ids := make([]string, 0, len(p.Ratings))
	for id := range p.Ratings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p HeadToHeadPayload) ContestantIDs() []string {
	ids := make([]string, 0, len(p.Matchups)*2)
	for _, matchup := range p.Matchups {
		ids = append(ids, matchup.WinnerID, matchup.LoserID)
	}
	return ids
}

// RewriteContestantIDs returns a copy of payload with every id found in
// mapping replaced. Ids absent from mapping are kept.
func RewriteContestantIDs(payload Payload, mapping map[string]string) Payload {
	if len(mapping) == 0 || payload == nil {
		return payload
	}
	rewrite := func(id string) string {
		if replacement, ok := mapping[id]; ok {
			return replacement
		}
		return id
	}
	switch p := payload.(type) {
	case RankPayload:
		out := make([]string, 0, len(p.Ranking))
		for _, id := range p.Ranking {
			out = append(out, rewrite(id))
		}
		return RankPayload{Ranking: out}
	case PickOnePayload:
		return PickOnePayload{ContestantID: rewrite(p.ContestantID)}
	case MultipleChoicePayload:
		out := make([]string, 0, len(p.Selections))
		for _, id := range p.Selections {
			out = append(out, rewrite(id))
		}
		return MultipleChoicePayload{Selections: out}
	case RatingPayload:
		out := make(map[string]int, len(p.Ratings))
		for id, value := range p.Ratings {
			out[rewrite(id)] = value
		}
		return RatingPayload{Ratings: out}
	case HeadToHeadPayload:
		out := make([]Matchup, 0, len(p.Matchups))
		for _, matchup := range p.Matchups {
			out = append(out, Matchup{
				WinnerID: rewrite(matchup.WinnerID),
				LoserID:  rewrite(matchup.LoserID),
			})
		}
		return HeadToHeadPayload{Matchups: out}
	default:
		return payload
	}
}

// PayloadDocument is the tagged wire and storage form of a Payload. Exactly
// the fields of Method may be populated.
type PayloadDocument struct {
	Method       VotingMethod   `json:"method"`
	Ranking      []string       `json:"ranking,omitempty"`
	ContestantID string         `json:"contestant_id,omitempty"`
	Selections   []string       `json:"selections,omitempty"`
	Ratings      map[string]int `json:"ratings,omitempty"`
	Matchups     []Matchup      `json:"matchups,omitempty"`
}

func DocumentFromPayload(payload Payload) (PayloadDocument, error) {
	switch p := payload.(type) {
	case RankPayload:
		return PayloadDocument{Method: VotingMethodRank, Ranking: append([]string(nil), p.Ranking...)}, nil
	case PickOnePayload:
		return PayloadDocument{Method: VotingMethodPickOne, ContestantID: p.ContestantID}, nil
	case MultipleChoicePayload:
		return PayloadDocument{Method: VotingMethodMultipleChoice, Selections: append([]string(nil), p.Selections...)}, nil
	case RatingPayload:
		ratings := make(map[string]int, len(p.Ratings))
		for id, value := range p.Ratings {
			ratings[id] = value
		}
		return PayloadDocument{Method: VotingMethodRating, Ratings: ratings}, nil
	case HeadToHeadPayload:
		return PayloadDocument{Method: VotingMethodHeadToHead, Matchups: append([]Matchup(nil), p.Matchups...)}, nil
	case nil:
		return PayloadDocument{}, domainerrors.InvalidPayload(domainerrors.RuleMissingPayload)
	default:
		return PayloadDocument{}, domainerrors.InvalidPayload(domainerrors.RuleMethodMismatch)
	}
}

// Payload decodes the document into its variant. Fields that belong to a
// different method make the document invalid.
func (d PayloadDocument) Payload() (Payload, error) {
	method := VotingMethod(strings.TrimSpace(string(d.Method)))
	if !method.Valid() {
		return nil, domainerrors.InvalidPayload(domainerrors.RuleMethodMismatch)
	}
	if d.carriesForeignFields(method) {
		return nil, domainerrors.InvalidPayload(domainerrors.RuleConflictingPayloadBody)
	}
	switch method {
	case VotingMethodRank:
		return RankPayload{Ranking: trimAll(d.Ranking)}, nil
	case VotingMethodPickOne:
		return PickOnePayload{ContestantID: strings.TrimSpace(d.ContestantID)}, nil
	case VotingMethodMultipleChoice:
		return MultipleChoicePayload{Selections: trimAll(d.Selections)}, nil
	case VotingMethodRating:
		ratings := make(map[string]int, len(d.Ratings))
		for id, value := range d.Ratings {
			ratings[strings.TrimSpace(id)] = value
		}
		return RatingPayload{Ratings: ratings}, nil
	case VotingMethodHeadToHead:
		matchups := make([]Matchup, 0, len(d.Matchups))
		for _, matchup := range d.Matchups {
			matchups = append(matchups, Matchup{
				WinnerID: strings.TrimSpace(matchup.WinnerID),
				LoserID:  strings.TrimSpace(matchup.LoserID),
			})
		}
		return HeadToHeadPayload{Matchups: matchups}, nil
	}
	return nil, domainerrors.InvalidPayload(domainerrors.RuleMethodMismatch)
}

func (d PayloadDocument) carriesForeignFields(method VotingMethod) bool {
	if method != VotingMethodRank && len(d.Ranking) > 0 {
		return true
	}
	if method != VotingMethodPickOne && strings.TrimSpace(d.ContestantID) != "" {
		return true
	}
	if method != VotingMethodMultipleChoice && len(d.Selections) > 0 {
		return true
	}
	if method != VotingMethodRating && len(d.Ratings) > 0 {
		return true
	}
	if method != VotingMethodHeadToHead && len(d.Matchups) > 0 {
		return true
	}
	return false
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, strings.TrimSpace(value))
	}
	return out
}
