package postgresadapter

import (
	"strings"
	"time"

	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"

	json "github.com/goccy/go-json"
)

type contestModel struct {
	ID                  string     `gorm:"column:id;primaryKey"`
	OwnerAccountID      string     `gorm:"column:owner_account_id"`
	Name                string     `gorm:"column:name"`
	IsPublic            bool       `gorm:"column:is_public"`
	PasscodeHash        string     `gorm:"column:passcode_hash"`
	EmailDomain         string     `gorm:"column:email_domain"`
	OneVotePerDevice    bool       `gorm:"column:one_vote_per_device"`
	OneVotePerEmail     bool       `gorm:"column:one_vote_per_email"`
	OneVotePerAccount   bool       `gorm:"column:one_vote_per_account"`
	StartsAt            *time.Time `gorm:"column:starts_at"`
	EndsAt              time.Time  `gorm:"column:ends_at"`
	ShowLiveResults     bool       `gorm:"column:show_live_results"`
	ShowResultsAfterEnd bool       `gorm:"column:show_results_after_end"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
}

func (contestModel) TableName() string {
	return "contests"
}

func contestModelFromEntity(contest entities.Contest) contestModel {
	row := contestModel{
		ID:                  strings.TrimSpace(contest.ContestID),
		OwnerAccountID:      strings.TrimSpace(contest.OwnerAccountID),
		Name:                strings.TrimSpace(contest.Name),
		IsPublic:            contest.IsPublic,
		PasscodeHash:        contest.PasscodeHash,
		EmailDomain:         strings.TrimSpace(contest.EmailDomain),
		OneVotePerDevice:    contest.OneVotePerDevice,
		OneVotePerEmail:     contest.OneVotePerEmail,
		OneVotePerAccount:   contest.OneVotePerAccount,
		EndsAt:              contest.EndsAt.UTC(),
		ShowLiveResults:     contest.ShowLiveResults,
		ShowResultsAfterEnd: contest.ShowResultsAfterEnd,
		CreatedAt:           contest.CreatedAt.UTC(),
	}
	if contest.StartsAt != nil {
		startsAt := contest.StartsAt.UTC()
		row.StartsAt = &startsAt
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return row
}

func (m contestModel) toEntity() entities.Contest {
	contest := entities.Contest{
		ContestID:           m.ID,
		OwnerAccountID:      m.OwnerAccountID,
		Name:                m.Name,
		IsPublic:            m.IsPublic,
		PasscodeHash:        m.PasscodeHash,
		EmailDomain:         m.EmailDomain,
		OneVotePerDevice:    m.OneVotePerDevice,
		OneVotePerEmail:     m.OneVotePerEmail,
		OneVotePerAccount:   m.OneVotePerAccount,
		EndsAt:              m.EndsAt.UTC(),
		ShowLiveResults:     m.ShowLiveResults,
		ShowResultsAfterEnd: m.ShowResultsAfterEnd,
		CreatedAt:           m.CreatedAt.UTC(),
	}
	if m.StartsAt != nil {
		startsAt := m.StartsAt.UTC()
		contest.StartsAt = &startsAt
	}
	return contest
}

type categoryModel struct {
	ID            string `gorm:"column:id;primaryKey"`
	ContestID     string `gorm:"column:contest_id;index"`
	Name          string `gorm:"column:name"`
	VotingMethod  string `gorm:"column:voting_method"`
	MaxRankings   int    `gorm:"column:max_rankings"`
	MaxSelections int    `gorm:"column:max_selections"`
	RatingScale   int    `gorm:"column:rating_scale"`
	AllowWriteIns bool   `gorm:"column:allow_write_ins"`
	DisplayOrder  int    `gorm:"column:display_order"`
}

func (categoryModel) TableName() string {
	return "categories"
}

func categoryModelFromEntity(category entities.Category) categoryModel {
	return categoryModel{
		ID:            strings.TrimSpace(category.CategoryID),
		ContestID:     strings.TrimSpace(category.ContestID),
		Name:          strings.TrimSpace(category.Name),
		VotingMethod:  string(category.VotingMethod),
		MaxRankings:   category.MaxRankings,
		MaxSelections: category.MaxSelections,
		RatingScale:   category.RatingScale,
		AllowWriteIns: category.AllowWriteIns,
		DisplayOrder:  category.Order,
	}
}

func (m categoryModel) toEntity() entities.Category {
	return entities.Category{
		CategoryID:    m.ID,
		ContestID:     m.ContestID,
		Name:          m.Name,
		VotingMethod:  entities.VotingMethod(m.VotingMethod),
		MaxRankings:   m.MaxRankings,
		MaxSelections: m.MaxSelections,
		RatingScale:   m.RatingScale,
		AllowWriteIns: m.AllowWriteIns,
		Order:         m.DisplayOrder,
	}
}

type contestantModel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	CategoryID   string    `gorm:"column:category_id;index"`
	Name         string    `gorm:"column:name"`
	DisplayOrder int       `gorm:"column:display_order"`
	WriteIn      bool      `gorm:"column:write_in"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (contestantModel) TableName() string {
	return "contestants"
}

func contestantModelFromEntity(contestant entities.Contestant) contestantModel {
	row := contestantModel{
		ID:           strings.TrimSpace(contestant.ContestantID),
		CategoryID:   strings.TrimSpace(contestant.CategoryID),
		Name:         strings.TrimSpace(contestant.Name),
		DisplayOrder: contestant.Order,
		WriteIn:      contestant.WriteIn,
		CreatedAt:    contestant.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return row
}

func (m contestantModel) toEntity() entities.Contestant {
	return entities.Contestant{
		ContestantID: m.ID,
		CategoryID:   m.CategoryID,
		Name:         m.Name,
		Order:        m.DisplayOrder,
		WriteIn:      m.WriteIn,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

type ballotModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	ContestID     string    `gorm:"column:contest_id"`
	CategoryID    string    `gorm:"column:category_id;index:idx_ballots_category_cast,priority:1"`
	AccountID     string    `gorm:"column:account_id"`
	Email         string    `gorm:"column:email"`
	DeviceID      string    `gorm:"column:device_id"`
	NetworkOrigin string    `gorm:"column:network_origin"`
	UserAgent     string    `gorm:"column:user_agent"`
	VotingMethod  string    `gorm:"column:voting_method"`
	Payload       []byte    `gorm:"column:payload"`
	CastAt        time.Time `gorm:"column:cast_at;index:idx_ballots_category_cast,priority:2"`
}

func (ballotModel) TableName() string {
	return "ballots"
}

func ballotModelFromEntity(ballot entities.Ballot) (ballotModel, error) {
	document, err := entities.DocumentFromPayload(ballot.Payload)
	if err != nil {
		return ballotModel{}, err
	}
	payload, err := json.Marshal(document)
	if err != nil {
		return ballotModel{}, err
	}
	row := ballotModel{
		ID:            strings.TrimSpace(ballot.BallotID),
		ContestID:     strings.TrimSpace(ballot.ContestID),
		CategoryID:    strings.TrimSpace(ballot.CategoryID),
		AccountID:     strings.TrimSpace(ballot.AccountID),
		Email:         strings.TrimSpace(ballot.Email),
		DeviceID:      strings.TrimSpace(ballot.DeviceID),
		NetworkOrigin: strings.TrimSpace(ballot.NetworkOrigin),
		UserAgent:     strings.TrimSpace(ballot.UserAgent),
		VotingMethod:  string(document.Method),
		Payload:       payload,
		CastAt:        ballot.CastAt.UTC(),
	}
	if row.CastAt.IsZero() {
		row.CastAt = time.Now().UTC()
	}
	return row, nil
}

func (m ballotModel) toEntity() (entities.Ballot, error) {
	var document entities.PayloadDocument
	if err := json.Unmarshal(m.Payload, &document); err != nil {
		return entities.Ballot{}, err
	}
	payload, err := document.Payload()
	if err != nil {
		return entities.Ballot{}, err
	}
	return entities.Ballot{
		BallotID:      m.ID,
		ContestID:     m.ContestID,
		CategoryID:    m.CategoryID,
		AccountID:     m.AccountID,
		Email:         m.Email,
		DeviceID:      m.DeviceID,
		NetworkOrigin: m.NetworkOrigin,
		UserAgent:     m.UserAgent,
		Payload:       payload,
		CastAt:        m.CastAt.UTC(),
	}, nil
}

// identityClaimModel is the uniqueness source of truth: one row per
// (category, identity kind, identity value).
type identityClaimModel struct {
	CategoryID string    `gorm:"column:category_id;primaryKey"`
	Kind       string    `gorm:"column:kind;primaryKey"`
	Value      string    `gorm:"column:value;primaryKey"`
	BallotID   string    `gorm:"column:ballot_id;index"`
	ClaimedAt  time.Time `gorm:"column:claimed_at"`
}

func (identityClaimModel) TableName() string {
	return "ballot_identity_claims"
}

type idempotencyModel struct {
	Key         string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	BallotID    string    `gorm:"column:ballot_id"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "ballot_idempotency"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "ballot_outbox"
}
