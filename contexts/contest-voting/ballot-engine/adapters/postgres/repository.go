package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	domainerrors "contestvote/contexts/contest-voting/ballot-engine/domain/errors"
	"contestvote/contexts/contest-voting/ballot-engine/ports"
	"contestvote/internal/shared/outbox"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates or updates the engine tables.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(
		&contestModel{},
		&categoryModel{},
		&contestantModel{},
		&ballotModel{},
		&identityClaimModel{},
		&idempotencyModel{},
		&outboxModel{},
	); err != nil {
		return r.logError("ballot_repo_migrate_failed", err)
	}
	return nil
}

func (r *Repository) SaveContest(ctx context.Context, contest entities.Contest) error {
	row := contestModelFromEntity(contest)
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return r.logError("ballot_repo_save_contest_failed", err, "contest_id", row.ID)
	}
	return nil
}

func (r *Repository) SaveCategory(ctx context.Context, category entities.Category) error {
	row := categoryModelFromEntity(category)
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return r.logError("ballot_repo_save_category_failed", err, "category_id", row.ID)
	}
	return nil
}

func (r *Repository) SaveContestant(ctx context.Context, contestant entities.Contestant) error {
	row := contestantModelFromEntity(contestant)
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return r.logError("ballot_repo_save_contestant_failed", err, "contestant_id", row.ID)
	}
	return nil
}

func (r *Repository) GetContest(ctx context.Context, contestID string) (entities.Contest, error) {
	var row contestModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(contestID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Contest{}, domainerrors.ErrContestNotFound
		}
		return entities.Contest{}, r.logError("ballot_repo_get_contest_failed", err, "contest_id", strings.TrimSpace(contestID))
	}
	return row.toEntity(), nil
}

func (r *Repository) GetCategory(ctx context.Context, categoryID string) (entities.Category, error) {
	var row categoryModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(categoryID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Category{}, domainerrors.ErrCategoryNotFound
		}
		return entities.Category{}, r.logError("ballot_repo_get_category_failed", err, "category_id", strings.TrimSpace(categoryID))
	}
	return row.toEntity(), nil
}

func (r *Repository) ListCategories(ctx context.Context, contestID string) ([]entities.Category, error) {
	if _, err := r.GetContest(ctx, contestID); err != nil {
		return nil, err
	}
	var rows []categoryModel
	if err := r.db.WithContext(ctx).
		Where("contest_id = ?", strings.TrimSpace(contestID)).
		Order("display_order ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_categories_failed", err, "contest_id", strings.TrimSpace(contestID))
	}
	items := make([]entities.Category, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListContestants(ctx context.Context, categoryID string) ([]entities.Contestant, error) {
	var rows []contestantModel
	if err := r.db.WithContext(ctx).
		Where("category_id = ?", strings.TrimSpace(categoryID)).
		Order("display_order ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_contestants_failed", err, "category_id", strings.TrimSpace(categoryID))
	}
	items := make([]entities.Contestant, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) FindBallotByIdentity(
	ctx context.Context,
	categoryID string,
	key entities.IdentityKey,
) (entities.Ballot, bool, error) {
	var claim identityClaimModel
	err := r.db.WithContext(ctx).
		Where("category_id = ? AND kind = ? AND value = ?", strings.TrimSpace(categoryID), string(key.Kind), key.Value).
		First(&claim).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Ballot{}, false, nil
		}
		return entities.Ballot{}, false, r.logError("ballot_repo_find_ballot_by_identity_failed", err,
			"category_id", strings.TrimSpace(categoryID),
			"identity_kind", string(key.Kind),
		)
	}
	ballot, err := r.GetBallot(ctx, claim.BallotID)
	if err != nil {
		return entities.Ballot{}, false, err
	}
	return ballot, true, nil
}

// ListBallots reads every ballot of the category in one query.
func (r *Repository) ListBallots(ctx context.Context, categoryID string) ([]entities.Ballot, error) {
	var rows []ballotModel
	if err := r.db.WithContext(ctx).
		Where("category_id = ?", strings.TrimSpace(categoryID)).
		Order("cast_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_ballots_failed", err, "category_id", strings.TrimSpace(categoryID))
	}
	items := make([]entities.Ballot, 0, len(rows))
	for _, row := range rows {
		ballot, err := row.toEntity()
		if err != nil {
			return nil, r.logError("ballot_repo_decode_ballot_failed", err, "ballot_id", row.ID)
		}
		items = append(items, ballot)
	}
	return items, nil
}

func (r *Repository) GetBallot(ctx context.Context, ballotID string) (entities.Ballot, error) {
	var row ballotModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(ballotID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Ballot{}, domainerrors.ErrBallotNotFound
		}
		return entities.Ballot{}, r.logError("ballot_repo_get_ballot_failed", err, "ballot_id", strings.TrimSpace(ballotID))
	}
	ballot, err := row.toEntity()
	if err != nil {
		return entities.Ballot{}, r.logError("ballot_repo_decode_ballot_failed", err, "ballot_id", row.ID)
	}
	return ballot, nil
}

// AppendBallot writes the idempotency claim, write-in contestants, the
// ballot, its identity claims and the outbox row in one transaction. A claim
// that already exists violates the claim table primary key, rolls everything
// back and yields ErrConflict. A live idempotency row for the same key yields
// ErrIdempotencyKeyTaken instead.
func (r *Repository) AppendBallot(ctx context.Context, record ports.AppendBallotRecord) (entities.Ballot, error) {
	ballot := record.Ballot
	eventPayload, err := json.Marshal(record.Event)
	if err != nil {
		return entities.Ballot{}, r.logError("ballot_repo_append_marshal_event_failed", err, "ballot_id", ballot.BallotID)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if record.Idempotency != nil {
			if err := claimIdempotencyKey(tx, *record.Idempotency, ballot); err != nil {
				return err
			}
		}

		aliases, err := insertWriteIns(tx, ballot.CategoryID, record.WriteIns)
		if err != nil {
			return err
		}
		ballot.Payload = entities.RewriteContestantIDs(ballot.Payload, aliases)

		row, err := ballotModelFromEntity(ballot)
		if err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		if len(record.IdentityKeys) > 0 {
			claims := make([]identityClaimModel, 0, len(record.IdentityKeys))
			for _, key := range record.IdentityKeys {
				claims = append(claims, identityClaimModel{
					CategoryID: row.CategoryID,
					Kind:       string(key.Kind),
					Value:      key.Value,
					BallotID:   row.ID,
					ClaimedAt:  row.CastAt,
				})
			}
			if err := tx.Create(&claims).Error; err != nil {
				return err
			}
		}

		createdAt := record.Event.OccurredAt.UTC()
		if createdAt.IsZero() {
			createdAt = row.CastAt
		}
		return tx.Create(&outboxModel{
			OutboxID:     strings.TrimSpace(record.Event.EventID),
			EventType:    strings.TrimSpace(record.Event.EventType),
			PartitionKey: strings.TrimSpace(record.Event.PartitionKey),
			Payload:      eventPayload,
			Status:       outbox.StatusPending,
			CreatedAt:    createdAt,
		}).Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrIdempotencyKeyTaken) {
			return entities.Ballot{}, err
		}
		if isUniqueViolation(err) {
			return entities.Ballot{}, domainerrors.ErrConflict
		}
		return entities.Ballot{}, r.logError("ballot_repo_append_ballot_failed", err,
			"ballot_id", ballot.BallotID,
			"category_id", ballot.CategoryID,
		)
	}
	return ballot, nil
}

// claimIdempotencyKey replaces an expired row for the key and inserts the
// claim. A concurrent claim on the same key blocks on the primary key until
// the other transaction ends, then fails here.
func claimIdempotencyKey(tx *gorm.DB, record ports.IdempotencyRecord, ballot entities.Ballot) error {
	key := strings.TrimSpace(record.Key)
	castAt := ballot.CastAt.UTC()
	if err := tx.
		Where("idempotency_key = ? AND expires_at < ? AND expires_at > ?", key, castAt, time.Time{}).
		Delete(&idempotencyModel{}).Error; err != nil {
		return err
	}
	err := tx.Create(&idempotencyModel{
		Key:         key,
		RequestHash: strings.TrimSpace(record.RequestHash),
		BallotID:    ballot.BallotID,
		ExpiresAt:   record.ExpiresAt.UTC(),
	}).Error
	if err != nil && isUniqueViolation(err) {
		return domainerrors.ErrIdempotencyKeyTaken
	}
	return err
}

// insertWriteIns creates write-in contestants that do not match an existing
// contestant name and returns the ids to substitute for those that do.
func insertWriteIns(tx *gorm.DB, categoryID string, writeIns []entities.Contestant) (map[string]string, error) {
	aliases := make(map[string]string)
	if len(writeIns) == 0 {
		return aliases, nil
	}
	var existing []contestantModel
	if err := tx.Where("category_id = ?", categoryID).Find(&existing).Error; err != nil {
		return nil, err
	}
	nextOrder := 0
	byName := make(map[string]string, len(existing))
	for _, row := range existing {
		byName[strings.ToLower(strings.TrimSpace(row.Name))] = row.ID
		if row.DisplayOrder >= nextOrder {
			nextOrder = row.DisplayOrder + 1
		}
	}

	rows := make([]contestantModel, 0, len(writeIns))
	for _, writeIn := range writeIns {
		if id, ok := byName[strings.ToLower(strings.TrimSpace(writeIn.Name))]; ok {
			aliases[writeIn.ContestantID] = id
			continue
		}
		writeIn.Order = nextOrder
		nextOrder++
		rows = append(rows, contestantModelFromEntity(writeIn))
	}
	if len(rows) > 0 {
		if err := tx.Create(&rows).Error; err != nil {
			return nil, err
		}
	}
	return aliases, nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("ballot_repo_idempotency_get_failed", err,
			"idempotency_key", strings.TrimSpace(key),
		)
	}
	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("idempotency_key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).Error; err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("ballot_repo_idempotency_expire_delete_failed", err,
				"idempotency_key", strings.TrimSpace(key),
			)
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		BallotID:    row.BallotID,
		ExpiresAt:   row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("created_at ASC").
		Order("outbox_id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			Status:       row.Status,
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outbox.StatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("ballot_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "contest-voting/ballot-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ballot repository operation failed", fields...)
	return err
}

// isUniqueViolation recognizes duplicate keys from gorm's error translation,
// from pgx directly, and from sqlite when translation is off.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ ports.BallotRepository = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
