package relay

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	domain "github.com/janhq/jan-relay/services/relay-api/internal/domain/relay"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/database/entities"
	"github.com/janhq/jan-relay/services/relay-api/internal/utils/platformerrors"
)

// PostgresRepository persists relay sessions, steps, drafts and generation
// jobs in PostgreSQL.
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Ping checks the connection for readiness probes.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateSession inserts a new chain.
func (r *PostgresRepository) CreateSession(ctx context.Context, session *domain.Session) error {
	entity := sessionToEntity(session)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return dbError(ctx, "failed to create session", err)
	}
	return nil
}

// GetSession loads a chain header.
func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var entity entities.RelaySession
	if err := r.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		return nil, lookupError(ctx, "session not found", "failed to load session", err)
	}
	return sessionFromEntity(&entity), nil
}

// LockSession loads a chain header with a row lock held until the
// transaction ends.
func (r *PostgresRepository) LockSession(ctx context.Context, id string) (*domain.Session, error) {
	var entity entities.RelaySession
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&entity, "id = ?", id).Error
	if err != nil {
		return nil, lookupError(ctx, "session not found", "failed to lock session", err)
	}
	return sessionFromEntity(&entity), nil
}

// UpdateSession writes the mutable header fields.
func (r *PostgresRepository) UpdateSession(ctx context.Context, session *domain.Session) error {
	result := r.db.WithContext(ctx).
		Model(&entities.RelaySession{}).
		Where("id = ?", session.ID).
		Updates(map[string]any{
			"title":      session.Title,
			"max_steps":  session.MaxSteps,
			"step_count": session.StepCount,
			"status":     string(session.Status),
			"updated_at": session.UpdatedAt,
		})
	if result.Error != nil {
		return dbError(ctx, "failed to update session", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound(ctx, "session not found")
	}
	return nil
}

// ListSteps returns the published steps ordered by step number.
func (r *PostgresRepository) ListSteps(ctx context.Context, sessionID string) ([]domain.Step, error) {
	var rows []entities.RelayStep
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("step_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, dbError(ctx, "failed to list steps", err)
	}
	steps := make([]domain.Step, 0, len(rows))
	for i := range rows {
		steps = append(steps, stepFromEntity(&rows[i]))
	}
	return steps, nil
}

// InsertStep publishes a step. The unique (session_id, step_number) index
// turns a lost race into ErrDuplicateStep.
func (r *PostgresRepository) InsertStep(ctx context.Context, step *domain.Step) error {
	entity := stepToEntity(step)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
				"step already published", domain.ErrDuplicateStep, "")
		}
		return dbError(ctx, "failed to insert step", err)
	}
	return nil
}

// CreateDraft inserts a draft.
func (r *PostgresRepository) CreateDraft(ctx context.Context, draft *domain.Draft) error {
	if err := r.db.WithContext(ctx).Create(draftToEntity(draft)).Error; err != nil {
		return dbError(ctx, "failed to create draft", err)
	}
	return nil
}

// GetDraft loads a draft from the primary; publish reads it right after creation.
func (r *PostgresRepository) GetDraft(ctx context.Context, id string) (*domain.Draft, error) {
	var entity entities.RelayDraft
	if err := r.db.WithContext(ctx).Clauses(dbresolver.Write).First(&entity, "id = ?", id).Error; err != nil {
		return nil, lookupError(ctx, "draft not found", "failed to load draft", err)
	}
	draft := draftFromEntity(&entity)
	return &draft, nil
}

// ListDrafts returns the author's drafts in a session, oldest first.
func (r *PostgresRepository) ListDrafts(ctx context.Context, sessionID, authorID string) ([]domain.Draft, error) {
	var rows []entities.RelayDraft
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND author_id = ?", sessionID, authorID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, dbError(ctx, "failed to list drafts", err)
	}
	drafts := make([]domain.Draft, 0, len(rows))
	for i := range rows {
		drafts = append(drafts, draftFromEntity(&rows[i]))
	}
	return drafts, nil
}

// DeleteDraft removes one draft.
func (r *PostgresRepository) DeleteDraft(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&entities.RelayDraft{}, "id = ?", id)
	if result.Error != nil {
		return dbError(ctx, "failed to delete draft", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound(ctx, "draft not found")
	}
	return nil
}

// DeleteDraftsByAuthor removes all of an author's drafts in a session.
func (r *PostgresRepository) DeleteDraftsByAuthor(ctx context.Context, sessionID, authorID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("session_id = ? AND author_id = ?", sessionID, authorID).
		Delete(&entities.RelayDraft{})
	if result.Error != nil {
		return 0, dbError(ctx, "failed to delete drafts", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteDraftsCreatedBefore removes drafts older than cutoff.
func (r *PostgresRepository) DeleteDraftsCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&entities.RelayDraft{})
	if result.Error != nil {
		return 0, dbError(ctx, "failed to sweep drafts", result.Error)
	}
	return result.RowsAffected, nil
}

// WithinTx runs fn in a database transaction.
func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(tx domain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresRepository{db: tx})
	})
}

func notFound(ctx context.Context, message string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, message, domain.ErrNotFound, "")
}

func lookupError(ctx context.Context, missing, failed string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(ctx, missing)
	}
	return dbError(ctx, failed, err)
}

func dbError(ctx context.Context, message string, err error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, message, err, "")
}
