package relay

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/status"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/database/entities"
	"github.com/janhq/jan-relay/services/relay-api/internal/utils/platformerrors"
)

// CreateJob inserts a queued job.
func (r *PostgresRepository) CreateJob(ctx context.Context, job *generation.Job) error {
	if err := r.db.WithContext(ctx).Create(jobToEntity(job)).Error; err != nil {
		return dbError(ctx, "failed to create job", err)
	}
	return nil
}

// GetJob loads a job from the primary.
func (r *PostgresRepository) GetJob(ctx context.Context, id string) (*generation.Job, error) {
	var entity entities.GenerationJob
	if err := r.db.WithContext(ctx).Clauses(dbresolver.Write).First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
				"job not found", generation.ErrJobNotFound, "")
		}
		return nil, dbError(ctx, "failed to load job", err)
	}
	return jobFromEntity(&entity), nil
}

// ClaimNextJob takes the oldest available queued job using
// FOR UPDATE SKIP LOCKED so concurrent workers never share a job.
func (r *PostgresRepository) ClaimNextJob(ctx context.Context, now time.Time) (*generation.Job, error) {
	var claimed *generation.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entity entities.GenerationJob
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND available_at <= ?", string(status.StatusQueued), now).
			Order("available_at ASC").
			Limit(1).
			Find(&entity).Error
		if err != nil {
			return err
		}
		if entity.ID == "" {
			return nil
		}

		entity.Status = string(status.StatusProcessing)
		entity.Attempts++
		entity.StartedAt = &now
		entity.UpdatedAt = now
		err = tx.Model(&entities.GenerationJob{}).
			Where("id = ?", entity.ID).
			Updates(map[string]any{
				"status":     entity.Status,
				"attempts":   entity.Attempts,
				"started_at": now,
				"updated_at": now,
			}).Error
		if err != nil {
			return err
		}
		claimed = jobFromEntity(&entity)
		return nil
	})
	if err != nil {
		return nil, dbError(ctx, "failed to claim job", err)
	}
	return claimed, nil
}

// CompleteJob records the output of a processing job.
func (r *PostgresRepository) CompleteJob(ctx context.Context, id, resultMediaID string, at time.Time) error {
	return r.finishJob(ctx, id, map[string]any{
		"status":          string(status.StatusCompleted),
		"result_media_id": resultMediaID,
		"error_message":   "",
		"completed_at":    at,
		"updated_at":      at,
	})
}

// FailJob marks a job as permanently failed.
func (r *PostgresRepository) FailJob(ctx context.Context, id, message string, at time.Time) error {
	return r.finishJob(ctx, id, map[string]any{
		"status":        string(status.StatusFailed),
		"error_message": message,
		"completed_at":  at,
		"updated_at":    at,
	})
}

// RequeueJob returns a processing job to the queue.
func (r *PostgresRepository) RequeueJob(ctx context.Context, id, message string, availableAt time.Time) error {
	return r.finishJob(ctx, id, map[string]any{
		"status":        string(status.StatusQueued),
		"error_message": message,
		"available_at":  availableAt,
		"updated_at":    time.Now().UTC(),
	})
}

func (r *PostgresRepository) finishJob(ctx context.Context, id string, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&entities.GenerationJob{}).
		Where("id = ? AND status = ?", id, string(status.StatusProcessing)).
		Updates(updates)
	if result.Error != nil {
		return dbError(ctx, "failed to update job", result.Error)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
			"job is not processing", status.ErrInvalidTransition, "")
	}
	return nil
}

// FailStaleJobs fails jobs stuck in processing since before cutoff.
func (r *PostgresRepository) FailStaleJobs(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&entities.GenerationJob{}).
		Where("status = ? AND started_at < ?", string(status.StatusProcessing), cutoff).
		Updates(map[string]any{
			"status":        string(status.StatusFailed),
			"error_message": message,
			"completed_at":  now,
			"updated_at":    now,
		})
	if result.Error != nil {
		return 0, dbError(ctx, "failed to fail stale jobs", result.Error)
	}
	return result.RowsAffected, nil
}

// CountQueuedJobs returns the queue depth.
func (r *PostgresRepository) CountQueuedJobs(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entities.GenerationJob{}).
		Where("status = ?", string(status.StatusQueued)).
		Count(&count).Error
	if err != nil {
		return 0, dbError(ctx, "failed to count queued jobs", err)
	}
	return count, nil
}
