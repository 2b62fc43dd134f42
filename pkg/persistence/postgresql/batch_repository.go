package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
)

const batchColumns = `
	id
  , name
  , type
  , contact_id
  , tasks_count
  , tasks_completed
  , created_at
  , completed_at
`

// BatchRepository handles scheduled batch database operations.
type BatchRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *BatchRepository) GetByID(ctx context.Context, id string) (*models.ScheduledBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM scheduled_batches WHERE id = $1`

	batch, err := scanBatch(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrBatchNotFound
		}

		return nil, fmt.Errorf("failed to scan scheduled batch: %w", err)
	}

	return batch, nil
}

func (r *BatchRepository) Create(ctx context.Context, batch *models.ScheduledBatch) error {
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}

	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}

	query := `
		INSERT INTO scheduled_batches (id, name, type, contact_id, tasks_count, tasks_completed, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		batch.ID,
		batch.Name,
		batch.Type,
		batch.ContactID,
		batch.TasksCount,
		batch.TasksCompleted,
		batch.CreatedAt,
		batch.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduled batch: %w", err)
	}

	return nil
}

func (r *BatchRepository) ListByContact(ctx context.Context, contactID string) ([]*models.ScheduledBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM scheduled_batches WHERE contact_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled batches: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	batches := make([]*models.ScheduledBatch, 0)

	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled batch: %w", err)
		}

		batches = append(batches, batch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheduled batches: %w", err)
	}

	return batches, nil
}

// IncrementCompleted bumps tasks_completed atomically and stamps completed_at
// the moment the batch fills.
func (r *BatchRepository) IncrementCompleted(ctx context.Context, id string) error {
	query := `
		UPDATE scheduled_batches SET
			tasks_completed = tasks_completed + 1,
			completed_at = CASE
				WHEN completed_at IS NULL AND tasks_count > 0 AND tasks_completed + 1 >= tasks_count THEN NOW()
				ELSE completed_at
			END
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment batch completion: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrBatchNotFound
	}

	return nil
}

func scanBatch(scanner interface{ Scan(dest ...any) error }) (*models.ScheduledBatch, error) {
	var batch models.ScheduledBatch

	err := scanner.Scan(
		&batch.ID,
		&batch.Name,
		&batch.Type,
		&batch.ContactID,
		&batch.TasksCount,
		&batch.TasksCompleted,
		&batch.CreatedAt,
		&batch.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	return &batch, nil
}
