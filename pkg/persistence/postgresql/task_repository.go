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

const taskColumns = `
	id
  , contact_id
  , batch_id
  , title
  , description
  , priority
  , status
  , due_at
  , reminder_enabled
  , reminder_at
  , reminder_sent_at
  , created_at
  , updated_at
`

// TaskRepository handles scheduled task database operations.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.ScheduledTask, error) {
	query := `SELECT ` + taskColumns + ` FROM scheduled_tasks WHERE id = $1`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTaskNotFound
		}

		return nil, fmt.Errorf("failed to scan scheduled task: %w", err)
	}

	return task, nil
}

func (r *TaskRepository) Create(ctx context.Context, task *models.ScheduledTask) error {
	now := time.Now().UTC()

	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}

	task.UpdatedAt = now

	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	query := `
		INSERT INTO scheduled_tasks (id, contact_id, batch_id, title, description, priority,
			status, due_at, reminder_enabled, reminder_at, reminder_sent_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.ContactID,
		nullableID(task.BatchID),
		task.Title,
		task.Description,
		task.Priority,
		task.Status,
		task.DueAt,
		task.ReminderEnabled,
		task.ReminderAt,
		task.ReminderSentAt,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduled task: %w", err)
	}

	return nil
}

func (r *TaskRepository) Update(ctx context.Context, task *models.ScheduledTask) error {
	task.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE scheduled_tasks SET
			title = $2,
			description = $3,
			priority = $4,
			status = $5,
			due_at = $6,
			reminder_enabled = $7,
			reminder_at = $8,
			reminder_sent_at = $9,
			updated_at = $10
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Priority,
		task.Status,
		task.DueAt,
		task.ReminderEnabled,
		task.ReminderAt,
		task.ReminderSentAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update scheduled task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrTaskNotFound
	}

	return nil
}

func (r *TaskRepository) ListByContact(ctx context.Context, contactID string) ([]*models.ScheduledTask, error) {
	query := `SELECT ` + taskColumns + ` FROM scheduled_tasks WHERE contact_id = $1 ORDER BY due_at ASC`

	return r.queryMany(ctx, query, contactID)
}

func (r *TaskRepository) ListDueReminders(ctx context.Context, now time.Time) ([]*models.ScheduledTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM scheduled_tasks
		WHERE status = $1
		  AND reminder_enabled = true
		  AND reminder_sent_at IS NULL
		  AND reminder_at <= $2
		ORDER BY reminder_at ASC
	`

	return r.queryMany(ctx, query, models.TaskStatusTodo, now)
}

func (r *TaskRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.ScheduledTask, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled tasks: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	tasks := make([]*models.ScheduledTask, 0)

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled task: %w", err)
		}

		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheduled tasks: %w", err)
	}

	return tasks, nil
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (*models.ScheduledTask, error) {
	var (
		task       models.ScheduledTask
		batchID    sql.NullString
		reminderAt sql.NullTime
	)

	err := scanner.Scan(
		&task.ID,
		&task.ContactID,
		&batchID,
		&task.Title,
		&task.Description,
		&task.Priority,
		&task.Status,
		&task.DueAt,
		&task.ReminderEnabled,
		&reminderAt,
		&task.ReminderSentAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if batchID.Valid {
		task.BatchID = batchID.String
	}

	if reminderAt.Valid {
		task.ReminderAt = reminderAt.Time
	}

	return &task, nil
}

// nullableID maps an empty string to SQL NULL for optional UUID columns.
func nullableID(id string) any {
	if id == "" {
		return nil
	}

	return id
}
