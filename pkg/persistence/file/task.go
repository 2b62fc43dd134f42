package file

import (
	"context"
	"encoding/json"
	"time"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
)

const (
	taskKind  = "tasks"
	batchKind = "batches"
)

// TaskRepository stores scheduled tasks.
type TaskRepository struct {
	store *store
}

func (r *TaskRepository) GetByID(_ context.Context, id string) (*models.ScheduledTask, error) {
	var task models.ScheduledTask
	if err := r.store.read(taskKind, id, &task, persistence.ErrTaskNotFound); err != nil {
		return nil, err
	}

	return &task, nil
}

func (r *TaskRepository) Create(_ context.Context, task *models.ScheduledTask) error {
	return r.store.write(taskKind, task.ID, task)
}

func (r *TaskRepository) Update(_ context.Context, task *models.ScheduledTask) error {
	return r.store.write(taskKind, task.ID, task)
}

func (r *TaskRepository) ListByContact(_ context.Context, contactID string) ([]*models.ScheduledTask, error) {
	var tasks []*models.ScheduledTask

	err := r.store.each(taskKind, func(data []byte) error {
		var task models.ScheduledTask
		if err := json.Unmarshal(data, &task); err != nil {
			return err
		}

		if task.ContactID == contactID {
			tasks = append(tasks, &task)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return tasks, nil
}

func (r *TaskRepository) ListDueReminders(_ context.Context, now time.Time) ([]*models.ScheduledTask, error) {
	var due []*models.ScheduledTask

	err := r.store.each(taskKind, func(data []byte) error {
		var task models.ScheduledTask
		if err := json.Unmarshal(data, &task); err != nil {
			return err
		}

		if task.ReminderDue(now) {
			due = append(due, &task)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return due, nil
}

// BatchRepository stores task batch grouping metadata.
type BatchRepository struct {
	store *store
}

func (r *BatchRepository) GetByID(_ context.Context, id string) (*models.ScheduledBatch, error) {
	var batch models.ScheduledBatch
	if err := r.store.read(batchKind, id, &batch, persistence.ErrBatchNotFound); err != nil {
		return nil, err
	}

	return &batch, nil
}

func (r *BatchRepository) Create(_ context.Context, batch *models.ScheduledBatch) error {
	return r.store.write(batchKind, batch.ID, batch)
}

func (r *BatchRepository) ListByContact(_ context.Context, contactID string) ([]*models.ScheduledBatch, error) {
	var batches []*models.ScheduledBatch

	err := r.store.each(batchKind, func(data []byte) error {
		var batch models.ScheduledBatch
		if err := json.Unmarshal(data, &batch); err != nil {
			return err
		}

		if batch.ContactID == contactID {
			batches = append(batches, &batch)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return batches, nil
}

func (r *BatchRepository) IncrementCompleted(ctx context.Context, id string) error {
	batch, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	batch.TasksCompleted++

	if batch.IsCompleted() && batch.CompletedAt == nil {
		now := time.Now().UTC()
		batch.CompletedAt = &now
	}

	return r.store.write(batchKind, batch.ID, batch)
}
