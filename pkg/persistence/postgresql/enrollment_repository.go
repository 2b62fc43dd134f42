package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
)

const enrollmentColumns = `
	id
  , graph_id
  , graph_version
  , contact_id
  , current_node_id
  , status
  , ab_assignments
  , resume_at
  , execution_log
  , enrolled_at
  , completed_at
  , updated_at
`

// EnrollmentRepository handles enrollment database operations.
type EnrollmentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`

	enrollment, err := scanEnrollment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrEnrollmentNotFound
		}

		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}

	return enrollment, nil
}

func (r *EnrollmentRepository) FindByGraphAndContact(ctx context.Context, graphID, contactID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE graph_id = $1 AND contact_id = $2`

	enrollment, err := scanEnrollment(r.db.QueryRowContext(ctx, query, graphID, contactID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrEnrollmentNotFound
		}

		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}

	return enrollment, nil
}

func (r *EnrollmentRepository) ListByGraph(ctx context.Context, graphID string) ([]*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE graph_id = $1 ORDER BY enrolled_at ASC`

	return r.queryMany(ctx, query, graphID)
}

func (r *EnrollmentRepository) ListDueForResume(ctx context.Context, now time.Time) ([]*models.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE status = $1
		  AND resume_at IS NOT NULL
		  AND resume_at <= $2
		ORDER BY resume_at ASC
	`

	return r.queryMany(ctx, query, models.EnrollmentStatusPaused, now)
}

func (r *EnrollmentRepository) Save(ctx context.Context, enrollment *models.Enrollment) error {
	now := time.Now().UTC()

	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}

	enrollment.UpdatedAt = now

	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}

	abJSON, err := json.Marshal(enrollment.ABAssignments)
	if err != nil {
		return fmt.Errorf("failed to marshal ab assignments: %w", err)
	}

	logJSON, err := json.Marshal(enrollment.ExecutionLog)
	if err != nil {
		return fmt.Errorf("failed to marshal execution log: %w", err)
	}

	query := `
		INSERT INTO enrollments (id, graph_id, graph_version, contact_id, current_node_id,
			status, ab_assignments, resume_at, execution_log, enrolled_at, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			current_node_id = EXCLUDED.current_node_id,
			status = EXCLUDED.status,
			ab_assignments = EXCLUDED.ab_assignments,
			resume_at = EXCLUDED.resume_at,
			execution_log = EXCLUDED.execution_log,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		enrollment.ID,
		enrollment.GraphID,
		enrollment.GraphVersion,
		enrollment.ContactID,
		enrollment.CurrentNodeID,
		enrollment.Status,
		abJSON,
		enrollment.ResumeAt,
		logJSON,
		enrollment.EnrolledAt,
		enrollment.CompletedAt,
		enrollment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save enrollment: %w", err)
	}

	return nil
}

func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM enrollments WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete enrollment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrEnrollmentNotFound
	}

	return nil
}

func (r *EnrollmentRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	enrollments := make([]*models.Enrollment, 0)

	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}

		enrollments = append(enrollments, enrollment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enrollments: %w", err)
	}

	return enrollments, nil
}

func scanEnrollment(scanner interface{ Scan(dest ...any) error }) (*models.Enrollment, error) {
	var (
		enrollment      models.Enrollment
		abJSON, logJSON []byte
	)

	err := scanner.Scan(
		&enrollment.ID,
		&enrollment.GraphID,
		&enrollment.GraphVersion,
		&enrollment.ContactID,
		&enrollment.CurrentNodeID,
		&enrollment.Status,
		&abJSON,
		&enrollment.ResumeAt,
		&logJSON,
		&enrollment.EnrolledAt,
		&enrollment.CompletedAt,
		&enrollment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if abJSON != nil {
		if err := json.Unmarshal(abJSON, &enrollment.ABAssignments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ab assignments: %w", err)
		}
	}

	if logJSON != nil {
		if err := json.Unmarshal(logJSON, &enrollment.ExecutionLog); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution log: %w", err)
		}
	}

	return &enrollment, nil
}
