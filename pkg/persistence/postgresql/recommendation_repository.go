package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
)

const uniqueViolation = "23505"

const recommendationColumns = `
	id
  , contact_id
  , kind
  , title
  , description
  , dismissed
  , expires_at
  , created_at
`

// RecommendationRepository handles de-duplication marker database operations.
// A partial unique index on (contact_id, kind) WHERE dismissed = false makes
// duplicate suppression safe under concurrent trigger delivery.
type RecommendationRepository struct {
	db *sql.DB
}

func (r *RecommendationRepository) Create(ctx context.Context, rec *models.Recommendation) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	err := r.insert(ctx, rec)
	if err == nil {
		return nil
	}

	if !isUniqueViolation(err) {
		return err
	}

	// The index only covers dismissed = false, so a unique violation may be
	// an expired marker blocking the slot. Retire it and retry once. Expiry
	// is judged against the caller's clock, carried in created_at.
	retired, retireErr := r.retireExpired(ctx, rec.ContactID, rec.Kind, rec.CreatedAt)
	if retireErr != nil {
		return retireErr
	}

	if !retired {
		return persistence.ErrDuplicateRecommendation
	}

	err = r.insert(ctx, rec)
	if isUniqueViolation(err) {
		return persistence.ErrDuplicateRecommendation
	}

	return err
}

func (r *RecommendationRepository) insert(ctx context.Context, rec *models.Recommendation) error {
	query := `
		INSERT INTO recommendations (id, contact_id, kind, title, description, dismissed, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.ContactID,
		rec.Kind,
		rec.Title,
		rec.Description,
		rec.Dismissed,
		rec.ExpiresAt,
		rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return err
		}

		return fmt.Errorf("failed to create recommendation: %w", err)
	}

	return nil
}

// retireExpired dismisses an expired marker holding the unique slot. Returns
// false when the marker is still live.
func (r *RecommendationRepository) retireExpired(ctx context.Context, contactID, kind string, now time.Time) (bool, error) {
	query := `
		UPDATE recommendations
		SET dismissed = true
		WHERE contact_id = $1
		  AND kind = $2
		  AND dismissed = false
		  AND expires_at <= $3
	`

	result, err := r.db.ExecContext(ctx, query, contactID, kind, now)
	if err != nil {
		return false, fmt.Errorf("failed to retire expired recommendation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *RecommendationRepository) FindActive(ctx context.Context, contactID, kind string, now time.Time) (*models.Recommendation, error) {
	query := `
		SELECT ` + recommendationColumns + `
		FROM recommendations
		WHERE contact_id = $1
		  AND kind = $2
		  AND dismissed = false
		  AND expires_at > $3
	`

	var rec models.Recommendation

	err := r.db.QueryRowContext(ctx, query, contactID, kind, now).Scan(
		&rec.ID,
		&rec.ContactID,
		&rec.Kind,
		&rec.Title,
		&rec.Description,
		&rec.Dismissed,
		&rec.ExpiresAt,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrRecommendationNotFound
		}

		return nil, fmt.Errorf("failed to scan recommendation: %w", err)
	}

	return &rec, nil
}

func (r *RecommendationRepository) Dismiss(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE recommendations SET dismissed = true WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to dismiss recommendation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrRecommendationNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
