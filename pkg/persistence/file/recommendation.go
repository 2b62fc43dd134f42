package file

import (
	"context"
	"encoding/json"
	"time"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
)

const recommendationKind = "recommendations"

// RecommendationRepository stores de-duplication markers. The file backend
// checks for an active duplicate before writing; the window between check and
// write is unguarded, which is acceptable for a single-process dev store.
type RecommendationRepository struct {
	store *store
}

func (r *RecommendationRepository) Create(ctx context.Context, rec *models.Recommendation) error {
	// The duplicate window is judged against the caller's clock, carried in
	// created_at, so injected test clocks behave like the wall clock.
	now := rec.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	_, err := r.FindActive(ctx, rec.ContactID, rec.Kind, now)
	if err == nil {
		return persistence.ErrDuplicateRecommendation
	}

	if !persistence.IsRecommendationNotFound(err) {
		return err
	}

	return r.store.write(recommendationKind, rec.ID, rec)
}

func (r *RecommendationRepository) FindActive(_ context.Context, contactID, kind string, now time.Time) (*models.Recommendation, error) {
	var found *models.Recommendation

	err := r.store.each(recommendationKind, func(data []byte) error {
		var rec models.Recommendation
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}

		if rec.ContactID == contactID && rec.Kind == kind && rec.IsActive(now) {
			found = &rec
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if found == nil {
		return nil, persistence.ErrRecommendationNotFound
	}

	return found, nil
}

func (r *RecommendationRepository) Dismiss(_ context.Context, id string) error {
	var rec models.Recommendation
	if err := r.store.read(recommendationKind, id, &rec, persistence.ErrRecommendationNotFound); err != nil {
		return err
	}

	rec.Dismissed = true

	return r.store.write(recommendationKind, rec.ID, &rec)
}
