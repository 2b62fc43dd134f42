package file

import (
	"context"
	"encoding/json"
	"time"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
)

const enrollmentKind = "enrollments"

// EnrollmentRepository stores per-contact execution state.
type EnrollmentRepository struct {
	store *store
}

func (r *EnrollmentRepository) GetByID(_ context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.store.read(enrollmentKind, id, &enrollment, persistence.ErrEnrollmentNotFound); err != nil {
		return nil, err
	}

	return &enrollment, nil
}

func (r *EnrollmentRepository) FindByGraphAndContact(ctx context.Context, graphID, contactID string) (*models.Enrollment, error) {
	var found *models.Enrollment

	err := r.scan(func(e *models.Enrollment) {
		if e.GraphID == graphID && e.ContactID == contactID {
			found = e
		}
	})
	if err != nil {
		return nil, err
	}

	if found == nil {
		return nil, persistence.ErrEnrollmentNotFound
	}

	return found, nil
}

func (r *EnrollmentRepository) ListByGraph(_ context.Context, graphID string) ([]*models.Enrollment, error) {
	var enrollments []*models.Enrollment

	err := r.scan(func(e *models.Enrollment) {
		if e.GraphID == graphID {
			enrollments = append(enrollments, e)
		}
	})
	if err != nil {
		return nil, err
	}

	return enrollments, nil
}

func (r *EnrollmentRepository) ListDueForResume(_ context.Context, now time.Time) ([]*models.Enrollment, error) {
	var due []*models.Enrollment

	err := r.scan(func(e *models.Enrollment) {
		if e.DueForResume(now) {
			due = append(due, e)
		}
	})
	if err != nil {
		return nil, err
	}

	return due, nil
}

func (r *EnrollmentRepository) Save(_ context.Context, enrollment *models.Enrollment) error {
	return r.store.write(enrollmentKind, enrollment.ID, enrollment)
}

func (r *EnrollmentRepository) Delete(_ context.Context, id string) error {
	return r.store.remove(enrollmentKind, id, persistence.ErrEnrollmentNotFound)
}

func (r *EnrollmentRepository) scan(visit func(*models.Enrollment)) error {
	return r.store.each(enrollmentKind, func(data []byte) error {
		var enrollment models.Enrollment
		if err := json.Unmarshal(data, &enrollment); err != nil {
			return err
		}

		visit(&enrollment)

		return nil
	})
}
