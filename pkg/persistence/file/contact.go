package file

import (
	"context"
	"encoding/json"
	"time"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
)

const contactKind = "contacts"

// ContactRepository reads contacts from disk. Put exists so dev environments
// and tests can seed data; it is not part of the persistence interface.
type ContactRepository struct {
	store *store
}

func (r *ContactRepository) GetByID(_ context.Context, id string) (*models.Contact, error) {
	var contact models.Contact
	if err := r.store.read(contactKind, id, &contact, persistence.ErrContactNotFound); err != nil {
		return nil, err
	}

	return &contact, nil
}

func (r *ContactRepository) ListOverdue(_ context.Context, now time.Time) ([]*models.Contact, error) {
	var overdue []*models.Contact

	err := r.store.each(contactKind, func(data []byte) error {
		var contact models.Contact
		if err := json.Unmarshal(data, &contact); err != nil {
			return err
		}

		if contact.Status == models.ContactStatusLost {
			return nil
		}

		if contact.NextFollowUpAt != nil && contact.NextFollowUpAt.Before(now) {
			overdue = append(overdue, &contact)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return overdue, nil
}

// Put seeds a contact document.
func (r *ContactRepository) Put(_ context.Context, contact *models.Contact) error {
	return r.store.write(contactKind, contact.ID, contact)
}
