package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/persistence"
)

const contactColumns = `
	id
  , first_name
  , last_name
  , email
  , company
  , status
  , source
  , lead_score
  , tags
  , custom_fields
  , cadence
  , next_follow_up_at
  , last_contacted_at
  , created_at
  , updated_at
`

// ContactRepository reads contacts. The automation core never creates or
// deletes contacts; the CRM CRUD surface owns those writes.
type ContactRepository struct {
	db *sql.DB
}

func (r *ContactRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`

	contact, err := scanContact(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrContactNotFound
		}

		return nil, fmt.Errorf("failed to scan contact: %w", err)
	}

	return contact, nil
}

func (r *ContactRepository) ListOverdue(ctx context.Context, now time.Time) ([]*models.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE next_follow_up_at IS NOT NULL
		  AND next_follow_up_at < $1
		  AND status <> $2
		ORDER BY next_follow_up_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, now, models.ContactStatusLost)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	contacts := make([]*models.Contact, 0)

	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}

		contacts = append(contacts, contact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	return contacts, nil
}

func scanContact(scanner interface{ Scan(dest ...any) error }) (*models.Contact, error) {
	var (
		contact                    models.Contact
		tagsJSON, customFieldsJSON []byte
	)

	err := scanner.Scan(
		&contact.ID,
		&contact.FirstName,
		&contact.LastName,
		&contact.Email,
		&contact.Company,
		&contact.Status,
		&contact.Source,
		&contact.LeadScore,
		&tagsJSON,
		&customFieldsJSON,
		&contact.Cadence,
		&contact.NextFollowUpAt,
		&contact.LastContactedAt,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tagsJSON != nil {
		if err := json.Unmarshal(tagsJSON, &contact.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}

	if customFieldsJSON != nil {
		if err := json.Unmarshal(customFieldsJSON, &contact.CustomFields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal custom fields: %w", err)
		}
	}

	return &contact, nil
}
