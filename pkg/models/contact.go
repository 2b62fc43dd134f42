// Package models defines the core domain models for CRM automation:
// contacts, condition groups, workflow graphs, enrollments, rules and tasks.
package models

import "time"

// ContactStatus represents the lifecycle stage of a contact.
type ContactStatus string

const (
	ContactStatusLead     ContactStatus = "lead"
	ContactStatusActive   ContactStatus = "active"
	ContactStatusInactive ContactStatus = "inactive"
	ContactStatusLost     ContactStatus = "lost"
)

// Cadence is a named recurring touchpoint interval.
type Cadence string

const (
	CadenceNone      Cadence = "none"
	CadenceDaily     Cadence = "daily"
	CadenceWeekly    Cadence = "weekly"
	CadenceMonthly   Cadence = "monthly"
	CadenceQuarterly Cadence = "quarterly"
	CadenceAnnual    Cadence = "annual"
)

// ActivityType identifies a contact-scoped domain event.
type ActivityType string

const (
	ActivityEmailOpened   ActivityType = "email_opened"
	ActivityEmailClicked  ActivityType = "email_clicked"
	ActivityFormSubmitted ActivityType = "form_submitted"
	ActivityMeeting       ActivityType = "meeting"
	ActivityCallMade      ActivityType = "call_made"
)

// Contact is the read-only view of a contact the automation core consumes.
// The contact store owns the record; only attributes needed by condition
// evaluation and task templating are surfaced here.
type Contact struct {
	ID              string         `json:"id"`
	FirstName       string         `json:"first_name"`
	LastName        string         `json:"last_name"`
	Email           string         `json:"email"`
	Company         string         `json:"company,omitempty"`
	Status          ContactStatus  `json:"status"`
	Source          string         `json:"source,omitempty"`
	LeadScore       float64        `json:"lead_score"`
	Tags            []string       `json:"tags,omitempty"`
	CustomFields    map[string]any `json:"custom_fields,omitempty"`
	Cadence         Cadence        `json:"contact_cadence,omitempty"`
	NextFollowUpAt  *time.Time     `json:"next_follow_up_at,omitempty"`
	LastContactedAt *time.Time     `json:"last_contacted_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Attr returns a top-level contact attribute by its wire name. The second
// return reports whether the attribute exists at all; a nil value with
// ok=true means the attribute is present but unset.
func (c *Contact) Attr(name string) (any, bool) {
	switch name {
	case "id":
		return c.ID, true
	case "first_name":
		return c.FirstName, true
	case "last_name":
		return c.LastName, true
	case "email":
		return c.Email, true
	case "company":
		return c.Company, true
	case "status":
		return string(c.Status), true
	case "source":
		return c.Source, true
	case "lead_score":
		return c.LeadScore, true
	case "tags":
		return c.Tags, true
	case "contact_cadence":
		return string(c.Cadence), true
	case "next_follow_up_at":
		if c.NextFollowUpAt == nil {
			return nil, true
		}

		return *c.NextFollowUpAt, true
	case "last_contacted_at":
		if c.LastContactedAt == nil {
			return nil, true
		}

		return *c.LastContactedAt, true
	case "created_at":
		return c.CreatedAt, true
	case "updated_at":
		return c.UpdatedAt, true
	default:
		return nil, false
	}
}

// FullName joins first and last name for task descriptions.
func (c *Contact) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}

	return c.FirstName + " " + c.LastName
}
