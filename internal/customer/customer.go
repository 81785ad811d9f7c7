package customer

import (
	"database/sql"
	"time"

	"leadflow/internal/store"
)

// Customer is a tracked prospect.
type Customer struct {
	ID               int64      `json:"id"`
	ExternalRef      string     `json:"externalRef,omitempty"`
	Name             string     `json:"name"`
	Phone            string     `json:"phone,omitempty"`
	Email            string     `json:"email,omitempty"`
	Company          string     `json:"company,omitempty"`
	SourceChannel    string     `json:"sourceChannel,omitempty"`
	Owner            string     `json:"owner,omitempty"`
	IntentScore      int        `json:"intentScore"`
	IntentLevel      Level      `json:"intentLevel"`
	Active           bool       `json:"active"`
	InteractionCount int        `json:"interactionCount"`
	LastContactAt    *time.Time `json:"lastContactAt,omitempty"`
	NextFollowUpAt   *time.Time `json:"nextFollowUpAt,omitempty"`
	LastFollowUpAt   *time.Time `json:"lastFollowUpAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Profile holds the contact fields supplied when a customer is first seen.
type Profile struct {
	ExternalRef   string
	Name          string
	Phone         string
	Email         string
	Company       string
	SourceChannel string
	Owner         string
}

const customerColumns = "id, external_ref, name, phone, email, company, source_channel, owner, intent_score, intent_level, active, interaction_count, last_contact_at, next_follow_up_at, last_follow_up_at, created_at, updated_at"

func scanCustomer(scanner store.Scanner) (*Customer, error) {
	var (
		c           Customer
		externalRef sql.NullString
		phone       sql.NullString
		email       sql.NullString
		company     sql.NullString
		source      sql.NullString
		owner       sql.NullString
		level       string
		active      int
		lastContact sql.NullString
		nextFollow  sql.NullString
		lastFollow  sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(
		&c.ID,
		&externalRef,
		&c.Name,
		&phone,
		&email,
		&company,
		&source,
		&owner,
		&c.IntentScore,
		&level,
		&active,
		&c.InteractionCount,
		&lastContact,
		&nextFollow,
		&lastFollow,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	c.ExternalRef = externalRef.String
	c.Phone = phone.String
	c.Email = email.String
	c.Company = company.String
	c.SourceChannel = source.String
	c.Owner = owner.String
	c.IntentLevel = Level(level)
	c.Active = active != 0
	c.LastContactAt = store.ParseNullableTime(lastContact.String, lastContact.Valid)
	c.NextFollowUpAt = store.ParseNullableTime(nextFollow.String, nextFollow.Valid)
	c.LastFollowUpAt = store.ParseNullableTime(lastFollow.String, lastFollow.Valid)
	if created, err := store.ParseTime(createdRaw); err == nil {
		c.CreatedAt = created
	}
	if updated, err := store.ParseTime(updatedRaw); err == nil {
		c.UpdatedAt = updated
	}
	return &c, nil
}
