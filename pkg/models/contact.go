package models

import "time"

// Contact is a CRM record. The engine reads contacts for personalization and
// condition evaluation; it mutates them only through the add_tag, remove_tag
// and update_contact executors.
type Contact struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Email          string         `json:"email"`
	Phone          string         `json:"phone"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	Status         string         `json:"status"`
	Source         string         `json:"source"`
	Tags           []string       `json:"tags"`
	CustomFields   map[string]any `json:"custom_fields,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// HasTag reports whether the contact carries the given tag.
func (c *Contact) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}

	return false
}

// FullName joins first and last name, tolerating either being empty.
func (c *Contact) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}
