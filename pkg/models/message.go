package models

import "time"

// MessageChannel distinguishes email from SMS templates and logs.
type MessageChannel string

const (
	ChannelEmail MessageChannel = "email"
	ChannelSMS   MessageChannel = "sms"
)

// MessageTemplate is an organization-scoped email or SMS template resolved by
// the send_email and send_sms executors. Subject is empty for SMS templates.
type MessageTemplate struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Channel        MessageChannel `json:"channel"`
	Name           string         `json:"name"`
	Subject        string         `json:"subject,omitempty"`
	Body           string         `json:"body"`
	CreatedAt      time.Time      `json:"created_at"`
}

// MessageLogStatus records the provider outcome for a sent message.
type MessageLogStatus string

const (
	MessageLogSent      MessageLogStatus = "sent"
	MessageLogSimulated MessageLogStatus = "simulated"
	MessageLogFailed    MessageLogStatus = "failed"
)

// MessageLog is one outbound email or SMS recorded by a send executor,
// linked back to the enrollment that produced it.
type MessageLog struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	ContactID      string           `json:"contact_id"`
	EnrollmentID   string           `json:"enrollment_id"`
	Channel        MessageChannel   `json:"channel"`
	Recipient      string           `json:"recipient"`
	Subject        string           `json:"subject,omitempty"`
	Body           string           `json:"body"`
	Segments       int              `json:"segments,omitempty"`
	Encoding       string           `json:"encoding,omitempty"`
	ProviderID     string           `json:"provider_id,omitempty"`
	Status         MessageLogStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
}
