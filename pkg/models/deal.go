package models

import "time"

// DealStatus represents the lifecycle state of a deal.
type DealStatus string

const (
	DealStatusOpen DealStatus = "open"
	DealStatusWon  DealStatus = "won"
	DealStatusLost DealStatus = "lost"
)

// Deal is a CRM pipeline record. The engine only moves deals between stages
// through the move_deal executor.
type Deal struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	ContactID      string     `json:"contact_id"`
	PipelineID     string     `json:"pipeline_id"`
	StageID        string     `json:"stage_id"`
	Title          string     `json:"title"`
	Value          float64    `json:"value"`
	Status         DealStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
