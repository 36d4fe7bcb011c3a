package model

import "time"

// Event is an entry in an item's lifecycle audit trail: one row per
// claim, delivery, or administrative status override.
type Event struct {
	ID         int64     `json:"id"`
	ItemID     int64     `json:"item_id"`
	Type       string    `json:"type"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`

	// Joined field (not always populated).
	ItemName string `json:"item_name,omitempty"`
}

// Event types.
const (
	EventCreated    = "created"
	EventClaimed    = "claimed"
	EventDelivered  = "delivered"
	EventEdited     = "edited"
	EventOverridden = "status_override"
)
