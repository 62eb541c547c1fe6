package models

import (
	"time"
)

// Submission is a member's single entry into an event. Uniqueness on
// (event, member) is the idempotency key for submits. Ranks are written only
// by the ranking pass at close.
type Submission struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	EventID        string `gorm:"not null;index;uniqueIndex:idx_event_member" json:"event_id"`
	SquadID        string `gorm:"not null;index" json:"squad_id"`
	ExternalUserID string `gorm:"not null;index;uniqueIndex:idx_event_member" json:"external_user_id"`

	// Payload is type-specific: the picked option for vote events, free-form
	// JSON for timed-score events. Media entries carry MediaRef instead.
	Payload string `gorm:"type:text" json:"payload,omitempty"`
	// MediaRef is the opaque object-store key returned by the media store.
	MediaRef string `gorm:"type:text" json:"media_ref,omitempty"`

	Score *float64 `json:"score,omitempty"` // timed-score events only, lower is better
	Rank  *int     `json:"rank,omitempty"`  // 1-based, written at close

	SubmittedAt time.Time `gorm:"not null;index" json:"submitted_at"`
}
