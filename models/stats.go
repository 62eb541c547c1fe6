package models

import (
	"time"
)

// MemberStats tracks per-(member, squad) scoring state. Created alongside the
// membership, mutated only by the stats service.
type MemberStats struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	SquadID        string `gorm:"not null;index;uniqueIndex:idx_stats_member" json:"squad_id"`
	ExternalUserID string `gorm:"not null;index;uniqueIndex:idx_stats_member" json:"external_user_id"`

	WeeklyPoints   int64 `gorm:"default:0" json:"weekly_points"`
	LifetimePoints int64 `gorm:"default:0" json:"lifetime_points"`
	StreakDays     int   `gorm:"default:0" json:"streak_days"`
	// StrikeCount is a rolling 14-day miss counter: +1 per missed event,
	// -1 per decay sweep, never below zero.
	StrikeCount int `gorm:"default:0" json:"strike_count"`

	// LastParticipation is the squad-local date (YYYY-MM-DD) of the most
	// recent submission, used for streak arithmetic.
	LastParticipation string `gorm:"type:varchar(10)" json:"last_participation,omitempty"`

	Timestamps
}

// MissPenalty marks that a member's no-show penalty for an event was applied.
// Unique per (event, member), so re-delivery can never double-penalize —
// both the finalize pass and the standalone penalty operation key off it.
type MissPenalty struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	EventID        string `gorm:"not null;index;uniqueIndex:idx_event_penalty" json:"event_id"`
	SquadID        string `gorm:"not null;index" json:"squad_id"`
	ExternalUserID string `gorm:"not null;uniqueIndex:idx_event_penalty" json:"external_user_id"`

	AppliedAt time.Time `gorm:"not null" json:"applied_at"`
}
