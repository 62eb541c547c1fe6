package models

import (
	"time"
)

// Event statuses — the authoritative state machine, advanced only by the
// lifecycle service: scheduled → open → closed → finalized.
const (
	EventScheduled = "scheduled"
	EventOpen      = "open"
	EventClosed    = "closed"
	EventFinalized = "finalized"
)

// Event types
const (
	EventTimedScore = "timed-score" // lower score is better (time / error)
	EventVote       = "vote"        // members pick an option, tally at close
	EventMedia      = "media"       // photo/video entries, no ranking
)

// DailyEvent is one scheduled challenge for a squad on a calendar date.
type DailyEvent struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	SquadID string `gorm:"not null;index;uniqueIndex:idx_squad_date" json:"squad_id"`
	// EventDate is the squad-local calendar date, YYYY-MM-DD. One event per squad per day.
	EventDate string `gorm:"not null;type:varchar(10);uniqueIndex:idx_squad_date" json:"event_date"`

	Type   string `gorm:"not null;type:varchar(16)" json:"type"`
	Title  string `json:"title"`
	Prompt string `gorm:"type:text" json:"prompt"`

	Status  string    `gorm:"type:varchar(16);default:'scheduled';index" json:"status"`
	OpenAt  time.Time `gorm:"not null" json:"open_at"`
	CloseAt time.Time `gorm:"not null" json:"close_at"`

	// JudgeID is assigned on open (or earlier by an admin) and never reassigned here.
	JudgeID string `gorm:"type:uuid" json:"judge_id,omitempty"`

	// RankedAt marks that the ranking pass ran; re-running rank is then a no-op.
	RankedAt *time.Time `json:"ranked_at,omitempty"`
	// StatsAppliedAt marks that finalize applied point/streak/penalty deltas.
	StatsAppliedAt *time.Time `json:"stats_applied_at,omitempty"`
	// VoteTally holds the ordered option tally for vote events, JSON-encoded.
	VoteTally string `gorm:"type:text" json:"vote_tally,omitempty"`

	Timestamps

	// Relationships
	Submissions []Submission `json:"submissions,omitempty" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
}

// TallyEntry is one row of a vote event's ordered tally.
type TallyEntry struct {
	Option string `json:"option"`
	Count  int    `json:"count"`
}
