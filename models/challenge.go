package models

import (
	"time"
)

// Challenge statuses: active → passed | failed | expired.
const (
	ChallengeActive  = "active"
	ChallengePassed  = "passed"  // threshold reached before the deadline, decision overturned
	ChallengeFailed  = "failed"  // deadline passed with votes cast but threshold unmet
	ChallengeExpired = "expired" // deadline passed with no votes at all
)

// Challenge subjects
const (
	SubjectJudgeDecision = "judge_decision"
	SubjectPowerUse      = "power_use"
)

// Challenge is a squad vote to overturn a judge decision or a power use.
type Challenge struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	SquadID string `gorm:"not null;index" json:"squad_id"`

	SubjectType string `gorm:"not null;type:varchar(32)" json:"subject_type"` // judge_decision | power_use
	SubjectID   string `gorm:"not null;index" json:"subject_id"`
	Reason      string `gorm:"type:text" json:"reason,omitempty"`

	ChallengerID string `gorm:"not null" json:"challenger_id"`
	// TargetID is the member the disputed decision was aimed at; they cannot vote.
	TargetID string `gorm:"not null" json:"target_id"`

	ThresholdPercent int       `gorm:"not null;default:50" json:"threshold_percent"`
	Deadline         time.Time `gorm:"not null;index" json:"deadline"`

	VotesFor     int    `gorm:"default:0" json:"votes_for"`
	VotesAgainst int    `gorm:"default:0" json:"votes_against"`
	Status       string `gorm:"type:varchar(16);default:'active';index" json:"status"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`

	Timestamps

	// Relationships
	Votes []ChallengeVote `json:"votes,omitempty" gorm:"foreignKey:ChallengeID;constraint:OnDelete:CASCADE"`
}

// Vote choices
const (
	VoteFor     = "for"
	VoteAgainst = "against"
)

// ChallengeVote is one member's ballot — unique per (challenge, voter).
type ChallengeVote struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID string    `gorm:"not null;index;uniqueIndex:idx_challenge_voter" json:"challenge_id"`
	VoterID     string    `gorm:"not null;uniqueIndex:idx_challenge_voter" json:"voter_id"`
	Choice      string    `gorm:"not null;type:varchar(8)" json:"choice"` // for | against
	CastAt      time.Time `gorm:"not null" json:"cast_at"`
}
