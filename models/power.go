package models

import (
	"time"
)

// Power types — fixed enum, drawn uniformly when the underdog award runs.
const (
	PowerTargetLock     = "target_lock"     // mark another member (creates an ActiveTarget on use)
	PowerDoublePoints   = "double_points"   // next submission scores double
	PowerShield         = "shield"          // next miss costs no penalty
	PowerSpotlightSteal = "spotlight_steal" // pin your entry above the crown holder's
)

// PowerTypes is the deterministic draw order for the underdog award.
var PowerTypes = []string{
	PowerDoublePoints,
	PowerShield,
	PowerSpotlightSteal,
	PowerTargetLock,
}

// Power is a time-limited privilege granted to the worst-ranked finisher of an
// event. It is mutated exactly once: grant → use. UsedAt must never exceed
// ExpiresAt.
type Power struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	SquadID        string `gorm:"not null;index" json:"squad_id"`
	ExternalUserID string `gorm:"not null;index" json:"external_user_id"`
	// SourceEventID keys the at-most-once award per event.
	SourceEventID string `gorm:"not null;uniqueIndex" json:"source_event_id"`

	Type      string     `gorm:"not null;type:varchar(32)" json:"type"`
	GrantedAt time.Time  `gorm:"not null" json:"granted_at"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	Metadata  string     `gorm:"type:text" json:"metadata,omitempty"`
}

// ActiveTarget records a used target-lock: who marked whom. One per power
// (the unique PowerID makes the lock one-shot), expiring with it.
type ActiveTarget struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	PowerID  string `gorm:"not null;uniqueIndex" json:"power_id"`
	SquadID  string `gorm:"not null;index" json:"squad_id"`
	TargeterID string `gorm:"not null;index" json:"targeter_id"`
	TargetID   string `gorm:"not null;index" json:"target_id"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}
