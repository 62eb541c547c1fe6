package models

import (
	"time"
)

// Crown is the privilege held by an event's top finisher. One per source
// event; re-awarding returns the existing row.
type Crown struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	SquadID        string `gorm:"not null;index" json:"squad_id"`
	ExternalUserID string `gorm:"not null;index" json:"external_user_id"`
	SourceEventID  string `gorm:"not null;uniqueIndex" json:"source_event_id"`

	GrantedAt time.Time `gorm:"not null" json:"granted_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`

	// Relationships
	Headline *Headline `json:"headline,omitempty" gorm:"foreignKey:CrownID"`
	Rivalry  *Rivalry  `json:"rivalry,omitempty" gorm:"foreignKey:CrownID"`
}

// Headline is the crown holder's one banner line. Upserted by crown id — a
// later declaration replaces the earlier one.
type Headline struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	CrownID string `gorm:"not null;uniqueIndex" json:"crown_id"`
	SquadID string `gorm:"not null;index" json:"squad_id"`
	Content string `gorm:"not null;type:varchar(50)" json:"content"`

	DeclaredAt time.Time `gorm:"not null" json:"declared_at"`
	ExpiresAt  time.Time `gorm:"not null;index" json:"expires_at"`
}

// Rivalry names two other squad members as the day's rivals. Same upsert
// semantics as Headline; never includes the crown holder.
type Rivalry struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	CrownID string `gorm:"not null;uniqueIndex" json:"crown_id"`
	SquadID string `gorm:"not null;index" json:"squad_id"`
	Rival1ID string `gorm:"not null" json:"rival1_id"`
	Rival2ID string `gorm:"not null" json:"rival2_id"`

	DeclaredAt time.Time `gorm:"not null" json:"declared_at"`
	ExpiresAt  time.Time `gorm:"not null;index" json:"expires_at"`
}
