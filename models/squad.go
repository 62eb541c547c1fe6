package models

import (
	"time"
)

// Squad is a fixed friend group competing together.
// Members come from the profile service — we only store their external IDs.
type Squad struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	Name       string `gorm:"not null" json:"name"`
	Slug       string `gorm:"index" json:"slug"`
	InviteCode string `gorm:"uniqueIndex;not null;type:varchar(16)" json:"invite_code"`
	Timezone   string `gorm:"type:varchar(64);default:'UTC'" json:"timezone"` // IANA name, drives streak day boundaries

	Timestamps

	// Relationships
	Memberships []Membership `json:"memberships,omitempty" gorm:"foreignKey:SquadID"`

	// Calculated fields (not stored in DB)
	MemberCount int64 `json:"member_count,omitempty" gorm:"-"`
}

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Membership links an external member id to a squad with a role.
type Membership struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	SquadID        string    `gorm:"not null;index;uniqueIndex:idx_squad_member" json:"squad_id"`
	ExternalUserID string    `gorm:"not null;index;uniqueIndex:idx_squad_member" json:"external_user_id"`
	Role           string    `gorm:"type:varchar(16);default:'member'" json:"role"` // member | admin
	JoinedAt       time.Time `json:"joined_at" gorm:"autoCreateTime"`
}
