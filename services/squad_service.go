package services

import (
	"errors"
	"fmt"
	"strings"

	"squad-clash-system/models"
	"squad-clash-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const inviteCodeLength = 8

// SquadService owns squads and memberships. Member identities are opaque ids
// issued by the external profile service.
type SquadService struct {
	DB *gorm.DB
}

func NewSquadService(db *gorm.DB) *SquadService {
	return &SquadService{DB: db}
}

// CreateSquad registers a squad and makes the creator its admin. The creator
// also gets a zero-valued stats row — members never create stats themselves.
func (s *SquadService) CreateSquad(name, timezone, creatorID string) (*models.Squad, error) {
	name = strings.TrimSpace(name)
	if name == "" || creatorID == "" {
		return nil, fmt.Errorf("%w: name and creator are required", ErrValidationFailed)
	}
	if timezone == "" {
		timezone = "UTC"
	}

	code, err := utils.GenerateInviteCode(inviteCodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite code: %w", err)
	}

	squad := models.Squad{
		ID:         uuid.NewString(),
		Name:       name,
		Slug:       utils.SquadSlug(name),
		InviteCode: code,
		Timezone:   timezone,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&squad).Error; err != nil {
			return err
		}
		return createMembership(tx, squad.ID, creatorID, models.RoleAdmin)
	})
	if err != nil {
		return nil, err
	}
	return &squad, nil
}

// JoinSquad adds a member by invite code. Re-joining is a successful no-op.
func (s *SquadService) JoinSquad(inviteCode, userID string) (*models.Squad, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidationFailed)
	}

	var squad models.Squad
	if err := s.DB.First(&squad, "invite_code = ?", strings.ToUpper(strings.TrimSpace(inviteCode))).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: squad for invite code", ErrNotFound)
		}
		return nil, err
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.Membership
		err := tx.Where("squad_id = ? AND external_user_id = ?", squad.ID, userID).First(&existing).Error
		if err == nil {
			return nil // already a member
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return createMembership(tx, squad.ID, userID, models.RoleMember)
	})
	if err != nil {
		return nil, err
	}
	return &squad, nil
}

func createMembership(tx *gorm.DB, squadID, userID, role string) error {
	membership := models.Membership{
		ID:             uuid.NewString(),
		SquadID:        squadID,
		ExternalUserID: userID,
		Role:           role,
	}
	if err := tx.Create(&membership).Error; err != nil {
		return err
	}
	stats := models.MemberStats{
		ID:             uuid.NewString(),
		SquadID:        squadID,
		ExternalUserID: userID,
	}
	return tx.Create(&stats).Error
}

// ListMembers returns the squad roster.
func (s *SquadService) ListMembers(squadID string) ([]models.Membership, error) {
	var members []models.Membership
	if err := s.DB.Where("squad_id = ?", squadID).Order("joined_at asc").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// IsMember reports whether userID belongs to the squad.
func (s *SquadService) IsMember(squadID, userID string) (bool, error) {
	return isMember(s.DB, squadID, userID)
}

// IsAdmin reports whether userID is a squad admin.
func (s *SquadService) IsAdmin(squadID, userID string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.Membership{}).
		Where("squad_id = ? AND external_user_id = ? AND role = ?", squadID, userID, models.RoleAdmin).
		Count(&count).Error
	return count > 0, err
}

func isMember(tx *gorm.DB, squadID, userID string) (bool, error) {
	var count int64
	err := tx.Model(&models.Membership{}).
		Where("squad_id = ? AND external_user_id = ?", squadID, userID).
		Count(&count).Error
	return count > 0, err
}
