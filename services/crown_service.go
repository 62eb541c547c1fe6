package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"squad-clash-system/models"
	"squad-clash-system/workers"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// CrownLifetime is how long the crown (and anything declared under it) lasts.
	CrownLifetime = 24 * time.Hour
	// HeadlineMaxLen bounds the crown holder's banner line.
	HeadlineMaxLen = 50
)

// CrownService grants the winner's crown and manages its declarations.
type CrownService struct {
	DB     *gorm.DB
	Clock  Clock
	Notify *workers.Notifier
}

func NewCrownService(db *gorm.DB) *CrownService {
	return &CrownService{DB: db, Clock: SystemClock}
}

// AwardCrown grants the crown to an event's rank-1 finisher. No rank-1
// submission (media events, empty events) is a successful no-op; under
// re-delivery the existing crown comes back instead of an error.
func (s *CrownService) AwardCrown(eventID string) (*models.Crown, error) {
	var existing models.Crown
	err := s.DB.First(&existing, "source_event_id = ?", eventID).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var winner models.Submission
	err = s.DB.Where("event_id = ? AND rank = 1", eventID).First(&winner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // no ranked winner, nothing to grant
	}
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	crown := models.Crown{
		ID:             uuid.NewString(),
		SquadID:        winner.SquadID,
		ExternalUserID: winner.ExternalUserID,
		SourceEventID:  eventID,
		GrantedAt:      now,
		ExpiresAt:      now.Add(CrownLifetime),
	}
	if err := s.DB.Create(&crown).Error; err != nil {
		// A concurrent re-delivery can slip past the read above; the unique
		// source event id means the other award won, so hand back its row.
		if readErr := s.DB.First(&existing, "source_event_id = ?", eventID).Error; readErr == nil {
			return &existing, nil
		}
		return nil, err
	}

	s.Notify.Publish("crown.granted", crown.SquadID, crown.ID, crown)
	return &crown, nil
}

// CreateHeadline posts (or replaces) the crown holder's banner line.
func (s *CrownService) CreateHeadline(crownID, actingUserID, content string) (*models.Headline, error) {
	crown, err := s.requireLiveCrown(crownID, actingUserID)
	if err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: headline cannot be empty", ErrValidationFailed)
	}
	if len(content) > HeadlineMaxLen {
		return nil, fmt.Errorf("%w: headline exceeds %d characters", ErrValidationFailed, HeadlineMaxLen)
	}

	now := s.Clock.Now()
	headline := models.Headline{
		ID:         uuid.NewString(),
		CrownID:    crown.ID,
		SquadID:    crown.SquadID,
		Content:    content,
		DeclaredAt: now,
		ExpiresAt:  crown.ExpiresAt,
	}
	// Keyed upsert: a second declaration from the same crown replaces the
	// first, it never stacks.
	err = s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "crown_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "declared_at", "expires_at"}),
	}).Create(&headline).Error
	if err != nil {
		return nil, err
	}

	s.Notify.Publish("crown.headline", crown.SquadID, crown.ID, headline)
	return &headline, nil
}

// DeclareRivalry names two other squad members as the day's rivals.
func (s *CrownService) DeclareRivalry(crownID, actingUserID, rival1ID, rival2ID string) (*models.Rivalry, error) {
	crown, err := s.requireLiveCrown(crownID, actingUserID)
	if err != nil {
		return nil, err
	}

	if rival1ID == "" || rival2ID == "" || rival1ID == rival2ID {
		return nil, fmt.Errorf("%w: rivals must be two distinct members", ErrValidationFailed)
	}
	if rival1ID == crown.ExternalUserID || rival2ID == crown.ExternalUserID {
		return nil, fmt.Errorf("%w: the crown holder cannot be a rival", ErrValidationFailed)
	}
	for _, rival := range []string{rival1ID, rival2ID} {
		member, err := isMember(s.DB, crown.SquadID, rival)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, fmt.Errorf("%w: rival %s is not a squad member", ErrValidationFailed, rival)
		}
	}

	now := s.Clock.Now()
	rivalry := models.Rivalry{
		ID:         uuid.NewString(),
		CrownID:    crown.ID,
		SquadID:    crown.SquadID,
		Rival1ID:   rival1ID,
		Rival2ID:   rival2ID,
		DeclaredAt: now,
		ExpiresAt:  crown.ExpiresAt,
	}
	err = s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "crown_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rival1_id", "rival2_id", "declared_at", "expires_at"}),
	}).Create(&rivalry).Error
	if err != nil {
		return nil, err
	}

	s.Notify.Publish("crown.rivalry", crown.SquadID, crown.ID, rivalry)
	return &rivalry, nil
}

func (s *CrownService) requireLiveCrown(crownID, actingUserID string) (*models.Crown, error) {
	var crown models.Crown
	if err := s.DB.First(&crown, "id = ?", crownID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: crown", ErrNotFound)
		}
		return nil, err
	}
	if crown.ExternalUserID != actingUserID {
		return nil, fmt.Errorf("%w: crown belongs to another member", ErrForbidden)
	}
	if s.Clock.Now().After(crown.ExpiresAt) {
		return nil, fmt.Errorf("%w: crown expired", ErrExpired)
	}
	return &crown, nil
}

// GetActiveCrown returns the squad's current (unexpired) crown, newest first,
// with its declarations preloaded.
func (s *CrownService) GetActiveCrown(squadID string) (*models.Crown, error) {
	var crown models.Crown
	err := s.DB.Preload("Headline").Preload("Rivalry").
		Where("squad_id = ? AND expires_at > ?", squadID, s.Clock.Now()).
		Order("granted_at desc").
		First(&crown).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &crown, nil
}

// GetActiveHeadline returns the squad's current headline, if any.
func (s *CrownService) GetActiveHeadline(squadID string) (*models.Headline, error) {
	var headline models.Headline
	err := s.DB.Where("squad_id = ? AND expires_at > ?", squadID, s.Clock.Now()).
		Order("declared_at desc").
		First(&headline).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &headline, nil
}

// GetActiveRivalry returns the squad's current rivalry, if any.
func (s *CrownService) GetActiveRivalry(squadID string) (*models.Rivalry, error) {
	var rivalry models.Rivalry
	err := s.DB.Where("squad_id = ? AND expires_at > ?", squadID, s.Clock.Now()).
		Order("declared_at desc").
		First(&rivalry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rivalry, nil
}
