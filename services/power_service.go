package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"squad-clash-system/models"
	"squad-clash-system/workers"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PowerLifetime is how long a granted power stays usable.
const PowerLifetime = 24 * time.Hour

// PowerService grants the underdog power and enforces its use-exactly-once
// rule.
type PowerService struct {
	DB     *gorm.DB
	Clock  Clock
	Seed   SeedFunc
	Notify *workers.Notifier
}

func NewPowerService(db *gorm.DB) *PowerService {
	return &PowerService{DB: db, Clock: SystemClock, Seed: defaultSeed}
}

// AwardUnderdogPower grants a random power to the worst-ranked finisher of an
// event. No ranked finisher (media events, empty events) is a successful
// no-op, and re-delivery returns the already-granted power — the unique
// source event id keeps the award at-most-once.
func (s *PowerService) AwardUnderdogPower(eventID string) (*models.Power, error) {
	var existing models.Power
	err := s.DB.First(&existing, "source_event_id = ?", eventID).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var worst models.Submission
	err = s.DB.Where("event_id = ? AND rank IS NOT NULL", eventID).
		Order("rank desc").
		First(&worst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // nothing ranked, nothing to grant
	}
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	power := models.Power{
		ID:             uuid.NewString(),
		SquadID:        worst.SquadID,
		ExternalUserID: worst.ExternalUserID,
		SourceEventID:  eventID,
		Type:           drawOne(models.PowerTypes, s.Seed()),
		GrantedAt:      now,
		ExpiresAt:      now.Add(PowerLifetime),
	}
	if err := s.DB.Create(&power).Error; err != nil {
		// A concurrent re-delivery can slip past the read above; the unique
		// source event id means the other award won, so hand back its row.
		if readErr := s.DB.First(&existing, "source_event_id = ?", eventID).Error; readErr == nil {
			return &existing, nil
		}
		return nil, err
	}

	s.Notify.Publish("power.granted", power.SquadID, power.ID, power)
	return &power, nil
}

// UsePower consumes a power exactly once. The read checks ownership and
// expiry, and the write is conditional on the use marker still being unset —
// of two simultaneous attempts, exactly one can flip it.
func (s *PowerService) UsePower(powerID, actingUserID string, metadata map[string]string) (*models.Power, error) {
	now := s.Clock.Now()
	var out models.Power

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var power models.Power
		if err := tx.First(&power, "id = ?", powerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: power", ErrNotFound)
			}
			return err
		}

		if power.ExternalUserID != actingUserID {
			return fmt.Errorf("%w: power belongs to another member", ErrForbidden)
		}
		if power.UsedAt != nil {
			return fmt.Errorf("%w: power was already used", ErrAlreadyUsed)
		}
		if now.After(power.ExpiresAt) {
			return fmt.Errorf("%w: power expired %s", ErrExpired, power.ExpiresAt.Format(time.RFC3339))
		}

		targetID := metadata["target_id"]
		if power.Type == models.PowerTargetLock {
			if err := validateTarget(tx, power.SquadID, actingUserID, targetID); err != nil {
				return err
			}
		}

		merged, err := mergeMetadata(power.Metadata, metadata)
		if err != nil {
			return err
		}

		// Conditional write: only the attempt that still sees the marker
		// unset wins. The loser observes zero affected rows.
		res := tx.Model(&models.Power{}).
			Where("id = ? AND used_at IS NULL", power.ID).
			Updates(map[string]interface{}{"used_at": now, "metadata": merged})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: power was already used", ErrAlreadyUsed)
		}

		if power.Type == models.PowerTargetLock {
			target := models.ActiveTarget{
				ID:         uuid.NewString(),
				PowerID:    power.ID,
				SquadID:    power.SquadID,
				TargeterID: actingUserID,
				TargetID:   targetID,
				ExpiresAt:  power.ExpiresAt,
			}
			if err := tx.Create(&target).Error; err != nil {
				return err
			}
		}

		power.UsedAt = &now
		power.Metadata = merged
		out = power
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notify.Publish("power.used", out.SquadID, out.ID, out)
	return &out, nil
}

func validateTarget(tx *gorm.DB, squadID, actorID, targetID string) error {
	if targetID == "" {
		return fmt.Errorf("%w: target_id is required for a target lock", ErrInvalidTarget)
	}
	if targetID == actorID {
		return fmt.Errorf("%w: cannot target yourself", ErrInvalidTarget)
	}
	member, err := isMember(tx, squadID, targetID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: target is not a squad member", ErrInvalidTarget)
	}
	return nil
}

func mergeMetadata(existing string, extra map[string]string) (string, error) {
	merged := map[string]string{}
	if existing != "" {
		if err := json.Unmarshal([]byte(existing), &merged); err != nil {
			return "", fmt.Errorf("corrupt power metadata: %w", err)
		}
	}
	for k, v := range extra {
		merged[k] = v
	}
	if len(merged) == 0 {
		return "", nil
	}
	encoded, err := json.Marshal(merged)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// ActivePowers lists a member's unused, unexpired powers.
func (s *PowerService) ActivePowers(squadID, userID string) ([]models.Power, error) {
	var powers []models.Power
	err := s.DB.Where("squad_id = ? AND external_user_id = ? AND used_at IS NULL AND expires_at > ?",
		squadID, userID, s.Clock.Now()).
		Order("granted_at desc").
		Find(&powers).Error
	return powers, err
}

// ActiveTargets lists the squad's unexpired target locks.
func (s *PowerService) ActiveTargets(squadID string) ([]models.ActiveTarget, error) {
	var targets []models.ActiveTarget
	err := s.DB.Where("squad_id = ? AND expires_at > ?", squadID, s.Clock.Now()).
		Order("created_at desc").
		Find(&targets).Error
	return targets, err
}
