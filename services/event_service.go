package services

import (
	"errors"
	"fmt"
	"time"

	"squad-clash-system/models"
	"squad-clash-system/workers"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventService owns the event status field. Everything downstream reads the
// status but only this service advances it: scheduled → open → closed →
// finalized.
type EventService struct {
	DB     *gorm.DB
	Clock  Clock
	Notify *workers.Notifier

	Submissions *SubmissionService
	Stats       *StatsService
	Powers      *PowerService
	Crowns      *CrownService
	Judges      *JudgeService
}

func NewEventService(db *gorm.DB, submissions *SubmissionService, stats *StatsService,
	powers *PowerService, crowns *CrownService, judges *JudgeService) *EventService {
	return &EventService{
		DB:          db,
		Clock:       SystemClock,
		Submissions: submissions,
		Stats:       stats,
		Powers:      powers,
		Crowns:      crowns,
		Judges:      judges,
	}
}

// CreateEventInput is what the external daily scheduler posts.
type CreateEventInput struct {
	SquadID   string    `json:"squad_id"`
	EventDate string    `json:"event_date"` // YYYY-MM-DD, squad-local
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Prompt    string    `json:"prompt"`
	OpenAt    time.Time `json:"open_at"`
	CloseAt   time.Time `json:"close_at"`
}

// CreateEvent registers a scheduled event. One per squad per calendar date.
func (s *EventService) CreateEvent(input CreateEventInput) (*models.DailyEvent, error) {
	switch input.Type {
	case models.EventTimedScore, models.EventVote, models.EventMedia:
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrValidationFailed, input.Type)
	}
	if _, err := time.Parse("2006-01-02", input.EventDate); err != nil {
		return nil, fmt.Errorf("%w: event_date must be YYYY-MM-DD", ErrValidationFailed)
	}
	if !input.CloseAt.After(input.OpenAt) {
		return nil, fmt.Errorf("%w: close_at must be after open_at", ErrValidationFailed)
	}

	var count int64
	if err := s.DB.Model(&models.DailyEvent{}).
		Where("squad_id = ? AND event_date = ?", input.SquadID, input.EventDate).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: squad already has an event on %s", ErrValidationFailed, input.EventDate)
	}

	event := models.DailyEvent{
		ID:        uuid.NewString(),
		SquadID:   input.SquadID,
		EventDate: input.EventDate,
		Type:      input.Type,
		Title:     input.Title,
		Prompt:    input.Prompt,
		Status:    models.EventScheduled,
		OpenAt:    input.OpenAt,
		CloseAt:   input.CloseAt,
	}
	if err := s.DB.Create(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// OpenEvent moves a scheduled event to open once its open time has arrived,
// assigning a judge if none was set.
func (s *EventService) OpenEvent(eventID string) (*models.DailyEvent, error) {
	now := s.Clock.Now()
	var out models.DailyEvent

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		event, err := loadEvent(tx, eventID)
		if err != nil {
			return err
		}
		if event.Status != models.EventScheduled {
			return fmt.Errorf("%w: cannot open a %s event", ErrInvalidTransition, event.Status)
		}
		if now.Before(event.OpenAt) {
			return fmt.Errorf("%w: open time not reached", ErrInvalidTransition)
		}

		if event.JudgeID == "" {
			judge, err := s.Judges.selectJudgeTx(tx, event.SquadID)
			if err != nil {
				return err
			}
			event.JudgeID = judge
		}
		event.Status = models.EventOpen

		if err := tx.Model(event).
			Updates(map[string]interface{}{"status": event.Status, "judge_id": event.JudgeID}).Error; err != nil {
			return err
		}
		out = *event
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notify.Publish("event.opened", out.SquadID, out.ID, out)
	return &out, nil
}

// CloseEvent closes an open event and runs the ranking pass inside the same
// transaction, so nothing submitted after the flip can ever be ranked.
func (s *EventService) CloseEvent(eventID string) (*models.DailyEvent, error) {
	var out models.DailyEvent

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		event, err := loadEvent(tx, eventID)
		if err != nil {
			return err
		}
		if event.Status != models.EventOpen {
			return fmt.Errorf("%w: cannot close a %s event", ErrInvalidTransition, event.Status)
		}

		event.Status = models.EventClosed
		if err := tx.Model(event).Update("status", event.Status).Error; err != nil {
			return err
		}
		if err := s.Submissions.rankTx(tx, event); err != nil {
			return err
		}
		out = *event
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notify.Publish("event.closed", out.SquadID, out.ID, out)
	return &out, nil
}

// FinalizeEvent marks the event terminal and applies the downstream effects:
// point/streak deltas, miss penalties, crown and underdog awards. Calling it
// again is safe — the stats marker and the per-event award keys make every
// side effect idempotent.
func (s *EventService) FinalizeEvent(eventID string) (*models.DailyEvent, error) {
	now := s.Clock.Now()
	var out models.DailyEvent

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		event, err := loadEvent(tx, eventID)
		if err != nil {
			return err
		}
		switch event.Status {
		case models.EventFinalized:
			out = *event
			return nil
		case models.EventClosed:
		default:
			return fmt.Errorf("%w: cannot finalize a %s event", ErrInvalidTransition, event.Status)
		}

		if event.StatsAppliedAt == nil {
			if err := s.applyStatsTx(tx, event); err != nil {
				return err
			}
			event.StatsAppliedAt = &now
		}

		event.Status = models.EventFinalized
		if err := tx.Model(event).
			Updates(map[string]interface{}{"status": event.Status, "stats_applied_at": event.StatsAppliedAt}).Error; err != nil {
			return err
		}
		out = *event
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Awards run after the terminal flip and are idempotent per event, so a
	// retry of FinalizeEvent repairs any partial failure here.
	if _, err := s.Crowns.AwardCrown(eventID); err != nil {
		return nil, err
	}
	if _, err := s.Powers.AwardUnderdogPower(eventID); err != nil {
		return nil, err
	}

	s.Notify.Publish("event.finalized", out.SquadID, out.ID, out)
	return &out, nil
}

// applyStatsTx credits every submitter and penalizes every no-show, all in
// the finalize transaction so the StatsAppliedAt marker commits with the
// deltas it guards.
func (s *EventService) applyStatsTx(tx *gorm.DB, event *models.DailyEvent) error {
	var subs []models.Submission
	if err := tx.Where("event_id = ?", event.ID).Find(&subs).Error; err != nil {
		return err
	}

	submitted := make(map[string]bool, len(subs))
	for _, sub := range subs {
		submitted[sub.ExternalUserID] = true
		points := int64(PointsPerSubmission)
		if sub.Rank != nil {
			points += podiumBonus[*sub.Rank]
		}
		if _, err := s.Stats.onSubmissionTx(tx, event.SquadID, sub.ExternalUserID, points); err != nil {
			return err
		}
	}

	var members []models.Membership
	if err := tx.Where("squad_id = ?", event.SquadID).Find(&members).Error; err != nil {
		return err
	}
	for _, m := range members {
		if submitted[m.ExternalUserID] {
			continue
		}
		if _, err := s.Stats.applyMissPenaltyTx(tx, event, m.ExternalUserID); err != nil {
			return err
		}
	}
	return nil
}

// GetEvent returns an event with its submissions.
func (s *EventService) GetEvent(eventID string) (*models.DailyEvent, error) {
	var event models.DailyEvent
	err := s.DB.Preload("Submissions").First(&event, "id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: event", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// loadEvent reads an event with an exclusive row lock: every status flip
// waits out in-flight submissions holding the share lock, and vice versa.
func loadEvent(tx *gorm.DB, eventID string) (*models.DailyEvent, error) {
	var event models.DailyEvent
	if err := withLock(tx, "UPDATE").First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: event", ErrNotFound)
		}
		return nil, err
	}
	return &event, nil
}
