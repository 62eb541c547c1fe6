package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"squad-clash-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubmissionService accepts entries while an event is open and computes the
// ranking when it closes.
type SubmissionService struct {
	DB    *gorm.DB
	Clock Clock
}

func NewSubmissionService(db *gorm.DB) *SubmissionService {
	return &SubmissionService{DB: db, Clock: SystemClock}
}

// SubmitInput is the type-specific payload of one entry.
type SubmitInput struct {
	Payload  string   `json:"payload,omitempty"`   // picked option for vote events, free-form otherwise
	Score    *float64 `json:"score,omitempty"`     // timed-score events, lower is better
	MediaRef string   `json:"media_ref,omitempty"` // opaque media store key
}

// Submit stores one entry per (event, member). Anything outside the open
// window is rejected — a submission must never slip in after close time even
// if the status flip is still pending.
func (s *SubmissionService) Submit(eventID, userID string, input SubmitInput) (*models.Submission, error) {
	now := s.Clock.Now()
	var sub models.Submission

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Share-lock the event row so the status we read here cannot be
		// flipped to closed (and ranked) before this entry commits.
		var event models.DailyEvent
		if err := withLock(tx, "SHARE").First(&event, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: event", ErrNotFound)
			}
			return err
		}

		if event.Status != models.EventOpen {
			return fmt.Errorf("%w: event is %s", ErrEventNotOpen, event.Status)
		}
		if now.After(event.CloseAt) {
			return fmt.Errorf("%w: close time has passed", ErrEventNotOpen)
		}

		member, err := isMember(tx, event.SquadID, userID)
		if err != nil {
			return err
		}
		if !member {
			return fmt.Errorf("%w: not a squad member", ErrForbidden)
		}

		var count int64
		if err := tx.Model(&models.Submission{}).
			Where("event_id = ? AND external_user_id = ?", eventID, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: one entry per member per event", ErrDuplicateSubmission)
		}

		if event.Type == models.EventVote && input.Payload == "" {
			return fmt.Errorf("%w: vote events need a picked option", ErrValidationFailed)
		}

		sub = models.Submission{
			ID:             uuid.NewString(),
			EventID:        event.ID,
			SquadID:        event.SquadID,
			ExternalUserID: userID,
			Payload:        input.Payload,
			MediaRef:       input.MediaRef,
			SubmittedAt:    now,
		}
		// Only event types that produce a score keep one.
		if event.Type == models.EventTimedScore {
			if input.Score == nil {
				return fmt.Errorf("%w: timed events need a score", ErrValidationFailed)
			}
			sub.Score = input.Score
		}

		return tx.Create(&sub).Error
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Rank runs the ranking pass for an event. Safe to retry: once RankedAt is
// set the call is a no-op, so the assignment can never change after close.
func (s *SubmissionService) Rank(eventID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var event models.DailyEvent
		if err := tx.First(&event, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: event", ErrNotFound)
			}
			return err
		}
		return s.rankTx(tx, &event)
	})
}

func (s *SubmissionService) rankTx(tx *gorm.DB, event *models.DailyEvent) error {
	if event.RankedAt != nil {
		return nil
	}

	switch event.Type {
	case models.EventTimedScore:
		if err := rankTimedScore(tx, event.ID); err != nil {
			return err
		}
	case models.EventVote:
		tally, err := tallyVotes(tx, event.ID)
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(tally)
		if err != nil {
			return err
		}
		event.VoteTally = string(encoded)
	case models.EventMedia:
		// no ranking: first/last place are undefined for media events
	}

	now := s.Clock.Now()
	event.RankedAt = &now
	return tx.Model(event).
		Select("ranked_at", "vote_tally").
		Updates(map[string]interface{}{"ranked_at": now, "vote_tally": event.VoteTally}).Error
}

// rankTimedScore assigns 1-based dense ranks, lower score first, ties broken
// by earliest submission.
func rankTimedScore(tx *gorm.DB, eventID string) error {
	var subs []models.Submission
	if err := tx.Where("event_id = ? AND score IS NOT NULL", eventID).
		Order("score asc, submitted_at asc").
		Find(&subs).Error; err != nil {
		return err
	}

	for i := range subs {
		rank := i + 1
		if err := tx.Model(&models.Submission{}).
			Where("id = ?", subs[i].ID).
			UpdateColumn("rank", rank).Error; err != nil {
			return err
		}
	}
	return nil
}

// tallyVotes counts each picked option, most popular first (option name
// breaks count ties so the tally is stable).
func tallyVotes(tx *gorm.DB, eventID string) ([]models.TallyEntry, error) {
	var subs []models.Submission
	if err := tx.Where("event_id = ?", eventID).Find(&subs).Error; err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, sub := range subs {
		if sub.Payload != "" {
			counts[sub.Payload]++
		}
	}

	tally := make([]models.TallyEntry, 0, len(counts))
	for option, count := range counts {
		tally = append(tally, models.TallyEntry{Option: option, Count: count})
	}
	sort.Slice(tally, func(i, j int) bool {
		if tally[i].Count != tally[j].Count {
			return tally[i].Count > tally[j].Count
		}
		return tally[i].Option < tally[j].Option
	})
	return tally, nil
}

// EventLeaderboard returns an event's submissions in rank order (ranked ones
// first, then unranked by submit time).
func (s *SubmissionService) EventLeaderboard(eventID string) ([]models.Submission, error) {
	var subs []models.Submission
	err := s.DB.Where("event_id = ?", eventID).
		Order("rank asc NULLS LAST, submitted_at asc").
		Find(&subs).Error
	return subs, err
}
