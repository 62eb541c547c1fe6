package services

import (
	"errors"
	"fmt"
	"time"

	"squad-clash-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Point values. Podium bonuses apply to ranked (timed-score) events only.
const (
	PointsPerSubmission = 10
	MissPenaltyPoints   = 5
)

var podiumBonus = map[int]int64{1: 5, 2: 3, 3: 1}

// StatsService converts submissions and misses into weekly/lifetime points,
// streaks, and strikes. It is the only writer of MemberStats.
type StatsService struct {
	DB    *gorm.DB
	Clock Clock
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{DB: db, Clock: SystemClock}
}

// OnSubmission credits points and advances the streak. "Today" is the squad's
// local calendar date; running it twice on the same day only counts once.
func (s *StatsService) OnSubmission(squadID, userID string, points int64) (*models.MemberStats, error) {
	var out *models.MemberStats
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		stats, err := s.onSubmissionTx(tx, squadID, userID, points)
		out = stats
		return err
	})
	return out, err
}

func (s *StatsService) onSubmissionTx(tx *gorm.DB, squadID, userID string, points int64) (*models.MemberStats, error) {
	today, err := squadLocalToday(tx, squadID, s.Clock.Now())
	if err != nil {
		return nil, err
	}

	stats, err := ensureStats(tx, squadID, userID)
	if err != nil {
		return nil, err
	}

	if stats.LastParticipation == today {
		// already counted for today
		return stats, nil
	}

	stats.WeeklyPoints += points
	stats.LifetimePoints += points

	if stats.LastParticipation == dayBefore(today) {
		stats.StreakDays++
	} else {
		stats.StreakDays = 1
	}
	stats.LastParticipation = today

	if err := tx.Save(stats).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// ApplyMissedEventPenalty docks the no-show penalty for one member of a
// closed event. Keyed per (event, member), so re-delivery is a no-op, and a
// member who did submit an entry can never be penalized.
func (s *StatsService) ApplyMissedEventPenalty(eventID, userID string) (*models.MemberStats, error) {
	var out *models.MemberStats
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var event models.DailyEvent
		if err := tx.First(&event, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: event", ErrNotFound)
			}
			return err
		}
		if event.Status != models.EventClosed && event.Status != models.EventFinalized {
			return fmt.Errorf("%w: cannot penalize a %s event", ErrInvalidTransition, event.Status)
		}

		member, err := isMember(tx, event.SquadID, userID)
		if err != nil {
			return err
		}
		if !member {
			return fmt.Errorf("%w: not a squad member", ErrForbidden)
		}

		var submitted int64
		if err := tx.Model(&models.Submission{}).
			Where("event_id = ? AND external_user_id = ?", eventID, userID).
			Count(&submitted).Error; err != nil {
			return err
		}
		if submitted > 0 {
			return fmt.Errorf("%w: member submitted an entry", ErrValidationFailed)
		}

		stats, err := s.applyMissPenaltyTx(tx, &event, userID)
		out = stats
		return err
	})
	return out, err
}

// applyMissPenaltyTx applies the penalty at most once per (event, member).
// The finalize pass and the standalone operation both run through here, so
// neither can double what the other already applied.
func (s *StatsService) applyMissPenaltyTx(tx *gorm.DB, event *models.DailyEvent, userID string) (*models.MemberStats, error) {
	var marked int64
	if err := tx.Model(&models.MissPenalty{}).
		Where("event_id = ? AND external_user_id = ?", event.ID, userID).
		Count(&marked).Error; err != nil {
		return nil, err
	}
	if marked > 0 {
		return ensureStats(tx, event.SquadID, userID)
	}

	marker := models.MissPenalty{
		ID:             uuid.NewString(),
		EventID:        event.ID,
		SquadID:        event.SquadID,
		ExternalUserID: userID,
		AppliedAt:      s.Clock.Now(),
	}
	if err := tx.Create(&marker).Error; err != nil {
		return nil, err
	}
	return s.onMissedEventTx(tx, event.SquadID, userID)
}

func (s *StatsService) onMissedEventTx(tx *gorm.DB, squadID, userID string) (*models.MemberStats, error) {
	stats, err := ensureStats(tx, squadID, userID)
	if err != nil {
		return nil, err
	}

	stats.WeeklyPoints = floorZero(stats.WeeklyPoints - MissPenaltyPoints)
	stats.LifetimePoints = floorZero(stats.LifetimePoints - MissPenaltyPoints)
	stats.StreakDays = 0
	stats.StrikeCount++

	if err := tx.Save(stats).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// ResetWeekly zeroes weekly points everywhere. Run once per week boundary;
// extra runs are harmless.
func (s *StatsService) ResetWeekly() (int64, error) {
	res := s.DB.Model(&models.MemberStats{}).
		Where("weekly_points <> 0").
		Update("weekly_points", 0)
	return res.RowsAffected, res.Error
}

// DecayStrikes drops every positive strike counter by one. Run once per
// period boundary.
func (s *StatsService) DecayStrikes() (int64, error) {
	res := s.DB.Model(&models.MemberStats{}).
		Where("strike_count > 0").
		UpdateColumn("strike_count", gorm.Expr("strike_count - 1"))
	return res.RowsAffected, res.Error
}

// SquadLeaderboard returns the squad's stats rows, best weekly score first.
func (s *StatsService) SquadLeaderboard(squadID string) ([]models.MemberStats, error) {
	var rows []models.MemberStats
	err := s.DB.Where("squad_id = ?", squadID).
		Order("weekly_points desc, lifetime_points desc").
		Find(&rows).Error
	return rows, err
}

func ensureStats(tx *gorm.DB, squadID, userID string) (*models.MemberStats, error) {
	var stats models.MemberStats
	err := tx.Where("squad_id = ? AND external_user_id = ?", squadID, userID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = models.MemberStats{
			ID:             uuid.NewString(),
			SquadID:        squadID,
			ExternalUserID: userID,
		}
		if err := tx.Create(&stats).Error; err != nil {
			return nil, err
		}
		return &stats, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func squadLocalToday(tx *gorm.DB, squadID string, now time.Time) (string, error) {
	var squad models.Squad
	if err := tx.First(&squad, "id = ?", squadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: squad", ErrNotFound)
		}
		return "", err
	}
	return squadToday(now, squad.Timezone), nil
}

func dayBefore(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format("2006-01-02")
}

func floorZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
