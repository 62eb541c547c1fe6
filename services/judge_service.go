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

const (
	// Members at or above this strike count sit out judge rotation.
	JudgeStrikeCeiling = 3
	// ChallengeWindow is how long a squad has to overturn a decision.
	ChallengeWindow = 24 * time.Hour
	// DefaultThresholdPercent of cast votes needed to overturn.
	DefaultThresholdPercent = 50
)

// JudgeService picks judges and runs the challenge/overturn vote.
type JudgeService struct {
	DB     *gorm.DB
	Clock  Clock
	Seed   SeedFunc
	Notify *workers.Notifier
}

func NewJudgeService(db *gorm.DB) *JudgeService {
	return &JudgeService{DB: db, Clock: SystemClock, Seed: defaultSeed}
}

// SelectJudge draws uniformly among members below the strike ceiling, or
// among everyone when nobody qualifies. The draw runs over the candidate set
// sorted by member id, so for a given seed it is reproducible.
func (s *JudgeService) SelectJudge(squadID string) (string, error) {
	return s.selectJudgeTx(s.DB, squadID)
}

func (s *JudgeService) selectJudgeTx(tx *gorm.DB, squadID string) (string, error) {
	var members []models.Membership
	if err := tx.Where("squad_id = ?", squadID).Find(&members).Error; err != nil {
		return "", err
	}
	if len(members) == 0 {
		return "", fmt.Errorf("%w: squad has no members", ErrNotFound)
	}

	var stats []models.MemberStats
	if err := tx.Where("squad_id = ?", squadID).Find(&stats).Error; err != nil {
		return "", err
	}
	strikes := make(map[string]int, len(stats))
	for _, st := range stats {
		strikes[st.ExternalUserID] = st.StrikeCount
	}

	all := make([]string, 0, len(members))
	eligible := make([]string, 0, len(members))
	for _, m := range members {
		all = append(all, m.ExternalUserID)
		if strikes[m.ExternalUserID] < JudgeStrikeCeiling {
			eligible = append(eligible, m.ExternalUserID)
		}
	}
	if len(eligible) == 0 {
		eligible = all
	}

	return drawOne(eligible, s.Seed()), nil
}

// OpenChallenge starts a vote to overturn a judge decision or a power use.
// TargetID is the member the disputed decision favored or hit — they and the
// challenger are barred from voting.
func (s *JudgeService) OpenChallenge(squadID, challengerID, subjectType, subjectID, targetID, reason string) (*models.Challenge, error) {
	if subjectType != models.SubjectJudgeDecision && subjectType != models.SubjectPowerUse {
		return nil, fmt.Errorf("%w: unknown subject type %q", ErrValidationFailed, subjectType)
	}
	if subjectID == "" || targetID == "" {
		return nil, fmt.Errorf("%w: subject and target are required", ErrValidationFailed)
	}

	member, err := isMember(s.DB, squadID, challengerID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("%w: challenger is not a squad member", ErrForbidden)
	}

	challenge := models.Challenge{
		ID:               uuid.NewString(),
		SquadID:          squadID,
		SubjectType:      subjectType,
		SubjectID:        subjectID,
		Reason:           reason,
		ChallengerID:     challengerID,
		TargetID:         targetID,
		ThresholdPercent: DefaultThresholdPercent,
		Deadline:         s.Clock.Now().Add(ChallengeWindow),
		Status:           models.ChallengeActive,
	}
	if err := s.DB.Create(&challenge).Error; err != nil {
		return nil, err
	}

	s.Notify.Publish("challenge.opened", squadID, challenge.ID, challenge)
	return &challenge, nil
}

// CastVote records one ballot per eligible member and flips the challenge to
// passed the moment the "for" share of cast votes reaches the threshold.
func (s *JudgeService) CastVote(challengeID, voterID, choice string) (*models.Challenge, error) {
	if choice != models.VoteFor && choice != models.VoteAgainst {
		return nil, fmt.Errorf("%w: choice must be %q or %q", ErrValidationFailed, models.VoteFor, models.VoteAgainst)
	}

	now := s.Clock.Now()
	var out models.Challenge
	deadlineHit := false

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var challenge models.Challenge
		if err := tx.First(&challenge, "id = ?", challengeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: challenge", ErrNotFound)
			}
			return err
		}

		if challenge.Status != models.ChallengeActive {
			return fmt.Errorf("%w: challenge is %s", ErrInvalidTransition, challenge.Status)
		}
		if now.After(challenge.Deadline) {
			// Resolve on the way out so the sweep doesn't have to race us.
			// The resolution must commit, so the rejection happens after
			// the transaction, not inside it.
			deadlineHit = true
			return resolvePastDeadline(tx, &challenge, now)
		}

		if voterID == challenge.ChallengerID || voterID == challenge.TargetID {
			return fmt.Errorf("%w: challenger and target cannot vote", ErrForbidden)
		}
		member, err := isMember(tx, challenge.SquadID, voterID)
		if err != nil {
			return err
		}
		if !member {
			return fmt.Errorf("%w: not a squad member", ErrForbidden)
		}

		var count int64
		if err := tx.Model(&models.ChallengeVote{}).
			Where("challenge_id = ? AND voter_id = ?", challengeID, voterID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: one vote per member", ErrDuplicateSubmission)
		}

		vote := models.ChallengeVote{
			ID:          uuid.NewString(),
			ChallengeID: challengeID,
			VoterID:     voterID,
			Choice:      choice,
			CastAt:      now,
		}
		if err := tx.Create(&vote).Error; err != nil {
			return err
		}

		if choice == models.VoteFor {
			challenge.VotesFor++
		} else {
			challenge.VotesAgainst++
		}

		// Passes the moment the "for" share reaches the threshold: at 50%
		// a 2–2 tie is enough.
		total := challenge.VotesFor + challenge.VotesAgainst
		if challenge.VotesFor*100 >= challenge.ThresholdPercent*total {
			challenge.Status = models.ChallengePassed
			challenge.ResolvedAt = &now
		}

		if err := tx.Save(&challenge).Error; err != nil {
			return err
		}
		out = challenge
		return nil
	})
	if err != nil {
		return nil, err
	}
	if deadlineHit {
		return nil, fmt.Errorf("%w: voting deadline has passed", ErrInvalidTransition)
	}

	if out.Status == models.ChallengePassed {
		s.Notify.Publish("challenge.passed", out.SquadID, out.ID, out)
	}
	return &out, nil
}

// ExpireChallenges resolves every active challenge whose deadline has passed.
// Called periodically by the scheduler; running it more often is harmless.
func (s *JudgeService) ExpireChallenges() (int, error) {
	now := s.Clock.Now()
	resolved := 0

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var due []models.Challenge
		if err := tx.Where("status = ? AND deadline < ?", models.ChallengeActive, now).
			Find(&due).Error; err != nil {
			return err
		}
		for i := range due {
			if err := resolvePastDeadline(tx, &due[i], now); err != nil {
				return err
			}
			resolved++
		}
		return nil
	})
	return resolved, err
}

// resolvePastDeadline applies the deadline rule: votes were cast but the
// threshold never hit → failed (the decision stands); nobody voted → expired.
func resolvePastDeadline(tx *gorm.DB, challenge *models.Challenge, now time.Time) error {
	if challenge.VotesFor+challenge.VotesAgainst > 0 {
		challenge.Status = models.ChallengeFailed
	} else {
		challenge.Status = models.ChallengeExpired
	}
	challenge.ResolvedAt = &now
	return tx.Model(challenge).
		Updates(map[string]interface{}{"status": challenge.Status, "resolved_at": now}).Error
}

// GetChallenge returns a challenge with its votes.
func (s *JudgeService) GetChallenge(challengeID string) (*models.Challenge, error) {
	var challenge models.Challenge
	err := s.DB.Preload("Votes").First(&challenge, "id = ?", challengeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: challenge", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}
