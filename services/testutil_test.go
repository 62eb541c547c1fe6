package services

import (
	"testing"
	"time"

	"squad-clash-system/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeClock lets tests drive time instead of sleeping.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
}

func fixedSeed(seed int64) SeedFunc {
	return func() int64 { return seed }
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection serializes transactions the way a row lock would,
	// which is what the concurrency tests lean on.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Squad{},
		&models.Membership{},
		&models.DailyEvent{},
		&models.Submission{},
		&models.MemberStats{},
		&models.MissPenalty{},
		&models.Power{},
		&models.ActiveTarget{},
		&models.Crown{},
		&models.Headline{},
		&models.Rivalry{},
		&models.Challenge{},
		&models.ChallengeVote{},
	))
	return db
}

// testEnv bundles the services under test with a shared fake clock.
type testEnv struct {
	db          *gorm.DB
	clock       *fakeClock
	squads      *SquadService
	stats       *StatsService
	submissions *SubmissionService
	powers      *PowerService
	crowns      *CrownService
	judges      *JudgeService
	events      *EventService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	clock := newFakeClock()

	squads := NewSquadService(db)
	stats := NewStatsService(db)
	stats.Clock = clock
	submissions := NewSubmissionService(db)
	submissions.Clock = clock
	powers := NewPowerService(db)
	powers.Clock = clock
	powers.Seed = fixedSeed(1)
	crowns := NewCrownService(db)
	crowns.Clock = clock
	judges := NewJudgeService(db)
	judges.Clock = clock
	judges.Seed = fixedSeed(1)
	events := NewEventService(db, submissions, stats, powers, crowns, judges)
	events.Clock = clock

	return &testEnv{
		db:          db,
		clock:       clock,
		squads:      squads,
		stats:       stats,
		submissions: submissions,
		powers:      powers,
		crowns:      crowns,
		judges:      judges,
		events:      events,
	}
}

// newSquad creates a squad whose first member is the admin.
func (env *testEnv) newSquad(t *testing.T, memberIDs ...string) *models.Squad {
	t.Helper()
	squad, err := env.squads.CreateSquad("Test Squad", "UTC", memberIDs[0])
	require.NoError(t, err)
	for _, id := range memberIDs[1:] {
		_, err := env.squads.JoinSquad(squad.InviteCode, id)
		require.NoError(t, err)
	}
	return squad
}

// newOpenEvent schedules an event for the clock's current day and opens it.
func (env *testEnv) newOpenEvent(t *testing.T, squadID, eventType string) *models.DailyEvent {
	t.Helper()
	now := env.clock.Now()
	event, err := env.events.CreateEvent(CreateEventInput{
		SquadID:   squadID,
		EventDate: now.Format("2006-01-02"),
		Type:      eventType,
		Title:     "daily",
		OpenAt:    now.Add(-time.Hour),
		CloseAt:   now.Add(time.Hour),
	})
	require.NoError(t, err)
	opened, err := env.events.OpenEvent(event.ID)
	require.NoError(t, err)
	return opened
}

func floatPtr(v float64) *float64 { return &v }
