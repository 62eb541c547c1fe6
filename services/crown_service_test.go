package services

import (
	"strings"
	"sync"
	"testing"
	"time"

	"squad-clash-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwardCrownGoesToRankOne(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob", "carol")
	event := rankedEvent(t, env, squad.ID)

	crown, err := env.crowns.AwardCrown(event.ID)
	require.NoError(t, err)
	require.NotNil(t, crown)
	assert.Equal(t, "bob", crown.ExternalUserID)

	// At-least-once delivery: the second award returns the first crown.
	again, err := env.crowns.AwardCrown(event.ID)
	require.NoError(t, err)
	assert.Equal(t, crown.ID, again.ID)

	var count int64
	require.NoError(t, env.db.Model(&models.Crown{}).Where("source_event_id = ?", event.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAwardCrownConcurrentRedeliveryKeepsOneRow(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob", "carol")
	event := rankedEvent(t, env, squad.ID)

	// Two deliveries landing together: both succeed, both see the same crown.
	var wg sync.WaitGroup
	crowns := make([]*models.Crown, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			crowns[i], errs[i] = env.crowns.AwardCrown(event.ID)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.NotNil(t, crowns[0])
	require.NotNil(t, crowns[1])
	assert.Equal(t, crowns[0].ID, crowns[1].ID)

	var count int64
	require.NoError(t, env.db.Model(&models.Crown{}).Where("source_event_id = ?", event.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAwardCrownNoWinnerIsNoop(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob")
	event := env.newOpenEvent(t, squad.ID, models.EventMedia)
	_, err := env.events.CloseEvent(event.ID)
	require.NoError(t, err)

	crown, err := env.crowns.AwardCrown(event.ID)
	require.NoError(t, err)
	assert.Nil(t, crown)
}

func awardedCrown(t *testing.T, env *testEnv, squadID string) *models.Crown {
	t.Helper()
	event := rankedEvent(t, env, squadID)
	crown, err := env.crowns.AwardCrown(event.ID)
	require.NoError(t, err)
	require.NotNil(t, crown)
	return crown
}

func TestCreateHeadlineUpserts(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob", "carol")
	crown := awardedCrown(t, env, squad.ID) // bob holds it

	_, err := env.crowns.CreateHeadline(crown.ID, "bob", "bow before the champ")
	require.NoError(t, err)

	// A later declaration supersedes, it never appends.
	_, err = env.crowns.CreateHeadline(crown.ID, "bob", "still the champ")
	require.NoError(t, err)

	var headlines []models.Headline
	require.NoError(t, env.db.Where("crown_id = ?", crown.ID).Find(&headlines).Error)
	require.Len(t, headlines, 1)
	assert.Equal(t, "still the champ", headlines[0].Content)
}

func TestCreateHeadlineValidation(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob", "carol")
	crown := awardedCrown(t, env, squad.ID)

	_, err := env.crowns.CreateHeadline(crown.ID, "bob", "   ")
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = env.crowns.CreateHeadline(crown.ID, "bob", strings.Repeat("x", HeadlineMaxLen+1))
	assert.ErrorIs(t, err, ErrValidationFailed)

	// Only the holder can declare.
	_, err = env.crowns.CreateHeadline(crown.ID, "alice", "pretender")
	assert.ErrorIs(t, err, ErrForbidden)

	// Nothing after expiry.
	env.clock.Advance(CrownLifetime + time.Minute)
	_, err = env.crowns.CreateHeadline(crown.ID, "bob", "too late")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestDeclareRivalryValidation(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob", "carol", "dave")
	crown := awardedCrown(t, env, squad.ID) // bob holds it

	// The crown holder can never be a rival.
	_, err := env.crowns.DeclareRivalry(crown.ID, "bob", "bob", "alice")
	assert.ErrorIs(t, err, ErrValidationFailed)

	// Rivals must be distinct.
	_, err = env.crowns.DeclareRivalry(crown.ID, "bob", "alice", "alice")
	assert.ErrorIs(t, err, ErrValidationFailed)

	// Rivals must belong to the squad.
	_, err = env.crowns.DeclareRivalry(crown.ID, "bob", "alice", "stranger")
	assert.ErrorIs(t, err, ErrValidationFailed)

	rivalry, err := env.crowns.DeclareRivalry(crown.ID, "bob", "alice", "carol")
	require.NoError(t, err)
	assert.Equal(t, "alice", rivalry.Rival1ID)
	assert.Equal(t, "carol", rivalry.Rival2ID)

	// Upsert: redeclaring swaps the rivals in place.
	_, err = env.crowns.DeclareRivalry(crown.ID, "bob", "carol", "dave")
	require.NoError(t, err)

	var rivalries []models.Rivalry
	require.NoError(t, env.db.Where("crown_id = ?", crown.ID).Find(&rivalries).Error)
	require.Len(t, rivalries, 1)
	assert.Equal(t, "carol", rivalries[0].Rival1ID)
	assert.Equal(t, "dave", rivalries[0].Rival2ID)
}

func TestGetActiveCrownHonorsExpiry(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob", "carol")
	crown := awardedCrown(t, env, squad.ID)

	_, err := env.crowns.CreateHeadline(crown.ID, "bob", "short reign")
	require.NoError(t, err)

	active, err := env.crowns.GetActiveCrown(squad.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, crown.ID, active.ID)
	require.NotNil(t, active.Headline)
	assert.Equal(t, "short reign", active.Headline.Content)

	headline, err := env.crowns.GetActiveHeadline(squad.ID)
	require.NoError(t, err)
	require.NotNil(t, headline)

	env.clock.Advance(CrownLifetime + time.Minute)

	active, err = env.crowns.GetActiveCrown(squad.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	headline, err = env.crowns.GetActiveHeadline(squad.ID)
	require.NoError(t, err)
	assert.Nil(t, headline)
}
