package services

import (
	"sync"
	"testing"
	"time"

	"squad-clash-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rankedEvent builds a finalized three-way timed event: bob 1st, alice 2nd,
// carol 3rd (the underdog).
func rankedEvent(t *testing.T, env *testEnv, squadID string) *models.DailyEvent {
	t.Helper()
	event := env.newOpenEvent(t, squadID, models.EventTimedScore)

	_, err := env.submissions.Submit(event.ID, "alice", SubmitInput{Score: floatPtr(120)})
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	_, err = env.submissions.Submit(event.ID, "bob", SubmitInput{Score: floatPtr(95)})
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	_, err = env.submissions.Submit(event.ID, "carol", SubmitInput{Score: floatPtr(310)})
	require.NoError(t, err)

	_, err = env.events.CloseEvent(event.ID)
	require.NoError(t, err)
	return event
}

func TestAwardUnderdogPowerGoesToWorstRank(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob", "carol")
	event := rankedEvent(t, env, squad.ID)

	power, err := env.powers.AwardUnderdogPower(event.ID)
	require.NoError(t, err)
	require.NotNil(t, power)
	assert.Equal(t, "carol", power.ExternalUserID)
	assert.Contains(t, models.PowerTypes, power.Type)
	assert.Equal(t, power.GrantedAt.Add(PowerLifetime), power.ExpiresAt)

	// Re-delivery returns the same grant.
	again, err := env.powers.AwardUnderdogPower(event.ID)
	require.NoError(t, err)
	assert.Equal(t, power.ID, again.ID)
}

func TestAwardUnderdogPowerConcurrentRedeliveryKeepsOneRow(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob", "carol")
	event := rankedEvent(t, env, squad.ID)

	var wg sync.WaitGroup
	powers := make([]*models.Power, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			powers[i], errs[i] = env.powers.AwardUnderdogPower(event.ID)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.NotNil(t, powers[0])
	require.NotNil(t, powers[1])
	assert.Equal(t, powers[0].ID, powers[1].ID)

	var count int64
	require.NoError(t, env.db.Model(&models.Power{}).Where("source_event_id = ?", event.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAwardUnderdogPowerNoRankedFinisherIsNoop(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob")
	event := env.newOpenEvent(t, squad.ID, models.EventMedia)
	_, err := env.events.CloseEvent(event.ID)
	require.NoError(t, err)

	power, err := env.powers.AwardUnderdogPower(event.ID)
	require.NoError(t, err)
	assert.Nil(t, power)
}

func grantPower(t *testing.T, env *testEnv, squadID, owner, powerType string) *models.Power {
	t.Helper()
	now := env.clock.Now()
	power := &models.Power{
		ID:             "pw-" + owner + "-" + powerType,
		SquadID:        squadID,
		ExternalUserID: owner,
		SourceEventID:  "evt-" + owner + "-" + powerType,
		Type:           powerType,
		GrantedAt:      now,
		ExpiresAt:      now.Add(PowerLifetime),
	}
	require.NoError(t, env.db.Create(power).Error)
	return power
}

func TestUsePowerChecks(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob")

	_, err := env.powers.UsePower("missing", "alice", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	power := grantPower(t, env, squad.ID, "alice", models.PowerShield)

	_, err = env.powers.UsePower(power.ID, "bob", nil)
	assert.ErrorIs(t, err, ErrForbidden)

	used, err := env.powers.UsePower(power.ID, "alice", map[string]string{"note": "saved"})
	require.NoError(t, err)
	require.NotNil(t, used.UsedAt)
	assert.False(t, used.UsedAt.After(used.ExpiresAt))
	assert.Contains(t, used.Metadata, "saved")

	_, err = env.powers.UsePower(power.ID, "alice", nil)
	assert.ErrorIs(t, err, ErrAlreadyUsed)
}

func TestUsePowerExpired(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice")
	power := grantPower(t, env, squad.ID, "alice", models.PowerShield)

	env.clock.Advance(PowerLifetime + time.Minute)
	_, err := env.powers.UsePower(power.ID, "alice", nil)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestUsePowerConcurrentAttemptsExactlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob")
	power := grantPower(t, env, squad.ID, "alice", models.PowerDoublePoints)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.powers.UsePower(power.ID, "alice", nil)
		}(i)
	}
	wg.Wait()

	successes, alreadyUsed := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, ErrAlreadyUsed):
			alreadyUsed++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, alreadyUsed)
}

func TestTargetLockCreatesActiveTarget(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob")
	power := grantPower(t, env, squad.ID, "alice", models.PowerTargetLock)

	used, err := env.powers.UsePower(power.ID, "alice", map[string]string{"target_id": "bob"})
	require.NoError(t, err)
	require.NotNil(t, used.UsedAt)

	var target models.ActiveTarget
	require.NoError(t, env.db.First(&target, "power_id = ?", power.ID).Error)
	assert.Equal(t, "alice", target.TargeterID)
	assert.Equal(t, "bob", target.TargetID)
	assert.True(t, target.ExpiresAt.Equal(used.ExpiresAt))
}

func TestTargetLockRejectsSelfAndOutsiders(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob")

	power := grantPower(t, env, squad.ID, "alice", models.PowerTargetLock)
	_, err := env.powers.UsePower(power.ID, "alice", map[string]string{"target_id": "alice"})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = env.powers.UsePower(power.ID, "alice", map[string]string{"target_id": "stranger"})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = env.powers.UsePower(power.ID, "alice", nil)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestTargetLockConcurrentUseCreatesOneTarget(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob")
	power := grantPower(t, env, squad.ID, "alice", models.PowerTargetLock)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.powers.UsePower(power.ID, "alice", map[string]string{"target_id": "bob"})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyUsed)
		}
	}
	assert.Equal(t, 1, successes)

	var targets int64
	require.NoError(t, env.db.Model(&models.ActiveTarget{}).Where("power_id = ?", power.ID).Count(&targets).Error)
	assert.Equal(t, int64(1), targets)
}

func TestActivePowersSkipsUsedAndExpired(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice")

	fresh := grantPower(t, env, squad.ID, "alice", models.PowerShield)
	used := grantPower(t, env, squad.ID, "alice", models.PowerDoublePoints)
	_, err := env.powers.UsePower(used.ID, "alice", nil)
	require.NoError(t, err)

	active, err := env.powers.ActivePowers(squad.ID, "alice")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, fresh.ID, active[0].ID)

	env.clock.Advance(PowerLifetime + time.Minute)
	active, err = env.powers.ActivePowers(squad.ID, "alice")
	require.NoError(t, err)
	assert.Empty(t, active)
}
