package services

import (
	"encoding/json"
	"testing"
	"time"

	"squad-clash-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRequiresOpenEvent(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob")

	event, err := env.events.CreateEvent(CreateEventInput{
		SquadID:   squad.ID,
		EventDate: env.clock.Now().Format("2006-01-02"),
		Type:      models.EventTimedScore,
		OpenAt:    env.clock.Now().Add(time.Hour),
		CloseAt:   env.clock.Now().Add(2 * time.Hour),
	})
	require.NoError(t, err)

	_, err = env.submissions.Submit(event.ID, "alice", SubmitInput{Score: floatPtr(10)})
	assert.ErrorIs(t, err, ErrEventNotOpen)
}

func TestSubmitOncePerMember(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob")
	event := env.newOpenEvent(t, squad.ID, models.EventTimedScore)

	_, err := env.submissions.Submit(event.ID, "alice", SubmitInput{Score: floatPtr(42)})
	require.NoError(t, err)

	_, err = env.submissions.Submit(event.ID, "alice", SubmitInput{Score: floatPtr(12)})
	assert.ErrorIs(t, err, ErrDuplicateSubmission)
}

func TestSubmitRejectsNonMembers(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice")
	event := env.newOpenEvent(t, squad.ID, models.EventTimedScore)

	_, err := env.submissions.Submit(event.ID, "stranger", SubmitInput{Score: floatPtr(42)})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSubmitRejectsAfterCloseTimeEvenIfStillOpen(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice")
	event := env.newOpenEvent(t, squad.ID, models.EventTimedScore)

	// Status is still open but the close timestamp has passed; the entry
	// must be rejected, never silently ranked.
	env.clock.Advance(2 * time.Hour)
	_, err := env.submissions.Submit(event.ID, "alice", SubmitInput{Score: floatPtr(42)})
	assert.ErrorIs(t, err, ErrEventNotOpen)
}

func TestRankTimedScoreAscendingWithTimestampTiebreak(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob", "carol", "dave")
	event := env.newOpenEvent(t, squad.ID, models.EventTimedScore)

	_, err := env.submissions.Submit(event.ID, "alice", SubmitInput{Score: floatPtr(120)})
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	_, err = env.submissions.Submit(event.ID, "bob", SubmitInput{Score: floatPtr(95)})
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	_, err = env.submissions.Submit(event.ID, "carol", SubmitInput{Score: floatPtr(310)})
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	_, err = env.submissions.Submit(event.ID, "dave", SubmitInput{Score: floatPtr(95)})
	require.NoError(t, err)

	require.NoError(t, env.submissions.Rank(event.ID))

	ranks := submissionRanks(t, env, event.ID)
	assert.Equal(t, 3, ranks["alice"])
	assert.Equal(t, 1, ranks["bob"]) // 95, submitted before dave
	assert.Equal(t, 4, ranks["carol"])
	assert.Equal(t, 2, ranks["dave"])
}

func TestRankIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob")
	event := env.newOpenEvent(t, squad.ID, models.EventTimedScore)

	_, err := env.submissions.Submit(event.ID, "alice", SubmitInput{Score: floatPtr(120)})
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	_, err = env.submissions.Submit(event.ID, "bob", SubmitInput{Score: floatPtr(95)})
	require.NoError(t, err)

	require.NoError(t, env.submissions.Rank(event.ID))
	first := submissionRanks(t, env, event.ID)

	require.NoError(t, env.submissions.Rank(event.ID))
	second := submissionRanks(t, env, event.ID)

	assert.Equal(t, first, second)
}

func TestRankVoteEventBuildsOrderedTally(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob", "carol")
	event := env.newOpenEvent(t, squad.ID, models.EventVote)

	for member, option := range map[string]string{"alice": "pizza", "bob": "tacos", "carol": "pizza"} {
		_, err := env.submissions.Submit(event.ID, member, SubmitInput{Payload: option})
		require.NoError(t, err)
	}

	require.NoError(t, env.submissions.Rank(event.ID))

	var stored models.DailyEvent
	require.NoError(t, env.db.First(&stored, "id = ?", event.ID).Error)

	var tally []models.TallyEntry
	require.NoError(t, json.Unmarshal([]byte(stored.VoteTally), &tally))
	require.Len(t, tally, 2)
	assert.Equal(t, models.TallyEntry{Option: "pizza", Count: 2}, tally[0])
	assert.Equal(t, models.TallyEntry{Option: "tacos", Count: 1}, tally[1])

	// No per-member ranks for vote events.
	var ranked int64
	require.NoError(t, env.db.Model(&models.Submission{}).
		Where("event_id = ? AND rank IS NOT NULL", event.ID).Count(&ranked).Error)
	assert.Zero(t, ranked)
}

func TestRankMediaEventWritesNoRanks(t *testing.T) {
	env := newTestEnv(t)
	squad := env.newSquad(t, "alice", "bob")
	event := env.newOpenEvent(t, squad.ID, models.EventMedia)

	_, err := env.submissions.Submit(event.ID, "alice", SubmitInput{MediaRef: "submissions/a.jpg"})
	require.NoError(t, err)

	require.NoError(t, env.submissions.Rank(event.ID))

	var ranked int64
	require.NoError(t, env.db.Model(&models.Submission{}).
		Where("event_id = ? AND rank IS NOT NULL", event.ID).Count(&ranked).Error)
	assert.Zero(t, ranked)
}

func submissionRanks(t *testing.T, env *testEnv, eventID string) map[string]int {
	t.Helper()
	var subs []models.Submission
	require.NoError(t, env.db.Where("event_id = ?", eventID).Find(&subs).Error)
	ranks := map[string]int{}
	for _, sub := range subs {
		if sub.Rank != nil {
			ranks[sub.ExternalUserID] = *sub.Rank
		}
	}
	return ranks
}
