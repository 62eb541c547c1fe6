package services

import (
	"math/rand"
	"sort"
	"time"
)

// Clock supplies "now" to every open/close/expiry comparison so tests can
// drive time instead of sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall-clock used outside tests.
var SystemClock Clock = systemClock{}

// SeedFunc produces the seed for a single random draw. The default is
// time-based; tests pin it.
type SeedFunc func() int64

func defaultSeed() int64 { return time.Now().UnixNano() }

// drawOne picks uniformly from candidates after sorting them, so the draw
// depends only on the seed and the candidate set, not on store ordering.
func drawOne(candidates []string, seed int64) string {
	if len(candidates) == 0 {
		return ""
	}
	sorted := make([]string, len(candidates))
	copy(sorted, candidates)
	sort.Strings(sorted)
	r := rand.New(rand.NewSource(seed))
	return sorted[r.Intn(len(sorted))]
}

// squadToday formats now as a calendar date in the squad's timezone,
// falling back to UTC when the zone name is unset or bad.
func squadToday(now time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if tz == "" || err != nil {
		loc = time.UTC
	}
	return now.In(loc).Format("2006-01-02")
}
