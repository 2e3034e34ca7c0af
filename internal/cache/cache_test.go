package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvalidatePrefixDropsOnlyDayScope(t *testing.T) {
	c := NewTTLCache(time.Minute, time.Minute)
	c.Set(CurrentDayKey, 3, time.Minute)
	c.Set(LeaderboardKey(10), "board", time.Minute)
	c.Set("static:companies", "list", time.Minute)

	c.InvalidatePrefix(DayScope)

	_, ok := c.Get(CurrentDayKey)
	assert.False(t, ok)
	_, ok = c.Get(LeaderboardKey(10))
	assert.False(t, ok)
	v, ok := c.Get("static:companies")
	assert.True(t, ok)
	assert.Equal(t, "list", v)
}

func TestEntriesExpire(t *testing.T) {
	c := NewTTLCache(time.Minute, time.Minute)
	c.Set(CurrentDayKey, 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(CurrentDayKey)
	assert.False(t, ok)
}

func TestInvalidateSingleKey(t *testing.T) {
	c := NewTTLCache(time.Minute, time.Minute)
	c.Set(LeaderboardKey(5), "five", time.Minute)
	c.Set(LeaderboardKey(10), "ten", time.Minute)

	c.Invalidate(LeaderboardKey(5))

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, "day:leaderboard:10", LeaderboardKey(10))
}

func TestSetIfGenerationRefusesAfterInvalidation(t *testing.T) {
	c := NewTTLCache(time.Minute, time.Minute)
	gen := c.Generation()

	c.InvalidatePrefix(DayScope)
	assert.False(t, c.SetIfGeneration(CurrentDayKey, "stale", time.Minute, gen))
	_, ok := c.Get(CurrentDayKey)
	assert.False(t, ok)

	assert.True(t, c.SetIfGeneration(CurrentDayKey, "fresh", time.Minute, c.Generation()))
	v, ok := c.Get(CurrentDayKey)
	assert.True(t, ok)
	assert.Equal(t, "fresh", v)
}
