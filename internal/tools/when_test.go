package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday 2026-09-02 10:30 local
var refTime = time.Date(2026, 9, 2, 10, 30, 0, 0, time.Local)

func TestParseWhenRelative(t *testing.T) {
	got, err := ParseWhen("in 20 minutes", refTime)
	require.NoError(t, err)
	assert.Equal(t, refTime.Add(20*time.Minute), got)

	got, err = ParseWhen("in 2 hours", refTime)
	require.NoError(t, err)
	assert.Equal(t, refTime.Add(2*time.Hour), got)

	got, err = ParseWhen("in 3 days", refTime)
	require.NoError(t, err)
	assert.Equal(t, refTime.AddDate(0, 0, 3), got)

	got, err = ParseWhen("in 1 week", refTime)
	require.NoError(t, err)
	assert.Equal(t, refTime.AddDate(0, 0, 7), got)
}

func TestParseWhenDayWords(t *testing.T) {
	got, err := ParseWhen("tomorrow", refTime)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 3, 9, 0, 0, 0, time.Local), got)

	got, err = ParseWhen("tomorrow 9am", refTime)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 3, 9, 0, 0, 0, time.Local), got)

	got, err = ParseWhen("today at 5:30pm", refTime)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 2, 17, 30, 0, 0, time.Local), got)

	got, err = ParseWhen("tonight", refTime)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 2, 20, 0, 0, 0, time.Local), got)
}

func TestParseWhenWeekday(t *testing.T) {
	// Reference is a Wednesday; friday is two days out.
	got, err := ParseWhen("friday", refTime)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 4, 9, 0, 0, 0, time.Local), got)

	got, err = ParseWhen("friday at 3pm", refTime)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 4, 15, 0, 0, 0, time.Local), got)

	// Same weekday rolls a full week ahead.
	got, err = ParseWhen("wednesday", refTime)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 9, 9, 0, 0, 0, time.Local), got)
}

func TestParseWhenBareClockRollsForward(t *testing.T) {
	// 8am has already passed at the 10:30 reference.
	got, err := ParseWhen("8am", refTime)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 3, 8, 0, 0, 0, time.Local), got)

	got, err = ParseWhen("at 11am", refTime)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 2, 11, 0, 0, 0, time.Local), got)
}

func TestParseWhenAbsolute(t *testing.T) {
	got, err := ParseWhen("2026-10-01 15:04", refTime)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 1, 15, 4, 0, 0, time.Local), got)

	got, err = ParseWhen("2026-10-01", refTime)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 1, 9, 0, 0, 0, time.Local), got)
}

func TestParseWhenRejectsGarbage(t *testing.T) {
	for _, phrase := range []string{"", "whenever", "banana o'clock", "at 25:99"} {
		_, err := ParseWhen(phrase, refTime)
		assert.Error(t, err, "phrase %q", phrase)
	}
}
