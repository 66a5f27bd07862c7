package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	cases := map[string]time.Time{
		"31/01/2024":           date(2024, 1, 31),
		"2024-02-29":           date(2024, 2, 29),
		"05-03-2024":           date(2024, 3, 5),
		"05.03.2024":           date(2024, 3, 5),
		"05/03/24":             date(2024, 3, 5),
		"2024-03-05T14:30:00Z": date(2024, 3, 5),
	}
	for in, expected := range cases {
		got, err := ParseDate(in, "")
		require.NoError(t, err, in)
		assert.Equal(t, expected, got, in)
	}

	_, err := ParseDate("2024-02-30", "")
	assert.ErrorIs(t, err, ErrInvalidDate)
	_, err = ParseDate("", "")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestParseDate_PreferredLayout(t *testing.T) {
	// 03/05/2024 is 3 May in the default layouts; the explicit layout wins.
	got, err := ParseDate("03/05/2024", "01/02/2006")
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 5), got)
}

func TestAddMonthsClamped(t *testing.T) {
	assert.Equal(t, date(2024, 2, 29), AddMonthsClamped(date(2024, 1, 31), 1))
	assert.Equal(t, date(2023, 2, 28), AddMonthsClamped(date(2023, 1, 31), 1))
	assert.Equal(t, date(2024, 4, 30), AddMonthsClamped(date(2024, 1, 31), 3))
	assert.Equal(t, date(2025, 1, 15), AddMonthsClamped(date(2024, 12, 15), 1))
	assert.Equal(t, date(2024, 2, 29), AddMonthsClamped(date(2024, 3, 31), -1))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 3, DaysBetween(date(2024, 3, 1), date(2024, 2, 27)))
	assert.Equal(t, 3, DaysBetween(date(2024, 2, 27), date(2024, 3, 1)))
	assert.Equal(t, 0, DaysBetween(date(2024, 3, 1), time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)))
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(2024, time.February)
	assert.Equal(t, date(2024, 2, 1), start)
	assert.Equal(t, date(2024, 2, 29), end)

	start, end = MonthBounds(2023, time.December)
	assert.Equal(t, date(2023, 12, 1), start)
	assert.Equal(t, date(2023, 12, 31), end)
}

func TestMonthHelpers(t *testing.T) {
	m, err := ParseMonth("2024-03")
	require.NoError(t, err)
	assert.Equal(t, "2024-03", MonthKey(m))
	assert.Equal(t, "Mar/2024", MonthLabel(m))
	assert.Equal(t, "Março", MonthName(m.Month()))

	_, err = ParseMonth("2024-13")
	assert.ErrorIs(t, err, ErrInvalidDate)
}
