package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarContext(t *testing.T) {
	//** Arrange
	context, err := NewCalendarContext(CalendarConfig{Start: "2025-01-06", Weeks: 2})
	require.NoError(t, err)

	t.Run("Defaults", func(t *testing.T) {
		assert.Equal(t, uint64(6), context.Weekdays())
		assert.Equal(t, uint64(3), context.Slots())
		definition, ok := context.SlotDefinition(2)
		require.True(t, ok)
		assert.Equal(t, Afternoon, definition.TimeOfDay)
		_, ok = context.SlotDefinition(3)
		assert.False(t, ok)
	})

	t.Run("Resolve", func(t *testing.T) {
		testCases := []struct {
			date string
			week uint64
			day  uint64
			ok   bool
		}{
			{"2025-01-06", 0, 0, true},
			{"2025-01-11", 0, 5, true},
			{"2025-01-12", 0, 0, false}, // Sunday
			{"2025-01-15", 1, 2, true},
			{"2025-01-20", 0, 0, false}, // After the horizon
			{"2025-01-01", 0, 0, false}, // Before the horizon
		}
		for _, testCase := range testCases {
			//** Act
			week, day, err := context.ResolveString(testCase.date)

			//** Assert
			if !testCase.ok {
				assert.Error(t, err, testCase.date)
				continue
			}
			require.NoError(t, err, testCase.date)
			assert.Equal(t, testCase.week, week, testCase.date)
			assert.Equal(t, testCase.day, day, testCase.date)
			assert.Equal(t, testCase.date, context.Date(week, day).Format(DateLayout))
		}
	})

	t.Run("Malformed date", func(t *testing.T) {
		_, _, err := context.ResolveString("6 January")
		assert.Error(t, err)
	})
}

func TestInvalidCalendarConfig(t *testing.T) {
	testCases := []struct {
		name   string
		config CalendarConfig
	}{
		{"Malformed start", CalendarConfig{Start: "06-01-2025", Weeks: 1}},
		{"No weeks", CalendarConfig{Start: "2025-01-06"}},
		{"Eight days a week", CalendarConfig{Start: "2025-01-06", Weeks: 1, Weekdays: 8}},
		{"Slot ending before it starts", CalendarConfig{Start: "2025-01-06", Weeks: 1, Slots: []SlotDefinition{{Name: "late", Start: "12:00", End: "11:00"}}}},
		{"Reversed blackout", CalendarConfig{Start: "2025-01-06", Weeks: 1, Blackouts: []Blackout{{From: "2025-01-09", To: "2025-01-08"}}}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			//** Act
			_, err := NewCalendarContext(testCase.config)

			//** Assert
			assert.Error(t, err)
		})
	}
}

func TestCalendar(t *testing.T) {
	//** Arrange
	context, err := NewCalendarContext(CalendarConfig{
		Start:     "2025-01-06",
		Weeks:     2,
		Weekdays:  5,
		Blackouts: []Blackout{{From: "2025-01-08", To: "2025-01-09"}},
	})
	require.NoError(t, err)

	//** Act
	calendar := NewCalendar(context)

	//** Assert
	assert.Len(t, calendar.Slots, (2*5-2)*3)
	assert.Equal(t, uint64(2), calendar.Weeks())
	assert.Empty(t, calendar.SlotsOn(0, 2))
	assert.Empty(t, calendar.SlotsOn(0, 3))
	assert.Len(t, calendar.SlotsOn(1, 2), 3)

	_, ok := calendar.Slot(SlotKey{Week: 0, Day: 2, Slot: 0})
	assert.False(t, ok)
	slot, ok := calendar.Slot(SlotKey{Week: 1, Day: 4, Slot: 1})
	require.True(t, ok)
	assert.Equal(t, "2025-01-17", slot.Date.Format(DateLayout))
	assert.Equal(t, "10:45", slot.Start)
	assert.Equal(t, Morning, slot.TimeOfDay)

	for i := 1; i < len(calendar.Slots); i++ {
		assert.Negative(t, calendar.Slots[i-1].Key().compare(calendar.Slots[i].Key()))
	}
}

func TestCalendarFromSlots(t *testing.T) {
	//** Arrange
	context, err := NewCalendarContext(CalendarConfig{Start: "2025-01-06", Weeks: 1, Weekdays: 5})
	require.NoError(t, err)
	slots := []TimeSlot{
		{Week: 0, Day: 3, Slot: 0, TimeOfDay: Morning},
		{Week: 0, Day: 1, Slot: 2, TimeOfDay: Afternoon},
	}

	//** Act
	calendar := NewCalendarFromSlots(context, slots)

	//** Assert
	require.Len(t, calendar.Slots, 2)
	assert.Equal(t, uint64(1), calendar.Slots[0].Day)
	_, ok := calendar.Slot(SlotKey{Week: 0, Day: 3, Slot: 0})
	assert.True(t, ok)
}

func TestParseTimeOfDay(t *testing.T) {
	testCases := []struct {
		value    string
		expected TimeOfDay
		fails    bool
	}{
		{"", AnyTime, false},
		{"any", AnyTime, false},
		{"Morning", Morning, false},
		{" pm ", Afternoon, false},
		{"evening", AnyTime, true},
	}

	for _, testCase := range testCases {
		//** Act
		timeOfDay, err := ParseTimeOfDay(testCase.value)

		//** Assert
		if testCase.fails {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, testCase.expected, timeOfDay)
	}

	assert.True(t, AnyTime.Covers(Afternoon))
	assert.True(t, Morning.Covers(Morning))
	assert.False(t, Morning.Covers(Afternoon))
}
