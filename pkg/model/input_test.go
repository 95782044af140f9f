package model

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCatalogFile = "testdata/catalog.json"
	testCsvDir      = "testdata/csv"
)

func fullWeekCalendar(t *testing.T) Calendar {
	return testCalendar(t, 4, 6, nil)
}

func TestInputFromJson(t *testing.T) {
	//** Arrange
	calendar := fullWeekCalendar(t)

	//** Act
	input, err := InputFromJson(testCatalogFile, calendar)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, input.ClassIds)
	assert.Equal(t, []uint64{1, 2}, input.TrainerIds)

	assert.Equal(t, Morning, input.Schools[1].TimeOfDay)
	assert.Equal(t, []uint64{0, 2}, input.Schools[1].Weekdays)
	assert.True(t, input.Schools[2].Saturday)

	// Requirements follow the lab order and the meeting count precedence
	require.Len(t, input.Requirements[1], 2)
	assert.Equal(t, uint64(1), input.Requirements[1][0].Lab)
	assert.Equal(t, uint64(1), input.Requirements[1][0].Meetings)
	assert.Equal(t, uint64(2), input.Requirements[1][1].Lab)
	assert.Equal(t, uint64(2), input.Requirements[1][1].Meetings)
	assert.Equal(t, uint64(3), input.Requirements[2][0].Meetings)
	assert.Equal(t, uint64(2), input.Requirements[3][0].Meetings)
	assert.Equal(t, Afternoon, input.Requirements[3][0].TimeOfDay)
	assert.Equal(t, []SlotKey{{Week: 0, Day: 1, Slot: 2}}, input.Requirements[3][0].Fixed)

	// The exclusion outside the horizon is dropped
	assert.Equal(t, []SlotKey{{0, 2, 0}, {0, 2, 1}, {0, 2, 2}}, input.Excluded[3])

	assert.Equal(t, uint64(1), input.Groups[1])
	assert.Equal(t, uint64(1), input.Groups[2])
	assert.Equal(t, uint64(3), input.Groups[3])

	assert.Equal(t, uint64(3), input.Tiers)
	assert.Equal(t, uint64(0), input.Classes[1].Priority)
	assert.Equal(t, uint64(1), input.Classes[3].Priority)

	assert.Len(t, input.Trainers[2].Dates, 1)
	assert.Equal(t, []DaySlot{{Day: 1, Slot: 2}}, input.Classes[3].Slots)
}

func TestInputFromCsv(t *testing.T) {
	//** Arrange
	calendar := fullWeekCalendar(t)

	//** Act
	input, err := InputFromCsv(testCsvDir, "small", calendar)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, input.ClassIds)
	assert.Equal(t, Morning, input.Schools[1].TimeOfDay)
	assert.Equal(t, AnyTime, input.Schools[2].TimeOfDay)
	assert.Empty(t, input.Schools[2].Weekdays)

	require.NotNil(t, input.Classes[1].Partner)
	assert.Equal(t, uint64(2), *input.Classes[1].Partner)
	assert.Nil(t, input.Classes[3].Partner)
	assert.Equal(t, []DaySlot{{Day: 1, Slot: 2}, {Day: 3, Slot: 2}}, input.Classes[3].Slots)

	assert.Equal(t, []uint64{1, 2}, input.Trainers[1].Labs)
	assert.Len(t, input.Trainers[1].Availability, 2)
	assert.True(t, input.Trainers[2].Saturday)
	assert.Empty(t, input.Trainers[2].Labs)
	assert.Equal(t, 1.5, input.Labs[2].Hours)

	assert.Equal(t, []uint64{1, 1}, lo.Map(input.Requirements[1], func(requirement Requirement, _ int) uint64 { return requirement.Meetings }))
	assert.Equal(t, uint64(3), input.Requirements[2][0].Meetings)
	assert.Equal(t, []SlotKey{{Week: 0, Day: 1, Slot: 2}}, input.Requirements[3][0].Fixed)

	assert.Equal(t, []SlotKey{{Week: 1, Day: 0, Slot: 1}}, input.Excluded[1])
	assert.Len(t, input.Excluded[3], 3)

	assert.Equal(t, uint64(2), input.Tiers)
	assert.Equal(t, uint64(0), input.Classes[2].Priority)
	assert.Equal(t, uint64(1), input.Classes[3].Priority)
}

func TestInputFromCsvMissingTable(t *testing.T) {
	//** Act
	_, err := InputFromCsv(testCsvDir, "absent", fullWeekCalendar(t))

	//** Assert
	assert.Error(t, err)
}

func TestMeetingPrecedence(t *testing.T) {
	schoolOverride := MeetingOverride{Lab: 1, School: lo.ToPtr(uint64(1)), Meetings: 3}
	classOverride := MeetingOverride{Lab: 1, Class: lo.ToPtr(uint64(1)), Meetings: 4}
	otherLab := MeetingOverride{Lab: 2, Class: lo.ToPtr(uint64(1)), Meetings: 7}

	testCases := []struct {
		name        string
		eligibility *uint64
		overrides   []MeetingOverride
		expected    uint64
	}{
		{"Lab default", nil, nil, 2},
		{"School override", nil, []MeetingOverride{schoolOverride}, 3},
		{"Class over school", nil, []MeetingOverride{schoolOverride, classOverride}, 4},
		{"Eligibility over every override", lo.ToPtr(uint64(5)), []MeetingOverride{schoolOverride, classOverride}, 5},
		{"Override of another lab", nil, []MeetingOverride{otherLab}, 2},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			//** Arrange
			raw := singleClassInput(2)
			raw.Labs = append(raw.Labs, Lab{Id: 2, Name: "Chemistry", Meetings: 1, Hours: 1})
			raw.Eligibilities[0].Meetings = testCase.eligibility
			raw.Overrides = testCase.overrides

			//** Act
			input, err := ProcessRawInput(raw, fullWeekCalendar(t))

			//** Assert
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, input.Requirements[1][0].Meetings)
		})
	}
}

func TestMissingReferences(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(raw *RawModelInput)
	}{
		{"Class of an unknown school", func(raw *RawModelInput) { raw.Classes[0].School = 9 }},
		{"Unknown partner", func(raw *RawModelInput) { raw.Classes[0].Partner = lo.ToPtr(uint64(9)) }},
		{"Eligibility of an unknown class", func(raw *RawModelInput) { raw.Eligibilities[0].Class = 9 }},
		{"Eligibility of an unknown lab", func(raw *RawModelInput) { raw.Eligibilities[0].Lab = 9 }},
		{"Trainer qualified for an unknown lab", func(raw *RawModelInput) { raw.Trainers[0].Labs = []uint64{9} }},
		{"Exclusion of an unknown class", func(raw *RawModelInput) {
			raw.Exclusions = []Exclusion{{Class: 9, Date: "2025-01-07"}}
		}},
		{"Override of an unknown school", func(raw *RawModelInput) {
			raw.Overrides = []MeetingOverride{{Lab: 1, School: lo.ToPtr(uint64(9)), Meetings: 1}}
		}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			//** Arrange
			raw := singleClassInput(1)
			testCase.mutate(&raw)

			//** Act
			_, err := ProcessRawInput(raw, fullWeekCalendar(t))

			//** Assert
			var missing MissingReferenceError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, uint64(9), missing.Missing)
		})
	}
}

func TestInvalidInput(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(raw *RawModelInput)
	}{
		{"Duplicate class", func(raw *RawModelInput) { raw.Classes = append(raw.Classes, raw.Classes[0]) }},
		{"Own partner", func(raw *RawModelInput) { raw.Classes[0].Partner = lo.ToPtr(uint64(1)) }},
		{"Lab without duration", func(raw *RawModelInput) { raw.Labs[0].Hours = 0 }},
		{"Malformed fixed date", func(raw *RawModelInput) {
			raw.Eligibilities[0].Fixed = []FixedDate{{Date: "07/01/2025"}}
		}},
		{"Fixed date outside the calendar", func(raw *RawModelInput) {
			raw.Eligibilities[0].Fixed = []FixedDate{{Date: "2026-01-07"}}
		}},
		{"Fixed slot out of range", func(raw *RawModelInput) {
			raw.Eligibilities[0].Fixed = []FixedDate{{Date: "2025-01-07", Slot: 7}}
		}},
		{"Conflicting meeting counts", func(raw *RawModelInput) {
			raw.Eligibilities = []Eligibility{
				{Class: 1, Lab: 1, Meetings: lo.ToPtr(uint64(1))},
				{Class: 1, Lab: 1, Meetings: lo.ToPtr(uint64(2))},
			}
		}},
		{"Override naming school and class", func(raw *RawModelInput) {
			raw.Overrides = []MeetingOverride{{Lab: 1, School: lo.ToPtr(uint64(1)), Class: lo.ToPtr(uint64(1)), Meetings: 1}}
		}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			//** Arrange
			raw := singleClassInput(1)
			testCase.mutate(&raw)

			//** Act
			_, err := ProcessRawInput(raw, fullWeekCalendar(t))

			//** Assert
			assert.Error(t, err)
		})
	}
}

func TestMergedEligibilities(t *testing.T) {
	//** Arrange
	raw := singleClassInput(2)
	raw.Eligibilities = []Eligibility{
		{Class: 1, Lab: 1, Fixed: []FixedDate{{Date: "2025-01-07", Slot: 0}}},
		{Class: 1, Lab: 1, TimeOfDay: Morning, Fixed: []FixedDate{{Date: "2025-01-15", Slot: 1}}},
	}

	//** Act
	input, err := ProcessRawInput(raw, fullWeekCalendar(t))

	//** Assert
	require.NoError(t, err)
	require.Len(t, input.Requirements[1], 1)
	assert.Equal(t, Morning, input.Requirements[1][0].TimeOfDay)
	assert.Equal(t, []SlotKey{{0, 1, 0}, {1, 2, 1}}, input.Requirements[1][0].Fixed)
}

func TestPriorityTiers(t *testing.T) {
	testCases := []struct {
		name       string
		grades     []uint64
		thresholds []uint64
		tiers      []uint64
		count      uint64
	}{
		{"Distinct grades", []uint64{3, 5, 4, 5}, nil, []uint64{2, 0, 1, 0}, 4},
		{"Explicit thresholds", []uint64{3, 5, 4, 1}, []uint64{2, 4}, []uint64{1, 0, 0, 2}, 3},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			//** Arrange
			classes := lo.Map(testCase.grades, func(grade uint64, _ int) Class { return Class{Grade: grade} })

			//** Act
			thresholds := priorityTiers(classes, testCase.thresholds)

			//** Assert
			assert.Equal(t, testCase.tiers, lo.Map(testCase.grades, func(grade uint64, _ int) uint64 { return thresholds.tier(grade) }))
			assert.Equal(t, testCase.count, thresholds.count())
		})
	}
}

func TestPartnerGroups(t *testing.T) {
	//** Arrange
	classes := map[uint64]Class{
		1: {Id: 1},
		2: {Id: 2, Partner: lo.ToPtr(uint64(3))},
		3: {Id: 3, Partner: lo.ToPtr(uint64(4))},
		4: {Id: 4},
	}

	//** Act
	groups := partnerGroups(classes, []uint64{1, 2, 3, 4})

	//** Assert
	assert.Equal(t, map[uint64]uint64{1: 1, 2: 2, 3: 2, 4: 2}, groups)
}
