package model

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

const Saturday uint64 = 5

var Days = map[uint64]string{
	0: "Monday",
	1: "Tuesday",
	2: "Wednesday",
	3: "Thursday",
	4: "Friday",
	5: "Saturday",
	6: "Sunday",
}

type TimeOfDay int

const (
	AnyTime TimeOfDay = iota
	Morning
	Afternoon
)

func (timeOfDay TimeOfDay) String() string {
	switch timeOfDay {
	case Morning:
		return "morning"
	case Afternoon:
		return "afternoon"
	}
	return "any"
}

func (timeOfDay *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*timeOfDay = parsed
	return nil
}

func (timeOfDay *TimeOfDay) UnmarshalCSV(value string) error {
	return timeOfDay.UnmarshalText([]byte(value))
}

func ParseTimeOfDay(value string) (TimeOfDay, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "any":
		return AnyTime, nil
	case "morning", "am":
		return Morning, nil
	case "afternoon", "pm":
		return Afternoon, nil
	}
	return AnyTime, fmt.Errorf("invalid time of day %q", value)
}

// Covers reports whether a slot at the given time of day satisfies this restriction
func (timeOfDay TimeOfDay) Covers(slot TimeOfDay) bool {
	return timeOfDay == AnyTime || timeOfDay == slot
}

type SlotDefinition struct {
	Name      string    `json:"name" koanf:"name" validate:"required"`
	TimeOfDay TimeOfDay `json:"timeOfDay" koanf:"time_of_day"`
	Start     string    `json:"start" koanf:"start" validate:"required,datetime=15:04"`
	End       string    `json:"end" koanf:"end" validate:"required,datetime=15:04"`
}

// Blackout removes every slot between From and To (both inclusive)
type Blackout struct {
	From string `json:"from" koanf:"from" validate:"required,datetime=2006-01-02"`
	To   string `json:"to" koanf:"to" validate:"required,datetime=2006-01-02"`
}

type CalendarConfig struct {
	Start     string           `json:"start" koanf:"start" validate:"required,datetime=2006-01-02"` // First day of week 0
	Weeks     uint64           `json:"weeks" koanf:"weeks" validate:"gt=0"`
	Weekdays  uint64           `json:"weekdays" koanf:"weekdays" validate:"gt=0,lte=7"` // Days per week starting at Start; 6 includes Saturday
	Slots     []SlotDefinition `json:"slots" koanf:"slots" validate:"dive"`
	Blackouts []Blackout       `json:"blackouts" koanf:"blackouts" validate:"dive"`
}

func DefaultSlots() []SlotDefinition {
	return []SlotDefinition{
		{Name: "morning-1", TimeOfDay: Morning, Start: "08:30", End: "10:30"},
		{Name: "morning-2", TimeOfDay: Morning, Start: "10:45", End: "12:45"},
		{Name: "afternoon", TimeOfDay: Afternoon, Start: "14:00", End: "16:00"},
	}
}

type interval struct {
	from, to time.Time
}

// CalendarContext holds everything needed to turn calendar dates into (week, weekday) coordinates. It is built once
// from the configuration and never modified afterwards
type CalendarContext struct {
	start     time.Time
	weeks     uint64
	weekdays  uint64
	slots     []SlotDefinition
	blackouts []interval
}

func NewCalendarContext(config CalendarConfig) (CalendarContext, error) {
	start, err := time.Parse(DateLayout, config.Start)
	if err != nil {
		return CalendarContext{}, fmt.Errorf("invalid calendar start: %w", err)
	}
	if config.Weeks == 0 {
		return CalendarContext{}, fmt.Errorf("calendar must span at least one week")
	}

	weekdays := config.Weekdays
	if weekdays == 0 {
		weekdays = 6
	} else if weekdays > 7 {
		return CalendarContext{}, fmt.Errorf("a week cannot have %d days", weekdays)
	}

	slots := config.Slots
	if len(slots) == 0 {
		slots = DefaultSlots()
	}
	for _, slot := range slots {
		start, errStart := parseClock(slot.Start)
		end, errEnd := parseClock(slot.End)
		if errStart != nil || errEnd != nil || end <= start {
			return CalendarContext{}, fmt.Errorf("invalid time range %v-%v for slot %q", slot.Start, slot.End, slot.Name)
		}
	}

	blackouts := make([]interval, 0, len(config.Blackouts))
	for _, blackout := range config.Blackouts {
		from, errFrom := time.Parse(DateLayout, blackout.From)
		to, errTo := time.Parse(DateLayout, blackout.To)
		if errFrom != nil || errTo != nil || to.Before(from) {
			return CalendarContext{}, fmt.Errorf("invalid blackout window %v..%v", blackout.From, blackout.To)
		}
		blackouts = append(blackouts, interval{from, to})
	}

	return CalendarContext{
		start:     start,
		weeks:     config.Weeks,
		weekdays:  weekdays,
		slots:     slices.Clone(slots),
		blackouts: blackouts,
	}, nil
}

func (context CalendarContext) Weeks() uint64 {
	return context.weeks
}

func (context CalendarContext) Weekdays() uint64 {
	return context.weekdays
}

func (context CalendarContext) Slots() uint64 {
	return uint64(len(context.slots))
}

func (context CalendarContext) SlotDefinition(slot uint64) (SlotDefinition, bool) {
	if slot >= uint64(len(context.slots)) {
		return SlotDefinition{}, false
	}
	return context.slots[slot], true
}

func (context CalendarContext) ParseDate(value string) (time.Time, error) {
	date, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return date, nil
}

// Date returns the calendar date of a (week, weekday) pair
func (context CalendarContext) Date(week, day uint64) time.Time {
	return context.start.AddDate(0, 0, int(week*7+day))
}

// Resolve maps a date to its (week, weekday) coordinates; ok is false for dates outside the horizon or the week
func (context CalendarContext) Resolve(date time.Time) (week, day uint64, ok bool) {
	if date.Before(context.start) {
		return 0, 0, false
	}
	days := uint64(date.Sub(context.start).Hours() / 24)
	week, day = days/7, days%7
	if week >= context.weeks || day >= context.weekdays {
		return 0, 0, false
	}
	return week, day, true
}

// ResolveString parses and resolves a date in one step
func (context CalendarContext) ResolveString(value string) (week, day uint64, err error) {
	date, err := context.ParseDate(value)
	if err != nil {
		return 0, 0, err
	}
	week, day, ok := context.Resolve(date)
	if !ok {
		return 0, 0, fmt.Errorf("date %v lies outside the calendar", value)
	}
	return week, day, nil
}

func (context CalendarContext) InBlackout(date time.Time) bool {
	return lo.SomeBy(context.blackouts, func(window interval) bool {
		return !date.Before(window.from) && !date.After(window.to)
	})
}

type TimeSlot struct {
	Week      uint64
	Day       uint64
	Slot      uint64
	Date      time.Time
	Start     string
	End       string
	TimeOfDay TimeOfDay
}

func (slot TimeSlot) Key() SlotKey {
	return SlotKey{Week: slot.Week, Day: slot.Day, Slot: slot.Slot}
}

// SlotKey locates a slot by its (week, weekday, slot) coordinates
type SlotKey struct {
	Week uint64
	Day  uint64
	Slot uint64
}

func (key SlotKey) String() string {
	return fmt.Sprintf("week %d, %v, slot %d", key.Week, Days[key.Day], key.Slot)
}

func (key SlotKey) compare(other SlotKey) int {
	switch {
	case key.Week != other.Week:
		return cmp.Compare(key.Week, other.Week)
	case key.Day != other.Day:
		return cmp.Compare(key.Day, other.Day)
	}
	return cmp.Compare(key.Slot, other.Slot)
}

// Calendar is the ordered list of schedulable slots over the horizon, blackout windows excluded
type Calendar struct {
	Context CalendarContext
	Slots   []TimeSlot
	index   map[SlotKey]int
}

func NewCalendar(context CalendarContext) Calendar {
	slots := make([]TimeSlot, 0, context.weeks*context.weekdays*context.Slots())
	for week := range context.weeks {
		for day := range context.weekdays {
			date := context.Date(week, day)
			if context.InBlackout(date) {
				continue
			}
			for slot, definition := range context.slots {
				slots = append(slots, TimeSlot{
					Week:      week,
					Day:       day,
					Slot:      uint64(slot),
					Date:      date,
					Start:     definition.Start,
					End:       definition.End,
					TimeOfDay: definition.TimeOfDay,
				})
			}
		}
	}
	return newCalendar(context, slots)
}

// NewCalendarFromSlots wraps a slot list produced elsewhere; slots must belong to the context's horizon
func NewCalendarFromSlots(context CalendarContext, slots []TimeSlot) Calendar {
	sorted := slices.Clone(slots)
	slices.SortFunc(sorted, func(a, b TimeSlot) int { return a.Key().compare(b.Key()) })
	return newCalendar(context, sorted)
}

func newCalendar(context CalendarContext, slots []TimeSlot) Calendar {
	index := make(map[SlotKey]int, len(slots))
	for i, slot := range slots {
		index[slot.Key()] = i
	}
	return Calendar{Context: context, Slots: slots, index: index}
}

func (calendar Calendar) Slot(key SlotKey) (TimeSlot, bool) {
	i, ok := calendar.index[key]
	if !ok {
		return TimeSlot{}, false
	}
	return calendar.Slots[i], true
}

func (calendar Calendar) Weeks() uint64 {
	return calendar.Context.weeks
}

// SlotsOn returns the calendar slots of one day
func (calendar Calendar) SlotsOn(week, day uint64) []TimeSlot {
	return lo.Filter(calendar.Slots, func(slot TimeSlot, _ int) bool {
		return slot.Week == week && slot.Day == day
	})
}

// parseClock returns the minutes elapsed since midnight for a "15:04" formatted time
func parseClock(value string) (int, error) {
	clock, err := time.Parse(ClockLayout, strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", value, err)
	}
	return clock.Hour()*60 + clock.Minute(), nil
}
