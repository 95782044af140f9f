package model

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
)

type School struct {
	Id        uint64
	Name      string    `validate:"required"`
	Weekdays  []uint64  `validate:"dive,lte=6"` // Preferred weekdays; empty means no preference
	TimeOfDay TimeOfDay // Only slots at this time of day are offered to the school's classes
	Saturday  bool
}

// DaySlot is a (weekday, slot) pair repeated every week
type DaySlot struct {
	Day  uint64 `validate:"lte=6"`
	Slot uint64
}

type Class struct {
	Id       uint64
	School   uint64
	Name     string `validate:"required"`
	Grade    uint64
	Priority uint64    // Tier derived from the grade, 0 being the most urgent
	Partner  *uint64   // Class this one is preferably grouped with
	Slots    []DaySlot `validate:"dive"` // Permitted slots; empty permits every slot
}

type WeekdayAvailability struct {
	Day       uint64 `validate:"lte=6"`
	Morning   bool
	Afternoon bool
}

type DateAvailability struct {
	Date  string `validate:"required,datetime=2006-01-02"`
	Start string `validate:"required,datetime=15:04"`
	End   string `validate:"required,datetime=15:04"`
}

type Trainer struct {
	Id           uint64
	Name         string                `validate:"required"`
	Hours        float64               `validate:"gte=0"` // Total hour budget; 0 means unlimited
	Availability []WeekdayAvailability `validate:"dive"`
	Saturday     bool
	Dates        []DateAvailability `validate:"dive"` // When present these replace the weekday availability
	Labs         []uint64           // Labs the trainer can teach; empty means every lab
}

type Lab struct {
	Id       uint64
	Name     string `validate:"required"`
	Meetings uint64
	Hours    float64 `validate:"gt=0"`
	Order    uint64  // Position in the sequence every class follows
}

type FixedDate struct {
	Date string `validate:"required,datetime=2006-01-02"`
	Slot uint64
}

type Eligibility struct {
	Class     uint64
	Lab       uint64
	Meetings  *uint64     // Overrides every other meeting count for this pair
	TimeOfDay TimeOfDay   // At least one meeting must fall at this time of day
	Fixed     []FixedDate `validate:"dive"`
}

type Exclusion struct {
	Class     uint64
	Date      string    `validate:"required,datetime=2006-01-02"`
	Slot      *uint64   // Nil excludes every slot of the date
	TimeOfDay TimeOfDay // Restricts a whole-day exclusion to one time of day
}

// MeetingOverride changes the number of meetings of a lab for every class of a school or for one class
type MeetingOverride struct {
	Lab      uint64
	School   *uint64
	Class    *uint64
	Meetings uint64
}

type RawModelInput struct {
	Schools        []School          `validate:"dive"`
	Classes        []Class           `validate:"dive"`
	Trainers       []Trainer         `validate:"dive"`
	Labs           []Lab             `validate:"dive"`
	Eligibilities  []Eligibility     `validate:"dive"`
	Exclusions     []Exclusion       `validate:"dive"`
	Overrides      []MeetingOverride `validate:"dive"`
	PriorityGrades []uint64          // Lowest grade of each priority tier, most urgent first
}

// Requirement is a lab a class must complete
type Requirement struct {
	Class     uint64
	Lab       uint64
	Meetings  uint64
	TimeOfDay TimeOfDay
	Fixed     []SlotKey
}

type ModelInput struct {
	Schools  map[uint64]School
	Classes  map[uint64]Class
	Trainers map[uint64]Trainer
	Labs     map[uint64]Lab

	ClassIds   []uint64 // Sorted
	TrainerIds []uint64 // Sorted

	Requirements map[uint64][]Requirement // Class' requirements in sequence order
	Excluded     map[uint64][]SlotKey     // Class' excluded slots
	Groups       map[uint64]uint64        // Class to the smallest class id of its partner group
	Tiers        uint64                   // Number of priority tiers
	Calendar     Calendar
}

func InputFromJson(file string, calendar Calendar) (ModelInput, error) {
	rawInput, err := RawInputFromJson(file)
	if err != nil {
		return ModelInput{}, err
	}
	return ProcessRawInput(rawInput, calendar)
}

// RawInputFromJson decodes a JSON catalog without checking it, so callers can complete it before processing
func RawInputFromJson(file string) (RawModelInput, error) {
	bytes, err := os.ReadFile(file)
	if err != nil {
		return RawModelInput{}, err
	}
	var inputJson map[string]any
	if err := json.Unmarshal(bytes, &inputJson); err != nil {
		return RawModelInput{}, err
	}

	var rawInput RawModelInput
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.TextUnmarshallerHookFunc(),
		Result:     &rawInput,
	})
	if err != nil {
		return RawModelInput{}, err
	}
	if err := decoder.Decode(inputJson); err != nil {
		return RawModelInput{}, fmt.Errorf("cannot decode %v: %w", file, err)
	}
	return rawInput, nil
}

func ProcessRawInput(rawInput RawModelInput, calendar Calendar) (ModelInput, error) {
	if err := validator.New().Struct(rawInput); err != nil {
		return ModelInput{}, fmt.Errorf("invalid input: %w", err)
	}

	input := ModelInput{
		Schools:      make(map[uint64]School),
		Classes:      make(map[uint64]Class),
		Trainers:     make(map[uint64]Trainer),
		Labs:         make(map[uint64]Lab),
		Requirements: make(map[uint64][]Requirement),
		Excluded:     make(map[uint64][]SlotKey),
		Calendar:     calendar,
	}

	//** Register entities
	for _, school := range rawInput.Schools {
		if _, ok := input.Schools[school.Id]; ok {
			return ModelInput{}, fmt.Errorf("duplicate school id %d", school.Id)
		}
		input.Schools[school.Id] = school
	}
	for _, lab := range rawInput.Labs {
		if _, ok := input.Labs[lab.Id]; ok {
			return ModelInput{}, fmt.Errorf("duplicate lab id %d", lab.Id)
		}
		input.Labs[lab.Id] = lab
	}
	for _, trainer := range rawInput.Trainers {
		if _, ok := input.Trainers[trainer.Id]; ok {
			return ModelInput{}, fmt.Errorf("duplicate trainer id %d", trainer.Id)
		}
		for _, lab := range trainer.Labs {
			if _, ok := input.Labs[lab]; !ok {
				return ModelInput{}, MissingReferenceError{Entity: "trainer", Id: trainer.Id, Reference: "lab", Missing: lab}
			}
		}
		input.Trainers[trainer.Id] = trainer
	}
	tiers := priorityTiers(rawInput.Classes, rawInput.PriorityGrades)
	for _, class := range rawInput.Classes {
		if _, ok := input.Classes[class.Id]; ok {
			return ModelInput{}, fmt.Errorf("duplicate class id %d", class.Id)
		}
		if _, ok := input.Schools[class.School]; !ok {
			return ModelInput{}, MissingReferenceError{Entity: "class", Id: class.Id, Reference: "school", Missing: class.School}
		}
		class.Priority = tiers.tier(class.Grade)
		input.Classes[class.Id] = class
	}
	input.Tiers = tiers.count()
	for _, class := range input.Classes {
		if class.Partner == nil {
			continue
		}
		if _, ok := input.Classes[*class.Partner]; !ok {
			return ModelInput{}, MissingReferenceError{Entity: "class", Id: class.Id, Reference: "partner class", Missing: *class.Partner}
		} else if *class.Partner == class.Id {
			return ModelInput{}, fmt.Errorf("class %d cannot be its own partner", class.Id)
		}
	}

	input.ClassIds = lo.Keys(input.Classes)
	slices.Sort(input.ClassIds)
	input.TrainerIds = lo.Keys(input.Trainers)
	slices.Sort(input.TrainerIds)
	input.Groups = partnerGroups(input.Classes, input.ClassIds)

	//** Meeting overrides
	for _, override := range rawInput.Overrides {
		if _, ok := input.Labs[override.Lab]; !ok {
			return ModelInput{}, MissingReferenceError{Entity: "meeting override", Id: override.Lab, Reference: "lab", Missing: override.Lab}
		}
		if (override.School == nil) == (override.Class == nil) {
			return ModelInput{}, fmt.Errorf("meeting override for lab %d must name exactly one of school or class", override.Lab)
		}
		if override.School != nil {
			if _, ok := input.Schools[*override.School]; !ok {
				return ModelInput{}, MissingReferenceError{Entity: "meeting override", Id: override.Lab, Reference: "school", Missing: *override.School}
			}
		} else if _, ok := input.Classes[*override.Class]; !ok {
			return ModelInput{}, MissingReferenceError{Entity: "meeting override", Id: override.Lab, Reference: "class", Missing: *override.Class}
		}
	}

	//** Requirements
	requirements := make(map[[2]uint64]Requirement)
	for _, eligibility := range rawInput.Eligibilities {
		class, ok := input.Classes[eligibility.Class]
		if !ok {
			return ModelInput{}, MissingReferenceError{Entity: "eligibility", Id: eligibility.Lab, Reference: "class", Missing: eligibility.Class}
		}
		lab, ok := input.Labs[eligibility.Lab]
		if !ok {
			return ModelInput{}, MissingReferenceError{Entity: "eligibility", Id: eligibility.Class, Reference: "lab", Missing: eligibility.Lab}
		}

		fixed := make([]SlotKey, 0, len(eligibility.Fixed))
		for _, fixedDate := range eligibility.Fixed {
			week, day, err := calendar.Context.ResolveString(fixedDate.Date)
			if err != nil {
				return ModelInput{}, fmt.Errorf("fixed date of class %d and lab %d: %w", class.Id, lab.Id, err)
			}
			if fixedDate.Slot >= calendar.Context.Slots() {
				return ModelInput{}, fmt.Errorf("fixed date of class %d and lab %d references slot %d of %d", class.Id, lab.Id, fixedDate.Slot, calendar.Context.Slots())
			}
			fixed = append(fixed, SlotKey{Week: week, Day: day, Slot: fixedDate.Slot})
		}

		key := [2]uint64{class.Id, lab.Id}
		meetings := resolveMeetings(eligibility, class, lab, rawInput.Overrides)
		if previous, ok := requirements[key]; ok {
			// Rules for the same pair are merged, each one keeping its fixed dates
			if eligibility.Meetings != nil && previous.Meetings != meetings {
				return ModelInput{}, fmt.Errorf("conflicting meeting counts %d and %d for class %d and lab %d", previous.Meetings, meetings, class.Id, lab.Id)
			}
			previous.Fixed = append(previous.Fixed, fixed...)
			if previous.TimeOfDay == AnyTime {
				previous.TimeOfDay = eligibility.TimeOfDay
			}
			requirements[key] = previous
			continue
		}
		requirements[key] = Requirement{
			Class:     class.Id,
			Lab:       lab.Id,
			Meetings:  meetings,
			TimeOfDay: eligibility.TimeOfDay,
			Fixed:     fixed,
		}
	}
	for _, requirement := range requirements {
		input.Requirements[requirement.Class] = append(input.Requirements[requirement.Class], requirement)
	}
	for class := range input.Requirements {
		slices.SortFunc(input.Requirements[class], func(a, b Requirement) int {
			labA, labB := input.Labs[a.Lab], input.Labs[b.Lab]
			if labA.Order != labB.Order {
				return cmp.Compare(labA.Order, labB.Order)
			}
			return cmp.Compare(labA.Id, labB.Id)
		})
	}

	//** Exclusions
	for _, exclusion := range rawInput.Exclusions {
		if _, ok := input.Classes[exclusion.Class]; !ok {
			return ModelInput{}, MissingReferenceError{Entity: "exclusion", Id: exclusion.Class, Reference: "class", Missing: exclusion.Class}
		}
		date, err := calendar.Context.ParseDate(exclusion.Date)
		if err != nil {
			return ModelInput{}, fmt.Errorf("exclusion of class %d: %w", exclusion.Class, err)
		}
		week, day, ok := calendar.Context.Resolve(date)
		if !ok {
			continue // Nothing to exclude outside the calendar
		}
		for _, slot := range calendar.SlotsOn(week, day) {
			if (exclusion.Slot == nil && exclusion.TimeOfDay.Covers(slot.TimeOfDay)) || (exclusion.Slot != nil && *exclusion.Slot == slot.Slot) {
				input.Excluded[exclusion.Class] = append(input.Excluded[exclusion.Class], slot.Key())
			}
		}
	}
	for class := range input.Excluded {
		slices.SortFunc(input.Excluded[class], SlotKey.compare)
		input.Excluded[class] = slices.Compact(input.Excluded[class])
	}

	return input, nil
}

// resolveMeetings applies the meeting count precedence: eligibility, class override, school override, lab default
func resolveMeetings(eligibility Eligibility, class Class, lab Lab, overrides []MeetingOverride) uint64 {
	if eligibility.Meetings != nil {
		return *eligibility.Meetings
	}
	if override, ok := lo.Find(overrides, func(override MeetingOverride) bool {
		return override.Lab == lab.Id && override.Class != nil && *override.Class == class.Id
	}); ok {
		return override.Meetings
	}
	if override, ok := lo.Find(overrides, func(override MeetingOverride) bool {
		return override.Lab == lab.Id && override.School != nil && *override.School == class.School
	}); ok {
		return override.Meetings
	}
	return lab.Meetings
}

type tierThresholds []uint64

// priorityTiers sorts the thresholds from the highest grade down. Without thresholds every distinct grade is a tier
func priorityTiers(classes []Class, grades []uint64) tierThresholds {
	thresholds := slices.Clone(grades)
	if len(thresholds) == 0 {
		thresholds = lo.Uniq(lo.Map(classes, func(class Class, _ int) uint64 { return class.Grade }))
	}
	slices.Sort(thresholds)
	slices.Reverse(thresholds)
	return slices.Compact(thresholds)
}

func (thresholds tierThresholds) tier(grade uint64) uint64 {
	for i, threshold := range thresholds {
		if grade >= threshold {
			return uint64(i)
		}
	}
	return uint64(len(thresholds))
}

func (thresholds tierThresholds) count() uint64 {
	return uint64(len(thresholds)) + 1
}

// partnerGroups joins partner classes transitively and labels every class with the smallest id of its group
func partnerGroups(classes map[uint64]Class, ids []uint64) map[uint64]uint64 {
	parent := make(map[uint64]uint64, len(ids))
	var find func(uint64) uint64
	find = func(class uint64) uint64 {
		if parent[class] != class {
			parent[class] = find(parent[class])
		}
		return parent[class]
	}

	for _, id := range ids {
		parent[id] = id
	}
	for _, id := range ids {
		if partner := classes[id].Partner; partner != nil {
			a, b := find(id), find(*partner)
			parent[max(a, b)] = min(a, b)
		}
	}

	groups := make(map[uint64]uint64, len(ids))
	for _, id := range ids {
		groups[id] = find(id)
	}
	return groups
}

// Minutes a lab meeting lasts
func (lab Lab) Minutes() int64 {
	return int64(math.Round(lab.Hours * 60))
}

// Minutes of the trainer's budget; 0 means unlimited
func (trainer Trainer) Minutes() int64 {
	return int64(math.Round(trainer.Hours * 60))
}
