package model

import (
	"slices"

	"github.com/samber/lo"
)

type window struct {
	start, end int // Minutes since midnight
}

type predicateEvaluatorStandard struct {
	modelInput ModelInput
	weekdays   map[uint64]map[uint64]WeekdayAvailability // Weekday availability per trainer
	dates      map[uint64]map[string][]window            // Explicit date windows per trainer
	whitelists map[uint64]map[DaySlot]bool               // Permitted slots per class
}

func newPredicateEvaluator(modelInput ModelInput) predicateEvaluator {
	evaluator := predicateEvaluatorStandard{
		modelInput: modelInput,
		weekdays:   make(map[uint64]map[uint64]WeekdayAvailability),
		dates:      make(map[uint64]map[string][]window),
		whitelists: make(map[uint64]map[DaySlot]bool),
	}

	for id, trainer := range modelInput.Trainers {
		evaluator.weekdays[id] = lo.SliceToMap(trainer.Availability, func(availability WeekdayAvailability) (uint64, WeekdayAvailability) {
			return availability.Day, availability
		})

		if len(trainer.Dates) == 0 {
			continue
		}
		evaluator.dates[id] = make(map[string][]window)
		for _, date := range trainer.Dates {
			start, errStart := parseClock(date.Start)
			end, errEnd := parseClock(date.End)
			if errStart != nil || errEnd != nil {
				continue
			}
			evaluator.dates[id][date.Date] = append(evaluator.dates[id][date.Date], window{start, end})
		}
	}

	for id, class := range modelInput.Classes {
		if len(class.Slots) > 0 {
			evaluator.whitelists[id] = lo.SliceToMap(class.Slots, func(slot DaySlot) (DaySlot, bool) { return slot, true })
		}
	}

	return &evaluator
}

func (evaluator *predicateEvaluatorStandard) TrainerAvailable(trainer uint64, slot TimeSlot) bool {
	// Explicit dates replace the weekday rules entirely
	if dates, ok := evaluator.dates[trainer]; ok {
		start, errStart := parseClock(slot.Start)
		end, errEnd := parseClock(slot.End)
		if errStart != nil || errEnd != nil {
			return false
		}
		return slices.ContainsFunc(dates[slot.Date.Format(DateLayout)], func(window window) bool {
			return window.start <= start && end <= window.end
		})
	}

	switch slot.Day {
	case Saturday:
		return evaluator.modelInput.Trainers[trainer].Saturday
	case Saturday + 1:
		return false
	}

	availability, ok := evaluator.weekdays[trainer][slot.Day]
	if !ok {
		return false
	}
	switch slot.TimeOfDay {
	case Morning:
		return availability.Morning
	case Afternoon:
		return availability.Afternoon
	}
	return availability.Morning || availability.Afternoon
}

func (evaluator *predicateEvaluatorStandard) SchoolOffers(class uint64, slot TimeSlot) bool {
	school := evaluator.modelInput.Schools[evaluator.modelInput.Classes[class].School]

	switch slot.Day {
	case Saturday:
		if !school.Saturday {
			return false
		}
	case Saturday + 1:
		return false
	}
	return school.TimeOfDay.Covers(slot.TimeOfDay)
}

func (evaluator *predicateEvaluatorStandard) ClassPermits(class uint64, slot TimeSlot) bool {
	whitelist, ok := evaluator.whitelists[class]
	return !ok || whitelist[DaySlot{Day: slot.Day, Slot: slot.Slot}]
}

func (evaluator *predicateEvaluatorStandard) Qualified(trainer, lab uint64) bool {
	labs := evaluator.modelInput.Trainers[trainer].Labs
	return len(labs) == 0 || slices.Contains(labs, lab)
}

func (evaluator *predicateEvaluatorStandard) Possible(class, lab, trainer uint64, slot TimeSlot) bool {
	return evaluator.Qualified(trainer, lab) &&
		evaluator.SchoolOffers(class, slot) &&
		evaluator.ClassPermits(class, slot) &&
		evaluator.TrainerAvailable(trainer, slot)
}
