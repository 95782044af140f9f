package model

import (
	"fmt"
	"math"
	"slices"

	"github.com/limaJavier/labscheduling/pkg/sat"
	"github.com/samber/lo"
)

type softBuilder func(modelInput ModelInput, weights map[Kind]int64, nextId func(Kind) uint64) []Constraint

var softBuilders = []softBuilder{
	trainerContinuityConstraints,
	slotConsistencyConstraints,
	weekdayPreferenceConstraints,
	earlyCompletionConstraints,
	partnerGroupingConstraints,
	saturdayAvoidanceConstraints,
}

// perClass instantiates one soft constraint per class accepted by the predicate
func perClass(modelInput ModelInput, kind Kind, weights map[Kind]int64, nextId func(Kind) uint64, accept func(class Class) bool, build func(base soft, class Class) Constraint) []Constraint {
	weight := weights[kind]
	if weight == 0 {
		return nil
	}
	constraints := make([]Constraint, 0, len(modelInput.ClassIds))
	for _, id := range modelInput.ClassIds {
		class := modelInput.Classes[id]
		if accept(class) {
			constraints = append(constraints, build(newSoft(kind, nextId(kind), weight, fmt.Sprintf("%v of class %d", kind, id)), class))
		}
	}
	return constraints
}

//** Trainer continuity: every trainer beyond the first one teaching a lab to a class is penalized

type trainerContinuityConstraint struct {
	soft
	class, lab uint64
}

func trainerContinuityConstraints(modelInput ModelInput, weights map[Kind]int64, nextId func(Kind) uint64) []Constraint {
	weight := weights[KindTrainerContinuity]
	if weight == 0 {
		return nil
	}
	constraints := make([]Constraint, 0)
	for _, class := range modelInput.ClassIds {
		for _, requirement := range modelInput.Requirements[class] {
			if requirement.Meetings < 2 {
				continue
			}
			base := newSoft(KindTrainerContinuity, nextId(KindTrainerContinuity), weight,
				fmt.Sprintf("class %d keeps one trainer for lab %d", class, requirement.Lab))
			constraints = append(constraints, trainerContinuityConstraint{base, class, requirement.Lab})
		}
	}
	return constraints
}

func (constraint trainerContinuityConstraint) emit(state constraintState, emitter *emitter) error {
	byTrainer := lo.GroupBy(state.indexer.ByClassLab(constraint.class, constraint.lab), func(variable sat.Var) uint64 {
		return state.indexer.Attributes(variable).Trainer
	})
	if len(byTrainer) < 2 {
		return nil
	}

	trainers := lo.Keys(byTrainer)
	slices.Sort(trainers)
	terms := lo.Map(trainers, func(trainer uint64, _ int) sat.Term {
		return sat.Term{Var: emitter.indicator(byTrainer[trainer]), Coeff: constraint.weight}
	})
	// At least one trainer is always used
	emitter.fragment.AddObjective(terms, -constraint.weight)
	return nil
}

//** Slot consistency: meeting at the same weekday and slot in consecutive weeks is rewarded

type slotConsistencyConstraint struct {
	soft
	class uint64
}

func slotConsistencyConstraints(modelInput ModelInput, weights map[Kind]int64, nextId func(Kind) uint64) []Constraint {
	return perClass(modelInput, KindSlotConsistency, weights, nextId,
		func(class Class) bool { return len(modelInput.Requirements[class.Id]) > 0 },
		func(base soft, class Class) Constraint { return slotConsistencyConstraint{base, class.Id} })
}

func (constraint slotConsistencyConstraint) emit(state constraintState, emitter *emitter) error {
	daySlots := func(variables []sat.Var) ([]DaySlot, map[DaySlot][]sat.Var) {
		grouped := make(map[DaySlot][]sat.Var)
		order := make([]DaySlot, 0)
		for _, variable := range variables {
			key := state.indexer.Attributes(variable)
			daySlot := DaySlot{Day: key.Day, Slot: key.Slot}
			if _, ok := grouped[daySlot]; !ok {
				order = append(order, daySlot)
			}
			grouped[daySlot] = append(grouped[daySlot], variable)
		}
		return order, grouped
	}

	weeks := state.modelInput.Calendar.Weeks()
	for week := uint64(0); week+1 < weeks; week++ {
		order, current := daySlots(state.indexer.ByClassWeek(constraint.class, week))
		_, next := daySlots(state.indexer.ByClassWeek(constraint.class, week+1))
		for _, daySlot := range order {
			if _, ok := next[daySlot]; !ok {
				continue
			}
			repeated := emitter.conjunction(current[daySlot], next[daySlot])
			emitter.fragment.AddObjective([]sat.Term{{Var: repeated, Coeff: -constraint.weight}}, 0)
		}
	}
	return nil
}

//** Weekday preference: meetings on weekdays the school does not prefer are penalized

type weekdayPreferenceConstraint struct {
	soft
	class     uint64
	preferred []uint64
}

func weekdayPreferenceConstraints(modelInput ModelInput, weights map[Kind]int64, nextId func(Kind) uint64) []Constraint {
	return perClass(modelInput, KindWeekdayPreference, weights, nextId,
		func(class Class) bool { return len(modelInput.Schools[class.School].Weekdays) > 0 },
		func(base soft, class Class) Constraint {
			return weekdayPreferenceConstraint{base, class.Id, modelInput.Schools[class.School].Weekdays}
		})
}

func (constraint weekdayPreferenceConstraint) emit(state constraintState, emitter *emitter) error {
	variables := filter(state, state.indexer.ByClass(constraint.class), func(key AssignmentKey) bool {
		return !slices.Contains(constraint.preferred, key.Day)
	})
	emitter.fragment.AddObjective(weighted(variables, constraint.weight), 0)
	return nil
}

//** Early completion: later weeks are penalized, more so for classes with an urgent priority tier

type earlyCompletionConstraint struct {
	soft
	class  uint64
	factor int64
}

func earlyCompletionConstraints(modelInput ModelInput, weights map[Kind]int64, nextId func(Kind) uint64) []Constraint {
	factor := func(class Class) int64 { return int64(modelInput.Tiers) - int64(class.Priority) }
	return perClass(modelInput, KindEarlyCompletion, weights, nextId,
		func(class Class) bool { return factor(class) > 0 && len(modelInput.Requirements[class.Id]) > 0 },
		func(base soft, class Class) Constraint { return earlyCompletionConstraint{base, class.Id, factor(class)} })
}

func (constraint earlyCompletionConstraint) emit(state constraintState, emitter *emitter) error {
	terms := make([]sat.Term, 0)
	for _, variable := range state.indexer.ByClass(constraint.class) {
		week := state.indexer.Attributes(variable).Week
		if week == 0 {
			continue
		}
		coeff, ok := checkedMul(constraint.weight, constraint.factor)
		if ok {
			coeff, ok = checkedMul(coeff, int64(week))
		}
		if !ok {
			return fmt.Errorf("%w: %v of class %d at week %d", ErrWeightOverflow, constraint.Id(), constraint.class, week)
		}
		terms = append(terms, sat.Term{Var: variable, Coeff: coeff})
	}
	emitter.fragment.AddObjective(terms, 0)
	return nil
}

//** Partner grouping: partner classes sharing a session of the same lab is rewarded

type partnerGroupingConstraint struct {
	soft
	class, partner uint64
}

func partnerGroupingConstraints(modelInput ModelInput, weights map[Kind]int64, nextId func(Kind) uint64) []Constraint {
	weight := weights[KindPartnerGrouping]
	if weight == 0 {
		return nil
	}
	seen := make(map[[2]uint64]bool)
	constraints := make([]Constraint, 0)
	for _, id := range modelInput.ClassIds {
		partner := modelInput.Classes[id].Partner
		if partner == nil {
			continue
		}
		pair := [2]uint64{min(id, *partner), max(id, *partner)}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		base := newSoft(KindPartnerGrouping, nextId(KindPartnerGrouping), weight,
			fmt.Sprintf("classes %d and %d share their sessions", pair[0], pair[1]))
		constraints = append(constraints, partnerGroupingConstraint{base, pair[0], pair[1]})
	}
	return constraints
}

func (constraint partnerGroupingConstraint) emit(state constraintState, emitter *emitter) error {
	for _, requirement := range state.modelInput.Requirements[constraint.class] {
		for _, variable := range state.indexer.ByClassLab(constraint.class, requirement.Lab) {
			key := state.indexer.Attributes(variable)
			key.Class = constraint.partner
			partnerVariable, ok := state.indexer.Index(key)
			if !ok {
				continue
			}
			shared := emitter.conjunction([]sat.Var{variable}, []sat.Var{partnerVariable})
			emitter.fragment.AddObjective([]sat.Term{{Var: shared, Coeff: -constraint.weight}}, 0)
		}
	}
	return nil
}

//** Saturday avoidance: Saturday meetings are penalized

type saturdayAvoidanceConstraint struct {
	soft
	class uint64
}

func saturdayAvoidanceConstraints(modelInput ModelInput, weights map[Kind]int64, nextId func(Kind) uint64) []Constraint {
	return perClass(modelInput, KindSaturdayAvoidance, weights, nextId,
		func(class Class) bool { return modelInput.Schools[class.School].Saturday },
		func(base soft, class Class) Constraint { return saturdayAvoidanceConstraint{base, class.Id} })
}

func (constraint saturdayAvoidanceConstraint) emit(state constraintState, emitter *emitter) error {
	variables := filter(state, state.indexer.ByClass(constraint.class), func(key AssignmentKey) bool {
		return key.Day == Saturday
	})
	emitter.fragment.AddObjective(weighted(variables, constraint.weight), 0)
	return nil
}

func checkedMul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product := a * b
	if product/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return product, true
}

func weighted(variables []sat.Var, weight int64) []sat.Term {
	return lo.Map(variables, func(variable sat.Var, _ int) sat.Term {
		return sat.Term{Var: variable, Coeff: weight}
	})
}
