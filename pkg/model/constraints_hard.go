package model

import (
	"fmt"
	"slices"

	"github.com/limaJavier/labscheduling/pkg/sat"
	"github.com/samber/lo"
)

type hardBuilder func(modelInput ModelInput, weights map[Kind]int64, nextId func(Kind) uint64) ([]Constraint, error)

var hardBuilders = []hardBuilder{
	completionConstraints,
	weeklyCapConstraints,
	trainerExclusivityConstraints,
	sequencingConstraints,
	fixedDateConstraints,
	excludedDateConstraints,
	timeOfDayConstraints,
	trainerBudgetConstraints,
}

//** Completion: a class meets every required lab exactly the required number of times

type completionConstraint struct {
	hard
	class, lab, meetings uint64
}

func completionConstraints(modelInput ModelInput, weights map[Kind]int64, nextId func(Kind) uint64) ([]Constraint, error) {
	constraints := make([]Constraint, 0)
	for _, class := range modelInput.ClassIds {
		for _, requirement := range modelInput.Requirements[class] {
			base, err := newHard(KindCompletion, nextId(KindCompletion), weights[KindCompletion],
				fmt.Sprintf("class %d meets lab %d exactly %d times", class, requirement.Lab, requirement.Meetings))
			if err != nil {
				return nil, err
			}
			constraints = append(constraints, completionConstraint{base, class, requirement.Lab, requirement.Meetings})
		}
	}
	return constraints, nil
}

func (constraint completionConstraint) emit(state constraintState, emitter *emitter) error {
	variables := state.indexer.ByClassLab(constraint.class, constraint.lab)
	if constraint.meetings == 0 {
		emitter.fix(variables, false)
		return nil
	}
	emitter.fragment.AddLinearConstraint(sat.Ones(variables), sat.Equal, int64(constraint.meetings), emitter.label())
	return nil
}

//** Weekly cap: a class has at most one meeting per week

type weeklyCapConstraint struct {
	hard
	class uint64
}

func weeklyCapConstraints(modelInput ModelInput, weights map[Kind]int64, nextId func(Kind) uint64) ([]Constraint, error) {
	constraints := make([]Constraint, 0, len(modelInput.ClassIds))
	for _, class := range modelInput.ClassIds {
		base, err := newHard(KindWeeklyCap, nextId(KindWeeklyCap), weights[KindWeeklyCap],
			fmt.Sprintf("class %d meets at most once a week", class))
		if err != nil {
			return nil, err
		}
		constraints = append(constraints, weeklyCapConstraint{base, class})
	}
	return constraints, nil
}

func (constraint weeklyCapConstraint) emit(state constraintState, emitter *emitter) error {
	for week := range state.modelInput.Calendar.Weeks() {
		if variables := state.indexer.ByClassWeek(constraint.class, week); len(variables) > 1 {
			emitter.atMost(variables, 1)
		}
	}
	return nil
}

//** Trainer exclusivity: a trainer teaches at most one session per slot, partner classes may share it

type trainerExclusivityConstraint struct {
	hard
	trainer uint64
}

func trainerExclusivityConstraints(modelInput ModelInput, weights map[Kind]int64, nextId func(Kind) uint64) ([]Constraint, error) {
	constraints := make([]Constraint, 0, len(modelInput.TrainerIds))
	for _, trainer := range modelInput.TrainerIds {
		base, err := newHard(KindTrainerExclusivity, nextId(KindTrainerExclusivity), weights[KindTrainerExclusivity],
			fmt.Sprintf("trainer %d teaches at most one session per slot", trainer))
		if err != nil {
			return nil, err
		}
		constraints = append(constraints, trainerExclusivityConstraint{base, trainer})
	}
	return constraints, nil
}

func (constraint trainerExclusivityConstraint) emit(state constraintState, emitter *emitter) error {
	for _, bucket := range bucketsOf(state, constraint.trainer) {
		variables := state.indexer.ByTrainerSlot(bucket)
		if len(variables) < 2 {
			continue // A single candidate cannot collide
		}

		sessions := units(state, variables)
		if len(sessions) < 2 {
			continue
		}
		representatives := lo.Map(sessions, func(session []sat.Var, _ int) sat.Var {
			if len(session) == 1 {
				return session[0]
			}
			return emitter.indicator(session)
		})
		emitter.atMost(representatives, 1)
	}
	return nil
}

//** Sequencing: a class takes its labs in catalog order

type sequencingConstraint struct {
	hard
	class        uint64
	requirements []Requirement
}

func sequencingConstraints(modelInput ModelInput, weights map[Kind]int64, nextId func(Kind) uint64) ([]Constraint, error) {
	constraints := make([]Constraint, 0)
	for _, class := range modelInput.ClassIds {
		requirements := modelInput.Requirements[class]
		if len(requirements) < 2 {
			continue
		}
		base, err := newHard(KindSequencing, nextId(KindSequencing), weights[KindSequencing],
			fmt.Sprintf("class %d takes labs %v in order", class, lo.Map(requirements, func(requirement Requirement, _ int) uint64 { return requirement.Lab })))
		if err != nil {
			return nil, err
		}
		constraints = append(constraints, sequencingConstraint{base, class, requirements})
	}
	return constraints, nil
}

func (constraint sequencingConstraint) emit(state constraintState, emitter *emitter) error {
	weeks := state.modelInput.Calendar.Weeks()
	total := lo.SumBy(constraint.requirements, func(requirement Requirement) uint64 { return requirement.Meetings })

	// Meetings of one class fall in distinct weeks, so a lab cannot start before every earlier meeting fits and must end
	// leaving a week for every later meeting
	var before uint64
	for _, requirement := range constraint.requirements {
		after := total - before - requirement.Meetings
		emitter.fix(filter(state, state.indexer.ByClassLab(constraint.class, requirement.Lab), func(key AssignmentKey) bool {
			return key.Week < before || key.Week+after >= weeks
		}), false)
		before += requirement.Meetings
	}

	// Every meeting of a lab in week w requires every meeting of the previous lab before w:
	// meetings(prev) * next(w) - sum(prev(w' < w)) <= 0
	// Labs without meetings are skipped, so the order passes through them
	var previous *Requirement
	for i := range constraint.requirements {
		next := constraint.requirements[i]
		if next.Meetings == 0 {
			continue
		}
		if previous == nil {
			previous = &constraint.requirements[i]
			continue
		}
		previousVariables := state.indexer.ByClassLab(constraint.class, previous.Lab)
		nextVariables := state.indexer.ByClassLab(constraint.class, next.Lab)

		for week := range weeks {
			current := filter(state, nextVariables, func(key AssignmentKey) bool { return key.Week == week })
			if len(current) == 0 {
				continue
			}
			earlier := filter(state, previousVariables, func(key AssignmentKey) bool { return key.Week < week })

			terms := make([]sat.Term, 0, len(current)+len(earlier))
			for _, variable := range current {
				terms = append(terms, sat.Term{Var: variable, Coeff: int64(previous.Meetings)})
			}
			for _, variable := range earlier {
				terms = append(terms, sat.Term{Var: variable, Coeff: -1})
			}
			emitter.fragment.AddLinearConstraint(terms, sat.LessEqual, 0, emitter.label())
		}
		previous = &constraint.requirements[i]
	}
	return nil
}

//** Fixed dates: a meeting of the lab takes place at each fixed slot and nothing else that week

type fixedDateConstraint struct {
	hard
	class, lab, meetings uint64
	slots                []SlotKey
}

func fixedDateConstraints(modelInput ModelInput, weights map[Kind]int64, nextId func(Kind) uint64) ([]Constraint, error) {
	constraints := make([]Constraint, 0)
	for _, class := range modelInput.ClassIds {
		for _, requirement := range modelInput.Requirements[class] {
			if len(requirement.Fixed) == 0 {
				continue
			}
			slots := slices.Clone(requirement.Fixed)
			slices.SortFunc(slots, SlotKey.compare)
			slots = slices.Compact(slots)

			base, err := newHard(KindFixedDate, nextId(KindFixedDate), weights[KindFixedDate],
				fmt.Sprintf("class %d meets lab %d at %v", class, requirement.Lab, slots))
			if err != nil {
				return nil, err
			}
			constraints = append(constraints, fixedDateConstraint{base, class, requirement.Lab, requirement.Meetings, slots})
		}
	}
	return constraints, nil
}

func (constraint fixedDateConstraint) emit(state constraintState, emitter *emitter) error {
	if uint64(len(constraint.slots)) > constraint.meetings {
		return DataContradictionError{
			Class:  constraint.class,
			Lab:    constraint.lab,
			Slot:   &constraint.slots[constraint.meetings],
			Reason: fmt.Sprintf("%d fixed dates exceed the %d required meetings", len(constraint.slots), constraint.meetings),
		}
	}

	for _, slot := range constraint.slots {
		week := state.indexer.ByClassWeek(constraint.class, slot.Week)
		fixed := filter(state, week, func(key AssignmentKey) bool {
			return key.Lab == constraint.lab && key.SlotKey == slot
		})
		others := filter(state, week, func(key AssignmentKey) bool {
			return key.Lab != constraint.lab || key.SlotKey != slot
		})

		emitter.candidates(candidateGroup{
			variables: fixed,
			class:     constraint.class,
			lab:       constraint.lab,
			slot:      &slot,
			reason:    "no trainer can take the fixed slot",
		})
		if len(fixed) == 1 {
			emitter.fix(fixed, true)
		} else if len(fixed) > 1 {
			emitter.fragment.AddLinearConstraint(sat.Ones(fixed), sat.Equal, 1, emitter.label())
		}
		emitter.fix(others, false)
	}
	return nil
}

//** Excluded dates: a class never meets at an excluded slot

type excludedDateConstraint struct {
	hard
	class uint64
	slots []SlotKey
}

func excludedDateConstraints(modelInput ModelInput, weights map[Kind]int64, nextId func(Kind) uint64) ([]Constraint, error) {
	constraints := make([]Constraint, 0)
	for _, class := range modelInput.ClassIds {
		slots := modelInput.Excluded[class]
		if len(slots) == 0 {
			continue
		}
		base, err := newHard(KindExcludedDate, nextId(KindExcludedDate), weights[KindExcludedDate],
			fmt.Sprintf("class %d never meets at %d excluded slots", class, len(slots)))
		if err != nil {
			return nil, err
		}
		constraints = append(constraints, excludedDateConstraint{base, class, slots})
	}
	return constraints, nil
}

func (constraint excludedDateConstraint) emit(state constraintState, emitter *emitter) error {
	for _, slot := range constraint.slots {
		emitter.fix(filter(state, state.indexer.ByClassWeek(constraint.class, slot.Week), func(key AssignmentKey) bool {
			return key.SlotKey == slot
		}), false)
	}
	return nil
}

//** Time of day: at least one meeting of the lab falls at the required time of day

type timeOfDayConstraint struct {
	hard
	class, lab uint64
	timeOfDay  TimeOfDay
}

func timeOfDayConstraints(modelInput ModelInput, weights map[Kind]int64, nextId func(Kind) uint64) ([]Constraint, error) {
	constraints := make([]Constraint, 0)
	for _, class := range modelInput.ClassIds {
		for _, requirement := range modelInput.Requirements[class] {
			if requirement.TimeOfDay == AnyTime || requirement.Meetings == 0 {
				continue
			}
			base, err := newHard(KindTimeOfDay, nextId(KindTimeOfDay), weights[KindTimeOfDay],
				fmt.Sprintf("class %d meets lab %d at least once in the %v", class, requirement.Lab, requirement.TimeOfDay))
			if err != nil {
				return nil, err
			}
			constraints = append(constraints, timeOfDayConstraint{base, class, requirement.Lab, requirement.TimeOfDay})
		}
	}
	return constraints, nil
}

func (constraint timeOfDayConstraint) emit(state constraintState, emitter *emitter) error {
	variables := filter(state, state.indexer.ByClassLab(constraint.class, constraint.lab), func(key AssignmentKey) bool {
		slot, _ := state.modelInput.Calendar.Slot(key.SlotKey)
		return slot.TimeOfDay == constraint.timeOfDay
	})
	emitter.candidates(candidateGroup{
		variables: variables,
		class:     constraint.class,
		lab:       constraint.lab,
		reason:    fmt.Sprintf("no meeting can fall in the %v", constraint.timeOfDay),
	})
	emitter.fragment.AddLinearConstraint(sat.Ones(variables), sat.GreaterEqual, 1, emitter.label())
	return nil
}

//** Trainer budget: the hours a trainer teaches stay within the trainer's budget

type trainerBudgetConstraint struct {
	hard
	trainer uint64
	minutes int64
}

func trainerBudgetConstraints(modelInput ModelInput, weights map[Kind]int64, nextId func(Kind) uint64) ([]Constraint, error) {
	constraints := make([]Constraint, 0)
	for _, trainer := range modelInput.TrainerIds {
		minutes := modelInput.Trainers[trainer].Minutes()
		if minutes == 0 {
			continue
		}
		base, err := newHard(KindTrainerBudget, nextId(KindTrainerBudget), weights[KindTrainerBudget],
			fmt.Sprintf("trainer %d teaches at most %v hours", trainer, modelInput.Trainers[trainer].Hours))
		if err != nil {
			return nil, err
		}
		constraints = append(constraints, trainerBudgetConstraint{base, trainer, minutes})
	}
	return constraints, nil
}

func (constraint trainerBudgetConstraint) emit(state constraintState, emitter *emitter) error {
	terms := make([]sat.Term, 0)
	for _, bucket := range bucketsOf(state, constraint.trainer) {
		for _, session := range units(state, state.indexer.ByTrainerSlot(bucket)) {
			// A grouped session is taught, and paid, once
			minutes := state.modelInput.Labs[state.indexer.Attributes(session[0]).Lab].Minutes()
			variable := session[0]
			if len(session) > 1 {
				variable = emitter.indicator(session)
			}
			terms = append(terms, sat.Term{Var: variable, Coeff: minutes})
		}
	}
	if len(terms) > 0 {
		emitter.fragment.AddLinearConstraint(terms, sat.LessEqual, constraint.minutes, emitter.label())
	}
	return nil
}
