package model

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/limaJavier/labscheduling/pkg/sat"
	"github.com/onsi/gomega/matchers/support/goraph/bipartitegraph"
	"github.com/samber/lo"
)

// applyConstraints emits every constraint of the catalog on up to workers goroutines. Each constraint writes into its
// own emitter, and emitters are returned in catalog order so the merged model does not depend on scheduling
func applyConstraints(catalog []Constraint, state constraintState, workers int) ([]*emitter, error) {
	emitters := make([]*emitter, len(catalog))
	errs := make([]error, len(catalog))

	indices := make(chan int)
	var wg sync.WaitGroup
	for range max(workers, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				constraint := catalog[i]
				emitters[i] = newEmitter(constraint.Id())

				switch constraint.Tag() {
				case Hard:
					errs[i] = constraint.emit(state, emitters[i])
				case Soft:
					if constraint.Weight() > 0 {
						errs[i] = constraint.emit(state, emitters[i])
					}
				}
			}
		}()
	}
	for i := range catalog {
		indices <- i
	}
	close(indices)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return emitters, nil
}

// checkContradictions looks for variables forced to both values and for candidate groups left without any variable
// free to be 1. It returns the variables forced to 0
func checkContradictions(emitters []*emitter, indexer indexer) (map[sat.Var]bool, error) {
	zeros, ones := make(map[sat.Var]ConstraintId), make(map[sat.Var]ConstraintId)
	for _, emitter := range emitters {
		for _, forced := range emitter.forced {
			same, opposite := ones, zeros
			if !forced.value {
				same, opposite = zeros, ones
			}
			if source, ok := opposite[forced.variable]; ok {
				key := indexer.Attributes(forced.variable)
				return nil, DataContradictionError{
					Class:  key.Class,
					Lab:    key.Lab,
					Slot:   &key.SlotKey,
					Reason: fmt.Sprintf("trainer %d is forced to both values by %v and %v", key.Trainer, source, forced.source),
				}
			}
			if _, ok := same[forced.variable]; !ok {
				same[forced.variable] = forced.source
			}
		}
	}

	for _, emitter := range emitters {
		for _, group := range emitter.groups {
			if lo.EveryBy(group.variables, func(variable sat.Var) bool {
				_, ok := zeros[variable]
				return ok
			}) {
				reason := group.reason
				if len(group.variables) > 0 {
					reason = fmt.Sprintf("every candidate is excluded by other rules (%v)", lo.Uniq(lo.Map(group.variables, func(variable sat.Var, _ int) ConstraintId {
						return zeros[variable]
					})))
				}
				return nil, DataContradictionError{Class: group.class, Lab: group.lab, Slot: group.slot, Reason: reason}
			}
		}
	}

	return lo.MapValues(zeros, func(ConstraintId, sat.Var) bool { return true }), nil
}

type meetingNode struct {
	lab   uint64
	index uint64
}

// diagnose matches the meetings each class requires to the weeks able to host them. Since a class meets at most once
// a week, a class whose meetings cannot all be matched makes the model infeasible
func diagnose(modelInput ModelInput, indexer indexer, forcedZero map[sat.Var]bool) []string {
	diagnostics := make([]string, 0)
	for _, class := range modelInput.ClassIds {
		meetings := make([]any, 0)
		hosts := make(map[uint64]map[uint64]bool) // Weeks able to host each lab
		for _, requirement := range modelInput.Requirements[class] {
			for i := range requirement.Meetings {
				meetings = append(meetings, meetingNode{requirement.Lab, i})
			}
			hosts[requirement.Lab] = make(map[uint64]bool)
			for _, variable := range indexer.ByClassLab(class, requirement.Lab) {
				if !forcedZero[variable] {
					hosts[requirement.Lab][indexer.Attributes(variable).Week] = true
				}
			}
		}
		if len(meetings) == 0 {
			continue
		}

		weeks := lo.Uniq(lo.Flatten(lo.Map(lo.Values(hosts), func(weeks map[uint64]bool, _ int) []uint64 { return lo.Keys(weeks) })))
		slices.Sort(weeks)
		if len(weeks) < len(meetings) {
			diagnostics = append(diagnostics, fmt.Sprintf("class %d requires %d meetings but only %d weeks can host any of them", class, len(meetings), len(weeks)))
			continue
		}

		neighbors := func(meetingAny any, weekAny any) (bool, error) {
			return hosts[meetingAny.(meetingNode).lab][weekAny.(uint64)], nil
		}
		weeksAny := lo.Map(weeks, func(week uint64, _ int) any { return week })

		graph, err := bipartitegraph.NewBipartiteGraph(meetings, weeksAny, neighbors)
		if err != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("class %d: %v", class, err))
			continue
		}
		if matching := graph.LargestMatching(); len(matching) < len(meetings) {
			diagnostics = append(diagnostics, fmt.Sprintf("class %d requires %d meetings in distinct weeks but at most %d can be placed", class, len(meetings), len(matching)))
		}
	}
	return diagnostics
}

// extractMeetings reads the assignment variables set to 1, ordered by slot then class
func extractMeetings(result sat.Result, indexer indexer, modelInput ModelInput) []Meeting {
	meetings := make([]Meeting, 0)
	for variable := sat.Var(1); int(variable) <= indexer.Variables(); variable++ {
		if !result.Value(variable) {
			continue
		}
		key := indexer.Attributes(variable)
		slot, _ := modelInput.Calendar.Slot(key.SlotKey)
		lab := modelInput.Labs[key.Lab]
		meetings = append(meetings, Meeting{
			Week:        key.Week,
			Day:         key.Day,
			Slot:        key.Slot,
			Class:       key.Class,
			Lab:         key.Lab,
			Trainer:     key.Trainer,
			Hours:       lab.Hours,
			Date:        slot.Date.Format(DateLayout),
			Start:       slot.Start,
			End:         slot.End,
			ClassName:   modelInput.Classes[key.Class].Name,
			LabName:     lab.Name,
			TrainerName: modelInput.Trainers[key.Trainer].Name,
		})
	}

	slices.SortFunc(meetings, func(a, b Meeting) int {
		if order := a.Key().compare(b.Key()); order != 0 {
			return order
		}
		return cmp.Compare(a.Class, b.Class)
	})
	return meetings
}

func verify(meetings []Meeting, modelInput ModelInput) error {
	//** Initialize dependencies
	evaluator := newPredicateEvaluator(modelInput)

	requirements := make(map[[2]uint64]Requirement)
	for _, class := range modelInput.ClassIds {
		for _, requirement := range modelInput.Requirements[class] {
			requirements[[2]uint64{class, requirement.Lab}] = requirement
		}
	}

	counts := make(map[[2]uint64]uint64)                 // Meetings per class and lab
	weeks := make(map[[2]uint64][]uint64)                // Weeks per class and lab
	classWeeks := make(map[[2]uint64]bool)               // Class already meeting in a week
	sessions := make(map[TrainerSlot]*Meeting)           // First meeting taught by a trainer at a slot
	minutes := make(map[uint64]int64)                    // Minutes taught per trainer
	timesOfDay := make(map[[2]uint64]map[TimeOfDay]bool) // Times of day per class and lab

	for i := range meetings {
		meeting := &meetings[i]
		pair := [2]uint64{meeting.Class, meeting.Lab}

		// Check that:
		// - The class requires the lab
		// - The slot belongs to the calendar
		// - The assignment is structurally possible
		// - The slot is not excluded for the class
		// - The class does not meet twice in the week
		// - The trainer does not teach two sessions at the slot
		if _, ok := requirements[pair]; !ok {
			return VerificationError{Kind: KindCompletion, Meeting: meeting, Reason: "the class does not require the lab"}
		}
		slot, ok := modelInput.Calendar.Slot(meeting.Key())
		if !ok {
			return VerificationError{Kind: KindAvailability, Meeting: meeting, Reason: "the slot is not part of the calendar"}
		}
		if _, ok := modelInput.Trainers[meeting.Trainer]; !ok || !evaluator.Possible(meeting.Class, meeting.Lab, meeting.Trainer, slot) {
			return VerificationError{Kind: KindAvailability, Meeting: meeting, Reason: "the trainer, school or class cannot take the slot"}
		}
		if slices.Contains(modelInput.Excluded[meeting.Class], meeting.Key()) {
			return VerificationError{Kind: KindExcludedDate, Meeting: meeting, Reason: "the slot is excluded for the class"}
		}
		classWeek := [2]uint64{meeting.Class, meeting.Week}
		if classWeeks[classWeek] {
			return VerificationError{Kind: KindWeeklyCap, Meeting: meeting, Reason: "the class already meets that week"}
		}
		classWeeks[classWeek] = true

		bucket := TrainerSlot{Trainer: meeting.Trainer, SlotKey: meeting.Key()}
		if other, ok := sessions[bucket]; !ok {
			sessions[bucket] = meeting
			minutes[meeting.Trainer] += modelInput.Labs[meeting.Lab].Minutes()
		} else if other.Lab != meeting.Lab || modelInput.Groups[other.Class] != modelInput.Groups[meeting.Class] {
			return VerificationError{Kind: KindTrainerExclusivity, Meeting: meeting, Reason: fmt.Sprintf("the trainer already teaches class %d", other.Class)}
		}

		counts[pair]++
		weeks[pair] = append(weeks[pair], meeting.Week)
		if _, ok := timesOfDay[pair]; !ok {
			timesOfDay[pair] = make(map[TimeOfDay]bool)
		}
		timesOfDay[pair][slot.TimeOfDay] = true
	}

	for _, class := range modelInput.ClassIds {
		var previous *Requirement
		for _, requirement := range modelInput.Requirements[class] {
			pair := [2]uint64{class, requirement.Lab}
			if counts[pair] != requirement.Meetings {
				return VerificationError{Kind: KindCompletion, Reason: fmt.Sprintf("class %d meets lab %d %d times instead of %d", class, requirement.Lab, counts[pair], requirement.Meetings)}
			}
			for _, fixed := range requirement.Fixed {
				if !lo.SomeBy(meetings, func(meeting Meeting) bool {
					return meeting.Class == class && meeting.Lab == requirement.Lab && meeting.Key() == fixed
				}) {
					return VerificationError{Kind: KindFixedDate, Reason: fmt.Sprintf("class %d does not meet lab %d at %v", class, requirement.Lab, fixed)}
				}
			}
			if requirement.TimeOfDay != AnyTime && requirement.Meetings > 0 && !timesOfDay[pair][requirement.TimeOfDay] {
				return VerificationError{Kind: KindTimeOfDay, Reason: fmt.Sprintf("class %d never meets lab %d in the %v", class, requirement.Lab, requirement.TimeOfDay)}
			}
			if previous != nil && len(weeks[pair]) > 0 && len(weeks[[2]uint64{class, previous.Lab}]) > 0 &&
				slices.Max(weeks[[2]uint64{class, previous.Lab}]) >= slices.Min(weeks[pair]) {
				return VerificationError{Kind: KindSequencing, Reason: fmt.Sprintf("class %d starts lab %d before completing lab %d", class, requirement.Lab, previous.Lab)}
			}
			if requirement.Meetings > 0 {
				previous = &requirement
			}
		}
	}

	for trainer, taught := range minutes {
		if budget := modelInput.Trainers[trainer].Minutes(); budget > 0 && taught > budget {
			return VerificationError{Kind: KindTrainerBudget, Reason: fmt.Sprintf("trainer %d teaches %d minutes over a budget of %d", trainer, taught, budget)}
		}
	}
	return nil
}
