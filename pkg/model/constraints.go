package model

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/limaJavier/labscheduling/pkg/sat"
	"github.com/samber/lo"
)

type Tag int

const (
	Hard Tag = iota // Must hold in every accepted solution
	Soft            // Penalized in the objective when violated
)

func (tag Tag) String() string {
	if tag == Hard {
		return "hard"
	}
	return "soft"
}

type Kind string

const (
	KindCompletion         Kind = "completion"
	KindWeeklyCap          Kind = "weekly-cap"
	KindTrainerExclusivity Kind = "trainer-exclusivity"
	KindSequencing         Kind = "sequencing"
	KindFixedDate          Kind = "fixed-date"
	KindExcludedDate       Kind = "excluded-date"
	KindTimeOfDay          Kind = "time-of-day"
	KindTrainerBudget      Kind = "trainer-budget"

	KindTrainerContinuity Kind = "trainer-continuity"
	KindSlotConsistency   Kind = "slot-consistency"
	KindWeekdayPreference Kind = "weekday-preference"
	KindEarlyCompletion   Kind = "early-completion"
	KindPartnerGrouping   Kind = "partner-grouping"
	KindSaturdayAvoidance Kind = "saturday-avoidance"

	// Reported by verification for meetings no assignment variable could stand for
	KindAvailability Kind = "availability"
)

type Category string

const (
	CategoryCapacity     Category = "capacity"
	CategoryTemporal     Category = "temporal"
	CategoryGrouping     Category = "grouping"
	CategoryAvailability Category = "availability"
	CategoryQuality      Category = "quality"
)

var kindCategories = map[Kind]Category{
	KindCompletion:         CategoryCapacity,
	KindWeeklyCap:          CategoryCapacity,
	KindTrainerExclusivity: CategoryGrouping,
	KindSequencing:         CategoryTemporal,
	KindFixedDate:          CategoryTemporal,
	KindExcludedDate:       CategoryAvailability,
	KindTimeOfDay:          CategoryTemporal,
	KindTrainerBudget:      CategoryCapacity,
	KindTrainerContinuity:  CategoryQuality,
	KindSlotConsistency:    CategoryQuality,
	KindWeekdayPreference:  CategoryAvailability,
	KindEarlyCompletion:    CategoryTemporal,
	KindPartnerGrouping:    CategoryGrouping,
	KindSaturdayAvoidance:  CategoryAvailability,
}

func HardKinds() []Kind {
	return []Kind{KindCompletion, KindWeeklyCap, KindTrainerExclusivity, KindSequencing, KindFixedDate, KindExcludedDate, KindTimeOfDay, KindTrainerBudget}
}

func SoftKinds() []Kind {
	return []Kind{KindTrainerContinuity, KindSlotConsistency, KindWeekdayPreference, KindEarlyCompletion, KindPartnerGrouping, KindSaturdayAvoidance}
}

func DefaultWeights() map[Kind]int64 {
	return map[Kind]int64{
		KindTrainerContinuity: 50,
		KindSlotConsistency:   10,
		KindWeekdayPreference: 5,
		KindEarlyCompletion:   1,
		KindPartnerGrouping:   20,
		KindSaturdayAvoidance: 30,
	}
}

type ConstraintId struct {
	Kind Kind
	Id   uint64
}

func (id ConstraintId) String() string {
	return fmt.Sprintf("%v#%d", id.Kind, id.Id)
}

// Constraint is the closed set of rules the engine knows how to encode. Hard constraints add rows that every solution
// must satisfy; soft constraints add weighted terms to the objective
type Constraint interface {
	Id() ConstraintId
	Tag() Tag
	Category() Category
	Description() string
	Weight() int64

	emit(state constraintState, emitter *emitter) error
}

type identity struct {
	id          ConstraintId
	description string
}

func (identity identity) Id() ConstraintId {
	return identity.id
}

func (identity identity) Category() Category {
	return kindCategories[identity.id.Kind]
}

func (identity identity) Description() string {
	return identity.description
}

type hard struct {
	identity
}

func newHard(kind Kind, id uint64, weight int64, description string) (hard, error) {
	if weight != 0 {
		return hard{}, fmt.Errorf("%v#%d: %w", kind, id, ErrWeightedHard)
	}
	return hard{identity{ConstraintId{kind, id}, description}}, nil
}

func (hard) Tag() Tag {
	return Hard
}

func (hard) Weight() int64 {
	return 0
}

type soft struct {
	identity
	weight int64
}

func newSoft(kind Kind, id uint64, weight int64, description string) soft {
	return soft{identity{ConstraintId{kind, id}, description}, weight}
}

func (soft) Tag() Tag {
	return Soft
}

func (constraint soft) Weight() int64 {
	return constraint.weight
}

type constraintState struct {
	modelInput ModelInput
	indexer    indexer
}

type forcing struct {
	variable sat.Var
	value    bool
	source   ConstraintId
}

// candidateGroup is a set of variables of which at least one must remain free to take the value 1
type candidateGroup struct {
	variables []sat.Var
	class     uint64
	lab       uint64
	slot      *SlotKey
	reason    string
}

// emitter collects what one constraint produces: rows and objective terms in its own fragment, plus the values it
// forces, which are checked against each other before the model is solved
type emitter struct {
	source   ConstraintId
	fragment *sat.Fragment
	forced   []forcing
	groups   []candidateGroup
}

func newEmitter(source ConstraintId) *emitter {
	return &emitter{source: source, fragment: sat.NewFragment()}
}

func (emitter *emitter) label() string {
	return emitter.source.String()
}

// fix forces every variable to the value
func (emitter *emitter) fix(variables []sat.Var, value bool) {
	if len(variables) == 0 {
		return
	}
	for _, variable := range variables {
		emitter.forced = append(emitter.forced, forcing{variable, value, emitter.source})
	}
	if value {
		emitter.fragment.AddLinearConstraint(sat.Ones(variables), sat.GreaterEqual, int64(len(variables)), emitter.label())
	} else {
		emitter.fragment.AddLinearConstraint(sat.Ones(variables), sat.LessEqual, 0, emitter.label())
	}
}

func (emitter *emitter) candidates(group candidateGroup) {
	emitter.groups = append(emitter.groups, group)
}

func (emitter *emitter) atMost(variables []sat.Var, bound int64) {
	emitter.fragment.AddLinearConstraint(sat.Ones(variables), sat.LessEqual, bound, emitter.label())
}

// indicator returns a new variable forced to 1 whenever any of the variables is 1
func (emitter *emitter) indicator(variables []sat.Var) sat.Var {
	indicator := emitter.fragment.AddBoolVar(emitter.label()+"_any")
	for _, variable := range variables {
		emitter.fragment.AddLinearConstraint([]sat.Term{{Var: variable, Coeff: 1}, {Var: indicator, Coeff: -1}}, sat.LessEqual, 0, emitter.label())
	}
	return indicator
}

// conjunction returns a new variable that can only be 1 when every sum of variables is at least 1
func (emitter *emitter) conjunction(sums ...[]sat.Var) sat.Var {
	conjunction := emitter.fragment.AddBoolVar(emitter.label()+"_all")
	for _, variables := range sums {
		terms := append([]sat.Term{{Var: conjunction, Coeff: 1}}, lo.Map(variables, func(variable sat.Var, _ int) sat.Term {
			return sat.Term{Var: variable, Coeff: -1}
		})...)
		emitter.fragment.AddLinearConstraint(terms, sat.LessEqual, 0, emitter.label())
	}
	return conjunction
}

// buildCatalog instantiates every constraint the input calls for. Soft constraints with a zero weight are disabled
func buildCatalog(modelInput ModelInput, weights map[Kind]int64) ([]Constraint, error) {
	for kind, weight := range weights {
		if _, ok := kindCategories[kind]; !ok {
			return nil, fmt.Errorf("unknown constraint kind %q", kind)
		} else if weight < 0 {
			return nil, fmt.Errorf("weight of %v must not be negative", kind)
		}
	}

	catalog := make([]Constraint, 0)
	ids := make(map[Kind]uint64)
	nextId := func(kind Kind) uint64 {
		id := ids[kind]
		ids[kind]++
		return id
	}

	for _, builder := range hardBuilders {
		constraints, err := builder(modelInput, weights, nextId)
		if err != nil {
			return nil, err
		}
		catalog = append(catalog, constraints...)
	}
	for _, builder := range softBuilders {
		catalog = append(catalog, builder(modelInput, weights, nextId)...)
	}
	return catalog, nil
}

// activeCategories counts hard constraints per category
func activeCategories(catalog []Constraint) map[Category]int {
	active := make(map[Category]int)
	for _, constraint := range catalog {
		if constraint.Tag() == Hard {
			active[constraint.Category()]++
		}
	}
	return active
}

// units splits the variables of one trainer-slot bucket into sessions: variables of partner classes meeting the same
// lab form a single session, every other variable is a session of its own
func units(state constraintState, variables []sat.Var) [][]sat.Var {
	type unitKey struct{ lab, group uint64 }
	order := make([]unitKey, 0, len(variables))
	sessions := make(map[unitKey][]sat.Var)
	for _, variable := range variables {
		key := state.indexer.Attributes(variable)
		unit := unitKey{key.Lab, state.modelInput.Groups[key.Class]}
		if _, ok := sessions[unit]; !ok {
			order = append(order, unit)
		}
		sessions[unit] = append(sessions[unit], variable)
	}
	return lo.Map(order, func(unit unitKey, _ int) []sat.Var { return sessions[unit] })
}

// filter keeps the variables whose assignment satisfies the predicate
func filter(state constraintState, variables []sat.Var, predicate func(key AssignmentKey) bool) []sat.Var {
	return lo.Filter(variables, func(variable sat.Var, _ int) bool {
		return predicate(state.indexer.Attributes(variable))
	})
}

func bucketsOf(state constraintState, trainer uint64) []TrainerSlot {
	buckets := state.indexer.Buckets()
	start, _ := slices.BinarySearchFunc(buckets, trainer, func(bucket TrainerSlot, trainer uint64) int {
		return cmp.Compare(bucket.Trainer, trainer)
	})
	end := start
	for end < len(buckets) && buckets[end].Trainer == trainer {
		end++
	}
	return buckets[start:end]
}
