package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

var (
	ErrWeightedHard   = errors.New("hard constraints cannot carry a weight")
	ErrWeightOverflow = errors.New("constraint weights are too large")
)

// MissingReferenceError reports an entity pointing to an id absent from the catalog
type MissingReferenceError struct {
	Entity    string
	Id        uint64
	Reference string
	Missing   uint64
}

func (err MissingReferenceError) Error() string {
	return fmt.Sprintf("%v %d references unknown %v %d", err.Entity, err.Id, err.Reference, err.Missing)
}

// DataContradictionError reports hard rules that force incompatible values; it is raised before solving
type DataContradictionError struct {
	Class  uint64
	Lab    uint64
	Slot   *SlotKey
	Reason string
}

func (err DataContradictionError) Error() string {
	if err.Slot == nil {
		return fmt.Sprintf("data contradiction for class %d and lab %d: %v", err.Class, err.Lab, err.Reason)
	}
	return fmt.Sprintf("data contradiction for class %d and lab %d at %v: %v", err.Class, err.Lab, *err.Slot, err.Reason)
}

// InfeasibleError reports a model no assignment can satisfy, with the hard constraints that were active
type InfeasibleError struct {
	Active      map[Category]int // Number of active hard constraints per category
	Diagnostics []string
}

func (err InfeasibleError) Error() string {
	categories := lo.Keys(err.Active)
	slices.Sort(categories)

	var builder strings.Builder
	builder.WriteString("model is infeasible; active hard constraints: ")
	builder.WriteString(strings.Join(lo.Map(categories, func(category Category, _ int) string {
		return fmt.Sprintf("%v (%d)", category, err.Active[category])
	}), ", "))
	for _, diagnostic := range err.Diagnostics {
		builder.WriteString("\n\t")
		builder.WriteString(diagnostic)
	}
	return builder.String()
}

// VerificationError reports a solution breaking a hard rule
type VerificationError struct {
	Kind    Kind
	Meeting *Meeting
	Reason  string
}

func (err VerificationError) Error() string {
	if err.Meeting == nil {
		return fmt.Sprintf("%v violated: %v", err.Kind, err.Reason)
	}
	return fmt.Sprintf("%v violated by class %d, lab %d, trainer %d at %v: %v", err.Kind, err.Meeting.Class, err.Meeting.Lab, err.Meeting.Trainer, err.Meeting.Key(), err.Reason)
}
