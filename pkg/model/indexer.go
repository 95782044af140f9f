package model

import "github.com/limaJavier/labscheduling/pkg/sat"

// AssignmentKey identifies one decision variable: the class meets the lab with the trainer at the slot
type AssignmentKey struct {
	Class   uint64
	Lab     uint64
	Trainer uint64
	SlotKey
}

// TrainerSlot identifies the bucket of variables competing for a trainer at one slot
type TrainerSlot struct {
	Trainer uint64
	SlotKey
}

// indexer interface is designed to give a unique variable to every possible assignment and to look variables up by
// the attributes constraints are built on
type indexer interface {
	// Returns the variable of an assignment, if the assignment is possible
	Index(key AssignmentKey) (sat.Var, bool)
	// Returns the assignment of a variable
	Attributes(variable sat.Var) AssignmentKey
	// Number of assignment variables; they are numbered from 1 to Variables()
	Variables() int

	ByClass(class uint64) []sat.Var
	ByClassWeek(class, week uint64) []sat.Var
	ByTrainerSlot(bucket TrainerSlot) []sat.Var
	ByClassLab(class, lab uint64) []sat.Var

	// Trainer-slot buckets holding at least one variable, in (trainer, week, day, slot) order
	Buckets() []TrainerSlot
}

// buildVariables creates one variable per structurally possible assignment and fills every index in the same pass.
// Classes, requirements, trainers and slots are walked in a fixed order so variable numbering is deterministic
func buildVariables(model *sat.Model, modelInput ModelInput, evaluator predicateEvaluator) indexer {
	indexer := newIndexerImplementation()

	for _, class := range modelInput.ClassIds {
		for _, requirement := range modelInput.Requirements[class] {
			for _, trainer := range modelInput.TrainerIds {
				if !evaluator.Qualified(trainer, requirement.Lab) {
					continue
				}
				for _, slot := range modelInput.Calendar.Slots {
					if !evaluator.Possible(class, requirement.Lab, trainer, slot) {
						continue
					}
					key := AssignmentKey{Class: class, Lab: requirement.Lab, Trainer: trainer, SlotKey: slot.Key()}
					indexer.add(model.AddBoolVar(key.String()), key)
				}
			}
		}
	}

	indexer.seal()
	return indexer
}
