package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/limaJavier/labscheduling/pkg/sat"
	"github.com/rs/zerolog"
)

type Timetabler interface {
	// Build assigns every required meeting. A data contradiction, an infeasible model or an invalid input is reported
	// through the error; a solve that reaches its time budget without any assignment returns the Unknown status
	Build(
		modelInput ModelInput,
	) (solution Solution, err error)

	// Verify checks every hard rule over a list of meetings
	Verify(
		meetings []Meeting,
		modelInput ModelInput,
	) error
}

type Options struct {
	TimeLimit time.Duration
	Workers   int            // Constraint emission goroutines and solver search workers
	Weights   map[Kind]int64 // Soft constraint weights; absent or zero disables a kind
	Logger    zerolog.Logger
	Observer  Observer
}

// Observer is notified of the size of every built model and of the outcome of every solve
type Observer interface {
	ObserveBuild(variables, constraints int, elapsed time.Duration)
	ObserveSolve(status sat.Status, objective int64, elapsed time.Duration)
}

type Solution struct {
	RunId       uuid.UUID
	Status      sat.Status
	Objective   int64
	Bound       int64
	Variables   int
	Constraints int
	Meetings    []Meeting
}

type Meeting struct {
	Week        uint64  `json:"week" csv:"week"`
	Day         uint64  `json:"day" csv:"day"`
	Slot        uint64  `json:"slot" csv:"slot"`
	Class       uint64  `json:"class" csv:"class"`
	Lab         uint64  `json:"lab" csv:"lab"`
	Trainer     uint64  `json:"trainer" csv:"trainer"`
	Hours       float64 `json:"hours" csv:"hours"`
	Date        string  `json:"date" csv:"date"`
	Start       string  `json:"start" csv:"start"`
	End         string  `json:"end" csv:"end"`
	ClassName   string  `json:"className" csv:"class_name"`
	LabName     string  `json:"labName" csv:"lab_name"`
	TrainerName string  `json:"trainerName" csv:"trainer_name"`
}

func (meeting Meeting) Key() SlotKey {
	return SlotKey{Week: meeting.Week, Day: meeting.Day, Slot: meeting.Slot}
}

func NewTimetabler(solver sat.Solver, options Options) Timetabler {
	if options.Observer == nil {
		options.Observer = nopObserver{}
	}
	if options.Weights == nil {
		options.Weights = DefaultWeights()
	}
	options.Workers = max(options.Workers, 1)
	return &satTimetabler{
		solver:  solver,
		options: options,
	}
}

type nopObserver struct{}

func (nopObserver) ObserveBuild(int, int, time.Duration)          {}
func (nopObserver) ObserveSolve(sat.Status, int64, time.Duration) {}
