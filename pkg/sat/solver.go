package sat

import "time"

type Status int

const (
	Unknown Status = iota // No conclusion was reached within the time budget
	Optimal
	Feasible
	Infeasible
)

func (status Status) String() string {
	switch status {
	case Optimal:
		return "optimal"
	case Feasible:
		return "feasible"
	case Infeasible:
		return "infeasible"
	}
	return "unknown"
}

// Solved reports whether the status carries an assignment satisfying every constraint
func (status Status) Solved() bool {
	return status == Optimal || status == Feasible
}

type Params struct {
	TimeLimit time.Duration
	Workers   int
}

type Result struct {
	Status     Status
	Assignment []bool // Assignment[i] holds the value of Var(i+1)
	Objective  int64
	Bound      int64 // Proven lower bound of the objective; equal to Objective when Status is Optimal
}

func (result Result) Value(variable Var) bool {
	return valueOf(result.Assignment, variable)
}

// Solver returns an assignment satisfying every constraint of the model while minimizing its objective. Reaching the
// time limit without any assignment is reported through the Unknown status, not through an error
type Solver interface {
	Solve(model *Model, params Params) (Result, error)
}
