package sat

import (
	"time"

	"github.com/crillab/gophersat/solver"
	"github.com/rs/zerolog"
)

type gophersatSolver struct {
	logger zerolog.Logger
}

// NewGophersatSolver returns an in-process pseudo-boolean solver. The objective is minimized by solving repeatedly
// under a strictly decreasing upper bound until the bound becomes unsatisfiable, the linear relaxation proves the
// current cost optimal, or the time limit expires.
// gophersat cannot interrupt a running search: when the time limit expires Solve returns, but the pending search keeps
// its goroutine until it finishes on its own
func NewGophersatSolver(logger zerolog.Logger) Solver {
	return &gophersatSolver{logger: logger}
}

type searchOutcome struct {
	status solver.Status
	model  []bool
}

func (gs *gophersatSolver) Solve(model *Model, params Params) (Result, error) {
	var deadline <-chan time.Time
	if params.TimeLimit > 0 {
		timer := time.NewTimer(params.TimeLimit)
		defer timer.Stop()
		deadline = timer.C
	}
	if params.Workers > 1 {
		gs.logger.Debug().Int("workers", params.Workers).Msg("in-process search runs on a single worker")
	}

	rows := make([]pbRow, 0, len(model.Constraints))
	for _, constraint := range model.Constraints {
		for _, row := range normalize(constraint) {
			if row.impossible() {
				gs.logger.Debug().Str("constraint", constraint.Label).Msg("constraint cannot be satisfied by any assignment")
				return Result{Status: Infeasible}, nil
			} else if !row.trivial() {
				rows = append(rows, row)
			}
		}
	}

	low, _, err := model.ObjectiveRange()
	if err != nil {
		return Result{}, err
	}
	relaxed := relax(model)
	if relaxed.ok && relaxed.infeasible {
		gs.logger.Debug().Msg("linear relaxation is infeasible")
		return Result{Status: Infeasible}, nil
	} else if relaxed.ok && relaxed.bound > low {
		low = relaxed.bound
	}

	objective := compact(model.Objective)
	best := Result{Status: Unknown, Bound: low}
	var improvement []pbRow
	for {
		outcome, timedOut := gs.search(append(rows[:len(rows):len(rows)], improvement...), deadline)
		if timedOut {
			if best.Assignment != nil {
				best.Status = Feasible
			}
			return best, nil
		}

		if outcome.status != solver.Sat {
			if best.Assignment == nil {
				return Result{Status: Infeasible, Bound: low}, nil
			}
			// No assignment improves on the best one
			best.Status, best.Bound = Optimal, best.Objective
			return best, nil
		}

		assignment := completeAssignment(outcome.model, model.Variables(), rows, objective)
		cost := model.Evaluate(assignment)
		best = Result{Status: Feasible, Assignment: assignment, Objective: cost, Bound: low}
		gs.logger.Debug().Int64("objective", cost).Int64("bound", low).Msg("improved assignment")

		if len(objective) == 0 || cost <= low {
			best.Status, best.Bound = Optimal, cost
			return best, nil
		}

		// sum(objective) + offset <= cost - 1
		row := greaterEqual(negate(objective), model.Offset-cost+1)
		if row.impossible() {
			best.Status, best.Bound = Optimal, cost
			return best, nil
		}
		improvement = []pbRow{row}
	}
}

// search runs one satisfiability check in its own goroutine so that the deadline can interrupt the wait
func (gs *gophersatSolver) search(rows []pbRow, deadline <-chan time.Time) (searchOutcome, bool) {
	if len(rows) == 0 {
		return searchOutcome{status: solver.Sat}, false
	}

	constraints := make([]solver.PBConstr, len(rows))
	for i, row := range rows {
		constraints[i] = solver.GtEq(row.lits, row.weights, int(row.atLeast))
	}

	done := make(chan searchOutcome, 1)
	go func() {
		s := solver.New(solver.ParsePBConstrs(constraints))
		status := s.Solve()
		outcome := searchOutcome{status: status}
		if status == solver.Sat {
			outcome.model = s.Model()
		}
		done <- outcome
	}()

	select {
	case outcome := <-done:
		return outcome, false
	case <-deadline:
		return searchOutcome{}, true
	}
}

// completeAssignment extends the solver's model to every variable. Variables absent from all constraints take the
// value minimizing their objective contribution
func completeAssignment(solverModel []bool, variables int, rows []pbRow, objective []Term) []bool {
	assignment := make([]bool, variables)
	constrained := make([]bool, variables)
	for _, row := range rows {
		for _, lit := range row.lits {
			if lit < 0 {
				lit = -lit
			}
			if lit <= variables {
				constrained[lit-1] = true
			}
		}
	}
	for i := range variables {
		if constrained[i] && i < len(solverModel) {
			assignment[i] = solverModel[i]
		}
	}
	for _, term := range objective {
		if i := int(term.Var) - 1; i < variables && !constrained[i] {
			assignment[i] = term.Coeff < 0
		}
	}
	return assignment
}
