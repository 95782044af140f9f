package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/limaJavier/labscheduling/pkg/sat"
)

type satTimetabler struct {
	solver  sat.Solver
	options Options
}

func (timetabler *satTimetabler) Build(modelInput ModelInput) (Solution, error) {
	solution := Solution{RunId: uuid.New(), Status: sat.Unknown}
	logger := timetabler.options.Logger.With().Str("run", solution.RunId.String()).Logger()
	start := time.Now()

	//** Initialize dependencies
	evaluator := newPredicateEvaluator(modelInput)
	model := sat.NewModel()
	indexer := buildVariables(model, modelInput, evaluator)
	state := constraintState{
		modelInput: modelInput,
		indexer:    indexer,
	}

	catalog, err := buildCatalog(modelInput, timetabler.options.Weights)
	if err != nil {
		return solution, err
	}

	//** Build model
	emitters, err := applyConstraints(catalog, state, timetabler.options.Workers)
	if err != nil {
		return solution, err
	}
	forcedZero, err := checkContradictions(emitters, indexer)
	if err != nil {
		return solution, err
	}
	for _, emitter := range emitters {
		model.Merge(emitter.fragment)
	}
	if _, _, err := model.ObjectiveRange(); err != nil {
		return solution, fmt.Errorf("%w: %w", ErrWeightOverflow, err)
	}

	solution.Variables, solution.Constraints = model.Variables(), len(model.Constraints)
	timetabler.options.Observer.ObserveBuild(solution.Variables, solution.Constraints, time.Since(start))
	logger.Info().
		Int("assignments", indexer.Variables()).
		Int("variables", solution.Variables).
		Int("constraints", solution.Constraints).
		Int("catalog", len(catalog)).
		Dur("elapsed", time.Since(start)).
		Msg("model built")

	if diagnostics := diagnose(modelInput, indexer, forcedZero); len(diagnostics) > 0 {
		solution.Status = sat.Infeasible
		timetabler.options.Observer.ObserveSolve(sat.Infeasible, 0, 0)
		return solution, InfeasibleError{Active: activeCategories(catalog), Diagnostics: diagnostics}
	}

	//** Solve model
	start = time.Now()
	result, err := timetabler.solver.Solve(model, sat.Params{
		TimeLimit: timetabler.options.TimeLimit,
		Workers:   timetabler.options.Workers,
	})
	if err != nil {
		return solution, err
	}
	timetabler.options.Observer.ObserveSolve(result.Status, result.Objective, time.Since(start))
	logger.Info().
		Stringer("status", result.Status).
		Int64("objective", result.Objective).
		Int64("bound", result.Bound).
		Dur("elapsed", time.Since(start)).
		Msg("model solved")

	solution.Status = result.Status
	switch result.Status {
	case sat.Infeasible:
		return solution, InfeasibleError{Active: activeCategories(catalog)}
	case sat.Unknown:
		return solution, nil
	}

	//** Extract meetings
	solution.Objective, solution.Bound = result.Objective, result.Bound
	solution.Meetings = extractMeetings(result, indexer, modelInput)
	if err := verify(solution.Meetings, modelInput); err != nil {
		return solution, fmt.Errorf("solver returned an assignment breaking a hard rule: %w", err)
	}
	return solution, nil
}

func (timetabler *satTimetabler) Verify(meetings []Meeting, modelInput ModelInput) error {
	return verify(meetings, modelInput)
}
