package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/limaJavier/labscheduling/internal/config"
	"github.com/limaJavier/labscheduling/internal/logger"
	"github.com/limaJavier/labscheduling/internal/metrics"
	"github.com/limaJavier/labscheduling/pkg/model"
	"github.com/limaJavier/labscheduling/pkg/sat"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newSolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Build the timetable of a catalog",
		RunE:  runSolve,
	}
	cmd.Flags().Duration("time-limit", 0, "solver time budget; overrides solver.time_limit_seconds")
	cmd.Flags().Int("workers", 0, "emission goroutines and solver workers; overrides solver.workers")
	cmd.Flags().String("solver", "", `solver backend, "gophersat" or "opb"; overrides solver.backend`)
	cmd.Flags().StringP("out", "o", "", "output file; the standard output when empty")
	cmd.Flags().StringP("format", "f", "json", `output format, "json" or "csv"`)
	cmd.Flags().String("metrics-out", "", "file receiving the solve metrics in the Prometheus text format")
	return cmd
}

func runSolve(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != formatJson && format != formatCsv {
		return fmt.Errorf("unknown output format %s", format)
	}

	cfg, input, err := loadCatalog(cmd)
	if err != nil {
		return err
	}
	if err := applySolveFlags(cmd, cfg); err != nil {
		return err
	}
	log := logger.New("solve")

	weights, err := cfg.ModelWeights()
	if err != nil {
		return err
	}
	recorder, err := metrics.NewRecorder()
	if err != nil {
		return err
	}

	timetabler := model.NewTimetabler(newSolver(cfg.Solver, log), model.Options{
		TimeLimit: cfg.TimeLimit(),
		Workers:   cfg.Solver.Workers,
		Weights:   weights,
		Logger:    log,
		Observer:  recorder,
	})

	//** Build timetable
	solution, err := timetabler.Build(input)

	if metricsOut, _ := cmd.Flags().GetString("metrics-out"); metricsOut != "" {
		if err := recorder.WriteToTextfile(metricsOut); err != nil {
			log.Error().Err(err).Str("file", metricsOut).Msg("cannot write metrics")
		}
	}

	var contradiction model.DataContradictionError
	var infeasible model.InfeasibleError
	switch {
	case errors.As(err, &contradiction):
		return exitError{exitContradiction, err}
	case errors.As(err, &infeasible):
		return exitError{exitInfeasible, err}
	case err != nil:
		return err
	case solution.Status == sat.Unknown:
		log.Warn().Dur("limit", cfg.TimeLimit()).Msg("no timetable found within the time limit")
		return exitError{code: exitUnknown}
	}

	//** Write output
	out, _ := cmd.Flags().GetString("out")
	if err := writeSolution(cmd.OutOrStdout(), out, format, solution); err != nil {
		return fmt.Errorf("cannot write output: %w", err)
	}
	log.Info().
		Stringer("status", solution.Status).
		Int("meetings", len(solution.Meetings)).
		Int64("objective", solution.Objective).
		Msg("timetable written")
	return exitError{code: exitSolved}
}

func applySolveFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("time-limit") {
		limit, _ := cmd.Flags().GetDuration("time-limit")
		if limit <= 0 {
			return fmt.Errorf("time limit must be positive, got %v", limit)
		}
		// Whole seconds, rounded up so a short budget never becomes an unbounded one
		cfg.Solver.TimeLimitSeconds = int(math.Ceil(limit.Seconds()))
	}
	if cmd.Flags().Changed("workers") {
		cfg.Solver.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("solver") {
		cfg.Solver.Backend, _ = cmd.Flags().GetString("solver")
	}
	return cfg.Validate()
}

func newSolver(cfg config.SolverConfig, log zerolog.Logger) sat.Solver {
	if cfg.Backend == "opb" {
		return sat.NewOPBSolver(cfg.Executable, cfg.Args)
	}
	return sat.NewGophersatSolver(log.With().Str("backend", "gophersat").Logger())
}
