package sat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Placeholders substituted in the arguments of an external solver
const (
	FilePlaceholder      = "{file}"
	TimeLimitPlaceholder = "{timelimit}"
	WorkersPlaceholder   = "{workers}"
)

// Grace period granted to an external solver after its own time limit before it is killed
const killGrace = 2 * time.Second

type opbSolver struct {
	path string
	args []string
}

// NewOPBSolver returns a solver running an external pseudo-boolean executable over an OPB file. args may reference
// {file}, {timelimit} (whole seconds) and {workers}; the file is appended when no argument references it
func NewOPBSolver(path string, args []string) Solver {
	return &opbSolver{path: path, args: args}
}

func (solver *opbSolver) Solve(model *Model, params Params) (Result, error) {
	opb := model.ToOPB() // Transform model into OPB string format

	// Create a temporary file to hold the OPB content
	inputTempFile, err := os.CreateTemp("", "model-*.opb")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(inputTempFile.Name()) // Ensure the file is removed after execution

	if _, err := inputTempFile.WriteString(opb); err != nil {
		return Result{}, fmt.Errorf("failed to write OPB to temporary file: %w", err)
	}
	if err := inputTempFile.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to close temporary file: %w", err)
	}

	ctx := context.Background()
	if params.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, params.TimeLimit+killGrace)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, solver.path, solver.arguments(inputTempFile.Name(), params)...)
	var stdOut bytes.Buffer
	cmd.Stdout = &stdOut
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// Competition solvers exit with 10 (satisfiable), 20 (unsatisfiable) or 30 (optimum found); a killed process
	// still leaves whatever it printed so far
	err = cmd.Run()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return Result{}, fmt.Errorf("an error occurred during %v execution: %w : %v", solver.path, err, stderr.String())
	} else if err != nil && ctx.Err() == nil && !lo.Contains([]int{10, 20, 30}, exitErr.ExitCode()) {
		return Result{}, fmt.Errorf("an error occurred during %v execution: %v : %v", solver.path, err.Error(), stderr.String())
	}

	result, err := parseOPBOutput(stdOut.String(), model.Variables())
	if err != nil {
		return Result{}, err
	}

	if result.Status.Solved() {
		result.Objective = model.Evaluate(result.Assignment)
		result.Bound = math.MinInt64
		if result.Status == Optimal {
			result.Bound = result.Objective
		}
	}
	return result, nil
}

func (solver *opbSolver) arguments(file string, params Params) []string {
	seconds := int64(math.Ceil(params.TimeLimit.Seconds()))
	workers := max(params.Workers, 1)

	replacer := strings.NewReplacer(
		FilePlaceholder, file,
		TimeLimitPlaceholder, strconv.FormatInt(seconds, 10),
		WorkersPlaceholder, strconv.Itoa(workers),
	)
	args := lo.Map(solver.args, func(arg string, _ int) string { return replacer.Replace(arg) })
	if !lo.SomeBy(solver.args, func(arg string) bool { return strings.Contains(arg, FilePlaceholder) }) {
		args = append(args, file)
	}
	return args
}
