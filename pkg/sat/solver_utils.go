package sat

import (
	"bufio"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// pbRow is the normalized form sum(weights[i] * lits[i]) >= atLeast with strictly positive weights, where a negative
// literal stands for the negation of the variable
type pbRow struct {
	lits    []int
	weights []int
	atLeast int64
}

func (row pbRow) trivial() bool {
	return row.atLeast <= 0
}

func (row pbRow) impossible() bool {
	return row.atLeast > int64(lo.Sum(row.weights))
}

// normalize turns a linear constraint into one or two ">=" rows over positive weights
func normalize(constraint Constraint) []pbRow {
	terms := compact(constraint.Terms)
	switch constraint.Relation {
	case GreaterEqual:
		return []pbRow{greaterEqual(terms, constraint.Bound)}
	case LessEqual:
		return []pbRow{greaterEqual(negate(terms), -constraint.Bound)}
	default:
		return []pbRow{greaterEqual(terms, constraint.Bound), greaterEqual(negate(terms), -constraint.Bound)}
	}
}

func greaterEqual(terms []Term, bound int64) pbRow {
	row := pbRow{
		lits:    make([]int, 0, len(terms)),
		weights: make([]int, 0, len(terms)),
		atLeast: bound,
	}
	for _, term := range terms {
		if term.Coeff > 0 {
			row.lits = append(row.lits, int(term.Var))
			row.weights = append(row.weights, int(term.Coeff))
		} else {
			// c*x = c - c*(not x)
			row.lits = append(row.lits, -int(term.Var))
			row.weights = append(row.weights, int(-term.Coeff))
			row.atLeast -= term.Coeff
		}
	}
	return row
}

func negate(terms []Term) []Term {
	return lo.Map(terms, func(term Term, _ int) Term { return Term{Var: term.Var, Coeff: -term.Coeff} })
}

// compact sums the coefficients of repeated variables and drops zero coefficients
func compact(terms []Term) []Term {
	coefficients := make(map[Var]int64, len(terms))
	order := make([]Var, 0, len(terms))
	for _, term := range terms {
		if _, ok := coefficients[term.Var]; !ok {
			order = append(order, term.Var)
		}
		coefficients[term.Var] += term.Coeff
	}

	compacted := make([]Term, 0, len(order))
	for _, variable := range order {
		if coeff := coefficients[variable]; coeff != 0 {
			compacted = append(compacted, Term{Var: variable, Coeff: coeff})
		}
	}
	return compacted
}

// parseOPBOutput reads the output of a pseudo-boolean solver following the competition format ("s ...", "o ...",
// "v ..." lines)
func parseOPBOutput(solverOutput string, variables int) (Result, error) {
	result := Result{Status: Unknown}
	assignment := make([]bool, variables)
	seenValues := false

	scanner := bufio.NewScanner(strings.NewReader(solverOutput))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) < 2 {
			continue
		}
		switch line[0] {
		case 's':
			switch strings.TrimSpace(line[2:]) {
			case "OPTIMUM FOUND":
				result.Status = Optimal
			case "SATISFIABLE":
				result.Status = Feasible
			case "UNSATISFIABLE":
				result.Status = Infeasible
			default:
				result.Status = Unknown
			}
		case 'o':
			cost, err := strconv.ParseInt(strings.TrimSpace(line[2:]), 10, 64)
			if err != nil {
				return Result{}, fmt.Errorf("invalid objective line %q: %w", line, err)
			}
			result.Objective = cost
		case 'v':
			for _, literal := range strings.Fields(line[2:]) {
				positive := !strings.HasPrefix(literal, "-")
				index, err := strconv.Atoi(strings.TrimPrefix(strings.TrimPrefix(literal, "-"), "x"))
				if err != nil {
					return Result{}, fmt.Errorf("invalid literal %q in solver output: %w", literal, err)
				}
				if index >= 1 && index <= variables {
					assignment[index-1] = positive
				}
			}
			seenValues = true
		}
	}
	if err := scanner.Err(); err != nil {
		return Result{}, fmt.Errorf("cannot read solver output: %w", err)
	}

	// A solver stopped by the time limit may have printed an assignment without a status line
	if result.Status == Unknown && seenValues {
		result.Status = Feasible
	}
	if result.Status.Solved() {
		result.Assignment = assignment
	}
	return result, nil
}

// AssertSolution checks that the assignment satisfies every constraint of the model
func AssertSolution(model *Model, assignment []bool) bool {
	return slices.IndexFunc(model.Constraints, func(constraint Constraint) bool {
		return !satisfied(constraint, assignment)
	}) == -1
}

func satisfied(constraint Constraint, assignment []bool) bool {
	var sum int64
	for _, term := range constraint.Terms {
		if valueOf(assignment, term.Var) {
			sum += term.Coeff
		}
	}
	switch constraint.Relation {
	case LessEqual:
		return sum <= constraint.Bound
	case GreaterEqual:
		return sum >= constraint.Bound
	default:
		return sum == constraint.Bound
	}
}
