package sat

import (
	"math"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGophersatSatisfiable(t *testing.T) {
	solver := NewGophersatSolver(zerolog.Nop())
	infeasibleCount := 0

	for range 10 {
		//** Arrange
		instance := generateModel(rand.IntN(12)+1, rand.IntN(10)+1)

		//** Act
		result, err := solver.Solve(instance, Params{TimeLimit: 10 * time.Second, Workers: 1})

		//** Assert
		require.NoError(t, err)
		if result.Status == Infeasible {
			infeasibleCount++
			continue
		}
		assert.Equal(t, Optimal, result.Status)
		assert.True(t, AssertSolution(instance, result.Assignment))
		assert.Equal(t, instance.Evaluate(result.Assignment), result.Objective)
	}

	t.Logf("Infeasible instances: %v", infeasibleCount)
}

func TestGophersatMinimizes(t *testing.T) {
	solver := NewGophersatSolver(zerolog.Nop())

	t.Run("Cheapest pair", func(t *testing.T) {
		//** Arrange
		model := NewModel()
		x1, x2, x3 := model.AddBoolVar("x1"), model.AddBoolVar("x2"), model.AddBoolVar("x3")
		model.AddLinearConstraint(Ones([]Var{x1, x2, x3}), Equal, 2, "pick two")
		model.SetObjective([]Term{{x1, 5}, {x2, 1}, {x3, 2}}, 0)

		//** Act
		result, err := solver.Solve(model, Params{TimeLimit: 5 * time.Second})

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, Optimal, result.Status)
		assert.Equal(t, int64(3), result.Objective)
		assert.False(t, result.Value(x1))
		assert.True(t, result.Value(x2))
		assert.True(t, result.Value(x3))
	})

	t.Run("Rewards with offset", func(t *testing.T) {
		//** Arrange
		model := NewModel()
		x1, x2 := model.AddBoolVar("x1"), model.AddBoolVar("x2")
		model.AddLinearConstraint(Ones([]Var{x1, x2}), LessEqual, 1, "at most one")
		model.SetObjective([]Term{{x1, -3}, {x2, -7}}, 10)

		//** Act
		result, err := solver.Solve(model, Params{TimeLimit: 5 * time.Second})

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, Optimal, result.Status)
		assert.Equal(t, int64(3), result.Objective)
		assert.True(t, result.Value(x2))
	})

	t.Run("Unconstrained variables", func(t *testing.T) {
		//** Arrange
		model := NewModel()
		x1, x2 := model.AddBoolVar("x1"), model.AddBoolVar("x2")
		model.SetObjective([]Term{{x1, -4}, {x2, 4}}, 0)

		//** Act
		result, err := solver.Solve(model, Params{})

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, Optimal, result.Status)
		assert.Equal(t, int64(-4), result.Objective)
	})
}

func TestGophersatInfeasible(t *testing.T) {
	solver := NewGophersatSolver(zerolog.Nop())

	t.Run("Contradicting rows", func(t *testing.T) {
		model := NewModel()
		x1, x2 := model.AddBoolVar("x1"), model.AddBoolVar("x2")
		model.AddLinearConstraint(Ones([]Var{x1, x2}), GreaterEqual, 2, "both")
		model.AddLinearConstraint(Ones([]Var{x1, x2}), LessEqual, 1, "at most one")

		result, err := solver.Solve(model, Params{TimeLimit: 5 * time.Second})

		require.NoError(t, err)
		assert.Equal(t, Infeasible, result.Status)
		assert.Nil(t, result.Assignment)
	})

	t.Run("Bound above capacity", func(t *testing.T) {
		model := NewModel()
		x1 := model.AddBoolVar("x1")
		model.AddLinearConstraint(Ones([]Var{x1}), Equal, 3, "three of one")

		result, err := solver.Solve(model, Params{TimeLimit: 5 * time.Second})

		require.NoError(t, err)
		assert.Equal(t, Infeasible, result.Status)
	})
}

func TestGophersatDeadline(t *testing.T) {
	//** Arrange
	// Random 3-SAT at the satisfiability threshold with an objective to improve
	solver := NewGophersatSolver(zerolog.Nop())
	random := rand.New(rand.NewPCG(7, 11))
	model := NewModel()
	vars := make([]Var, 600)
	for i := range vars {
		vars[i] = model.AddBoolVar("")
	}
	for range 2556 {
		terms, bound := make([]Term, 0, 3), int64(1)
		for _, index := range random.Perm(len(vars))[:3] {
			if random.IntN(2) == 0 {
				terms = append(terms, Term{Var: vars[index], Coeff: 1})
			} else {
				// not x = 1 - x
				terms = append(terms, Term{Var: vars[index], Coeff: -1})
				bound--
			}
		}
		model.AddLinearConstraint(terms, GreaterEqual, bound, "clause")
	}
	model.SetObjective(lo.Map(vars, func(variable Var, _ int) Term {
		return Term{Var: variable, Coeff: int64(random.IntN(9) + 1)}
	}), 0)
	limit := 300 * time.Millisecond

	//** Act
	start := time.Now()
	result, err := solver.Solve(model, Params{TimeLimit: limit, Workers: 1})
	elapsed := time.Since(start)

	//** Assert
	require.NoError(t, err)
	assert.Less(t, elapsed, limit+time.Second)
	assert.Contains(t, []Status{Unknown, Feasible}, result.Status)
	if result.Status == Feasible {
		assert.True(t, AssertSolution(model, result.Assignment))
		assert.Equal(t, model.Evaluate(result.Assignment), result.Objective)
	} else {
		assert.Nil(t, result.Assignment)
	}
}

func TestNormalize(t *testing.T) {
	//** Arrange
	constraint := Constraint{
		Terms:    []Term{{1, 2}, {2, -3}, {1, 1}, {3, 0}},
		Relation: LessEqual,
		Bound:    1,
	}

	//** Act
	rows := normalize(constraint)

	//** Assert
	// 3*x1 - 3*x2 <= 1  <=>  -3*x1 + 3*x2 >= -1  <=>  3*(not x1) + 3*x2 >= 2
	require.Len(t, rows, 1)
	assert.Equal(t, []int{-1, 2}, rows[0].lits)
	assert.Equal(t, []int{3, 3}, rows[0].weights)
	assert.Equal(t, int64(2), rows[0].atLeast)

	equalities := normalize(Constraint{Terms: []Term{{1, 1}, {2, 1}}, Relation: Equal, Bound: 1})
	assert.Len(t, equalities, 2)
}

func TestMergeFragments(t *testing.T) {
	//** Arrange
	model := NewModel()
	x1 := model.AddBoolVar("x1")

	fragment := NewFragment()
	y := fragment.AddBoolVar("y")
	fragment.AddLinearConstraint([]Term{{x1, 1}, {y, -1}}, LessEqual, 0, "x1 implies y")
	fragment.AddObjective([]Term{{y, 4}}, -1)

	//** Act
	model.Merge(fragment)

	//** Assert
	assert.Equal(t, 2, model.Variables())
	assert.Equal(t, "y", model.Name(2))
	require.Len(t, model.Constraints, 1)
	assert.Equal(t, []Term{{1, 1}, {2, -1}}, model.Constraints[0].Terms)
	assert.Equal(t, []Term{{2, 4}}, model.Objective)
	assert.Equal(t, int64(-1), model.Offset)
}

func TestObjectiveRange(t *testing.T) {
	model := NewModel()
	x1, x2 := model.AddBoolVar("x1"), model.AddBoolVar("x2")
	model.SetObjective([]Term{{x1, -2}, {x2, 5}}, 1)

	low, high, err := model.ObjectiveRange()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), low)
	assert.Equal(t, int64(6), high)

	model.AddObjective([]Term{{x2, math.MaxInt64}}, 0)
	_, _, err = model.ObjectiveRange()
	assert.Error(t, err)
}

func TestToOPB(t *testing.T) {
	model := NewModel()
	x1, x2 := model.AddBoolVar("x1"), model.AddBoolVar("x2")
	model.AddLinearConstraint(Ones([]Var{x1, x2}), LessEqual, 1, "")
	model.AddLinearConstraint([]Term{{x1, 2}}, Equal, 2, "")
	model.SetObjective([]Term{{x2, -3}}, 0)

	opb := model.ToOPB()

	lines := strings.Split(strings.TrimSpace(opb), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "* #variable= 2 #constraint= 2", lines[0])
	assert.Equal(t, "min: -3 x2 ;", lines[1])
	assert.Equal(t, "-1 x1 -1 x2 >= -1 ;", lines[2])
	assert.Equal(t, "+2 x1 = 2 ;", lines[3])
}

func TestParseOPBOutput(t *testing.T) {
	t.Run("Optimum", func(t *testing.T) {
		output := "c comment\no 5\no 3\ns OPTIMUM FOUND\nv x1 -x2 x3\n"

		result, err := parseOPBOutput(output, 3)

		require.NoError(t, err)
		assert.Equal(t, Optimal, result.Status)
		assert.Equal(t, []bool{true, false, true}, result.Assignment)
		assert.Equal(t, int64(3), result.Objective)
	})

	t.Run("Unsatisfiable", func(t *testing.T) {
		result, err := parseOPBOutput("s UNSATISFIABLE\n", 3)

		require.NoError(t, err)
		assert.Equal(t, Infeasible, result.Status)
		assert.Nil(t, result.Assignment)
	})

	t.Run("Interrupted with values", func(t *testing.T) {
		result, err := parseOPBOutput("o 9\nv -x1 x2\n", 2)

		require.NoError(t, err)
		assert.Equal(t, Feasible, result.Status)
		assert.Equal(t, []bool{false, true}, result.Assignment)
	})

	t.Run("Interrupted without values", func(t *testing.T) {
		result, err := parseOPBOutput("c timeout\n", 2)

		require.NoError(t, err)
		assert.Equal(t, Unknown, result.Status)
	})

	t.Run("Malformed literal", func(t *testing.T) {
		_, err := parseOPBOutput("s SATISFIABLE\nv x1 -xa\n", 2)
		assert.Error(t, err)
	})
}

func TestOPBArguments(t *testing.T) {
	solver := &opbSolver{path: "roundingsat", args: []string{"--timeout={timelimit}", "--threads={workers}"}}

	args := solver.arguments("/tmp/model.opb", Params{TimeLimit: 1500 * time.Millisecond, Workers: 4})

	assert.Equal(t, []string{"--timeout=2", "--threads=4", "/tmp/model.opb"}, args)

	solver.args = []string{"-f", "{file}"}
	assert.Equal(t, []string{"-f", "/tmp/model.opb"}, solver.arguments("/tmp/model.opb", Params{}))
}

func TestRelaxationBound(t *testing.T) {
	t.Run("Bound below integral optimum", func(t *testing.T) {
		model := NewModel()
		x1, x2, x3 := model.AddBoolVar("x1"), model.AddBoolVar("x2"), model.AddBoolVar("x3")
		model.AddLinearConstraint(Ones([]Var{x1, x2, x3}), GreaterEqual, 2, "")
		model.SetObjective([]Term{{x1, 1}, {x2, 2}, {x3, 3}}, 0)

		relaxed := relax(model)

		require.True(t, relaxed.ok)
		assert.False(t, relaxed.infeasible)
		assert.Equal(t, int64(3), relaxed.bound)
	})

	t.Run("Infeasible relaxation", func(t *testing.T) {
		model := NewModel()
		x1, x2 := model.AddBoolVar("x1"), model.AddBoolVar("x2")
		model.AddLinearConstraint(Ones([]Var{x1, x2}), Equal, 3, "")

		relaxed := relax(model)

		assert.True(t, relaxed.ok)
		assert.True(t, relaxed.infeasible)
	})
}

// generateModel builds a random model of clauses and cardinality rows with a random objective
func generateModel(variables, constraints int) *Model {
	model := NewModel()
	vars := make([]Var, variables)
	for i := range variables {
		vars[i] = model.AddBoolVar("")
	}

	for range constraints {
		terms := make([]Term, 0, variables)
		for _, variable := range vars {
			if rand.Float32() < 0.4 {
				terms = append(terms, Term{Var: variable, Coeff: int64(rand.IntN(3) + 1)})
			}
		}
		if len(terms) == 0 {
			terms = append(terms, Term{Var: vars[rand.IntN(variables)], Coeff: 1})
		}
		relation := []Relation{LessEqual, Equal, GreaterEqual}[rand.IntN(3)]
		model.AddLinearConstraint(terms, relation, int64(rand.IntN(len(terms)+1)), "")
	}

	objective := make([]Term, 0, variables)
	for _, variable := range vars {
		objective = append(objective, Term{Var: variable, Coeff: int64(rand.IntN(11) - 5)})
	}
	model.SetObjective(objective, 0)
	return model
}
