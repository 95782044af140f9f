package sat

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Relaxations whose dense standard-form matrix would exceed this many cells are skipped
const maxRelaxationCells = 250_000

const relaxationTolerance = 1e-7

type relaxation struct {
	bound      int64 // Lower bound of the integer objective (offset included)
	infeasible bool  // The relaxation has no solution, hence neither has the model
	ok         bool
}

// relax solves the linear relaxation of the model, where every variable ranges over [0, 1], with the simplex method.
// Its optimum rounded up bounds the objective of any integral assignment from below
func relax(model *Model) relaxation {
	variables := model.Variables()
	if variables == 0 {
		return relaxation{bound: model.Offset, ok: true}
	}

	rows := make([]Constraint, 0, len(model.Constraints))
	slacks := 0
	for _, constraint := range model.Constraints {
		terms := compact(constraint.Terms)
		if len(terms) == 0 {
			if !satisfied(constraint, nil) {
				return relaxation{infeasible: true, ok: true}
			}
			continue
		}
		if constraint.Relation != Equal {
			slacks++
		}
		rows = append(rows, Constraint{Terms: terms, Relation: constraint.Relation, Bound: constraint.Bound})
	}

	// Columns: variables, one slack per inequality, one slack per upper bound x <= 1
	columns := variables + slacks + variables
	height := len(rows) + variables
	if height*columns > maxRelaxationCells {
		return relaxation{}
	}

	a := mat.NewDense(height, columns, nil)
	b := make([]float64, height)
	slack := variables
	for i, row := range rows {
		for _, term := range row.Terms {
			a.Set(i, int(term.Var)-1, float64(term.Coeff))
		}
		switch row.Relation {
		case LessEqual:
			a.Set(i, slack, 1)
			slack++
		case GreaterEqual:
			a.Set(i, slack, -1)
			slack++
		}
		b[i] = float64(row.Bound)
		if b[i] < 0 {
			for j := range columns {
				a.Set(i, j, -a.At(i, j))
			}
			b[i] = -b[i]
		}
	}
	for j := range variables {
		i := len(rows) + j
		a.Set(i, j, 1)
		a.Set(i, variables+slacks+j, 1)
		b[i] = 1
	}

	c := make([]float64, columns)
	for _, term := range compact(model.Objective) {
		c[int(term.Var)-1] += float64(term.Coeff)
	}

	optimum, _, err := lp.Simplex(c, a, b, relaxationTolerance, nil)
	if errors.Is(err, lp.ErrInfeasible) {
		return relaxation{infeasible: true, ok: true}
	} else if err != nil {
		return relaxation{}
	}

	return relaxation{
		bound: model.Offset + int64(math.Ceil(optimum-1e-6)),
		ok:    true,
	}
}
