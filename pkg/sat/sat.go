package sat

import (
	"fmt"
	"math"
	"strings"
)

// Var identifies a boolean decision variable. Model variables are numbered from 1; negative values are
// placeholders local to a Fragment and are renumbered when the fragment is merged
type Var int

type Relation int

const (
	LessEqual Relation = iota
	Equal
	GreaterEqual
)

func (relation Relation) String() string {
	switch relation {
	case LessEqual:
		return "<="
	case Equal:
		return "="
	case GreaterEqual:
		return ">="
	}
	return "?"
}

type Term struct {
	Var   Var
	Coeff int64
}

// Constraint is the linear (in)equality sum(Terms) Relation Bound
type Constraint struct {
	Terms    []Term
	Relation Relation
	Bound    int64
	Label    string
}

// Model is a pseudo-boolean optimization instance: boolean variables, linear constraints over them and a linear
// objective to minimize
type Model struct {
	names       []string
	Constraints []Constraint
	Objective   []Term
	Offset      int64
}

func NewModel() *Model {
	return &Model{}
}

func (model *Model) AddBoolVar(name string) Var {
	model.names = append(model.names, name)
	return Var(len(model.names))
}

func (model *Model) AddLinearConstraint(terms []Term, relation Relation, bound int64, label string) {
	model.Constraints = append(model.Constraints, Constraint{Terms: terms, Relation: relation, Bound: bound, Label: label})
}

func (model *Model) SetObjective(terms []Term, offset int64) {
	model.Objective = terms
	model.Offset = offset
}

func (model *Model) AddObjective(terms []Term, offset int64) {
	model.Objective = append(model.Objective, terms...)
	model.Offset += offset
}

func (model *Model) Variables() int {
	return len(model.names)
}

func (model *Model) Name(variable Var) string {
	if variable < 1 || int(variable) > len(model.names) {
		return fmt.Sprintf("x%d", variable)
	}
	return model.names[variable-1]
}

// Merge appends the fragment's variables, constraints and objective terms, renumbering its local variables
func (model *Model) Merge(fragment *Fragment) {
	base := len(model.names)
	model.names = append(model.names, fragment.names...)

	remap := func(terms []Term) []Term {
		mapped := make([]Term, len(terms))
		for i, term := range terms {
			mapped[i] = term
			if term.Var < 0 {
				mapped[i].Var = Var(base) - term.Var
			}
		}
		return mapped
	}

	for _, constraint := range fragment.constraints {
		constraint.Terms = remap(constraint.Terms)
		model.Constraints = append(model.Constraints, constraint)
	}
	model.AddObjective(remap(fragment.objective), fragment.offset)
}

// ObjectiveRange returns the smallest and largest values the objective can take, failing if either overflows int64
func (model *Model) ObjectiveRange() (low, high int64, err error) {
	low, high = model.Offset, model.Offset
	for _, term := range model.Objective {
		var ok bool
		if term.Coeff < 0 {
			low, ok = checkedAdd(low, term.Coeff)
		} else {
			high, ok = checkedAdd(high, term.Coeff)
		}
		if !ok {
			return 0, 0, fmt.Errorf("objective overflows int64 at variable %v (coefficient %d)", model.Name(term.Var), term.Coeff)
		}
	}
	return low, high, nil
}

// Evaluate returns the objective value of an assignment
func (model *Model) Evaluate(assignment []bool) int64 {
	value := model.Offset
	for _, term := range model.Objective {
		if valueOf(assignment, term.Var) {
			value += term.Coeff
		}
	}
	return value
}

// ToOPB serializes the model in the OPB format read by pseudo-boolean solvers
func (model *Model) ToOPB() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "* #variable= %d #constraint= %d\n", model.Variables(), len(model.Constraints))

	if len(model.Objective) > 0 {
		builder.WriteString("min:")
		for _, term := range model.Objective {
			fmt.Fprintf(&builder, " %+d x%d", term.Coeff, term.Var)
		}
		builder.WriteString(" ;\n")
	}

	for _, constraint := range model.Constraints {
		// OPB has no "<=", so those rows are negated
		sign, relation, bound := int64(1), constraint.Relation, constraint.Bound
		if relation == LessEqual {
			sign, relation, bound = -1, GreaterEqual, -bound
		}
		for _, term := range constraint.Terms {
			fmt.Fprintf(&builder, "%+d x%d ", sign*term.Coeff, term.Var)
		}
		fmt.Fprintf(&builder, "%v %d ;\n", relation, bound)
	}
	return builder.String()
}

// Fragment collects variables and constraints independently of any Model, so several can be filled concurrently
type Fragment struct {
	names       []string
	constraints []Constraint
	objective   []Term
	offset      int64
}

func NewFragment() *Fragment {
	return &Fragment{}
}

func (fragment *Fragment) AddBoolVar(name string) Var {
	fragment.names = append(fragment.names, name)
	return -Var(len(fragment.names))
}

func (fragment *Fragment) AddLinearConstraint(terms []Term, relation Relation, bound int64, label string) {
	fragment.constraints = append(fragment.constraints, Constraint{Terms: terms, Relation: relation, Bound: bound, Label: label})
}

func (fragment *Fragment) AddObjective(terms []Term, offset int64) {
	fragment.objective = append(fragment.objective, terms...)
	fragment.offset += offset
}

func (fragment *Fragment) Constraints() int {
	return len(fragment.constraints)
}

// Ones builds unit-coefficient terms over the given variables
func Ones(variables []Var) []Term {
	terms := make([]Term, len(variables))
	for i, variable := range variables {
		terms[i] = Term{Var: variable, Coeff: 1}
	}
	return terms
}

func checkedAdd(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}

func valueOf(assignment []bool, variable Var) bool {
	index := int(variable) - 1
	return index >= 0 && index < len(assignment) && assignment[index]
}
