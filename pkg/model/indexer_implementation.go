package model

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/limaJavier/labscheduling/pkg/sat"
	"github.com/samber/lo"
)

type indexerImplementation struct {
	keys          []AssignmentKey // keys[v-1] is the assignment of variable v
	variables     map[AssignmentKey]sat.Var
	byClass       map[uint64][]sat.Var
	byClassWeek   map[[2]uint64][]sat.Var
	byTrainerSlot map[TrainerSlot][]sat.Var
	byClassLab    map[[2]uint64][]sat.Var
	buckets       []TrainerSlot
}

func newIndexerImplementation() *indexerImplementation {
	return &indexerImplementation{
		variables:     make(map[AssignmentKey]sat.Var),
		byClass:       make(map[uint64][]sat.Var),
		byClassWeek:   make(map[[2]uint64][]sat.Var),
		byTrainerSlot: make(map[TrainerSlot][]sat.Var),
		byClassLab:    make(map[[2]uint64][]sat.Var),
	}
}

// add registers the next variable; variables must be added in creation order
func (indexer *indexerImplementation) add(variable sat.Var, key AssignmentKey) {
	if int(variable) != len(indexer.keys)+1 {
		panic(fmt.Sprintf("variable %d added out of order", variable))
	}
	indexer.keys = append(indexer.keys, key)
	indexer.variables[key] = variable

	bucket := TrainerSlot{Trainer: key.Trainer, SlotKey: key.SlotKey}
	indexer.byClass[key.Class] = append(indexer.byClass[key.Class], variable)
	indexer.byClassWeek[[2]uint64{key.Class, key.Week}] = append(indexer.byClassWeek[[2]uint64{key.Class, key.Week}], variable)
	indexer.byTrainerSlot[bucket] = append(indexer.byTrainerSlot[bucket], variable)
	indexer.byClassLab[[2]uint64{key.Class, key.Lab}] = append(indexer.byClassLab[[2]uint64{key.Class, key.Lab}], variable)
}

func (indexer *indexerImplementation) seal() {
	indexer.buckets = lo.Keys(indexer.byTrainerSlot)
	slices.SortFunc(indexer.buckets, func(a, b TrainerSlot) int {
		if a.Trainer != b.Trainer {
			return cmp.Compare(a.Trainer, b.Trainer)
		}
		return a.SlotKey.compare(b.SlotKey)
	})
}

func (indexer *indexerImplementation) Index(key AssignmentKey) (sat.Var, bool) {
	variable, ok := indexer.variables[key]
	return variable, ok
}

func (indexer *indexerImplementation) Attributes(variable sat.Var) AssignmentKey {
	return indexer.keys[variable-1]
}

func (indexer *indexerImplementation) Variables() int {
	return len(indexer.keys)
}

func (indexer *indexerImplementation) ByClass(class uint64) []sat.Var {
	return indexer.byClass[class]
}

func (indexer *indexerImplementation) ByClassWeek(class, week uint64) []sat.Var {
	return indexer.byClassWeek[[2]uint64{class, week}]
}

func (indexer *indexerImplementation) ByTrainerSlot(bucket TrainerSlot) []sat.Var {
	return indexer.byTrainerSlot[bucket]
}

func (indexer *indexerImplementation) ByClassLab(class, lab uint64) []sat.Var {
	return indexer.byClassLab[[2]uint64{class, lab}]
}

func (indexer *indexerImplementation) Buckets() []TrainerSlot {
	return indexer.buckets
}

func (key AssignmentKey) String() string {
	return fmt.Sprintf("c%d_l%d_t%d_w%d_d%d_s%d", key.Class, key.Lab, key.Trainer, key.Week, key.Day, key.Slot)
}
