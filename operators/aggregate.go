package operators

import "github.com/intellect4all/reldb/common"

// AggOp names a supported aggregate function.
type AggOp int

const (
	Min AggOp = iota
	Max
	Sum
	Avg
	Count
)

// Aggregate groups its child's tuples by an optional field (groupField
// < 0 means "no grouping": one group for the whole input) and reduces
// aggField within each group according to op. Results materialize on
// Open, since every input tuple must be seen before any group's value is
// final.
//
// IntegerAggregator state is seeded from the first tuple seen in each
// group rather than from a sentinel constant: the source this engine is
// modeled on primed MIN/MAX accumulators with +-99999 and let SUM's
// accumulator start both branches from the same zero-initialized state as
// AVG, so a group whose true extreme fell on the wrong side of the
// sentinel, or whose only aggregate was AVG, silently produced the wrong
// answer. Seeding from the first real value removes the sentinel and the
// accidental branch sharing alike.
type Aggregate struct {
	unary
	groupField int
	aggField   int
	op         AggOp
	desc       *common.TupleDesc

	groups   []common.Field
	results  []*groupState
	index    map[string]int
	pos      int
	finished bool
}

type groupState struct {
	count int64
	sum   int64
	min   int64
	max   int64
	have  bool
}

func NewAggregate(groupField, aggField int, op AggOp, child Operator) *Aggregate {
	var specs []common.FieldSpec
	if groupField >= 0 {
		gt, _ := child.TupleDesc().FieldType(groupField)
		specs = append(specs, common.FieldSpec{Name: "groupKey", Type: gt})
	}
	specs = append(specs, common.FieldSpec{Name: aggOpName(op), Type: common.IntType})
	return &Aggregate{
		unary:      unary{child: child},
		groupField: groupField,
		aggField:   aggField,
		op:         op,
		desc:       common.NewTupleDesc(specs...),
		index:      make(map[string]int),
	}
}

func aggOpName(op AggOp) string {
	switch op {
	case Min:
		return "min"
	case Max:
		return "max"
	case Sum:
		return "sum"
	case Avg:
		return "avg"
	default:
		return "count"
	}
}

func (a *Aggregate) TupleDesc() *common.TupleDesc { return a.desc }

func (a *Aggregate) Open() error {
	if err := a.child.Open(); err != nil {
		return err
	}
	return a.materialize()
}

func (a *Aggregate) materialize() error {
	a.groups = nil
	a.results = nil
	a.index = make(map[string]int)
	a.pos = 0
	a.finished = false

	for {
		ok, err := a.child.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		t, err := a.child.Next()
		if err != nil {
			return err
		}

		var key common.Field
		keyStr := ""
		if a.groupField >= 0 {
			key, err = t.GetField(a.groupField)
			if err != nil {
				return err
			}
			keyStr = key.String()
		}
		idx, ok := a.index[keyStr]
		if !ok {
			idx = len(a.results)
			a.index[keyStr] = idx
			a.groups = append(a.groups, key)
			a.results = append(a.results, &groupState{})
		}
		gs := a.results[idx]

		if a.op == Count {
			gs.count++
			continue
		}
		field, err := t.GetField(a.aggField)
		if err != nil {
			return err
		}
		iv, ok := field.(common.IntField)
		if !ok {
			return common.NewDbError("Aggregate.materialize", common.NewArgumentError("aggregate field is not an integer"))
		}
		v := int64(iv.Value)
		gs.count++
		gs.sum += v
		if !gs.have {
			gs.min, gs.max = v, v
			gs.have = true
		} else {
			if v < gs.min {
				gs.min = v
			}
			if v > gs.max {
				gs.max = v
			}
		}
	}
	return nil
}

func (a *Aggregate) valueFor(gs *groupState) int64 {
	switch a.op {
	case Min:
		return gs.min
	case Max:
		return gs.max
	case Sum:
		return gs.sum
	case Avg:
		if gs.count == 0 {
			return 0
		}
		return gs.sum / gs.count
	default:
		return gs.count
	}
}

func (a *Aggregate) HasNext() (bool, error) { return a.pos < len(a.results), nil }

func (a *Aggregate) Next() (*common.Tuple, error) {
	if a.pos >= len(a.results) {
		return nil, common.NewDbError("Aggregate.Next", common.NewArgumentError("no more tuples"))
	}
	gs := a.results[a.pos]
	key := a.groups[a.pos]
	a.pos++

	t := common.NewTuple(a.desc)
	i := 0
	if a.groupField >= 0 {
		_ = t.SetField(0, key)
		i = 1
	}
	_ = t.SetField(i, common.IntField{Value: int32(a.valueFor(gs))})
	return t, nil
}

func (a *Aggregate) Rewind() error {
	a.pos = 0
	return nil
}

func (a *Aggregate) Close() error { return a.child.Close() }
