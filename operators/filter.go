package operators

import "github.com/intellect4all/reldb/common"

// Predicate is a single field-to-constant comparison a Filter applies to
// every tuple it pulls from its child.
type Predicate struct {
	FieldIndex int
	Op         common.Op
	Operand    common.Field
}

// Matches evaluates the predicate against t.
func (p Predicate) Matches(t *common.Tuple) (bool, error) {
	f, err := t.GetField(p.FieldIndex)
	if err != nil {
		return false, err
	}
	return f.Compare(p.Op, p.Operand)
}

// Filter passes through only tuples from its child that satisfy pred.
type Filter struct {
	unary
	pred     Predicate
	buffered *common.Tuple
}

func NewFilter(pred Predicate, child Operator) *Filter {
	return &Filter{unary: unary{child: child}, pred: pred}
}

func (f *Filter) TupleDesc() *common.TupleDesc { return f.child.TupleDesc() }
func (f *Filter) Open() error                  { return f.child.Open() }
func (f *Filter) Close() error                 { return f.child.Close() }
func (f *Filter) Rewind() error {
	f.buffered = nil
	return f.child.Rewind()
}

func (f *Filter) HasNext() (bool, error) {
	if f.buffered != nil {
		return true, nil
	}
	for {
		ok, err := f.child.HasNext()
		if err != nil || !ok {
			return ok, err
		}
		t, err := f.child.Next()
		if err != nil {
			return false, err
		}
		match, err := f.pred.Matches(t)
		if err != nil {
			return false, err
		}
		if match {
			f.buffered = t
			return true, nil
		}
	}
}

func (f *Filter) Next() (*common.Tuple, error) {
	if f.buffered == nil {
		ok, err := f.HasNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, common.NewDbError("Filter.Next", common.NewArgumentError("no more tuples"))
		}
	}
	t := f.buffered
	f.buffered = nil
	return t, nil
}
