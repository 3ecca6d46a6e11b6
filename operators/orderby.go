package operators

import (
	"sort"

	"github.com/intellect4all/reldb/common"
)

// OrderBy materializes its child's entire output and yields it sorted by
// one field, ascending or descending. Like Aggregate, it must see every
// input tuple before it can produce its first output.
type OrderBy struct {
	unary
	fieldIndex int
	desc       bool
	rows       []*common.Tuple
	pos        int
}

// NewOrderBy returns an ArgumentError if fieldName does not exist on
// child's schema.
func NewOrderBy(fieldName string, descending bool, child Operator) (*OrderBy, error) {
	idx, err := child.TupleDesc().FieldIndex(fieldName)
	if err != nil {
		return nil, err
	}
	return &OrderBy{unary: unary{child: child}, fieldIndex: idx, desc: descending}, nil
}

func (o *OrderBy) TupleDesc() *common.TupleDesc { return o.child.TupleDesc() }

func (o *OrderBy) Open() error {
	if err := o.child.Open(); err != nil {
		return err
	}
	o.rows = nil
	for {
		ok, err := o.child.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		t, err := o.child.Next()
		if err != nil {
			return err
		}
		o.rows = append(o.rows, t)
	}
	var sortErr error
	sort.SliceStable(o.rows, func(i, j int) bool {
		a, _ := o.rows[i].GetField(o.fieldIndex)
		b, _ := o.rows[j].GetField(o.fieldIndex)
		if o.desc {
			a, b = b, a
		}
		lt, err := a.Compare(common.LessThan, b)
		if err != nil {
			sortErr = err
		}
		return lt
	})
	o.pos = 0
	return sortErr
}

func (o *OrderBy) HasNext() (bool, error) { return o.pos < len(o.rows), nil }

func (o *OrderBy) Next() (*common.Tuple, error) {
	if o.pos >= len(o.rows) {
		return nil, common.NewDbError("OrderBy.Next", common.NewArgumentError("no more tuples"))
	}
	t := o.rows[o.pos]
	o.pos++
	return t, nil
}

func (o *OrderBy) Rewind() error {
	o.pos = 0
	return nil
}

func (o *OrderBy) Close() error { return o.child.Close() }
