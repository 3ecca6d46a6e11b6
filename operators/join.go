package operators

import "github.com/intellect4all/reldb/common"

// JoinPredicate compares a field of the left child's tuple against a
// field of the right child's tuple.
type JoinPredicate struct {
	LeftField  int
	Op         common.Op
	RightField int
}

func (p JoinPredicate) Matches(left, right *common.Tuple) (bool, error) {
	lf, err := left.GetField(p.LeftField)
	if err != nil {
		return false, err
	}
	rf, err := right.GetField(p.RightField)
	if err != nil {
		return false, err
	}
	return lf.Compare(p.Op, rf)
}

// Join is a simple nested-loop join: for each left tuple, the entire
// right child is rewound and scanned for matches.
type Join struct {
	binary
	pred JoinPredicate
	desc *common.TupleDesc

	curLeft  *common.Tuple
	buffered *common.Tuple
}

func NewJoin(pred JoinPredicate, left, right Operator) *Join {
	return &Join{
		binary: binary{left: left, right: right},
		pred:   pred,
		desc:   common.Merge(left.TupleDesc(), right.TupleDesc()),
	}
}

func (j *Join) TupleDesc() *common.TupleDesc { return j.desc }

func (j *Join) Open() error {
	if err := j.left.Open(); err != nil {
		return err
	}
	return j.right.Open()
}

func (j *Join) Close() error {
	if err := j.left.Close(); err != nil {
		return err
	}
	return j.right.Close()
}

func (j *Join) Rewind() error {
	j.curLeft = nil
	j.buffered = nil
	if err := j.left.Rewind(); err != nil {
		return err
	}
	return j.right.Rewind()
}

func combine(left, right *common.Tuple, desc *common.TupleDesc) *common.Tuple {
	out := common.NewTuple(desc)
	for i, f := range left.Fields {
		_ = out.SetField(i, f)
	}
	for i, f := range right.Fields {
		_ = out.SetField(len(left.Fields)+i, f)
	}
	return out
}

func (j *Join) HasNext() (bool, error) {
	if j.buffered != nil {
		return true, nil
	}
	for {
		if j.curLeft == nil {
			ok, err := j.left.HasNext()
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
			t, err := j.left.Next()
			if err != nil {
				return false, err
			}
			j.curLeft = t
			if err := j.right.Rewind(); err != nil {
				return false, err
			}
		}

		ok, err := j.right.HasNext()
		if err != nil {
			return false, err
		}
		if !ok {
			j.curLeft = nil
			continue
		}
		rt, err := j.right.Next()
		if err != nil {
			return false, err
		}
		match, err := j.pred.Matches(j.curLeft, rt)
		if err != nil {
			return false, err
		}
		if match {
			j.buffered = combine(j.curLeft, rt, j.desc)
			return true, nil
		}
	}
}

func (j *Join) Next() (*common.Tuple, error) {
	if j.buffered == nil {
		ok, err := j.HasNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, common.NewDbError("Join.Next", common.NewArgumentError("no more tuples"))
		}
	}
	t := j.buffered
	j.buffered = nil
	return t, nil
}
