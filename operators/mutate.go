package operators

import (
	"github.com/intellect4all/reldb/bufferpool"
	"github.com/intellect4all/reldb/common"
)

var countDesc = common.NewTupleDesc(common.FieldSpec{Name: "count", Type: common.IntType})

// Insert drains its child, inserting every tuple into tableID via pool,
// then yields exactly one tuple holding the number of rows inserted.
type Insert struct {
	unary
	tid     common.TransactionID
	pool    *bufferpool.BufferPool
	tableID uint32
	done    bool
	emitted bool
	count   int64
}

func NewInsert(tid common.TransactionID, pool *bufferpool.BufferPool, tableID uint32, child Operator) *Insert {
	return &Insert{unary: unary{child: child}, tid: tid, pool: pool, tableID: tableID}
}

func (ins *Insert) TupleDesc() *common.TupleDesc { return countDesc }
func (ins *Insert) Open() error                  { return ins.child.Open() }
func (ins *Insert) Close() error                 { return ins.child.Close() }

func (ins *Insert) Rewind() error {
	ins.done = false
	ins.emitted = false
	ins.count = 0
	return ins.child.Rewind()
}

func (ins *Insert) HasNext() (bool, error) {
	if ins.emitted {
		return false, nil
	}
	if !ins.done {
		for {
			ok, err := ins.child.HasNext()
			if err != nil {
				return false, err
			}
			if !ok {
				break
			}
			t, err := ins.child.Next()
			if err != nil {
				return false, err
			}
			if _, err := ins.pool.InsertTuple(ins.tid, ins.tableID, t); err != nil {
				return false, err
			}
			ins.count++
		}
		ins.done = true
	}
	return true, nil
}

func (ins *Insert) Next() (*common.Tuple, error) {
	if !ins.done {
		if _, err := ins.HasNext(); err != nil {
			return nil, err
		}
	}
	if ins.emitted {
		return nil, common.NewDbError("Insert.Next", common.NewArgumentError("no more tuples"))
	}
	ins.emitted = true
	t := common.NewTuple(countDesc)
	_ = t.SetField(0, common.IntField{Value: int32(ins.count)})
	return t, nil
}

// Delete mirrors Insert: it drains its child, deleting every tuple it
// pulls (each carries the RecordID that names its physical slot), and
// yields one tuple holding the number of rows deleted.
type Delete struct {
	unary
	tid     common.TransactionID
	pool    *bufferpool.BufferPool
	tableID uint32
	done    bool
	emitted bool
	count   int64
}

func NewDelete(tid common.TransactionID, pool *bufferpool.BufferPool, tableID uint32, child Operator) *Delete {
	return &Delete{unary: unary{child: child}, tid: tid, pool: pool, tableID: tableID}
}

func (d *Delete) TupleDesc() *common.TupleDesc { return countDesc }
func (d *Delete) Open() error                  { return d.child.Open() }
func (d *Delete) Close() error                 { return d.child.Close() }

func (d *Delete) Rewind() error {
	d.done = false
	d.emitted = false
	d.count = 0
	return d.child.Rewind()
}

func (d *Delete) HasNext() (bool, error) {
	if d.emitted {
		return false, nil
	}
	if !d.done {
		for {
			ok, err := d.child.HasNext()
			if err != nil {
				return false, err
			}
			if !ok {
				break
			}
			t, err := d.child.Next()
			if err != nil {
				return false, err
			}
			if _, err := d.pool.DeleteTuple(d.tid, d.tableID, t); err != nil {
				return false, err
			}
			d.count++
		}
		d.done = true
	}
	return true, nil
}

func (d *Delete) Next() (*common.Tuple, error) {
	if !d.done {
		if _, err := d.HasNext(); err != nil {
			return nil, err
		}
	}
	if d.emitted {
		return nil, common.NewDbError("Delete.Next", common.NewArgumentError("no more tuples"))
	}
	d.emitted = true
	t := common.NewTuple(countDesc)
	_ = t.SetField(0, common.IntField{Value: int32(d.count)})
	return t, nil
}
