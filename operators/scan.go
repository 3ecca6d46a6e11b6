package operators

import (
	"fmt"

	"github.com/intellect4all/reldb/common"
	"github.com/intellect4all/reldb/storage"
)

// SeqScan reads every tuple of a DBFile in storage order, optionally
// renaming its TupleDesc's fields under an alias (e.g. "e" for "employee
// e") so a join downstream can disambiguate two scans of the same table.
type SeqScan struct {
	leaf
	tid   common.TransactionID
	file  storage.DBFile
	alias string
	desc  *common.TupleDesc
	it    storage.TupleIterator
}

func NewSeqScan(tid common.TransactionID, file storage.DBFile, alias string) *SeqScan {
	return &SeqScan{tid: tid, file: file, alias: alias, desc: aliasDesc(file.TupleDesc(), alias)}
}

func aliasDesc(desc *common.TupleDesc, alias string) *common.TupleDesc {
	if alias == "" {
		return desc
	}
	specs := make([]common.FieldSpec, desc.NumFields())
	for i := 0; i < desc.NumFields(); i++ {
		specs[i] = common.FieldSpec{Name: fmt.Sprintf("%s.%s", alias, desc.Fields[i].Name), Type: desc.Fields[i].Type}
	}
	return common.NewTupleDesc(specs...)
}

func (s *SeqScan) TupleDesc() *common.TupleDesc { return s.desc }

func (s *SeqScan) Open() error {
	it, err := s.file.Iterator(s.tid)
	if err != nil {
		return err
	}
	s.it = it
	return s.it.Open()
}

func (s *SeqScan) HasNext() (bool, error) { return s.it.HasNext() }
func (s *SeqScan) Next() (*common.Tuple, error) { return s.it.Next() }
func (s *SeqScan) Rewind() error                { return s.it.Rewind() }
func (s *SeqScan) Close() error                 { return s.it.Close() }

// IndexScan reads tuples from a BTreeFile in key order, forward or
// reverse, optionally bounded to keys satisfying op against pivot.
type IndexScan struct {
	leaf
	tid     common.TransactionID
	file    *storage.BTreeFile
	alias   string
	desc    *common.TupleDesc
	reverse bool
	op      *common.Op
	pivot   common.Field
	it      storage.TupleIterator
}

func NewIndexScan(tid common.TransactionID, file *storage.BTreeFile, alias string, reverse bool, op *common.Op, pivot common.Field) *IndexScan {
	return &IndexScan{
		tid: tid, file: file, alias: alias,
		desc: aliasDesc(file.TupleDesc(), alias),
		reverse: reverse, op: op, pivot: pivot,
	}
}

func (s *IndexScan) TupleDesc() *common.TupleDesc { return s.desc }

func (s *IndexScan) Open() error {
	it, err := s.file.OrderedIterator(s.tid, s.reverse, s.op, s.pivot)
	if err != nil {
		return err
	}
	s.it = it
	return s.it.Open()
}

func (s *IndexScan) HasNext() (bool, error)       { return s.it.HasNext() }
func (s *IndexScan) Next() (*common.Tuple, error) { return s.it.Next() }
func (s *IndexScan) Rewind() error                { return s.it.Rewind() }
func (s *IndexScan) Close() error                 { return s.it.Close() }
