package storage

import (
	"github.com/intellect4all/reldb/common"
)

// btreeIterator walks the leaf level left-to-right or right-to-left,
// optionally filtered to tuples whose key satisfies predOp against pivot
// (used by IndexScan to avoid a full leaf-chain walk when the predicate
// names an equality or range bound). Grounded on the teacher's
// btree/iterator.go sibling-chain walk, generalized to both directions and
// to an optional bound instead of always scanning the whole chain. A
// bound that closes off the traversal direction (e.g. LessThan scanning
// forward) also stops the walk as soon as the bound is crossed, rather
// than visiting every remaining leaf only to filter its tuples out.
type btreeIterator struct {
	bf      *BTreeFile
	tid     common.TransactionID
	reverse bool
	predOp  *common.Op
	pivot   common.Field

	opened  bool
	tuples  []*common.Tuple
	idx     int
	leaf    common.PageID
	done    bool
}

func (it *btreeIterator) Open() error {
	it.opened = true
	it.done = false
	dp := newDirtyPages()
	rp, err := it.bf.getPage(it.tid, dp, rootPtrPid(it.bf.tableID), ReadOnly)
	if err != nil {
		return err
	}
	root := rp.(*BTreeRootPtrPage)

	startKey := it.startKey()
	var leaf *BTreeLeafPage
	if it.reverse {
		leaf, err = it.bf.findLeafPageReverse(it.tid, dp, root.RootID(), ReadOnly, startKey)
	} else {
		leaf, err = it.bf.findLeafPage(it.tid, dp, root.RootID(), ReadOnly, startKey)
	}
	if err != nil {
		return err
	}
	it.loadLeaf(leaf)
	return nil
}

// startKey picks the leaf to descend to given the bound, if any: an
// equality or lower-bound predicate can jump straight to the relevant
// leaf; an upper-bound-only predicate still has to start at an end.
func (it *btreeIterator) startKey() common.Field {
	if it.predOp == nil {
		return nil
	}
	switch *it.predOp {
	case common.Equals, common.GreaterThanOrEq, common.GreaterThan:
		if !it.reverse {
			return it.pivot
		}
	case common.LessThanOrEq, common.LessThan:
		if it.reverse {
			return it.pivot
		}
	}
	return nil
}

func (it *btreeIterator) loadLeaf(leaf *BTreeLeafPage) {
	it.leaf = leaf.pid
	ts := leaf.Tuples()
	if it.reverse {
		reversed := make([]*common.Tuple, len(ts))
		for i, t := range ts {
			reversed[len(ts)-1-i] = t
		}
		ts = reversed
	}
	it.tuples = ts
	it.idx = 0
}

func (it *btreeIterator) inBounds(t *common.Tuple) bool {
	if it.predOp == nil {
		return true
	}
	key := keyOf(t, it.bf.keyField)
	ok, _ := key.Compare(*it.predOp, it.pivot)
	return ok
}

// exceededBound reports whether t's key has moved, in the traversal
// direction, strictly past every position where inBounds could still hold
// for a later tuple — so the scan can stop instead of walking the rest of
// the leaf chain. Only defined for the bound shapes where that holds
// regardless of where within the starting leaf the scan happened to land
// (an equality or directed-start bound may still see a few out-of-bounds
// keys before reaching the pivot's own run, so "currently out of bounds"
// alone isn't enough — only "now on the far side of pivot" is).
func (it *btreeIterator) exceededBound(t *common.Tuple) bool {
	if it.predOp == nil {
		return false
	}
	key := keyOf(t, it.bf.keyField)
	if !it.reverse {
		switch *it.predOp {
		case common.LessThan, common.LessThanOrEq, common.Equals:
			ok, _ := key.Compare(common.GreaterThan, it.pivot)
			return ok
		}
		return false
	}
	switch *it.predOp {
	case common.GreaterThan, common.GreaterThanOrEq, common.Equals:
		ok, _ := key.Compare(common.LessThan, it.pivot)
		return ok
	}
	return false
}

func (it *btreeIterator) advancePastLeaf() error {
	dp := newDirtyPages()
	p, err := it.bf.getPage(it.tid, dp, it.leaf, ReadOnly)
	if err != nil {
		return err
	}
	cur := p.(*BTreeLeafPage)
	var next common.PageID
	if it.reverse {
		next = cur.LeftSibling()
	} else {
		next = cur.RightSibling()
	}
	if next == nil {
		it.done = true
		return nil
	}
	np, err := it.bf.getPage(it.tid, dp, next, ReadOnly)
	if err != nil {
		return err
	}
	it.loadLeaf(np.(*BTreeLeafPage))
	return nil
}

func (it *btreeIterator) HasNext() (bool, error) {
	if !it.opened {
		return false, common.NewDbError("btreeIterator.HasNext", common.NewArgumentError("iterator not open"))
	}
	for {
		if it.done {
			return false, nil
		}
		for it.idx < len(it.tuples) {
			t := it.tuples[it.idx]
			if it.inBounds(t) {
				return true, nil
			}
			if it.exceededBound(t) {
				it.done = true
				return false, nil
			}
			it.idx++
		}
		if err := it.advancePastLeaf(); err != nil {
			return false, err
		}
	}
}

func (it *btreeIterator) Next() (*common.Tuple, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.NewDbError("btreeIterator.Next", common.NewArgumentError("no more tuples"))
	}
	t := it.tuples[it.idx]
	it.idx++
	return t, nil
}

func (it *btreeIterator) Rewind() error {
	return it.Open()
}

func (it *btreeIterator) Close() error {
	it.opened = false
	it.tuples = nil
	return nil
}
