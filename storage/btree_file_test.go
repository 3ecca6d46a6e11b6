package storage

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/intellect4all/reldb/common"
)

func intKeyDesc() *common.TupleDesc {
	return common.NewTupleDesc(common.FieldSpec{Name: "key", Type: common.IntType})
}

func newTestBTree(t *testing.T, pageSize int) (*BTreeFile, *directPool) {
	t.Helper()
	fs := afero.NewMemMapFs()
	bf, err := NewBTreeFile(fs, "/index.db", intKeyDesc(), 0, pageSize, nil)
	require.NoError(t, err)
	pool := newDirectPool(bf)
	bf.pool = pool
	return bf, pool
}

func insertKeyTuple(t *testing.T, bf *BTreeFile, pool *directPool, tid common.TransactionID, key int32) *common.Tuple {
	t.Helper()
	tup := common.NewTuple(intKeyDesc())
	require.NoError(t, tup.SetField(0, common.IntField{Value: key}))
	pages, err := bf.InsertTuple(tid, tup)
	require.NoError(t, err)
	pool.absorb(pages)
	return tup
}

func collectKeys(t *testing.T, bf *BTreeFile, tid common.TransactionID) []int32 {
	t.Helper()
	it, err := bf.Iterator(tid)
	require.NoError(t, err)
	require.NoError(t, it.Open())
	defer it.Close()

	var out []int32
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		tup, err := it.Next()
		require.NoError(t, err)
		f, err := tup.GetField(0)
		require.NoError(t, err)
		out = append(out, f.(common.IntField).Value)
	}
	return out
}

func tupleKeys(ts []*common.Tuple) []int32 {
	out := make([]int32, len(ts))
	for i, tup := range ts {
		f, _ := tup.GetField(0)
		out[i] = f.(common.IntField).Value
	}
	return out
}

func fetchRootPtr(t *testing.T, pool *directPool, bf *BTreeFile) *BTreeRootPtrPage {
	t.Helper()
	p, ok := pool.pages[rootPtrPid(bf.ID()).String()]
	require.True(t, ok, "root pointer page not in pool")
	return p.(*BTreeRootPtrPage)
}

// assertMinOccupancy walks every non-root page reachable from pid and
// checks it meets its minimum occupancy floor.
func assertMinOccupancy(t *testing.T, bf *BTreeFile, pool *directPool, pid common.PageID) {
	t.Helper()
	p, ok := pool.pages[pid.String()]
	require.True(t, ok, "page %v not in pool", pid)

	switch pg := p.(type) {
	case *BTreeLeafPage:
		if pg.Parent() != nil {
			require.GreaterOrEqual(t, pg.NumEntries(), bf.minOccupancy(pg.MaxEntries()))
		}
	case *BTreeInternalPage:
		if pg.Parent() != nil {
			require.GreaterOrEqual(t, pg.NumEntries(), bf.minInternalKeys(pg.MaxEntries()))
		}
		for _, c := range pg.Children() {
			assertMinOccupancy(t, bf, pool, c)
		}
	default:
		t.Fatalf("unexpected page type %T at %v", p, pid)
	}
}

// internalDepth counts internal-page hops from pid down the leftmost
// child chain to the first leaf.
func internalDepth(t *testing.T, pool *directPool, pid common.PageID) int {
	t.Helper()
	depth := 0
	for {
		p, ok := pool.pages[pid.String()]
		require.True(t, ok, "page %v not in pool", pid)
		switch pg := p.(type) {
		case *BTreeInternalPage:
			depth++
			pid = pg.Children()[0]
		case *BTreeLeafPage:
			return depth
		default:
			t.Fatalf("unexpected page type %T at %v", p, pid)
		}
	}
}

// TestBTreeLeafSplitPromotesMiddleKey covers the leaf-split scenario: a
// root leaf at capacity 3 holding {10, 20, 30} splits on an insert of 25
// into left={10,20}, right={25,30}, with 25 promoted to a new root.
func TestBTreeLeafSplitPromotesMiddleKey(t *testing.T) {
	// pageSize=40 with a single int key field gives leafCapacity=3.
	bf, pool := newTestBTree(t, 40)
	tid := common.NewTransactionID()

	for _, k := range []int32{10, 20, 30} {
		insertKeyTuple(t, bf, pool, tid, k)
	}

	root := fetchRootPtr(t, pool, bf)
	beforePid := root.RootID().(common.BTreePageID)
	require.Equal(t, common.Leaf, beforePid.Category, "root should still be a single leaf before the split")

	insertKeyTuple(t, bf, pool, tid, 25)

	root = fetchRootPtr(t, pool, bf)
	rootPid := root.RootID().(common.BTreePageID)
	require.Equal(t, common.Internal, rootPid.Category, "insert past capacity should split the leaf and grow a new root")

	internal := pool.pages[rootPid.String()].(*BTreeInternalPage)
	require.Equal(t, 1, internal.NumEntries())
	require.Equal(t, common.IntField{Value: 25}, internal.Keys()[0])
	require.Len(t, internal.Children(), 2)

	left := pool.pages[internal.Children()[0].String()].(*BTreeLeafPage)
	right := pool.pages[internal.Children()[1].String()].(*BTreeLeafPage)
	require.Equal(t, []int32{10, 20}, tupleKeys(left.Tuples()))
	require.Equal(t, []int32{25, 30}, tupleKeys(right.Tuples()))

	require.Equal(t, []int32{10, 20, 25, 30}, collectKeys(t, bf, tid))
}

// TestBTreeInternalSplitAndMergeAcrossManyKeys covers both the
// internal-split/new-root scenario (loading 1..1024 into a fresh tree
// forces multiple internal levels) and, continuing from that tree, the
// leaf-merge scenario (deleting 513..1024 preserves minimum occupancy and
// leaves forward iteration at 1..512).
func TestBTreeInternalSplitAndMergeAcrossManyKeys(t *testing.T) {
	// pageSize=100 gives leafCapacity=10 and internalCapacity=6 (7
	// children per internal page). Ascending inserts leave every split-off
	// left page half full, so 1024 keys fill about 200 leaves and force 4
	// internal levels (root + three below it) — unlike
	// pageSize=4096, where that many keys barely fill the leaf level
	// under a single internal root.
	bf, pool := newTestBTree(t, 100)
	tid := common.NewTransactionID()

	byKey := make(map[int32]*common.Tuple, 1024)
	for k := int32(1); k <= 1024; k++ {
		byKey[k] = insertKeyTuple(t, bf, pool, tid, k)
	}

	root := fetchRootPtr(t, pool, bf)
	require.GreaterOrEqual(t, internalDepth(t, pool, root.RootID()), 2,
		"1024 keys at this page size should build at least two internal levels")

	want := make([]int32, 1024)
	for i := range want {
		want[i] = int32(i + 1)
	}
	require.Equal(t, want, collectKeys(t, bf, tid))
	assertMinOccupancy(t, bf, pool, root.RootID())

	for k := int32(513); k <= 1024; k++ {
		pages, err := bf.DeleteTuple(tid, byKey[k])
		require.NoError(t, err)
		pool.absorb(pages)

		root = fetchRootPtr(t, pool, bf)
		assertMinOccupancy(t, bf, pool, root.RootID())
	}

	wantRemaining := make([]int32, 512)
	for i := range wantRemaining {
		wantRemaining[i] = int32(i + 1)
	}
	require.Equal(t, wantRemaining, collectKeys(t, bf, tid))
}

// newManualSteal3LeafTree builds a 3-leaf tree with occupancies (4, 2, 4)
// directly through the low-level page APIs, bypassing BTreeFile.InsertTuple
// (which would never produce this exact imbalance on its own), to exercise
// rebalanceLeaf's steal-from-left-sibling path in isolation.
func newManualSteal3LeafTree(t *testing.T) (bf *BTreeFile, pool *directPool, tid common.TransactionID, leftPid, midPid, parentPid common.BTreePageID, target *common.Tuple) {
	t.Helper()
	fs := afero.NewMemMapFs()
	desc := intKeyDesc()

	var err error
	bf, err = NewBTreeFile(fs, "/steal.db", desc, 0, 50, nil)
	require.NoError(t, err)
	pool = newDirectPool(bf)
	bf.pool = pool

	tableID := bf.ID()
	leftPid = common.NewBTreePageID(tableID, 10, common.Leaf)
	midPid = common.NewBTreePageID(tableID, 11, common.Leaf)
	rightPid := common.NewBTreePageID(tableID, 12, common.Leaf)
	parentPid = common.NewBTreePageID(tableID, 13, common.Internal)

	left := NewBTreeLeafPage(leftPid, 50, desc, 0)
	mid := NewBTreeLeafPage(midPid, 50, desc, 0)
	right := NewBTreeLeafPage(rightPid, 50, desc, 0)

	mustTuple := func(v int32) *common.Tuple {
		tup := common.NewTuple(desc)
		require.NoError(t, tup.SetField(0, common.IntField{Value: v}))
		return tup
	}

	for _, v := range []int32{1, 2, 3, 4} {
		require.NoError(t, left.InsertTuple(mustTuple(v)))
	}
	for _, v := range []int32{10, 11} {
		tp := mustTuple(v)
		require.NoError(t, mid.InsertTuple(tp))
		if v == 11 {
			target = tp
		}
	}
	for _, v := range []int32{20, 21, 22, 23} {
		require.NoError(t, right.InsertTuple(mustTuple(v)))
	}

	left.SetRightSibling(midPid)
	mid.SetLeftSibling(leftPid)
	mid.SetRightSibling(rightPid)
	right.SetLeftSibling(midPid)
	left.SetParent(parentPid)
	mid.SetParent(parentPid)
	right.SetParent(parentPid)

	parent := NewBTreeInternalPage(parentPid, 50, desc, 0)
	parent.InitRootChild(leftPid)
	require.NoError(t, parent.InsertEntry(common.IntField{Value: 10}, leftPid, midPid))
	require.NoError(t, parent.InsertEntry(common.IntField{Value: 20}, midPid, rightPid))

	root := NewBTreeRootPtrPage(rootPtrPid(tableID))
	root.SetRootID(parentPid)

	pool.pages[leftPid.String()] = left
	pool.pages[midPid.String()] = mid
	pool.pages[rightPid.String()] = right
	pool.pages[parentPid.String()] = parent
	pool.pages[root.ID().String()] = root

	tid = common.NewTransactionID()
	return bf, pool, tid, leftPid, midPid, parentPid, target
}

// TestBTreeStealFromLeftSiblingOnDelete covers the steal scenario: deleting
// the middle leaf's last tuple from a (4, 2, 4) three-leaf tree prefers
// stealing from the left sibling over merging, moving tuples one at a time
// until the two leaves' counts are within one of each other (here a single
// move, landing on (3, 2)), and updates the separator key between them to
// the right-hand page's new first key.
func TestBTreeStealFromLeftSiblingOnDelete(t *testing.T) {
	bf, pool, tid, leftPid, midPid, parentPid, target := newManualSteal3LeafTree(t)

	pages, err := bf.DeleteTuple(tid, target)
	require.NoError(t, err)
	pool.absorb(pages)

	left := pool.pages[leftPid.String()].(*BTreeLeafPage)
	mid := pool.pages[midPid.String()].(*BTreeLeafPage)
	parent := pool.pages[parentPid.String()].(*BTreeInternalPage)

	require.Equal(t, 3, left.NumEntries())
	require.Equal(t, 2, mid.NumEntries())
	require.Equal(t, []int32{1, 2, 3}, tupleKeys(left.Tuples()))
	require.Equal(t, []int32{4, 10}, tupleKeys(mid.Tuples()))

	idx, ok := parent.SeparatorIndex(leftPid, midPid)
	require.True(t, ok)
	newFirst, ok := mid.FirstKey()
	require.True(t, ok)
	require.Equal(t, newFirst, parent.Keys()[idx])
}
