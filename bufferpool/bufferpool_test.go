package bufferpool

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/intellect4all/reldb/catalog"
	"github.com/intellect4all/reldb/common"
	"github.com/intellect4all/reldb/lockmanager"
	"github.com/intellect4all/reldb/storage"
)

func employeeDesc() *common.TupleDesc {
	return common.NewTupleDesc(
		common.FieldSpec{Name: "id", Type: common.IntType},
		common.FieldSpec{Name: "name", Type: common.StringType},
	)
}

// newTestPool wires a catalog, lock manager, buffer pool, and a single
// heap-backed table together in the order cmd/demo uses: the pool is
// constructed first (referencing the not-yet-populated catalog), then
// handed to the DBFile constructor as its PageFetcher, and only then is
// the file registered in the catalog.
func newTestPool(t *testing.T, maxPages int) (*BufferPool, *catalog.Catalog, *storage.HeapFile) {
	t.Helper()
	fs := afero.NewMemMapFs()
	desc := employeeDesc()

	cat := catalog.New()
	locks := lockmanager.New(time.Millisecond, zerolog.Nop())
	bp := New(cat, locks, maxPages, zerolog.Nop())

	hf, err := storage.NewHeapFile(fs, "/employees.db", desc, 256, bp)
	require.NoError(t, err)
	cat.AddTable(hf, "employees", "id")
	return bp, cat, hf
}

func employeeTuple(desc *common.TupleDesc, id int32, name string) *common.Tuple {
	tup := common.NewTuple(desc)
	_ = tup.SetField(0, common.IntField{Value: id})
	_ = tup.SetField(1, common.NewStringField(name))
	return tup
}

// TestCommitFlushesDirtyPages checks force-at-commit: a page dirtied by an
// insert is written back to the owning DBFile once TransactionComplete
// commits, and is readable through a fresh transaction afterward.
func TestCommitFlushesDirtyPages(t *testing.T) {
	bp, _, hf := newTestPool(t, 8)
	desc := employeeDesc()
	tid := common.NewTransactionID()

	_, err := bp.InsertTuple(tid, hf.ID(), employeeTuple(desc, 1, "ada"))
	require.NoError(t, err)
	require.NoError(t, bp.TransactionComplete(tid, true))

	require.Equal(t, int64(1), bp.Stats().PageWrites)

	tid2 := common.NewTransactionID()
	it, err := hf.Iterator(tid2)
	require.NoError(t, err)
	require.NoError(t, it.Open())
	ok, err := it.HasNext()
	require.NoError(t, err)
	require.True(t, ok)
	tup, err := it.Next()
	require.NoError(t, err)
	f, _ := tup.GetField(0)
	require.Equal(t, int32(1), f.(common.IntField).Value)
}

// TestAbortDiscardsPages checks that an aborted transaction's dirty pages
// never reach disk: GetPage after abort re-reads the pre-transaction image
// instead of the in-memory mutation.
func TestAbortDiscardsPages(t *testing.T) {
	bp, _, hf := newTestPool(t, 8)
	desc := employeeDesc()

	tid0 := common.NewTransactionID()
	_, err := bp.InsertTuple(tid0, hf.ID(), employeeTuple(desc, 1, "ada"))
	require.NoError(t, err)
	require.NoError(t, bp.TransactionComplete(tid0, true))

	pid := common.NewHeapPageID(hf.ID(), 0)

	tid1 := common.NewTransactionID()
	page, err := bp.GetPage(tid1, pid, storage.ReadWrite)
	require.NoError(t, err)
	hp := page.(*storage.HeapPage)
	second := employeeTuple(desc, 2, "grace")
	_, err = hp.InsertTuple(second)
	require.NoError(t, err)

	require.NoError(t, bp.TransactionComplete(tid1, false))

	tid2 := common.NewTransactionID()
	page2, err := bp.GetPage(tid2, pid, storage.ReadOnly)
	require.NoError(t, err)
	require.Equal(t, 1, len(page2.(*storage.HeapPage).Tuples()), "aborted insert must not survive")
}

// TestNoStealNeverEvictsADirtyPage exercises eviction pressure with a
// pool sized to hold only one page: once that page is dirtied by an
// uncommitted transaction, a GetPage for a second page must fail rather
// than silently evict the dirty one (no-steal).
func TestNoStealNeverEvictsADirtyPage(t *testing.T) {
	bp, _, hf := newTestPool(t, 1)
	desc := employeeDesc()
	tid := common.NewTransactionID()

	slotsPerPage := storage.NumHeapSlots(256, desc)
	require.Greater(t, slotsPerPage, 0)

	for i := 0; i < slotsPerPage; i++ {
		_, err := bp.InsertTuple(tid, hf.ID(), employeeTuple(desc, int32(i), "row"))
		require.NoError(t, err)
	}
	// The single page is now full and dirty; forcing a second page into
	// existence (one more insert) requires evicting room for it, but the
	// only cached page is dirty and must not be stolen.
	_, err := bp.InsertTuple(tid, hf.ID(), employeeTuple(desc, int32(slotsPerPage), "overflow"))
	require.Error(t, err)
}

// TestCacheHitAvoidsReread checks the LRU cache path: a second GetPage for
// the same page within a transaction is served from cache, not re-read
// from the DBFile.
func TestCacheHitAvoidsReread(t *testing.T) {
	bp, _, hf := newTestPool(t, 8)
	desc := employeeDesc()
	tid := common.NewTransactionID()
	_, err := bp.InsertTuple(tid, hf.ID(), employeeTuple(desc, 1, "ada"))
	require.NoError(t, err)
	require.NoError(t, bp.TransactionComplete(tid, true))

	pid := common.NewHeapPageID(hf.ID(), 0)
	tid2 := common.NewTransactionID()
	_, err = bp.GetPage(tid2, pid, storage.ReadOnly)
	require.NoError(t, err)
	readsAfterFirst := bp.Stats().PageReads
	hitsAfterFirst := bp.Stats().CacheHits

	_, err = bp.GetPage(tid2, pid, storage.ReadOnly)
	require.NoError(t, err)
	require.Equal(t, readsAfterFirst, bp.Stats().PageReads, "a cached page must not trigger another DBFile read")
	require.Equal(t, hitsAfterFirst+1, bp.Stats().CacheHits)
}
