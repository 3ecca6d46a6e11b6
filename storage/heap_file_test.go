package storage

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/intellect4all/reldb/common"
)

func employeeDesc() *common.TupleDesc {
	return common.NewTupleDesc(
		common.FieldSpec{Name: "id", Type: common.IntType},
		common.FieldSpec{Name: "name", Type: common.StringType},
	)
}

type directPool struct {
	pages map[string]Page
	file  DBFile
}

func newDirectPool(file DBFile) *directPool {
	return &directPool{pages: make(map[string]Page), file: file}
}

func (d *directPool) GetPage(tid common.TransactionID, pid common.PageID, perm Permission) (Page, error) {
	if p, ok := d.pages[pid.String()]; ok {
		return p, nil
	}
	p, err := d.file.ReadPage(pid)
	if err != nil {
		return nil, err
	}
	d.pages[pid.String()] = p
	return p, nil
}

// ReleasePage is a no-op here: directPool has no lock manager to release
// from, and tests that exercise the probe-and-skip path only care that
// InsertTuple still finds room, not that a lock was dropped early.
func (d *directPool) ReleasePage(tid common.TransactionID, pid common.PageID) {}

// absorb folds pages returned by a file-layer call directly into the
// cache, mirroring bufferpool.BufferPool.recordDirty: a structural call may
// hand back pages it allocated fresh and never routed through GetPage.
func (d *directPool) absorb(pages []Page) {
	for _, p := range pages {
		d.pages[p.ID().String()] = p
	}
}

func TestHeapPageInsertDeleteCapacity(t *testing.T) {
	desc := employeeDesc()
	pid := common.NewHeapPageID(1, 0)
	pageSize := 256
	page := NewHeapPage(pid, pageSize, desc)
	capacity := page.NumSlots()
	require.Greater(t, capacity, 0)

	for i := 0; i < capacity; i++ {
		tup := common.NewTuple(desc)
		require.NoError(t, tup.SetField(0, common.IntField{Value: int32(i)}))
		require.NoError(t, tup.SetField(1, common.NewStringField("worker")))
		_, err := page.InsertTuple(tup)
		require.NoError(t, err)
	}
	require.Equal(t, 0, page.NumEmptySlots())

	overflow := common.NewTuple(desc)
	_ = overflow.SetField(0, common.IntField{Value: 999})
	_ = overflow.SetField(1, common.NewStringField("overflow"))
	_, err := page.InsertTuple(overflow)
	require.Error(t, err)

	first := page.Tuples()[0]
	require.NoError(t, page.DeleteTuple(first))
	require.Equal(t, 1, page.NumEmptySlots())
}

func TestHeapPageRoundTrip(t *testing.T) {
	desc := employeeDesc()
	pid := common.NewHeapPageID(7, 2)
	page := NewHeapPage(pid, 256, desc)
	tup := common.NewTuple(desc)
	_ = tup.SetField(0, common.IntField{Value: 42})
	_ = tup.SetField(1, common.NewStringField("ada"))
	_, err := page.InsertTuple(tup)
	require.NoError(t, err)

	data := page.GetPageData()
	back, err := ReadHeapPage(pid, 256, desc, data)
	require.NoError(t, err)
	require.Equal(t, 1, len(back.Tuples()))
	require.True(t, back.Tuples()[0].Equals(tup))
}

func TestHeapFileSpansMultiplePages(t *testing.T) {
	fs := afero.NewMemMapFs()
	desc := employeeDesc()
	pageSize := 256
	hf, err := NewHeapFile(fs, "/employees.db", desc, pageSize, nil)
	require.NoError(t, err)
	pool := newDirectPool(hf)
	hf.pool = pool

	tid := common.NewTransactionID()
	slotsPerPage := NumHeapSlots(pageSize, desc)
	require.Greater(t, slotsPerPage, 0)

	total := slotsPerPage*2 + 3
	for i := 0; i < total; i++ {
		tup := common.NewTuple(desc)
		_ = tup.SetField(0, common.IntField{Value: int32(i)})
		_ = tup.SetField(1, common.NewStringField("row"))
		_, err := hf.InsertTuple(tid, tup)
		require.NoError(t, err)
	}
	require.Equal(t, 3, hf.NumPages())

	it, err := hf.Iterator(tid)
	require.NoError(t, err)
	require.NoError(t, it.Open())
	count := 0
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		_, err = it.Next()
		require.NoError(t, err)
		count++
	}
	require.Equal(t, total, count)
}

func TestHeapFileDeleteFreesSlot(t *testing.T) {
	fs := afero.NewMemMapFs()
	desc := employeeDesc()
	hf, err := NewHeapFile(fs, "/employees.db", desc, 256, nil)
	require.NoError(t, err)
	pool := newDirectPool(hf)
	hf.pool = pool

	tid := common.NewTransactionID()
	tup := common.NewTuple(desc)
	_ = tup.SetField(0, common.IntField{Value: 1})
	_ = tup.SetField(1, common.NewStringField("ada"))
	pages, err := hf.InsertTuple(tid, tup)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	_, err = hf.DeleteTuple(tid, tup)
	require.NoError(t, err)

	it, err := hf.Iterator(tid)
	require.NoError(t, err)
	require.NoError(t, it.Open())
	ok, err := it.HasNext()
	require.NoError(t, err)
	require.False(t, ok)
}
