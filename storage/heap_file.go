package storage

import (
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/intellect4all/reldb/common"
)

// HeapFile is a sequence of fixed-size HeapPage blocks with no header.
// numPages = ceil(fileLength / pageSize); the on-disk invariant this
// engine enforces is that fileLength is always an exact multiple of
// pageSize, so truncation vs. ceiling never diverges (the source this was
// modeled on used one in one path and the other elsewhere — harmless only
// because of that invariant).
type HeapFile struct {
	fs       afero.Fs
	path     string
	tableID  uint32
	desc     *common.TupleDesc
	pageSize int
	pool     PageFetcher

	// appendMu guards file growth so two concurrent "probe and append"
	// insert attempts never produce overlapping blocks.
	appendMu sync.Mutex
}

// NewHeapFile opens (creating if necessary) a heap file backed by fs.
func NewHeapFile(fs afero.Fs, path string, desc *common.TupleDesc, pageSize int, pool PageFetcher) (*HeapFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, common.NewIoError("HeapFile.Abs", err)
	}
	f, err := fs.OpenFile(path, osCreateFlags, 0644)
	if err != nil {
		return nil, common.NewIoError("HeapFile.Open", err)
	}
	_ = f.Close()
	return &HeapFile{
		fs:       fs,
		path:     path,
		tableID:  common.TableIDFromPath(abs),
		desc:     desc,
		pageSize: pageSize,
		pool:     pool,
	}, nil
}

func (hf *HeapFile) ID() uint32                    { return hf.tableID }
func (hf *HeapFile) TupleDesc() *common.TupleDesc  { return hf.desc }

func (hf *HeapFile) NumPages() int {
	info, err := hf.fs.Stat(hf.path)
	if err != nil {
		return 0
	}
	if info.Size() == 0 {
		return 0
	}
	// The file is always padded to an exact multiple of pageSize.
	return int(info.Size() / int64(hf.pageSize))
}

// ReadPage seeks to pid.pageNumber*pageSize and constructs a HeapPage.
func (hf *HeapFile) ReadPage(pid common.PageID) (Page, error) {
	hpid, ok := pid.(common.HeapPageID)
	if !ok {
		return nil, common.NewArgumentError("HeapFile.ReadPage: not a HeapPageID: %v", pid)
	}
	f, err := hf.fs.OpenFile(hf.path, osReadFlags, 0644)
	if err != nil {
		return nil, common.NewIoError("HeapFile.ReadPage.Open", err)
	}
	defer f.Close()

	buf := make([]byte, hf.pageSize)
	offset := int64(hpid.PageNumber()) * int64(hf.pageSize)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, common.NewIoError("HeapFile.ReadPage.ReadAt", err)
	}
	return ReadHeapPage(hpid, hf.pageSize, hf.desc, buf)
}

// WritePage seeks and writes pageSize bytes from p.GetPageData().
func (hf *HeapFile) WritePage(p Page) error {
	hpid, ok := p.ID().(common.HeapPageID)
	if !ok {
		return common.NewArgumentError("HeapFile.WritePage: not a HeapPageID: %v", p.ID())
	}
	f, err := hf.fs.OpenFile(hf.path, osWriteFlags, 0644)
	if err != nil {
		return common.NewIoError("HeapFile.WritePage.Open", err)
	}
	defer f.Close()

	offset := int64(hpid.PageNumber()) * int64(hf.pageSize)
	if _, err := f.WriteAt(p.GetPageData(), offset); err != nil {
		return common.NewIoError("HeapFile.WritePage.WriteAt", err)
	}
	return nil
}

// appendEmptyPage grows the file by one newly zeroed block outside the
// buffer pool, guarded so concurrent appenders never race on the same
// offset.
func (hf *HeapFile) appendEmptyPage() (int, error) {
	hf.appendMu.Lock()
	defer hf.appendMu.Unlock()

	pageNo := hf.NumPages()
	empty := NewHeapPage(common.NewHeapPageID(hf.tableID, pageNo), hf.pageSize, hf.desc)
	f, err := hf.fs.OpenFile(hf.path, osWriteFlags, 0644)
	if err != nil {
		return 0, common.NewIoError("HeapFile.appendEmptyPage.Open", err)
	}
	defer f.Close()
	offset := int64(pageNo) * int64(hf.pageSize)
	if _, err := f.WriteAt(empty.GetPageData(), offset); err != nil {
		return 0, common.NewIoError("HeapFile.appendEmptyPage.WriteAt", err)
	}
	return pageNo, nil
}

// InsertTuple scans pages in order looking for a free slot under a
// READ_WRITE lock; a page with no space is handed to pool.ReleasePage
// before moving on (BufferPool keeps the lock on a page fetched ReadWrite;
// see BufferPool.ReleasePage). If every page is full, a new page is
// appended outside the buffer pool and then fetched through it.
func (hf *HeapFile) InsertTuple(tid common.TransactionID, t *common.Tuple) ([]Page, error) {
	numPages := hf.NumPages()
	for i := 0; i < numPages; i++ {
		pid := common.NewHeapPageID(hf.tableID, i)
		page, err := hf.pool.GetPage(tid, pid, ReadWrite)
		if err != nil {
			return nil, err
		}
		hp := page.(*HeapPage)
		if hp.NumEmptySlots() == 0 {
			hf.pool.ReleasePage(tid, pid)
			continue
		}
		if _, err := hp.InsertTuple(t); err != nil {
			hf.pool.ReleasePage(tid, pid)
			continue
		}
		hp.MarkDirty(true, tid)
		return []Page{hp}, nil
	}

	newPageNo, err := hf.appendEmptyPage()
	if err != nil {
		return nil, err
	}
	pid := common.NewHeapPageID(hf.tableID, newPageNo)
	page, err := hf.pool.GetPage(tid, pid, ReadWrite)
	if err != nil {
		return nil, err
	}
	hp := page.(*HeapPage)
	if _, err := hp.InsertTuple(t); err != nil {
		return nil, err
	}
	hp.MarkDirty(true, tid)
	return []Page{hp}, nil
}

// DeleteTuple acquires READ_WRITE on t.Rid.PID and deletes the slot.
func (hf *HeapFile) DeleteTuple(tid common.TransactionID, t *common.Tuple) ([]Page, error) {
	if t.Rid == nil {
		return nil, common.NewDbError("HeapFile.DeleteTuple", common.NewArgumentError("tuple has no record id"))
	}
	page, err := hf.pool.GetPage(tid, t.Rid.PID, ReadWrite)
	if err != nil {
		return nil, err
	}
	hp := page.(*HeapPage)
	if err := hp.DeleteTuple(t); err != nil {
		return nil, err
	}
	hp.MarkDirty(true, tid)
	return []Page{hp}, nil
}

// Iterator returns an open-pattern iterator that, per page in order, reads
// all live tuples under READ_ONLY and yields them.
func (hf *HeapFile) Iterator(tid common.TransactionID) (TupleIterator, error) {
	return &heapFileIterator{hf: hf, tid: tid}, nil
}

type heapFileIterator struct {
	hf        *HeapFile
	tid       common.TransactionID
	pageNo    int
	tuples    []*common.Tuple
	tupleIdx  int
	opened    bool
}

func (it *heapFileIterator) Open() error {
	it.opened = true
	return it.loadPage(0)
}

func (it *heapFileIterator) loadPage(pageNo int) error {
	it.pageNo = pageNo
	it.tupleIdx = 0
	if pageNo >= it.hf.NumPages() {
		it.tuples = nil
		return nil
	}
	pid := common.NewHeapPageID(it.hf.tableID, pageNo)
	page, err := it.hf.pool.GetPage(it.tid, pid, ReadOnly)
	if err != nil {
		return err
	}
	it.tuples = page.(*HeapPage).Tuples()
	return nil
}

func (it *heapFileIterator) HasNext() (bool, error) {
	if !it.opened {
		return false, common.NewDbError("heapFileIterator.HasNext", common.NewArgumentError("iterator not open"))
	}
	for it.tupleIdx >= len(it.tuples) {
		if it.pageNo+1 >= it.hf.NumPages() {
			return false, nil
		}
		if err := it.loadPage(it.pageNo + 1); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (it *heapFileIterator) Next() (*common.Tuple, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.NewDbError("heapFileIterator.Next", common.NewArgumentError("no more tuples"))
	}
	t := it.tuples[it.tupleIdx]
	it.tupleIdx++
	return t, nil
}

func (it *heapFileIterator) Rewind() error {
	return it.loadPage(0)
}

func (it *heapFileIterator) Close() error {
	it.opened = false
	it.tuples = nil
	return nil
}
