package storage

import (
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/intellect4all/reldb/common"
)

// BTreeFile is a B+ tree secondary-index file: one ROOT_PTR page at offset
// 0 (fixed size, independent of pageSize), then a sequence of equally
// sized blocks. A block carries no type tag of its own: it is interpreted
// according to the category in the PageID used to read it, which comes
// from the one-byte category stored with every on-disk page reference
// (root pointer, parent, sibling and child refs). Structural mutations (split/merge/redistribute) take
// READ_WRITE locks on every page they touch and thread a per-call
// dirtypages map that shadows the buffer pool for the duration of the
// operation, so a page being mutated is observed consistently across
// recursive calls even before it is handed back to the pool — modeled on
// the teacher's Pager+WAL combination generalized to the spec's explicit
// dirtypages-shadow discipline (no WAL; crash recovery is out of scope).
type BTreeFile struct {
	fs       afero.Fs
	path     string
	tableID  uint32
	desc     *common.TupleDesc
	keyField int
	pageSize int
	pool     PageFetcher

	appendMu sync.Mutex
	numPages int
}

func rootPtrPid(tableID uint32) common.BTreePageID {
	return common.NewBTreePageID(tableID, 0, common.RootPtr)
}

// NewBTreeFile opens (creating if necessary) a B+ tree file backed by fs.
func NewBTreeFile(fs afero.Fs, path string, desc *common.TupleDesc, keyField int, pageSize int, pool PageFetcher) (*BTreeFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, common.NewIoError("BTreeFile.Abs", err)
	}
	tableID := common.TableIDFromPath(abs)

	f, err := fs.OpenFile(path, osCreateFlags, 0644)
	if err != nil {
		return nil, common.NewIoError("BTreeFile.Open", err)
	}
	info, statErr := f.Stat()
	needsInit := statErr == nil && info.Size() == 0
	_ = f.Close()

	bf := &BTreeFile{
		fs:       fs,
		path:     path,
		tableID:  tableID,
		desc:     desc,
		keyField: keyField,
		pageSize: pageSize,
		pool:     pool,
	}
	if needsInit {
		if err := bf.initEmpty(); err != nil {
			return nil, err
		}
	} else {
		bf.numPages = bf.computeNumPages()
	}
	return bf, nil
}

func (bf *BTreeFile) initEmpty() error {
	root := NewBTreeRootPtrPage(rootPtrPid(bf.tableID))
	leafPid := common.NewBTreePageID(bf.tableID, 1, common.Leaf)
	leaf := NewBTreeLeafPage(leafPid, bf.pageSize, bf.desc, bf.keyField)
	root.SetRootID(leafPid)

	if err := bf.writeRootPtr(root); err != nil {
		return err
	}
	bf.numPages = 1
	if err := bf.WritePage(leaf); err != nil {
		return err
	}
	return nil
}

func (bf *BTreeFile) computeNumPages() int {
	info, err := bf.fs.Stat(bf.path)
	if err != nil {
		return 0
	}
	body := info.Size() - RootPtrPageSize
	if body <= 0 {
		return 0
	}
	return int(body / int64(bf.pageSize))
}

func (bf *BTreeFile) ID() uint32                   { return bf.tableID }
func (bf *BTreeFile) TupleDesc() *common.TupleDesc { return bf.desc }
func (bf *BTreeFile) NumPages() int                { return bf.numPages }

func (bf *BTreeFile) dataOffset(pageNo int) int64 {
	return int64(RootPtrPageSize) + int64(pageNo-1)*int64(bf.pageSize)
}

func (bf *BTreeFile) readRootPtr() (*BTreeRootPtrPage, error) {
	f, err := bf.fs.OpenFile(bf.path, osReadFlags, 0644)
	if err != nil {
		return nil, common.NewIoError("BTreeFile.readRootPtr.Open", err)
	}
	defer f.Close()
	buf := make([]byte, RootPtrPageSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, common.NewIoError("BTreeFile.readRootPtr.ReadAt", err)
	}
	return ReadBTreeRootPtrPage(rootPtrPid(bf.tableID), buf)
}

func (bf *BTreeFile) writeRootPtr(p *BTreeRootPtrPage) error {
	f, err := bf.fs.OpenFile(bf.path, osWriteFlags, 0644)
	if err != nil {
		return common.NewIoError("BTreeFile.writeRootPtr.Open", err)
	}
	defer f.Close()
	if _, err := f.WriteAt(p.GetPageData(), 0); err != nil {
		return common.NewIoError("BTreeFile.writeRootPtr.WriteAt", err)
	}
	return nil
}

// ReadPage reads the page named by pid from disk and deserializes it as
// the shape pid.Category names. The block itself stores no type tag, so a
// wrong category on pid is not detected.
func (bf *BTreeFile) ReadPage(pid common.PageID) (Page, error) {
	if hpid, ok := pid.(common.HeapPageID); ok {
		return nil, common.NewArgumentError("BTreeFile.ReadPage: not a BTreePageID: %v", hpid)
	}
	bpid := pid.(common.BTreePageID)
	if bpid.Category == common.RootPtr {
		return bf.readRootPtr()
	}

	f, err := bf.fs.OpenFile(bf.path, osReadFlags, 0644)
	if err != nil {
		return nil, common.NewIoError("BTreeFile.ReadPage.Open", err)
	}
	defer f.Close()
	buf := make([]byte, bf.pageSize)
	if _, err := f.ReadAt(buf, bf.dataOffset(bpid.PageNumber())); err != nil {
		return nil, common.NewIoError("BTreeFile.ReadPage.ReadAt", err)
	}

	switch bpid.Category {
	case common.Leaf:
		return ReadBTreeLeafPage(bpid, bf.pageSize, bf.desc, bf.keyField, buf)
	case common.Internal:
		return ReadBTreeInternalPage(bpid, bf.pageSize, bf.desc, bf.keyField, buf)
	case common.Header:
		return ReadBTreeHeaderPage(bpid, bf.pageSize, buf)
	default:
		return nil, common.NewArgumentError("BTreeFile.ReadPage: unknown category %v", bpid.Category)
	}
}

// WritePage writes p's serialized image to its slot.
func (bf *BTreeFile) WritePage(p Page) error {
	bpid, ok := p.ID().(common.BTreePageID)
	if !ok {
		return common.NewArgumentError("BTreeFile.WritePage: not a BTreePageID: %v", p.ID())
	}
	if bpid.Category == common.RootPtr {
		return bf.writeRootPtr(p.(*BTreeRootPtrPage))
	}
	f, err := bf.fs.OpenFile(bf.path, osWriteFlags, 0644)
	if err != nil {
		return common.NewIoError("BTreeFile.WritePage.Open", err)
	}
	defer f.Close()
	if _, err := f.WriteAt(p.GetPageData(), bf.dataOffset(bpid.PageNumber())); err != nil {
		return common.NewIoError("BTreeFile.WritePage.WriteAt", err)
	}
	return nil
}

// dirtyPages shadows the buffer pool for the duration of a single
// structural call so recursive split/merge/rebalance steps observe each
// other's in-flight mutations before they're handed back to the pool.
type dirtyPages struct {
	pages map[string]Page
}

func newDirtyPages() *dirtyPages { return &dirtyPages{pages: make(map[string]Page)} }

func (d *dirtyPages) put(p Page) { d.pages[p.ID().String()] = p }

func (d *dirtyPages) get(pid common.PageID) (Page, bool) {
	p, ok := d.pages[pid.String()]
	return p, ok
}

func (d *dirtyPages) list() []Page {
	out := make([]Page, 0, len(d.pages))
	for _, p := range d.pages {
		out = append(out, p)
	}
	return out
}

// getPage fetches pid through the dirtypages shadow first, then the buffer
// pool, locking for perm.
func (bf *BTreeFile) getPage(tid common.TransactionID, dp *dirtyPages, pid common.PageID, perm Permission) (Page, error) {
	if p, ok := dp.get(pid); ok {
		return p, nil
	}
	p, err := bf.pool.GetPage(tid, pid, perm)
	if err != nil {
		return nil, err
	}
	if perm == ReadWrite {
		dp.put(p)
	}
	return p, nil
}

func keyOf(t *common.Tuple, keyField int) common.Field {
	f, _ := t.GetField(keyField)
	return f
}

// findLeafPage descends from pid to the leaf that would hold key (or the
// leftmost leaf if key is nil), locking internal pages READ_ONLY and the
// final leaf with perm.
func (bf *BTreeFile) findLeafPage(tid common.TransactionID, dp *dirtyPages, pid common.PageID, perm Permission, key common.Field) (*BTreeLeafPage, error) {
	bpid := pid.(common.BTreePageID)
	if bpid.Category == common.Leaf {
		p, err := bf.getPage(tid, dp, pid, perm)
		if err != nil {
			return nil, err
		}
		return p.(*BTreeLeafPage), nil
	}
	p, err := bf.getPage(tid, dp, pid, ReadOnly)
	if err != nil {
		return nil, err
	}
	internal := p.(*BTreeInternalPage)
	child, err := internal.ChildForKey(key)
	if err != nil {
		return nil, err
	}
	return bf.findLeafPage(tid, dp, child, perm, key)
}

// findLeafPageReverse mirrors findLeafPage, descending the rightmost child
// whose key <= the given key.
func (bf *BTreeFile) findLeafPageReverse(tid common.TransactionID, dp *dirtyPages, pid common.PageID, perm Permission, key common.Field) (*BTreeLeafPage, error) {
	bpid := pid.(common.BTreePageID)
	if bpid.Category == common.Leaf {
		p, err := bf.getPage(tid, dp, pid, perm)
		if err != nil {
			return nil, err
		}
		return p.(*BTreeLeafPage), nil
	}
	p, err := bf.getPage(tid, dp, pid, ReadOnly)
	if err != nil {
		return nil, err
	}
	internal := p.(*BTreeInternalPage)
	child, err := internal.ChildForKeyReverse(key)
	if err != nil {
		return nil, err
	}
	return bf.findLeafPageReverse(tid, dp, child, perm, key)
}

// InsertTuple locates the leaf for t's key, splits if full, inserts t into
// that leaf, and returns every page the insert dirtied.
func (bf *BTreeFile) InsertTuple(tid common.TransactionID, t *common.Tuple) ([]Page, error) {
	dp := newDirtyPages()
	root, err := bf.fetchRoot(tid, dp)
	if err != nil {
		return nil, err
	}
	key := keyOf(t, bf.keyField)
	leaf, err := bf.findLeafPage(tid, dp, root.RootID(), ReadWrite, key)
	if err != nil {
		return nil, err
	}

	if leaf.NumEntries() >= leaf.MaxEntries() {
		if err := bf.splitLeafPage(tid, dp, leaf, t); err != nil {
			return nil, err
		}
		return dp.list(), nil
	}
	if err := leaf.InsertTuple(t); err != nil {
		return nil, err
	}
	leaf.MarkDirty(true, tid)
	dp.put(leaf)
	return dp.list(), nil
}

// DeleteTuple locates and deletes t from its leaf, rebalancing if the
// leaf's occupancy drops below the minimum.
func (bf *BTreeFile) DeleteTuple(tid common.TransactionID, t *common.Tuple) ([]Page, error) {
	if t.Rid == nil {
		return nil, common.NewDbError("BTreeFile.DeleteTuple", common.NewArgumentError("tuple has no record id"))
	}
	dp := newDirtyPages()
	bpid := t.Rid.PID.(common.BTreePageID)
	page, err := bf.getPage(tid, dp, bpid, ReadWrite)
	if err != nil {
		return nil, err
	}
	leaf := page.(*BTreeLeafPage)
	if err := leaf.DeleteTuple(t); err != nil {
		return nil, err
	}
	leaf.MarkDirty(true, tid)
	dp.put(leaf)

	if leaf.NumEntries() < bf.minOccupancy(leaf.MaxEntries()) {
		if err := bf.rebalanceLeaf(tid, dp, leaf); err != nil {
			return nil, err
		}
	}
	return dp.list(), nil
}

// minOccupancy is the minimum tuple count a leaf must retain after a
// structural operation: ceil(max/2).
func (bf *BTreeFile) minOccupancy(max int) int {
	return (max + 1) / 2
}

// minInternalKeys is the minimum key count a non-root internal page must
// retain. Internal occupancy is properly a child-count notion
// (ceil((maxKeys+1)/2) children), so the key-count floor is one less than
// the child-count floor.
func (bf *BTreeFile) minInternalKeys(maxKeys int) int {
	minChildren := (maxKeys + 2) / 2
	if minChildren < 1 {
		minChildren = 1
	}
	return minChildren - 1
}

// Iterator returns a forward iterator over every tuple in the tree in key
// order.
func (bf *BTreeFile) Iterator(tid common.TransactionID) (TupleIterator, error) {
	return &btreeIterator{bf: bf, tid: tid, reverse: false}, nil
}

// OrderedIterator returns a forward or reverse iterator, optionally bounded
// to keys satisfying op against pivot (used by IndexScan).
func (bf *BTreeFile) OrderedIterator(tid common.TransactionID, reverse bool, op *common.Op, pivot common.Field) (TupleIterator, error) {
	return &btreeIterator{bf: bf, tid: tid, reverse: reverse, predOp: op, pivot: pivot}, nil
}
