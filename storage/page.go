// Package storage implements the page and file layer: HeapPage/HeapFile for
// unindexed tuple storage, and the BTree*Page/BTreeFile family implementing
// the B+ tree secondary-index file with full insert/delete maintenance.
package storage

import (
	"github.com/intellect4all/reldb/common"
)

// Page is the abstract capability every concrete page shape satisfies: it
// owns a mutable byte image, its PageID, a dirty flag, and the transaction
// that dirtied it (if any), and can serialize itself to a fixed-size byte
// block. Modeled on the teacher's Page (btree/page.go) generalized from a
// single slotted-cell shape to a tagged variant over
// {HeapPage, BTreeLeafPage, BTreeInternalPage, BTreeHeaderPage,
// BTreeRootPtrPage}.
type Page interface {
	ID() common.PageID
	GetPageData() []byte
	IsDirty() bool
	MarkDirty(dirty bool, tid common.TransactionID)
	DirtiedBy() (common.TransactionID, bool)
	GetBeforeImage() Page
	SetBeforeImage()
}

// DBFile is the collaborator interface both HeapFile and BTreeFile satisfy.
type DBFile interface {
	ID() uint32
	TupleDesc() *common.TupleDesc
	ReadPage(pid common.PageID) (Page, error)
	WritePage(p Page) error
	NumPages() int
	InsertTuple(tid common.TransactionID, t *common.Tuple) ([]Page, error)
	DeleteTuple(tid common.TransactionID, t *common.Tuple) ([]Page, error)
	Iterator(tid common.TransactionID) (TupleIterator, error)
}

// TupleIterator is the pull-based capability every file-level scan
// implements: open, hasNext, next, rewind, close.
type TupleIterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*common.Tuple, error)
	Rewind() error
	Close() error
}

// PageFetcher is implemented by the buffer pool and handed to file-layer
// code that needs to read pages through the pool rather than straight from
// disk (so that locking and caching stay centralized).
type PageFetcher interface {
	GetPage(tid common.TransactionID, pid common.PageID, perm Permission) (Page, error)

	// ReleasePage asks for tid's lock on pid to be dropped early, outside
	// the normal commit/abort path. Only safe where no tuple was mutated
	// under that lock; an implementation may keep the lock (BufferPool
	// does for any page tid is recorded as having dirtied).
	ReleasePage(tid common.TransactionID, pid common.PageID)
}

// Permission is the lock strength requested from the lock manager via the
// buffer pool.
type Permission int

const (
	ReadOnly Permission = iota
	ReadWrite
)
