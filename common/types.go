package common

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// TransactionID names a logical unit of work. Equality is always by value
// (the source this engine is modeled on compared transaction identifiers by
// reference, which silently broke lock-release bookkeeping whenever two
// TransactionID values wrapped the same logical id through different
// pointers).
type TransactionID struct {
	id uuid.UUID
}

// NewTransactionID mints a fresh, globally unique transaction identifier.
func NewTransactionID() TransactionID {
	return TransactionID{id: uuid.New()}
}

func (t TransactionID) Equals(other TransactionID) bool { return t.id == other.id }
func (t TransactionID) String() string                  { return t.id.String() }

// PageCategory distinguishes the four on-disk page shapes a BTreePageID may
// name. HeapPageID never carries a category.
type PageCategory int

const (
	RootPtr PageCategory = iota
	Internal
	Leaf
	Header
)

func (c PageCategory) String() string {
	switch c {
	case RootPtr:
		return "ROOT_PTR"
	case Internal:
		return "INTERNAL"
	case Leaf:
		return "LEAF"
	case Header:
		return "HEADER"
	default:
		return "UNKNOWN"
	}
}

// PageID identifies a page: either a HeapPageID(tableId, pageNumber) or a
// BTreePageID(tableId, pageNumber, category).
type PageID interface {
	TableID() uint32
	PageNumber() int
	Equals(other PageID) bool
	String() string
}

// HeapPageID identifies a page of a HeapFile.
type HeapPageID struct {
	Table      uint32
	PageNumber_ int
}

func NewHeapPageID(tableID uint32, pageNumber int) HeapPageID {
	return HeapPageID{Table: tableID, PageNumber_: pageNumber}
}

func (p HeapPageID) TableID() uint32   { return p.Table }
func (p HeapPageID) PageNumber() int   { return p.PageNumber_ }
func (p HeapPageID) String() string {
	return fmt.Sprintf("heap(table=%d,page=%d)", p.Table, p.PageNumber_)
}
func (p HeapPageID) Equals(other PageID) bool {
	o, ok := other.(HeapPageID)
	return ok && o.Table == p.Table && o.PageNumber_ == p.PageNumber_
}

// BTreePageID identifies a page of a BTreeFile, tagged with the category of
// page stored at that slot.
type BTreePageID struct {
	Table      uint32
	PageNumber_ int
	Category   PageCategory
}

func NewBTreePageID(tableID uint32, pageNumber int, category PageCategory) BTreePageID {
	return BTreePageID{Table: tableID, PageNumber_: pageNumber, Category: category}
}

func (p BTreePageID) TableID() uint32 { return p.Table }
func (p BTreePageID) PageNumber() int { return p.PageNumber_ }
func (p BTreePageID) String() string {
	return fmt.Sprintf("btree(table=%d,page=%d,cat=%s)", p.Table, p.PageNumber_, p.Category)
}
func (p BTreePageID) Equals(other PageID) bool {
	o, ok := other.(BTreePageID)
	return ok && o.Table == p.Table && o.PageNumber_ == p.PageNumber_ && o.Category == p.Category
}

// TableIDFromPath returns a stable 32-bit fingerprint of an absolute file
// path, used as a DbFile's table id. xxhash64 truncated to 32 bits gives a
// fast, well-distributed fingerprint without pulling in a cryptographic
// hash for an identifier that is never security sensitive.
func TableIDFromPath(absPath string) uint32 {
	return uint32(xxhash.Sum64String(absPath))
}

// RecordID identifies a tuple's physical residence: a page and a
// slot-index within that page.
type RecordID struct {
	PID  PageID
	Slot int
}

func (r RecordID) Equals(other RecordID) bool {
	return r.Slot == other.Slot && r.PID != nil && other.PID != nil && r.PID.Equals(other.PID)
}

func (r RecordID) String() string {
	return fmt.Sprintf("%s[%d]", r.PID, r.Slot)
}
