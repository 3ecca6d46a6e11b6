package storage

import (
	"bytes"
	"encoding/binary"

	"github.com/intellect4all/reldb/common"
)

// noPage is the sentinel page number meaning "no page" wherever a PageID
// field may be absent (parent of the root, a missing sibling, ...).
const noPage = 0

func encodeRef(tableID uint32, pid common.PageID) (pageNo uint32, cat byte) {
	if pid == nil {
		return noPage, 0
	}
	switch p := pid.(type) {
	case common.BTreePageID:
		return uint32(p.PageNumber()), byte(p.Category)
	default:
		return noPage, 0
	}
}

func decodeRef(tableID uint32, pageNo uint32, cat byte) common.PageID {
	if pageNo == noPage {
		return nil
	}
	return common.NewBTreePageID(tableID, int(pageNo), common.PageCategory(cat))
}

func writeRef(buf *bytes.Buffer, tableID uint32, pid common.PageID) {
	pageNo, cat := encodeRef(tableID, pid)
	_ = binary.Write(buf, binary.LittleEndian, pageNo)
	buf.WriteByte(cat)
}

func readRef(r *bytes.Reader, tableID uint32) common.PageID {
	var pageNo uint32
	_ = binary.Read(r, binary.LittleEndian, &pageNo)
	cat, _ := r.ReadByte()
	return decodeRef(tableID, pageNo, cat)
}

const refSize = 5 // 4 byte page number + 1 byte category

// btreePageBase carries the bookkeeping shared by every BTree*Page variant.
type btreePageBase struct {
	pid      common.BTreePageID
	pageSize int
	dirty    bool
	dirtyBy  common.TransactionID
	hasDirty bool
	before   []byte
}

func (b *btreePageBase) IsDirty() bool { return b.dirty }
func (b *btreePageBase) MarkDirty(dirty bool, tid common.TransactionID) {
	b.dirty = dirty
	b.hasDirty = dirty
	if dirty {
		b.dirtyBy = tid
	}
}
func (b *btreePageBase) DirtiedBy() (common.TransactionID, bool) { return b.dirtyBy, b.hasDirty }
func (b *btreePageBase) SetBeforeImageRaw(data []byte)           { b.before = data }

// ---------------------------------------------------------------------
// BTreeLeafPage
// ---------------------------------------------------------------------

// BTreeLeafPage holds tuples sorted by the tree's key field, plus left and
// right leaf-sibling PageIDs and a parent PageID.
type BTreeLeafPage struct {
	btreePageBase
	desc         *common.TupleDesc
	keyField     int
	maxSlots     int
	occupied     []bool
	tuples       []*common.Tuple
	left, right  common.PageID
	parent       common.PageID
}

func leafCapacity(pageSize int, desc *common.TupleDesc) int {
	// Same bitmap+slot-array shape as HeapPage, minus the fixed header
	// fields (parent + two sibling refs) this page additionally carries.
	overhead := 3 * refSize
	tupleSize := desc.Size()
	if tupleSize <= 0 {
		return 0
	}
	remPageSize := pageSize - overhead
	if remPageSize <= 0 {
		return 0
	}
	return (remPageSize * 8) / (tupleSize*8 + 1)
}

func NewBTreeLeafPage(pid common.BTreePageID, pageSize int, desc *common.TupleDesc, keyField int) *BTreeLeafPage {
	cap := leafCapacity(pageSize, desc)
	return &BTreeLeafPage{
		btreePageBase: btreePageBase{pid: pid, pageSize: pageSize},
		desc:          desc,
		keyField:      keyField,
		maxSlots:      cap,
		occupied:      make([]bool, cap),
		tuples:        make([]*common.Tuple, cap),
	}
}

func (p *BTreeLeafPage) ID() common.PageID       { return p.pid }
func (p *BTreeLeafPage) MaxEntries() int         { return p.maxSlots }
func (p *BTreeLeafPage) NumEntries() int {
	n := 0
	for _, occ := range p.occupied {
		if occ {
			n++
		}
	}
	return n
}
func (p *BTreeLeafPage) LeftSibling() common.PageID  { return p.left }
func (p *BTreeLeafPage) RightSibling() common.PageID { return p.right }
func (p *BTreeLeafPage) SetLeftSibling(pid common.PageID)  { p.left = pid; p.dirty = true }
func (p *BTreeLeafPage) SetRightSibling(pid common.PageID) { p.right = pid; p.dirty = true }
func (p *BTreeLeafPage) Parent() common.PageID             { return p.parent }
func (p *BTreeLeafPage) SetParent(pid common.PageID)       { p.parent = pid; p.dirty = true }

// Tuples returns the page's live tuples, sorted by key.
func (p *BTreeLeafPage) Tuples() []*common.Tuple {
	out := make([]*common.Tuple, 0, p.NumEntries())
	for i, occ := range p.occupied {
		if occ {
			out = append(out, p.tuples[i])
		}
	}
	return sortTuplesByKey(out, p.keyField)
}

func sortTuplesByKey(ts []*common.Tuple, keyField int) []*common.Tuple {
	// Insertion sort: leaf pages hold at most a few hundred tuples, and the
	// incoming slice is already nearly sorted after a single insert.
	for i := 1; i < len(ts); i++ {
		for j := i; j > 0; j-- {
			a, _ := ts[j-1].GetField(keyField)
			b, _ := ts[j].GetField(keyField)
			less, _ := a.Compare(common.LessThanOrEq, b)
			if less {
				break
			}
			ts[j-1], ts[j] = ts[j], ts[j-1]
		}
	}
	return ts
}

// FirstKey / LastKey return the smallest/largest key currently on the page.
func (p *BTreeLeafPage) FirstKey() (common.Field, bool) {
	ts := p.Tuples()
	if len(ts) == 0 {
		return nil, false
	}
	f, _ := ts[0].GetField(p.keyField)
	return f, true
}

func (p *BTreeLeafPage) LastKey() (common.Field, bool) {
	ts := p.Tuples()
	if len(ts) == 0 {
		return nil, false
	}
	f, _ := ts[len(ts)-1].GetField(p.keyField)
	return f, true
}

// InsertTuple places t in the first free slot and assigns its RecordID, or
// returns an error if the page has no free slot. Slots are not kept in key
// order; Tuples() sorts the live tuples by key.
func (p *BTreeLeafPage) InsertTuple(t *common.Tuple) error {
	for slot, occ := range p.occupied {
		if occ {
			continue
		}
		p.occupied[slot] = true
		rid := common.RecordID{PID: p.pid, Slot: slot}
		t.Rid = &rid
		p.tuples[slot] = t
		p.dirty = true
		return nil
	}
	return common.NewDbError("BTreeLeafPage.InsertTuple", common.NewArgumentError("page full"))
}

func (p *BTreeLeafPage) DeleteTuple(t *common.Tuple) error {
	if t.Rid == nil {
		return common.NewDbError("BTreeLeafPage.DeleteTuple", common.NewArgumentError("tuple has no record id"))
	}
	slot := t.Rid.Slot
	if slot < 0 || slot >= p.maxSlots || !p.occupied[slot] {
		return common.NewDbError("BTreeLeafPage.DeleteTuple", common.NewArgumentError("slot %d not occupied", slot))
	}
	p.occupied[slot] = false
	p.tuples[slot] = nil
	p.dirty = true
	return nil
}

// MoveOut removes and returns the given tuples from this page (used by
// split/merge/steal to relocate tuples between pages).
func (p *BTreeLeafPage) MoveOut(ts []*common.Tuple) {
	for _, t := range ts {
		_ = p.DeleteTuple(t)
	}
}

// StealFirst removes and returns this page's lowest-keyed tuple (donated
// to a deficient left sibling during rebalancing).
func (p *BTreeLeafPage) StealFirst() *common.Tuple {
	sorted := p.Tuples()
	t := sorted[0]
	_ = p.DeleteTuple(t)
	return t
}

// StealLast removes and returns this page's highest-keyed tuple (donated
// to a deficient right sibling during rebalancing).
func (p *BTreeLeafPage) StealLast() *common.Tuple {
	sorted := p.Tuples()
	t := sorted[len(sorted)-1]
	_ = p.DeleteTuple(t)
	return t
}

// MergeFrom absorbs every tuple of a right sibling leaf being merged away.
func (p *BTreeLeafPage) MergeFrom(right *BTreeLeafPage) {
	for _, t := range right.Tuples() {
		_ = right.DeleteTuple(t)
		_ = p.InsertTuple(t)
	}
}

func (p *BTreeLeafPage) GetBeforeImage() Page {
	clone, _ := ReadBTreeLeafPage(p.pid, p.pageSize, p.desc, p.keyField, p.before)
	return clone
}
func (p *BTreeLeafPage) SetBeforeImage() { p.before = p.GetPageData() }

func (p *BTreeLeafPage) GetPageData() []byte {
	buf := new(bytes.Buffer)
	writeRef(buf, p.pid.TableID(), p.parent)
	writeRef(buf, p.pid.TableID(), p.left)
	writeRef(buf, p.pid.TableID(), p.right)
	headerSize := heapHeaderSize(p.maxSlots)
	header := make([]byte, headerSize)
	for slot, occ := range p.occupied {
		if occ {
			header[slot/8] |= 1 << uint(slot%8)
		}
	}
	buf.Write(header)
	tupleSize := p.desc.Size()
	for slot := 0; slot < p.maxSlots; slot++ {
		if p.occupied[slot] {
			_ = p.tuples[slot].WriteTo(buf)
		} else {
			buf.Write(make([]byte, tupleSize))
		}
	}
	out := make([]byte, p.pageSize)
	copy(out, buf.Bytes())
	return out
}

func ReadBTreeLeafPage(pid common.BTreePageID, pageSize int, desc *common.TupleDesc, keyField int, data []byte) (*BTreeLeafPage, error) {
	p := NewBTreeLeafPage(pid, pageSize, desc, keyField)
	r := bytes.NewReader(data)
	p.parent = readRef(r, pid.TableID())
	p.left = readRef(r, pid.TableID())
	p.right = readRef(r, pid.TableID())
	headerSize := heapHeaderSize(p.maxSlots)
	header := make([]byte, headerSize)
	if _, err := r.Read(header); err != nil {
		return nil, common.NewIoError("ReadBTreeLeafPage.header", err)
	}
	for slot := 0; slot < p.maxSlots; slot++ {
		if header[slot/8]&(1<<uint(slot%8)) != 0 {
			p.occupied[slot] = true
		}
	}
	tupleSize := desc.Size()
	for slot := 0; slot < p.maxSlots; slot++ {
		if !p.occupied[slot] {
			r.Seek(int64(tupleSize), 1)
			continue
		}
		t, err := common.ReadTupleFrom(r, desc)
		if err != nil {
			return nil, err
		}
		rid := common.RecordID{PID: pid, Slot: slot}
		t.Rid = &rid
		p.tuples[slot] = t
	}
	return p, nil
}

// ---------------------------------------------------------------------
// BTreeInternalPage
// ---------------------------------------------------------------------

// internalEntry is (key, leftChild, rightChild); adjacent entries share a
// child, so the page is stored as an (n+1)-length children slice and an
// n-length keys slice with entries[i] = (keys[i], children[i], children[i+1]).
type BTreeInternalPage struct {
	btreePageBase
	desc     *common.TupleDesc
	keyField int
	maxKeys  int
	keys     []common.Field
	children []common.PageID
	parent   common.PageID
}

func internalCapacity(pageSize int, keyType common.FieldType) int {
	overhead := refSize + 2 // parent ref + uint16 key count
	entrySize := keyType.Len() + refSize
	if entrySize <= 0 {
		return 0
	}
	return (pageSize - overhead - refSize) / entrySize
}

func NewBTreeInternalPage(pid common.BTreePageID, pageSize int, desc *common.TupleDesc, keyField int) *BTreeInternalPage {
	kt, _ := desc.FieldType(keyField)
	maxKeys := internalCapacity(pageSize, kt)
	return &BTreeInternalPage{
		btreePageBase: btreePageBase{pid: pid, pageSize: pageSize},
		desc:          desc,
		keyField:      keyField,
		maxKeys:       maxKeys,
		keys:          make([]common.Field, 0, maxKeys),
		children:      make([]common.PageID, 0, maxKeys+1),
	}
}

func (p *BTreeInternalPage) ID() common.PageID { return p.pid }
func (p *BTreeInternalPage) MaxEntries() int    { return p.maxKeys }
func (p *BTreeInternalPage) NumEntries() int    { return len(p.keys) }
func (p *BTreeInternalPage) Parent() common.PageID       { return p.parent }
func (p *BTreeInternalPage) SetParent(pid common.PageID) { p.parent = pid; p.dirty = true }
func (p *BTreeInternalPage) Keys() []common.Field        { return p.keys }
func (p *BTreeInternalPage) Children() []common.PageID   { return p.children }

// InitRootChild seeds a brand new root's lone child with no separator key.
func (p *BTreeInternalPage) InitRootChild(child common.PageID) {
	p.children = []common.PageID{child}
	p.dirty = true
}

// InsertEntry inserts the entry (key, leftChild, rightChild) in sorted
// position. leftChild must already be present as a child; rightChild is
// newly introduced immediately to leftChild's right.
func (p *BTreeInternalPage) InsertEntry(key common.Field, leftChild, rightChild common.PageID) error {
	if len(p.keys) >= p.maxKeys {
		return common.NewDbError("BTreeInternalPage.InsertEntry", common.NewArgumentError("page full"))
	}
	idx := -1
	for i, c := range p.children {
		if c.Equals(leftChild) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return common.NewDbError("BTreeInternalPage.InsertEntry", common.NewArgumentError("left child not found on page"))
	}
	p.keys = append(p.keys, nil)
	copy(p.keys[idx+1:], p.keys[idx:])
	p.keys[idx] = key

	p.children = append(p.children, nil)
	copy(p.children[idx+2:], p.children[idx+1:])
	p.children[idx+1] = rightChild
	p.dirty = true
	return nil
}

// ChildForKey descends: leftmost child if key is absent (nil), else the
// left child of the first entry whose key >= key, else the rightmost
// child.
func (p *BTreeInternalPage) ChildForKey(key common.Field) (common.PageID, error) {
	if len(p.children) == 0 {
		return nil, common.NewDbError("BTreeInternalPage.ChildForKey", common.NewArgumentError("empty internal page"))
	}
	if key == nil {
		return p.children[0], nil
	}
	for i, k := range p.keys {
		ge, _ := key.Compare(common.LessThanOrEq, k)
		if ge {
			return p.children[i], nil
		}
	}
	return p.children[len(p.children)-1], nil
}

// ChildForKeyReverse descends the rightmost child whose key <= the given
// key, mirroring ChildForKey for reverse iteration.
func (p *BTreeInternalPage) ChildForKeyReverse(key common.Field) (common.PageID, error) {
	if len(p.children) == 0 {
		return nil, common.NewDbError("BTreeInternalPage.ChildForKeyReverse", common.NewArgumentError("empty internal page"))
	}
	if key == nil {
		return p.children[len(p.children)-1], nil
	}
	for i := len(p.keys) - 1; i >= 0; i-- {
		le, _ := p.keys[i].Compare(common.LessThanOrEq, key)
		if le {
			return p.children[i+1], nil
		}
	}
	return p.children[0], nil
}

// DeleteEntryByRightChild removes the entry whose right child is rightChild,
// leaving leftChild directly adjacent to whatever followed rightChild.
func (p *BTreeInternalPage) DeleteEntryByRightChild(rightChild common.PageID) error {
	for i, c := range p.children {
		if i == 0 {
			continue
		}
		if c.Equals(rightChild) {
			p.keys = append(p.keys[:i-1], p.keys[i:]...)
			p.children = append(p.children[:i], p.children[i+1:]...)
			p.dirty = true
			return nil
		}
	}
	return common.NewDbError("BTreeInternalPage.DeleteEntryByRightChild", common.NewArgumentError("right child not found"))
}

// StealFirstEntry removes and returns this page's leftmost child and the
// key that separated it from its former second child (used when an
// internal sibling lends an entry during rebalancing).
func (p *BTreeInternalPage) StealFirstEntry() (key common.Field, child common.PageID) {
	key = p.keys[0]
	child = p.children[0]
	p.keys = p.keys[1:]
	p.children = p.children[1:]
	p.dirty = true
	return
}

// StealLastEntry removes and returns this page's rightmost child and the
// key that separated it from its former second-to-last child.
func (p *BTreeInternalPage) StealLastEntry() (key common.Field, child common.PageID) {
	n := len(p.keys)
	key = p.keys[n-1]
	child = p.children[len(p.children)-1]
	p.keys = p.keys[:n-1]
	p.children = p.children[:len(p.children)-1]
	p.dirty = true
	return
}

// PrependEntry inserts child as the new leftmost child, separated from the
// former leftmost child by key (the mirror of StealLastEntry's donation).
func (p *BTreeInternalPage) PrependEntry(key common.Field, child common.PageID) {
	p.keys = append([]common.Field{key}, p.keys...)
	p.children = append([]common.PageID{child}, p.children...)
	p.dirty = true
}

// AppendEntry inserts child as the new rightmost child, separated from the
// former rightmost child by key (the mirror of StealFirstEntry's
// donation).
func (p *BTreeInternalPage) AppendEntry(key common.Field, child common.PageID) {
	p.keys = append(p.keys, key)
	p.children = append(p.children, child)
	p.dirty = true
}

// MergeFrom absorbs a right sibling's children into this page, joined by
// the parent separator key that used to sit between the two subtrees.
func (p *BTreeInternalPage) MergeFrom(separator common.Field, right *BTreeInternalPage) {
	p.keys = append(p.keys, separator)
	p.keys = append(p.keys, right.keys...)
	p.children = append(p.children, right.children...)
	p.dirty = true
}

// SeparatorIndex returns the index of the key separating left and right,
// where left and right must be adjacent children (children[i], children[i+1]).
func (p *BTreeInternalPage) SeparatorIndex(left, right common.PageID) (int, bool) {
	for i := 0; i+1 < len(p.children); i++ {
		if p.children[i].Equals(left) && p.children[i+1].Equals(right) {
			return i, true
		}
	}
	return -1, false
}

// SetKeyAt overwrites the key at idx (used to re-derive a separator after
// a steal shifts the boundary between two sibling subtrees).
func (p *BTreeInternalPage) SetKeyAt(idx int, key common.Field) {
	p.keys[idx] = key
	p.dirty = true
}

// ReplaceChild swaps a child pointer in place (used when reparenting).
func (p *BTreeInternalPage) ReplaceChild(old, new_ common.PageID) {
	for i, c := range p.children {
		if c.Equals(old) {
			p.children[i] = new_
			p.dirty = true
			return
		}
	}
}

func (p *BTreeInternalPage) GetBeforeImage() Page {
	clone, _ := ReadBTreeInternalPage(p.pid, p.pageSize, p.desc, p.keyField, p.before)
	return clone
}
func (p *BTreeInternalPage) SetBeforeImage() { p.before = p.GetPageData() }

func (p *BTreeInternalPage) GetPageData() []byte {
	buf := new(bytes.Buffer)
	writeRef(buf, p.pid.TableID(), p.parent)
	_ = binary.Write(buf, binary.LittleEndian, uint16(len(p.keys)))
	for _, c := range p.children {
		writeRef(buf, p.pid.TableID(), c)
	}
	for _, k := range p.keys {
		_ = k.WriteTo(buf)
	}
	out := make([]byte, p.pageSize)
	copy(out, buf.Bytes())
	return out
}

func ReadBTreeInternalPage(pid common.BTreePageID, pageSize int, desc *common.TupleDesc, keyField int, data []byte) (*BTreeInternalPage, error) {
	p := NewBTreeInternalPage(pid, pageSize, desc, keyField)
	r := bytes.NewReader(data)
	p.parent = readRef(r, pid.TableID())
	var n uint16
	_ = binary.Read(r, binary.LittleEndian, &n)
	p.children = make([]common.PageID, 0, n+1)
	for i := 0; i < int(n)+1; i++ {
		p.children = append(p.children, readRef(r, pid.TableID()))
	}
	kt, _ := desc.FieldType(keyField)
	p.keys = make([]common.Field, 0, n)
	for i := 0; i < int(n); i++ {
		var f common.Field
		var err error
		switch kt {
		case common.IntType:
			f, err = common.ReadIntField(r)
		case common.StringType:
			f, err = common.ReadStringField(r)
		}
		if err != nil {
			return nil, err
		}
		p.keys = append(p.keys, f)
	}
	return p, nil
}

// ---------------------------------------------------------------------
// BTreeHeaderPage
// ---------------------------------------------------------------------

// BTreeHeaderPage is a bitmap of which data-page numbers in
// [base, base+NumSlots) are currently occupied, linked into a
// doubly-linked list of header pages. base is persisted explicitly (a
// deviation from the spec's implicit-by-chain-position numbering) so a
// freshly reopened file never has to reconstruct chain arithmetic to know
// which page number a given bit names.
type BTreeHeaderPage struct {
	btreePageBase
	base       uint32
	slots      []bool
	prev, next common.PageID
}

func headerSlotCapacity(pageSize int) int {
	overhead := 2*refSize + 4 // prev ref + next ref + base
	return (pageSize - overhead) * 8
}

func NewBTreeHeaderPage(pid common.BTreePageID, pageSize int, base uint32) *BTreeHeaderPage {
	return &BTreeHeaderPage{
		btreePageBase: btreePageBase{pid: pid, pageSize: pageSize},
		base:          base,
		slots:         make([]bool, headerSlotCapacity(pageSize)),
	}
}

func (p *BTreeHeaderPage) ID() common.PageID { return p.pid }
func (p *BTreeHeaderPage) Base() uint32 { return p.base }
func (p *BTreeHeaderPage) Prev() common.PageID { return p.prev }
func (p *BTreeHeaderPage) Next() common.PageID { return p.next }
func (p *BTreeHeaderPage) SetPrev(pid common.PageID) { p.prev = pid; p.dirty = true }
func (p *BTreeHeaderPage) SetNext(pid common.PageID) { p.next = pid; p.dirty = true }
func (p *BTreeHeaderPage) NumSlots() int             { return len(p.slots) }

func (p *BTreeHeaderPage) IsSlotUsed(i int) bool { return i >= 0 && i < len(p.slots) && p.slots[i] }
func (p *BTreeHeaderPage) MarkSlotUsed(i int, used bool) {
	p.slots[i] = used
	p.dirty = true
}

// FindFreeSlot returns the index of a free slot, or -1 if none.
func (p *BTreeHeaderPage) FindFreeSlot() int {
	for i, used := range p.slots {
		if !used {
			return i
		}
	}
	return -1
}

func (p *BTreeHeaderPage) GetBeforeImage() Page {
	clone, _ := ReadBTreeHeaderPage(p.pid, p.pageSize, p.before)
	return clone
}
func (p *BTreeHeaderPage) SetBeforeImage() { p.before = p.GetPageData() }

func (p *BTreeHeaderPage) GetPageData() []byte {
	buf := new(bytes.Buffer)
	writeRef(buf, p.pid.TableID(), p.prev)
	writeRef(buf, p.pid.TableID(), p.next)
	_ = binary.Write(buf, binary.LittleEndian, p.base)
	header := make([]byte, (len(p.slots)+7)/8)
	for i, used := range p.slots {
		if used {
			header[i/8] |= 1 << uint(i%8)
		}
	}
	buf.Write(header)
	out := make([]byte, p.pageSize)
	copy(out, buf.Bytes())
	return out
}

func ReadBTreeHeaderPage(pid common.BTreePageID, pageSize int, data []byte) (*BTreeHeaderPage, error) {
	r := bytes.NewReader(data)
	prev := readRef(r, pid.TableID())
	next := readRef(r, pid.TableID())
	var base uint32
	_ = binary.Read(r, binary.LittleEndian, &base)
	p := NewBTreeHeaderPage(pid, pageSize, base)
	p.prev, p.next = prev, next
	header := make([]byte, (len(p.slots)+7)/8)
	if _, err := r.Read(header); err != nil {
		return nil, common.NewIoError("ReadBTreeHeaderPage.header", err)
	}
	for i := range p.slots {
		p.slots[i] = header[i/8]&(1<<uint(i%8)) != 0
	}
	return p, nil
}

// ---------------------------------------------------------------------
// BTreeRootPtrPage
// ---------------------------------------------------------------------

// BTreeRootPtrPage is the singleton at file offset 0 containing rootPid and
// firstHeaderPid (RootPtrPageSize = 9 bytes: 4-byte root page number,
// 1-byte root category, 4-byte first header page number; page number 0
// means none).
type BTreeRootPtrPage struct {
	btreePageBase
	root        common.PageID
	firstHeader common.PageID
}

// RootPtrPageSize is fixed regardless of the file's data page size. The
// spec's reference layout packs root+firstHeader into 8 bytes (4+4) with no
// category tag; we widen the root ref by one byte to carry its page
// category (LEAF vs. INTERNAL) so a fresh open can tell which kind of page
// sits at the root without first reading it — see DESIGN.md.
const RootPtrPageSize = 9

func NewBTreeRootPtrPage(pid common.BTreePageID) *BTreeRootPtrPage {
	return &BTreeRootPtrPage{btreePageBase: btreePageBase{pid: pid, pageSize: RootPtrPageSize}}
}

func (p *BTreeRootPtrPage) ID() common.PageID             { return p.pid }
func (p *BTreeRootPtrPage) RootID() common.PageID          { return p.root }
func (p *BTreeRootPtrPage) FirstHeaderID() common.PageID   { return p.firstHeader }
func (p *BTreeRootPtrPage) SetRootID(pid common.PageID)    { p.root = pid; p.dirty = true }
func (p *BTreeRootPtrPage) SetFirstHeaderID(pid common.PageID) { p.firstHeader = pid; p.dirty = true }

func (p *BTreeRootPtrPage) GetBeforeImage() Page {
	clone, _ := ReadBTreeRootPtrPage(p.pid, p.before)
	return clone
}
func (p *BTreeRootPtrPage) SetBeforeImage() { p.before = p.GetPageData() }

func (p *BTreeRootPtrPage) GetPageData() []byte {
	buf := new(bytes.Buffer)
	rootNo, rootCat := encodeRef(p.pid.TableID(), p.root)
	_ = binary.Write(buf, binary.LittleEndian, rootNo)
	buf.WriteByte(rootCat)
	firstNo, _ := encodeRef(p.pid.TableID(), p.firstHeader)
	_ = binary.Write(buf, binary.LittleEndian, firstNo)
	out := make([]byte, RootPtrPageSize)
	copy(out, buf.Bytes())
	return out
}

func ReadBTreeRootPtrPage(pid common.BTreePageID, data []byte) (*BTreeRootPtrPage, error) {
	p := NewBTreeRootPtrPage(pid)
	if len(data) < RootPtrPageSize {
		data = append(data, make([]byte, RootPtrPageSize-len(data))...)
	}
	rootNo := binary.LittleEndian.Uint32(data[0:4])
	rootCat := data[4]
	p.root = decodeRef(pid.TableID(), rootNo, rootCat)
	firstNo := binary.LittleEndian.Uint32(data[5:9])
	p.firstHeader = decodeRef(pid.TableID(), firstNo, byte(common.Header))
	return p, nil
}
