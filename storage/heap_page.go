package storage

import (
	"bytes"

	"github.com/intellect4all/reldb/common"
)

// HeapPage is a slot header (bitmap of occupied slots) followed by
// slot-indexed tuple slots of TupleDesc.Size() bytes each.
//
//	numSlots = floor((pageSize*8) / (tupleSize*8 + 1))
//
// The header is ceil(numSlots/8) bytes, bit i set iff slot i is occupied,
// little-endian within each byte (bit 0 of byte 0 is slot 0).
type HeapPage struct {
	pid       common.HeapPageID
	desc      *common.TupleDesc
	pageSize  int
	numSlots  int
	occupied  []bool
	tuples    []*common.Tuple
	dirty     bool
	dirtyBy   common.TransactionID
	hasDirty  bool
	before    []byte
}

// NumHeapSlots returns how many fixed-length tuples fit on a page of the
// given size for the given schema.
func NumHeapSlots(pageSize int, desc *common.TupleDesc) int {
	tupleSize := desc.Size()
	if tupleSize <= 0 {
		return 0
	}
	return (pageSize * 8) / (tupleSize*8 + 1)
}

func heapHeaderSize(numSlots int) int {
	return (numSlots + 7) / 8
}

// NewHeapPage constructs an empty heap page.
func NewHeapPage(pid common.HeapPageID, pageSize int, desc *common.TupleDesc) *HeapPage {
	numSlots := NumHeapSlots(pageSize, desc)
	return &HeapPage{
		pid:      pid,
		desc:     desc,
		pageSize: pageSize,
		numSlots: numSlots,
		occupied: make([]bool, numSlots),
		tuples:   make([]*common.Tuple, numSlots),
	}
}

// ReadHeapPage deserializes a page image produced by GetPageData.
func ReadHeapPage(pid common.HeapPageID, pageSize int, desc *common.TupleDesc, data []byte) (*HeapPage, error) {
	p := NewHeapPage(pid, pageSize, desc)
	headerSize := heapHeaderSize(p.numSlots)
	if len(data) < headerSize {
		return nil, common.NewDbError("ReadHeapPage", common.NewArgumentError("page image too short"))
	}
	for slot := 0; slot < p.numSlots; slot++ {
		byteIdx := slot / 8
		bitIdx := uint(slot % 8)
		if data[byteIdx]&(1<<bitIdx) != 0 {
			p.occupied[slot] = true
		}
	}
	r := bytes.NewReader(data[headerSize:])
	tupleSize := desc.Size()
	for slot := 0; slot < p.numSlots; slot++ {
		if !p.occupied[slot] {
			if _, err := r.Seek(int64(tupleSize), 1); err != nil {
				return nil, err
			}
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

func (p *HeapPage) ID() common.PageID { return p.pid }

func (p *HeapPage) NumSlots() int { return p.numSlots }

func (p *HeapPage) NumEmptySlots() int {
	n := 0
	for _, occ := range p.occupied {
		if !occ {
			n++
		}
	}
	return n
}

func (p *HeapPage) IsSlotUsed(slot int) bool {
	return slot >= 0 && slot < p.numSlots && p.occupied[slot]
}

// InsertTuple places t into the first free slot, sets its RecordID, and
// returns the slot used. Returns a DbError if the page is full.
func (p *HeapPage) InsertTuple(t *common.Tuple) (int, error) {
	if !p.desc.Equals(t.Desc) {
		return -1, common.NewDbError("HeapPage.InsertTuple", common.NewArgumentError("tuple desc mismatch"))
	}
	for slot := 0; slot < p.numSlots; slot++ {
		if p.occupied[slot] {
			continue
		}
		p.occupied[slot] = true
		rid := common.RecordID{PID: p.pid, Slot: slot}
		t.Rid = &rid
		p.tuples[slot] = t
		p.dirty = true
		return slot, nil
	}
	return -1, common.NewDbError("HeapPage.InsertTuple", common.NewArgumentError("page full"))
}

// DeleteTuple clears the slot named by t.Rid.
func (p *HeapPage) DeleteTuple(t *common.Tuple) error {
	if t.Rid == nil {
		return common.NewDbError("HeapPage.DeleteTuple", common.NewArgumentError("tuple has no record id"))
	}
	slot := t.Rid.Slot
	if slot < 0 || slot >= p.numSlots || !p.occupied[slot] {
		return common.NewDbError("HeapPage.DeleteTuple", common.NewArgumentError("slot %d not occupied", slot))
	}
	p.occupied[slot] = false
	p.tuples[slot] = nil
	p.dirty = true
	return nil
}

// Tuples returns the live tuples on the page in slot order.
func (p *HeapPage) Tuples() []*common.Tuple {
	out := make([]*common.Tuple, 0, len(p.tuples))
	for _, t := range p.tuples {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (p *HeapPage) IsDirty() bool { return p.dirty }

func (p *HeapPage) MarkDirty(dirty bool, tid common.TransactionID) {
	p.dirty = dirty
	p.hasDirty = dirty
	if dirty {
		p.dirtyBy = tid
	}
}

func (p *HeapPage) DirtiedBy() (common.TransactionID, bool) { return p.dirtyBy, p.hasDirty }

func (p *HeapPage) GetBeforeImage() Page {
	clone, _ := ReadHeapPage(p.pid, p.pageSize, p.desc, p.before)
	return clone
}

func (p *HeapPage) SetBeforeImage() {
	p.before = p.GetPageData()
}

// GetPageData serializes the page to a fixed pageSize byte block: the slot
// bitmap (little-endian within each byte), followed by the zero-padded
// slot array.
func (p *HeapPage) GetPageData() []byte {
	headerSize := heapHeaderSize(p.numSlots)
	tupleSize := p.desc.Size()
	buf := make([]byte, p.pageSize)
	for slot := 0; slot < p.numSlots; slot++ {
		if !p.occupied[slot] {
			continue
		}
		byteIdx := slot / 8
		bitIdx := uint(slot % 8)
		buf[byteIdx] |= 1 << bitIdx
	}
	offset := headerSize
	for slot := 0; slot < p.numSlots; slot++ {
		if p.occupied[slot] {
			slotBuf := bytes.NewBuffer(buf[offset:offset])
			_ = p.tuples[slot].WriteTo(slotBuf)
		}
		offset += tupleSize
	}
	return buf
}
