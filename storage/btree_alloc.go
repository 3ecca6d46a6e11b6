package storage

import (
	"github.com/intellect4all/reldb/common"
)

// Page allocation for a BTreeFile. Pages are never physically removed from
// the file once it has grown to their offset; a page freed by a merge is
// instead marked free in its header page's bitmap and handed back out by a
// later split, so steady-state insert/delete churn does not grow the file
// without bound. Grounded on the teacher's free-page bookkeeping in
// btree/pager.go, generalized from an in-memory free list to the on-disk
// header-page chain the spec calls for.

// existingSlotCount returns how many of header's slots name page numbers
// that have actually been written to disk (as opposed to slots reserved
// for future growth within its [base, base+cap) range).
func (bf *BTreeFile) existingSlotCount(header *BTreeHeaderPage) int {
	n := bf.numPages - int(header.Base()) + 1
	if n < 0 {
		return 0
	}
	if n > header.NumSlots() {
		return header.NumSlots()
	}
	return n
}

func (bf *BTreeFile) growPageNo() int {
	bf.appendMu.Lock()
	defer bf.appendMu.Unlock()
	bf.numPages++
	return bf.numPages
}

// allocatePage returns a PageID for a fresh (or reclaimed) page of the
// given category, growing the file if no freed page is available for
// reuse. root must already be the dirtypages-shadowed root pointer page.
func (bf *BTreeFile) allocatePage(tid common.TransactionID, dp *dirtyPages, root *BTreeRootPtrPage, category common.PageCategory) (common.BTreePageID, error) {
	var last *BTreeHeaderPage
	headerPid := root.FirstHeaderID()
	for headerPid != nil {
		p, err := bf.getPage(tid, dp, headerPid, ReadWrite)
		if err != nil {
			return common.BTreePageID{}, err
		}
		header := p.(*BTreeHeaderPage)
		last = header
		existing := bf.existingSlotCount(header)
		for slot := 0; slot < existing; slot++ {
			if !header.IsSlotUsed(slot) {
				header.MarkSlotUsed(slot, true)
				dp.put(header)
				pageNo := int(header.Base()) + slot
				return common.NewBTreePageID(bf.tableID, pageNo, category), nil
			}
		}
		headerPid = header.Next()
	}

	if last != nil && bf.existingSlotCount(last) < last.NumSlots() {
		pageNo := bf.growPageNo()
		slot := pageNo - int(last.Base())
		last.MarkSlotUsed(slot, true)
		dp.put(last)
		return common.NewBTreePageID(bf.tableID, pageNo, category), nil
	}

	headerPageNo := bf.growPageNo()
	newHeaderPid := common.NewBTreePageID(bf.tableID, headerPageNo, common.Header)
	dataPageNo := bf.growPageNo()
	newHeader := NewBTreeHeaderPage(newHeaderPid, bf.pageSize, uint32(dataPageNo))
	newHeader.MarkSlotUsed(0, true)

	if last == nil {
		root.SetFirstHeaderID(newHeaderPid)
		root.MarkDirty(true, tid)
		dp.put(root)
	} else {
		last.SetNext(newHeaderPid)
		newHeader.SetPrev(last.ID())
		dp.put(last)
	}
	dp.put(newHeader)
	return common.NewBTreePageID(bf.tableID, dataPageNo, category), nil
}

// freePage marks pageNo's slot free in whichever header page owns its
// range, making it available for reuse by a later allocatePage.
func (bf *BTreeFile) freePage(tid common.TransactionID, dp *dirtyPages, root *BTreeRootPtrPage, pageNo int) error {
	headerPid := root.FirstHeaderID()
	for headerPid != nil {
		p, err := bf.getPage(tid, dp, headerPid, ReadWrite)
		if err != nil {
			return err
		}
		header := p.(*BTreeHeaderPage)
		base := int(header.Base())
		if pageNo >= base && pageNo < base+header.NumSlots() {
			header.MarkSlotUsed(pageNo-base, false)
			dp.put(header)
			return nil
		}
		headerPid = header.Next()
	}
	return common.NewDbError("BTreeFile.freePage", common.NewArgumentError("page %d not covered by any header", pageNo))
}
