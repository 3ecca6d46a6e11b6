// Package lockmanager implements page-granular strict two-phase locking:
// shared/exclusive locks per PageID, upgrade-in-place for a sole holder,
// and wait-for-graph deadlock detection over blocked requesters.
//
// Grounded on the teacher's btree/latch.go PageLatch/LatchManager, which
// gives every page an independent sync.RWMutex for latch-coupled tree
// traversal. A raw RWMutex can neither detect deadlock nor express the
// spec's upgrade/downgrade/idempotent-reacquire rules, so this package
// replaces the mutex with an explicit per-page holder table the lock
// manager reasons about directly, polled with backoff instead of blocking
// on the mutex itself.
package lockmanager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/intellect4all/reldb/common"
)

// Mode is the strength of a page lock.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

type holder struct {
	tid  common.TransactionID
	mode Mode
}

// Manager grants and releases page locks for transactions, blocking a
// requester (with periodic deadlock checks) until its request can be
// granted or the transaction is chosen as a deadlock victim.
type Manager struct {
	mu sync.Mutex

	holders map[string][]holder            // pageID string -> holders
	waiting map[common.TransactionID]string // tid -> pageID it is blocked on

	backoff time.Duration
	log     zerolog.Logger
}

// New returns a lock manager that polls for grantability every backoff
// interval while a requester is blocked.
func New(backoff time.Duration, log zerolog.Logger) *Manager {
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	return &Manager{
		holders: make(map[string][]holder),
		waiting: make(map[common.TransactionID]string),
		backoff: backoff,
		log:     log,
	}
}

// Acquire blocks tid until it holds mode on pid, returning
// TransactionAbortedError if granting would complete a deadlock cycle.
func (m *Manager) Acquire(tid common.TransactionID, pid common.PageID, mode Mode) error {
	key := pid.String()
	for {
		m.mu.Lock()
		if m.tryGrantLocked(tid, key, mode) {
			delete(m.waiting, tid)
			m.mu.Unlock()
			return nil
		}
		m.waiting[tid] = key
		if m.hasCycleLocked(tid, key, make(map[common.TransactionID]bool)) {
			delete(m.waiting, tid)
			m.mu.Unlock()
			m.log.Warn().Str("tid", tid.String()).Str("page", key).Msg("deadlock detected, aborting transaction")
			return &common.TransactionAbortedError{TID: tid, Reason: "deadlock detected"}
		}
		m.mu.Unlock()
		time.Sleep(m.backoff)
	}
}

// tryGrantLocked implements the grant table: no holders grants outright; a
// sole existing holder that is tid itself grants an upgrade or is a no-op
// for a downgrade/reacquire; any other transaction holding Exclusive
// always denies; a set of Shared-only holders grants a Shared request and
// denies an Exclusive request unless tid is the only holder.
func (m *Manager) tryGrantLocked(tid common.TransactionID, key string, mode Mode) bool {
	hs := m.holders[key]

	if len(hs) == 0 {
		m.holders[key] = []holder{{tid: tid, mode: mode}}
		return true
	}

	if len(hs) == 1 && hs[0].tid.Equals(tid) {
		if mode == Exclusive || hs[0].mode == Exclusive {
			m.holders[key] = []holder{{tid: tid, mode: Exclusive}}
		}
		return true
	}

	soleHolderIsSelf := true
	for _, h := range hs {
		if !h.tid.Equals(tid) {
			soleHolderIsSelf = false
			break
		}
	}
	if soleHolderIsSelf {
		// tid already holds Shared alongside... cannot happen since a
		// transaction never double-registers; treated as granted above.
		return true
	}

	for _, h := range hs {
		if h.mode == Exclusive && !h.tid.Equals(tid) {
			return false
		}
	}
	// every holder (other than possibly tid) holds Shared.
	if mode == Shared {
		already := false
		for _, h := range hs {
			if h.tid.Equals(tid) {
				already = true
			}
		}
		if !already {
			m.holders[key] = append(hs, holder{tid: tid, mode: Shared})
		}
		return true
	}
	// mode == Exclusive and at least one other transaction holds Shared.
	return false
}

// hasCycleLocked runs a DFS over the wait-for graph starting from the
// requester: tid waits on key's current holders, which themselves may be
// waiting on other pages, transitively. A cycle back to the original
// requester means granting this request can never happen without
// breaking a cycle, so the requester is aborted instead of left blocked
// forever.
func (m *Manager) hasCycleLocked(origin common.TransactionID, key string, visited map[common.TransactionID]bool) bool {
	for _, h := range m.holders[key] {
		if h.tid.Equals(origin) {
			continue
		}
		if visited[h.tid] {
			continue
		}
		visited[h.tid] = true
		if h.tid.Equals(origin) {
			return true
		}
		waitKey, blocked := m.waiting[h.tid]
		if !blocked {
			continue
		}
		for _, hh := range m.holders[waitKey] {
			if hh.tid.Equals(origin) {
				return true
			}
		}
		if m.hasCycleLocked(origin, waitKey, visited) {
			return true
		}
	}
	return false
}

// Release drops tid's lock on pid, if any.
func (m *Manager) Release(tid common.TransactionID, pid common.PageID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pid.String()
	hs := m.holders[key]
	out := hs[:0]
	for _, h := range hs {
		if !h.tid.Equals(tid) {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		delete(m.holders, key)
	} else {
		m.holders[key] = out
	}
}

// ReleaseAll drops every lock tid holds, used on transaction commit/abort.
func (m *Manager) ReleaseAll(tid common.TransactionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, hs := range m.holders {
		out := hs[:0]
		for _, h := range hs {
			if !h.tid.Equals(tid) {
				out = append(out, h)
			}
		}
		if len(out) == 0 {
			delete(m.holders, key)
		} else {
			m.holders[key] = out
		}
	}
	delete(m.waiting, tid)
}

// HoldsLock reports whether tid currently holds any lock on pid, and at
// what mode (Exclusive wins if both were somehow recorded).
func (m *Manager) HoldsLock(tid common.TransactionID, pid common.PageID) (Mode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	best := Shared
	found := false
	for _, h := range m.holders[pid.String()] {
		if h.tid.Equals(tid) {
			found = true
			if h.mode == Exclusive {
				best = Exclusive
			}
		}
	}
	return best, found
}
