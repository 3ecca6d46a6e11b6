package lockmanager

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/intellect4all/reldb/common"
)

func newTestManager() *Manager {
	return New(time.Millisecond, zerolog.Nop())
}

// TestLockUpgradeInPlace covers the lock-upgrade scenario: T1 holds Shared
// on P, then requests Exclusive on P with no other holder. The upgrade
// should grant immediately in place rather than block behind itself.
func TestLockUpgradeInPlace(t *testing.T) {
	m := newTestManager()
	t1 := common.NewTransactionID()
	pid := common.NewHeapPageID(1, 0)

	require.NoError(t, m.Acquire(t1, pid, Shared))
	mode, held := m.HoldsLock(t1, pid)
	require.True(t, held)
	require.Equal(t, Shared, mode)

	done := make(chan error, 1)
	go func() { done <- m.Acquire(t1, pid, Exclusive) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("upgrade should grant immediately for the sole holder")
	}

	mode, held = m.HoldsLock(t1, pid)
	require.True(t, held)
	require.Equal(t, Exclusive, mode)
}

// TestSharedLocksFromMultipleTransactionsCoexist is the non-conflicting
// companion to the upgrade scenario: distinct transactions can each hold
// Shared on the same page simultaneously, and an Exclusive request from a
// third transaction must wait until both release.
func TestSharedLocksFromMultipleTransactionsCoexist(t *testing.T) {
	m := newTestManager()
	t1, t2, t3 := common.NewTransactionID(), common.NewTransactionID(), common.NewTransactionID()
	pid := common.NewHeapPageID(1, 0)

	require.NoError(t, m.Acquire(t1, pid, Shared))
	require.NoError(t, m.Acquire(t2, pid, Shared))

	blocked := make(chan error, 1)
	go func() { blocked <- m.Acquire(t3, pid, Exclusive) }()

	select {
	case <-blocked:
		t.Fatal("exclusive request should block while shared holders remain")
	case <-time.After(20 * time.Millisecond):
	}

	m.Release(t1, pid)
	m.Release(t2, pid)

	select {
	case err := <-blocked:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("exclusive request should grant once every shared holder releases")
	}
}

// TestDeadlockDetectionAbortsExactlyOne covers the deadlock scenario: T1
// holds X on P1 and requests X on P2; T2 holds X on P2 and requests X on
// P1. Exactly one request must fail with TransactionAbortedError; the
// other succeeds once the abort releases the victim's locks.
func TestDeadlockDetectionAbortsExactlyOne(t *testing.T) {
	m := newTestManager()
	t1, t2 := common.NewTransactionID(), common.NewTransactionID()
	p1, p2 := common.NewHeapPageID(1, 0), common.NewHeapPageID(1, 1)

	require.NoError(t, m.Acquire(t1, p1, Exclusive))
	require.NoError(t, m.Acquire(t2, p2, Exclusive))

	errs := make(chan error, 2)
	go func() { errs <- m.Acquire(t1, p2, Exclusive) }()
	go func() { errs <- m.Acquire(t2, p1, Exclusive) }()

	var aborted, granted int
	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			var abortErr *common.TransactionAbortedError
			if errors.As(err, &abortErr) {
				aborted++
				m.ReleaseAll(abortErr.TID)
			} else {
				require.NoError(t, err)
				granted++
			}
		case <-time.After(3 * time.Second):
			t.Fatal("deadlock was never resolved")
		}
	}

	require.Equal(t, 1, aborted, "exactly one request should be chosen as the deadlock victim")
	require.Equal(t, 1, granted, "the other request should succeed once the victim's locks are released")
}

// TestReleaseAllDropsEveryLock checks the bookkeeping ReleaseAll relies on
// during abort/commit: every page a transaction holds is cleared in one
// call, and its waiting-on entry is cleared too.
func TestReleaseAllDropsEveryLock(t *testing.T) {
	m := newTestManager()
	tid := common.NewTransactionID()
	p1, p2 := common.NewHeapPageID(1, 0), common.NewHeapPageID(1, 1)

	require.NoError(t, m.Acquire(tid, p1, Shared))
	require.NoError(t, m.Acquire(tid, p2, Exclusive))

	m.ReleaseAll(tid)

	_, held := m.HoldsLock(tid, p1)
	require.False(t, held)
	_, held = m.HoldsLock(tid, p2)
	require.False(t, held)
}
