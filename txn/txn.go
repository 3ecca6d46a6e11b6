// Package txn provides the thin transaction-lifecycle glue operators use
// to bracket a pipeline run: mint a TransactionID, then commit or abort it
// against the buffer pool once the pipeline has drained.
package txn

import (
	"github.com/intellect4all/reldb/bufferpool"
	"github.com/intellect4all/reldb/common"
)

// Transaction names a single unit of work against a BufferPool.
type Transaction struct {
	ID   common.TransactionID
	pool *bufferpool.BufferPool
	done bool
}

// Begin mints a fresh transaction bound to pool.
func Begin(pool *bufferpool.BufferPool) *Transaction {
	return &Transaction{ID: common.NewTransactionID(), pool: pool}
}

// Commit flushes every page this transaction dirtied and releases its
// locks. Calling Commit or Abort more than once is a no-op.
func (t *Transaction) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.pool.TransactionComplete(t.ID, true)
}

// Abort discards every page this transaction dirtied and releases its
// locks.
func (t *Transaction) Abort() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.pool.TransactionComplete(t.ID, false)
}
