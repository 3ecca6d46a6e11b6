// Command benchmark drives a configurable number of concurrent
// transactions, each inserting a batch of rows into a shared B+ tree
// file, to exercise the lock manager's blocking-and-deadlock-detection
// path under real contention. Grounded on the teacher's throughput
// driver, generalized from a single-goroutine loop to a
// golang.org/x/sync/errgroup fan-out so the buffer pool and lock manager
// see genuinely concurrent transactions rather than simulated ones.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/intellect4all/reldb/bufferpool"
	"github.com/intellect4all/reldb/catalog"
	"github.com/intellect4all/reldb/common"
	"github.com/intellect4all/reldb/lockmanager"
	"github.com/intellect4all/reldb/storage"
	"github.com/intellect4all/reldb/txn"
)

func main() {
	workers := flag.Int("workers", 8, "concurrent transactions")
	rowsPer := flag.Int("rows", 200, "rows inserted per transaction")
	flag.Parse()

	cfg := common.DefaultConfig("./data-txbench")
	backoff, err := time.ParseDuration(cfg.LockWaitBackoff)
	if err != nil {
		common.Log.Fatal().Err(err).Msg("parsing lock wait backoff")
	}

	fs := afero.NewMemMapFs()
	cat := catalog.New()
	locks := lockmanager.New(backoff, common.Log)
	pool := bufferpool.New(cat, locks, cfg.BufferPoolPages, common.Log)

	desc := common.NewTupleDesc(
		common.FieldSpec{Name: "id", Type: common.IntType},
		common.FieldSpec{Name: "payload", Type: common.StringType},
	)
	file, err := storage.NewBTreeFile(fs, "/bench.db", desc, 0, cfg.PageSize, pool)
	if err != nil {
		common.Log.Fatal().Err(err).Msg("opening bench file")
	}
	cat.AddTable(file, "bench", "id")

	start := time.Now()
	g, _ := errgroup.WithContext(context.Background())
	aborted := make([]int32, *workers)
	for w := 0; w < *workers; w++ {
		w := w
		g.Go(func() error {
			for attempt := 0; attempt < 5; attempt++ {
				t := txn.Begin(pool)
				failed := false
				for i := 0; i < *rowsPer; i++ {
					row := common.NewTuple(desc)
					_ = row.SetField(0, common.IntField{Value: int32(w*(*rowsPer) + i)})
					_ = row.SetField(1, common.NewStringField(fmt.Sprintf("w%d-r%d", w, i)))
					if _, err := pool.InsertTuple(t.ID, file.ID(), row); err != nil {
						failed = true
						break
					}
				}
				if failed {
					_ = t.Abort()
					aborted[w]++
					continue
				}
				return t.Commit()
			}
			return fmt.Errorf("worker %d exhausted retries under contention", w)
		})
	}
	if err := g.Wait(); err != nil {
		common.Log.Error().Err(err).Msg("txbench worker failed")
	}

	elapsed := time.Since(start)
	var totalAborts int32
	for _, n := range aborted {
		totalAborts += n
	}
	stats := pool.Stats()
	fmt.Printf("workers=%d rows/worker=%d elapsed=%s retries=%d\n", *workers, *rowsPer, elapsed, totalAborts)
	fmt.Printf("buffer pool stats: reads=%d writes=%d hits=%d evictions=%d\n",
		stats.PageReads, stats.PageWrites, stats.CacheHits, stats.Evictions)
}
