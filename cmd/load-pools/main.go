package main

import (
	"flag"
	"fmt"
	"sort"
	"time"

	"github.com/Fallback-Solutions/universal-router/internal/config"
	"github.com/Fallback-Solutions/universal-router/internal/logging"
	"github.com/Fallback-Solutions/universal-router/internal/storage"
)

func main() {
	parquetFile := flag.String("file", "", "Path to parquet pool snapshot")
	export := flag.Bool("export", false, "write the cache to --file instead of importing it")
	block := flag.Uint64("block", 0, "block to export (default: newest cached)")
	batchSize := flag.Int("batch", 1000, "rows per read")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if *parquetFile == "" {
		logger.Fatal("Usage: load-pools --file <parquet_file> [--export --block N]")
	}

	db, err := storage.NewCacheDB(cfg.CacheDB)
	if err != nil {
		logger.WithError(err).Fatal("open cache")
	}
	defer db.Close()

	startTime := time.Now()

	if *export {
		n := *block
		if n == 0 {
			latest, ok := db.LatestBlock()
			if !ok {
				logger.Fatal("cache is empty, nothing to export")
			}
			n = latest
		}

		snap, err := db.LoadSnapshot(n)
		if err != nil {
			logger.WithError(err).Fatal("load snapshot")
		}
		if err := storage.WriteSnapshot(*parquetFile, n, snap); err != nil {
			logger.WithError(err).Fatal("write parquet")
		}
		fmt.Printf("📤 Exported %d pools at block %d to %s in %s\n", snap.Len(), n, *parquetFile, time.Since(startTime).Round(time.Millisecond))
		return
	}

	fmt.Printf("📥 Loading pool snapshot from %s...\n", *parquetFile)

	snaps, skipped, err := storage.ReadSnapshot(*parquetFile, *batchSize)
	if err != nil {
		logger.WithError(err).Fatal("read parquet")
	}

	blocks := make([]uint64, 0, len(snaps))
	for b := range snaps {
		blocks = append(blocks, b)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })

	total := 0
	for _, b := range blocks {
		snap := snaps[b]
		if err := db.BatchSet(b, snap); err != nil {
			logger.WithError(err).WithField("block", b).Fatal("store snapshot")
		}
		total += snap.Len()
		fmt.Printf("   block %d: %d pairs, %d pools, %d managed\n", b, len(snap.Pairs), len(snap.Pools), len(snap.Managed))
	}

	if skipped > 0 {
		logger.WithField("skipped", skipped).Warn("rows that failed to parse were skipped")
	}

	stats, err := db.GetStats()
	if err != nil {
		logger.WithError(err).Fatal("cache stats")
	}

	fmt.Printf("\n✅ Loaded %d pools across %d block(s) in %s\n", total, len(blocks), time.Since(startTime).Round(time.Millisecond))
	fmt.Printf("   Cache now holds %d pairs, %d pools, %d managed pools\n",
		stats["pair_entries"], stats["pool_entries"], stats["managed_pool_entries"])
}
