// Package bookcache keeps a local snapshot of recently viewed book
// summaries for the related-books view.
//
// The Manager persists a single bounded, time-limited snapshot of the
// books shown next to the book a reader last opened. It is a best-effort
// accelerator: every storage failure degrades to "no cache" and nothing
// the manager encounters is ever returned to the caller as an error.
//
// # Snapshot
//
// A snapshot records the current book, up to MaxViewportBooks ids that
// were on screen, the capture time, and up to MaxBooks book summaries.
// Capacity is enforced by keeping the first N items in caller order;
// callers supply books in priority order. A snapshot older than TTL is
// treated as absent and removed on the read that notices it.
//
// # Basic Usage
//
//	store := storage.NewMemoryStore(storage.DefaultQuotaBytes)
//	manager := bookcache.NewManager(store, bookcache.DefaultConfig(), logger)
//
//	// write-through after fresh data arrives
//	manager.Update(ctx, "gita", visibleIDs, relatedBooks)
//
//	// on the next page load
//	if res := manager.LoadFor(ctx, "gita"); res.OK() {
//		tiles := manager.CachedBooks(ctx, res.Snapshot.LastViewed.ViewportBookIDs)
//		...
//	}
//
// # Results
//
// Reads and writes return a Result. Internally a step may fail; the
// exported methods collapse every failure into StatusEmpty and keep the
// cause in Result.Reason for logging and tests.
//
// # Metrics
//
//   - bookcache_hits_total
//   - bookcache_misses_total{reason}
//   - bookcache_errors_total{operation}
//   - bookcache_writes_total
//   - bookcache_quota_evictions_total
//   - bookcache_snapshot_bytes
package bookcache
