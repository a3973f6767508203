// Package checkpoint provides the durable record of harvested entries that
// lets a crawl resume after crashes, restarts and transient failures.
//
// The Store is loaded once at the start of every crawl session and is the
// sole source of truth for "already harvested":
//   - Contains answers in O(1) whether a RecordID was stored by any earlier run
//   - Merge adds a page worth of new records and never overwrites an entry
//   - Flush rewrites the complete snapshot through the storage backend
//
// Flush is called after every page, so a crash loses at most the records
// gathered since the previous page. Snapshots are replaced atomically by the
// backend, which rules out a half-written checkpoint.
package checkpoint
