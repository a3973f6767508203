// Package storage provides the durable snapshot backends behind the checkpoint store.
//
// Every backend persists the complete set of harvested records as one
// snapshot and replaces the previous snapshot atomically:
//   - JSONFile writes an indented JSON object to a temporary file, syncs it
//     and renames it over the previous snapshot
//   - SQLite rewrites the records table inside a single transaction
//
// A backend with no prior state loads an empty snapshot. Missing state is a
// valid starting point, not an error.
//
// Usage:
//
//	backend, err := storage.Open(storage.KindJSON, "eudamed_manufacturers.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	snap, err := backend.Load(ctx)
//	...
//	err = backend.Save(ctx, snap)
package storage
