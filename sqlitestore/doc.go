// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package sqlitestore persists terminal loopprof events to SQLite, using the
// pure Go modernc.org/sqlite driver.
//
// Events are snapshotted on the loop goroutine, when they complete or fail,
// then written by a background writer, which groups rows into transactions.
// Use [Store.Flush] to wait for pending rows, e.g. before reading them back.
//
//	store, err := sqlitestore.Open(ctx, "events.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	detach, err := store.Attach(proxy)
//	if err != nil {
//	    return err
//	}
//	defer detach()
package sqlitestore
