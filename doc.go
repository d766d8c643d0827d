// Package vecdb provides an in-memory vector database with write-ahead-log
// durability.
//
// A DB owns named collections of fixed-dimension embeddings with attached
// string metadata and supports exact nearest-neighbor search (full linear
// scan, no approximation).
//
// # Quick Start
//
//	db, _ := vecdb.New(vecdb.WithWAL("./data"))
//	defer db.Close()
//
//	db.CreateCollection(ctx, "docs", 3, distance.MetricDot)
//	c, _ := db.Collection("docs")
//	c.Upsert(ctx, "a", []float32{1, 0, 0}, map[string]string{"lang": "en"})
//	results, _ := c.Search(ctx, []float32{1, 0, 0}, 2)
//
// # Durability Model
//
// Every mutating operation is appended to the WAL and confirmed durable
// before the in-memory structure changes. Restarting with
// vecdb.WithRestore(true) replays the log in append order and rebuilds the
// registry and all collections exactly as they existed at the last
// successful append. Without the restore flag the database starts empty and
// keeps appending to the existing log.
//
// # Concurrency
//
// The registry and every collection carry independent read-write locks:
// reads (search, size) run concurrently, writes serialize per collection,
// and operations on unrelated collections never block each other beyond the
// WAL's sequential append.
package vecdb
