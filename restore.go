package vecdb

import (
	"context"
	"fmt"

	"github.com/vecdb-io/vecdb/distance"
	"github.com/vecdb-io/vecdb/wal"
)

// replayWAL rebuilds the registry and all collections by applying log
// entries in append order. Replay bypasses logging (the entries are already
// durable). A semantically invalid entry means the log does not describe a
// consistent history, so replay aborts rather than guess.
//
// Replay runs inside New before the database is published, so the apply
// helpers mutate without taking locks.
func (db *DB) replayWAL() error {
	count, err := db.wal.Replay(func(entry wal.Entry) error {
		switch entry.Type {
		case wal.OpCreateCollection:
			return db.applyCreate(entry)
		case wal.OpUpsert:
			return db.applyUpsert(entry)
		case wal.OpDeleteEmbedding:
			return db.applyDelete(entry)
		case wal.OpDropCollection:
			return db.applyDrop(entry)
		default:
			return fmt.Errorf("unknown operation type %d", entry.Type)
		}
	})
	if err != nil {
		wrapped := fmt.Errorf("%w: %w", ErrCorruptLog, err)
		db.logger.LogRestore(context.Background(), count, wrapped)
		return wrapped
	}

	db.logger.LogRestore(context.Background(), count, nil)
	return nil
}

func (db *DB) applyCreate(entry wal.Entry) error {
	metric, err := distance.ParseMetric(entry.Metric)
	if err != nil {
		return err
	}
	if entry.Dimension == 0 {
		return &ErrInvalidDimension{Dimension: int(entry.Dimension)}
	}

	scoreFn, err := distance.Provider(metric)
	if err != nil {
		return err
	}

	if _, ok := db.collections[entry.Collection]; ok {
		return fmt.Errorf("collection %q: %w", entry.Collection, ErrAlreadyExists)
	}

	db.collections[entry.Collection] = newCollection(db, entry.Collection, int(entry.Dimension), metric, scoreFn)
	return nil
}

func (db *DB) applyUpsert(entry wal.Entry) error {
	c, ok := db.collections[entry.Collection]
	if !ok {
		return fmt.Errorf("collection %q: %w", entry.Collection, ErrNotFound)
	}

	// The log carries the raw vector; re-preparing it normalizes cosine
	// vectors exactly as the original upsert did.
	stored, err := c.prepareVector(entry.Vector)
	if err != nil {
		return fmt.Errorf("embedding %q: %w", entry.ID, err)
	}

	c.upsertLocked(entry.ID, stored, entry.Metadata)
	return nil
}

func (db *DB) applyDelete(entry wal.Entry) error {
	c, ok := db.collections[entry.Collection]
	if !ok {
		return fmt.Errorf("collection %q: %w", entry.Collection, ErrNotFound)
	}

	// A missing id mirrors the live no-op delete.
	delete(c.embeddings, entry.ID)
	return nil
}

func (db *DB) applyDrop(entry wal.Entry) error {
	if _, ok := db.collections[entry.Collection]; !ok {
		return fmt.Errorf("collection %q: %w", entry.Collection, ErrNotFound)
	}

	delete(db.collections, entry.Collection)
	return nil
}
