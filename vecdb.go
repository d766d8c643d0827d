package vecdb

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vecdb-io/vecdb/distance"
	"github.com/vecdb-io/vecdb/wal"
)

// DB is a registry of named collections with optional WAL durability.
// All methods are safe for concurrent use.
type DB struct {
	mu          sync.RWMutex
	collections map[string]*Collection

	// wal, logger and metrics are set once in New and never reassigned, so
	// they are read without holding mu.
	wal     *wal.WAL
	logger  *Logger
	metrics MetricsCollector
}

// CollectionInfo describes a collection without exposing its contents.
type CollectionInfo struct {
	Name      string
	Dimension int
	Metric    distance.Metric
	Count     int
}

// New creates a DB. Without WithWAL the database is purely in-memory.
// With WithWAL every mutation is logged before being applied; with
// WithRestore(true) an existing log is replayed to rebuild state first.
func New(optFns ...Option) (*DB, error) {
	opts := applyOptions(optFns...)

	if opts.restore && opts.walDir == "" {
		return nil, fmt.Errorf("restore requires a WAL: %w", ErrPersistence)
	}

	db := &DB{
		collections: make(map[string]*Collection),
		logger:      opts.logger,
		metrics:     opts.metricsCollector,
	}

	if opts.walDir != "" {
		walOpts := append([]func(o *wal.Options){func(o *wal.Options) {
			o.Path = opts.walDir
		}}, opts.walOptions...)

		w, err := wal.New(walOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open WAL: %w", err)
		}
		db.wal = w

		if opts.restore {
			if err := db.replayWAL(); err != nil {
				_ = w.Close()
				return nil, err
			}
		}
	}

	return db, nil
}

// CreateCollection creates a new empty collection. The name must be unused,
// the dimension positive and the metric one of the supported metrics.
func (db *DB) CreateCollection(ctx context.Context, name string, dimension int, metric distance.Metric) (*Collection, error) {
	if dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dimension}
	}

	scoreFn, err := distance.Provider(metric)
	if err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.collections[name]; ok {
		db.logger.LogCreateCollection(ctx, name, dimension, metric.String(), ErrAlreadyExists)
		return nil, fmt.Errorf("collection %q: %w", name, ErrAlreadyExists)
	}

	if err := db.appendWAL(&wal.Entry{
		Type:       wal.OpCreateCollection,
		Collection: name,
		Dimension:  uint32(dimension),
		Metric:     metric.String(),
	}); err != nil {
		db.logger.LogCreateCollection(ctx, name, dimension, metric.String(), err)
		db.metrics.RecordError("create_collection")
		return nil, err
	}

	c := newCollection(db, name, dimension, metric, scoreFn)
	db.collections[name] = c

	db.logger.LogCreateCollection(ctx, name, dimension, metric.String(), nil)
	return c, nil
}

// Collection returns the collection with the given name.
func (db *DB) Collection(name string) (*Collection, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	c, ok := db.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", name, ErrNotFound)
	}
	return c, nil
}

// DropCollection removes a collection and all its embeddings.
func (db *DB) DropCollection(ctx context.Context, name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.collections[name]
	if !ok {
		db.logger.LogDropCollection(ctx, name, ErrNotFound)
		return fmt.Errorf("collection %q: %w", name, ErrNotFound)
	}

	// Take the collection's write lock so in-flight mutations drain before
	// the drop is logged: WAL order then matches apply order exactly.
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := db.appendWAL(&wal.Entry{
		Type:       wal.OpDropCollection,
		Collection: name,
	}); err != nil {
		db.logger.LogDropCollection(ctx, name, err)
		db.metrics.RecordError("drop_collection")
		return err
	}

	c.dropped = true
	delete(db.collections, name)

	db.logger.LogDropCollection(ctx, name, nil)
	return nil
}

// Collections returns a description of every collection, sorted by name.
func (db *DB) Collections() []CollectionInfo {
	db.mu.RLock()
	defer db.mu.RUnlock()

	infos := make([]CollectionInfo, 0, len(db.collections))
	for _, c := range db.collections {
		infos = append(infos, CollectionInfo{
			Name:      c.name,
			Dimension: c.dimension,
			Metric:    c.metric,
			Count:     c.Size(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})

	return infos
}

// Close releases the WAL. The in-memory state remains readable but further
// mutations on a WAL-backed database will fail with a persistence error.
// Close is idempotent.
func (db *DB) Close() error {
	if db.wal == nil {
		return nil
	}

	if err := db.wal.Close(); err != nil {
		return fmt.Errorf("failed to close WAL: %w", err)
	}
	return nil
}

// appendWAL logs an entry and confirms durability before the caller mutates
// memory. A nil WAL (in-memory mode) is a successful no-op.
func (db *DB) appendWAL(entry *wal.Entry) error {
	if db.wal == nil {
		return nil
	}

	start := time.Now()
	if err := db.wal.Append(entry); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	db.metrics.RecordWALAppend(time.Since(start))
	return nil
}

// appendWALBatch logs multiple entries with a single flush and fsync.
func (db *DB) appendWALBatch(entries []*wal.Entry) error {
	if db.wal == nil {
		return nil
	}

	start := time.Now()
	if err := db.wal.AppendBatch(entries); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	db.metrics.RecordWALAppend(time.Since(start))
	return nil
}
