package vecdb

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/vecdb-io/vecdb/distance"
	"github.com/vecdb-io/vecdb/wal"
)

// Embedding is a stored vector with its identifier and metadata.
// For cosine collections the vector is stored L2-normalized.
type Embedding struct {
	ID       string
	Vector   []float32
	Metadata map[string]string

	// ord is the insertion position, used for deterministic tie-breaking
	// in search. Preserved across updates of the same ID.
	ord int
}

// Collection holds fixed-dimension embeddings under a single distance metric.
// All methods are safe for concurrent use; reads run concurrently, writes
// serialize per collection.
type Collection struct {
	name      string
	dimension int
	metric    distance.Metric
	scoreFn   distance.Func
	db        *DB

	mu         sync.RWMutex
	embeddings map[string]*Embedding
	nextOrd    int

	// dropped is set under both the registry and collection write locks
	// when the collection is removed, so writers that raced past the
	// registry lookup fail instead of mutating an orphan.
	dropped bool
}

func newCollection(db *DB, name string, dimension int, metric distance.Metric, scoreFn distance.Func) *Collection {
	return &Collection{
		name:       name,
		dimension:  dimension,
		metric:     metric,
		scoreFn:    scoreFn,
		db:         db,
		embeddings: make(map[string]*Embedding),
	}
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Dimension returns the fixed vector dimension.
func (c *Collection) Dimension() int { return c.dimension }

// Metric returns the collection's distance metric.
func (c *Collection) Metric() distance.Metric { return c.metric }

// Size returns the number of embeddings.
func (c *Collection) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.embeddings)
}

// prepareVector validates the dimension and, for cosine, returns a normalized
// copy. For other metrics the raw vector is cloned so later caller mutations
// cannot reach stored state.
func (c *Collection) prepareVector(vector []float32) ([]float32, error) {
	if len(vector) != c.dimension {
		return nil, &ErrDimensionMismatch{Expected: c.dimension, Actual: len(vector)}
	}

	if c.metric.Normalizes() {
		normalized, ok := distance.NormalizeL2Copy(vector)
		if !ok {
			return nil, ErrZeroVector
		}
		return normalized, nil
	}

	return slices.Clone(vector), nil
}

// Upsert inserts or replaces the embedding with the given id. An existing
// embedding keeps its insertion position; its vector and metadata are fully
// replaced. The raw (pre-normalization) vector is what gets logged.
func (c *Collection) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	start := time.Now()

	stored, err := c.prepareVector(vector)
	if err != nil {
		c.db.logger.LogUpsert(ctx, c.name, id, err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dropped {
		err := fmt.Errorf("collection %q: %w", c.name, ErrNotFound)
		c.db.logger.LogUpsert(ctx, c.name, id, err)
		return err
	}

	if err := c.db.appendWAL(&wal.Entry{
		Type:       wal.OpUpsert,
		Collection: c.name,
		ID:         id,
		Vector:     vector,
		Metadata:   metadata,
	}); err != nil {
		c.db.logger.LogUpsert(ctx, c.name, id, err)
		c.db.metrics.RecordError("upsert")
		return err
	}

	c.upsertLocked(id, stored, metadata)

	c.db.logger.LogUpsert(ctx, c.name, id, nil)
	c.db.metrics.RecordUpsert(c.name, time.Since(start))
	return nil
}

// BatchUpsert inserts or replaces multiple embeddings with a single WAL
// flush. All vectors are validated before anything is logged or applied, so
// the batch is all-or-nothing.
func (c *Collection) BatchUpsert(ctx context.Context, embeddings []Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	start := time.Now()

	prepared := make([][]float32, len(embeddings))
	entries := make([]*wal.Entry, len(embeddings))
	for i, e := range embeddings {
		stored, err := c.prepareVector(e.Vector)
		if err != nil {
			c.db.logger.LogBatchUpsert(ctx, c.name, len(embeddings), err)
			return fmt.Errorf("embedding %q: %w", e.ID, err)
		}
		prepared[i] = stored
		entries[i] = &wal.Entry{
			Type:       wal.OpUpsert,
			Collection: c.name,
			ID:         e.ID,
			Vector:     e.Vector,
			Metadata:   e.Metadata,
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dropped {
		err := fmt.Errorf("collection %q: %w", c.name, ErrNotFound)
		c.db.logger.LogBatchUpsert(ctx, c.name, len(embeddings), err)
		return err
	}

	if err := c.db.appendWALBatch(entries); err != nil {
		c.db.logger.LogBatchUpsert(ctx, c.name, len(embeddings), err)
		c.db.metrics.RecordError("batch_upsert")
		return err
	}

	for i, e := range embeddings {
		c.upsertLocked(e.ID, prepared[i], e.Metadata)
	}

	c.db.logger.LogBatchUpsert(ctx, c.name, len(embeddings), nil)
	c.db.metrics.RecordUpsert(c.name, time.Since(start))
	return nil
}

// upsertLocked applies a prepared upsert. Caller must hold c.mu.
func (c *Collection) upsertLocked(id string, stored []float32, metadata map[string]string) {
	ord := c.nextOrd
	if existing, ok := c.embeddings[id]; ok {
		ord = existing.ord
	} else {
		c.nextOrd++
	}

	c.embeddings[id] = &Embedding{
		ID:       id,
		Vector:   stored,
		Metadata: maps.Clone(metadata),
		ord:      ord,
	}
}

// Delete removes the embedding with the given id. Deleting an absent id is a
// no-op and produces no log entry.
func (c *Collection) Delete(ctx context.Context, id string) error {
	start := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dropped {
		err := fmt.Errorf("collection %q: %w", c.name, ErrNotFound)
		c.db.logger.LogDelete(ctx, c.name, id, err)
		return err
	}

	if _, ok := c.embeddings[id]; !ok {
		return nil
	}

	if err := c.db.appendWAL(&wal.Entry{
		Type:       wal.OpDeleteEmbedding,
		Collection: c.name,
		ID:         id,
	}); err != nil {
		c.db.logger.LogDelete(ctx, c.name, id, err)
		c.db.metrics.RecordError("delete")
		return err
	}

	delete(c.embeddings, id)

	c.db.logger.LogDelete(ctx, c.name, id, nil)
	c.db.metrics.RecordDelete(c.name, time.Since(start))
	return nil
}

// Get returns a copy of the stored embedding, or false if the id is absent.
// For cosine collections the returned vector is the normalized form.
func (c *Collection) Get(id string) (Embedding, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.embeddings[id]
	if !ok {
		return Embedding{}, false
	}

	return Embedding{
		ID:       e.ID,
		Vector:   slices.Clone(e.Vector),
		Metadata: maps.Clone(e.Metadata),
	}, true
}
