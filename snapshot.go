package vecdb

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/sync/errgroup"

	"github.com/vecdb-io/vecdb/blobstore"
	"github.com/vecdb-io/vecdb/distance"
)

const manifestName = "MANIFEST.json"

// SnapshotManifest describes one completed snapshot. It is written last, so
// a readable manifest implies every referenced blob is present.
type SnapshotManifest struct {
	ID          string               `json:"id"`
	CreatedAt   time.Time            `json:"created_at"`
	Collections []SnapshotCollection `json:"collections"`
}

// SnapshotCollection describes one collection blob inside a snapshot.
type SnapshotCollection struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Count     int    `json:"count"`
	Blob      string `json:"blob"`
}

// snapshotEmbedding is the gob wire form of one embedding. Rows are written
// in insertion order so a restored collection keeps its tie-breaking order.
type snapshotEmbedding struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
	Ord      int
}

// Snapshot serializes every collection to the blob store under prefix and
// writes a manifest. Collection blobs upload concurrently; the manifest goes
// last so a crashed snapshot leaves no manifest and is simply invisible.
func (db *DB) Snapshot(ctx context.Context, store blobstore.Store, prefix string) (*SnapshotManifest, error) {
	manifest := &SnapshotManifest{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	db.mu.RLock()
	collections := make([]*Collection, 0, len(db.collections))
	for _, c := range db.collections {
		collections = append(collections, c)
	}
	db.mu.RUnlock()

	manifest.Collections = make([]SnapshotCollection, len(collections))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range collections {
		g.Go(func() error {
			blob, count, err := c.encodeSnapshot()
			if err != nil {
				return fmt.Errorf("failed to encode collection %q: %w", c.name, err)
			}

			name := path.Join(prefix, "collections", c.name+".gob.lz4")
			if err := store.Put(gctx, name, blob); err != nil {
				return fmt.Errorf("failed to upload collection %q: %w", c.name, err)
			}

			manifest.Collections[i] = SnapshotCollection{
				Name:      c.name,
				Dimension: c.dimension,
				Metric:    c.metric.String(),
				Count:     count,
				Blob:      name,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		db.logger.LogSnapshot(ctx, manifest.ID, len(collections), err)
		return nil, err
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := store.Put(ctx, path.Join(prefix, manifestName), data); err != nil {
		err = fmt.Errorf("failed to upload manifest: %w", err)
		db.logger.LogSnapshot(ctx, manifest.ID, len(collections), err)
		return nil, err
	}

	db.logger.LogSnapshot(ctx, manifest.ID, len(collections), nil)
	return manifest, nil
}

// encodeSnapshot serializes the collection's embeddings as lz4-compressed gob.
func (c *Collection) encodeSnapshot() ([]byte, int, error) {
	c.mu.RLock()
	rows := make([]snapshotEmbedding, 0, len(c.embeddings))
	for _, e := range c.embeddings {
		rows = append(rows, snapshotEmbedding{
			ID:       e.ID,
			Vector:   e.Vector,
			Metadata: e.Metadata,
			Ord:      e.ord,
		})
	}
	c.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].Ord < rows[j].Ord })

	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if err := gob.NewEncoder(zw).Encode(rows); err != nil {
		return nil, 0, err
	}
	if err := zw.Close(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), len(rows), nil
}

// RestoreSnapshot loads the snapshot under prefix into the database. Each
// restored collection is created and populated through the normal logged
// paths, so a WAL-backed database stays replayable afterwards. Collections
// that already exist cause an ErrAlreadyExists failure.
func (db *DB) RestoreSnapshot(ctx context.Context, store blobstore.Store, prefix string) (*SnapshotManifest, error) {
	data, err := store.Get(ctx, path.Join(prefix, manifestName))
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	var manifest SnapshotManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	for _, sc := range manifest.Collections {
		metric, err := distance.ParseMetric(sc.Metric)
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", sc.Name, err)
		}

		blob, err := store.Get(ctx, sc.Blob)
		if err != nil {
			return nil, fmt.Errorf("failed to load collection %q: %w", sc.Name, err)
		}

		rows, err := decodeSnapshotBlob(blob)
		if err != nil {
			return nil, fmt.Errorf("failed to decode collection %q: %w", sc.Name, err)
		}

		c, err := db.CreateCollection(ctx, sc.Name, sc.Dimension, metric)
		if err != nil {
			return nil, err
		}

		embeddings := make([]Embedding, len(rows))
		for i, row := range rows {
			embeddings[i] = Embedding{
				ID:       row.ID,
				Vector:   row.Vector,
				Metadata: row.Metadata,
			}
		}
		if err := c.BatchUpsert(ctx, embeddings); err != nil {
			return nil, err
		}
	}

	return &manifest, nil
}

func decodeSnapshotBlob(blob []byte) ([]snapshotEmbedding, error) {
	zr := lz4.NewReader(bytes.NewReader(blob))
	var rows []snapshotEmbedding
	if err := gob.NewDecoder(zr).Decode(&rows); err != nil && err != io.EOF {
		return nil, err
	}
	return rows, nil
}
