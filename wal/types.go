package wal

import "time"

// DurabilityMode defines the fsync behavior for WAL appends.
type DurabilityMode int

const (
	// DurabilityAsync represents asynchronous durability.
	// No fsync, fastest writes but risk of data loss on crash.
	DurabilityAsync DurabilityMode = iota

	// DurabilityGroupCommit represents group commit durability.
	// Batched fsync at regular intervals, amortizing the fsync cost
	// across multiple operations. Recommended for most workloads.
	DurabilityGroupCommit

	// DurabilitySync represents synchronous durability.
	// fsync after every append. Slowest but strongest guarantee.
	DurabilitySync
)

// OperationType identifies the kind of mutating operation an entry records.
type OperationType uint8

const (
	// OpCreateCollection records the creation of a collection
	// (name, dimension, metric).
	OpCreateCollection OperationType = iota + 1
	// OpUpsert records an embedding insert-or-replace
	// (collection, id, vector, metadata).
	OpUpsert
	// OpDeleteEmbedding records the removal of an embedding (collection, id).
	OpDeleteEmbedding
	// OpDropCollection records the deletion of a collection and all its
	// embeddings (name).
	OpDropCollection
)

// Entry is a single immutable record of one mutating operation.
// Entries are totally ordered by SeqNum, which mirrors append order.
type Entry struct {
	Type   OperationType
	SeqNum uint64

	// Collection is the collection name the operation targets.
	Collection string

	// ID is the embedding identifier (OpUpsert, OpDeleteEmbedding).
	ID string

	// Dimension and Metric describe a new collection (OpCreateCollection).
	// Metric carries the wire name of the distance metric.
	Dimension uint32
	Metric    string

	// Vector and Metadata carry the embedding payload (OpUpsert).
	Vector   []float32
	Metadata map[string]string
}

// Options contains configuration for the WAL.
type Options struct {
	// Path is the directory where the WAL file is stored.
	Path string

	// Compress enables zstd compression of the entry stream.
	Compress bool

	// CompressionLevel sets the zstd compression level (1-22).
	// The default (3) provides a good balance.
	CompressionLevel int

	// DurabilityMode controls fsync behavior (Async, GroupCommit, Sync).
	DurabilityMode DurabilityMode

	// GroupCommitInterval is the maximum time to wait before fsync in
	// GroupCommit mode.
	GroupCommitInterval time.Duration

	// GroupCommitMaxOps is the maximum number of appends to batch before
	// fsync in GroupCommit mode.
	GroupCommitMaxOps int
}

// DefaultOptions returns default WAL options.
var DefaultOptions = Options{
	Path:                ".",
	Compress:            false,
	CompressionLevel:    3,
	DurabilityMode:      DurabilityGroupCommit,
	GroupCommitInterval: 10 * time.Millisecond,
	GroupCommitMaxOps:   100,
}
