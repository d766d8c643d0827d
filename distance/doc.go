// Package distance provides the distance metrics used to score vector
// similarity: dot product, cosine and squared Euclidean (L2) distance.
//
// Cosine is implemented as a dot product over L2-normalized vectors, so
// collections using it normalize at insert time and self-similarity is 1.0.
package distance
