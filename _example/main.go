package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/vecdb-io/vecdb"
	"github.com/vecdb-io/vecdb/distance"
)

func main() {
	seed := int64(4711)
	dim := 32
	size := 50000
	k := 10

	ctx := context.Background()

	db, err := vecdb.New()
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	c, err := db.CreateCollection(ctx, "demo", dim, distance.MetricCosine)
	if err != nil {
		log.Fatal(err)
	}

	rng := rand.New(rand.NewSource(seed))
	vectors := generateRandomVectors(rng, size, dim)
	query := generateRandomVectors(rng, 1, dim)[0]

	fmt.Println("--- Insert ---")
	fmt.Println("Dimension:", dim)
	fmt.Println("Size:", size)

	start := time.Now()

	embeddings := make([]vecdb.Embedding, size)
	for i, v := range vectors {
		embeddings[i] = vecdb.Embedding{
			ID:       fmt.Sprintf("v%d", i),
			Vector:   v,
			Metadata: map[string]string{"index": fmt.Sprint(i)},
		}
	}
	if err := c.BatchUpsert(ctx, embeddings); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Seconds: %.2f\n\n", time.Since(start).Seconds())

	fmt.Println("--- Search ---")

	start = time.Now()

	results, err := c.Search(ctx, query, k)
	if err != nil {
		log.Fatal(err)
	}

	for _, r := range results {
		fmt.Printf("ID: %s, Score: %.4f, Index: %s\n", r.ID, r.Score, r.Metadata["index"])
	}

	fmt.Printf("Seconds: %.8f\n", time.Since(start).Seconds())
}

func generateRandomVectors(rng *rand.Rand, n, dim int) [][]float32 {
	vectors := make([][]float32, n)
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()
		}
		vectors[i] = v
	}
	return vectors
}
