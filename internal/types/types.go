package types

import (
	"context"

	"github.com/dkoval/ragbox/internal/models"
)

// Core interfaces

// Embedder maps text to fixed-dimension vectors. The same embedder
// instance must serve both the ingest and the query path; mixing
// embedding spaces silently breaks similarity search.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VectorStore persists embedded chunks and answers nearest-neighbour
// queries. Upsert embeds, merges into the existing record set and
// persists; ingestion is strictly additive until Clear.
type VectorStore interface {
	Exists(ctx context.Context) (bool, error)
	Count(ctx context.Context) (int, error)
	Upsert(ctx context.Context, chunks []models.Chunk) (int, error)
	Search(ctx context.Context, vector []float32, k int) ([]models.SearchResult, error)
	Clear(ctx context.Context) error
}

// Chunker splits documents into retrieval-sized pieces.
type Chunker interface {
	Split(docs []models.Document) []models.Chunk
}

// Loader turns heterogeneous source material into documents.
type Loader interface {
	LoadFiles(ctx context.Context, paths []string) ([]models.Document, error)
	LoadURL(ctx context.Context, url string) ([]models.Document, error)
}

// Answerer produces a grounded answer from a question and retrieved
// context chunks.
type Answerer interface {
	Answer(ctx context.Context, question string, contextText string) (string, error)
}
