package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dkoval/ragbox/internal/models"
	"github.com/dkoval/ragbox/internal/types"
	"github.com/dkoval/ragbox/pkg/chunker"
	"github.com/dkoval/ragbox/pkg/config"
	"github.com/dkoval/ragbox/pkg/llm"
	"github.com/dkoval/ragbox/pkg/loader"
	"github.com/dkoval/ragbox/pkg/store"
)

type Config struct {
	UploadDir string
	TopK      int
}

// Engine owns the ingest and query pipeline: loader, chunker, the
// lazily-initialized embedding and LLM handles, and the vector store.
// It is the single context object callers hold; operations never touch
// package-level state.
//
// A process-scoped mutex serialises the operations that mutate the
// persisted index (ingest, clear) against each other. Concurrent
// mutation from other processes is not supported.
type Engine struct {
	config   Config
	loader   types.Loader
	chunker  types.Chunker
	embedder types.Embedder
	store    types.VectorStore
	answerer types.Answerer

	mu sync.Mutex
}

func New(cfg Config, ldr types.Loader, ch types.Chunker, emb types.Embedder, st types.VectorStore, ans types.Answerer) *Engine {
	if cfg.UploadDir == "" {
		cfg.UploadDir = "data/uploads"
	}
	if cfg.TopK == 0 {
		cfg.TopK = 4
	}

	return &Engine{
		config:   cfg,
		loader:   ldr,
		chunker:  ch,
		embedder: emb,
		store:    st,
		answerer: ans,
	}
}

// NewFromConfig assembles an engine with the real collaborators: the
// file or pgvector store, the Ollama embedder and the Ollama chat
// model.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Engine, error) {
	embedder := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.LLM.EmbeddingModel,
		BaseURL:   cfg.LLM.BaseURL,
		Dimension: cfg.Index.VectorDim,
	})

	var (
		vectorStore types.VectorStore
		err         error
	)
	switch cfg.Index.Backend {
	case "pgvector":
		vectorStore, err = store.NewPgVectorStore(ctx, store.PgVectorConfig{
			ConnString: cfg.Index.DBUrl,
			TableName:  cfg.Index.TableName,
		}, embedder)
	default:
		vectorStore, err = store.NewFileStore(store.FileStoreConfig{
			Dir: cfg.Index.Dir,
		}, embedder)
	}
	if err != nil {
		return nil, fmt.Errorf("initialize vector store: %w", err)
	}

	chatEngine := llm.NewWithConfig(llm.ChatConfig{
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		BaseURL:   cfg.LLM.BaseURL,
	})

	docLoader := loader.NewWithConfig(loader.Config{
		FetchTimeout: time.Duration(cfg.Loader.FetchTimeoutSecs) * time.Second,
		UserAgent:    cfg.Loader.UserAgent,
		RateLimit:    cfg.Loader.RateLimit,
	})

	textChunker := chunker.NewWithConfig(chunker.Config{
		ChunkSize:    cfg.Chunker.ChunkSize,
		ChunkOverlap: cfg.Chunker.ChunkOverlap,
	})

	engine := New(Config{
		UploadDir: cfg.Loader.UploadDir,
		TopK:      cfg.Index.TopK,
	}, docLoader, textChunker, embedder, vectorStore, chatEngine)

	return engine, nil
}

// IngestFiles stages the given files into the upload directory,
// parses and chunks them, and merges the chunks into the index.
// Returns the total record count after the merge. Fails with
// ErrNoDocumentsLoaded only when nothing at all was usable.
func (e *Engine) IngestFiles(ctx context.Context, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, models.ErrNoDocumentsLoaded
	}

	staged, err := e.stageFiles(paths)
	if err != nil {
		return 0, err
	}

	docs, err := e.loader.LoadFiles(ctx, staged)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, models.ErrNoDocumentsLoaded
	}

	chunks := e.chunker.Split(docs)
	if len(chunks) == 0 {
		return 0, models.ErrNoDocumentsLoaded
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Upsert(ctx, chunks)
}

// IngestURL fetches one page and merges its chunks into the index.
// Returns the total record count after the merge.
func (e *Engine) IngestURL(ctx context.Context, pageURL string) (int, error) {
	if strings.TrimSpace(pageURL) == "" {
		return 0, errors.New("url must not be empty")
	}

	docs, err := e.loader.LoadURL(ctx, pageURL)
	if err != nil {
		return 0, err
	}

	chunks := e.chunker.Split(docs)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: %s", models.ErrNoContentExtracted, pageURL)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Upsert(ctx, chunks)
}

// Ask answers a question grounded in the top-k most similar chunks.
// Fails with ErrNoDocumentsIndexed before the first ingestion and with
// ErrModelFailure when the external model cannot be reached.
func (e *Engine) Ask(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", errors.New("question must not be empty")
	}

	exists, err := e.store.Exists(ctx)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", models.ErrNoDocumentsIndexed
	}

	vectors, err := e.embedder.CreateEmbedding(ctx, []string{question})
	if err != nil {
		return "", err
	}

	results, err := e.store.Search(ctx, vectors[0], e.config.TopK)
	if errors.Is(err, models.ErrIndexMissing) {
		return "", models.ErrNoDocumentsIndexed
	}
	if err != nil {
		return "", err
	}

	return e.answerer.Answer(ctx, question, buildContext(results))
}

// Clear drops the persisted index and erases the staged uploads.
// Idempotent; clearing an empty system is not an error.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Clear(ctx); err != nil {
		return err
	}
	if err := os.RemoveAll(e.config.UploadDir); err != nil {
		return fmt.Errorf("remove upload directory: %w", err)
	}
	return os.MkdirAll(e.config.UploadDir, 0o755)
}

// Status reports whether an index exists and how many records it
// holds. A present but unreadable index is flagged corrupt instead of
// failing the call.
func (e *Engine) Status(ctx context.Context) (models.Status, error) {
	exists, err := e.store.Exists(ctx)
	if err != nil {
		return models.Status{}, err
	}
	if !exists {
		return models.Status{}, nil
	}

	count, err := e.store.Count(ctx)
	if errors.Is(err, models.ErrIndexCorrupt) {
		return models.Status{Exists: true, Corrupt: true}, nil
	}
	if err != nil {
		return models.Status{}, err
	}
	return models.Status{Exists: true, Records: count}, nil
}

// buildContext concatenates retrieved chunk texts in similarity order,
// separated by a blank line.
func buildContext(results []models.SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, res := range results {
		parts = append(parts, res.Record.Content)
	}
	return strings.Join(parts, "\n\n")
}

// stageFiles clears and repopulates the upload directory with copies
// of the input files, so clear can erase every source artifact later.
func (e *Engine) stageFiles(paths []string) ([]string, error) {
	if err := os.RemoveAll(e.config.UploadDir); err != nil {
		return nil, fmt.Errorf("reset upload directory: %w", err)
	}
	if err := os.MkdirAll(e.config.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	staged := make([]string, 0, len(paths))
	for i, path := range paths {
		name := fmt.Sprintf("%d_%s", i, filepath.Base(path))
		dst := filepath.Join(e.config.UploadDir, name)
		if err := copyFile(path, dst); err != nil {
			// A vanished or unreadable upload is a per-file failure,
			// not a batch failure.
			log.Printf("rag: skipping %s: %v", path, err)
			continue
		}
		staged = append(staged, dst)
	}
	return staged, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
