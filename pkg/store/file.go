package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dkoval/ragbox/internal/models"
	"github.com/dkoval/ragbox/internal/types"
)

const snapshotFile = "index.json"

type FileStoreConfig struct {
	Dir string
}

// FileStore is a brute-force cosine-similarity index persisted as a
// single snapshot file under a configured directory. Every Upsert is
// load-merge-save: the snapshot on disk always reflects the full
// post-merge record set. A process-scoped mutex guards the
// read-mutate-write section; concurrent writers from other processes
// are unsafe.
type FileStore struct {
	config   FileStoreConfig
	embedder types.Embedder

	mu    sync.Mutex
	cache *snapshot
}

// snapshot is the on-disk representation of the index.
type snapshot struct {
	Dimension int             `json:"dimension"`
	Records   []models.Record `json:"records"`
}

func NewFileStore(config FileStoreConfig, embedder types.Embedder) (*FileStore, error) {
	if config.Dir == "" {
		config.Dir = "index"
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	return &FileStore{
		config:   config,
		embedder: embedder,
	}, nil
}

func (s *FileStore) path() string {
	return filepath.Join(s.config.Dir, snapshotFile)
}

// Exists reports whether a persisted index is present and non-empty.
// A corrupt snapshot still counts as present; Count and Search report
// the corruption.
func (s *FileStore) Exists(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.readLocked()
	switch {
	case err == nil:
		return len(snap.Records) > 0, nil
	case errors.Is(err, models.ErrIndexMissing):
		return false, nil
	case errors.Is(err, models.ErrIndexCorrupt):
		return true, nil
	default:
		return false, err
	}
}

// Count returns the number of persisted records. Fails with
// ErrIndexMissing or ErrIndexCorrupt like a load would.
func (s *FileStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.readLocked()
	if err != nil {
		return 0, err
	}
	return len(snap.Records), nil
}

// Upsert embeds the chunks and merges them into the persisted index:
// load-merge-save when an index exists, create-save otherwise. A
// corrupt existing snapshot is recreated from scratch, with a warning.
// Returns the total record count after the merge.
func (s *FileStore) Upsert(ctx context.Context, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		count, err := s.Count(ctx)
		if errors.Is(err, models.ErrIndexMissing) {
			return 0, nil
		}
		return count, err
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := s.embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: got %d vectors for %d chunks", models.ErrModelFailure, len(vectors), len(chunks))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.readLocked()
	switch {
	case err == nil:
	case errors.Is(err, models.ErrIndexMissing):
		snap = &snapshot{Dimension: s.embedder.Dimension()}
	case errors.Is(err, models.ErrIndexCorrupt):
		log.Printf("store: existing index unreadable, recreating: %v", err)
		snap = &snapshot{Dimension: s.embedder.Dimension()}
	default:
		return 0, err
	}

	// Merge into a copy. The cached snapshot must keep matching the
	// file on disk, so it is only replaced after a successful save;
	// a failed save leaves both cache and disk at the pre-merge state.
	merged := &snapshot{
		Dimension: snap.Dimension,
		Records:   make([]models.Record, 0, len(snap.Records)+len(chunks)),
	}
	merged.Records = append(merged.Records, snap.Records...)

	for i, chunk := range chunks {
		if len(vectors[i]) != merged.Dimension {
			return 0, fmt.Errorf("%w: vector dimension %d, index dimension %d",
				models.ErrIndexCorrupt, len(vectors[i]), merged.Dimension)
		}
		merged.Records = append(merged.Records, models.Record{
			ID:        uuid.New().String(),
			Source:    chunk.Source,
			Content:   chunk.Content,
			Metadata:  chunk.Metadata,
			Embedding: vectors[i],
		})
	}

	if err := s.writeLocked(merged); err != nil {
		return 0, err
	}
	return len(merged.Records), nil
}

// Search returns the k most similar records, best first. Fewer than k
// results are returned only when the index holds fewer records.
func (s *FileStore) Search(_ context.Context, vector []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		k = 4
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.readLocked()
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(snap.Records))
	for _, rec := range snap.Records {
		results = append(results, models.SearchResult{
			Record: rec,
			Score:  cosineSimilarity(vector, rec.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Clear deletes the persisted index. Safe to call when none exists.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = nil
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove index snapshot: %w", err)
	}
	return nil
}

func (s *FileStore) readLocked() (*snapshot, error) {
	if s.cache != nil {
		return s.cache, nil
	}

	f, err := os.Open(s.path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, models.ErrIndexMissing
	}
	if err != nil {
		return nil, fmt.Errorf("open index snapshot: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", models.ErrIndexCorrupt, err)
	}
	if snap.Dimension <= 0 {
		return nil, fmt.Errorf("%w: snapshot has dimension %d", models.ErrIndexCorrupt, snap.Dimension)
	}
	if snap.Dimension != s.embedder.Dimension() {
		// Most likely written by a different embedding model; its
		// vectors are not comparable with ours.
		return nil, fmt.Errorf("%w: snapshot dimension %d, embedder dimension %d",
			models.ErrIndexCorrupt, snap.Dimension, s.embedder.Dimension())
	}
	for _, rec := range snap.Records {
		if len(rec.Embedding) != snap.Dimension {
			return nil, fmt.Errorf("%w: record %s has dimension %d, index dimension %d",
				models.ErrIndexCorrupt, rec.ID, len(rec.Embedding), snap.Dimension)
		}
	}
	if len(snap.Records) == 0 {
		return nil, models.ErrIndexMissing
	}

	s.cache = &snap
	return &snap, nil
}

// writeLocked persists through a temp file and rename so a snapshot is
// never half-written.
func (s *FileStore) writeLocked(snap *snapshot) error {
	tmp, err := os.CreateTemp(s.config.Dir, "index-*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}

	if err := json.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace snapshot: %w", err)
	}

	s.cache = snap
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
