package loader

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"

	"github.com/dkoval/ragbox/internal/models"
)

type Config struct {
	FetchTimeout time.Duration
	UserAgent    string
	RateLimit    float64 // page fetches per second
}

// Loader converts local files and web pages into documents. File
// parsing dispatches on extension; a failing file is skipped, never
// fatal to the batch.
type Loader struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config Config) *Loader {
	if config.FetchTimeout == 0 {
		config.FetchTimeout = 15 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "ragbox/1.0 (document research assistant)"
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}

	return &Loader{
		config: config,
		client: &http.Client{
			Timeout: config.FetchTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func New() *Loader {
	return NewWithConfig(Config{})
}

// LoadFiles parses each path and returns the parsed documents in input
// order. Unsupported extensions and unparseable files are logged and
// skipped; an empty result means nothing was usable.
func (l *Loader) LoadFiles(ctx context.Context, paths []string) ([]models.Document, error) {
	var docs []models.Document

	for _, path := range paths {
		units, err := l.loadFile(ctx, path)
		if err != nil {
			log.Printf("loader: skipping %s: %v", path, err)
			continue
		}
		docs = append(docs, units...)
	}

	return docs, nil
}

func (l *Loader) loadFile(ctx context.Context, path string) ([]models.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return l.loadText(ctx, path)
	case ".csv":
		return l.loadCSV(ctx, path)
	case ".pdf":
		return l.loadPDF(ctx, path)
	case ".docx":
		return l.loadDocx(path)
	default:
		log.Printf("loader: unsupported file type: %s", path)
		return nil, nil
	}
}

func (l *Loader) loadText(ctx context.Context, path string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return nil, err
	}
	return l.convert(path, docs), nil
}

func (l *Loader) loadCSV(ctx context.Context, path string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := documentloaders.NewCSV(f).Load(ctx)
	if err != nil {
		return nil, err
	}
	return l.convert(path, docs), nil
}

// loadPDF yields one document per page, with the page number carried
// in the metadata.
func (l *Loader) loadPDF(ctx context.Context, path string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	docs, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return nil, err
	}
	return l.convert(path, docs), nil
}

func (l *Loader) convert(path string, docs []schema.Document) []models.Document {
	out := make([]models.Document, 0, len(docs))
	for _, doc := range docs {
		meta := map[string]interface{}{"source": path}
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		out = append(out, models.Document{
			Source:   path,
			Content:  doc.PageContent,
			Metadata: meta,
		})
	}
	return out
}
