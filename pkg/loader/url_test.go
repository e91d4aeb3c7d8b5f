package loader_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoval/ragbox/internal/models"
	"github.com/dkoval/ragbox/pkg/loader"
)

func TestLoadURL_ExtractsMainContent(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte(`<html><head><title>Docs</title></head>
<body><nav>menu</nav><main>The capital of France is Paris.</main></body></html>`))
	}))
	defer srv.Close()

	docs, err := loader.New().LoadURL(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t, srv.URL, docs[0].Source)
	assert.Equal(t, "The capital of France is Paris.", docs[0].Content)
	assert.Equal(t, "Docs", docs[0].Metadata["title"])
	assert.Contains(t, gotAgent, "ragbox")
}

func TestLoadURL_BodyFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div>just a body</div></body></html>`))
	}))
	defer srv.Close()

	docs, err := loader.New().LoadURL(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "just a body", docs[0].Content)
}

func TestLoadURL_HTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := loader.New().LoadURL(context.Background(), srv.URL)
	assert.True(t, errors.Is(err, models.ErrFetchFailed))
}

func TestLoadURL_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening any more

	_, err := loader.New().LoadURL(context.Background(), srv.URL)
	assert.True(t, errors.Is(err, models.ErrFetchFailed))
}

func TestLoadURL_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	l := loader.NewWithConfig(loader.Config{FetchTimeout: 20 * time.Millisecond})
	_, err := l.LoadURL(context.Background(), srv.URL)
	assert.True(t, errors.Is(err, models.ErrFetchFailed))
}

func TestLoadURL_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><main>   </main></body></html>`))
	}))
	defer srv.Close()

	_, err := loader.New().LoadURL(context.Background(), srv.URL)
	assert.True(t, errors.Is(err, models.ErrNoContentExtracted))
}
