package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoval/ragbox/pkg/chunker"
	"github.com/dkoval/ragbox/pkg/loader"
	"github.com/dkoval/ragbox/pkg/rag"
	"github.com/dkoval/ragbox/pkg/store"
	"github.com/dkoval/ragbox/server"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Dimension() int { return 2 }

func (fakeEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 1}
	}
	return vectors, nil
}

// echoAnswerer echoes the question and records the retrieved context.
type echoAnswerer struct {
	contextText string
}

func (e *echoAnswerer) Answer(_ context.Context, question, contextText string) (string, error) {
	e.contextText = contextText
	return "answer to: " + question, nil
}

func newTestHandler(t *testing.T) (http.Handler, *echoAnswerer) {
	t.Helper()

	st, err := store.NewFileStore(store.FileStoreConfig{Dir: t.TempDir()}, fakeEmbedder{})
	require.NoError(t, err)

	answerer := &echoAnswerer{}
	engine := rag.New(rag.Config{
		UploadDir: t.TempDir(),
	}, loader.New(), chunker.NewWithConfig(chunker.Config{}), fakeEmbedder{}, st, answerer)

	return server.New(engine, server.Config{TempDir: t.TempDir()}).Handler(), answerer
}

func multipartBody(t *testing.T, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("files", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestStatusOnFreshSystem(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["index_exists"])
}

func TestAskBeforeIngestIsClientError(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"anything?"}`))
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadThenAsk(t *testing.T) {
	handler, _ := newTestHandler(t)

	body, contentType := multipartBody(t, "notes.txt", "the sky is blue")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var ingested struct {
		Records int `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ingested))
	assert.Equal(t, 1, ingested.Records)

	rec = httptest.NewRecorder()
	askReq := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"what color is the sky?"}`))
	handler.ServeHTTP(rec, askReq)
	require.Equal(t, http.StatusOK, rec.Code)

	var answered struct {
		Answer string `json:"answer"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answered))
	assert.Equal(t, "answer to: what color is the sky?", answered.Answer)
}

func TestUploadSameNamedFilesKeepsBoth(t *testing.T) {
	handler, answerer := newTestHandler(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, content := range []string{"the sky is blue", "grass is green"} {
		part, err := writer.CreateFormFile("files", "notes.txt")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var ingested struct {
		Records int `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ingested))
	require.Equal(t, 2, ingested.Records)

	rec = httptest.NewRecorder()
	askReq := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"colors?"}`))
	handler.ServeHTTP(rec, askReq)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, answerer.contextText, "the sky is blue")
	assert.Contains(t, answerer.contextText, "grass is green")
}

func TestUploadWithoutFiles(t *testing.T) {
	handler, _ := newTestHandler(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestURLMissingField(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ingest-url", strings.NewReader(`{}`))
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearResetsStatus(t *testing.T) {
	handler, _ := newTestHandler(t)

	body, contentType := multipartBody(t, "notes.txt", "some facts")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/clear", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Exists bool `json:"index_exists"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Exists)
}

func TestHealth(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
