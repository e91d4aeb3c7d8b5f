package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dkoval/ragbox/internal/models"
	"github.com/dkoval/ragbox/pkg/rag"
)

// Server is a thin JSON adaptor over the engine: it validates input,
// dispatches one engine operation per route and maps domain errors to
// status codes. No retrieval or model logic lives here.
type Server struct {
	engine  *rag.Engine
	tempDir string
}

type Config struct {
	TempDir string
}

func New(engine *rag.Engine, config Config) *Server {
	if config.TempDir == "" {
		config.TempDir = os.TempDir()
	}
	return &Server{
		engine:  engine,
		tempDir: config.TempDir,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /ingest-url", s.handleIngestURL)
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("DELETE /clear", s.handleClear)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) ListenAndServe(addr string) error {
	log.Printf("listening on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

type ingestResponse struct {
	Records int    `json:"records"`
	Message string `json:"message"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

type statusResponse struct {
	Exists  bool `json:"index_exists"`
	Records int  `json:"records"`
	Corrupt bool `json:"corrupt,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleUpload accepts multipart form files under the "files" field,
// spools them to disk and hands the paths to the engine.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse multipart form: %w", err))
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("no files uploaded"))
		return
	}

	spoolDir, err := os.MkdirTemp(s.tempDir, "upload-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer os.RemoveAll(spoolDir)

	paths := make([]string, 0, len(files))
	for i, header := range files {
		path, err := spoolUpload(spoolDir, i, header)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("read upload %q: %w", header.Filename, err))
			return
		}
		paths = append(paths, path)
	}

	total, err := s.engine.IngestFiles(r.Context(), paths)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Records: total,
		Message: fmt.Sprintf("ingested %d file(s)", len(paths)),
	})
}

func (s *Server) handleIngestURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}

	total, err := s.engine.IngestURL(r.Context(), req.URL)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Records: total,
		Message: fmt.Sprintf("ingested %s", req.URL),
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, errors.New("question is required"))
		return
	}

	answer, err := s.engine.Ask(r.Context(), req.Question)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{Answer: answer})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Clear(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "index cleared"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Status(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Exists:  status.Exists,
		Records: status.Records,
		Corrupt: status.Corrupt,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// writeEngineError maps domain errors onto HTTP status codes: caller
// mistakes are 4xx, upstream dependency failures are 502, everything
// else is 500.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNoDocumentsIndexed),
		errors.Is(err, models.ErrNoDocumentsLoaded),
		errors.Is(err, models.ErrNoContentExtracted),
		errors.Is(err, models.ErrFetchFailed):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, models.ErrModelFailure):
		writeError(w, http.StatusBadGateway, err)
	case errors.Is(err, models.ErrIndexCorrupt):
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// spoolUpload writes one uploaded file to disk. The sequence prefix
// keeps same-named uploads from overwriting each other.
func spoolUpload(dir string, seq int, header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	path := filepath.Join(dir, fmt.Sprintf("%d_%s", seq, filepath.Base(header.Filename)))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return path, dst.Close()
}
