package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/folioworks/folio/idgen"
	"github.com/folioworks/folio/queue"
	"github.com/folioworks/folio/store"
)

// Service is the HTTP intake surface: uploads become pending books plus a
// queued ingestion job; the rest is read-only corpus access.
type Service struct {
	store  *store.Store
	queue  *queue.Queue
	cfg    *Config
	logger *slog.Logger
	newID  idgen.Generator
}

// NewService creates the intake service.
func NewService(st *store.Store, q *queue.Queue, cfg *Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, queue: q, cfg: cfg, logger: logger, newID: idgen.Default}
}

// Router builds the chi router.
func (svc *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/upload", svc.handleUpload)
	r.Get("/books", svc.handleListBooks)
	r.Get("/books/{id}", svc.handleGetBook)
	r.Get("/books/{id}/chapters", svc.handleListChapters)
	r.Get("/chapters/{id}", svc.handleGetChapter)
	r.Get("/chapters/{id}/chunks", svc.handleListChunks)
	r.Get("/search", svc.handleSearch)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// handleUpload accepts a multipart PDF ("file" field, optional "title"),
// stores it under the upload dir, creates the pending book, and queues the
// ingestion.
func (svc *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(svc.cfg.MaxFileMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		httpError(w, http.StatusBadRequest, "missing file field: %v", err)
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." {
		filename = "upload.pdf"
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		httpError(w, http.StatusUnsupportedMediaType, "only PDF uploads are accepted")
		return
	}

	bookID := idgen.Prefixed("bk_", svc.newID)()
	destPath := filepath.Join(svc.cfg.UploadDir, bookID+".pdf")
	if err := os.MkdirAll(svc.cfg.UploadDir, 0o755); err != nil {
		httpError(w, http.StatusInternalServerError, "upload dir: %v", err)
		return
	}

	dest, err := os.Create(destPath)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "store upload: %v", err)
		return
	}
	if _, err := io.Copy(dest, file); err != nil {
		dest.Close()
		os.Remove(destPath)
		httpError(w, http.StatusInsufficientStorage, "store upload: %v", err)
		return
	}
	if err := dest.Close(); err != nil {
		os.Remove(destPath)
		httpError(w, http.StatusInternalServerError, "store upload: %v", err)
		return
	}

	book := &store.Book{
		ID:               bookID,
		Title:            r.FormValue("title"),
		SourcePath:       destPath,
		OriginalFilename: filename,
	}
	if err := svc.store.InsertBook(r.Context(), book); err != nil {
		os.Remove(destPath)
		httpError(w, http.StatusInternalServerError, "create book: %v", err)
		return
	}
	if err := svc.queue.Publish(r.Context(), idgen.Prefixed("job_", svc.newID)(), bookID); err != nil {
		httpError(w, http.StatusInternalServerError, "queue ingestion: %v", err)
		return
	}

	svc.logger.Info("ingest: upload accepted",
		"book_id", bookID, "filename", filename, "bytes", header.Size)
	writeJSON(w, http.StatusAccepted, book)
}

func (svc *Service) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := svc.store.ListBooks(r.Context(), r.URL.Query().Get("status"), queryInt(r, "limit"))
	if err != nil {
		httpError(w, http.StatusInternalServerError, "list books: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (svc *Service) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := svc.store.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		notFoundOr500(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (svc *Service) handleListChapters(w http.ResponseWriter, r *http.Request) {
	chapters, err := svc.store.ListChaptersByBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, http.StatusInternalServerError, "list chapters: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapters": chapters})
}

func (svc *Service) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	ch, err := svc.store.GetChapter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		notFoundOr500(w, err)
		return
	}
	resp := struct {
		*store.Chapter
		ExtractedText string `json:"extracted_text"`
	}{ch, ch.ExtractedText}
	writeJSON(w, http.StatusOK, resp)
}

func (svc *Service) handleListChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := svc.store.ListChunks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, http.StatusInternalServerError, "list chunks: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
}

func (svc *Service) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		httpError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	includeDup := r.URL.Query().Get("include_duplicates") == "true"
	hits, err := svc.store.Search(r.Context(), q, queryInt(r, "limit"), includeDup)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "search: %v", err)
		return
	}
	if hits == nil {
		hits = []*store.SearchHit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "hits": hits})
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func notFoundOr500(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		httpError(w, http.StatusNotFound, "%v", err)
		return
	}
	httpError(w, http.StatusInternalServerError, "%v", err)
}
