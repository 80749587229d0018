package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"courseta-backend/internal/models"
	"courseta-backend/internal/services"
)

const maxUploadBytes = 50 << 20

type documentRepository interface {
	Create(ctx context.Context, d *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	List(ctx context.Context) ([]models.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type jobRepository interface {
	Create(ctx context.Context, j *models.Job) error
}

type jobQueue interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

type indexRemover interface {
	RemoveDocument(documentID uuid.UUID)
}

type titleResolver interface {
	GetTitle(videoID string) string
}

// DocumentHandler manages the course material library: uploads, lecture
// video registration, listing and deletion. Ingestion itself happens on the
// worker pool.
type DocumentHandler struct {
	docRepo     documentRepository
	jobRepo     jobRepository
	queue       jobQueue
	index       indexRemover
	youtube     titleResolver
	extract     *services.ExtractService
	storagePath string
}

func NewDocumentHandler(docRepo documentRepository, jobRepo jobRepository, queue jobQueue, index indexRemover, youtube titleResolver, extract *services.ExtractService, storagePath string) *DocumentHandler {
	return &DocumentHandler{
		docRepo:     docRepo,
		jobRepo:     jobRepo,
		queue:       queue,
		index:       index,
		youtube:     youtube,
		extract:     extract,
		storagePath: storagePath,
	}
}

type uploadResponse struct {
	Document models.Document `json:"document"`
	JobID    uuid.UUID       `json:"job_id"`
	ClientID uuid.UUID       `json:"client_id"`
}

// Upload handles POST /api/documents: multipart form with a "file" part and
// an optional "client_id" used to route WebSocket progress updates.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form or file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !h.supported(ext) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported file type %s (supported: %s)", ext, strings.Join(h.extract.SupportedExtensions(), ", ")))
		return
	}

	if err := os.MkdirAll(h.storagePath, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to prepare storage")
		return
	}

	storedPath := filepath.Join(h.storagePath, uuid.NewString()+ext)
	dst, err := os.Create(storedPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(storedPath)
		writeError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}
	dst.Close()

	doc := &models.Document{
		Type:     "file",
		Title:    header.Filename,
		FilePath: &storedPath,
	}
	h.enqueueIngest(w, r, doc, r.FormValue("client_id"))
}

type registerVideoRequest struct {
	URL      string `json:"url"`
	ClientID string `json:"client_id"`
}

// RegisterVideo handles POST /api/documents/youtube: registers a lecture
// recording whose captions will be indexed.
func (h *DocumentHandler) RegisterVideo(w http.ResponseWriter, r *http.Request) {
	var req registerVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	videoID := services.ExtractVideoID(strings.TrimSpace(req.URL))
	if videoID == "" {
		writeError(w, http.StatusBadRequest, "Not a recognizable YouTube URL")
		return
	}

	url := strings.TrimSpace(req.URL)
	doc := &models.Document{
		Type:      "youtube",
		Title:     h.youtube.GetTitle(videoID),
		SourceURL: &url,
	}
	h.enqueueIngest(w, r, doc, req.ClientID)
}

func (h *DocumentHandler) enqueueIngest(w http.ResponseWriter, r *http.Request, doc *models.Document, rawClientID string) {
	clientID, err := uuid.Parse(rawClientID)
	if err != nil {
		clientID = uuid.New()
	}

	if err := h.docRepo.Create(r.Context(), doc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record document")
		return
	}

	job := &models.Job{
		ClientID:   clientID,
		Type:       "document-ingest",
		DocumentID: doc.ID,
	}
	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create ingest job")
		return
	}

	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to enqueue ingest job")
		return
	}

	writeJSON(w, http.StatusAccepted, uploadResponse{
		Document: *doc,
		JobID:    job.ID,
		ClientID: clientID,
	})
}

// List handles GET /api/documents.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docRepo.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

// Delete handles DELETE /api/documents/{id}: removes the rows, the stored
// file and the in-memory index entries.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid document ID")
		return
	}

	doc, err := h.docRepo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}

	if err := h.docRepo.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}

	h.index.RemoveDocument(id)
	if doc.FilePath != nil {
		os.Remove(*doc.FilePath)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Document deleted"})
}

func (h *DocumentHandler) supported(ext string) bool {
	for _, s := range h.extract.SupportedExtensions() {
		if ext == s {
			return true
		}
	}
	return false
}
