package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"courseta-backend/internal/models"
	"courseta-backend/internal/services"
)

type fakeDocRepo struct {
	created []*models.Document
	docs    map[uuid.UUID]*models.Document
	deleted []uuid.UUID
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: make(map[uuid.UUID]*models.Document)}
}

func (f *fakeDocRepo) Create(ctx context.Context, d *models.Document) error {
	d.ID = uuid.New()
	d.Status = "pending"
	f.created = append(f.created, d)
	f.docs[d.ID] = d
	return nil
}

func (f *fakeDocRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return d, nil
}

func (f *fakeDocRepo) List(ctx context.Context) ([]models.Document, error) {
	var out []models.Document
	for _, d := range f.docs {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeDocRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.docs[id]; !ok {
		return errors.New("no rows")
	}
	delete(f.docs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeJobRepo struct {
	created []*models.Job
}

func (f *fakeJobRepo) Create(ctx context.Context, j *models.Job) error {
	j.ID = uuid.New()
	j.Status = "pending"
	f.created = append(f.created, j)
	return nil
}

type fakeQueue struct {
	enqueued []*models.Job
}

func (f *fakeQueue) Enqueue(ctx context.Context, job *models.Job) error {
	f.enqueued = append(f.enqueued, job)
	return nil
}

type fakeRemover struct {
	removed []uuid.UUID
}

func (f *fakeRemover) RemoveDocument(id uuid.UUID) {
	f.removed = append(f.removed, id)
}

type fakeTitles struct{}

func (fakeTitles) GetTitle(videoID string) string {
	return "Lecture " + videoID
}

func newTestDocumentHandler(t *testing.T) (*DocumentHandler, *fakeDocRepo, *fakeJobRepo, *fakeQueue, *fakeRemover) {
	t.Helper()
	docs := newFakeDocRepo()
	jobs := &fakeJobRepo{}
	queue := &fakeQueue{}
	remover := &fakeRemover{}
	h := NewDocumentHandler(docs, jobs, queue, remover, fakeTitles{}, services.NewExtractService(), t.TempDir())
	return h, docs, jobs, queue, remover
}

func multipartUpload(t *testing.T, filename, content, clientID string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	if clientID != "" {
		mw.WriteField("client_id", clientID)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadEnqueuesIngestJob(t *testing.T) {
	h, docs, jobs, queue, _ := newTestDocumentHandler(t)

	clientID := uuid.NewString()
	body, contentType := multipartUpload(t, "syllabus.txt", "Week 1: introductions.", clientID)

	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.ClientID.String() != clientID {
		t.Errorf("expected client_id %s echoed back, got %s", clientID, resp.ClientID)
	}

	if len(docs.created) != 1 {
		t.Fatalf("expected 1 document created, got %d", len(docs.created))
	}
	doc := docs.created[0]
	if doc.Type != "file" || doc.Title != "syllabus.txt" {
		t.Errorf("unexpected document: %+v", doc)
	}
	if doc.FilePath == nil {
		t.Fatal("expected stored file path")
	}
	stored, err := os.ReadFile(*doc.FilePath)
	if err != nil {
		t.Fatalf("stored file unreadable: %v", err)
	}
	if string(stored) != "Week 1: introductions." {
		t.Errorf("stored file content mismatch: %q", stored)
	}

	if len(jobs.created) != 1 || len(queue.enqueued) != 1 {
		t.Fatalf("expected 1 job created and enqueued, got %d/%d", len(jobs.created), len(queue.enqueued))
	}
	job := queue.enqueued[0]
	if job.DocumentID != doc.ID {
		t.Error("job not linked to the created document")
	}
	if job.ClientID.String() != clientID {
		t.Errorf("job client_id %s, want %s", job.ClientID, clientID)
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	h, docs, _, queue, _ := newTestDocumentHandler(t)

	body, contentType := multipartUpload(t, "malware.exe", "nope", "")
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(docs.created) != 0 || len(queue.enqueued) != 0 {
		t.Error("rejected upload should create nothing")
	}
}

func TestUploadMissingFile(t *testing.T) {
	h, _, _, _, _ := newTestDocumentHandler(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("client_id", uuid.NewString())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRegisterVideo(t *testing.T) {
	h, docs, _, queue, _ := newTestDocumentHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/documents/youtube",
		strings.NewReader(`{"url":"https://www.youtube.com/watch?v=dQw4w9WgXcQ"}`))
	rec := httptest.NewRecorder()
	h.RegisterVideo(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(docs.created) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs.created))
	}
	doc := docs.created[0]
	if doc.Type != "youtube" {
		t.Errorf("expected youtube document, got %q", doc.Type)
	}
	if doc.Title != "Lecture dQw4w9WgXcQ" {
		t.Errorf("expected resolved title, got %q", doc.Title)
	}
	if len(queue.enqueued) != 1 {
		t.Error("expected ingest job enqueued")
	}
}

func TestRegisterVideoRejectsBadURL(t *testing.T) {
	h, docs, _, _, _ := newTestDocumentHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/documents/youtube",
		strings.NewReader(`{"url":"https://example.com/not-a-video"}`))
	rec := httptest.NewRecorder()
	h.RegisterVideo(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(docs.created) != 0 {
		t.Error("bad URL should create nothing")
	}
}

func TestDeleteDocumentRemovesFileAndIndexEntries(t *testing.T) {
	h, docs, _, _, remover := newTestDocumentHandler(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("lecture notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc := &models.Document{Type: "file", Title: "notes.txt", FilePath: &path}
	docs.Create(context.Background(), doc)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", doc.ID.String())
	req := httptest.NewRequest(http.MethodDelete, "/api/documents/"+doc.ID.String(), nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(docs.deleted) != 1 || docs.deleted[0] != doc.ID {
		t.Error("document row not deleted")
	}
	if len(remover.removed) != 1 || remover.removed[0] != doc.ID {
		t.Error("document not removed from index")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("stored file should be removed")
	}
}

func TestDeleteUnknownDocument(t *testing.T) {
	h, _, _, _, _ := newTestDocumentHandler(t)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", uuid.NewString())
	req := httptest.NewRequest(http.MethodDelete, "/api/documents/x", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
