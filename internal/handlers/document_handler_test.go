package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// stubIngestion records calls and returns canned results
type stubIngestion struct {
	result      *models.IngestBatchResult
	err         error
	lastWS      string
	lastNew     bool
	lastFiles   []models.FileUpload
	deletedDoc  string
	deletedWS   string
	listedFiles []models.StoredFile
}

var _ interfaces.IngestionService = (*stubIngestion)(nil)

func (s *stubIngestion) IngestFiles(ctx context.Context, workspaceID string, newWorkspace bool, files []models.FileUpload) (*models.IngestBatchResult, error) {
	s.lastWS, s.lastNew, s.lastFiles = workspaceID, newWorkspace, files
	return s.result, s.err
}

func (s *stubIngestion) ListDocuments(ctx context.Context, workspaceID string) ([]models.StoredFile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.listedFiles, nil
}

func (s *stubIngestion) DeleteDocument(ctx context.Context, workspaceID, documentID string) error {
	s.deletedWS, s.deletedDoc = workspaceID, documentID
	return s.err
}

func (s *stubIngestion) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	s.deletedWS = workspaceID
	return s.err
}

func (s *stubIngestion) SweepOrphans(ctx context.Context) (int, error) { return 0, nil }

// stubStorage satisfies ObjectStorage for the serve-file path
type stubStorage struct {
	data map[string][]byte
}

var _ interfaces.ObjectStorage = (*stubStorage)(nil)

func (s *stubStorage) Save(ctx context.Context, key string, data []byte) error { return nil }
func (s *stubStorage) Read(ctx context.Context, key string) ([]byte, error) {
	if data, ok := s.data[key]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("file %s: %w", key, models.ErrNotFound)
}
func (s *stubStorage) List(ctx context.Context, prefix string) ([]models.StoredFile, error) {
	return nil, nil
}
func (s *stubStorage) Delete(ctx context.Context, key string) error          { return nil }
func (s *stubStorage) DeletePrefix(ctx context.Context, prefix string) error { return nil }
func (s *stubStorage) Namespaces(ctx context.Context) ([]string, error)      { return nil, nil }
func (s *stubStorage) URLFor(key string) string                              { return "/api/documents/files/" + key }

func multipartBody(t *testing.T, workspaceID string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if workspaceID != "" {
		require.NoError(t, writer.WriteField("namespaceId", workspaceID))
	}
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestAddHandlerNewWorkspace(t *testing.T) {
	ingestion := &stubIngestion{
		result: &models.IngestBatchResult{
			WorkspaceID: "ws_new",
			Documents: []models.DocumentResult{
				{DocumentID: "doc_1", FileName: "a.txt", ChunkCount: 2, Stage: models.StageComplete},
			},
		},
	}
	handler := NewDocumentHandler(ingestion, &stubStorage{})

	body, contentType := multipartBody(t, "", map[string]string{"a.txt": "hello world"})
	req := httptest.NewRequest(http.MethodPost, "/api/documents/add", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.AddHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ingestion.lastNew, "empty namespaceId should mint a new workspace")
	require.Len(t, ingestion.lastFiles, 1)
	assert.Equal(t, "a.txt", ingestion.lastFiles[0].Name)

	var resp models.IngestBatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ws_new", resp.WorkspaceID)
}

func TestAddHandlerExistingWorkspace(t *testing.T) {
	ingestion := &stubIngestion{
		result: &models.IngestBatchResult{WorkspaceID: "ws_a", Documents: []models.DocumentResult{
			{Stage: models.StageComplete},
		}},
	}
	handler := NewDocumentHandler(ingestion, &stubStorage{})

	body, contentType := multipartBody(t, "ws_a", map[string]string{"a.txt": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/documents/add", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.AddHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ws_a", ingestion.lastWS)
	assert.False(t, ingestion.lastNew)
}

func TestAddHandlerPartialFailureIsMultiStatus(t *testing.T) {
	ingestion := &stubIngestion{
		result: &models.IngestBatchResult{WorkspaceID: "ws_a", Documents: []models.DocumentResult{
			{Stage: models.StageComplete},
			{Stage: models.StageChunked, Error: "embedding failed"},
		}},
	}
	handler := NewDocumentHandler(ingestion, &stubStorage{})

	body, contentType := multipartBody(t, "ws_a", map[string]string{"a.txt": "x", "b.txt": "y"})
	req := httptest.NewRequest(http.MethodPost, "/api/documents/add", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.AddHandler(rec, req)
	assert.Equal(t, http.StatusMultiStatus, rec.Code)
}

func TestAddHandlerRejectsNoFiles(t *testing.T) {
	handler := NewDocumentHandler(&stubIngestion{}, &stubStorage{})

	body, contentType := multipartBody(t, "ws_a", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/documents/add", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.AddHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddHandlerRejectsGet(t *testing.T) {
	handler := NewDocumentHandler(&stubIngestion{}, &stubStorage{})

	req := httptest.NewRequest(http.MethodGet, "/api/documents/add", nil)
	rec := httptest.NewRecorder()

	handler.AddHandler(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestFilesHandlerListsWorkspace(t *testing.T) {
	ingestion := &stubIngestion{
		listedFiles: []models.StoredFile{
			{Name: "a.pdf", Key: "ws_a/doc_1/a.pdf", DocumentID: "doc_1"},
		},
	}
	handler := NewDocumentHandler(ingestion, &stubStorage{})

	req := httptest.NewRequest(http.MethodGet, "/api/documents/files/ws_a", nil)
	rec := httptest.NewRecorder()

	handler.FilesHandler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "a.pdf")
}

func TestFilesHandlerServesFile(t *testing.T) {
	storage := &stubStorage{data: map[string][]byte{
		"ws_a/doc_1/report.pdf": []byte("%PDF-fake"),
	}}
	handler := NewDocumentHandler(&stubIngestion{}, storage)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/files/ws_a/doc_1/report.pdf", nil)
	rec := httptest.NewRecorder()

	handler.FilesHandler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-fake", rec.Body.String())
}

func TestFilesHandlerMissingFileIs404(t *testing.T) {
	handler := NewDocumentHandler(&stubIngestion{}, &stubStorage{})

	req := httptest.NewRequest(http.MethodGet, "/api/documents/files/ws_a/doc_1/missing.pdf", nil)
	rec := httptest.NewRecorder()

	handler.FilesHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteFileHandler(t *testing.T) {
	ingestion := &stubIngestion{}
	handler := NewDocumentHandler(ingestion, &stubStorage{})

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/files/delete/ws_a/doc_1", nil)
	rec := httptest.NewRecorder()

	handler.DeleteFileHandler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ws_a", ingestion.deletedWS)
	assert.Equal(t, "doc_1", ingestion.deletedDoc)
}

func TestDeleteFileHandlerBadPath(t *testing.T) {
	handler := NewDocumentHandler(&stubIngestion{}, &stubStorage{})

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/files/delete/ws_a", nil)
	rec := httptest.NewRecorder()

	handler.DeleteFileHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteWorkspaceHandler(t *testing.T) {
	ingestion := &stubIngestion{}
	handler := NewDocumentHandler(ingestion, &stubStorage{})

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/workspace/ws_a", nil)
	rec := httptest.NewRecorder()

	handler.DeleteWorkspaceHandler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ws_a", ingestion.deletedWS)
}

func TestDeleteWorkspaceHandlerNotFound(t *testing.T) {
	ingestion := &stubIngestion{err: fmt.Errorf("workspace ws_x: %w", models.ErrNotFound)}
	handler := NewDocumentHandler(ingestion, &stubStorage{})

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/workspace/ws_x", nil)
	rec := httptest.NewRecorder()

	handler.DeleteWorkspaceHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
