package handlers

import (
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// maxUploadBytes caps one multipart request held in memory before per-file
// size validation runs
const maxUploadBytes = 64 << 20

// DocumentHandler serves the document upload, listing, download and
// deletion endpoints
type DocumentHandler struct {
	ingestion interfaces.IngestionService
	files     interfaces.ObjectStorage
	logger    arbor.ILogger
}

func NewDocumentHandler(ingestion interfaces.IngestionService, files interfaces.ObjectStorage) *DocumentHandler {
	return &DocumentHandler{
		ingestion: ingestion,
		files:     files,
		logger:    common.GetLogger(),
	}
}

// AddHandler handles POST /api/documents/add: a multipart form with one or
// more "files" parts plus either a namespaceId field or newWorkspace=true.
func (h *DocumentHandler) AddHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	workspaceID := r.FormValue("namespaceId")
	if workspaceID == "" {
		workspaceID = r.FormValue("workspaceId")
	}
	newWorkspace := strings.EqualFold(r.FormValue("newWorkspace"), "true") || workspaceID == ""

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		WriteError(w, http.StatusBadRequest, "at least one file is required")
		return
	}

	uploads := make([]models.FileUpload, 0, len(fileHeaders))
	for _, header := range fileHeaders {
		file, err := header.Open()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "failed to open uploaded file "+header.Filename)
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "failed to read uploaded file "+header.Filename)
			return
		}

		contentType := header.Header.Get("Content-Type")
		uploads = append(uploads, models.FileUpload{
			Name:        path.Base(header.Filename),
			ContentType: contentType,
			Data:        data,
		})
	}

	result, err := h.ingestion.IngestFiles(r.Context(), workspaceID, newWorkspace, uploads)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	status := http.StatusOK
	if result.Failed() == len(result.Documents) {
		status = http.StatusUnprocessableEntity
	} else if result.Failed() > 0 {
		status = http.StatusMultiStatus
	}
	WriteJSON(w, status, result)
}

// FilesHandler dispatches /api/documents/files/{workspaceId} and
// /api/documents/files/{workspaceId}/{documentId}/{fileName}
func (h *DocumentHandler) FilesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/documents/files/"), "/")
	if rest == "" {
		WriteError(w, http.StatusBadRequest, "workspace id is required")
		return
	}

	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		h.listFiles(w, r, parts[0])
	case 3:
		h.serveFile(w, r, strings.Join(parts, "/"))
	default:
		WriteError(w, http.StatusBadRequest, "expected /{workspaceId} or /{workspaceId}/{documentId}/{fileName}")
	}
}

func (h *DocumentHandler) listFiles(w http.ResponseWriter, r *http.Request, workspaceID string) {
	files, err := h.ingestion.ListDocuments(r.Context(), workspaceID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"workspace_id": workspaceID,
		"files":        files,
	})
}

func (h *DocumentHandler) serveFile(w http.ResponseWriter, r *http.Request, key string) {
	data, err := h.files.Read(r.Context(), key)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	contentType := contentTypeForName(path.Base(key))
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func contentTypeForName(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// DeleteFileHandler handles
// DELETE /api/documents/files/delete/{workspaceId}/{documentId}
func (h *DocumentHandler) DeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/documents/files/delete/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		WriteError(w, http.StatusBadRequest, "expected /{workspaceId}/{documentId}")
		return
	}

	if err := h.ingestion.DeleteDocument(r.Context(), parts[0], parts[1]); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, "document deleted")
}

// DeleteWorkspaceHandler handles
// DELETE /api/documents/workspace/{workspaceId}
func (h *DocumentHandler) DeleteWorkspaceHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}

	workspaceID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/documents/workspace/"), "/")
	if workspaceID == "" || strings.Contains(workspaceID, "/") {
		WriteError(w, http.StatusBadRequest, "expected /{workspaceId}")
		return
	}

	if err := h.ingestion.DeleteWorkspace(r.Context(), workspaceID); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, "workspace deleted")
}
