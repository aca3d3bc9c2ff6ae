package ingest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/chunker"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/worker"
)

// Service orchestrates the ingestion pipeline: store the raw file, extract
// text, chunk, embed, upsert. Files within one request run concurrently on a
// bounded pool; a single document's stages are strictly sequential. It also
// owns the complementary deletion paths.
type Service struct {
	config     *common.IngestConfig
	deadline   time.Duration
	workspaces interfaces.WorkspaceStorage
	files      interfaces.ObjectStorage
	vectors    interfaces.VectorStore
	embedder   interfaces.EmbeddingService
	extractor  interfaces.PDFExtractor
	listPage   int
	logger     arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.IngestionService = (*Service)(nil)

// Options collects the collaborators of the ingestion service
type Options struct {
	Config       *common.IngestConfig
	Deadline     time.Duration
	ListPageSize int
	Workspaces   interfaces.WorkspaceStorage
	Files        interfaces.ObjectStorage
	Vectors      interfaces.VectorStore
	Embedder     interfaces.EmbeddingService
	Extractor    interfaces.PDFExtractor
	Logger       arbor.ILogger
}

// NewService creates the ingestion orchestrator
func NewService(opts Options) *Service {
	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = 300 * time.Second
	}
	listPage := opts.ListPageSize
	if listPage <= 0 {
		listPage = 100
	}

	return &Service{
		config:     opts.Config,
		deadline:   deadline,
		workspaces: opts.Workspaces,
		files:      opts.Files,
		vectors:    opts.Vectors,
		embedder:   opts.Embedder,
		extractor:  opts.Extractor,
		listPage:   listPage,
		logger:     opts.Logger,
	}
}

// IngestFiles processes one upload request. When newWorkspace is set a
// workspace is minted and registered first; otherwise the given workspace
// must exist and not be locked. The result reports per-file outcomes.
func (s *Service) IngestFiles(ctx context.Context, workspaceID string, newWorkspace bool, files []models.FileUpload) (*models.IngestBatchResult, error) {
	if len(files) == 0 {
		return nil, &models.ValidationError{Field: "files", Reason: "at least one file is required"}
	}

	if newWorkspace {
		// Always mint a fresh id; honoring a caller-supplied one would let
		// an Upsert into the registry overwrite an existing entry
		workspaceID = common.NewWorkspaceID()
		ws := &models.Workspace{ID: workspaceID, Name: workspaceID, CreatedAt: time.Now()}
		if err := s.workspaces.Create(ctx, ws); err != nil {
			return nil, fmt.Errorf("failed to register workspace: %w", err)
		}
	} else {
		ws, err := s.workspaces.Get(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
		if ws.Locked {
			return nil, &models.ValidationError{Field: "workspaceId", Reason: "workspace is read-only"}
		}
	}

	result := &models.IngestBatchResult{
		WorkspaceID: workspaceID,
		Documents:   make([]models.DocumentResult, len(files)),
	}

	pool := worker.NewPool(s.config.Workers)
	var mu sync.Mutex

	for i, file := range files {
		i, file := i, file
		err := pool.Submit(ctx, func() {
			docResult := s.ingestOne(ctx, workspaceID, file)
			mu.Lock()
			result.Documents[i] = docResult
			mu.Unlock()
		})
		if err != nil {
			mu.Lock()
			result.Documents[i] = models.DocumentResult{
				FileName: file.Name,
				Stage:    models.StageReceived,
				Error:    err.Error(),
			}
			mu.Unlock()
		}
	}
	pool.Wait()

	s.logger.Info().
		Str("workspace_id", workspaceID).
		Int("files", len(files)).
		Int("failed", result.Failed()).
		Msg("Ingestion request finished")

	return result, nil
}

// ingestOne runs the full pipeline for a single file. Every failure is
// captured in the result with the stage it occurred at; nothing panics the
// batch.
func (s *Service) ingestOne(parent context.Context, workspaceID string, file models.FileUpload) models.DocumentResult {
	ctx, cancel := context.WithTimeout(parent, s.deadline)
	defer cancel()

	result := models.DocumentResult{
		FileName: file.Name,
		Stage:    models.StageReceived,
	}

	fail := func(stage models.IngestStage, err error) models.DocumentResult {
		ingErr := &models.IngestionError{Stage: stage, Err: err}
		result.Error = ingErr.Error()
		s.logger.Warn().
			Str("workspace_id", workspaceID).
			Str("file", file.Name).
			Str("stage", string(stage)).
			Err(err).
			Msg("Document ingestion failed")
		return result
	}

	if err := s.validateFile(file); err != nil {
		return fail(models.StageReceived, err)
	}

	doc := &models.Document{
		ID:          common.NewDocumentID(),
		WorkspaceID: workspaceID,
		FileName:    file.Name,
		ContentType: file.ContentType,
		SizeBytes:   int64(len(file.Data)),
		CreatedAt:   time.Now(),
	}
	doc.FileKey = path.Join(workspaceID, doc.ID, file.Name)
	doc.FileURL = s.files.URLFor(doc.FileKey)
	result.DocumentID = doc.ID

	// Stage: store raw bytes
	if err := s.files.Save(ctx, doc.FileKey, file.Data); err != nil {
		return fail(models.StageReceived, err)
	}
	result.Stage = models.StageStored
	result.FileURL = doc.FileURL

	// Stage: extract and chunk
	text, err := s.extractText(ctx, file, doc)
	if err != nil {
		return fail(models.StageStored, err)
	}

	chunks := chunker.Chunk(text, s.config.ChunkMaxChars, s.config.ChunkMinChars)
	if len(chunks) == 0 {
		return fail(models.StageStored, fmt.Errorf("no text content extracted from %s", file.Name))
	}
	result.Stage = models.StageChunked
	result.ChunkCount = len(chunks)

	// Stage: embed
	vectors, err := s.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return fail(models.StageChunked, err)
	}
	result.Stage = models.StageEmbedded

	// Stage: upsert
	records := make([]models.VectorRecord, len(chunks))
	now := time.Now().Unix()
	for i, chunk := range chunks {
		records[i] = models.VectorRecord{
			ID:     common.ChunkID(doc.ID, i),
			Values: vectors[i],
			Metadata: map[string]interface{}{
				models.MetadataText:         chunk,
				models.MetadataReferenceURL: doc.FileURL,
				models.MetadataPublishedAt:  now,
				"fileName":                  doc.FileName,
				"documentId":                doc.ID,
				"totalPages":                doc.PageCount,
			},
		}
	}
	if err := s.upsertWithRetry(ctx, workspaceID, records); err != nil {
		// Stage reports where the pipeline stopped; the error names the
		// stage that failed
		return fail(models.StageUpserted, err)
	}
	result.Stage = models.StageComplete

	s.logger.Info().
		Str("workspace_id", workspaceID).
		Str("document_id", doc.ID).
		Str("file", file.Name).
		Int("chunks", len(chunks)).
		Msg("Document ingested")

	return result
}

// validateFile enforces the content-type allow list and the size ceiling
func (s *Service) validateFile(file models.FileUpload) error {
	if strings.TrimSpace(file.Name) == "" {
		return &models.ValidationError{Field: "name", Reason: "file name is required"}
	}
	if len(file.Data) == 0 {
		return &models.ValidationError{Field: "data", Reason: "file is empty"}
	}
	if s.config.MaxFileSizeBytes > 0 && int64(len(file.Data)) > s.config.MaxFileSizeBytes {
		return &models.ValidationError{
			Field:  "data",
			Reason: fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxFileSizeBytes),
		}
	}

	if len(s.config.AllowedTypes) == 0 {
		return nil
	}
	contentType := baseContentType(file.ContentType)
	for _, allowed := range s.config.AllowedTypes {
		if contentType == allowed {
			return nil
		}
	}
	return &models.ValidationError{
		Field:  "contentType",
		Reason: fmt.Sprintf("unsupported content type %q", file.ContentType),
	}
}

func baseContentType(contentType string) string {
	if pos := strings.Index(contentType, ";"); pos >= 0 {
		contentType = contentType[:pos]
	}
	return strings.TrimSpace(strings.ToLower(contentType))
}

// extractText dispatches on content type. PDF goes through the extractor;
// everything else on the allow list is treated as UTF-8 text.
func (s *Service) extractText(ctx context.Context, file models.FileUpload, doc *models.Document) (string, error) {
	if baseContentType(file.ContentType) == "application/pdf" {
		text, pageCount, err := s.extractor.ExtractText(ctx, file.Data)
		if err != nil {
			return "", err
		}
		doc.PageCount = pageCount
		return text, nil
	}
	return string(file.Data), nil
}

// upsertWithRetry retries rate-limited and transient upsert failures with
// exponential backoff starting at one second. Other failures abort at once:
// retrying a configuration error cannot help.
func (s *Service) upsertWithRetry(ctx context.Context, namespace string, records []models.VectorRecord) error {
	maxAttempts := s.config.UpsertMaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = s.vectors.Upsert(ctx, namespace, records)
		if lastErr == nil {
			return nil
		}
		if !models.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		wait := backoff
		var rl *models.RateLimitedError
		if errors.As(lastErr, &rl) && rl.RetryAfter > wait {
			wait = rl.RetryAfter
		}

		s.logger.Warn().
			Str("namespace", namespace).
			Int("attempt", attempt).
			Err(lastErr).
			Msg("Upsert throttled, backing off")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	return fmt.Errorf("upsert failed after %d attempts: %w", maxAttempts, lastErr)
}

// ListDocuments lists the stored files of a workspace
func (s *Service) ListDocuments(ctx context.Context, workspaceID string) ([]models.StoredFile, error) {
	if _, err := s.workspaces.Get(ctx, workspaceID); err != nil {
		return nil, err
	}
	return s.files.List(ctx, workspaceID)
}

// DeleteDocument removes a document's chunks from the vector store, then
// deletes the stored file. Chunk ids are discovered by listing the
// document's id prefix page by page; a document with zero chunks (never
// upserted, or already deleted) is success. The two stores are cleaned
// independently: a vector-store failure is logged and file cleanup still
// runs, and vice versa. The orphan sweep reconciles anything left behind.
func (s *Service) DeleteDocument(ctx context.Context, workspaceID, documentID string) error {
	ws, err := s.workspaces.Get(ctx, workspaceID)
	if err != nil {
		return err
	}
	if ws.Locked {
		return &models.ValidationError{Field: "workspaceId", Reason: "workspace is read-only"}
	}

	prefix := common.ChunkIDPrefix(documentID)
	deleted := 0
	token := ""
	for {
		ids, next, err := s.vectors.ListIDs(ctx, workspaceID, prefix, s.listPage, token)
		if err != nil {
			if !models.IsNotFound(err) {
				s.logger.Warn().
					Str("workspace_id", workspaceID).
					Str("document_id", documentID).
					Err(err).
					Msg("Failed to list chunks; file cleanup continues")
			}
			break
		}
		if len(ids) > 0 {
			if err := s.vectors.DeleteByIDs(ctx, workspaceID, ids); err != nil {
				s.logger.Warn().
					Str("workspace_id", workspaceID).
					Str("document_id", documentID).
					Err(err).
					Msg("Failed to delete chunks; file cleanup continues")
				break
			}
			deleted += len(ids)
		}
		if next == "" {
			break
		}
		token = next
	}

	if err := s.files.DeletePrefix(ctx, path.Join(workspaceID, documentID)); err != nil {
		s.logger.Warn().
			Str("workspace_id", workspaceID).
			Str("document_id", documentID).
			Err(err).
			Msg("Failed to delete stored file")
	}

	s.logger.Info().
		Str("workspace_id", workspaceID).
		Str("document_id", documentID).
		Int("chunks", deleted).
		Msg("Document deleted")

	return nil
}

// DeleteWorkspace drops the vector namespace, deletes the storage prefix
// and removes the registry entry. As with DeleteDocument the stores are
// cleaned independently; only a registry failure is returned.
func (s *Service) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	ws, err := s.workspaces.Get(ctx, workspaceID)
	if err != nil {
		return err
	}
	if ws.Locked {
		return &models.ValidationError{Field: "workspaceId", Reason: "workspace is read-only"}
	}

	if err := s.vectors.DeleteNamespace(ctx, workspaceID); err != nil {
		s.logger.Warn().
			Str("workspace_id", workspaceID).
			Err(err).
			Msg("Failed to delete vector namespace; file cleanup continues")
	}

	if err := s.files.DeletePrefix(ctx, workspaceID); err != nil {
		s.logger.Warn().
			Str("workspace_id", workspaceID).
			Err(err).
			Msg("Failed to delete workspace files")
	}

	if err := s.workspaces.Delete(ctx, workspaceID); err != nil {
		return fmt.Errorf("failed to deregister workspace %s: %w", workspaceID, err)
	}

	s.logger.Info().Str("workspace_id", workspaceID).Msg("Workspace deleted")
	return nil
}

// SweepOrphans removes storage namespaces with no registry entry, the
// eventual cleanup for uploads whose workspace registration was lost or
// whose deletion only partially completed
func (s *Service) SweepOrphans(ctx context.Context) (int, error) {
	namespaces, err := s.files.Namespaces(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list storage namespaces: %w", err)
	}

	removed := 0
	for _, ns := range namespaces {
		_, err := s.workspaces.Get(ctx, ns)
		if err == nil {
			continue
		}
		if !models.IsNotFound(err) {
			return removed, err
		}

		s.logger.Info().Str("namespace", ns).Msg("Sweeping orphaned storage namespace")
		if err := s.files.DeletePrefix(ctx, ns); err != nil {
			s.logger.Warn().Err(err).Str("namespace", ns).Msg("Failed to sweep namespace")
			continue
		}
		if err := s.vectors.DeleteNamespace(ctx, ns); err != nil {
			s.logger.Warn().Err(err).Str("namespace", ns).Msg("Failed to delete orphaned vectors")
		}
		removed++
	}

	return removed, nil
}
