package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/storage/filestore"
	"github.com/ternarybob/colligo/internal/vectorstore/memory"
)

const testDimension = 3

// fakeEmbedder returns deterministic vectors without leaving the process
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  error
}

var _ interfaces.EmbeddingService = (*fakeEmbedder)(nil)

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	fail := f.fail
	f.mu.Unlock()
	if fail != nil {
		return nil, fail
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		var sum float32
		for _, r := range text {
			sum += float32(r)
		}
		vectors[i] = []float32{sum, 1, 0}
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := f.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embedder" }
func (f *fakeEmbedder) Dimension() int    { return testDimension }

// memWorkspaces is a map-backed registry for tests
type memWorkspaces struct {
	mu         sync.Mutex
	workspaces map[string]*models.Workspace
}

var _ interfaces.WorkspaceStorage = (*memWorkspaces)(nil)

func newMemWorkspaces() *memWorkspaces {
	return &memWorkspaces{workspaces: make(map[string]*models.Workspace)}
}

func (m *memWorkspaces) Create(ctx context.Context, ws *models.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = time.Now()
	}
	copied := *ws
	m.workspaces[ws.ID] = &copied
	return nil
}

func (m *memWorkspaces) Get(ctx context.Context, id string) (*models.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("workspace %s: %w", id, models.ErrNotFound)
	}
	copied := *ws
	return &copied, nil
}

func (m *memWorkspaces) List(ctx context.Context) ([]*models.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*models.Workspace, 0, len(m.workspaces))
	for _, ws := range m.workspaces {
		copied := *ws
		result = append(result, &copied)
	}
	return result, nil
}

func (m *memWorkspaces) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workspaces, id)
	return nil
}

// flakyStore wraps the memory store and fails the first n upserts
type flakyStore struct {
	interfaces.VectorStore
	mu       sync.Mutex
	failures int
	attempts int
}

func (f *flakyStore) Upsert(ctx context.Context, namespace string, records []models.VectorRecord) error {
	f.mu.Lock()
	f.attempts++
	shouldFail := f.attempts <= f.failures
	f.mu.Unlock()
	if shouldFail {
		return &models.RateLimitedError{}
	}
	return f.VectorStore.Upsert(ctx, namespace, records)
}

type fixture struct {
	service    *Service
	workspaces *memWorkspaces
	files      *filestore.LocalStore
	vectors    interfaces.VectorStore
	embedder   *fakeEmbedder
}

func newFixture(t *testing.T, vectors interfaces.VectorStore) *fixture {
	t.Helper()

	logger := arbor.NewLogger()
	files, err := filestore.NewLocalStore(&common.FilesConfig{
		Backend: "local",
		Path:    t.TempDir(),
		BaseURL: "/api/documents/files",
	}, logger)
	require.NoError(t, err)

	if vectors == nil {
		vectors = memory.NewStore(testDimension)
	}

	workspaces := newMemWorkspaces()
	embedder := &fakeEmbedder{}

	service := NewService(Options{
		Config: &common.IngestConfig{
			AllowedTypes:     []string{"application/pdf", "text/plain", "text/markdown"},
			MaxFileSizeBytes: 1 << 20,
			Workers:          2,
			ChunkMaxChars:    200,
			ChunkMinChars:    50,
			UpsertMaxRetries: 3,
		},
		Deadline:     30 * time.Second,
		ListPageSize: 2, // force pagination during deletes
		Workspaces:   workspaces,
		Files:        files,
		Vectors:      vectors,
		Embedder:     embedder,
		Extractor:    nil, // plain text only in these tests
		Logger:       logger,
	})

	return &fixture{service: service, workspaces: workspaces, files: files, vectors: vectors, embedder: embedder}
}

// multiChunkText produces paragraphs that chunk into several pieces at the
// fixture's 200/50 char bounds
func multiChunkText(paragraphs int) string {
	var b strings.Builder
	for i := 0; i < paragraphs; i++ {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.Repeat(fmt.Sprintf("paragraph %d content ", i), 8))
	}
	return b.String()
}

func TestIngestNewWorkspaceEndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result, err := f.service.IngestFiles(ctx, "", true, []models.FileUpload{
		{Name: "notes.txt", ContentType: "text/plain", Data: []byte(multiChunkText(6))},
	})
	require.NoError(t, err)
	require.Len(t, result.Documents, 1)

	doc := result.Documents[0]
	require.True(t, doc.Succeeded(), "document failed: %s", doc.Error)
	assert.NotEmpty(t, doc.DocumentID)
	assert.GreaterOrEqual(t, doc.ChunkCount, 3)
	assert.Zero(t, result.Failed())

	// Workspace registered
	ws, err := f.workspaces.Get(ctx, result.WorkspaceID)
	require.NoError(t, err)
	assert.Equal(t, result.WorkspaceID, ws.ID)

	// Raw file stored and listable
	files, err := f.service.ListDocuments(ctx, result.WorkspaceID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "notes.txt", files[0].Name)
	assert.Equal(t, doc.DocumentID, files[0].DocumentID)

	// Chunks queryable with the expected metadata
	queryVec, err := f.embedder.EmbedQuery(ctx, "paragraph 0 content")
	require.NoError(t, err)
	matches, err := f.vectors.Query(ctx, result.WorkspaceID, queryVec, 15, nil)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Contains(t, matches[0].Metadata[models.MetadataText], "paragraph")
	assert.Equal(t, doc.FileURL, matches[0].Metadata[models.MetadataReferenceURL])
}

func TestIngestPerFileFailureDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.service.IngestFiles(context.Background(), "", true, []models.FileUpload{
		{Name: "good.txt", ContentType: "text/plain", Data: []byte(multiChunkText(4))},
		{Name: "bad.bin", ContentType: "application/octet-stream", Data: []byte{0x1}},
	})
	require.NoError(t, err)
	require.Len(t, result.Documents, 2)

	assert.True(t, result.Documents[0].Succeeded())
	assert.False(t, result.Documents[1].Succeeded())
	assert.Contains(t, result.Documents[1].Error, "unsupported content type")
	assert.Equal(t, 1, result.Failed())
}

func TestIngestRejectsLockedWorkspace(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.workspaces.Create(ctx, &models.Workspace{ID: "ws_demo", Locked: true}))

	_, err := f.service.IngestFiles(ctx, "ws_demo", false, []models.FileUpload{
		{Name: "f.txt", ContentType: "text/plain", Data: []byte("text")},
	})
	var ve *models.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestIngestUnknownWorkspace(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.IngestFiles(context.Background(), "ws_missing", false, []models.FileUpload{
		{Name: "f.txt", ContentType: "text/plain", Data: []byte("text")},
	})
	assert.True(t, models.IsNotFound(err))
}

func TestUpsertRetriesRateLimits(t *testing.T) {
	flaky := &flakyStore{VectorStore: memory.NewStore(testDimension), failures: 2}
	f := newFixture(t, flaky)

	result, err := f.service.IngestFiles(context.Background(), "", true, []models.FileUpload{
		{Name: "notes.txt", ContentType: "text/plain", Data: []byte(multiChunkText(4))},
	})
	require.NoError(t, err)
	require.True(t, result.Documents[0].Succeeded(), "document failed: %s", result.Documents[0].Error)
	assert.Equal(t, 3, flaky.attempts)
}

func TestUpsertGivesUpAfterMaxRetries(t *testing.T) {
	flaky := &flakyStore{VectorStore: memory.NewStore(testDimension), failures: 100}
	f := newFixture(t, flaky)

	result, err := f.service.IngestFiles(context.Background(), "", true, []models.FileUpload{
		{Name: "notes.txt", ContentType: "text/plain", Data: []byte(multiChunkText(4))},
	})
	require.NoError(t, err)

	doc := result.Documents[0]
	assert.False(t, doc.Succeeded())
	assert.Equal(t, models.StageEmbedded, doc.Stage, "embedding is the last completed stage")
	assert.Contains(t, doc.Error, "stage upserted", "the error names the stage that failed")
	assert.Equal(t, 3, flaky.attempts)
}

func TestNewWorkspaceAlwaysMintsFreshID(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.workspaces.Create(ctx, &models.Workspace{ID: "ws_demo", Locked: true}))

	result, err := f.service.IngestFiles(ctx, "ws_demo", true, []models.FileUpload{
		{Name: "f.txt", ContentType: "text/plain", Data: []byte(multiChunkText(3))},
	})
	require.NoError(t, err)
	assert.NotEqual(t, "ws_demo", result.WorkspaceID)

	// The locked workspace's registry entry is untouched
	ws, err := f.workspaces.Get(ctx, "ws_demo")
	require.NoError(t, err)
	assert.True(t, ws.Locked)
}

func TestDeleteDocumentRemovesOnlyItsChunks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result, err := f.service.IngestFiles(ctx, "", true, []models.FileUpload{
		{Name: "first.txt", ContentType: "text/plain", Data: []byte(multiChunkText(5))},
		{Name: "second.txt", ContentType: "text/plain", Data: []byte(multiChunkText(5))},
	})
	require.NoError(t, err)
	require.Zero(t, result.Failed())

	ws := result.WorkspaceID
	first, second := result.Documents[0], result.Documents[1]

	require.NoError(t, f.service.DeleteDocument(ctx, ws, first.DocumentID))

	ids, _, err := f.vectors.ListIDs(ctx, ws, common.ChunkIDPrefix(first.DocumentID), 100, "")
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, _, err = f.vectors.ListIDs(ctx, ws, common.ChunkIDPrefix(second.DocumentID), 100, "")
	require.NoError(t, err)
	assert.Len(t, ids, second.ChunkCount)

	// The raw file is gone too
	files, err := f.service.ListDocuments(ctx, ws)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, second.DocumentID, files[0].DocumentID)
}

// brokenListStore wraps the memory store and fails every chunk listing
type brokenListStore struct {
	interfaces.VectorStore
}

func (b *brokenListStore) ListIDs(ctx context.Context, namespace, prefix string, limit int, paginationToken string) ([]string, string, error) {
	return nil, "", &models.TransientError{Err: fmt.Errorf("listing unavailable")}
}

func TestDeleteDocumentCleansFileWhenVectorStoreFails(t *testing.T) {
	f := newFixture(t, &brokenListStore{VectorStore: memory.NewStore(testDimension)})
	ctx := context.Background()

	result, err := f.service.IngestFiles(ctx, "", true, []models.FileUpload{
		{Name: "notes.txt", ContentType: "text/plain", Data: []byte(multiChunkText(4))},
	})
	require.NoError(t, err)
	require.Zero(t, result.Failed())
	ws := result.WorkspaceID

	// Chunk listing fails, but the stored file is still removed
	require.NoError(t, f.service.DeleteDocument(ctx, ws, result.Documents[0].DocumentID))

	files, err := f.service.ListDocuments(ctx, ws)
	require.NoError(t, err)
	assert.Empty(t, files)
}

// brokenNamespaceStore wraps the memory store and fails namespace deletion
type brokenNamespaceStore struct {
	interfaces.VectorStore
}

func (b *brokenNamespaceStore) DeleteNamespace(ctx context.Context, namespace string) error {
	return &models.TransientError{Err: fmt.Errorf("namespace deletion unavailable")}
}

func TestDeleteWorkspaceCleansUpWhenVectorStoreFails(t *testing.T) {
	f := newFixture(t, &brokenNamespaceStore{VectorStore: memory.NewStore(testDimension)})
	ctx := context.Background()

	result, err := f.service.IngestFiles(ctx, "", true, []models.FileUpload{
		{Name: "notes.txt", ContentType: "text/plain", Data: []byte(multiChunkText(4))},
	})
	require.NoError(t, err)
	require.Zero(t, result.Failed())
	ws := result.WorkspaceID

	require.NoError(t, f.service.DeleteWorkspace(ctx, ws))

	// Registry entry and storage namespace are gone despite the vector
	// failure
	_, err = f.workspaces.Get(ctx, ws)
	assert.True(t, models.IsNotFound(err))
	namespaces, err := f.files.Namespaces(ctx)
	require.NoError(t, err)
	assert.NotContains(t, namespaces, ws)
}

func TestDeleteDocumentNeverUpsertedIsSuccess(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.workspaces.Create(ctx, &models.Workspace{ID: "ws_a"}))
	assert.NoError(t, f.service.DeleteDocument(ctx, "ws_a", "doc_never_existed"))
}

func TestDeleteWorkspacePurgesEverything(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result, err := f.service.IngestFiles(ctx, "", true, []models.FileUpload{
		{Name: "notes.txt", ContentType: "text/plain", Data: []byte(multiChunkText(5))},
	})
	require.NoError(t, err)
	require.Zero(t, result.Failed())
	ws := result.WorkspaceID

	require.NoError(t, f.service.DeleteWorkspace(ctx, ws))

	// Vectors gone
	queryVec, err := f.embedder.EmbedQuery(ctx, "paragraph")
	require.NoError(t, err)
	matches, err := f.vectors.Query(ctx, ws, queryVec, 15, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)

	// Registry entry gone
	_, err = f.workspaces.Get(ctx, ws)
	assert.True(t, models.IsNotFound(err))

	// Storage namespace gone
	namespaces, err := f.files.Namespaces(ctx)
	require.NoError(t, err)
	assert.NotContains(t, namespaces, ws)
}

func TestSweepOrphans(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// A registered workspace with files, and an orphaned namespace
	result, err := f.service.IngestFiles(ctx, "", true, []models.FileUpload{
		{Name: "keep.txt", ContentType: "text/plain", Data: []byte(multiChunkText(3))},
	})
	require.NoError(t, err)
	require.NoError(t, f.files.Save(ctx, "ws_orphan/doc_x/lost.txt", []byte("leftover")))

	removed, err := f.service.SweepOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	namespaces, err := f.files.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{result.WorkspaceID}, namespaces)
}
