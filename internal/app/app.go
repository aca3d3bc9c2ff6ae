package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/handlers"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/services/chat"
	"github.com/ternarybob/colligo/internal/services/embeddings"
	"github.com/ternarybob/colligo/internal/services/ingest"
	"github.com/ternarybob/colligo/internal/services/llm"
	"github.com/ternarybob/colligo/internal/services/pdf"
	"github.com/ternarybob/colligo/internal/services/retrieval"
	badgerstore "github.com/ternarybob/colligo/internal/storage/badger"
	"github.com/ternarybob/colligo/internal/storage/filestore"
	"github.com/ternarybob/colligo/internal/vectorstore/memory"
	"github.com/ternarybob/colligo/internal/vectorstore/pinecone"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB               *badgerstore.BadgerDB
	WorkspaceStorage interfaces.WorkspaceStorage
	FileStorage      interfaces.ObjectStorage

	// Vector pipeline services
	VectorStore      interfaces.VectorStore
	EmbeddingService interfaces.EmbeddingService
	PDFExtractor     interfaces.PDFExtractor
	IngestionService interfaces.IngestionService
	ContextService   interfaces.ContextService
	LLMService       interfaces.LLMService
	ChatService      interfaces.ChatService

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	DocumentHandler  *handlers.DocumentHandler
	WorkspaceHandler *handlers.WorkspaceHandler
	ContextHandler   *handlers.ContextHandler
	ChatHandler      *handlers.ChatHandler

	cron *cron.Cron
}

// New wires the application together. Construction is fail-fast: a bad
// configuration or unreachable index aborts startup rather than limping
// into request handling.
func New(ctx context.Context, config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: config,
		Logger: logger,
	}

	// Workspace registry
	db, err := badgerstore.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace registry: %w", err)
	}
	a.DB = db
	a.WorkspaceStorage = badgerstore.NewWorkspaceStorage(db, logger)

	// Raw file storage
	files, err := filestore.NewLocalStore(&config.Storage.Files, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open file storage: %w", err)
	}
	a.FileStorage = files

	// Vector store backend
	switch config.Vector.Backend {
	case "pinecone":
		a.VectorStore = pinecone.NewClient(&config.Vector, logger)
	case "memory":
		a.VectorStore = memory.NewStore(config.Vector.Dimension)
	default:
		a.Close()
		return nil, fmt.Errorf("unknown vector backend %q", config.Vector.Backend)
	}
	if err := a.VectorStore.EnsureIndex(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to ensure vector index: %w", err)
	}

	// Embeddings
	a.EmbeddingService = embeddings.NewService(&config.Embedding, logger)

	// Ingestion pipeline
	a.PDFExtractor = pdf.NewExtractor(logger)
	deadline, err := config.DocumentDeadline()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.IngestionService = ingest.NewService(ingest.Options{
		Config:       &config.Ingest,
		Deadline:     deadline,
		ListPageSize: config.Vector.ListPageSize,
		Workspaces:   a.WorkspaceStorage,
		Files:        a.FileStorage,
		Vectors:      a.VectorStore,
		Embedder:     a.EmbeddingService,
		Extractor:    a.PDFExtractor,
		Logger:       logger,
	})

	// Retrieval and chat
	a.ContextService = retrieval.NewService(&config.Retrieval, a.VectorStore, a.EmbeddingService, logger)

	if config.Claude.APIKey != "" {
		llmService, err := llm.NewClaudeService(&config.Claude, config.ClaudeTimeout(), logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.LLMService = llmService
		a.ChatService = chat.NewService(a.ContextService, a.LLMService, logger)
	} else {
		logger.Warn().Msg("No Anthropic API key configured; /api/chat is disabled")
	}

	// HTTP handlers
	a.APIHandler = handlers.NewAPIHandler(a.VectorStore, a.EmbeddingService)
	a.DocumentHandler = handlers.NewDocumentHandler(a.IngestionService, a.FileStorage)
	a.WorkspaceHandler = handlers.NewWorkspaceHandler(a.WorkspaceStorage)
	a.ContextHandler = handlers.NewContextHandler(a.ContextService)
	a.ChatHandler = handlers.NewChatHandler(a.ChatService)

	// Scheduled maintenance: orphan sweep plus registry value-log GC
	if config.Maintenance.Enabled {
		a.cron = cron.New(cron.WithSeconds())
		_, err := a.cron.AddFunc(config.Maintenance.Schedule, func() {
			sweepCtx, cancel := context.WithTimeout(context.Background(), deadline)
			defer cancel()

			removed, err := a.IngestionService.SweepOrphans(sweepCtx)
			if err != nil {
				logger.Warn().Err(err).Msg("Orphan sweep failed")
			} else if removed > 0 {
				logger.Info().Int("removed", removed).Msg("Orphan sweep finished")
			}
			a.DB.RunGC()
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("invalid maintenance schedule %q: %w", config.Maintenance.Schedule, err)
		}
		a.cron.Start()
	}

	logger.Info().
		Str("vector_backend", config.Vector.Backend).
		Str("embedding_model", a.EmbeddingService.ModelName()).
		Int("dimension", a.EmbeddingService.Dimension()).
		Msg("Application initialized")

	return a, nil
}

// Close stops the scheduler and releases storage
func (a *App) Close() error {
	if a.cron != nil {
		a.cron.Stop()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
