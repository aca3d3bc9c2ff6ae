package models

// IngestStage identifies how far a document travelled through the pipeline.
// Stages advance strictly in order for a single document; Failed is terminal
// from any stage.
type IngestStage string

const (
	StageReceived IngestStage = "received"
	StageStored   IngestStage = "stored"
	StageChunked  IngestStage = "chunked"
	StageEmbedded IngestStage = "embedded"
	StageUpserted IngestStage = "upserted"
	StageComplete IngestStage = "complete"
)

// FileUpload carries one uploaded file through validation and ingestion
type FileUpload struct {
	Name        string
	ContentType string
	Data        []byte
}

// DocumentResult reports the outcome for a single file of a multi-file
// ingestion request
type DocumentResult struct {
	DocumentID string      `json:"document_id"`
	FileName   string      `json:"file_name"`
	FileURL    string      `json:"file_url,omitempty"`
	ChunkCount int         `json:"chunk_count"`
	Stage      IngestStage `json:"stage"`
	Error      string      `json:"error,omitempty"`
}

// Succeeded reports whether the document completed the full pipeline
func (r DocumentResult) Succeeded() bool {
	return r.Stage == StageComplete && r.Error == ""
}

// IngestBatchResult is the per-file response of one ingestion request. A
// multi-file request is never all-or-nothing: some documents may complete
// while others fail.
type IngestBatchResult struct {
	WorkspaceID string           `json:"workspace_id"`
	Documents   []DocumentResult `json:"documents"`
}

// Failed returns the count of documents that did not complete
func (r *IngestBatchResult) Failed() int {
	failed := 0
	for _, d := range r.Documents {
		if !d.Succeeded() {
			failed++
		}
	}
	return failed
}

// Message is one turn of a chat conversation
type Message struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}
