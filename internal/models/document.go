package models

import "time"

// Document represents one uploaded file. The object store is the system of
// record for its bytes; the vector store is the system of record for its
// chunks. The two are not transactionally linked.
type Document struct {
	ID          string    `json:"id"` // doc_<uuid>
	WorkspaceID string    `json:"workspace_id"`
	FileName    string    `json:"file_name"`
	FileKey     string    `json:"file_key"` // {workspaceId}/{documentId}/{fileName}
	FileURL     string    `json:"file_url"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	PageCount   int       `json:"page_count,omitempty"` // PDF only
	ChunkCount  int       `json:"chunk_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Chunk is a bounded slice of a document's text plus its embedding, the unit
// of retrieval. Immutable once embedded.
type Chunk struct {
	ID     string    `json:"id"` // {documentId}:{index}
	Index  int       `json:"index"`
	Text   string    `json:"text"`
	Values []float32 `json:"values"`
}

// StoredFile describes a file listed from object storage
type StoredFile struct {
	Name       string `json:"name"`
	Key        string `json:"key"`
	URL        string `json:"url"`
	SizeBytes  int64  `json:"size_bytes"`
	DocumentID string `json:"document_id"`
}
