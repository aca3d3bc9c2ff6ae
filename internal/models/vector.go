package models

// VectorRecord is the upsert unit for the vector store. Metadata values must
// be flat: string, number, bool or []string. Richer shapes are flattened by
// the ingestion orchestrator before upsert.
type VectorRecord struct {
	ID       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Match is an ephemeral query-time result, never persisted
type Match struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// MetadataFilter is a structured predicate over metadata fields, expressed in
// the store's operator syntax, e.g. {"published_at": {"$gte": 1700000000}}.
type MetadataFilter map[string]interface{}

// RecencyFilter restricts matches to records whose numeric field is at or
// after minValue
func RecencyFilter(field string, minValue int64) MetadataFilter {
	return MetadataFilter{field: map[string]interface{}{"$gte": minValue}}
}

// IndexStats summarizes the backing index
type IndexStats struct {
	Dimension        int            `json:"dimension"`
	TotalRecordCount int            `json:"total_record_count"`
	Namespaces       map[string]int `json:"namespaces"`
}

// MetadataText is the metadata key carrying the chunk's raw text
const MetadataText = "text"

// MetadataReferenceURL is the metadata key carrying the source file URL. It
// doubles as the deduplication identity during context assembly.
const MetadataReferenceURL = "referenceURL"

// MetadataPublishedAt is the metadata key carrying the ingestion unix
// timestamp used by recency filters
const MetadataPublishedAt = "published_at"
