package common

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NewWorkspaceID generates a unique workspace (namespace) ID.
// Format: ws_<uuid>
func NewWorkspaceID() string {
	return "ws_" + uuid.New().String()
}

// NewDocumentID generates a unique document ID.
// Format: doc_<uuid>
func NewDocumentID() string {
	return "doc_" + uuid.New().String()
}

// ChunkID builds the composite vector id for a chunk. The colon separator is
// load-bearing: deletion lists chunk ids by the ChunkIDPrefix of the owning
// document, and the trailing colon keeps documents whose ids share a prefix
// from matching each other's chunks.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s:%d", documentID, index)
}

// ChunkIDPrefix returns the listing prefix covering every chunk of a document
func ChunkIDPrefix(documentID string) string {
	return documentID + ":"
}

// ParseChunkID splits a composite chunk id into document id and chunk index
func ParseChunkID(id string) (documentID string, index int, err error) {
	pos := strings.LastIndex(id, ":")
	if pos <= 0 || pos == len(id)-1 {
		return "", 0, fmt.Errorf("malformed chunk id %q", id)
	}
	index, err = strconv.Atoi(id[pos+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed chunk id %q: %w", id, err)
	}
	return id[:pos], index, nil
}
