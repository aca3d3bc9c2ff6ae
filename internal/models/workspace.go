package models

import "time"

// Workspace is the tenant isolation boundary. Each workspace owns a vector
// namespace and a storage prefix; deleting the workspace purges both.
type Workspace struct {
	ID        string    `json:"id" badgerhold:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`

	// Locked marks read-only demo content: uploads and deletes are rejected
	Locked bool `json:"locked"`
}
