package filestore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// LocalStore keeps raw uploaded files on the local filesystem under a root
// directory, laid out {workspaceId}/{documentId}/{fileName}. Keys always use
// forward slashes regardless of platform.
type LocalStore struct {
	root    string
	baseURL string
	logger  arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.ObjectStorage = (*LocalStore)(nil)

// NewLocalStore creates the store, making the root directory if needed
func NewLocalStore(cfg *common.FilesConfig, logger arbor.ILogger) (*LocalStore, error) {
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", cfg.Path, err)
	}
	return &LocalStore{
		root:    cfg.Path,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger,
	}, nil
}

// keyPath converts a storage key to a filesystem path, rejecting traversal
func (s *LocalStore) keyPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", &models.ValidationError{Field: "key", Reason: fmt.Sprintf("invalid storage key %q", key)}
	}
	return filepath.Join(s.root, clean), nil
}

// Save writes the object, creating parent directories
func (s *LocalStore) Save(ctx context.Context, key string, data []byte) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Int("bytes", len(data)).Msg("Stored file")
	return nil
}

// Read returns the stored bytes, or models.ErrNotFound
func (s *LocalStore) Read(ctx context.Context, key string) ([]byte, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file %s: %w", key, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// List returns files under the prefix, sorted by key. An absent prefix
// directory is an empty result.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]models.StoredFile, error) {
	dir, err := s.keyPath(prefix)
	if err != nil {
		return nil, err
	}

	var files []models.StoredFile
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		files = append(files, models.StoredFile{
			Name:       d.Name(),
			Key:        key,
			URL:        s.URLFor(key),
			SizeBytes:  info.Size(),
			DocumentID: documentIDFromKey(key),
		})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, walkErr)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })
	return files, nil
}

// documentIDFromKey extracts the document id from a
// {workspaceId}/{documentId}/{fileName} key
func documentIDFromKey(key string) string {
	parts := strings.Split(key, "/")
	if len(parts) >= 3 {
		return parts[1]
	}
	return ""
}

// Delete removes one object; an absent key is success. Emptied parent
// directories are pruned so Namespaces never reports hollow workspaces.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	s.pruneEmptyParents(filepath.Dir(path))
	return nil
}

// DeletePrefix removes every object under the prefix
func (s *LocalStore) DeletePrefix(ctx context.Context, prefix string) error {
	dir, err := s.keyPath(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete prefix %s: %w", prefix, err)
	}
	s.pruneEmptyParents(filepath.Dir(dir))

	s.logger.Debug().Str("prefix", prefix).Msg("Deleted storage prefix")
	return nil
}

// pruneEmptyParents removes empty directories up to, but not including, root
func (s *LocalStore) pruneEmptyParents(dir string) {
	for dir != s.root && strings.HasPrefix(dir, s.root) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// Namespaces returns the top-level directory names (workspace ids)
func (s *LocalStore) Namespaces(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}

	namespaces := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			namespaces = append(namespaces, e.Name())
		}
	}
	sort.Strings(namespaces)
	return namespaces, nil
}

// URLFor constructs the serving URL for a key
func (s *LocalStore) URLFor(key string) string {
	return s.baseURL + "/" + key
}
