package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FSStore keeps objects as files under a root directory.
type FSStore struct {
	root    string
	baseURL string
}

// NewFSStore creates root if needed and returns a filesystem store whose URLs
// are rooted at baseURL.
func NewFSStore(root, baseURL string) (*FSStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSStore{root: filepath.Clean(root), baseURL: baseURL}, nil
}

func (s *FSStore) filePath(objectPath string) (string, error) {
	cleaned, err := CleanPath(objectPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// Put writes body atomically and returns the public URL.
func (s *FSStore) Put(ctx context.Context, objectPath string, contentType string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target, err := s.filePath(objectPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create blob temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func(cause error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", cause
	}
	if _, err := io.Copy(tmp, body); err != nil {
		if errors.Is(err, ErrTooLarge) {
			return cleanup(err)
		}
		return cleanup(fmt.Errorf("write blob: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return PublicURL(s.baseURL, objectPath), nil
}

// Open returns the stored object.
func (s *FSStore) Open(ctx context.Context, objectPath string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	target, err := s.filePath(objectPath)
	if err != nil {
		return Object{}, err
	}
	file, err := os.Open(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("open blob: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return Object{}, fmt.Errorf("stat blob: %w", err)
	}
	if info.IsDir() {
		_ = file.Close()
		return Object{}, ErrNotFound
	}
	return Object{ReadCloser: file, ContentType: ContentTypeForPath(objectPath), Size: info.Size()}, nil
}

var _ Store = (*FSStore)(nil)
