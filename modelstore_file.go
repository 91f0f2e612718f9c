package prefixcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// modelFileExt is the extension for stored model documents.
const modelFileExt = ".yaml"

// FileModelStore implements ModelStore using a directory of YAML
// documents, one file per model.
type FileModelStore struct {
	baseDir string
}

// NewFileModelStore creates a file-based model store rooted at baseDir.
// The directory is created if it does not exist.
func NewFileModelStore(baseDir string) (*FileModelStore, error) {
	if baseDir == "" {
		return nil, errors.New("model directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}
	// Store the cleaned absolute path for consistent path traversal checks
	absDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve model directory: %w", err)
	}
	return &FileModelStore{baseDir: filepath.Clean(absDir)}, nil
}

// docPath validates a model name and returns its document path. A name
// must be a single path component so documents cannot land outside the
// base directory.
func (f *FileModelStore) docPath(name string) (string, error) {
	if name == "" {
		return "", errors.New("model name is required")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid model name: %q", name)
	}
	resolved := filepath.Clean(filepath.Join(f.baseDir, name+modelFileExt))
	if filepath.Dir(resolved) != f.baseDir {
		return "", fmt.Errorf("invalid model name: %q", name)
	}
	return resolved, nil
}

func (f *FileModelStore) Get(ctx context.Context, name string) (FrequencyModel, error) {
	path, err := f.docPath(name)
	if err != nil {
		return FrequencyModel{}, newStoreError("file", "get", name, err)
	}
	doc, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return FrequencyModel{}, newStoreError("file", "get", name, ErrModelNotFound)
	}
	if err != nil {
		return FrequencyModel{}, newStoreError("file", "get", name, err)
	}
	model, err := ParseModel(doc)
	if err != nil {
		return FrequencyModel{}, newStoreError("file", "get", name, err)
	}
	return model, nil
}

func (f *FileModelStore) Put(ctx context.Context, model FrequencyModel) error {
	name := model.Metadata.Name
	if err := model.Validate(); err != nil {
		return newStoreError("file", "put", name, err)
	}
	path, err := f.docPath(name)
	if err != nil {
		return newStoreError("file", "put", name, err)
	}
	doc, err := MarshalModel(model)
	if err != nil {
		return newStoreError("file", "put", name, err)
	}

	// Write to a temporary file and rename so readers never observe a
	// partially written document.
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, doc, 0o644); err != nil {
		return newStoreError("file", "put", name, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return newStoreError("file", "put", name, err)
	}
	return nil
}

func (f *FileModelStore) Delete(ctx context.Context, name string) error {
	path, err := f.docPath(name)
	if err != nil {
		return newStoreError("file", "delete", name, err)
	}
	err = os.Remove(path)
	if os.IsNotExist(err) {
		return newStoreError("file", "delete", name, ErrModelNotFound)
	}
	if err != nil {
		return newStoreError("file", "delete", name, err)
	}
	return nil
}

func (f *FileModelStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return nil, newStoreError("file", "list", "", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), modelFileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), modelFileExt))
	}
	sort.Strings(names)
	return names, nil
}

func (f *FileModelStore) Exists(ctx context.Context, name string) (bool, error) {
	path, err := f.docPath(name)
	if err != nil {
		return false, newStoreError("file", "exists", name, err)
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, newStoreError("file", "exists", name, err)
	}
	return true, nil
}

func (f *FileModelStore) Close() error {
	return nil
}
