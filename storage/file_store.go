package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/kadirpekel/threadrunner/config"
)

const defaultMaxFileSize = 50 * 1024 * 1024 // 50MB, matching the default FileStore limit

// defaultAllowedMIMEs mirrors the conservative allow-list of common document,
// image, and archive types.
var defaultAllowedMIMEs = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain",
	"text/csv",
	"application/json",
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/svg+xml",
	"application/zip",
	"application/x-tar",
	"application/gzip",
}

// FileMetadata is what Save returns and what FileStore implementations
// persist per attachment.
type FileMetadata struct {
	ID          string
	Filename    string
	MimeType    string
	StoragePath string
	Size        int64
}

// FileStore is the persistence contract for attachment bytes,
// separate from ThreadStore which only persists attachment metadata.
type FileStore interface {
	Save(ctx context.Context, filename string, content []byte, declaredMimeType string) (*FileMetadata, error)
	Get(ctx context.Context, fileID string) ([]byte, error)
	Delete(ctx context.Context, fileID string) error
	BatchSave(ctx context.Context, files []PendingFile) ([]*FileMetadata, []error)
	BatchDelete(ctx context.Context, fileIDs []string) (int, []error)
	ListFiles(ctx context.Context) ([]string, error)
	CleanupOrphanedFiles(ctx context.Context, referenced map[string]bool) (int, []error)
	CheckHealth(ctx context.Context) (map[string]interface{}, error)
	GetStorageSize(ctx context.Context) (int64, error)
	GetFileCount(ctx context.Context) (int, error)
}

// PendingFile is one item of a BatchSave call.
type PendingFile struct {
	Filename         string
	Content          []byte
	DeclaredMimeType string
}

// LocalFileStore stores attachment bytes on the local filesystem, sharded by
// the first two characters of the generated file id, mirroring
// the directory layout used for attachment blobs elsewhere in this corpus.
type LocalFileStore struct {
	mu            sync.Mutex
	basePath      string
	maxFileSize   int64
	allowedMIMEs  map[string]bool
	maxTotalBytes int64
}

// NewLocalFileStore creates a file store rooted at cfg.BasePath, or at
// TYLER_FILE_STORAGE_PATH when cfg.BasePath is empty, or at ~/.tyler/files
// when both are empty. A leading "~/" is expanded to the user's home
// directory. cfg.MaxFileSize/AllowedMIMEs defaults are applied when unset.
func NewLocalFileStore(cfg config.FileStoreConfig) (*LocalFileStore, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = os.Getenv("TYLER_FILE_STORAGE_PATH")
	}
	if basePath == "" || strings.HasPrefix(basePath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, newError("LocalFileStore", "New", "failed to resolve home directory", err)
		}
		if basePath == "" {
			basePath = filepath.Join(home, ".tyler", "files")
		} else {
			basePath = filepath.Join(home, basePath[2:])
		}
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, newError("LocalFileStore", "New", "failed to create storage directory", err)
	}

	maxFileSize := cfg.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}

	allowed := map[string]bool{}
	mimes := cfg.AllowedMIMEs
	if len(mimes) == 0 {
		mimes = defaultAllowedMIMEs
	}
	for _, m := range mimes {
		allowed[m] = true
	}

	return &LocalFileStore{
		basePath:      basePath,
		maxFileSize:   maxFileSize,
		allowedMIMEs:  allowed,
		maxTotalBytes: cfg.MaxTotalBytes,
	}, nil
}

func (s *LocalFileStore) pathFor(fileID string) (string, error) {
	if len(fileID) < 2 {
		return "", fmt.Errorf("file id %q too short to shard", fileID)
	}
	return filepath.Join(s.basePath, fileID[:2], fileID[2:]), nil
}

func (s *LocalFileStore) validate(content []byte, declaredMimeType string) (string, error) {
	if int64(len(content)) > s.maxFileSize {
		return "", fmt.Errorf("file size %d exceeds maximum of %d bytes", len(content), s.maxFileSize)
	}

	mimeType := declaredMimeType
	if mimeType == "" {
		mimeType = mimetype.Detect(content).String()
	}
	baseType := mimeType
	if i := strings.IndexByte(baseType, ';'); i >= 0 {
		baseType = strings.TrimSpace(baseType[:i])
	}
	if !s.allowedMIMEs[baseType] {
		return "", fmt.Errorf("mime type %q is not allowed", mimeType)
	}
	return mimeType, nil
}

// Save validates and writes content, returning the metadata a caller should
// attach to a thread.Attachment.
func (s *LocalFileStore) Save(ctx context.Context, filename string, content []byte, declaredMimeType string) (*FileMetadata, error) {
	mimeType, err := s.validate(content, declaredMimeType)
	if err != nil {
		return nil, newError("LocalFileStore", "Save", "validation failed", err)
	}

	if s.maxTotalBytes > 0 {
		current, err := s.GetStorageSize(ctx)
		if err != nil {
			return nil, newError("LocalFileStore", "Save", "failed to check storage quota", err)
		}
		if current+int64(len(content)) > s.maxTotalBytes {
			return nil, newError("LocalFileStore", "Save", "storage quota exceeded", nil)
		}
	}

	fileID := uuid.NewString()
	path, err := s.pathFor(fileID)
	if err != nil {
		return nil, newError("LocalFileStore", "Save", "failed to compute storage path", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, newError("LocalFileStore", "Save", "failed to create shard directory", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, newError("LocalFileStore", "Save", "failed to write file", err)
	}

	rel, err := filepath.Rel(s.basePath, path)
	if err != nil {
		rel = path
	}

	return &FileMetadata{
		ID:          fileID,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: rel,
		Size:        int64(len(content)),
	}, nil
}

func (s *LocalFileStore) Get(ctx context.Context, fileID string) ([]byte, error) {
	path, err := s.pathFor(fileID)
	if err != nil {
		return nil, newError("LocalFileStore", "Get", "failed to compute storage path", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newError("LocalFileStore", "Get", fmt.Sprintf("file %q not found", fileID), err)
		}
		return nil, newError("LocalFileStore", "Get", "failed to read file", err)
	}
	return data, nil
}

func (s *LocalFileStore) Delete(ctx context.Context, fileID string) error {
	path, err := s.pathFor(fileID)
	if err != nil {
		return newError("LocalFileStore", "Delete", "failed to compute storage path", err)
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return newError("LocalFileStore", "Delete", fmt.Sprintf("file %q not found", fileID), err)
		}
		return newError("LocalFileStore", "Delete", "failed to remove file", err)
	}
	// best-effort: drop the shard directory once it's empty again.
	_ = os.Remove(filepath.Dir(path))
	return nil
}

func (s *LocalFileStore) BatchSave(ctx context.Context, files []PendingFile) ([]*FileMetadata, []error) {
	results := make([]*FileMetadata, 0, len(files))
	var errs []error
	for _, f := range files {
		meta, err := s.Save(ctx, f.Filename, f.Content, f.DeclaredMimeType)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, meta)
	}
	return results, errs
}

func (s *LocalFileStore) BatchDelete(ctx context.Context, fileIDs []string) (int, []error) {
	var errs []error
	deleted := 0
	for _, id := range fileIDs {
		if err := s.Delete(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	return deleted, errs
}

// ListFiles reconstructs file ids from the two-level shard directory layout
// (shard prefix + remaining filename), matching how ids were assigned by Save.
func (s *LocalFileStore) ListFiles(ctx context.Context) ([]string, error) {
	var ids []string
	shards, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, newError("LocalFileStore", "ListFiles", "failed to read storage root", err)
	}
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(s.basePath, shard.Name()))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ids = append(ids, shard.Name()+entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// CleanupOrphanedFiles deletes every stored file id absent from the
// referenced set (the union of file ids a ThreadStore still points to),
// returning the number removed and any per-file errors.
func (s *LocalFileStore) CleanupOrphanedFiles(ctx context.Context, referenced map[string]bool) (int, []error) {
	ids, err := s.ListFiles(ctx)
	if err != nil {
		return 0, []error{err}
	}
	var orphans []string
	for _, id := range ids {
		if !referenced[id] {
			orphans = append(orphans, id)
		}
	}
	return s.BatchDelete(ctx, orphans)
}

// CheckHealth reports aggregate storage stats and surfaces any error
// encountered while computing them, without failing the whole call.
func (s *LocalFileStore) CheckHealth(ctx context.Context) (map[string]interface{}, error) {
	size, sizeErr := s.GetStorageSize(ctx)
	count, countErr := s.GetFileCount(ctx)

	var errs []string
	if sizeErr != nil {
		errs = append(errs, sizeErr.Error())
	}
	if countErr != nil {
		errs = append(errs, countErr.Error())
	}

	return map[string]interface{}{
		"healthy":    len(errs) == 0,
		"total_size": size,
		"file_count": count,
		"errors":     errs,
	}, nil
}

func (s *LocalFileStore) GetStorageSize(ctx context.Context) (int64, error) {
	var total int64
	err := filepath.Walk(s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, newError("LocalFileStore", "GetStorageSize", "failed to walk storage tree", err)
	}
	return total, nil
}

func (s *LocalFileStore) GetFileCount(ctx context.Context) (int, error) {
	ids, err := s.ListFiles(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
