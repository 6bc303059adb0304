package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"shorts-pipeline/fileutil"
	"shorts-pipeline/types"
)

// UploadStore is the upload history. Records are never deleted; only the
// status of an existing key changes.
type UploadStore interface {
	// Completed returns completed records for (platform, account) submitted
	// at or after since, oldest first
	Completed(ctx context.Context, platform, account string, since time.Time) ([]types.UploadRecord, error)
	Get(ctx context.Context, key types.UploadKey) (types.UploadRecord, bool, error)
	Put(ctx context.Context, rec types.UploadRecord) error
	List(ctx context.Context) ([]types.UploadRecord, error)
}

type statusDocument struct {
	Uploads   []types.UploadRecord `json:"uploads"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// FileStore keeps the history in one JSON document
type FileStore struct {
	mu   sync.RWMutex
	path string
}

var _ UploadStore = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) read() (statusDocument, error) {
	var doc statusDocument
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileStore) Completed(_ context.Context, platform, account string, since time.Time) ([]types.UploadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	var out []types.UploadRecord
	for _, r := range doc.Uploads {
		if r.Platform == platform && r.Account == account &&
			r.Status == types.UploadCompleted && !r.SubmittedAt.Before(since) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (s *FileStore) Get(_ context.Context, key types.UploadKey) (types.UploadRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.read()
	if err != nil {
		return types.UploadRecord{}, false, err
	}
	for _, r := range doc.Uploads {
		if r.Key() == key {
			return r, true, nil
		}
	}
	return types.UploadRecord{}, false, nil
}

func (s *FileStore) List(_ context.Context) ([]types.UploadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Uploads, nil
}

// Put inserts the record or replaces the one with the same key
func (s *FileStore) Put(_ context.Context, rec types.UploadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	rec.SubmittedAt = rec.SubmittedAt.UTC()
	replaced := false
	for i, r := range doc.Uploads {
		if r.Key() == rec.Key() {
			doc.Uploads[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Uploads = append(doc.Uploads, rec)
	}
	doc.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(s.path, data)
}

