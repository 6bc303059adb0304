package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"shorts-pipeline/fileutil"
	"shorts-pipeline/types"
)

// MetadataFile is the record file inside every job directory
const MetadataFile = "metadata.json"

var ErrNotFound = errors.New("job not found")

// Store persists job records, one per job directory
type Store interface {
	Save(rec types.JobRecord) error
	Load(id string) (types.JobRecord, error)
	// List returns every readable record oldest first. Unreadable records
	// are skipped and reported in the returned error.
	List() ([]types.JobRecord, error)
	Dir(id string) string
}

// FileStore keeps records as <root>/<id>/metadata.json
type FileStore struct {
	root string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) Root() string { return s.root }

func (s *FileStore) Dir(id string) string { return filepath.Join(s.root, id) }

func (s *FileStore) path(id string) string { return filepath.Join(s.root, id, MetadataFile) }

// Save writes the record atomically: temp file in the same dir, fsync, rename
func (s *FileStore) Save(rec types.JobRecord) error {
	if rec.ID == "" {
		return errors.New("job record without id")
	}
	dir := s.Dir(rec.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return fileutil.WriteAtomic(s.path(rec.ID), data)
}

func (s *FileStore) Load(id string) (types.JobRecord, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return types.JobRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return types.JobRecord{}, err
	}
	var rec types.JobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.JobRecord{}, fmt.Errorf("parse %s: %w", s.path(id), err)
	}
	return rec, nil
}

func (s *FileStore) List() ([]types.JobRecord, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var (
		recs []types.JobRecord
		errs []error
	)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rec, err := s.Load(e.Name())
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		recs = append(recs, rec)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].DetectedAt.Equal(recs[j].DetectedAt) {
			return recs[i].DetectedAt.Before(recs[j].DetectedAt)
		}
		return recs[i].ID < recs[j].ID
	})
	return recs, errors.Join(errs...)
}


// NewID builds <stem>_<YYYYmmdd_HHMMSS>_<8 hex>
func NewID(sourcePath string, detectedAt time.Time) string {
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	stem = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':':
			return '_'
		}
		return r
	}, stem)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s", stem, detectedAt.UTC().Format("20060102_150405"), suffix)
}
