package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"shorts-pipeline/types"
)

type fakeValidator struct {
	invalid map[string]bool
}

func (f *fakeValidator) Valid(_ context.Context, path string) error {
	if f.invalid[path] {
		return errors.New("moov atom not found")
	}
	return nil
}

type fakeCreator struct {
	mu      sync.Mutex
	fail    bool
	created []types.JobRecord
}

func (f *fakeCreator) Create(sourcePath string, platforms []string, narration string) (types.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return types.JobRecord{}, errors.New("read-only filesystem")
	}
	rec := types.JobRecord{
		ID:            fmt.Sprintf("job%d", len(f.created)+1),
		SourcePath:    sourcePath,
		Platforms:     platforms,
		NarrationText: narration,
		Status:        types.StatusDetected,
	}
	f.created = append(f.created, rec)
	return rec, nil
}

func (f *fakeCreator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}
