package upload

import (
	"context"
	"errors"
	"sync"

	"shorts-pipeline/types"
)

type fakeJobs struct {
	recs []types.JobRecord
	err  error
}

func (f *fakeJobs) List() ([]types.JobRecord, error) { return f.recs, f.err }

type fakePublisher struct {
	mu    sync.Mutex
	fail  map[string]bool // by account
	calls []Submission
}

func (f *fakePublisher) Publish(_ context.Context, s Submission) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
	if f.fail[s.Account] {
		return "", errors.New("quota exceeded upstream")
	}
	return "remote-" + s.JobID, nil
}
