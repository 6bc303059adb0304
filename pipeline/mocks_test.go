package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"shorts-pipeline/job"
	"shorts-pipeline/render"
	"shorts-pipeline/types"
)

type fakeProber struct {
	info types.SourceInfo
	err  error
}

func (f *fakeProber) Valid(context.Context, string) error { return f.err }

func (f *fakeProber) Probe(context.Context, string) (*types.SourceInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info := f.info
	return &info, nil
}

func (f *fakeProber) Duration(context.Context, string) (float64, error) {
	return f.info.Duration, f.err
}

type fakeAudio struct{ err error }

func (f *fakeAudio) ExtractAudio(_ context.Context, _, out string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(out, []byte("RIFF"), 0o644)
}

// fakeRenderer writes an empty file per platform and fails the ones listed
type fakeRenderer struct {
	mu   sync.Mutex
	fail map[string]bool
	reqs []render.Request
}

func (f *fakeRenderer) Render(_ context.Context, req render.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.fail[req.Plan.Platform] {
		return "", errors.New("encoder exited with status 1")
	}
	out := filepath.Join(req.OutputDir, req.Plan.Platform+".mp4")
	return out, os.WriteFile(out, nil, 0o644)
}

func (f *fakeRenderer) platforms() []string {
	var out []string
	for _, r := range f.reqs {
		out = append(out, r.Plan.Platform)
	}
	return out
}

// flakyStore starts failing saves once armed
type flakyStore struct {
	*job.FileStore
	armed bool
}

func (s *flakyStore) Save(rec types.JobRecord) error {
	if s.armed {
		return errors.New("disk full")
	}
	return s.FileStore.Save(rec)
}
