package subtitles

import (
	"context"

	"shorts-pipeline/types"
)

type fakeAligner struct {
	name  string
	segs  []types.CaptionSegment
	err   error
	calls int
}

func (f *fakeAligner) Name() string { return f.name }

func (f *fakeAligner) Align(_ context.Context, _ string) ([]types.CaptionSegment, error) {
	f.calls++
	return f.segs, f.err
}
