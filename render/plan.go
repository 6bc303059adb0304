package render

import (
	"errors"
	"fmt"
	"sort"

	"shorts-pipeline/config"
)

var ErrUnknownPlatform = errors.New("unknown platform")

// CTA is the call-to-action overlay
type CTA struct {
	Text       string
	PositionX  string  // center|left|right or a 0..1 fraction of the width
	PositionY  float64 // fraction of the height
	Color      string
	Background string // ffmpeg colour, e.g. black@0.5
}

// Plan holds the deterministic render parameters for one platform
type Plan struct {
	Platform    string
	Width       int
	Height      int
	MaxDuration float64
	CTA         CTA
}

// Window picks the source range to render: [0, max) when the source is
// longer than the platform allows, otherwise the whole source. Output is
// never padded. An unknown (non-positive) source duration yields [0, max).
func (p Plan) Window(sourceDuration float64) (start, end float64, truncated bool) {
	if sourceDuration <= 0 {
		return 0, p.MaxDuration, false
	}
	if p.MaxDuration > 0 && sourceDuration > p.MaxDuration {
		return 0, p.MaxDuration, true
	}
	return 0, sourceDuration, false
}

// Plans maps platform id to its plan
type Plans map[string]Plan

// NewPlans builds plans from the platforms section (defaults already merged)
func NewPlans(platforms map[string]config.PlatformConfig) Plans {
	out := make(Plans, len(platforms))
	for name, p := range platforms {
		out[name] = Plan{
			Platform:    name,
			Width:       p.Width,
			Height:      p.Height,
			MaxDuration: p.MaxDurationSec,
			CTA: CTA{
				Text:       p.CTAText,
				PositionX:  p.CTAPositionX,
				PositionY:  p.CTAPositionY,
				Color:      p.CTAColor,
				Background: p.CTABackground,
			},
		}
	}
	return out
}

func (ps Plans) Get(platform string) (Plan, error) {
	p, ok := ps[platform]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}
	return p, nil
}

func (ps Plans) Names() []string {
	names := make([]string, 0, len(ps))
	for n := range ps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
