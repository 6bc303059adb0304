package types

import "time"

// JobStatus is the top-level state of a job record
type JobStatus string

const (
	StatusDetected   JobStatus = "detected"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no automatic transition may leave this status
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// PlatformStatus is the per-platform sub-state nested inside processing
type PlatformStatus string

const (
	PlatformPending PlatformStatus = "platform_pending"
	PlatformDone    PlatformStatus = "platform_done"
	PlatformFailed  PlatformStatus = "platform_failed"
)

// PlatformResult is the outcome of rendering one platform variant
type PlatformResult struct {
	Status      PlatformStatus `json:"status"`
	OutputPath  string         `json:"output_path,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// SourceInfo is what the prober learned about the raw video
type SourceInfo struct {
	Duration   float64 `json:"duration"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	VideoCodec string  `json:"video_codec,omitempty"`
	AudioCodec string  `json:"audio_codec,omitempty"`
	HasAudio   bool    `json:"has_audio"`
}

// JobRecord tracks one ingested raw video through the pipeline.
// It is persisted as metadata.json in the job directory.
type JobRecord struct {
	ID                 string                    `json:"id"`
	SourcePath         string                    `json:"source_path"`
	DetectedAt         time.Time                 `json:"detected_at"`
	Status             JobStatus                 `json:"status"`
	Platforms          []string                  `json:"platforms"`
	PerPlatformResults map[string]PlatformResult `json:"per_platform_results"`
	Error              string                    `json:"error,omitempty"`
	NarrationText      string                    `json:"narration_text,omitempty"`
	SubtitlesGenerated bool                      `json:"subtitles_generated"`
	SubtitlePath       string                    `json:"subtitle_path,omitempty"`
	SourceInfo         *SourceInfo               `json:"source_info,omitempty"`
	StartedAt          *time.Time                `json:"started_at,omitempty"`
	Attempts           int                       `json:"attempts"`
	UpdatedAt          time.Time                 `json:"updated_at"`
}

// Clone returns a deep copy so snapshots never share maps or slices
func (r JobRecord) Clone() JobRecord {
	out := r
	out.Platforms = append([]string(nil), r.Platforms...)
	out.PerPlatformResults = make(map[string]PlatformResult, len(r.PerPlatformResults))
	for k, v := range r.PerPlatformResults {
		if v.CompletedAt != nil {
			t := *v.CompletedAt
			v.CompletedAt = &t
		}
		out.PerPlatformResults[k] = v
	}
	if r.SourceInfo != nil {
		si := *r.SourceInfo
		out.SourceInfo = &si
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	return out
}

// CaptionSegment is one timed span of subtitle text, in seconds
type CaptionSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration of the segment in seconds
func (s CaptionSegment) Duration() float64 { return s.End - s.Start }

// UploadStatus is the state of one submission key
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadCompleted UploadStatus = "completed"
	UploadFailed    UploadStatus = "failed"
)

// UploadRecord is keyed by (platform, account, video id)
type UploadRecord struct {
	Platform    string       `json:"platform"`
	Account     string       `json:"account"`
	VideoID     string       `json:"video_id"`
	Status      UploadStatus `json:"status"`
	SubmittedAt time.Time    `json:"submitted_at"`
	Attempts    int          `json:"attempts"`
	OutputPath  string       `json:"output_path,omitempty"`
	RemoteID    string       `json:"remote_id,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// UploadKey identifies an upload record
type UploadKey struct {
	Platform string
	Account  string
	VideoID  string
}

// Key returns the record's identity
func (r UploadRecord) Key() UploadKey {
	return UploadKey{Platform: r.Platform, Account: r.Account, VideoID: r.VideoID}
}

// VideoMetadata holds upload metadata for one platform submission
type VideoMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"category_id"`
	Visibility  string   `json:"visibility"`
}
