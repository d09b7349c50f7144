package models

import (
	"time"
)

type Source string

const (
	SourceCaption  Source = "caption"
	SourceUpload   Source = "upload"
	SourceDownload Source = "download"
)

// RequestRecord is one row of the request log.
type RequestRecord struct {
	ID             string        `json:"id"`
	RequestID      string        `json:"request_id,omitempty"`
	Source         Source        `json:"source"`
	Input          string        `json:"input"`
	VideoID        string        `json:"video_id,omitempty"`
	Success        bool          `json:"success"`
	ErrorKind      string        `json:"error_kind,omitempty"`
	Strategy       string        `json:"strategy,omitempty"`
	Language       string        `json:"language,omitempty"`
	CharacterCount int           `json:"character_count"`
	Duration       time.Duration `json:"duration"`
	CreatedAt      time.Time     `json:"created_at"`
}

// NewRequestRecord summarizes a finished request for the log. id keys the
// row; requestID is the caller-supplied correlation id and may repeat.
func NewRequestRecord(id, requestID string, source Source, input, videoID string, r TranscriptResult, took time.Duration) *RequestRecord {
	rec := &RequestRecord{
		ID:             id,
		RequestID:      requestID,
		Source:         source,
		Input:          input,
		VideoID:        videoID,
		Success:        r.Success,
		ErrorKind:      string(r.ErrorKind()),
		Strategy:       r.Strategy,
		CharacterCount: r.CharacterCount(),
		Duration:       took,
		CreatedAt:      time.Now().UTC(),
	}
	if r.Language != nil {
		rec.Language = *r.Language
	}
	return rec
}
