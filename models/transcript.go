package models

import (
	"strings"
	"unicode/utf8"

	"github.com/nijaru/yt-transcript/errors"
)

// VideoRef is a parsed source URL. An empty ID means the URL was not recognized.
type VideoRef struct {
	RawURL string
	ID     string
}

func (v VideoRef) HasID() bool { return v.ID != "" }

// CaptionTrack is one caption track as enumerated by the caption provider.
type CaptionTrack struct {
	Language    string
	Name        string
	IsGenerated bool
	// Handle is opaque to everything but the provider that produced it.
	Handle string
}

type WordTiming struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}

type TranscriptSegment struct {
	Text  string       `json:"text"`
	Start float64      `json:"start"`
	End   float64      `json:"end"`
	Words []WordTiming `json:"words,omitempty"`
}

type ErrorInfo struct {
	Kind    errors.Kind
	Message string
}

// TranscriptResult is the canonical outcome of a transcript request. Build it
// with Succeeded or Failed; Text and Error are never both set.
type TranscriptResult struct {
	Success             bool
	Text                *string
	Language            *string
	LanguageProbability *float64
	Duration            *float64
	Segments            []TranscriptSegment
	AverageConfidence   *float64
	IsGenerated         *bool
	Strategy            string
	ModelInfo           *ModelInfo
	Error               *ErrorInfo
}

// Succeeded returns a successful result carrying text.
func Succeeded(text string) TranscriptResult {
	return TranscriptResult{Success: true, Text: &text}
}

// Failed returns a failed result of the given kind.
func Failed(kind errors.Kind, message string) TranscriptResult {
	return TranscriptResult{Error: &ErrorInfo{Kind: kind, Message: message}}
}

// FailedFrom converts err into a failed result, keeping its kind when err
// carries one and falling back to kind otherwise.
func FailedFrom(kind errors.Kind, err error) TranscriptResult {
	if k, ok := errors.KindOf(err); ok {
		kind = k
	}
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return Failed(kind, appErr.Message)
	}
	return Failed(kind, err.Error())
}

func (r TranscriptResult) TextValue() string {
	if r.Text == nil {
		return ""
	}
	return *r.Text
}

// WordCount is the number of whitespace-delimited tokens in Text.
func (r TranscriptResult) WordCount() int {
	return len(strings.Fields(r.TextValue()))
}

// CharacterCount is the number of code points in Text.
func (r TranscriptResult) CharacterCount() int {
	return utf8.RuneCountInString(r.TextValue())
}

func (r TranscriptResult) ErrorKind() errors.Kind {
	if r.Error == nil {
		return ""
	}
	return r.Error.Kind
}

func (r TranscriptResult) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Message
}

// ModelInfo describes the speech model that produced an audio transcript.
type ModelInfo struct {
	Backend              string   `json:"backend"`
	ModelSize            string   `json:"model_size"`
	Device               string   `json:"device,omitempty"`
	ComputeType          string   `json:"compute_type,omitempty"`
	DetectedLanguage     string   `json:"detected_language,omitempty"`
	DetectionProbability *float64 `json:"detection_probability,omitempty"`
}
