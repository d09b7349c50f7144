package models

// TranscriptRequest is the body of POST /transcript.
type TranscriptRequest struct {
	URL       string   `json:"url"`
	Languages []string `json:"languages,omitempty"`
}

// TranscribeURLRequest is the body of POST /transcribe-url.
type TranscribeURLRequest struct {
	URL                   string `json:"url"`
	Language              string `json:"language,omitempty"`
	IncludeWordTimestamps *bool  `json:"include_word_timestamps,omitempty"`
}

// TranscriptResponse is returned by the caption endpoints.
type TranscriptResponse struct {
	Success     bool    `json:"success"`
	Transcript  *string `json:"transcript"`
	Length      *int    `json:"length"`
	Language    *string `json:"language,omitempty"`
	IsGenerated *bool   `json:"is_generated,omitempty"`
	Strategy    string  `json:"strategy,omitempty"`
	Title       string  `json:"title,omitempty"`
	Error       *string `json:"error"`
	ErrorKind   string  `json:"error_kind,omitempty"`
}

// NewTranscriptResponse creates a caption response from a result
func NewTranscriptResponse(r TranscriptResult) *TranscriptResponse {
	resp := &TranscriptResponse{
		Success:     r.Success,
		Language:    r.Language,
		IsGenerated: r.IsGenerated,
		Strategy:    r.Strategy,
	}
	if r.Success {
		resp.Transcript = r.Text
		length := r.CharacterCount()
		resp.Length = &length
		return resp
	}
	msg := r.ErrorMessage()
	resp.Error = &msg
	resp.ErrorKind = string(r.ErrorKind())
	return resp
}

// TranscriptionResponse is returned by the audio endpoints.
type TranscriptionResponse struct {
	Success             bool                `json:"success"`
	Transcript          *string             `json:"transcript"`
	Language            *string             `json:"language"`
	LanguageProbability *float64            `json:"language_probability"`
	Duration            *float64            `json:"duration"`
	Segments            []TranscriptSegment `json:"segments"`
	WordCount           *int                `json:"word_count"`
	CharacterCount      *int                `json:"character_count"`
	SegmentCount        *int                `json:"segment_count"`
	AverageConfidence   *float64            `json:"average_confidence"`
	ModelInfo           *ModelInfo          `json:"model_info"`
	Error               *string             `json:"error"`
	ErrorKind           string              `json:"error_kind,omitempty"`
}

// NewTranscriptionResponse creates an audio response from a result
func NewTranscriptionResponse(r TranscriptResult) *TranscriptionResponse {
	resp := &TranscriptionResponse{
		Success:   r.Success,
		ModelInfo: r.ModelInfo,
	}
	if !r.Success {
		msg := r.ErrorMessage()
		resp.Error = &msg
		resp.ErrorKind = string(r.ErrorKind())
		return resp
	}

	words, chars, segs := r.WordCount(), r.CharacterCount(), len(r.Segments)
	resp.Transcript = r.Text
	resp.Language = r.Language
	resp.LanguageProbability = r.LanguageProbability
	resp.Duration = r.Duration
	resp.Segments = r.Segments
	resp.WordCount = &words
	resp.CharacterCount = &chars
	resp.SegmentCount = &segs
	resp.AverageConfidence = r.AverageConfidence
	return resp
}
