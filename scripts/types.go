package scripts

import (
	"time"

	"github.com/nijaru/yt-transcript/models"
)

// Config holds the configuration for the whisper worker process
type Config struct {
	PythonPath  string        // Path to Python executable
	TempDir     string        // Where the embedded worker script is written
	Model       string        // faster-whisper model size
	Device      string        // cpu, cuda or auto
	ComputeType string        // int8, float16, ...
	LoadTimeout time.Duration // How long to wait for the model to load
	Environment []string      // Additional environment variables
}

// GetDefaultModel returns the configured model size or "small".
func (cfg *Config) GetDefaultModel() string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return "small"
}

// Options are per-call transcription parameters.
type Options struct {
	Language       string // empty means detect
	BeamSize       int
	WordTimestamps bool
}

// ModelSegment is one segment as produced by a speech model.
type ModelSegment struct {
	Start float64             `json:"start"`
	End   float64             `json:"end"`
	Text  string              `json:"text"`
	Words []models.WordTiming `json:"words,omitempty"`
}

// ModelOutput is the raw output of a speech model before normalization.
type ModelOutput struct {
	Language            string         `json:"language"`
	LanguageProbability *float64       `json:"language_probability,omitempty"`
	Duration            float64        `json:"duration"`
	Segments            []ModelSegment `json:"segments"`
}

// TranscriptSegments converts the model segments into transcript segments.
func (o *ModelOutput) TranscriptSegments() []models.TranscriptSegment {
	out := make([]models.TranscriptSegment, 0, len(o.Segments))
	for _, s := range o.Segments {
		out = append(out, models.TranscriptSegment{
			Text:  s.Text,
			Start: s.Start,
			End:   s.End,
			Words: s.Words,
		})
	}
	return out
}
