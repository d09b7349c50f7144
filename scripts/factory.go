package scripts

import (
	"context"
	"fmt"

	"github.com/nijaru/yt-transcript/models"
	"github.com/sirupsen/logrus"
)

// Transcriber defines the interface for speech model backends
type Transcriber interface {
	// Transcribe runs the model over the audio file at path
	Transcribe(ctx context.Context, path string, opts Options) (*ModelOutput, error)

	// Info describes the loaded model
	Info() models.ModelInfo

	// Reentrant reports whether Transcribe may be called concurrently
	Reentrant() bool

	// LoadError reports why the model stopped being available, nil when ready
	LoadError() error

	// Close any resources
	Close() error
}

// FactoryConfig holds configuration for creating a transcriber
type FactoryConfig struct {
	// Backend is "faster-whisper" (default) or "openai"
	Backend string

	// Worker is used for the faster-whisper backend
	Worker Config

	// OpenAI is used for the openai backend
	OpenAI OpenAIConfig
}

// NewTranscriber creates the backend named by config. For faster-whisper it
// blocks until the model is loaded.
func NewTranscriber(ctx context.Context, config FactoryConfig, logger *logrus.Logger) (Transcriber, error) {
	switch config.Backend {
	case "", BackendFasterWhisper:
		w, err := NewWhisperWorker(ctx, config.Worker, logger)
		if err != nil {
			return nil, err
		}
		return w, nil
	case BackendOpenAI:
		o, err := NewOpenAITranscriber(config.OpenAI)
		if err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, newScriptError("NewTranscriber", nil, fmt.Sprintf("unknown model backend %q", config.Backend))
	}
}

// Ensure both implementations satisfy the interface
var _ Transcriber = (*WhisperWorker)(nil)
var _ Transcriber = (*OpenAITranscriber)(nil)
