package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/scripts"
	"github.com/nijaru/yt-transcript/services/transcript"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// SupportedExtensions lists the accepted upload formats.
var SupportedExtensions = []string{
	".mp3", ".wav", ".m4a", ".flac", ".ogg", ".wma", ".aac", ".webm", ".mp4", ".mov",
}

const defaultBeamSize = 5

// IsSupported reports whether filename has a supported extension, ignoring case.
func IsSupported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

type Config struct {
	BeamSize int
	TempDir  string
}

// Adapter turns audio into a TranscriptResult using a speech model. The
// model is built once by the caller and may be nil when it failed to load.
type Adapter struct {
	transcriber scripts.Transcriber
	loadErr     error
	config      Config
	fs          afero.Fs
	logger      *logrus.Logger
	// sem serializes calls into models that are not reentrant.
	sem chan struct{}
}

type Option func(*Adapter)

func WithFs(fs afero.Fs) Option {
	return func(a *Adapter) {
		a.fs = fs
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithLoadError records why the model is missing.
func WithLoadError(err error) Option {
	return func(a *Adapter) {
		a.loadErr = err
	}
}

func NewAdapter(t scripts.Transcriber, cfg Config, opts ...Option) *Adapter {
	if cfg.BeamSize <= 0 {
		cfg.BeamSize = defaultBeamSize
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	a := &Adapter{
		transcriber: t,
		config:      cfg,
		fs:          afero.NewOsFs(),
		logger:      logrus.StandardLogger(),
		sem:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ready reports whether a model is loaded and running.
func (a *Adapter) Ready() bool {
	return a.transcriber != nil && a.transcriber.LoadError() == nil
}

// ModelError is the load failure message, empty when the model is ready.
func (a *Adapter) ModelError() string {
	if a.transcriber != nil {
		if err := a.transcriber.LoadError(); err != nil {
			return err.Error()
		}
		return ""
	}
	if a.loadErr != nil {
		return a.loadErr.Error()
	}
	return "no speech model configured"
}

func (a *Adapter) ModelInfo() *models.ModelInfo {
	if a.transcriber == nil {
		return nil
	}
	info := a.transcriber.Info()
	return &info
}

// Transcribe stages audio in a temporary file and runs the model over it.
// The file is removed on every path.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte, filename, languageHint string, wantWords bool) models.TranscriptResult {
	const op = "Adapter.Transcribe"

	if res, ok := a.precheck(filename); !ok {
		return res
	}

	if err := a.fs.MkdirAll(a.config.TempDir, 0o755); err != nil {
		return a.fail(op, errors.KindTranscriptionFailure, err, "Failed to prepare temporary storage")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	f, err := afero.TempFile(a.fs, a.config.TempDir, "upload-*"+ext)
	if err != nil {
		return a.fail(op, errors.KindTranscriptionFailure, err, "Failed to create temporary file")
	}
	path := f.Name()
	defer a.remove(path)

	_, werr := f.Write(audio)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		if werr == nil {
			werr = cerr
		}
		return a.fail(op, errors.KindTranscriptionFailure, werr, "Failed to write temporary file")
	}

	return a.run(ctx, path, filename, languageHint, wantWords)
}

// TranscribeFile runs the model over a file that already exists on disk.
// The caller owns the file.
func (a *Adapter) TranscribeFile(ctx context.Context, path, languageHint string, wantWords bool) models.TranscriptResult {
	if res, ok := a.precheck(path); !ok {
		return res
	}
	return a.run(ctx, path, filepath.Base(path), languageHint, wantWords)
}

func (a *Adapter) precheck(filename string) (models.TranscriptResult, bool) {
	if !IsSupported(filename) {
		ext := filepath.Ext(filename)
		if ext == "" {
			ext = "(none)"
		}
		return models.Failed(errors.KindUnsupportedFormat, fmt.Sprintf(
			"Unsupported file format %s. Supported formats: %s", ext, strings.Join(SupportedExtensions, ", "))), false
	}
	if a.transcriber == nil {
		return models.Failed(errors.KindModelUnavailable, "Speech model is not available: "+a.ModelError()), false
	}
	return models.TranscriptResult{}, true
}

func (a *Adapter) run(ctx context.Context, path, filename, languageHint string, wantWords bool) models.TranscriptResult {
	const op = "Adapter.run"

	lang := strings.TrimSpace(languageHint)
	if strings.EqualFold(lang, models.AutoDetect) {
		lang = ""
	}

	if !a.transcriber.Reentrant() {
		select {
		case a.sem <- struct{}{}:
			defer func() { <-a.sem }()
		case <-ctx.Done():
			return a.fail(op, errors.KindTranscriptionFailure, ctx.Err(), "Transcription cancelled while waiting for the model")
		}
	}

	logger := a.logger.WithFields(logrus.Fields{
		"operation": op,
		"file":      filename,
		"language":  lang,
	})
	logger.Info("Starting transcription")

	start := time.Now()
	out, err := a.transcriber.Transcribe(ctx, path, scripts.Options{
		Language:       lang,
		BeamSize:       a.config.BeamSize,
		WordTimestamps: wantWords,
	})
	took := time.Since(start)
	if errors.Is(err, scripts.ErrModelUnavailable) {
		return a.fail(op, errors.KindModelUnavailable, err, "Speech model is not available: "+modelMessage(err))
	}
	if err != nil {
		return a.fail(op, errors.KindTranscriptionFailure, err, "Transcription failed: "+modelMessage(err))
	}

	segments := out.TranscriptSegments()
	if !wantWords {
		for i := range segments {
			segments[i].Words = nil
		}
	}

	result := transcript.Normalize(segments, out.Language, out.LanguageProbability)
	duration := transcript.Round2(out.Duration)
	result.Duration = &duration

	info := a.transcriber.Info()
	info.DetectedLanguage = out.Language
	info.DetectionProbability = result.LanguageProbability
	result.ModelInfo = &info

	audioLen := time.Duration(out.Duration * float64(time.Second))
	logger.WithFields(logrus.Fields{
		"duration":   audioLen.String(),
		"took":       took.String(),
		"estimated":  scripts.EstimateTranscriptionTime(info.ModelSize, audioLen).String(),
		"segments":   len(result.Segments),
		"characters": result.CharacterCount(),
	}).Info("Transcription completed")

	return result
}

func (a *Adapter) fail(op string, kind errors.Kind, err error, message string) models.TranscriptResult {
	a.logger.WithFields(logrus.Fields{
		"operation":  op,
		"error_kind": kind,
		"error_type": fmt.Sprintf("%T", err),
	}).WithError(err).Error(message)
	return models.Failed(kind, message)
}

func (a *Adapter) remove(path string) {
	if err := a.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		a.logger.WithError(err).WithField("path", path).Warn("Failed to remove temporary file")
	}
}

func modelMessage(err error) string {
	var scriptErr *scripts.ScriptError
	if errors.As(err, &scriptErr) && scriptErr.Message != "" {
		return scriptErr.Message
	}
	return err.Error()
}
