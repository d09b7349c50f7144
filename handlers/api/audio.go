package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/middleware"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/validation"
	"github.com/nijaru/yt-transcript/youtube"
	"github.com/sirupsen/logrus"
)

const (
	uploadField       = "file"
	multipartMemLimit = 32 << 20
)

// AudioTranscriber is the speech-model adapter.
type AudioTranscriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, languageHint string, wantWords bool) models.TranscriptResult
	TranscribeFile(ctx context.Context, path, languageHint string, wantWords bool) models.TranscriptResult
	Ready() bool
	ModelError() string
	ModelInfo() *models.ModelInfo
}

// Downloader fetches the audio track of a video into dir.
type Downloader interface {
	Download(ctx context.Context, url, dir string) (string, error)
}

type AudioHandler struct {
	adapter    AudioTranscriber
	downloader Downloader
	validator  *validation.Validator
	recorder   *recorder
	maxUpload  int64
	tempDir    string
}

func NewAudioHandler(adapter AudioTranscriber, downloader Downloader, validator *validation.Validator, rec *recorder, maxUpload int64, tempDir string) *AudioHandler {
	return &AudioHandler{
		adapter:    adapter,
		downloader: downloader,
		validator:  validator,
		recorder:   rec,
		maxUpload:  maxUpload,
		tempDir:    tempDir,
	}
}

// HandleTranscribe handles POST /transcribe
func (h *AudioHandler) HandleTranscribe(w http.ResponseWriter, r *http.Request) {
	const op = "AudioHandler.HandleTranscribe"
	start := time.Now()

	if err := h.validator.ValidateRequest(r, validation.RequestValidationOpts{
		AllowedMethods: []string{http.MethodPost},
		LimitBody:      true,
	}); err != nil {
		respondError(w, r, h.tooLarge(op, err))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, h.tooLarge(op, err))
			return
		}
		respondError(w, r, errors.Unprocessable(op, err, "Multipart form with a file field is required"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		respondError(w, r, errors.Unprocessable(op, err, "File is required"))
		return
	}
	defer file.Close()

	language := strings.TrimSpace(r.FormValue("language"))
	if err := h.validator.ValidateLanguageHint(language); err != nil {
		respondError(w, r, err)
		return
	}

	wantWords, err := parseWordTimestamps(r.FormValue("include_word_timestamps"))
	if err != nil {
		respondError(w, r, errors.InvalidInput(op, err, "include_word_timestamps must be a boolean"))
		return
	}

	audio, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, errors.Internal(op, err, "Failed to read uploaded file"))
		return
	}

	logger := middleware.GetLogger(r.Context()).WithFields(logrus.Fields{
		"file":      header.Filename,
		"size":      humanize.IBytes(uint64(len(audio))),
		"mime_type": mimetype.Detect(audio).String(),
		"language":  language,
	})
	logger.Info("Received audio upload")

	result := h.adapter.Transcribe(r.Context(), audio, header.Filename, language, wantWords)
	h.finish(w, r, logger, models.SourceUpload, header.Filename, "", result, start)
}

// HandleTranscribeURL handles POST /transcribe-url
func (h *AudioHandler) HandleTranscribeURL(w http.ResponseWriter, r *http.Request) {
	const op = "AudioHandler.HandleTranscribeURL"
	start := time.Now()

	if err := h.validator.ValidateRequest(r, validation.RequestValidationOpts{
		AllowedMethods: []string{http.MethodPost},
		RequireJSON:    true,
	}); err != nil {
		respondError(w, r, err)
		return
	}

	var req models.TranscribeURLRequest
	if err := readJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.validator.ValidateLanguageHint(req.Language); err != nil {
		respondError(w, r, err)
		return
	}
	wantWords := req.IncludeWordTimestamps == nil || *req.IncludeWordTimestamps

	logger := middleware.GetLogger(r.Context()).WithFields(logrus.Fields{
		"operation": op,
		"url":       req.URL,
		"language":  req.Language,
	})

	ref := youtube.NewVideoRef(req.URL)
	result := h.downloadAndTranscribe(r.Context(), logger, ref, req.Language, wantWords)
	h.finish(w, r, logger, models.SourceDownload, req.URL, ref.ID, result, start)
}

func (h *AudioHandler) downloadAndTranscribe(ctx context.Context, logger *logrus.Entry, ref models.VideoRef, language string, wantWords bool) models.TranscriptResult {
	if err := h.validator.ValidateURL(ref.RawURL); err != nil {
		return models.FailedFrom(errors.KindInvalidInput, err)
	}
	if !ref.HasID() {
		return models.Failed(errors.KindInvalidInput, "Invalid YouTube URL")
	}
	if !h.adapter.Ready() {
		return models.Failed(errors.KindModelUnavailable, "Speech model is not available: "+h.adapter.ModelError())
	}
	if h.downloader == nil {
		return models.Failed(errors.KindUpstreamFailure, "Audio download is not configured")
	}

	if err := os.MkdirAll(h.tempDir, 0o755); err != nil {
		logger.WithError(err).Error("Failed to create download directory")
		return models.Failed(errors.KindUpstreamFailure, "Failed to prepare download directory")
	}
	dir, err := os.MkdirTemp(h.tempDir, "download-*")
	if err != nil {
		logger.WithError(err).Error("Failed to create download directory")
		return models.Failed(errors.KindUpstreamFailure, "Failed to prepare download directory")
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.WithError(err).WithField("dir", dir).Warn("Failed to remove download directory")
		}
	}()

	path, err := h.downloader.Download(ctx, ref.RawURL, dir)
	if err != nil {
		logger.WithError(err).WithField("error_type", errorType(err)).Error("Audio download failed")
		return models.FailedFrom(errors.KindUpstreamFailure, err)
	}
	if info, err := os.Stat(path); err == nil {
		logger = logger.WithField("size", humanize.IBytes(uint64(info.Size())))
	}
	logger.WithField("video_id", ref.ID).Info("Downloaded audio")

	return h.adapter.TranscribeFile(ctx, path, language, wantWords)
}

func (h *AudioHandler) finish(w http.ResponseWriter, r *http.Request, logger *logrus.Entry, source models.Source, input, videoID string, result models.TranscriptResult, start time.Time) {
	took := time.Since(start)
	logger.WithFields(logrus.Fields{
		"success":    result.Success,
		"error_kind": result.ErrorKind(),
		"took":       took.String(),
	}).Info("Transcription request finished")

	h.recorder.record(r.Context(), source, input, videoID, result, took)
	respondResult(w, r, result, models.NewTranscriptionResponse(result))
}

func (h *AudioHandler) tooLarge(op string, err error) error {
	var appErr *errors.AppError
	var maxErr *http.MaxBytesError
	if (errors.As(err, &appErr) && appErr.Code == http.StatusRequestEntityTooLarge) || errors.As(err, &maxErr) {
		return errors.TooLarge(op, err, fmt.Sprintf("File too large, the limit is %s", humanize.IBytes(uint64(h.maxUpload))))
	}
	return err
}

// parseWordTimestamps reads the optional include_word_timestamps field,
// which defaults to true.
func parseWordTimestamps(v string) (bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return true, nil
	}
	return strconv.ParseBool(v)
}
