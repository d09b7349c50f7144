package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/middleware"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/services/transcript"
	"github.com/nijaru/yt-transcript/validation"
	"github.com/nijaru/yt-transcript/youtube"
	"github.com/sirupsen/logrus"
)

// TranscriptResolver runs the caption strategy chain.
type TranscriptResolver interface {
	Resolve(ctx context.Context, ref models.VideoRef, preferred []string) models.TranscriptResult
	Capability() transcript.Capability
}

// MetadataLookup finds a video's title.
type MetadataLookup interface {
	Lookup(ctx context.Context, videoID string) (*youtube.VideoMetadata, error)
}

type TranscriptHandler struct {
	resolver  TranscriptResolver
	metadata  MetadataLookup
	validator *validation.Validator
	recorder  *recorder
}

func NewTranscriptHandler(resolver TranscriptResolver, metadata MetadataLookup, validator *validation.Validator, rec *recorder) *TranscriptHandler {
	return &TranscriptHandler{
		resolver:  resolver,
		metadata:  metadata,
		validator: validator,
		recorder:  rec,
	}
}

// HandleCreateTranscript handles POST /transcript
func (h *TranscriptHandler) HandleCreateTranscript(w http.ResponseWriter, r *http.Request) {
	if err := h.validator.ValidateRequest(r, validation.RequestValidationOpts{
		AllowedMethods: []string{http.MethodPost},
		RequireJSON:    true,
	}); err != nil {
		respondError(w, r, err)
		return
	}

	var req models.TranscriptRequest
	if err := readJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	h.serve(w, r, req.URL, req.Languages)
}

// HandleGetTranscript handles GET /transcript?url=...&languages=a,b
func (h *TranscriptHandler) HandleGetTranscript(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.serve(w, r, q.Get("url"), q["languages"])
}

func (h *TranscriptHandler) serve(w http.ResponseWriter, r *http.Request, rawURL string, languages []string) {
	start := time.Now()
	logger := middleware.GetLogger(r.Context())

	result, videoID, title := h.resolve(r.Context(), logger, rawURL, languages)

	logger.WithFields(logrus.Fields{
		"video_id":   videoID,
		"success":    result.Success,
		"strategy":   result.Strategy,
		"error_kind": result.ErrorKind(),
	}).Info("Transcript request finished")

	h.recorder.record(r.Context(), models.SourceCaption, rawURL, videoID, result, time.Since(start))

	resp := models.NewTranscriptResponse(result)
	resp.Title = title
	respondResult(w, r, result, resp)
}

func (h *TranscriptHandler) resolve(ctx context.Context, logger *logrus.Entry, rawURL string, languages []string) (models.TranscriptResult, string, string) {
	if err := h.validator.ValidateURL(rawURL); err != nil {
		return models.FailedFrom(errors.KindInvalidInput, err), "", ""
	}

	langs, err := h.validator.ParseLanguages(languages...)
	if err != nil {
		return models.FailedFrom(errors.KindInvalidInput, err), "", ""
	}

	ref := youtube.NewVideoRef(rawURL)
	result := h.resolver.Resolve(ctx, ref, langs)

	var title string
	if result.Success && h.metadata != nil {
		meta, err := h.metadata.Lookup(ctx, ref.ID)
		if err != nil {
			logger.WithError(err).WithField("video_id", ref.ID).Warn("Video metadata lookup failed")
		} else {
			title = meta.Title
		}
	}

	return result, ref.ID, title
}
