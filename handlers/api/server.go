// handlers/api/server.go
package api

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nijaru/yt-transcript/config"
	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/middleware"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/repository"
	"github.com/nijaru/yt-transcript/scripts"
	"github.com/nijaru/yt-transcript/services/audio"
	"github.com/nijaru/yt-transcript/validation"
	"github.com/sirupsen/logrus"
)

const serviceName = "yt-transcript"

type Server struct {
	transcript *TranscriptHandler
	audio      *AudioHandler
	requests   repository.RequestRepository
	recorder   *recorder
	validator  *validation.Validator
	config     *config.Config
	logger     *logrus.Logger
	server     *http.Server
	startTime  time.Time

	resolver   TranscriptResolver
	metadata   MetadataLookup
	adapter    AudioTranscriber
	downloader Downloader
}

type ServerOption func(*Server)

// NewServer creates a new API server with the provided services and options
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	s := &Server{
		config:    cfg,
		logger:    logrus.StandardLogger(),
		startTime: time.Now(),
		recorder:  &recorder{},
		validator: validation.NewValidator(cfg.MaxUploadBytes),
	}

	// Apply options
	for _, opt := range opts {
		opt(s)
	}

	s.transcript = NewTranscriptHandler(s.resolver, s.metadata, s.validator, s.recorder)
	s.audio = NewAudioHandler(s.adapter, s.downloader, s.validator, s.recorder, cfg.MaxUploadBytes, cfg.TempDir)

	// Create HTTP server
	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// WithServices sets the caption resolver and the speech-model adapter.
func WithServices(resolver TranscriptResolver, adapter AudioTranscriber) ServerOption {
	return func(s *Server) {
		s.resolver = resolver
		s.adapter = adapter
	}
}

// WithMetadata enables video titles in caption responses.
func WithMetadata(m MetadataLookup) ServerOption {
	return func(s *Server) {
		s.metadata = m
	}
}

// WithDownloader enables POST /transcribe-url.
func WithDownloader(d Downloader) ServerOption {
	return func(s *Server) {
		s.downloader = d
	}
}

// WithRequestLog records every transcript request.
func WithRequestLog(repo repository.RequestRepository) ServerOption {
	return func(s *Server) {
		s.requests = repo
		s.recorder.log = repo
	}
}

// WithArchive stores successful transcripts.
func WithArchive(a Archiver) ServerOption {
	return func(s *Server) {
		s.recorder.archive = a
	}
}

// WithLogger sets a custom logger for the server
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithField("port", s.config.ServerPort).Info("Starting server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /supported-languages", s.handleSupportedLanguages)

	mux.HandleFunc("POST /transcript", s.transcript.HandleCreateTranscript)
	mux.HandleFunc("GET /transcript", s.transcript.HandleGetTranscript)
	mux.HandleFunc("POST /transcribe", s.audio.HandleTranscribe)
	mux.HandleFunc("POST /transcribe-url", s.audio.HandleTranscribeURL)

	s.addV1Routes(mux)

	return s.middleware(mux)
}

func (s *Server) addV1Routes(mux *http.ServeMux) {
	const v1Prefix = "/api/v1"

	mux.HandleFunc("GET "+v1Prefix+"/requests", s.handleRecentRequests)
}

func (s *Server) middleware(handler http.Handler) http.Handler {
	mw := s.config.Middleware

	var middlewares []func(http.Handler) http.Handler
	if mw.EnableRecover {
		middlewares = append(middlewares, middleware.Recovery(s.logger))
	}
	if mw.EnableRequestID {
		middlewares = append(middlewares, middleware.RequestID())
	}
	if mw.EnableLogger {
		middlewares = append(middlewares, middleware.Logging(s.logger))
	}
	if mw.EnableCORS {
		middlewares = append(middlewares, middleware.CORS(s.config.CORS))
	}
	if mw.EnableTimeout && s.config.RequestTimeout > 0 {
		middlewares = append(middlewares, middleware.Timeout(s.config.RequestTimeout))
	}
	if mw.EnableRateLimit && s.config.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.config.RateLimit.RequestsPerMinute,
			s.config.RateLimit.BurstSize,
		)
		middlewares = append(middlewares, rateLimiter.Middleware)
	}

	return middleware.Chain(handler, middlewares...)
}

type endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

var endpoints = []endpoint{
	{http.MethodPost, "/transcript", "Fetch YouTube captions for a video URL"},
	{http.MethodGet, "/transcript", "Fetch YouTube captions using url and languages query parameters"},
	{http.MethodPost, "/transcribe", "Transcribe an uploaded audio or video file"},
	{http.MethodPost, "/transcribe-url", "Download a video's audio and transcribe it"},
	{http.MethodGet, "/supported-languages", "Languages accepted for transcription"},
	{http.MethodGet, "/health", "Service and model status"},
	{http.MethodGet, "/api/v1/requests", "Recent requests"},
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"service":   serviceName,
		"version":   s.config.Version,
		"endpoints": endpoints,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":            "healthy",
		"version":           s.config.Version,
		"uptime":            time.Since(s.startTime).String(),
		"model_loaded":      s.adapter != nil && s.adapter.Ready(),
		"supported_formats": audio.SupportedExtensions,
		"max_upload":        humanize.IBytes(uint64(s.config.MaxUploadBytes)),
		"model":             nil,
	}
	if s.resolver != nil {
		status["caption_api"] = s.resolver.Capability().String()
	}

	if s.adapter != nil {
		if info := s.adapter.ModelInfo(); info != nil {
			status["model"] = healthModel{
				ModelInfo:                 *info,
				EstimatedSecondsPerMinute: scripts.EstimateTranscriptionTime(info.ModelSize, time.Minute).Seconds(),
			}
		}
		if msg := s.adapter.ModelError(); msg != "" {
			status["model_error"] = msg
		}
	}

	if s.config.Debug {
		status["goroutines"] = runtime.NumGoroutine()
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		status["memory"] = map[string]interface{}{
			"allocated": humanize.IBytes(m.Alloc),
			"system":    humanize.IBytes(m.Sys),
			"gc_cycles": m.NumGC,
		}
	}

	respondJSON(w, r, http.StatusOK, status)
}

type healthModel struct {
	models.ModelInfo
	EstimatedSecondsPerMinute float64 `json:"estimated_seconds_per_audio_minute"`
}

func (s *Server) handleSupportedLanguages(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"languages": validation.SupportedLanguages(),
	})
}

func (s *Server) handleRecentRequests(w http.ResponseWriter, r *http.Request) {
	const op = "Server.handleRecentRequests"

	if s.requests == nil {
		respondError(w, r, errors.NotFound(op, nil, "Request log is disabled"))
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, r, errors.InvalidInput(op, err, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	records, err := s.requests.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"requests": records,
		"count":    len(records),
	})
}
