package main

import (
	"context"
	"time"

	"github.com/nijaru/yt-transcript/config"
	"github.com/nijaru/yt-transcript/download"
	"github.com/nijaru/yt-transcript/handlers/api"
	"github.com/nijaru/yt-transcript/repository/sqlite"
	"github.com/nijaru/yt-transcript/scripts"
	"github.com/nijaru/yt-transcript/services/audio"
	"github.com/nijaru/yt-transcript/services/transcript"
	"github.com/nijaru/yt-transcript/storage"
	"github.com/nijaru/yt-transcript/youtube"
	"github.com/sirupsen/logrus"
)

// services holds everything the HTTP server is built from.
type services struct {
	resolver    *transcript.Resolver
	adapter     *audio.Adapter
	transcriber scripts.Transcriber
	metadata    *youtube.MetadataClient
	downloader  *download.YTDLP
	db          *sqlite.DB
	archive     *storage.Archive
	logger      *logrus.Logger
}

func buildServices(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*services, error) {
	s := &services{logger: logger}

	db, err := sqlite.Open(ctx, cfg.Database.Path, sqlite.DBConfig{
		MaxConnections:     cfg.Database.MaxConnections,
		MaxIdleConnections: cfg.Database.MaxIdleConnections,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	s.db = db

	s.resolver = newResolver(cfg, logger)

	if cfg.Captions.YouTubeAPIKey != "" {
		metadata, err := youtube.NewMetadataClient(ctx, cfg.Captions.YouTubeAPIKey)
		if err != nil {
			logger.WithError(err).Warn("Video metadata disabled")
		} else {
			s.metadata = metadata
		}
	}

	if cfg.Archive.Enabled() {
		archive, err := storage.NewArchive(ctx, storage.ArchiveConfig{
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Region:    cfg.Archive.Region,
			Endpoint:  cfg.Archive.Endpoint,
			Bucket:    cfg.Archive.Bucket,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.archive = archive
	}

	s.downloader = download.NewYTDLP(download.Config{
		Path:       cfg.Download.YTDLPPath,
		CookieFile: cfg.Download.CookieFile,
		Timeout:    cfg.Download.Timeout,
	}, logger)

	s.adapter, s.transcriber = newAdapter(ctx, cfg, logger)

	return s, nil
}

func (s *services) serverOptions(logger *logrus.Logger) []api.ServerOption {
	opts := []api.ServerOption{
		api.WithLogger(logger),
		api.WithServices(s.resolver, s.adapter),
		api.WithDownloader(s.downloader),
		api.WithRequestLog(sqlite.NewRequestRepository(s.db)),
	}
	if s.metadata != nil {
		opts = append(opts, api.WithMetadata(s.metadata))
	}
	if s.archive != nil {
		opts = append(opts, api.WithArchive(s.archive))
	}
	return opts
}

func (s *services) Close() error {
	if s.transcriber != nil {
		if err := s.transcriber.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to stop speech model")
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// newResolver builds the caption chain. CAPTION_API=flat hides track
// enumeration from the resolver.
func newResolver(cfg *config.Config, logger *logrus.Logger) *transcript.Resolver {
	client := youtube.NewClient(
		youtube.WithTimeout(cfg.Captions.Timeout),
		youtube.WithLogger(logger),
	)

	var source transcript.CaptionSource = client
	if cfg.Captions.API == config.CaptionAPIFlat {
		source = youtube.FlatOnly(client)
	}

	resolver := transcript.NewResolver(source,
		transcript.WithLanguages(cfg.Captions.DefaultLanguages),
		transcript.WithLogger(logger),
	)
	logger.WithField("capability", resolver.Capability().String()).Info("Caption resolver ready")
	return resolver
}

// newAdapter loads the speech model once. A load failure leaves the adapter
// without a model so audio requests report ModelUnavailable.
func newAdapter(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*audio.Adapter, scripts.Transcriber) {
	start := time.Now()
	transcriber, err := scripts.NewTranscriber(ctx, scripts.FactoryConfig{
		Backend: cfg.Model.Backend,
		Worker: scripts.Config{
			PythonPath:  cfg.Model.PythonPath,
			TempDir:     cfg.TempDir,
			Model:       cfg.Model.Name,
			Device:      cfg.Model.Device,
			ComputeType: cfg.Model.ComputeType,
			LoadTimeout: cfg.Model.LoadTimeout,
		},
		OpenAI: scripts.OpenAIConfig{
			APIKey:  cfg.Model.OpenAIAPIKey,
			BaseURL: cfg.Model.OpenAIBaseURL,
			Model:   cfg.Model.OpenAIModel,
		},
	}, logger)

	adapterCfg := audio.Config{BeamSize: cfg.Model.BeamSize, TempDir: cfg.TempDir}
	if err != nil {
		logger.WithError(err).WithField("backend", cfg.Model.Backend).Error("Speech model failed to load")
		return audio.NewAdapter(nil, adapterCfg, audio.WithLogger(logger), audio.WithLoadError(err)), nil
	}

	info := transcriber.Info()
	logger.WithFields(logrus.Fields{
		"backend": info.Backend,
		"model":   info.ModelSize,
		"device":  info.Device,
		"took":    time.Since(start).String(),
	}).Info("Speech model loaded")

	return audio.NewAdapter(transcriber, adapterCfg, audio.WithLogger(logger)), transcriber
}
