package transcript

import (
	"context"
	"fmt"
	"time"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
	"github.com/sirupsen/logrus"
)

// Capability records which shape of caption API the resolver works with.
// It is decided once, when the resolver is built.
type Capability int

const (
	CapabilityFlatOnly Capability = iota
	CapabilityListing
)

func (c Capability) String() string {
	if c == CapabilityListing {
		return "listing"
	}
	return "flat_only"
}

// StepListTracks names the enumeration step in Attempt records.
const StepListTracks = "list_tracks"

// Attempt describes one step of a resolution.
type Attempt struct {
	VideoID  string
	Strategy string
	Err      error
	Took     time.Duration
}

type Observer func(Attempt)

var DefaultLanguages = []string{"en", "en-US"}

type Resolver struct {
	source     CaptionSource
	lister     TrackLister
	capability Capability
	languages  []string
	logger     *logrus.Logger
	observer   Observer
}

type ResolverOption func(*Resolver)

// WithLanguages sets the preferred languages used when a request names none.
func WithLanguages(langs []string) ResolverOption {
	return func(r *Resolver) {
		if len(langs) > 0 {
			r.languages = langs
		}
	}
}

func WithLogger(logger *logrus.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithObserver(o Observer) ResolverOption {
	return func(r *Resolver) {
		r.observer = o
	}
}

func NewResolver(source CaptionSource, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		source:     source,
		capability: CapabilityFlatOnly,
		languages:  DefaultLanguages,
		logger:     logrus.StandardLogger(),
	}
	if lister, ok := source.(TrackLister); ok {
		r.lister = lister
		r.capability = CapabilityListing
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Capability() Capability {
	return r.capability
}

// Resolve runs the strategy chain for ref and always returns a result;
// failures are reported through the result's error kind.
func (r *Resolver) Resolve(ctx context.Context, ref models.VideoRef, preferred []string) models.TranscriptResult {
	const op = "Resolver.Resolve"

	logger := r.logger.WithFields(logrus.Fields{
		"operation":  op,
		"video_id":   ref.ID,
		"capability": r.capability.String(),
	})

	if !ref.HasID() {
		logger.WithField("url", ref.RawURL).Info("Rejected unrecognized video URL")
		return models.Failed(errors.KindInvalidInput, "Invalid YouTube URL")
	}

	langs := preferred
	if len(langs) == 0 {
		langs = r.languages
	}

	var (
		strategies  []Strategy
		upstreamErr error
	)

	if r.capability == CapabilityListing {
		start := time.Now()
		tracks, err := r.lister.ListTracks(ctx, ref.ID)
		r.observe(logger, Attempt{VideoID: ref.ID, Strategy: StepListTracks, Err: err, Took: time.Since(start)})

		switch {
		case err == nil:
			strategies = append(strategies,
				&manualCaption{source: r.source, tracks: tracks, languages: langs},
				&autoGeneratedCaption{source: r.source, tracks: tracks, languages: langs},
			)
		case errors.Is(err, errors.ErrCaptionsDisabled):
			logger.Info("Transcripts are disabled")
			return models.Failed(errors.KindTranscriptsDisabled, "Transcripts are disabled for this video")
		case isUpstream(err):
			upstreamErr = err
		}
	}

	strategies = append(strategies, &legacyFlatFetch{source: r.source, languages: langs})

	for _, s := range strategies {
		start := time.Now()
		acquired, err := s.Fetch(ctx, ref.ID)
		if err == nil {
			result := Normalize(acquired.Segments, acquired.Language, nil)
			if result.TextValue() == "" {
				err = errors.Wrap(errors.ErrCaptionsNotFound, "track has no text")
			} else {
				r.observe(logger, Attempt{VideoID: ref.ID, Strategy: s.Name(), Took: time.Since(start)})
				result.IsGenerated = acquired.IsGenerated
				result.Strategy = s.Name()
				logger.WithFields(logrus.Fields{
					"strategy":   s.Name(),
					"characters": result.CharacterCount(),
				}).Info("Transcript resolved")
				return result
			}
		}

		r.observe(logger, Attempt{VideoID: ref.ID, Strategy: s.Name(), Err: err, Took: time.Since(start)})
		if enumerated(s) && isUpstream(err) {
			return r.upstreamFailure(logger, err)
		}
		if upstreamErr == nil && isUpstream(err) {
			upstreamErr = err
		}
	}

	if upstreamErr != nil {
		return r.upstreamFailure(logger, upstreamErr)
	}

	logger.Info("No transcript available")
	return models.Failed(errors.KindNoTranscriptAvailable, "No transcript available for this video")
}

func (r *Resolver) upstreamFailure(logger *logrus.Entry, err error) models.TranscriptResult {
	logger.WithError(err).Warn("Transcript fetch failed upstream")
	return models.Failed(errors.KindUpstreamFailure,
		fmt.Sprintf("Failed to fetch transcript from YouTube: %v", errors.Cause(err)))
}

func (r *Resolver) observe(logger *logrus.Entry, a Attempt) {
	if a.Err != nil {
		logger.WithFields(logrus.Fields{
			"strategy":    a.Strategy,
			"error_class": errorClass(a.Err),
			"error_type":  fmt.Sprintf("%T", errors.Cause(a.Err)),
			"took":        a.Took.String(),
		}).WithError(a.Err).Debug("Strategy attempt failed")
	} else {
		logger.WithFields(logrus.Fields{
			"strategy": a.Strategy,
			"took":     a.Took.String(),
		}).Debug("Strategy attempt succeeded")
	}

	if r.observer != nil {
		r.observer(a)
	}
}

// isUpstream reports whether err came from talking to the provider rather
// than from the provider saying there is nothing to fetch.
func isUpstream(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, errors.ErrCaptionsNotFound) &&
		!errors.Is(err, errors.ErrVideoUnavailable) &&
		!errors.Is(err, errors.ErrCaptionsDisabled)
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, errors.ErrCaptionsNotFound):
		return "not_found"
	case errors.Is(err, errors.ErrCaptionsDisabled):
		return "disabled"
	case errors.Is(err, errors.ErrVideoUnavailable):
		return "unavailable"
	case errors.Is(err, errors.ErrUpstreamBlocked):
		return "blocked"
	default:
		return "transport"
	}
}
